// Package report renders end-of-run summaries for the CLI.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/IshaanNene/DocScrape/internal/types"
)

// unknownSpecialty labels records without a specialty in the breakdown.
const unknownSpecialty = "(unknown)"

// SpecialtyCount is one row of the specialty breakdown.
type SpecialtyCount struct {
	Specialty string
	Count     int
}

// Summary describes a set of extracted records.
type Summary struct {
	Total       int
	WithAddress int
	BySpecialty []SpecialtyCount
	Sample      []*types.Doctor
}

// Summarize counts records per specialty (most frequent first, ties by
// name) and keeps the first sampleSize records.
func Summarize(doctors []*types.Doctor, sampleSize int) Summary {
	counts := make(map[string]int)
	s := Summary{Total: len(doctors)}
	for _, d := range doctors {
		specialty := unknownSpecialty
		if d.Specialty != nil {
			specialty = *d.Specialty
		}
		counts[specialty]++
		if d.Address != nil {
			s.WithAddress++
		}
	}

	for specialty, n := range counts {
		s.BySpecialty = append(s.BySpecialty, SpecialtyCount{Specialty: specialty, Count: n})
	}
	sort.Slice(s.BySpecialty, func(i, j int) bool {
		a, b := s.BySpecialty[i], s.BySpecialty[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Specialty < b.Specialty
	})

	if sampleSize > len(doctors) {
		sampleSize = len(doctors)
	}
	if sampleSize > 0 {
		s.Sample = doctors[:sampleSize]
	}
	return s
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// Render writes the summary as tables.
func (s Summary) Render(w io.Writer) {
	fmt.Fprintf(w, "Total doctors: %d (%d with an address)\n", s.Total, s.WithAddress)
	if s.Total == 0 {
		return
	}

	specs := newTable(w)
	specs.AppendHeader(table.Row{"Specialty", "Doctors"})
	for _, sc := range s.BySpecialty {
		specs.AppendRow(table.Row{sc.Specialty, sc.Count})
	}
	specs.Render()

	if len(s.Sample) == 0 {
		return
	}
	sample := newTable(w)
	sample.AppendHeader(table.Row{"#", "Name", "Specialty", "Address", "Distance", "Sector"})
	for i, d := range s.Sample {
		sample.AppendRow(table.Row{
			i + 1,
			d.Name,
			orDash(d.Specialty),
			orDash(d.Address),
			orDash(d.Distance),
			orDash(d.SectorInfo),
		})
	}
	sample.Render()
}

func orDash(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}
