package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/DocScrape/internal/types"
)

func TestSummarize(t *testing.T) {
	gastro := types.StringPtr("Gastro-entérologue")
	centre := types.StringPtr("Centre de santé")
	doctors := []*types.Doctor{
		{Name: "A", Specialty: gastro, Address: types.StringPtr("1 Rue X")},
		{Name: "B", Specialty: centre},
		{Name: "C", Specialty: gastro},
		{Name: "D"},
	}

	s := Summarize(doctors, 3)

	if s.Total != 4 || s.WithAddress != 1 {
		t.Errorf("total=%d withAddress=%d", s.Total, s.WithAddress)
	}
	want := []SpecialtyCount{
		{"Gastro-entérologue", 2},
		{"(unknown)", 1},
		{"Centre de santé", 1},
	}
	if diff := cmp.Diff(want, s.BySpecialty); diff != "" {
		t.Errorf("specialty counts (-want +got):\n%s", diff)
	}
	if len(s.Sample) != 3 || s.Sample[2].Name != "C" {
		t.Errorf("unexpected sample: %d records", len(s.Sample))
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Summarize([]*types.Doctor{{Name: "Dr Jean Martin", Specialty: types.StringPtr("Gastro-entérologue")}}, 3).Render(&buf)

	out := buf.String()
	for _, want := range []string{"Total doctors: 1", "Dr Jean Martin", "Gastro-entérologue"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	Summarize(nil, 3).Render(&buf)
	if strings.TrimSpace(buf.String()) != "Total doctors: 0 (0 with an address)" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
