package storage

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/DocScrape/internal/config"
	"github.com/IshaanNene/DocScrape/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleDoctors() []*types.Doctor {
	return []*types.Doctor{
		{
			Name:       "Dr Jean Martin",
			Specialty:  types.StringPtr("Gastro-entérologue"),
			Address:    types.StringPtr("12 Rue de Charenton, 75012 Paris"),
			Distance:   types.StringPtr("1,2 km"),
			SectorInfo: types.StringPtr("Conventionné secteur 1"),
			ProfileURL: types.StringPtr("https://www.doctolib.fr/gastro-enterologue/paris/jean-martin?a=1&b=2"),
		},
		{
			Name:      "Dr Sophie \"Sofi\" Durand",
			Specialty: types.StringPtr("Gastro-entérologue, hépatologue"),
			Distance:  types.StringPtr("3 km"),
		},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "doctors.json")
	s, err := NewJSONStorage(path, testLogger)
	require.NoError(t, err)

	want := sampleDoctors()
	require.NoError(t, s.Store(want[:1]))
	require.NoError(t, s.Store(want[1:]))
	require.NoError(t, s.Close())

	got, err := ReadJSON(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONAbsentFieldsAreNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doctors.json")
	s, err := NewJSONStorage(path, testLogger)
	require.NoError(t, err)
	require.NoError(t, s.Store([]*types.Doctor{{Name: "Dr A"}}))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"address": null`)
	require.Contains(t, string(data), `"profile_url": null`)
}

func TestJSONEmptyRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doctors.json")
	s, err := NewJSONStorage(path, testLogger)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	got, err := ReadJSON(path)
	require.NoError(t, err)
	require.Len(t, got, 0)
}

func TestCSVHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doctors.csv")
	s, err := NewCSVStorage(path, testLogger)
	require.NoError(t, err)

	doctors := sampleDoctors()
	require.NoError(t, s.Store(doctors))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(doctors)+1)
	require.Equal(t, []string{"name", "specialty", "address", "distance", "sector_info", "profile_url"}, rows[0])

	require.Equal(t, "Dr Jean Martin", rows[1][0])
	require.Equal(t, "12 Rue de Charenton, 75012 Paris", rows[1][2])
	require.Equal(t, `Dr Sophie "Sofi" Durand`, rows[2][0])
	require.Equal(t, "", rows[2][2], "absent address should be an empty cell")
	require.Equal(t, "", rows[2][5])
}

func TestCSVEmptyRunHasHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doctors.csv")
	s, err := NewCSVStorage(path, testLogger)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestJSONLStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doctors.jsonl")
	s, err := NewJSONLStorage(path, testLogger)
	require.NoError(t, err)
	require.NoError(t, s.Store(sampleDoctors()))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	require.Equal(t, 2, lines)
}

func TestNewFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.OutputConfig{
		JSONFile:  filepath.Join(dir, "a.json"),
		CSVFile:   filepath.Join(dir, "a.csv"),
		JSONLFile: filepath.Join(dir, "a.jsonl"),
		NoCSV:     true,
	}
	ms, err := New(cfg, testLogger)
	require.NoError(t, err)
	require.Equal(t, []string{"json", "jsonl"}, ms.Backends())
	require.NoError(t, ms.Store(sampleDoctors()))
	require.NoError(t, ms.Close())

	_, err = os.Stat(cfg.CSVFile)
	require.True(t, errors.Is(err, os.ErrNotExist), "csv output should be skipped")
}

func TestWriteFailureIsStorageError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	// A regular file where a directory is expected.
	_, err := NewCSVStorage(filepath.Join(blocker, "out.csv"), testLogger)
	var se *types.StorageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "csv", se.Backend)
}
