// Package testutil builds small on-disk datasets for package tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/matthewcarbone/multimodal-molecules/internal/data"
)

const (
	SpectraFile = "xanes.msgp.sz"
	IndexFile   = "index.csv"
	Conditions  = "O-XANES,C-XANES"

	// Rows is the number of molecules Conditions selects.
	Rows = 50
)

// Group names of the fixture index. Alcohol and Ketone occur often enough to
// train on; Rare and Common sit exactly on the default occurrence bounds; Absent
// never occurs.
const (
	Alcohol = "Alcohol"
	Ketone  = "Ketone"
	Rare    = "Rare"
	Common  = "Common"
	Absent  = "Absent"
)

// CarbonSpectrum is the C-XANES spectrum of molecule i.
func CarbonSpectrum(i int) []float64 {
	s := make([]float64, 6)
	for k := range s {
		s[k] = float64((i*7 + k*3) % 11)
	}
	return s
}

// OxygenSpectrum is the O-XANES spectrum of molecule i.
func OxygenSpectrum(i int) []float64 {
	s := make([]float64, 4)
	for k := range s {
		s[k] = float64((i*5 + k + 1) % 7)
	}
	return s
}

// Labels returns the functional group indicators of molecule i. Alcohol and
// Ketone are functions of the spectra so a classifier can learn them.
func Labels(i int) map[string]int {
	labels := map[string]int{Alcohol: 0, Ketone: 0, Rare: 0, Common: 1, Absent: 0}
	if CarbonSpectrum(i)[0] > 5 {
		labels[Alcohol] = 1
	}
	if OxygenSpectrum(i)[1] >= 4 {
		labels[Ketone] = 1
	}
	if i == 3 {
		labels[Rare] = 1
	}
	if i == 4 {
		labels[Common] = 0
	}
	return labels
}

// WriteDataset writes the spectral store and index table into dir. Besides the
// Rows molecules that carry both spectra, one extra molecule has no oxygen and
// must be filtered out by Conditions.
func WriteDataset(t testing.TB, fs afero.Fs, dir string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0o755))

	carbon, oxygen := data.MustParseTag("C-XANES"), data.MustParseTag("O-XANES")
	groups := []string{Alcohol, Ketone, Rare, Common, Absent}

	store := data.NewSpectralStore()
	store.Grids["C"] = []float64{280, 281, 282, 283, 284, 285}
	store.Grids["O"] = []float64{530, 531, 532, 533}

	var csv strings.Builder
	csv.WriteString(",SMILES,C-XANES,C,O-XANES,O,weight,charge," + strings.Join(groups, ",") + "\n")

	for i := 0; i <= Rows; i++ {
		id := fmt.Sprintf("mol%02d", i)
		store.Add(id, carbon, CarbonSpectrum(i))

		hasOxygen := "1"
		if i == Rows {
			hasOxygen = "0"
		} else {
			store.Add(id, oxygen, OxygenSpectrum(i))
		}

		labels := Labels(i)
		cells := []string{fmt.Sprint(i), id, "1", "1", hasOxygen, hasOxygen, fmt.Sprintf("%d.5", 12+i), "0"}
		for _, g := range groups {
			cells = append(cells, fmt.Sprint(labels[g]))
		}
		csv.WriteString(strings.Join(cells, ",") + "\n")
	}

	f, err := fs.Create(filepath.Join(dir, SpectraFile))
	require.NoError(t, err)
	require.NoError(t, data.WriteSpectra(f, store))
	require.NoError(t, f.Close())

	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, IndexFile), []byte(csv.String()), 0o644))
}
