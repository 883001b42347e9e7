package data

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioStore gives every scenario molecule an A spectrum of four points
// and the even molecules a B spectrum of three points.
func scenarioStore() *SpectralStore {
	store := NewSpectralStore()
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("mol%d", i)
		v := float64(i)
		store.Add(id, MustParseTag("A-XANES"), []float64{v, 10 + v, 20 + v, 30 + v})
		if i%2 == 0 {
			store.Add(id, MustParseTag("B-XANES"), []float64{-v, -10 - v, -20 - v})
		}
	}
	store.Grids["A"] = []float64{280, 281, 282, 283}
	store.Grids["B"] = []float64{400, 401, 402}
	return store
}

func TestAssemble_Scenario(t *testing.T) {
	table := scenarioTable(t)
	expr, err := ParseExpression("A-XANES")
	require.NoError(t, err)
	filtered, err := expr.Apply(table)
	require.NoError(t, err)

	dataset, err := Assemble(filtered, scenarioStore(), expr.Modalities(), Crop{})
	require.NoError(t, err)
	require.NoError(t, dataset.Validate())

	assert.Equal(t, 10, dataset.Len())
	assert.Equal(t, []string{"FG1"}, dataset.Groups.Names, "all-zero FG2 must be dropped")
	assert.Equal(t, []int{0, 1, 0, 0, 1, 0, 0, 0, 1, 0}, dataset.Groups.Labels["FG1"])

	rows := dataset.Spectra[MustParseTag("A-XANES")]
	require.Len(t, rows, 10)
	assert.Equal(t, []float64{3, 13, 23, 33}, rows[3])
	assert.Equal(t, []float64{280, 281, 282, 283}, dataset.Grids[MustParseTag("A-XANES")])
}

func TestAssemble_RowsFollowIndexOrder(t *testing.T) {
	table := scenarioTable(t).Select([]int{6, 2, 8})

	dataset, err := Assemble(table, scenarioStore(), []Tag{MustParseTag("B-XANES")}, Crop{})
	require.NoError(t, err)

	rows := dataset.Spectra[MustParseTag("B-XANES")]
	assert.Equal(t, -6.0, rows[0][0])
	assert.Equal(t, -2.0, rows[1][0])
	assert.Equal(t, -8.0, rows[2][0])
	assert.Equal(t, []int{0, 0, 1}, dataset.Groups.Labels["FG1"])
}

func TestAssemble_DropsOnlyAllZeroGroups(t *testing.T) {
	table := scenarioTable(t).Select([]int{0, 2, 3})

	dataset, err := Assemble(table, scenarioStore(), nil, Crop{})
	require.NoError(t, err)
	assert.Empty(t, dataset.Groups.Names)

	table = scenarioTable(t).Select([]int{0, 4, 3})
	dataset, err = Assemble(table, scenarioStore(), nil, Crop{})
	require.NoError(t, err)
	assert.Equal(t, []string{"FG1"}, dataset.Groups.Names)
	assert.Len(t, dataset.Groups.Labels["FG1"], 3)
}

func TestAssemble_BlankGroupCell(t *testing.T) {
	table := scenarioTable(t)
	table.rows[3][7] = ""

	_, err := Assemble(table, scenarioStore(), []Tag{MustParseTag("A-XANES")}, Crop{})
	assert.ErrorIs(t, err, ErrNotIndicator)
}

func TestAssemble_MissingSample(t *testing.T) {
	store := scenarioStore()
	delete(store.Data, "mol3")

	_, err := Assemble(scenarioTable(t), store, []Tag{MustParseTag("A-XANES")}, Crop{})
	assert.ErrorIs(t, err, ErrMissingSample)

	_, err = Assemble(scenarioTable(t), scenarioStore(), []Tag{MustParseTag("B-XANES")}, Crop{})
	assert.ErrorIs(t, err, ErrMissingSample, "odd molecules have no B spectrum")
}

func TestAssemble_MissingGrid(t *testing.T) {
	store := scenarioStore()
	delete(store.Grids, "A")

	_, err := Assemble(scenarioTable(t), store, []Tag{MustParseTag("A-XANES")}, Crop{})
	assert.ErrorIs(t, err, ErrMissingGrid)
}

func TestAssemble_RaggedSpectra(t *testing.T) {
	store := scenarioStore()
	store.Add("mol5", MustParseTag("A-XANES"), []float64{1, 2})

	_, err := Assemble(scenarioTable(t), store, []Tag{MustParseTag("A-XANES")}, Crop{})
	assert.ErrorIs(t, err, ErrRaggedSpectra)
}

func TestAssemble_Crop(t *testing.T) {
	left, right := 1, -1
	dataset, err := Assemble(scenarioTable(t), scenarioStore(), []Tag{MustParseTag("A-XANES")}, Crop{Left: &left, Right: &right})
	require.NoError(t, err)

	assert.Equal(t, []float64{12, 22}, dataset.Spectra[MustParseTag("A-XANES")][2])
	assert.Equal(t, []float64{281, 282}, dataset.Grids[MustParseTag("A-XANES")])

	left = 4
	_, err = Assemble(scenarioTable(t), scenarioStore(), []Tag{MustParseTag("A-XANES")}, Crop{Left: &left})
	assert.ErrorIs(t, err, ErrInvalidCrop)
}

func TestPack_SlicesCombinationsWithoutMixingRows(t *testing.T) {
	table := scenarioTable(t).Select([]int{0, 2, 4})
	tags := []Tag{MustParseTag("A-XANES"), MustParseTag("B-XANES")}

	dataset, err := Assemble(table, scenarioStore(), tags, Crop{})
	require.NoError(t, err)

	block := dataset.Pack()
	assert.Equal(t, []Span{{Tag: tags[0], Start: 0, End: 4}, {Tag: tags[1], Start: 4, End: 7}}, block.Spans)

	onlyB := block.Columns([]int{1})
	assert.Equal(t, []float64{-2, -12, -22}, onlyB[1])

	both := block.Columns([]int{0, 1})
	assert.Equal(t, []float64{4, 14, 24, 34, -4, -14, -24}, both[2])
	assert.Equal(t, 7, block.Width([]int{0, 1}))

	assert.Equal(t, [][]float64{both[2], both[0]}, TakeRows(both, []int{2, 0}))
	assert.Equal(t, []int{9, 7}, TakeLabels([]int{7, 8, 9}, []int{2, 0}))
}

func TestSpectra_RoundTrip(t *testing.T) {
	store := scenarioStore()

	var buf bytes.Buffer
	require.NoError(t, WriteSpectra(&buf, store))

	decoded, err := ReadSpectra(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, store, decoded)

	var again bytes.Buffer
	require.NoError(t, WriteSpectra(&again, decoded))
	assert.Equal(t, buf.Bytes(), again.Bytes(), "encoding must be deterministic")
}

func TestReadSpectra_Malformed(t *testing.T) {
	_, err := ReadSpectra(strings.NewReader("not a store"))
	assert.Error(t, err)
}

func TestReadIndexCSV(t *testing.T) {
	csv := ",SMILES,A-XANES,A,m3,m4,m5,m6,FG1\n" +
		"0,C,1,1,a,b,c,d,1\n" +
		"1,CC,0,1,a,b,c,d,0.0\n"

	table, err := ReadIndexCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"FG1"}, table.FunctionalGroupColumns())

	fg, err := table.Indicator("FG1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, fg)

	_, err = table.Column("nope")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestLoader_CachesByPathUntilPurged(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeScenarioFiles(t, fs, "/data")

	loader := NewLoader(fs, nil)
	expr, err := ParseExpression("A-XANES")
	require.NoError(t, err)

	dataset, err := loader.Load("/data/xanes.msgp.sz", "/data/index.csv", expr, Crop{})
	require.NoError(t, err)
	assert.Equal(t, 10, dataset.Len())
	assert.Equal(t, 2, loader.Cached())

	require.NoError(t, fs.Remove("/data/index.csv"))
	_, err = loader.Load("/data/../data/xanes.msgp.sz", "/data/index.csv", expr, Crop{})
	require.NoError(t, err, "cached files are served without touching the filesystem")

	loader.Purge()
	assert.Zero(t, loader.Cached())
	_, err = loader.Load("/data/xanes.msgp.sz", "/data/index.csv", expr, Crop{})
	assert.Error(t, err)
}

func writeScenarioFiles(t *testing.T, fs afero.Fs, dir string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0o755))

	f, err := fs.Create(dir + "/xanes.msgp.sz")
	require.NoError(t, err)
	require.NoError(t, WriteSpectra(f, scenarioStore()))
	require.NoError(t, f.Close())

	var csv strings.Builder
	csv.WriteString("," + strings.Join(scenarioTable(t).Columns(), ",") + "\n")
	for i := 0; i < 10; i++ {
		row := scenarioTable(t).Select([]int{i})
		cells := make([]string, 0, len(row.Columns()))
		for _, name := range row.Columns() {
			col, err := row.Column(name)
			require.NoError(t, err)
			cells = append(cells, col[0])
		}
		fmt.Fprintf(&csv, "%d,%s\n", i, strings.Join(cells, ","))
	}
	require.NoError(t, afero.WriteFile(fs, dir+"/index.csv", []byte(csv.String()), 0o644))
}
