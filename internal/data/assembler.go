package data

import (
	"fmt"
)

// Crop trims every spectrum and grid with slice semantics: a nil bound is open
// and a negative bound counts from the end.
type Crop struct {
	Left  *int `yaml:"offset_left" json:"offset_left"`
	Right *int `yaml:"offset_right" json:"offset_right"`
}

func (c Crop) bounds(n int) (int, int, error) {
	resolve := func(bound *int, open int) int {
		if bound == nil {
			return open
		}
		v := *bound
		if v < 0 {
			v += n
		}
		if v < 0 {
			v = 0
		}
		if v > n {
			v = n
		}
		return v
	}

	left, right := resolve(c.Left, 0), resolve(c.Right, n)
	if left >= right {
		return 0, 0, fmt.Errorf("%w: [%v:%v] leaves nothing of %d points", ErrInvalidCrop, deref(c.Left), deref(c.Right), n)
	}
	return left, right, nil
}

func (c Crop) apply(values []float64) ([]float64, error) {
	left, right, err := c.bounds(len(values))
	if err != nil {
		return nil, err
	}
	return values[left:right], nil
}

func deref(v *int) any {
	if v == nil {
		return "nil"
	}
	return *v
}

// FunctionalGroups are the binary labels kept for a dataset, in index column order.
type FunctionalGroups struct {
	Names  []string
	Labels map[string][]int
}

// Dataset is the assembled subset: one row per selected index row, in index
// order, for every array it holds.
type Dataset struct {
	Modalities []Tag
	Spectra    map[Tag][][]float64
	Grids      map[Tag][]float64
	Groups     FunctionalGroups
	Index      *IndexTable
}

func (d *Dataset) Len() int {
	return d.Index.Len()
}

// Assemble gathers spectra for each modality in the order of the index identity
// column, and every functional group column that occurs at least once.
func Assemble(index *IndexTable, store *SpectralStore, modalities []Tag, crop Crop) (*Dataset, error) {
	identities, err := index.Identities()
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		Modalities: append([]Tag(nil), modalities...),
		Spectra:    make(map[Tag][][]float64, len(modalities)),
		Grids:      make(map[Tag][]float64, len(modalities)),
		Groups:     FunctionalGroups{Labels: make(map[string][]int)},
		Index:      index,
	}

	for _, tag := range modalities {
		if !tag.IsSpectrum() {
			return nil, fmt.Errorf("%w: %s is not a spectral modality", ErrInvalidTag, tag)
		}

		grid, ok := store.Grids[tag.Element]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingGrid, tag.Element)
		}
		if d.Grids[tag], err = crop.apply(grid); err != nil {
			return nil, fmt.Errorf("grid %s: %w", tag.Element, err)
		}

		rows := make([][]float64, len(identities))
		for i, identity := range identities {
			sample, ok := store.Data[identity]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrMissingSample, identity)
			}
			spectrum, ok := sample[tag.String()]
			if !ok {
				return nil, fmt.Errorf("%w: %q has no %s", ErrMissingSample, identity, tag)
			}
			if rows[i], err = crop.apply(spectrum); err != nil {
				return nil, fmt.Errorf("sample %q %s: %w", identity, tag, err)
			}
			if len(rows[i]) != len(rows[0]) {
				return nil, fmt.Errorf("%w: %s row %d has %d points, row 0 has %d",
					ErrRaggedSpectra, tag, i, len(rows[i]), len(rows[0]))
			}
		}
		d.Spectra[tag] = rows
	}

	for _, name := range index.FunctionalGroupColumns() {
		labels, err := index.Indicator(name)
		if err != nil {
			return nil, err
		}
		total := 0
		for _, v := range labels {
			total += v
		}
		if total == 0 {
			continue
		}
		d.Groups.Names = append(d.Groups.Names, name)
		d.Groups.Labels[name] = labels
	}

	return d, nil
}

// Span locates one modality inside a packed feature block.
type Span struct {
	Tag   Tag
	Start int
	End   int
}

// FeatureBlock is every modality of a dataset concatenated column-wise.
type FeatureBlock struct {
	Rows  [][]float64
	Spans []Span
}

// Pack concatenates the modalities in dataset order.
func (d *Dataset) Pack() *FeatureBlock {
	block := &FeatureBlock{Rows: make([][]float64, d.Len())}

	offset := 0
	for _, tag := range d.Modalities {
		width := 0
		if rows := d.Spectra[tag]; len(rows) > 0 {
			width = len(rows[0])
		}
		block.Spans = append(block.Spans, Span{Tag: tag, Start: offset, End: offset + width})
		offset += width
	}

	for i := range block.Rows {
		row := make([]float64, 0, offset)
		for _, tag := range d.Modalities {
			row = append(row, d.Spectra[tag][i]...)
		}
		block.Rows[i] = row
	}
	return block
}

// Columns returns, for every row, the columns of the modalities at the given
// span positions, concatenated in that order.
func (b *FeatureBlock) Columns(positions []int) [][]float64 {
	out := make([][]float64, len(b.Rows))
	for i, row := range b.Rows {
		selected := make([]float64, 0, b.Width(positions))
		for _, p := range positions {
			span := b.Spans[p]
			selected = append(selected, row[span.Start:span.End]...)
		}
		out[i] = selected
	}
	return out
}

func (b *FeatureBlock) Width(positions []int) int {
	width := 0
	for _, p := range positions {
		width += b.Spans[p].End - b.Spans[p].Start
	}
	return width
}

// TakeRows returns the rows of X at the given positions.
func TakeRows(X [][]float64, positions []int) [][]float64 {
	out := make([][]float64, len(positions))
	for i, p := range positions {
		out[i] = X[p]
	}
	return out
}

// TakeLabels returns the labels at the given positions.
func TakeLabels(y []int, positions []int) []int {
	out := make([]int, len(positions))
	for i, p := range positions {
		out[i] = y[p]
	}
	return out
}
