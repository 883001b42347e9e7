package data

import (
	"fmt"
)

// Validate checks that every array of the dataset is aligned with the index rows.
func (d *Dataset) Validate() error {
	n := d.Len()

	for _, tag := range d.Modalities {
		rows, ok := d.Spectra[tag]
		if !ok {
			return fmt.Errorf("modality %s has no spectra", tag)
		}
		if len(rows) != n {
			return fmt.Errorf("modality %s has %d rows, index has %d", tag, len(rows), n)
		}
		for i, row := range rows {
			if len(row) != len(rows[0]) {
				return fmt.Errorf("%w: %s row %d", ErrRaggedSpectra, tag, i)
			}
		}
	}

	if len(d.Groups.Names) != len(d.Groups.Labels) {
		return fmt.Errorf("functional groups: %d names for %d label arrays", len(d.Groups.Names), len(d.Groups.Labels))
	}
	for _, name := range d.Groups.Names {
		labels, ok := d.Groups.Labels[name]
		if !ok {
			return fmt.Errorf("functional group %q has no labels", name)
		}
		if len(labels) != n {
			return fmt.Errorf("functional group %q has %d labels, index has %d", name, len(labels), n)
		}
		for i, v := range labels {
			if v != 0 && v != 1 {
				return fmt.Errorf("%w: functional group %q row %d holds %d", ErrNotIndicator, name, i, v)
			}
		}
	}

	return nil
}

// Occurrence returns the number of positive labels and the fraction they make up.
func Occurrence(labels []int) (int, float64) {
	if len(labels) == 0 {
		return 0, 0
	}
	positives := 0
	for _, v := range labels {
		positives += v
	}
	return positives, float64(positives) / float64(len(labels))
}
