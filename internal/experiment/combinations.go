package experiment

import (
	"fmt"
	"strings"

	"github.com/matthewcarbone/multimodal-molecules/internal/data"
)

const (
	comboSeparator = "_"
	keySeparator   = "-"
)

// AllCombinations returns every non-empty subset of the positions 0..n-1,
// shortest first and lexicographic within one length.
func AllCombinations(n int) [][]int {
	var combos [][]int
	for size := 1; size <= n; size++ {
		combos = appendCombinations(combos, n, size)
	}
	return combos
}

func appendCombinations(combos [][]int, n, size int) [][]int {
	current := make([]int, size)
	for i := range current {
		current[i] = i
	}

	for {
		combos = append(combos, append([]int(nil), current...))

		// Advance the rightmost position that still has room.
		i := size - 1
		for i >= 0 && current[i] == n-size+i {
			i--
		}
		if i < 0 {
			return combos
		}
		current[i]++
		for j := i + 1; j < size; j++ {
			current[j] = current[j-1] + 1
		}
	}
}

// CombinationName joins the tags at the combo positions, e.g. "C-XANES_O-XANES".
func CombinationName(tags []data.Tag, combo []int) string {
	names := make([]string, len(combo))
	for i, p := range combo {
		names[i] = tags[p].String()
	}
	return strings.Join(names, comboSeparator)
}

// RecordKey names the experiment for one combination and functional group.
func RecordKey(comboName, group string) string {
	return comboName + keySeparator + group
}

// ParseRecordKey recovers the spectral tags and the functional group a record
// key was built from. The tags are the shortest prefix of spectral tags.
func ParseRecordKey(key string) ([]data.Tag, string, error) {
	for i := 0; i < len(key); i++ {
		if key[i] != keySeparator[0] || i == len(key)-1 {
			continue
		}
		tags, ok := parseComboName(key[:i])
		if ok {
			return tags, key[i+1:], nil
		}
	}
	return nil, "", fmt.Errorf("malformed record key %q", key)
}

func parseComboName(name string) ([]data.Tag, bool) {
	parts := strings.Split(name, comboSeparator)
	tags := make([]data.Tag, len(parts))
	for i, part := range parts {
		tag, err := data.ParseTag(part)
		if err != nil || !tag.IsSpectrum() {
			return nil, false
		}
		tags[i] = tag
	}
	return tags, true
}
