package data

import (
	"fmt"
	"io"
	"sort"

	"github.com/golang/snappy"
	"github.com/tinylib/msgp/msgp"
)

// SpectralStore holds every spectrum keyed by sample identity then modality tag,
// and the energy grid of each element.
type SpectralStore struct {
	Data  map[string]map[string][]float64
	Grids map[string][]float64
}

func NewSpectralStore() *SpectralStore {
	return &SpectralStore{
		Data:  make(map[string]map[string][]float64),
		Grids: make(map[string][]float64),
	}
}

// Add stores one spectrum for a sample.
func (s *SpectralStore) Add(identity string, tag Tag, spectrum []float64) {
	if s.Data[identity] == nil {
		s.Data[identity] = make(map[string][]float64)
	}
	s.Data[identity][tag.String()] = spectrum
}

// WriteSpectra encodes the store as snappy-framed MessagePack with sorted keys:
// {"data": {id: {tag: [...]}}, "grids": {element: [...]}}.
func WriteSpectra(w io.Writer, s *SpectralStore) error {
	sw := snappy.NewBufferedWriter(w)
	mw := msgp.NewWriter(sw)

	if err := mw.WriteMapHeader(2); err != nil {
		return err
	}

	if err := mw.WriteString("data"); err != nil {
		return err
	}
	if err := mw.WriteMapHeader(uint32(len(s.Data))); err != nil {
		return err
	}
	for _, identity := range sortedKeys(s.Data) {
		if err := mw.WriteString(identity); err != nil {
			return err
		}
		if err := writeArrays(mw, s.Data[identity]); err != nil {
			return fmt.Errorf("sample %q: %w", identity, err)
		}
	}

	if err := mw.WriteString("grids"); err != nil {
		return err
	}
	if err := writeArrays(mw, s.Grids); err != nil {
		return fmt.Errorf("grids: %w", err)
	}

	if err := mw.Flush(); err != nil {
		return err
	}
	return sw.Close()
}

func writeArrays(mw *msgp.Writer, arrays map[string][]float64) error {
	if err := mw.WriteMapHeader(uint32(len(arrays))); err != nil {
		return err
	}
	for _, key := range sortedKeys(arrays) {
		if err := mw.WriteString(key); err != nil {
			return err
		}
		if err := mw.WriteArrayHeader(uint32(len(arrays[key]))); err != nil {
			return err
		}
		for _, v := range arrays[key] {
			if err := mw.WriteFloat64(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadSpectra decodes a store written by WriteSpectra. Unknown top-level keys
// are skipped.
func ReadSpectra(r io.Reader) (*SpectralStore, error) {
	mr := msgp.NewReader(snappy.NewReader(r))
	store := NewSpectralStore()

	n, err := mr.ReadMapHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStore, err)
	}

	for i := uint32(0); i < n; i++ {
		key, err := mr.ReadString()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedStore, err)
		}

		switch key {
		case "data":
			samples, err := mr.ReadMapHeader()
			if err != nil {
				return nil, fmt.Errorf("%w: data: %v", ErrMalformedStore, err)
			}
			for j := uint32(0); j < samples; j++ {
				identity, err := mr.ReadString()
				if err != nil {
					return nil, fmt.Errorf("%w: data: %v", ErrMalformedStore, err)
				}
				arrays, err := readArrays(mr)
				if err != nil {
					return nil, fmt.Errorf("%w: sample %q: %v", ErrMalformedStore, identity, err)
				}
				store.Data[identity] = arrays
			}
		case "grids":
			grids, err := readArrays(mr)
			if err != nil {
				return nil, fmt.Errorf("%w: grids: %v", ErrMalformedStore, err)
			}
			store.Grids = grids
		default:
			if err := mr.Skip(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedStore, err)
			}
		}
	}

	return store, nil
}

func readArrays(mr *msgp.Reader) (map[string][]float64, error) {
	n, err := mr.ReadMapHeader()
	if err != nil {
		return nil, err
	}
	arrays := make(map[string][]float64, n)
	for i := uint32(0); i < n; i++ {
		key, err := mr.ReadString()
		if err != nil {
			return nil, err
		}
		size, err := mr.ReadArrayHeader()
		if err != nil {
			return nil, err
		}
		values := make([]float64, size)
		for k := range values {
			if values[k], err = mr.ReadFloat64(); err != nil {
				return nil, err
			}
		}
		arrays[key] = values
	}
	return arrays, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
