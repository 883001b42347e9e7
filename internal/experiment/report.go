package experiment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matthewcarbone/multimodal-molecules/internal/evaluation"
	"github.com/matthewcarbone/multimodal-molecules/internal/models"
)

// Record holds the scores of one trained (combination, functional group) pair.
type Record struct {
	PTotal                float64                `json:"p_total"`
	PTrain                float64                `json:"p_train"`
	PTest                 float64                `json:"p_test"`
	TestAccuracy          float64                `json:"test_accuracy"`
	TrainAccuracy         float64                `json:"train_accuracy"`
	TestBalancedAccuracy  float64                `json:"test_balanced_accuracy"`
	TrainBalancedAccuracy float64                `json:"train_balanced_accuracy"`
	FeatureImportance     *evaluation.Importance `json:"feature_importance,omitempty"`
	PermutationImportance *evaluation.Importance `json:"permutation_feature_importance,omitempty"`
}

// Records is an insertion-ordered map of record key to Record. It marshals to
// a JSON object whose members keep that order.
type Records struct {
	keys    []string
	entries map[string]Record
}

func NewRecords() Records {
	return Records{entries: make(map[string]Record)}
}

// Add appends a record. Keys are unique; a record is never replaced.
func (r *Records) Add(key string, record Record) error {
	if r.entries == nil {
		r.entries = make(map[string]Record)
	}
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("duplicate record key %q", key)
	}
	r.keys = append(r.keys, key)
	r.entries[key] = record
	return nil
}

func (r Records) Get(key string) (Record, bool) {
	record, ok := r.entries[key]
	return record, ok
}

func (r Records) Keys() []string {
	return append([]string(nil), r.keys...)
}

func (r Records) Len() int {
	return len(r.keys)
}

func (r Records) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.entries[key])
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Records) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("records must be a JSON object, got %v", tok)
	}

	*r = NewRecords()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected record key %v", tok)
		}
		var record Record
		if err := dec.Decode(&record); err != nil {
			return fmt.Errorf("record %s: %w", key, err)
		}
		if err := r.Add(key, record); err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}

// RunInfo describes one execution. It depends on the wall clock and is left
// out when reports are compared.
type RunInfo struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Report is the JSON-serializable outcome of a run.
type Report struct {
	Settings
	DataSize           int                 `json:"data_size"`
	Algorithm          string              `json:"algorithm"`
	Forest             models.ForestConfig `json:"forest"`
	PermutationRepeats int                 `json:"permutation_repeats"`
	Records            Records             `json:"report"`
	Run                *RunInfo            `json:"run,omitempty"`
}

// Deterministic returns a copy without the wall-clock dependent run block.
func (r *Report) Deterministic() *Report {
	clone := *r
	clone.Run = nil
	return &clone
}

// ModelSet holds the trained models of a run under their record keys, in
// insertion order.
type ModelSet struct {
	keys   []string
	models map[string]models.Classifier
}

func NewModelSet() *ModelSet {
	return &ModelSet{models: make(map[string]models.Classifier)}
}

func (m *ModelSet) Add(key string, model models.Classifier) error {
	if _, exists := m.models[key]; exists {
		return fmt.Errorf("duplicate model key %q", key)
	}
	m.keys = append(m.keys, key)
	m.models[key] = model
	return nil
}

func (m *ModelSet) Get(key string) (models.Classifier, bool) {
	model, ok := m.models[key]
	return model, ok
}

func (m *ModelSet) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m *ModelSet) Len() int {
	return len(m.keys)
}

// Result is what a run produces: the report and, when kept, the models.
type Result struct {
	Report   *Report
	Models   *ModelSet
	BaseName string
}
