package data

import "errors"

var (
	// ErrUnknownColumn is returned when a condition or lookup names a column the
	// index table does not have.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrNotIndicator is returned when an indicator column holds a value other
	// than 0 or 1.
	ErrNotIndicator = errors.New("column is not a 0/1 indicator")

	// ErrMissingSample is returned when a selected sample identity, or one of its
	// modalities, is absent from the spectral store.
	ErrMissingSample = errors.New("sample missing from spectral store")

	ErrMissingGrid      = errors.New("energy grid missing from spectral store")
	ErrRaggedSpectra    = errors.New("spectra of one modality differ in length")
	ErrInvalidTag       = errors.New("invalid modality tag")
	ErrInvalidCondition = errors.New("invalid condition")
	ErrInvalidCrop      = errors.New("invalid spectrum crop")
	ErrMalformedStore   = errors.New("malformed spectral store")
)
