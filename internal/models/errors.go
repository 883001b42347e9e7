package models

import "errors"

var (
	ErrEmptyTrainingSet = errors.New("models: empty training set")
	ErrShapeMismatch    = errors.New("models: feature matrix and labels have inconsistent shapes")
	ErrNoFeatures       = errors.New("models: samples have no features")
	ErrNotFitted        = errors.New("models: model is not fitted")
)
