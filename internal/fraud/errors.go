// Package fraud trains, evaluates and applies transaction fraud classifiers.
package fraud

import "errors"

var (
	// ErrInsufficientData is returned when fewer than MinLabeledRecords
	// labeled transactions are available for training.
	ErrInsufficientData = errors.New("fraud: insufficient labeled data")

	// ErrUntrainedModel is returned by Predict when no model has been trained.
	ErrUntrainedModel = errors.New("fraud: no trained model, train a model first")

	// ErrVocabularyDrift is returned when a prediction is asked for with
	// encoders that do not match the ones the model was trained with.
	ErrVocabularyDrift = errors.New("fraud: encoders do not match the trained model")

	// ErrTrainingDiverged is returned when the training loss stops being finite.
	ErrTrainingDiverged = errors.New("fraud: training diverged")

	ErrUnknownArchitecture = errors.New("fraud: unknown model architecture")
)
