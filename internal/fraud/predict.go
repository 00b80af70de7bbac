package fraud

import (
	"fmt"

	"github.com/FlavioCFOliveira/upifraud/internal/dataset"
	"github.com/FlavioCFOliveira/upifraud/internal/features"
)

const (
	LabelFraud   = "Fraud"
	LabelGenuine = "Genuine"
)

// Prediction is the model's verdict on one transaction.
type Prediction struct {
	Probability float64 `json:"probability"`
	Label       string  `json:"label"`
}

// IsFraud reports whether the transaction was classified as fraud.
func (p Prediction) IsFraud() bool {
	return p.Label == LabelFraud
}

// Predict scores r with model. Identifiers and any fraud label on r are
// ignored.
//
// r is always encoded with the encoders stored in the model. enc, when not
// nil, is the caller's current encoders and must have the same vocabularies.
func Predict(r dataset.Record, model *TrainedModel, enc *features.Encoders) (Prediction, error) {
	if model == nil {
		return Prediction{}, ErrUntrainedModel
	}
	if enc != nil && enc != model.Encoders && (enc.Width() != model.InputWidth || enc.Fingerprint() != model.Encoders.Fingerprint()) {
		return Prediction{}, fmt.Errorf("%w: width %d, model expects %d", ErrVocabularyDrift, enc.Width(), model.InputWidth)
	}

	p := model.Probability(model.Encoders.Vectorize(r))
	label := LabelGenuine
	if p >= Threshold {
		label = LabelFraud
	}
	return Prediction{Probability: p, Label: label}, nil
}
