// Package alert classifies fraud predictions by risk and delivers
// notifications for them in the background.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RiskLevel grades a fraud alert.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

const largeAmount = 50000

// DetermineRiskLevel grades a transaction from its fraud probability, amount
// and local hour of day.
func DetermineRiskLevel(probability, amount float64, hour int) RiskLevel {
	unusual := amount > largeAmount || hour < 6 || hour > 23
	switch {
	case probability > 0.7 || (probability > 0.4 && unusual):
		return RiskHigh
	case probability > 0.4 || (probability > 0.2 && amount > largeAmount):
		return RiskMedium
	default:
		return RiskLow
	}
}

// Priority selects which risk levels are delivered.
type Priority string

const (
	PriorityHigh       Priority = "high"
	PriorityMediumHigh Priority = "medium-high"
	PriorityAll        Priority = "all"
)

// ParsePriority accepts the three priority names in any case.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityHigh, PriorityMediumHigh, PriorityAll:
		return p, nil
	}
	return "", fmt.Errorf("alert: unknown priority %q", s)
}

// Allows reports whether an alert of the given level should be sent.
func (p Priority) Allows(level RiskLevel) bool {
	switch p {
	case PriorityAll:
		return true
	case PriorityMediumHigh:
		return level == RiskHigh || level == RiskMedium
	default:
		return level == RiskHigh
	}
}

// Event is a fraud alert for one transaction.
type Event struct {
	ID               string    `json:"id"`
	TransactionID    string    `json:"transactionId,omitempty"`
	UserID           string    `json:"userId,omitempty"`
	Amount           float64   `json:"amount"`
	Timestamp        time.Time `json:"timestamp"`
	Location         string    `json:"location,omitempty"`
	TransactionType  string    `json:"transactionType"`
	FraudProbability float64   `json:"fraudProbability"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewEvent builds an alert and grades its risk.
func NewEvent(transactionID, userID string, amount float64, ts time.Time, location, txType string, probability float64) Event {
	return Event{
		ID:               uuid.NewString(),
		TransactionID:    transactionID,
		UserID:           userID,
		Amount:           amount,
		Timestamp:        ts,
		Location:         location,
		TransactionType:  txType,
		FraudProbability: probability,
		RiskLevel:        DetermineRiskLevel(probability, amount, ts.Hour()),
		CreatedAt:        time.Now(),
	}
}

// dedupeKey identifies the transaction an alert is about.
func (e Event) dedupeKey() string {
	if e.TransactionID != "" {
		return "txn:" + e.TransactionID
	}
	return fmt.Sprintf("raw:%s|%s|%.2f|%s", e.UserID, e.TransactionType, e.Amount, e.Timestamp.Format(time.RFC3339))
}
