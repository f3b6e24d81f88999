package blockchain

import (
	"strings"
)

// Transaction records one state change of a tracked subject.
type Transaction struct {
	// Subject identifies the tracked entity, a serial code.
	Subject string
	// RecordedValue is the state recorded for the subject.
	RecordedValue string
	// Actor is the role or account that produced the change.
	Actor string
}

// NewTransaction builds a ledger entry. Only the subject is mandatory.
func NewTransaction(subject, recordedValue, actor string) (Transaction, error) {
	if strings.TrimSpace(subject) == "" {
		return Transaction{}, ErrEmptySubject
	}
	return Transaction{
		Subject:       subject,
		RecordedValue: recordedValue,
		Actor:         actor,
	}, nil
}

func copyTransactions(txs []Transaction) []Transaction {
	c := make([]Transaction, len(txs))
	copy(c, txs)
	return c
}
