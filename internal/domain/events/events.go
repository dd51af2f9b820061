// Package events defines domain events published through the transactional outbox.
package events

import (
	"context"

	"tally/internal/core/id"
)

// Event types.
const (
	InvoiceApproved         = "InvoiceApproved"
	InvoicePaymentRecorded  = "InvoicePaymentRecorded"
	InvoiceReversed         = "InvoiceReversed"
	InvoiceStatusOverridden = "InvoiceStatusOverridden"
	SaleRecorded            = "SaleRecorded"
	SaleCancelled           = "SaleCancelled"
	TransferRecorded        = "TransferRecorded"
	TransactionRecorded     = "TransactionRecorded"
	TransactionUpdated      = "TransactionUpdated"
	TransactionCancelled    = "TransactionCancelled"
)

// Event is one fact to hand to downstream consumers.
type Event struct {
	CompanyID     id.ID
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher writes events within the caller's unit of work, so an event is
// stored if and only if the surrounding transaction commits.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
