// Package journal records every mutation the storefront pushes to the
// remote store: optimistic cart writes, their rollbacks, checkouts and
// order status changes.
//
// Each entry is immutable and carries the OpenTelemetry trace and span ids
// active when it was written, so a row can be correlated with the trace of
// the request that caused it.
package journal

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusFailed       Status = "FAILED"
)

type Entry struct {
	// Subject is the user id for cart operations or the order id for
	// status changes.
	Subject string

	// Operation names the protocol, e.g. "cart.add" or "order.status".
	Operation string

	Status Status

	// Step is the step that just ran or failed.
	Step string

	// Payload is the JSON input of the operation, written on STARTED only.
	Payload string

	// Errors is a JSON array of failure messages.
	Errors string

	TraceID string
	SpanID  string

	RecordedAt time.Time
}

// Repository persists entries. Save appends; it never updates.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
}

// Reader is implemented by repositories that can read entries back.
type Reader interface {
	// List returns up to limit entries for subject, newest first.
	List(ctx context.Context, subject string, limit int) ([]Entry, error)
}

// NewEntry builds an entry recorded at at and stamped with the trace info
// found in ctx.
func NewEntry(ctx context.Context, at time.Time, subject, operation string, status Status, step, payload string, errs []string) *Entry {
	sc := trace.SpanContextFromContext(ctx)

	errJSON := "[]"
	if len(errs) > 0 {
		if b, err := json.Marshal(errs); err == nil {
			errJSON = string(b)
		}
	}

	e := &Entry{
		Subject:    subject,
		Operation:  operation,
		Status:     status,
		Step:       step,
		Payload:    payload,
		Errors:     errJSON,
		RecordedAt: at.UTC(),
	}
	if sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}
