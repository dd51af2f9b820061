// Package audit records who changed what on the lifecycle operations that
// bypass or reverse normal posting.
package audit

import (
	"context"

	appctx "tally/internal/core/context"
	"tally/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionApprove   Action = "approve"
	ActionCancel    Action = "cancel"
	ActionSetStatus Action = "set_status"
	ActionAdjust    Action = "adjust"
)

// SystemActor is recorded when no user is present in context (batch jobs).
const SystemActor = "system"

// Record is one audit log entry.
type Record struct {
	CompanyID  id.ID
	EntityType string
	EntityID   id.ID
	Action     Action
	UserID     string
	Changes    map[string]any
}

// Recorder persists audit records within the caller's unit of work.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Actor returns the user ID from context or SystemActor.
func Actor(ctx context.Context) string {
	if userID := appctx.GetUserID(ctx); userID != "" {
		return userID
	}
	return SystemActor
}

// Enrich fills UserID from context when the caller left it empty.
func Enrich(ctx context.Context, rec Record) Record {
	if rec.UserID == "" {
		rec.UserID = Actor(ctx)
	}
	return rec
}

// Nop discards audit records.
type Nop struct{}

func (Nop) Record(context.Context, Record) error { return nil }
