package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"leavedesk/internal/domain/leave"
)

// Recorder appends leave request audit records. It exposes no way to change or remove one.
type Recorder struct {
	now   func() time.Time
	newID func() string
}

type Option func(*Recorder)

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Recorder) { r.newID = newID }
}

func New(opts ...Option) *Recorder {
	r := &Recorder{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Append(ctx context.Context, tx leave.AuditStore, e leave.AuditEntry) (leave.AuditRecord, error) {
	if e.RequestID == "" {
		return leave.AuditRecord{}, fmt.Errorf("audit: request id is required")
	}
	if !e.Action.Valid() {
		return leave.AuditRecord{}, fmt.Errorf("audit: unknown action %q", e.Action)
	}
	if !e.NewStatus.Valid() || (e.OldStatus != "" && !e.OldStatus.Valid()) {
		return leave.AuditRecord{}, fmt.Errorf("audit: invalid status %q -> %q", e.OldStatus, e.NewStatus)
	}
	rec := leave.AuditRecord{
		ID:        r.newID(),
		RequestID: e.RequestID,
		Action:    e.Action,
		ActorID:   e.ActorID,
		OldStatus: e.OldStatus,
		NewStatus: e.NewStatus,
		Comment:   strings.TrimSpace(e.Comment),
		CreatedAt: r.now(),
	}
	if err := tx.InsertAudit(ctx, rec); err != nil {
		return leave.AuditRecord{}, err
	}
	return rec, nil
}

// Trail returns a request's records newest first.
func (r *Recorder) Trail(ctx context.Context, tx leave.AuditStore, requestID string) ([]leave.AuditRecord, error) {
	records, err := tx.AuditTrail(ctx, requestID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
