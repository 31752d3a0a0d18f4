package waveexec

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conductor-core/conductor-core/internal/models"
	"github.com/conductor-core/conductor-core/internal/storelock"
)

const activityLogFile = "activity_stream.md"

// ActivityLog appends ActivityEvents to activity_stream.md through the
// Durable Store's rotation-aware append, rendering each event as a
// single markdown bullet line so the file stays human-readable (spec
// §3/§6).
type ActivityLog struct {
	store    *storelock.Store
	maxBytes int64
	clock    func() time.Time
}

// NewActivityLog returns an ActivityLog writing through store, rotating
// at maxBytes.
func NewActivityLog(store *storelock.Store, maxBytes int64) *ActivityLog {
	return &ActivityLog{store: store, maxBytes: maxBytes, clock: time.Now}
}

// Record appends a single event.
func (a *ActivityLog) Record(ctx context.Context, kind string, payload map[string]any) error {
	event := models.ActivityEvent{Timestamp: a.now(), EventKind: kind, Payload: payload}
	line, err := renderEvent(event)
	if err != nil {
		return err
	}
	return a.store.WithLock(ctx, activityLogFile, func() error {
		return a.store.AppendWithRotation(activityLogFile, line, a.maxBytes)
	})
}

// RecordCheckpoint satisfies checkpoint.ActivityRecorder.
func (a *ActivityLog) RecordCheckpoint(ctx context.Context, commitID, message string) error {
	return a.Record(ctx, "checkpoint", map[string]any{"commit_id": commitID, "message": message})
}

func (a *ActivityLog) now() time.Time {
	if a.clock != nil {
		return a.clock()
	}
	return time.Now()
}

func renderEvent(event models.ActivityEvent) (string, error) {
	var payload string
	if len(event.Payload) > 0 {
		b, err := json.Marshal(event.Payload)
		if err != nil {
			return "", fmt.Errorf("marshal activity event payload: %w", err)
		}
		payload = " " + string(b)
	}
	return fmt.Sprintf("- %s %s%s", event.Timestamp.UTC().Format(time.RFC3339), event.EventKind, payload), nil
}
