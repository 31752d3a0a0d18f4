// Package checkpoint implements the Checkpoint Coordinator (spec §4.7):
// a single exclusive lock serializing wave-level checkpoints against
// mid-wave micro-checkpoints, committing atomically through an external
// version-control collaborator.
//
// Grounded on the teacher's internal/executor/git_checkpointer.go
// (GitCheckpointer interface, DefaultGitCheckpointer using
// exec.CommandContext / an injectable CommandRunner).
package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-core/conductor-core/internal/execerrors"
	"github.com/conductor-core/conductor-core/internal/storelock"
)

const lockFileName = "checkpoint.lock"

// DefaultMicroCheckpointWait is spec §4.7/§9's "blocks up to 30 seconds,
// then returns CheckpointBusy".
const DefaultMicroCheckpointWait = 30 * time.Second

// VCSCollaborator is the external version-control system the Checkpoint
// Coordinator commits through. Modeled on the teacher's GitCheckpointer,
// narrowed to the operations a checkpoint commit actually needs.
type VCSCollaborator interface {
	// Stage records the given paths for the next commit.
	Stage(ctx context.Context, paths []string) error
	// Commit creates a commit with message and returns its identifier
	// (e.g. a git SHA).
	Commit(ctx context.Context, message string) (string, error)
	// Rollback discards whatever Stage added since the last commit.
	Rollback(ctx context.Context) error
}

// ActivityRecorder is the subset of the Durable Store's activity log the
// coordinator needs: recording the commit identifier after a successful
// checkpoint (spec §4.7).
type ActivityRecorder interface {
	RecordCheckpoint(ctx context.Context, commitID, message string) error
}

// Coordinator serializes every checkpoint request — wave-level and
// micro — behind a single exclusive lock file.
type Coordinator struct {
	lockPath            string
	vcs                 VCSCollaborator
	activity            ActivityRecorder
	microCheckpointWait time.Duration
}

// WithMicroCheckpointWait overrides the default 30-second micro-checkpoint
// wait (tests use this to avoid a real 30-second block).
func (c *Coordinator) WithMicroCheckpointWait(d time.Duration) *Coordinator {
	c.microCheckpointWait = d
	return c
}

// New returns a Coordinator whose lock file lives in dir.
func New(dir string, vcs VCSCollaborator, activity ActivityRecorder) *Coordinator {
	return &Coordinator{
		lockPath:            filepath.Join(dir, lockFileName),
		vcs:                 vcs,
		activity:            activity,
		microCheckpointWait: DefaultMicroCheckpointWait,
	}
}

// Request describes what a checkpoint commit should stage and name.
type Request struct {
	Paths   []string
	Message string
}

// PreflightLock acquires the coordinator lock in shared mode, per spec
// §4.5 step 1 ("acquire the checkpoint coordinator lock in shared
// mode"): any number of wave pre-flights may hold it concurrently, but
// none can proceed while a WaveCheckpoint/MicroCheckpoint holds the
// exclusive lock. The caller must invoke the returned release func.
func (c *Coordinator) PreflightLock(ctx context.Context, timeout time.Duration) (func() error, error) {
	lock := storelock.NewFileLock(c.lockPath)
	if err := lock.RLockTimeout(ctx, timeout); err != nil {
		return nil, err
	}
	return lock.Unlock, nil
}

// WaveCheckpoint performs a wave-boundary checkpoint: blocks until the
// exclusive lock is acquired (bounded by ctx), stages paths, commits,
// and records the commit ID to the activity log. On commit failure the
// staged changes are rolled back.
func (c *Coordinator) WaveCheckpoint(ctx context.Context, timeout time.Duration, req Request) (string, error) {
	lock := storelock.NewFileLock(c.lockPath)
	if err := lock.LockTimeout(ctx, timeout); err != nil {
		return "", err
	}
	defer lock.Unlock()

	return c.commit(ctx, req)
}

// MicroCheckpoint performs an opportunistic mid-wave checkpoint. If a
// wave checkpoint already holds the lock, it waits up to the coordinator's
// micro-checkpoint wait (30 seconds unless set with WithMicroCheckpointWait); if
// the wave checkpoint hasn't released the lock by then, it returns
// CheckpointBusy without touching the working tree (spec §4.7/§9).
func (c *Coordinator) MicroCheckpoint(ctx context.Context, req Request) (string, error) {
	lock := storelock.NewFileLock(c.lockPath)
	if err := lock.LockTimeout(ctx, c.microCheckpointWait); err != nil {
		if execerrors.Is(err, execerrors.KindStateConflict) {
			return "", execerrors.CheckpointBusy()
		}
		return "", err
	}
	defer lock.Unlock()

	return c.commit(ctx, req)
}

func (c *Coordinator) commit(ctx context.Context, req Request) (string, error) {
	if err := c.vcs.Stage(ctx, req.Paths); err != nil {
		_ = c.vcs.Rollback(ctx)
		return "", execerrors.IOError("checkpoint", "failed to stage checkpoint paths", err)
	}

	commitID, err := c.vcs.Commit(ctx, req.Message)
	if err != nil {
		_ = c.vcs.Rollback(ctx)
		return "", execerrors.IOError("checkpoint", "failed to commit checkpoint", err)
	}

	if c.activity != nil {
		_ = c.activity.RecordCheckpoint(ctx, commitID, req.Message)
	}
	return commitID, nil
}

// NewCommitMessage builds a checkpoint commit message carrying a
// correlation ID, mirroring the teacher's use of uuid for correlating
// artifacts across the activity log and the git history.
func NewCommitMessage(kind, subject string) string {
	return fmt.Sprintf("checkpoint(%s): %s [%s]", kind, subject, uuid.NewString()[:8])
}
