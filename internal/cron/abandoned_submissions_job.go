package cron

import (
	"context"
	"fmt"
	"time"
)

const defaultAbandonedAfter = 15 * time.Minute

type queuedAbandoner interface {
	AbandonQueued(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type abandonedSubmissionsJob struct {
	ledger queuedAbandoner
	after  time.Duration
	batch  int
	now    func() time.Time
}

// NewAbandonedSubmissionsJob fails submissions that stayed queued longer than after. A healthy
// request resolves its row within the remote call timeout, so anything older lost its process.
func NewAbandonedSubmissionsJob(ledger queuedAbandoner, after time.Duration, batch int) (Job, error) {
	if ledger == nil {
		return nil, fmt.Errorf("submission ledger required")
	}
	if after <= 0 {
		after = defaultAbandonedAfter
	}
	return &abandonedSubmissionsJob{ledger: ledger, after: after, batch: batch, now: time.Now}, nil
}

func (j *abandonedSubmissionsJob) Name() string { return "abandoned-submissions" }

func (j *abandonedSubmissionsJob) Run(ctx context.Context) (int64, error) {
	n, err := j.ledger.AbandonQueued(ctx, j.now().UTC().Add(-j.after), j.batch)
	if err != nil {
		return int64(n), fmt.Errorf("abandon queued submissions: %w", err)
	}
	return int64(n), nil
}
