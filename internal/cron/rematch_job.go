package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/closetrack-backend/pkg/logger"
)

const defaultRematchBatch = 100

// RematchJobParams configure the unmatched-payment rematch job.
type RematchJobParams struct {
	Logger   *logger.Logger
	Payments pendingRematcher
	Batch    int
}

type pendingRematcher interface {
	RematchPending(ctx context.Context, batch int) (int, error)
}

// NewRematchJob builds the job that re-scores pending payment reviews.
// Appointments often land after their payment; each cycle gives queued
// payments another chance to match automatically.
func NewRematchJob(params RematchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultRematchBatch
	}
	return &rematchJob{
		logg:     params.Logger,
		payments: params.Payments,
		batch:    batch,
	}, nil
}

type rematchJob struct {
	logg     *logger.Logger
	payments pendingRematcher
	batch    int
}

func (j *rematchJob) Name() string { return "payment-rematch" }

func (j *rematchJob) Run(ctx context.Context) error {
	matched, err := j.payments.RematchPending(ctx, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"batch":   j.batch,
		"matched": matched,
	})
	if err != nil {
		// Partial progress still counts; the error carries every item that
		// failed this cycle.
		j.logg.Error(logCtx, "rematch cycle finished with failures", err)
		return fmt.Errorf("payment rematch: %w", err)
	}
	j.logg.Info(logCtx, "rematch cycle complete")
	return nil
}
