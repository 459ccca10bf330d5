package cron

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/multierr"

	"github.com/angelmondragon/closetrack-backend/pkg/logger"
)

type fakeRematcher struct {
	batches []int
	matched int
	err     error
}

func (f *fakeRematcher) RematchPending(_ context.Context, batch int) (int, error) {
	f.batches = append(f.batches, batch)
	return f.matched, f.err
}

func TestRematchJobPassesConfiguredBatch(t *testing.T) {
	rematcher := &fakeRematcher{matched: 3}
	job, err := NewRematchJob(RematchJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Payments: rematcher,
		Batch:    25,
	})
	if err != nil {
		t.Fatalf("NewRematchJob: %v", err)
	}
	if job.Name() != "payment-rematch" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rematcher.batches) != 1 || rematcher.batches[0] != 25 {
		t.Fatalf("expected one call with batch 25, got %v", rematcher.batches)
	}
}

func TestRematchJobDefaultsBatch(t *testing.T) {
	rematcher := &fakeRematcher{}
	job, err := NewRematchJob(RematchJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Payments: rematcher,
	})
	if err != nil {
		t.Fatalf("NewRematchJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rematcher.batches[0] != defaultRematchBatch {
		t.Fatalf("expected default batch %d, got %d", defaultRematchBatch, rematcher.batches[0])
	}
}

func TestRematchJobSurfacesPartialFailures(t *testing.T) {
	rematcher := &fakeRematcher{
		matched: 1,
		err:     multierr.Combine(errors.New("item a"), errors.New("item b")),
	}
	job, err := NewRematchJob(RematchJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Payments: rematcher,
	})
	if err != nil {
		t.Fatalf("NewRematchJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("per-item failures should fail the cycle")
	}
}
