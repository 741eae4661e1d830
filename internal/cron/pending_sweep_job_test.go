package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minhtran/veloshop-backend/pkg/logger"
)

type stubSweeper struct {
	batches []int64
	err     error
	calls   int
	ttls    []time.Duration
}

func (s *stubSweeper) SweepStalePending(ctx context.Context, olderThan time.Duration, limit int) (int64, error) {
	s.calls++
	s.ttls = append(s.ttls, olderThan)
	if s.err != nil {
		return 0, s.err
	}
	if len(s.batches) == 0 {
		return 0, nil
	}
	swept := s.batches[0]
	s.batches = s.batches[1:]
	return swept, nil
}

func newSweepJob(t *testing.T, sweeper *stubSweeper, ttl time.Duration) Job {
	t.Helper()
	job, err := NewPendingSweepJob(PendingSweepJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Orders: sweeper,
		TTL:    ttl,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	return job
}

func TestPendingSweepJobDrainsBatches(t *testing.T) {
	sweeper := &stubSweeper{batches: []int64{sweepBatchSize, sweepBatchSize, 3}}
	job := newSweepJob(t, sweeper, 6*time.Hour)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.calls != 3 {
		t.Fatalf("expected 3 batches, got %d", sweeper.calls)
	}
	for _, ttl := range sweeper.ttls {
		if ttl != 6*time.Hour {
			t.Fatalf("expected configured ttl, got %s", ttl)
		}
	}
}

func TestPendingSweepJobStopsOnShortBatch(t *testing.T) {
	sweeper := &stubSweeper{batches: []int64{5}}
	job := newSweepJob(t, sweeper, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected single batch, got %d", sweeper.calls)
	}
	if sweeper.ttls[0] != defaultSweepTTL {
		t.Fatalf("expected default ttl, got %s", sweeper.ttls[0])
	}
}

func TestPendingSweepJobSurfacesErrors(t *testing.T) {
	sweeper := &stubSweeper{err: errors.New("db down")}
	job := newSweepJob(t, sweeper, time.Hour)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error")
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected sweep to stop after error, got %d calls", sweeper.calls)
	}
}

func TestNewPendingSweepJobValidation(t *testing.T) {
	if _, err := NewPendingSweepJob(PendingSweepJobParams{Orders: &stubSweeper{}}); err == nil {
		t.Fatal("expected logger requirement")
	}
	if _, err := NewPendingSweepJob(PendingSweepJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
	}); err == nil {
		t.Fatal("expected orders requirement")
	}
}
