package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler(context.Background())

	var ok, failing atomic.Int32
	if err := s.Add("ok", "@every 1s", func(context.Context) error {
		ok.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add("failing", "@every 1s", func(context.Context) error {
		failing.Add(1)
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	s.Start()
	deadline := time.Now().Add(5 * time.Second)
	for ok.Load() < 2 || failing.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("jobs did not keep running: ok=%d failing=%d", ok.Load(), failing.Load())
		}
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()
}

func TestScheduler_Add(t *testing.T) {
	s := NewScheduler(context.Background())
	noop := func(context.Context) error { return nil }

	if err := s.Add("bad", "every minute", noop); err == nil {
		t.Error("expected error for invalid spec")
	}
	if err := s.Add("disabled", "", noop); err != nil {
		t.Errorf("empty spec should disable the job: %v", err)
	}
	if err := s.Add("daily", "@daily", noop); err != nil {
		t.Errorf("Add failed: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 scheduled job, got %d", s.Len())
	}
}

func TestScheduler_SkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScheduler(ctx)
	var runs atomic.Int32
	if err := s.Add("job", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	s.Start()
	time.Sleep(1500 * time.Millisecond)
	s.Stop()

	if runs.Load() != 0 {
		t.Errorf("job ran %d times after cancellation", runs.Load())
	}
}
