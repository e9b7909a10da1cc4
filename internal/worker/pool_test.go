package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newshunter/internal/domain"
)

func TestPoolRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	capture := func(_ context.Context, _ domain.CandidateLink) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("still failing")
		}
		close(done)
		return nil
	}

	p := New(capture, Options{Workers: 1, MaxRetries: 5})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Submit(domain.CandidateLink{URL: "https://example.com/r-1.htm"}, 0)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task never succeeded")
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestPoolDropsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := 0
	capture := func(_ context.Context, _ domain.CandidateLink) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("permanent problem")
	}

	dropped := make(chan domain.CandidateLink, 1)
	p := New(capture, Options{
		Workers:    1,
		MaxRetries: 2,
		OnDrop: func(link domain.CandidateLink, err error) {
			dropped <- link
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Submit(domain.CandidateLink{URL: "https://example.com/d-1.htm"}, 0)

	select {
	case link := <-dropped:
		if link.URL != "https://example.com/d-1.htm" {
			t.Errorf("dropped link = %q", link.URL)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("task never dropped")
	}
	mu.Lock()
	defer mu.Unlock()
	// First attempt plus MaxRetries.
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestPoolPriorityOrder(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	capture := func(_ context.Context, link domain.CandidateLink) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, link.URL)
		if len(order) == 3 {
			close(done)
		}
		return nil
	}

	p := New(capture, Options{Workers: 1})
	p.Submit(domain.CandidateLink{URL: "low"}, 20)
	p.Submit(domain.CandidateLink{URL: "high"}, 0)
	p.Submit(domain.CandidateLink{URL: "mid"}, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks never drained")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"high", "mid", "low"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestPoolAttemptTimeout(t *testing.T) {
	t.Parallel()

	dropped := make(chan struct{})
	capture := func(ctx context.Context, _ domain.CandidateLink) error {
		<-ctx.Done()
		return ctx.Err()
	}

	p := New(capture, Options{
		Workers:     1,
		MaxRetries:  1,
		TaskTimeout: 20 * time.Millisecond,
		OnDrop:      func(domain.CandidateLink, error) { close(dropped) },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Submit(domain.CandidateLink{URL: "https://example.com/slow-1.htm"}, 0)

	select {
	case <-dropped:
	case <-time.After(5 * time.Second):
		t.Fatal("hung task never timed out")
	}
}

func TestPoolStopsOnCancel(t *testing.T) {
	t.Parallel()

	p := New(func(context.Context, domain.CandidateLink) error { return nil }, Options{Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())

	finished := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(finished)
	}()

	cancel()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop on cancel")
	}
}
