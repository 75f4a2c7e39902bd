package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSubmit_ReturnsResultThroughFuture(t *testing.T) {
	p := New(2, 4)
	defer p.Shutdown(context.Background())

	fut, err := Submit(p, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	val, err := fut.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
}

func TestSubmit_PropagatesTaskError(t *testing.T) {
	p := New(1, 1)
	defer p.Shutdown(context.Background())

	boom := errors.New("boom")
	fut, err := Submit(p, func(ctx context.Context) (string, error) {
		return "", boom
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fut.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := New(2, 8)
	defer p.Shutdown(context.Background())

	running := make(chan struct{}, 8)
	release := make(chan struct{})

	for i := 0; i < 4; i++ {
		_, err := Submit(p, func(ctx context.Context) (struct{}, error) {
			running <- struct{}{}
			<-release
			return struct{}{}, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if len(running) != 2 {
		t.Fatalf("expected exactly 2 concurrently running tasks, got %d", len(running))
	}
	close(release)
}

func TestSubmit_AfterShutdownFails(t *testing.T) {
	p := New(1, 1)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := Submit(p, func(ctx context.Context) (int, error) { return 0, nil })
	if !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestFuture_WaitRespectsContext(t *testing.T) {
	p := New(1, 1)
	defer p.Shutdown(context.Background())

	block := make(chan struct{})
	fut, err := Submit(p, func(ctx context.Context) (int, error) {
		<-block
		return 1, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := fut.Wait(ctx); err == nil {
		t.Fatal("expected wait to time out")
	}
	close(block)
}
