package latch

import (
	"context"
	"testing"
	"time"
)

func TestZeroCountIsReleased(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait on zero-count latch: %v", err)
	}
}

func TestCountdown(t *testing.T) {
	l := New(3)

	released := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		released <- l.Wait(ctx)
	}()

	l.Done()
	l.Done()
	select {
	case <-released:
		t.Fatal("released before count reached zero")
	case <-time.After(20 * time.Millisecond):
	}

	l.Done()
	if err := <-released; err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestAddGrowsCount(t *testing.T) {
	l := New(1)
	l.Add(2)
	if got := l.Count(); got != 3 {
		t.Fatalf("Count = %d, want 3", got)
	}
	l.Done()
	l.Done()
	l.Done()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestExtraDoneIgnored(t *testing.T) {
	l := New(1)
	l.Done()
	l.Done() // past zero, ignored
	if got := l.Count(); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Wait = %v, want context.DeadlineExceeded", err)
	}
}

func TestAddAfterReleasePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for Add on released latch")
		}
	}()

	l := New(0)
	l.Add(1)
}
