package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.Record(errors.New("fail"))
		if b.Tripped() {
			t.Fatalf("tripped too early after %d failures", i+1)
		}
	}
	b.Record(errors.New("fail"))
	if !b.Tripped() {
		t.Fatal("expected breaker to trip after threshold")
	}
	if err := b.Allow(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBreaker_SuccessResets(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	b.Record(errors.New("fail"))
	b.Record(errors.New("fail"))
	b.Record(nil)
	b.Record(errors.New("fail"))
	b.Record(errors.New("fail"))
	if b.Tripped() {
		t.Fatal("success should have reset the failure count")
	}
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Record(errors.New("fail"))
	if err := b.Allow(); err == nil {
		t.Fatal("expected rejection while tripped")
	}

	now = now.Add(2 * time.Minute)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe to be allowed after cooldown, got %v", err)
	}

	b.Record(nil)
	if b.Tripped() {
		t.Fatal("successful probe should close the breaker")
	}
}
