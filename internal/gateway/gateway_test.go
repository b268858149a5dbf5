package gateway

import (
	"context"
	"testing"
	"time"
)

// countingGateway acknowledges every batch with an empty envelope.
type countingGateway struct {
	submits int
}

func (g *countingGateway) Submit(context.Context, *Batch) (*Envelope, error) {
	g.submits++
	return &Envelope{}, nil
}

func TestPacedDelaysBackToBackSubmits(t *testing.T) {
	inner := &countingGateway{}
	p := NewPaced(inner, 100*time.Millisecond)

	var slept []time.Duration
	p.sleep = func(d time.Duration) { slept = append(slept, d) }

	if _, err := p.Submit(context.Background(), NewBatch(0, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Submit(context.Background(), NewBatch(0, 0)); err != nil {
		t.Fatal(err)
	}

	if len(slept) != 1 {
		t.Fatalf("sleeps = %v, want only the second submit delayed", slept)
	}
	if slept[0] <= 0 || slept[0] > 100*time.Millisecond {
		t.Errorf("delay = %v, want within the pacing interval", slept[0])
	}
	if inner.submits != 2 {
		t.Errorf("submits = %d, want 2", inner.submits)
	}
}

func TestPacedSlotReservedBeforeSleeping(t *testing.T) {
	inner := &countingGateway{}
	p := NewPaced(inner, time.Minute)

	// A caller arriving while another is sleeping off its delay must be
	// able to reserve the next slot; the delay is served outside the lock.
	nested := false
	p.sleep = func(time.Duration) {
		if nested {
			return
		}
		nested = true
		if _, err := p.Submit(context.Background(), NewBatch(0, 0)); err != nil {
			t.Error(err)
		}
	}

	if _, err := p.Submit(context.Background(), NewBatch(0, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Submit(context.Background(), NewBatch(0, 0)); err != nil {
		t.Fatal(err)
	}
	if inner.submits != 3 {
		t.Errorf("submits = %d, want 3", inner.submits)
	}
}
