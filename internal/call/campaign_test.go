package call

import (
	"context"
	"testing"
	"time"
)

func TestCampaign_SequentialWithDelay(t *testing.T) {
	h := newInitiatorHarness(t)
	i := h.initiator(InitiatorConfig{})
	c := NewCampaign(i, 50*time.Millisecond)

	numbers := []string{"+15550001111", "+15550002222", "+15550003333"}
	start := time.Now()
	results := c.Run(context.Background(), numbers, "tenant-1")
	elapsed := time.Since(start)

	if len(results) != len(numbers) {
		t.Fatalf("expected %d results, got %d", len(numbers), len(results))
	}
	for idx, r := range results {
		if r.PhoneNumber != numbers[idx] {
			t.Errorf("result %d out of order: %s", idx, r.PhoneNumber)
		}
		if !r.Succeeded() {
			t.Errorf("call %d failed: %s", idx, r.Error)
		}
	}
	// Two inter-call delays for three calls; none after the last.
	if elapsed < 100*time.Millisecond {
		t.Errorf("expected at least two delays, elapsed %v", elapsed)
	}
}

func TestCampaign_FailureDoesNotStopSequence(t *testing.T) {
	h := newInitiatorHarness(t)
	i := h.initiator(InitiatorConfig{})
	c := NewCampaign(i, time.Millisecond)

	// The middle number has no country code and is rejected by the
	// carrier.
	numbers := []string{"+15550001111", "5550002222", "+15550003333"}
	results := c.Run(context.Background(), numbers, "")

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Succeeded() || !results[2].Succeeded() {
		t.Error("expected surrounding calls to succeed")
	}
	if results[1].Succeeded() {
		t.Error("expected middle call to fail")
	}
}

func TestCampaign_CancelStopsEarly(t *testing.T) {
	h := newInitiatorHarness(t)
	i := h.initiator(InitiatorConfig{})
	c := NewCampaign(i, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan []Result, 1)
	go func() {
		done <- c.Run(ctx, []string{"+15550001111", "+15550002222"}, "")
	}()

	// Cancel during the inter-call delay.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case results := <-done:
		if len(results) != 1 {
			t.Errorf("expected 1 result before cancellation, got %d", len(results))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("campaign did not stop after cancel")
	}
}

func TestCampaign_EmptyList(t *testing.T) {
	h := newInitiatorHarness(t)
	c := NewCampaign(h.initiator(InitiatorConfig{}), time.Millisecond)

	results := c.Run(context.Background(), nil, "")
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
