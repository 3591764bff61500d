package call

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"voice-call-orchestrator/internal/observability/metrics"
)

// Campaign dials a list of numbers strictly one at a time, pausing
// between calls so the agent pool and the carrier are never hit with a
// burst.
type Campaign struct {
	initiator *Initiator
	delay     time.Duration
	metrics   *metrics.Metrics
}

// NewCampaign creates a campaign sequencer over an initiator.
func NewCampaign(initiator *Initiator, delay time.Duration) *Campaign {
	return &Campaign{
		initiator: initiator,
		delay:     delay,
		metrics:   metrics.DefaultMetrics,
	}
}

// Run places one call per number, in order. A failed call never stops
// the campaign. The inter-call delay applies between calls, not after
// the last one. Cancellation stops the sequence and returns the results
// collected so far.
func (c *Campaign) Run(ctx context.Context, numbers []string, tenantID string) []Result {
	results := make([]Result, 0, len(numbers))

	log.Info().
		Str("component", "campaign").
		Int("numbers", len(numbers)).
		Dur("delay", c.delay).
		Msg("Campaign started")

	for idx, number := range numbers {
		if ctx.Err() != nil {
			log.Warn().
				Str("component", "campaign").
				Int("placed", len(results)).
				Msg("Campaign canceled")
			return results
		}

		result := c.initiator.PlaceCall(ctx, Request{PhoneNumber: number, TenantID: tenantID})
		results = append(results, result)
		c.metrics.CampaignCalls.WithLabelValues(result.Status).Inc()

		if idx < len(numbers)-1 {
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				log.Warn().
					Str("component", "campaign").
					Int("placed", len(results)).
					Msg("Campaign canceled during delay")
				return results
			}
		}
	}

	var succeeded int
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	log.Info().
		Str("component", "campaign").
		Int("total", len(results)).
		Int("succeeded", succeeded).
		Msg("Campaign finished")
	return results
}
