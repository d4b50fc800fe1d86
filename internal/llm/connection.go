package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const connectionPrompt = `Say "OK" and nothing else.`

// ConnectionResult is the outcome of a connectivity probe. Success means the
// provider answered; ReplyOK additionally means the answer contained "ok".
type ConnectionResult struct {
	Success   bool
	ReplyOK   bool
	Message   string
	LatencyMs int64
}

// TestConnection builds the provider for cfg and probes it.
func TestConnection(ctx context.Context, cfg Config) ConnectionResult {
	p, err := New(cfg)
	if err != nil {
		return ConnectionResult{Success: false, Message: err.Error()}
	}
	return Probe(ctx, p)
}

// Probe sends a trivial prompt and measures the round trip.
func Probe(ctx context.Context, p Provider) ConnectionResult {
	start := time.Now()
	reply, err := p.Query(ctx, connectionPrompt)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return ConnectionResult{Success: false, Message: err.Error()}
	}

	if strings.Contains(strings.ToLower(reply), "ok") {
		return ConnectionResult{
			Success:   true,
			ReplyOK:   true,
			Message:   fmt.Sprintf("Connection successful (%dms)", latency),
			LatencyMs: latency,
		}
	}
	return ConnectionResult{
		Success:   true,
		Message:   fmt.Sprintf("Connection successful but unexpected response (%dms)", latency),
		LatencyMs: latency,
	}
}
