package vpn

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Timing for the stop/start reconnect cycle.
const (
	DefaultStopWait  = 2 * time.Second
	DefaultStartWait = 5 * time.Second
	DefaultBaseDelay = 5 * time.Second
	DefaultMaxDelay  = 60 * time.Second
)

// Controller reconnects one tunnel with retry pacing. All waits honor the
// caller's context.
type Controller struct {
	client *Client
	state  *ReconnectState

	stopWait  time.Duration
	startWait time.Duration
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewController wires a controller around a control client and guard state.
func NewController(client *Client, state *ReconnectState) *Controller {
	if state == nil {
		state = NewReconnectState(0, 0)
	}
	return &Controller{
		client:    client,
		state:     state,
		stopWait:  DefaultStopWait,
		startWait: DefaultStartWait,
		baseDelay: DefaultBaseDelay,
		maxDelay:  DefaultMaxDelay,
	}
}

// Reconnect cycles the tunnel: stop, wait, start, wait, verify. The guard
// is consulted first, so concurrent calls collapse into one attempt. The
// attempt counter only resets when the tunnel verifies as running.
func (c *Controller) Reconnect(ctx context.Context) error {
	attempt, err := c.state.Begin()
	if err != nil {
		return err
	}

	// First attempt goes immediately, retries back off exponentially.
	if attempt > 1 {
		delay := c.backoff(attempt)
		log.Printf("vpn: reconnect attempt %d, backing off %s", attempt, delay)
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}

	if err := c.cycle(ctx); err != nil {
		return err
	}
	c.state.Succeed()
	return nil
}

// cycle runs the stop, wait, start, wait, verify sequence without touching
// the guard. Rotation calls it directly: its settings only take effect on a
// restart, and the rotation path has already consumed the guard with the
// reconnect attempt that preceded it.
func (c *Controller) cycle(ctx context.Context) error {
	if err := c.client.SetStatus(ctx, StatusStopped); err != nil {
		return fmt.Errorf("vpn: stop tunnel: %w", err)
	}
	if err := sleepCtx(ctx, c.stopWait); err != nil {
		return err
	}
	if err := c.client.SetStatus(ctx, StatusRunning); err != nil {
		return fmt.Errorf("vpn: start tunnel: %w", err)
	}
	if err := sleepCtx(ctx, c.startWait); err != nil {
		return err
	}

	status, err := c.client.Status(ctx)
	if err != nil {
		return fmt.Errorf("vpn: verify tunnel: %w", err)
	}
	if status != StatusRunning {
		return fmt.Errorf("vpn: tunnel did not come back, status %q", status)
	}

	if ip, err := c.client.PublicIP(ctx); err == nil {
		log.Printf("vpn: reconnected, egress ip %s", ip)
	}
	return nil
}

// backoff returns min(baseDelay * 2^(attempt-1), maxDelay) for attempt >= 2.
func (c *Controller) backoff(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
