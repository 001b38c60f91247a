// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package director

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cosnicolaou/director/directortelnet"
)

// Client is the amplifier surface the coordinator drives. It is satisfied
// by *directortelnet.Client.
type Client interface {
	GetSystemStatus(ctx context.Context) (*directortelnet.SystemStatus, error)
	SetOutputPower(ctx context.Context, out directortelnet.OutputID, on bool) error
	SetOutputVolume(ctx context.Context, out directortelnet.OutputID, volume int) error
	MapInputToOutput(ctx context.Context, in directortelnet.InputID, out directortelnet.OutputID) error
	Close() error
}

var _ Client = (*directortelnet.Client)(nil)

// DialFunc yields a connected client. The coordinator dials per operation
// and closes the client when the operation completes.
type DialFunc func(ctx context.Context) (Client, error)

// Snapshot is the outcome of one poll. On failure Status is nil and Err
// records the cause; entities derived from a failed snapshot are
// unavailable until a later poll succeeds.
type Snapshot struct {
	Status *directortelnet.SystemStatus
	Err    error
	At     time.Time
}

func (s Snapshot) OK() bool {
	return s.Err == nil && s.Status != nil
}

// Listener is notified after every completed poll.
type Listener func(Snapshot)

// Coordinator periodically fetches the amplifier status and fans the
// outcome out to listeners. Commands pass through it so that they share
// the poll's dialing and timeout behavior. Each poll is a single attempt;
// there is no retry within a cycle.
type Coordinator struct {
	dial     DialFunc
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	last      Snapshot
	listeners []Listener
}

func NewCoordinator(dial DialFunc, poll PollConfig, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	interval := time.Duration(poll.Interval)
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := time.Duration(poll.Timeout)
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Coordinator{
		dial:     dial,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("protocol", "director"),
	}
}

// AddListener registers l for snapshot notifications. Listeners are
// invoked sequentially on the polling goroutine.
func (c *Coordinator) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Last returns the most recent snapshot, which is the zero Snapshot before
// the first poll completes.
func (c *Coordinator) Last() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Refresh performs one poll, records the snapshot and notifies listeners.
func (c *Coordinator) Refresh(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	status, err := c.fetch(ctx)
	snap := Snapshot{Status: status, Err: err, At: time.Now()}
	if err != nil {
		snap.Status = nil
		c.logger.Warn("status poll failed", "err", err)
	}
	c.mu.Lock()
	c.last = snap
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()
	for _, l := range listeners {
		l(snap)
	}
	return snap
}

func (c *Coordinator) fetch(ctx context.Context) (*directortelnet.SystemStatus, error) {
	client, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer client.Close()
	return client.GetSystemStatus(ctx)
}

// Run polls at the configured interval until ctx is canceled and returns
// the cancellation cause. Callers wanting an immediate first poll call
// Refresh before Run.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}

// SetOutputPower turns an output on or off.
func (c *Coordinator) SetOutputPower(ctx context.Context, out directortelnet.OutputID, on bool) error {
	return c.command(ctx, func(ctx context.Context, client Client) error {
		return client.SetOutputPower(ctx, out, on)
	})
}

// SetOutputVolume sets an output's volume on the device scale.
func (c *Coordinator) SetOutputVolume(ctx context.Context, out directortelnet.OutputID, volume int) error {
	return c.command(ctx, func(ctx context.Context, client Client) error {
		return client.SetOutputVolume(ctx, out, volume)
	})
}

// SetOutputSource routes a matrix input to an output.
func (c *Coordinator) SetOutputSource(ctx context.Context, out directortelnet.OutputID, in directortelnet.InputID) error {
	return c.command(ctx, func(ctx context.Context, client Client) error {
		return client.MapInputToOutput(ctx, in, out)
	})
}

func (c *Coordinator) command(ctx context.Context, op func(context.Context, Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	client, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()
	return op(ctx, client)
}
