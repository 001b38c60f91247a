// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package director_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cosnicolaou/director/director"
	"github.com/cosnicolaou/director/directortelnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePublisher records published messages and captures the command
// subscription.
type fakePublisher struct {
	mu        sync.Mutex
	published []director.Message
	filter    string
	handler   func(topic string, payload []byte)
}

func (p *fakePublisher) Publish(topic string, payload []byte, retain bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, director.Message{Topic: topic, Payload: string(payload), Retain: retain})
	return nil
}

func (p *fakePublisher) Subscribe(filter string, handler func(topic string, payload []byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = filter
	p.handler = handler
	return nil
}

func (p *fakePublisher) subscription() (string, func(topic string, payload []byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filter, p.handler
}

func (p *fakePublisher) messages() []director.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.published)
}

// payload returns the most recently published payload for topic.
func (p *fakePublisher) payload(topic string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.published) - 1; i >= 0; i-- {
		if p.published[i].Topic == topic {
			return p.published[i].Payload, true
		}
	}
	return "", false
}

type bridgeFixture struct {
	pub    *fakePublisher
	coord  *director.Coordinator
	cancel context.CancelFunc
	done   chan error
}

// startBridge runs a bridge over fake transport and returns once startup
// has completed. The poll interval is an hour so that tests trigger polls
// explicitly via the coordinator.
func startBridge(t *testing.T, fake *fakeClient) *bridgeFixture {
	t.Helper()
	cfg, err := director.ParseConfig([]byte(minimalConfig))
	require.NoError(t, err)
	cfg.Poll.Interval = director.Duration(time.Hour)
	dial := func(ctx context.Context) (director.Client, error) { return fake, nil }
	coord := director.NewCoordinator(dial, cfg.Poll, nil)
	pub := &fakePublisher{}
	bridge := director.NewBridge(cfg, coord, pub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	f := &bridgeFixture{pub: pub, coord: coord, cancel: cancel, done: make(chan error, 1)}
	go func() { f.done <- bridge.Run(ctx) }()
	// The initial snapshot is published after the command subscription, so
	// waiting for both outputs' state means startup is complete.
	require.Eventually(t, func() bool {
		if _, handler := pub.subscription(); handler == nil {
			return false
		}
		_, ok1 := pub.payload("directord/amp1/output/1/source/state")
		_, ok2 := pub.payload("directord/amp1/output/2/source/state")
		return ok1 && ok2
	}, 5*time.Second, 10*time.Millisecond)
	return f
}

func (f *bridgeFixture) stop(t *testing.T) {
	t.Helper()
	f.cancel()
	select {
	case err := <-f.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Error("bridge did not stop")
	}
}

func TestBridgeRun(t *testing.T) {
	fake := &fakeClient{}
	f := startBridge(t, fake)

	// Discovery is announced before any state is published.
	msgs := f.pub.messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "homeassistant/binary_sensor/amp1/connectivity/config", msgs[0].Topic)
	for _, topic := range []string{
		"homeassistant/switch/amp1/output_1_power/config",
		"homeassistant/number/amp1/output_1_volume/config",
		"homeassistant/select/amp1/output_1_source/config",
		"homeassistant/switch/amp1/output_2_mute/config",
	} {
		_, ok := f.pub.payload(topic)
		assert.True(t, ok, topic)
	}

	filter, _ := f.pub.subscription()
	assert.Equal(t, "directord/amp1/output/+/+/set", filter)

	for topic, want := range map[string]string{
		"directord/amp1/bridge/availability":   "online",
		"directord/amp1/availability":          "online",
		"directord/amp1/state":                 "ON",
		"directord/amp1/output/1/power/state":  "ON",
		"directord/amp1/output/1/volume/state": "30",
		"directord/amp1/output/1/mute/state":   "OFF",
		"directord/amp1/output/1/source/state": "Input 2",
		"directord/amp1/output/2/power/state":  "OFF",
		"directord/amp1/output/2/mute/state":   "ON",
	} {
		got, ok := f.pub.payload(topic)
		require.True(t, ok, topic)
		assert.Equal(t, want, got, topic)
	}

	f.stop(t)
	got, _ := f.pub.payload("directord/amp1/availability")
	assert.Equal(t, "offline", got)
	got, _ = f.pub.payload("directord/amp1/bridge/availability")
	assert.Equal(t, "offline", got)
}

func TestBridgeCommands(t *testing.T) {
	fake := &fakeClient{}
	f := startBridge(t, fake)
	defer f.stop(t)
	_, handler := f.pub.subscription()

	handler("directord/amp1/output/1/power/set", []byte("OFF"))
	handler("directord/amp1/output/1/volume/set", []byte("55"))
	handler("directord/amp1/output/1/source/set", []byte("Input 3"))
	handler("directord/amp1/output/2/mute/set", []byte("ON"))
	handler("directord/amp1/output/2/mute/set", []byte("OFF"))

	assert.Equal(t, []string{
		"power 1 false",
		"volume 1 55",
		"route 3 1",
		"volume 2 0",
		"volume 2 5",
	}, fake.operations())

	// Commands are reflected in state immediately rather than waiting for
	// the next poll.
	for topic, want := range map[string]string{
		"directord/amp1/output/1/power/state":  "OFF",
		"directord/amp1/output/1/volume/state": "55",
		"directord/amp1/output/1/mute/state":   "OFF",
		"directord/amp1/output/1/source/state": "Input 3",
		"directord/amp1/output/2/volume/state": "5",
		"directord/amp1/output/2/mute/state":   "OFF",
	} {
		got, ok := f.pub.payload(topic)
		require.True(t, ok, topic)
		assert.Equal(t, want, got, topic)
	}
}

func TestBridgeFractionalVolume(t *testing.T) {
	fake := &fakeClient{}
	f := startBridge(t, fake)
	defer f.stop(t)
	_, handler := f.pub.subscription()

	handler("directord/amp1/output/1/volume/set", []byte("42.0"))
	assert.Equal(t, []string{"volume 1 42"}, fake.operations())
}

func TestBridgeRejectsBadCommands(t *testing.T) {
	fake := &fakeClient{}
	f := startBridge(t, fake)
	defer f.stop(t)
	_, handler := f.pub.subscription()

	handler("directord/amp1/output/1/source/set", []byte("Turntable"))
	handler("directord/amp1/output/1/volume/set", []byte("999"))
	handler("directord/amp1/output/1/volume/set", []byte("loud"))
	handler("directord/amp1/output/1/power/set", []byte("maybe"))
	handler("directord/amp1/output/9/power/set", []byte("ON"))
	handler("directord/amp1/output/1/tone/set", []byte("ON"))
	assert.Empty(t, fake.operations())
}

func TestBridgeCommandFailure(t *testing.T) {
	fake := &fakeClient{cmdErr: errors.New("device rejected command")}
	f := startBridge(t, fake)
	defer f.stop(t)
	_, handler := f.pub.subscription()

	before := len(f.pub.messages())
	handler("directord/amp1/output/1/power/set", []byte("OFF"))
	assert.Len(t, fake.operations(), 1)
	// No optimistic state is published for a failed command.
	assert.Len(t, f.pub.messages(), before)
}

func TestBridgeMarksOffline(t *testing.T) {
	var fail atomic.Bool
	fake := &fakeClient{status: func(ctx context.Context) (*directortelnet.SystemStatus, error) {
		if fail.Load() {
			return nil, errors.New("unreachable")
		}
		return sampleStatus(), nil
	}}
	f := startBridge(t, fake)
	defer f.stop(t)

	got, _ := f.pub.payload("directord/amp1/availability")
	require.Equal(t, "online", got)

	fail.Store(true)
	f.coord.Refresh(context.Background())
	got, _ = f.pub.payload("directord/amp1/availability")
	assert.Equal(t, "offline", got)
	state, _ := f.pub.payload("directord/amp1/state")
	assert.Equal(t, "OFF", state)

	fail.Store(false)
	f.coord.Refresh(context.Background())
	got, _ = f.pub.payload("directord/amp1/availability")
	assert.Equal(t, "online", got)
}

func TestBridgeInitialFetchFailure(t *testing.T) {
	fake := &fakeClient{status: func(ctx context.Context) (*directortelnet.SystemStatus, error) {
		return nil, errors.New("unreachable")
	}}
	cfg, err := director.ParseConfig([]byte(minimalConfig))
	require.NoError(t, err)
	dial := func(ctx context.Context) (director.Client, error) { return fake, nil }
	coord := director.NewCoordinator(dial, cfg.Poll, nil)
	pub := &fakePublisher{}
	bridge := director.NewBridge(cfg, coord, pub, nil)

	err = bridge.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial status fetch")
	assert.Empty(t, pub.messages())
}
