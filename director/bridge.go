// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package director

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/cosnicolaou/director/directortelnet"
)

// Publisher is the broker surface the bridge needs. It is satisfied by
// *MQTTPublisher.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) error
	Subscribe(filter string, handler func(topic string, payload []byte)) error
}

// Bridge links one amplifier to the host over MQTT: it announces the
// entity set derived from the first successful status fetch, republishes
// state after every poll and routes host commands back to the device.
type Bridge struct {
	cfg    *Config
	coord  *Coordinator
	pub    Publisher
	logger *slog.Logger

	topics    Topics
	discovery Discovery

	amp     *AmplifierEntity
	outputs map[directortelnet.OutputID]*OutputEntity

	ctx context.Context // set for the lifetime of Run, used by command handlers
}

func NewBridge(cfg *Config, coord *Coordinator, pub Publisher, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bridge{
		cfg:       cfg,
		coord:     coord,
		pub:       pub,
		logger:    logger.With("protocol", "director", "component", "bridge"),
		topics:    NewTopics(cfg.MQTT.TopicPrefix, cfg.UniqueID),
		discovery: Discovery{Prefix: cfg.MQTT.DiscoveryPrefix},
		outputs:   map[directortelnet.OutputID]*OutputEntity{},
	}
}

// Topics returns the bridge's topic layout.
func (b *Bridge) Topics() Topics {
	return b.topics
}

// Run drives the bridge until ctx is canceled: one gating status fetch,
// discovery announcement and command subscription, then the poll loop.
// The gating fetch failing is fatal; the entity set cannot be derived
// without one successful status.
func (b *Bridge) Run(ctx context.Context) error {
	b.ctx = ctx
	snap := b.coord.Refresh(ctx)
	if !snap.OK() {
		return fmt.Errorf("initial status fetch: %w", snap.Err)
	}
	if err := b.start(snap); err != nil {
		return err
	}
	b.coord.AddListener(b.publishSnapshot)
	err := b.coord.Run(ctx)
	b.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Bridge) start(snap Snapshot) error {
	b.buildEntities(snap.Status)
	if err := b.announce(); err != nil {
		return fmt.Errorf("discovery announce: %w", err)
	}
	if err := b.pub.Subscribe(b.topics.CommandWildcard(), b.handleCommand); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	b.publish([]Message{{Topic: b.topics.BridgeAvailability(), Payload: payloadOnline, Retain: true}})
	b.publishSnapshot(snap)
	return nil
}

// buildEntities fixes the entity set from the first status. Outputs that
// appear in later polls are not announced; a restart picks them up.
func (b *Bridge) buildEntities(status *directortelnet.SystemStatus) {
	name := status.Name
	if name == "" {
		name = b.cfg.Name
	}
	model := DefaultModel
	if status.Model != "" {
		model = "Director " + status.Model
	}
	b.amp = &AmplifierEntity{UniqueID: b.cfg.UniqueID, Name: name, Model: model, Topics: b.topics}
	for _, id := range status.OutputIDs() {
		outName := status.Outputs[id].Name
		if outName == "" {
			outName = id.String()
		}
		b.outputs[id] = &OutputEntity{
			AmpUniqueID: b.cfg.UniqueID,
			Output:      id,
			Name:        outName,
			Topics:      b.topics,
		}
	}
	b.logger.Info("amplifier discovered", "name", name, "model", model, "outputs", len(b.outputs))
}

func (b *Bridge) announce() error {
	outs := make([]*OutputEntity, 0, len(b.outputs))
	for _, id := range slices.Sorted(maps.Keys(b.outputs)) {
		outs = append(outs, b.outputs[id])
	}
	msgs, err := b.discovery.Messages(b.amp, outs)
	if err != nil {
		return err
	}
	b.publish(msgs)
	return nil
}

func (b *Bridge) publishSnapshot(snap Snapshot) {
	b.publish(b.amp.StateMessages(snap))
	for _, out := range b.outputs {
		b.publish(out.StateMessages(snap))
	}
}

func (b *Bridge) publish(msgs []Message) {
	for _, m := range msgs {
		if err := b.pub.Publish(m.Topic, []byte(m.Payload), m.Retain); err != nil {
			b.logger.Error("publish failed", "topic", m.Topic, "err", err)
		}
	}
}

func (b *Bridge) shutdown() {
	b.publish([]Message{
		{Topic: b.topics.AmplifierAvailability(), Payload: payloadOffline, Retain: true},
		{Topic: b.topics.BridgeAvailability(), Payload: payloadOffline, Retain: true},
	})
}

// handleCommand routes one host command to the device and, on success,
// publishes the new state immediately rather than waiting for the next
// poll to confirm it.
func (b *Bridge) handleCommand(topic string, payload []byte) {
	out, attr, ok := b.topics.ParseCommand(topic)
	if !ok {
		b.logger.Warn("malformed command topic", "topic", topic)
		return
	}
	entity, ok := b.outputs[out]
	if !ok {
		b.logger.Warn("command for unknown output", "topic", topic, "output", int(out))
		return
	}
	value := string(payload)
	var msgs []Message
	var err error
	switch attr {
	case attrPower:
		on, perr := parseOnOff(value)
		if perr != nil {
			b.logger.Warn("bad power payload", "topic", topic, "payload", value)
			return
		}
		if err = b.coord.SetOutputPower(b.ctx, out, on); err == nil {
			msgs = []Message{entity.powerMessage(on)}
		}
	case attrVolume:
		volume, perr := parseVolume(value)
		if perr != nil {
			b.logger.Warn("bad volume payload", "topic", topic, "payload", value)
			return
		}
		if err = b.coord.SetOutputVolume(b.ctx, out, volume); err == nil {
			msgs = entity.volumeMessages(volume)
		}
	case attrMute:
		mute, perr := parseOnOff(value)
		if perr != nil {
			b.logger.Warn("bad mute payload", "topic", topic, "payload", value)
			return
		}
		volume := UnmuteVolume
		if mute {
			volume = 0
		}
		if err = b.coord.SetOutputVolume(b.ctx, out, volume); err == nil {
			msgs = entity.volumeMessages(volume)
		}
	case attrSource:
		in, known := directortelnet.InputByName(value)
		if !known {
			// Unknown sources are dropped rather than treated as errors.
			b.logger.Debug("unknown source", "topic", topic, "payload", value)
			return
		}
		if err = b.coord.SetOutputSource(b.ctx, out, in); err == nil {
			msgs = []Message{entity.sourceMessage(in)}
		}
	default:
		b.logger.Warn("unknown command attribute", "topic", topic, "attr", attr)
		return
	}
	if err != nil {
		b.logger.Error("command failed", "topic", topic, "payload", value, "err", err)
		return
	}
	b.publish(msgs)
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case payloadOn:
		return true, nil
	case payloadOff:
		return false, nil
	}
	return false, fmt.Errorf("not %v or %v: %q", payloadOn, payloadOff, s)
}

// parseVolume accepts integral and fractional renderings since number
// entities may command "25" or "25.0".
func parseVolume(s string) (int, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	v := int(math.Round(f))
	if v < 0 || v > directortelnet.MaxVolume {
		return 0, fmt.Errorf("volume out of range: %v", s)
	}
	return v, nil
}
