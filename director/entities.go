// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package director

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cosnicolaou/director/directortelnet"
)

const (
	payloadOn      = "ON"
	payloadOff     = "OFF"
	payloadOnline  = "online"
	payloadOffline = "offline"

	attrPower  = "power"
	attrVolume = "volume"
	attrSource = "source"
	attrMute   = "mute"
)

// UnmuteVolume is the level restored when an output is unmuted. An output
// is muted by setting its volume to zero, so unmuting needs a non zero
// level to return to.
const UnmuteVolume = 5

// Message is a single MQTT publication.
type Message struct {
	Topic   string
	Payload string
	Retain  bool
}

// Topics lays out the bridge's topic space under a fixed prefix. State
// topics are retained; command topics carry a single /set leaf so one
// wildcard covers all output commands.
type Topics struct {
	Prefix string
}

func NewTopics(topicPrefix, uniqueID string) Topics {
	return Topics{Prefix: topicPrefix + "/" + uniqueID}
}

// BridgeAvailability marks the bridge process itself and is registered as
// the broker will.
func (t Topics) BridgeAvailability() string {
	return t.Prefix + "/bridge/availability"
}

// AmplifierAvailability tracks whether the last poll reached the device.
func (t Topics) AmplifierAvailability() string {
	return t.Prefix + "/availability"
}

func (t Topics) AmplifierState() string {
	return t.Prefix + "/state"
}

func (t Topics) OutputState(o directortelnet.OutputID, attr string) string {
	return fmt.Sprintf("%v/output/%v/%v/state", t.Prefix, int(o), attr)
}

func (t Topics) OutputCommand(o directortelnet.OutputID, attr string) string {
	return fmt.Sprintf("%v/output/%v/%v/set", t.Prefix, int(o), attr)
}

func (t Topics) CommandWildcard() string {
	return t.Prefix + "/output/+/+/set"
}

// ParseCommand extracts the output and attribute from a command topic. ok
// is false for topics outside the command space.
func (t Topics) ParseCommand(topic string) (directortelnet.OutputID, string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/output/")
	if !ok {
		return 0, "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "set" {
		return 0, "", false
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", false
	}
	return directortelnet.OutputID(id), parts[1], true
}

// AmplifierEntity represents the amplifier itself: a connectivity state
// that is on while polling succeeds, and the device the output entities
// hang off.
type AmplifierEntity struct {
	UniqueID string
	Name     string
	Model    string
	Topics   Topics
}

// StateMessages projects a snapshot onto the amplifier's topics. A failed
// snapshot marks the device unavailable, which cascades to the output
// entities through their availability subscriptions.
func (a *AmplifierEntity) StateMessages(snap Snapshot) []Message {
	avail, state := payloadOnline, payloadOn
	if !snap.OK() {
		avail, state = payloadOffline, payloadOff
	}
	return []Message{
		{Topic: a.Topics.AmplifierAvailability(), Payload: avail, Retain: true},
		{Topic: a.Topics.AmplifierState(), Payload: state, Retain: true},
	}
}

// OutputEntity represents one amplified output: power, volume, source
// selection and mute. Mute is not device state; an output is muted
// exactly when its volume is zero.
type OutputEntity struct {
	AmpUniqueID string
	Output      directortelnet.OutputID
	Name        string
	Topics      Topics
}

func (e *OutputEntity) UniqueID() string {
	return fmt.Sprintf("%v_output_%v", e.AmpUniqueID, int(e.Output))
}

// StateMessages projects a snapshot onto the output's state topics.
// Failed snapshots yield nothing; availability is handled at the
// amplifier level.
func (e *OutputEntity) StateMessages(snap Snapshot) []Message {
	if !snap.OK() {
		return nil
	}
	status, ok := snap.Status.Outputs[e.Output]
	if !ok {
		return nil
	}
	msgs := []Message{e.powerMessage(status.On)}
	msgs = append(msgs, e.volumeMessages(status.Volume)...)
	msgs = append(msgs, e.sourceMessage(status.Input))
	return msgs
}

func (e *OutputEntity) powerMessage(on bool) Message {
	return Message{Topic: e.Topics.OutputState(e.Output, attrPower), Payload: onOff(on), Retain: true}
}

// volumeMessages carries the derived mute state along with the volume.
func (e *OutputEntity) volumeMessages(volume int) []Message {
	return []Message{
		{Topic: e.Topics.OutputState(e.Output, attrVolume), Payload: strconv.Itoa(volume), Retain: true},
		{Topic: e.Topics.OutputState(e.Output, attrMute), Payload: onOff(volume == 0), Retain: true},
	}
}

func (e *OutputEntity) sourceMessage(in directortelnet.InputID) Message {
	return Message{Topic: e.Topics.OutputState(e.Output, attrSource), Payload: in.Name(), Retain: true}
}

func onOff(on bool) string {
	if on {
		return payloadOn
	}
	return payloadOff
}
