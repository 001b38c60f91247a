// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package director_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/cosnicolaou/director/director"
)

func TestTopics(t *testing.T) {
	topics := director.NewTopics("directord", "amp1")
	for _, tc := range []struct {
		got, want string
	}{
		{topics.BridgeAvailability(), "directord/amp1/bridge/availability"},
		{topics.AmplifierAvailability(), "directord/amp1/availability"},
		{topics.AmplifierState(), "directord/amp1/state"},
		{topics.OutputState(3, "volume"), "directord/amp1/output/3/volume/state"},
		{topics.OutputCommand(3, "power"), "directord/amp1/output/3/power/set"},
		{topics.CommandWildcard(), "directord/amp1/output/+/+/set"},
	} {
		if tc.got != tc.want {
			t.Errorf("got %v, want %v", tc.got, tc.want)
		}
	}
}

func TestParseCommand(t *testing.T) {
	topics := director.NewTopics("directord", "amp1")
	out, attr, ok := topics.ParseCommand("directord/amp1/output/7/volume/set")
	if !ok || out != 7 || attr != "volume" {
		t.Errorf("got %v %q %v, want 7 \"volume\" true", out, attr, ok)
	}
	for _, topic := range []string{
		"directord/amp1/output/7/volume/state",
		"directord/amp1/output/volume/set",
		"directord/amp1/output/x/volume/set",
		"directord/amp1/output/7/volume/set/extra",
		"directord/other/output/7/volume/set",
		"directord/amp1/availability",
	} {
		if _, _, ok := topics.ParseCommand(topic); ok {
			t.Errorf("%v: unexpectedly parsed as a command", topic)
		}
	}
}

func TestAmplifierStateMessages(t *testing.T) {
	topics := director.NewTopics("directord", "amp1")
	amp := &director.AmplifierEntity{UniqueID: "amp1", Name: "Rack", Model: director.DefaultModel, Topics: topics}

	msgs := amp.StateMessages(director.Snapshot{Status: sampleStatus()})
	want := []director.Message{
		{Topic: "directord/amp1/availability", Payload: "online", Retain: true},
		{Topic: "directord/amp1/state", Payload: "ON", Retain: true},
	}
	if !slices.Equal(msgs, want) {
		t.Errorf("got %v, want %v", msgs, want)
	}

	msgs = amp.StateMessages(director.Snapshot{Err: errors.New("unreachable")})
	want = []director.Message{
		{Topic: "directord/amp1/availability", Payload: "offline", Retain: true},
		{Topic: "directord/amp1/state", Payload: "OFF", Retain: true},
	}
	if !slices.Equal(msgs, want) {
		t.Errorf("got %v, want %v", msgs, want)
	}
}

func TestOutputStateMessages(t *testing.T) {
	topics := director.NewTopics("directord", "amp1")
	out := &director.OutputEntity{AmpUniqueID: "amp1", Output: 1, Name: "Patio", Topics: topics}
	if got, want := out.UniqueID(), "amp1_output_1"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	msgs := out.StateMessages(director.Snapshot{Status: sampleStatus()})
	want := []director.Message{
		{Topic: "directord/amp1/output/1/power/state", Payload: "ON", Retain: true},
		{Topic: "directord/amp1/output/1/volume/state", Payload: "30", Retain: true},
		{Topic: "directord/amp1/output/1/mute/state", Payload: "OFF", Retain: true},
		{Topic: "directord/amp1/output/1/source/state", Payload: "Input 2", Retain: true},
	}
	if !slices.Equal(msgs, want) {
		t.Errorf("got %v, want %v", msgs, want)
	}
}

func TestOutputStateMessagesMuted(t *testing.T) {
	// Output 2 in the sample status has volume zero, which reads as muted.
	topics := director.NewTopics("directord", "amp1")
	out := &director.OutputEntity{AmpUniqueID: "amp1", Output: 2, Name: "Kitchen", Topics: topics}
	msgs := out.StateMessages(director.Snapshot{Status: sampleStatus()})
	want := []director.Message{
		{Topic: "directord/amp1/output/2/power/state", Payload: "OFF", Retain: true},
		{Topic: "directord/amp1/output/2/volume/state", Payload: "0", Retain: true},
		{Topic: "directord/amp1/output/2/mute/state", Payload: "ON", Retain: true},
		{Topic: "directord/amp1/output/2/source/state", Payload: "Input 1", Retain: true},
	}
	if !slices.Equal(msgs, want) {
		t.Errorf("got %v, want %v", msgs, want)
	}
}

func TestOutputStateMessagesUnavailable(t *testing.T) {
	topics := director.NewTopics("directord", "amp1")
	out := &director.OutputEntity{AmpUniqueID: "amp1", Output: 1, Name: "Patio", Topics: topics}
	if msgs := out.StateMessages(director.Snapshot{Err: errors.New("unreachable")}); msgs != nil {
		t.Errorf("got %v, want nil", msgs)
	}
	// Output 9 is absent from the sample status.
	out.Output = 9
	if msgs := out.StateMessages(director.Snapshot{Status: sampleStatus()}); msgs != nil {
		t.Errorf("got %v, want nil", msgs)
	}
}
