// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package director

import (
	"encoding/json"
	"fmt"

	"github.com/cosnicolaou/director/directortelnet"
)

const (
	// Manufacturer is the device manufacturer reported to the host.
	Manufacturer = "AudioControl"
	// DefaultModel is reported when the device does not identify its
	// chassis.
	DefaultModel = "Director M6400/M6800"
)

// The discovery payload subset used by the bridge, following the Home
// Assistant MQTT discovery schema.
type discoveryDevice struct {
	Identifiers  []string `json:"identifiers,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

type discoveryAvailability struct {
	Topic string `json:"topic"`
}

type discoveryConfig struct {
	Name             string                  `json:"name,omitempty"`
	UniqueID         string                  `json:"unique_id"`
	DeviceClass      string                  `json:"device_class,omitempty"`
	Icon             string                  `json:"icon,omitempty"`
	StateTopic       string                  `json:"state_topic,omitempty"`
	CommandTopic     string                  `json:"command_topic,omitempty"`
	PayloadOn        string                  `json:"payload_on,omitempty"`
	PayloadOff       string                  `json:"payload_off,omitempty"`
	Min              *float64                `json:"min,omitempty"`
	Max              *float64                `json:"max,omitempty"`
	Step             *float64                `json:"step,omitempty"`
	Options          []string                `json:"options,omitempty"`
	Availability     []discoveryAvailability `json:"availability,omitempty"`
	AvailabilityMode string                  `json:"availability_mode,omitempty"`
	Device           *discoveryDevice        `json:"device,omitempty"`
}

// Discovery builds the retained config payloads that announce entities to
// the host, published under <prefix>/<component>/<node>/<object>/config.
type Discovery struct {
	Prefix string
}

func (d Discovery) configTopic(component, nodeID, objectID string) string {
	return fmt.Sprintf("%v/%v/%v/%v/config", d.Prefix, component, nodeID, objectID)
}

// Messages returns the discovery configs for the amplifier and its
// outputs. The amplifier is announced as a connectivity sensor on its own
// device; each output is announced as power, volume, source and mute
// entities on a child device linked via the amplifier.
//
// Output entities list two availability topics and require both: the
// bridge's will topic and the amplifier reachability topic. A failed poll
// therefore renders every output entity unavailable on the host.
func (d Discovery) Messages(amp *AmplifierEntity, outputs []*OutputEntity) ([]Message, error) {
	ampDevice := &discoveryDevice{
		Identifiers:  []string{amp.UniqueID},
		Manufacturer: Manufacturer,
		Model:        amp.Model,
		Name:         amp.Name,
	}
	bridgeAvail := discoveryAvailability{Topic: amp.Topics.BridgeAvailability()}
	ampAvail := discoveryAvailability{Topic: amp.Topics.AmplifierAvailability()}

	var msgs []Message
	add := func(component, objectID string, cfg discoveryConfig) error {
		payload, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		msgs = append(msgs, Message{
			Topic:   d.configTopic(component, amp.UniqueID, objectID),
			Payload: string(payload),
			Retain:  true,
		})
		return nil
	}

	if err := add("binary_sensor", "connectivity", discoveryConfig{
		Name:         "Connectivity",
		UniqueID:     amp.UniqueID + "_connectivity",
		DeviceClass:  "connectivity",
		Icon:         "mdi:audio-video",
		StateTopic:   amp.Topics.AmplifierState(),
		Availability: []discoveryAvailability{bridgeAvail},
		Device:       ampDevice,
	}); err != nil {
		return nil, err
	}

	volMin, volMax, volStep := 0.0, float64(directortelnet.MaxVolume), 1.0
	for _, out := range outputs {
		device := &discoveryDevice{
			Identifiers:  []string{out.UniqueID()},
			Manufacturer: Manufacturer,
			Model:        amp.Model,
			Name:         out.Name,
			ViaDevice:    amp.UniqueID,
		}
		avail := []discoveryAvailability{bridgeAvail, ampAvail}
		object := fmt.Sprintf("output_%v", int(out.Output))

		if err := add("switch", object+"_power", discoveryConfig{
			Name:             "Power",
			UniqueID:         out.UniqueID() + "_power",
			Icon:             "mdi:speaker",
			StateTopic:       out.Topics.OutputState(out.Output, attrPower),
			CommandTopic:     out.Topics.OutputCommand(out.Output, attrPower),
			PayloadOn:        payloadOn,
			PayloadOff:       payloadOff,
			Availability:     avail,
			AvailabilityMode: "all",
			Device:           device,
		}); err != nil {
			return nil, err
		}

		if err := add("number", object+"_volume", discoveryConfig{
			Name:             "Volume",
			UniqueID:         out.UniqueID() + "_volume",
			Icon:             "mdi:volume-high",
			StateTopic:       out.Topics.OutputState(out.Output, attrVolume),
			CommandTopic:     out.Topics.OutputCommand(out.Output, attrVolume),
			Min:              &volMin,
			Max:              &volMax,
			Step:             &volStep,
			Availability:     avail,
			AvailabilityMode: "all",
			Device:           device,
		}); err != nil {
			return nil, err
		}

		if err := add("select", object+"_source", discoveryConfig{
			Name:             "Source",
			UniqueID:         out.UniqueID() + "_source",
			Icon:             "mdi:audio-input-rca",
			StateTopic:       out.Topics.OutputState(out.Output, attrSource),
			CommandTopic:     out.Topics.OutputCommand(out.Output, attrSource),
			Options:          directortelnet.InputNames(),
			Availability:     avail,
			AvailabilityMode: "all",
			Device:           device,
		}); err != nil {
			return nil, err
		}

		if err := add("switch", object+"_mute", discoveryConfig{
			Name:             "Mute",
			UniqueID:         out.UniqueID() + "_mute",
			Icon:             "mdi:volume-mute",
			StateTopic:       out.Topics.OutputState(out.Output, attrMute),
			CommandTopic:     out.Topics.OutputCommand(out.Output, attrMute),
			PayloadOn:        payloadOn,
			PayloadOff:       payloadOff,
			Availability:     avail,
			AvailabilityMode: "all",
			Device:           device,
		}); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}
