// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package directortelnet

import (
	"fmt"
	"maps"
	"slices"
)

// The Director chassis routes any of its matrix inputs to its amplified
// outputs. The input set is fixed by the hardware rather than reported by
// the device. The M6400 exposes outputs 1 to 8, the M6800 outputs 1 to 16.
const (
	NumInputs  = 8
	NumOutputs = 16

	// MaxVolume is the top of the device's volume scale.
	MaxVolume = 100
)

// InputID identifies a matrix input, numbered from 1.
type InputID int

func (in InputID) Valid() bool {
	return in >= 1 && in <= NumInputs
}

// Name returns the source name used on control surfaces, such as "Input 3".
func (in InputID) Name() string {
	if !in.Valid() {
		return fmt.Sprintf("UnknownInput(%v)", int(in))
	}
	return fmt.Sprintf("Input %v", int(in))
}

func (in InputID) String() string {
	return in.Name()
}

// Inputs returns all matrix inputs in ascending order.
func Inputs() []InputID {
	ids := make([]InputID, NumInputs)
	for i := range ids {
		ids[i] = InputID(i + 1)
	}
	return ids
}

// InputNames returns the names of all matrix inputs in input order.
func InputNames() []string {
	names := make([]string, 0, NumInputs)
	for _, in := range Inputs() {
		names = append(names, in.Name())
	}
	return names
}

// InputByName maps a source name, as returned by InputID.Name, back to its
// input.
func InputByName(name string) (InputID, bool) {
	for _, in := range Inputs() {
		if in.Name() == name {
			return in, true
		}
	}
	return 0, false
}

// OutputID identifies an amplified output zone, numbered from 1.
type OutputID int

func (o OutputID) Valid() bool {
	return o >= 1 && o <= NumOutputs
}

func (o OutputID) String() string {
	return fmt.Sprintf("Output %v", int(o))
}

// OutputStatus is the state of a single output as reported by the device.
type OutputStatus struct {
	ID     OutputID
	Name   string
	On     bool
	Volume int // 0..MaxVolume
	Input  InputID
}

func (o OutputStatus) String() string {
	power := "off"
	if o.On {
		power = "on"
	}
	return fmt.Sprintf("%v (%v): %v, volume %v, %v", o.ID, o.Name, power, o.Volume, o.Input)
}

// SystemStatus is a complete snapshot of the amplifier as returned by a
// status request. Only outputs reported by the device appear in Outputs;
// an M6400 reports half as many as an M6800.
type SystemStatus struct {
	Name    string
	Model   string
	Outputs map[OutputID]OutputStatus
}

// OutputIDs returns the ids of all reported outputs in ascending order.
func (s *SystemStatus) OutputIDs() []OutputID {
	return slices.Sorted(maps.Keys(s.Outputs))
}
