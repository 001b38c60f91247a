// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package director bridges an AudioControl Director matrix amplifier to
// a home automation host over MQTT. It polls the amplifier for status,
// publishes per-output entities via MQTT discovery and translates host
// commands back into amplifier operations.
package director
