// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package directortelnet provides a client for the telnet remote control
// interface of AudioControl Director M6400 and M6800 matrix amplifiers.
//
// # Basic Usage
//
//	client, err := directortelnet.NewClient("amp.local")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	status, err := client.GetSystemStatus(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration
//
// The client can be configured using functional options:
//
//	client, err := directortelnet.NewClient("amp.local",
//	    directortelnet.WithPort(2323),
//	    directortelnet.WithRequestTimeout(10*time.Second),
//	    directortelnet.WithLogger(slog.Default()),
//	)
//
// # Protocol
//
// The amplifier accepts CRLF terminated ASCII commands over a telnet
// session on port 23 and replies with '#' prefixed lines. The connection
// is unauthenticated. The device supports a single control session at a
// time, so callers typically connect, issue an operation and close rather
// than holding the session open.
package directortelnet
