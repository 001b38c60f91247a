// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package director

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cosnicolaou/director/directortelnet"
)

var (
	// ErrInvalidHost indicates a syntactically invalid hostname.
	ErrInvalidHost = errors.New("invalid hostname")
	// ErrCannotConnect indicates the amplifier could not be reached or did
	// not answer a status request.
	ErrCannotConnect = errors.New("cannot connect")
)

// Each dot separated label is 1 to 63 alphanumeric or hyphen characters
// and may not start or end with a hyphen.
var hostLabelRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// ValidHostname reports whether host is a syntactically valid hostname.
// A single trailing dot, the absolute form, is accepted.
func ValidHostname(host string) bool {
	if len(host) == 0 || len(host) > 255 {
		return false
	}
	host = strings.TrimSuffix(host, ".")
	for _, label := range strings.Split(host, ".") {
		if !hostLabelRe.MatchString(label) {
			return false
		}
	}
	return true
}

// Probe validates host and fetches a system status from it once,
// confirming the amplifier is reachable before a configuration is
// committed. The returned error matches ErrInvalidHost or
// ErrCannotConnect.
func Probe(ctx context.Context, host string, opts ...directortelnet.ClientOption) (*directortelnet.SystemStatus, error) {
	if !ValidHostname(host) {
		return nil, ErrInvalidHost
	}
	client, err := directortelnet.NewClient(host, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	defer client.Close()
	status, err := client.GetSystemStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	return status, nil
}
