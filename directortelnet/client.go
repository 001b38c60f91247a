// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package directortelnet

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ziutek/telnet"
)

var request Request

// Client is a remote control session to a Director amplifier. A client
// holds at most one telnet session and is not safe for concurrent use.
type Client struct {
	host string
	cfg  *clientConfig
	conn *telnet.Conn
}

// NewClient returns an unconnected client for the amplifier at host.
func NewClient(host string, opts ...ClientOption) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return &Client{host: host, cfg: cfg}, nil
}

// Connect establishes the telnet session. The context bounds session
// establishment; the connect timeout applies when it carries no deadline
// of its own. Connecting an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.connectTimeout)
		defer cancel()
	}
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.cfg.port))
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %v: %w", addr, err)
	}
	conn, err := telnet.NewConn(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("telnet session %v: %w", addr, err)
	}
	c.conn = conn
	if c.cfg.logger != nil {
		c.cfg.logger.Debug("connected", "addr", addr)
	}
	return nil
}

// Close terminates the telnet session. Closing an unconnected client is a
// no-op.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if c.cfg.logger != nil {
		c.cfg.logger.Debug("closed", "host", c.host)
	}
	return err
}

// GetSystemStatus returns the amplifier name, model and the state of every
// output.
func (c *Client) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	req, reply := request.SystemStatus()
	lines, err := c.rpc(ctx, req, reply)
	if err != nil {
		return nil, err
	}
	return ParseSystemStatus(lines)
}

// SetOutputPower turns an output on or off.
func (c *Client) SetOutputPower(ctx context.Context, out OutputID, on bool) error {
	if !out.Valid() {
		return fmt.Errorf("invalid output: %v", int(out))
	}
	req, reply := request.OutputPower(out, on)
	_, err := c.rpc(ctx, req, reply)
	return err
}

// SetOutputVolume sets an output's volume on the device's 0..MaxVolume
// scale.
func (c *Client) SetOutputVolume(ctx context.Context, out OutputID, volume int) error {
	if !out.Valid() {
		return fmt.Errorf("invalid output: %v", int(out))
	}
	if volume < 0 || volume > MaxVolume {
		return fmt.Errorf("invalid volume: %v", volume)
	}
	req, reply := request.OutputVolume(out, volume)
	_, err := c.rpc(ctx, req, reply)
	return err
}

// MapInputToOutput routes a matrix input to an output.
func (c *Client) MapInputToOutput(ctx context.Context, in InputID, out OutputID) error {
	if !in.Valid() {
		return fmt.Errorf("invalid input: %v", int(in))
	}
	if !out.Valid() {
		return fmt.Errorf("invalid output: %v", int(out))
	}
	req, reply := request.InputToOutput(in, out)
	_, err := c.rpc(ctx, req, reply)
	return err
}

func (c *Client) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(c.cfg.requestTimeout)
}

// rpc sends a request and reads lines until the expected reply arrives,
// skipping anything unsolicited. For block replies the returned lines run
// from the opening line to the #END terminator, which is not included.
func (c *Client) rpc(ctx context.Context, req []byte, want Reply) ([]string, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.conn.SetDeadline(c.deadline(ctx)); err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(req); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	var lines []string
	collecting := false
	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		verb, rest, ok := replyVerb(line)
		if !ok {
			continue
		}
		switch {
		case verb == replyErr:
			return nil, parseWireError(rest)
		case collecting:
			if verb == replyEnd {
				return lines, nil
			}
			lines = append(lines, line)
		case verb == want.Verb:
			lines = append(lines, line)
			if !want.Block {
				return lines, nil
			}
			collecting = true
		}
	}
}

func (c *Client) readLine() (string, error) {
	line, err := c.conn.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
