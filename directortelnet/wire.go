// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package directortelnet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// The wire protocol is line oriented: commands and replies are CRLF
// terminated ASCII. Replies are prefixed with '#'; anything else on the
// wire (login banners, command echoes, broadcasts to other control
// sessions) is skipped while waiting for a reply. A status reply is a
// block of lines terminated by #END.
const (
	replySystem = "SYSTEM"
	replyOutput = "OUTPUT"
	replyOK     = "OK"
	replyErr    = "ERR"
	replyEnd    = "END"
)

// ErrNotConnected is returned for operations on a client without an
// established session.
var ErrNotConnected = errors.New("not connected")

// Error is a command rejection reported by the amplifier.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("director error %v: %v", e.Code, e.Message)
}

type Request struct{}

func (r Request) SystemStatus() ([]byte, Reply) {
	return formatCommand("STATUS"), Reply{Verb: replySystem, Block: true}
}

func (r Request) OutputPower(o OutputID, on bool) ([]byte, Reply) {
	state := "OFF"
	if on {
		state = "ON"
	}
	return formatCommand("POWER", strconv.Itoa(int(o)), state), Reply{Verb: replyOK}
}

func (r Request) OutputVolume(o OutputID, volume int) ([]byte, Reply) {
	return formatCommand("VOL", strconv.Itoa(int(o)), strconv.Itoa(volume)), Reply{Verb: replyOK}
}

func (r Request) InputToOutput(in InputID, o OutputID) ([]byte, Reply) {
	return formatCommand("ROUTE", strconv.Itoa(int(in)), strconv.Itoa(int(o))), Reply{Verb: replyOK}
}

// Reply describes the reply expected for a request: the verb of its first
// line and whether further lines follow through to an #END terminator.
type Reply struct {
	Verb  string
	Block bool
}

// IsExpected reports whether line opens this reply.
func (r Reply) IsExpected(line string) bool {
	verb, _, ok := replyVerb(line)
	return ok && verb == r.Verb
}

func formatCommand(verb string, args ...string) []byte {
	var b strings.Builder
	b.WriteString(verb)
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// replyVerb splits a reply line into its verb and remainder. ok is false
// for lines that are not replies.
func replyVerb(line string) (verb, rest string, ok bool) {
	if len(line) < 2 || line[0] != '#' {
		return "", "", false
	}
	verb, rest, _ = strings.Cut(line[1:], " ")
	return verb, rest, true
}

// splitFields splits s on spaces. Double quoted fields may contain spaces
// and are returned without their quotes.
func splitFields(s string) ([]string, error) {
	var fields []string
	for {
		s = strings.TrimLeft(s, " ")
		if len(s) == 0 {
			return fields, nil
		}
		if s[0] == '"' {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote: %v", s)
			}
			fields = append(fields, s[1:1+end])
			s = s[end+2:]
			continue
		}
		var f string
		f, s, _ = strings.Cut(s, " ")
		fields = append(fields, f)
	}
}

func parseWireError(rest string) error {
	code, msg, _ := strings.Cut(rest, " ")
	c, err := strconv.Atoi(code)
	if err != nil {
		return &Error{Code: -1, Message: strings.TrimSpace(rest)}
	}
	return &Error{Code: c, Message: msg}
}

// ParseSystemStatus parses a status reply block. The block opens with the
// #SYSTEM line and carries one #OUTPUT line per output; the #END
// terminator is not part of the block. Lines with other verbs are ignored.
func ParseSystemStatus(lines []string) (*SystemStatus, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty status reply")
	}
	verb, rest, ok := replyVerb(lines[0])
	if !ok || verb != replySystem {
		return nil, fmt.Errorf("unexpected reply: got %q, want #%v", lines[0], replySystem)
	}
	status, err := parseSystemHeader(rest)
	if err != nil {
		return nil, err
	}
	for _, line := range lines[1:] {
		verb, rest, ok := replyVerb(line)
		if !ok {
			continue
		}
		switch verb {
		case replyOutput:
			out, err := parseOutputStatus(rest)
			if err != nil {
				return nil, err
			}
			status.Outputs[out.ID] = out
		case replyErr:
			return nil, parseWireError(rest)
		}
	}
	return status, nil
}

// parseSystemHeader parses the remainder of a line of the form:
//
//	#SYSTEM "Main House" MODEL M6800 INPUTS 8 OUTPUTS 16
func parseSystemHeader(rest string) (*SystemStatus, error) {
	fields, err := splitFields(rest)
	if err != nil {
		return nil, fmt.Errorf("system header: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("system header: missing name")
	}
	status := &SystemStatus{
		Name:    fields[0],
		Outputs: map[OutputID]OutputStatus{},
	}
	for i := 1; i+1 < len(fields); i += 2 {
		if fields[i] == "MODEL" {
			status.Model = fields[i+1]
		}
	}
	return status, nil
}

// parseOutputStatus parses the remainder of a line of the form:
//
//	#OUTPUT 3 "Kitchen" POWER ON VOL 25 INPUT 2
//
// Volumes outside the device scale are clamped.
func parseOutputStatus(rest string) (OutputStatus, error) {
	var out OutputStatus
	fields, err := splitFields(rest)
	if err != nil {
		return out, fmt.Errorf("output status: %w", err)
	}
	if len(fields) < 2 {
		return out, fmt.Errorf("output status: truncated: %q", rest)
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return out, fmt.Errorf("output status: invalid id %q", fields[0])
	}
	out.ID = OutputID(id)
	out.Name = fields[1]
	for i := 2; i+1 < len(fields); i += 2 {
		key, val := fields[i], fields[i+1]
		switch key {
		case "POWER":
			out.On = val == "ON"
		case "VOL":
			v, err := strconv.Atoi(val)
			if err != nil {
				return out, fmt.Errorf("output status: invalid volume %q", val)
			}
			out.Volume = min(max(v, 0), MaxVolume)
		case "INPUT":
			v, err := strconv.Atoi(val)
			if err != nil {
				return out, fmt.Errorf("output status: invalid input %q", val)
			}
			out.Input = InputID(v)
		}
	}
	return out, nil
}
