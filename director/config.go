// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package director

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/cosnicolaou/director/directortelnet"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPollInterval is how often the amplifier is polled for status.
	DefaultPollInterval = 2 * time.Second
	// DefaultPollTimeout bounds a single poll or command, connection
	// establishment included.
	DefaultPollTimeout = 10 * time.Second
)

// Duration is a time.Duration that unmarshals from YAML strings such as
// "2s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

type PollConfig struct {
	Interval Duration `yaml:"interval,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
}

type TelnetConfig struct {
	Port           int      `yaml:"port,omitempty"`
	ConnectTimeout Duration `yaml:"connect_timeout,omitempty"`
	RequestTimeout Duration `yaml:"request_timeout,omitempty"`
}

type MQTTConfig struct {
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client_id,omitempty"`
	Username        string `yaml:"username,omitempty"`
	Password        string `yaml:"password,omitempty"`
	TopicPrefix     string `yaml:"topic_prefix,omitempty"`
	DiscoveryPrefix string `yaml:"discovery_prefix,omitempty"`
}

// Config describes one amplifier and the broker the bridge announces it
// through. UniqueID names the device to the host and forms a topic
// segment, so it is restricted to characters safe in both roles.
type Config struct {
	Host     string       `yaml:"host"`
	UniqueID string       `yaml:"unique_id"`
	Name     string       `yaml:"name,omitempty"`
	Poll     PollConfig   `yaml:"poll,omitempty"`
	Telnet   TelnetConfig `yaml:"telnet,omitempty"`
	MQTT     MQTTConfig   `yaml:"mqtt"`
}

var uniqueIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidUniqueID reports whether id is usable as a device identifier and
// topic segment.
func ValidUniqueID(id string) bool {
	return uniqueIDRe.MatchString(id)
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host must be specified")
	}
	if !ValidHostname(c.Host) {
		return fmt.Errorf("invalid host: %q", c.Host)
	}
	if c.UniqueID == "" {
		return fmt.Errorf("unique_id must be specified")
	}
	if !ValidUniqueID(c.UniqueID) {
		return fmt.Errorf("invalid unique_id: %q", c.UniqueID)
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must be specified")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "Director"
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = Duration(DefaultPollInterval)
	}
	if c.Poll.Timeout == 0 {
		c.Poll.Timeout = Duration(DefaultPollTimeout)
	}
	if c.Telnet.Port == 0 {
		c.Telnet.Port = directortelnet.DefaultPort
	}
	if c.Telnet.ConnectTimeout == 0 {
		c.Telnet.ConnectTimeout = Duration(5 * time.Second)
	}
	if c.Telnet.RequestTimeout == 0 {
		c.Telnet.RequestTimeout = Duration(5 * time.Second)
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "directord-" + c.UniqueID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "directord"
	}
	if c.MQTT.DiscoveryPrefix == "" {
		c.MQTT.DiscoveryPrefix = "homeassistant"
	}
}

// Broker credentials may be supplied via the environment in preference to
// the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DIRECTORD_MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("DIRECTORD_MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
}

// ParseConfig parses a YAML configuration, applies defaults and the
// environment credential overrides, and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadConfig reads and parses the configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	return cfg, nil
}

// ClientOptions returns the amplifier client options for this config.
func (c *Config) ClientOptions() []directortelnet.ClientOption {
	return []directortelnet.ClientOption{
		directortelnet.WithPort(c.Telnet.Port),
		directortelnet.WithConnectTimeout(time.Duration(c.Telnet.ConnectTimeout)),
		directortelnet.WithRequestTimeout(time.Duration(c.Telnet.RequestTimeout)),
	}
}

// DialFunc returns a dialer that yields a newly connected amplifier client
// per call. The device supports a single control session, so connections
// are made per operation rather than held open.
func (c *Config) DialFunc(logger *slog.Logger) DialFunc {
	opts := c.ClientOptions()
	if logger != nil {
		opts = append(opts, directortelnet.WithLogger(logger))
	}
	host := c.Host
	return func(ctx context.Context) (Client, error) {
		client, err := directortelnet.NewClient(host, opts...)
		if err != nil {
			return nil, err
		}
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
}
