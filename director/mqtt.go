// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package director

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher adapts a paho client to the Publisher interface.
type MQTTPublisher struct {
	client mqtt.Client

	mu   sync.Mutex
	subs []subscription
}

// Subscriptions do not survive a clean-session reconnect, so the
// OnConnect handler replays them.
type subscription struct {
	filter  string
	handler mqtt.MessageHandler
}

// ConnectMQTT connects to the configured broker. A last-will message is
// registered on willTopic so the host sees the bridge go offline even
// when the process dies without a clean shutdown.
func ConnectMQTT(cfg MQTTConfig, willTopic string, logger *slog.Logger) (*MQTTPublisher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("protocol", "director", "component", "mqtt")
	p := &MQTTPublisher{}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetWill(willTopic, payloadOffline, 1, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("connected", "broker", cfg.Broker)
		c.Publish(willTopic, 1, true, payloadOnline)
		for _, s := range p.subscriptions() {
			c.Subscribe(s.filter, 1, s.handler)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("connection lost", "err", err)
	})
	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("connect %v: %w", cfg.Broker, tok.Error())
	}
	p.client = client
	return p, nil
}

func (p *MQTTPublisher) subscriptions() []subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.subs)
}

func (p *MQTTPublisher) Publish(topic string, payload []byte, retain bool) error {
	tok := p.client.Publish(topic, 1, retain, payload)
	tok.Wait()
	return tok.Error()
}

func (p *MQTTPublisher) Subscribe(filter string, handler func(topic string, payload []byte)) error {
	h := func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Topic(), m.Payload())
	}
	p.mu.Lock()
	p.subs = append(p.subs, subscription{filter: filter, handler: h})
	p.mu.Unlock()
	tok := p.client.Subscribe(filter, 1, h)
	tok.Wait()
	return tok.Error()
}

// Close disconnects after allowing in-flight messages to drain.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
