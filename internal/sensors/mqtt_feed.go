// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// RawEvent is the JSON schema of a raw reading published by a phone-side
// sensor bridge on "<prefix>/<type>".
type RawEvent struct {
	Sensor   string    `json:"sensor,omitempty"` // optional sensor name, defaults to the type's default sensor
	Values   []float64 `json:"values"`
	Accuracy *int      `json:"accuracy,omitempty"` // platform status code
	TimeMS   int64     `json:"ts_ms,omitempty"`
}

// MQTTFeed fills a Hub from raw events published over MQTT.
//
// Topics:
//
//	<prefix>/<type>           RawEvent JSON
//	<prefix>/<type>/accuracy  platform status code as plain integer
type MQTTFeed struct {
	client mqtt.Client
	hub    *Hub
	prefix string
}

func NewMQTTFeed(client mqtt.Client, hub *Hub, prefix string) *MQTTFeed {
	return &MQTTFeed{
		client: client,
		hub:    hub,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

// Start subscribes to every raw event topic under the prefix.
func (f *MQTTFeed) Start() error {
	topic := f.prefix + "/#"
	token := f.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := f.Handle(msg.Topic(), msg.Payload()); err != nil {
			log.Printf("mqtt feed: %v", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Printf("mqtt feed: subscribed to %s", topic)
	return nil
}

// Stop unsubscribes from the raw event topics.
func (f *MQTTFeed) Stop() {
	token := f.client.Unsubscribe(f.prefix + "/#")
	token.WaitTimeout(time.Second)
}

// Handle decodes one message and dispatches it into the hub.
func (f *MQTTFeed) Handle(topic string, payload []byte) error {
	rest := strings.TrimPrefix(topic, f.prefix+"/")
	if rest == topic {
		return fmt.Errorf("topic %q outside prefix %q", topic, f.prefix)
	}
	parts := strings.Split(rest, "/")

	t, err := ParseType(parts[0])
	if err != nil {
		return fmt.Errorf("topic %q: %w", topic, err)
	}

	if len(parts) == 2 && parts[1] == "accuracy" {
		var status int
		if err := json.Unmarshal(payload, &status); err != nil {
			return fmt.Errorf("accuracy %s: %w", t, err)
		}
		s, ok := f.hub.Default(t)
		if !ok {
			return fmt.Errorf("accuracy %s: %w", t, ErrUnknownSensor)
		}
		f.hub.SetAccuracy(s, AccuracyFromStatus(status))
		return nil
	}

	var raw RawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("decode %s event: %w", t, err)
	}

	var s Sensor
	var ok bool
	if raw.Sensor != "" {
		s, ok = f.hub.Lookup(raw.Sensor)
	} else {
		s, ok = f.hub.Default(t)
	}
	if !ok {
		return fmt.Errorf("%s event: %w", t, ErrUnknownSensor)
	}

	ev := Event{Sensor: s, Values: raw.Values, Accuracy: AccuracyUnknown}
	if raw.Accuracy != nil {
		ev.Accuracy = AccuracyFromStatus(*raw.Accuracy)
	}
	if raw.TimeMS > 0 {
		ev.Time = time.UnixMilli(raw.TimeMS)
	}
	f.hub.Dispatch(ev)
	return nil
}
