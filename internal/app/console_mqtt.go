// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/adaptive_reader/internal/adaptive"
	"github.com/relabs-tech/adaptive_reader/internal/config"
	"github.com/relabs-tech/adaptive_reader/internal/light"
	"github.com/relabs-tech/adaptive_reader/internal/position"
	"github.com/relabs-tech/adaptive_reader/internal/proximity"
)

// RunConsoleMQTT prints what a running producer publishes.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	subs := []struct {
		topic  string
		handle func([]byte) error
	}{
		{cfg.TopicSignal, func(b []byte) error {
			var s adaptive.Signal
			if err := json.Unmarshal(b, &s); err != nil {
				return err
			}
			fmt.Println(RenderSignal(s))
			return nil
		}},
		{cfg.TopicPosition, func(b []byte) error {
			var s position.State
			if err := json.Unmarshal(b, &s); err != nil {
				return err
			}
			fmt.Printf("[POS ]  %-17s PITCH=%6.2f  ROLL=%6.2f  AZ=%6.2f  flick=%s\n",
				s.Position, s.SmoothedPitch, s.SmoothedRoll, s.Azimuth, s.Flick)
			return nil
		}},
		{cfg.TopicProximity, func(b []byte) error {
			var s proximity.State
			if err := json.Unmarshal(b, &s); err != nil {
				return err
			}
			fmt.Printf("[DIST]  %6.1fcm  avg=%6.1fcm  close=%v\n", s.DistanceCm(), s.AverageDistance*100, s.IsFaceTooClose)
			return nil
		}},
		{cfg.TopicLight, func(b []byte) error {
			var s light.State
			if err := json.Unmarshal(b, &s); err != nil {
				return err
			}
			fmt.Printf("[LUX ]  %8.1f  avg=%8.1f  %s\n", s.Lux, s.AverageLux, s.Category)
			return nil
		}},
	}

	for _, sub := range subs {
		topic, handle := sub.topic, sub.handle
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := handle(msg.Payload()); err != nil {
				log.Printf("console: %s unmarshal error: %v", topic, err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
