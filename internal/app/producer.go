// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/adaptive_reader/internal/adaptive"
	"github.com/relabs-tech/adaptive_reader/internal/config"
	"github.com/relabs-tech/adaptive_reader/internal/light"
	"github.com/relabs-tech/adaptive_reader/internal/motion"
	"github.com/relabs-tech/adaptive_reader/internal/position"
	"github.com/relabs-tech/adaptive_reader/internal/proximity"
	"github.com/relabs-tech/adaptive_reader/internal/replay"
	"github.com/relabs-tech/adaptive_reader/internal/sched"
	"github.com/relabs-tech/adaptive_reader/internal/sensors"
)

// RunReaderProducer reads the configured sensor feed, runs the processors
// and the reader session, and publishes every state and signal to MQTT.
func RunReaderProducer() error {
	cfg := config.Get()
	log.Printf("producer: starting (feed=%s)", cfg.FeedSource)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hub := sensors.NewHub()
	runFeed, err := openFeed(cfg, hub, client)
	if err != nil {
		return err
	}

	pub := &publisher{client: client}
	pipeline := NewPipeline(hub, sched.System(), cfg, newBacklight(pub, cfg.TopicBacklight), Outputs{
		Motion:    func(s motion.State) { pub.publish(cfg.TopicMotion, true, s) },
		Position:  func(s position.State) { pub.publish(cfg.TopicPosition, true, s) },
		Proximity: func(s proximity.State) { pub.publish(cfg.TopicProximity, true, s) },
		Light:     func(s light.State) { pub.publish(cfg.TopicLight, true, s) },
		Signal:    func(s adaptive.Signal) { pub.publish(cfg.TopicSignal, false, s) },
	})
	if pipeline.Start() == 0 {
		log.Printf("producer: no processor could start, check FEED_SENSORS")
	}
	defer pipeline.Stop()

	if err := subscribeThemeRequests(client, cfg.TopicThemeSet, pipeline.Session); err != nil {
		return err
	}

	feedErr := make(chan error, 1)
	go func() { feedErr <- runFeed(ctx) }()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("producer: shutting down")
			return nil
		case err := <-feedErr:
			if err != nil {
				return fmt.Errorf("feed %s: %w", cfg.FeedSource, err)
			}
			log.Printf("producer: feed %s finished", cfg.FeedSource)
			return nil
		case <-ticker.C:
			pub.publish(cfg.TopicStatus, true, pipeline.Session.Status())
		}
	}
}

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Printf("connected to MQTT broker at %s as %s", broker, clientID)
	return client, nil
}

// openFeed attaches the configured feed's sensors to hub and returns the
// function that pumps readings until ctx is done.
func openFeed(cfg *config.Config, hub *sensors.Hub, client mqtt.Client) (func(context.Context) error, error) {
	switch cfg.FeedSource {
	case config.FeedMQTT, config.FeedSerial:
		types, err := sensors.ParseTypes(cfg.FeedSensors)
		if err != nil {
			return nil, fmt.Errorf("FEED_SENSORS: %w", err)
		}
		hub.AttachAll(sensors.Inventory(cfg.FeedName, types, cfg.ProximityMaxRange))
		if cfg.FeedSource == config.FeedSerial {
			return sensors.NewSerialFeed(hub, cfg.SerialPort, cfg.SerialBaudRate).Run, nil
		}
		feed := sensors.NewMQTTFeed(client, hub, cfg.TopicRawPrefix)
		if err := feed.Start(); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			<-ctx.Done()
			feed.Stop()
			return nil
		}, nil

	case config.FeedIMU:
		feed, err := sensors.NewIMUFeed(hub)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			feed.Run(ctx)
			return nil
		}, nil

	case config.FeedReplay:
		trace, err := replay.Load(cfg.ReplayFile)
		if err != nil {
			return nil, err
		}
		player, err := replay.NewPlayer(hub, trace)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			player.Run(ctx, 1)
			return nil
		}, nil

	default:
		feed := sensors.NewMockFeed(hub)
		interval := time.Duration(cfg.SampleIntervalMS) * time.Millisecond
		return func(ctx context.Context) error {
			feed.Run(ctx, interval)
			return nil
		}, nil
	}
}

func subscribeThemeRequests(client mqtt.Client, topic string, session *adaptive.Session) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := applyThemeRequest(session, msg.Payload()); err != nil {
			log.Printf("producer: theme request: %v", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Printf("producer: subscribed to %s", topic)
	return nil
}

// ThemeRequest is the payload of a manual theme change. An empty Theme with
// Adaptive set returns to automatic selection.
type ThemeRequest struct {
	Theme    string `json:"theme,omitempty"`
	Adaptive *bool  `json:"adaptive,omitempty"`
	Page     *int   `json:"page,omitempty"`
}

func applyThemeRequest(session *adaptive.Session, payload []byte) error {
	var req ThemeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if req.Theme != "" {
		t, ok := adaptive.ParseTheme(req.Theme)
		if !ok {
			return fmt.Errorf("unknown theme %q", req.Theme)
		}
		session.SetTheme(t)
	}
	if req.Adaptive != nil {
		session.SetAdaptiveTheme(*req.Adaptive)
	}
	if req.Page != nil {
		session.GoTo(*req.Page)
	}
	return nil
}

type publisher struct {
	client mqtt.Client
}

func (p *publisher) publish(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("json marshal error (%s): %v", topic, err)
		return
	}
	p.raw(topic, retained, payload)
}

func (p *publisher) raw(topic string, retained bool, payload []byte) {
	token := p.client.Publish(topic, 0, retained, payload)
	if token.WaitTimeout(time.Second) && token.Error() != nil {
		log.Printf("MQTT publish error (%s): %v", topic, token.Error())
	}
}

// backlight is the phone screen seen through MQTT: levels are published on
// a topic the phone-side bridge applies.
type backlight struct {
	pub   *publisher
	topic string

	mu    sync.Mutex
	level float64
}

func newBacklight(pub *publisher, topic string) adaptive.Display {
	if topic == "" {
		return nil
	}
	return &backlight{pub: pub, topic: topic, level: 0.5}
}

func (b *backlight) CanAdjustBrightness() bool { return b.pub.client.IsConnectionOpen() }

func (b *backlight) Brightness() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level, nil
}

func (b *backlight) SetBrightness(level float64) error {
	if !b.pub.client.IsConnectionOpen() {
		return adaptive.ErrNoPermission
	}
	b.mu.Lock()
	b.level = level
	b.mu.Unlock()
	b.pub.raw(b.topic, true, []byte(strconv.FormatFloat(level, 'f', 3, 64)))
	return nil
}
