// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/adaptive_reader/internal/adaptive"
	"github.com/relabs-tech/adaptive_reader/internal/config"
	"github.com/relabs-tech/adaptive_reader/internal/light"
)

// displayData holds the latest reader data for the OLED.
type displayData struct {
	mu sync.RWMutex

	status     adaptive.Status
	haveStatus bool
	light      light.State
	haveLight  bool
	lastSignal adaptive.Signal
	haveSignal bool
}

// displayView is a copy of displayData without the lock.
type displayView struct {
	status     adaptive.Status
	haveStatus bool
	light      light.State
	haveLight  bool
	lastSignal adaptive.Signal
	haveSignal bool
}

func (d *displayData) view() displayView {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displayView{
		status:     d.status,
		haveStatus: d.haveStatus,
		light:      d.light,
		haveLight:  d.haveLight,
		lastSignal: d.lastSignal,
		haveSignal: d.haveSignal,
	}
}

// RunStatusDisplay shows the reader status on an SSD1306 OLED and drives
// its contrast from the reader theme.
func RunStatusDisplay() error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized %s", dev)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	contrast := adaptive.NewBrightnessController(&oledContrast{dev: dev, level: 1})
	contrast.Enable()
	defer contrast.Disable()

	data := &displayData{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeDisplay(client, cfg, data); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		v := data.view()
		if v.haveStatus {
			contrast.Adjust(adaptive.TargetBrightness(v.status.Theme))
		}
		if err := dev.Draw(dev.Bounds(), renderStatus(v, time.Now()), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func subscribeDisplay(client mqtt.Client, cfg *config.Config, data *displayData) error {
	handlers := map[string]func([]byte) error{
		cfg.TopicStatus: func(b []byte) error {
			var s adaptive.Status
			if err := json.Unmarshal(b, &s); err != nil {
				return err
			}
			data.mu.Lock()
			data.status = s
			data.haveStatus = true
			data.mu.Unlock()
			return nil
		},
		cfg.TopicLight: func(b []byte) error {
			var s light.State
			if err := json.Unmarshal(b, &s); err != nil {
				return err
			}
			data.mu.Lock()
			data.light = s
			data.haveLight = true
			data.mu.Unlock()
			return nil
		},
		cfg.TopicSignal: func(b []byte) error {
			var s adaptive.Signal
			if err := json.Unmarshal(b, &s); err != nil {
				return err
			}
			data.mu.Lock()
			data.lastSignal = s
			data.haveSignal = true
			data.mu.Unlock()
			return nil
		},
	}
	for topic, handle := range handlers {
		topic, handle := topic, handle
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := handle(msg.Payload()); err != nil {
				log.Printf("display: %s unmarshal error: %v", topic, err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("display: subscribed to %s", topic)
	}
	return nil
}

// Signals stay on the bottom line this long.
const signalHold = 5 * time.Second

func renderStatus(v displayView, now time.Time) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	if !v.haveStatus {
		drawLine(drawer, 26, "Reader")
		drawLine(drawer, 39, "Waiting...")
		return img
	}

	drawLine(drawer, 13, fmt.Sprintf("Page %d/%d", v.status.Page+1, v.status.PageCount))
	drawLine(drawer, 26, strings.TrimSuffix(v.status.Theme.String(), "_MODE"))
	if v.haveLight {
		drawLine(drawer, 39, fmt.Sprintf("%.0f lx %s", v.light.AverageLux, v.light.Category))
	}

	switch {
	case v.status.FreeFalling:
		drawLine(drawer, 52, "! FREE FALL")
	case v.status.FaceWarning != "":
		drawLine(drawer, 52, "! Too close")
	case v.haveSignal && now.Sub(v.lastSignal.Time) < signalHold:
		drawLine(drawer, 52, v.lastSignal.Kind.String())
	}
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newCanvas()
	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Adaptive"))
	drawer.Dot = fixed.P(25, 43)
	drawer.DrawBytes([]byte("Reader"))
	return img
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, y int, text string) {
	d.Dot = fixed.P(0, y)
	d.DrawBytes([]byte(text))
}

// oledContrast exposes the SSD1306 contrast register as a brightness level.
type oledContrast struct {
	dev   *ssd1306.Dev
	level float64
}

func (o *oledContrast) CanAdjustBrightness() bool { return o.dev != nil }

func (o *oledContrast) Brightness() (float64, error) { return o.level, nil }

func (o *oledContrast) SetBrightness(level float64) error {
	if err := o.dev.SetContrast(byte(level * 255)); err != nil {
		return err
	}
	o.level = level
	return nil
}
