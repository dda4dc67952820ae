// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"time"

	"github.com/relabs-tech/adaptive_reader/internal/adaptive"
	"github.com/relabs-tech/adaptive_reader/internal/config"
	"github.com/relabs-tech/adaptive_reader/internal/light"
	"github.com/relabs-tech/adaptive_reader/internal/motion"
	"github.com/relabs-tech/adaptive_reader/internal/position"
	"github.com/relabs-tech/adaptive_reader/internal/proximity"
	"github.com/relabs-tech/adaptive_reader/internal/sched"
	"github.com/relabs-tech/adaptive_reader/internal/sensors"
)

// Outputs receives everything the pipeline publishes. Nil fields are
// skipped.
type Outputs struct {
	Motion    func(motion.State)
	Position  func(position.State)
	Proximity func(proximity.State)
	Light     func(light.State)
	Signal    func(adaptive.Signal)
}

// Pipeline is the four processors feeding one reader session.
type Pipeline struct {
	Motion    *motion.Processor
	Position  *position.Processor
	Proximity *proximity.Processor
	Light     *light.Processor
	Session   *adaptive.Session
}

// NewPipeline builds the processors on src. display may be nil when the
// screen brightness cannot be controlled.
func NewPipeline(src sensors.Source, clock sched.Clock, cfg *config.Config, display adaptive.Display, out Outputs) *Pipeline {
	var bc *adaptive.BrightnessController
	if display != nil {
		bc = adaptive.NewBrightnessController(display)
	}
	session := adaptive.NewSession(clock, adaptive.SessionConfig{
		PageCount:      cfg.PageCount,
		AdaptiveTheme:  cfg.AdaptiveTheme,
		AutoBrightness: cfg.AutoBrightness,
	}, bc, out.Signal)

	posCfg := position.DefaultConfig()
	posCfg.FlickThreshold = cfg.FlickThreshold
	posCfg.FlickCooldown = time.Duration(cfg.FlickCooldownMS) * time.Millisecond

	rangeCfg := proximity.DefaultConfig()
	rangeCfg.FaceThreshold = cfg.FaceDistance
	rangeCfg.WarningCooldown = time.Duration(cfg.FaceWarningCooldownMS) * time.Millisecond

	return &Pipeline{
		Session: session,
		Motion: motion.New(src, clock, func(s motion.State) {
			session.OnMotion(s)
			if out.Motion != nil {
				out.Motion(s)
			}
		}),
		Position: position.New(src, clock, posCfg, func(s position.State) {
			session.OnPosition(s)
			if out.Position != nil {
				out.Position(s)
			}
		}),
		Proximity: proximity.New(src, clock, rangeCfg, func(s proximity.State) {
			session.OnProximity(s)
			if out.Proximity != nil {
				out.Proximity(s)
			}
		}),
		Light: light.New(src, clock, func(s light.State) {
			session.OnLight(s)
			if out.Light != nil {
				out.Light(s)
			}
		}),
	}
}

// Start starts the session and every processor whose sensor is present.
// It reports how many processors are running.
func (p *Pipeline) Start() int {
	p.Session.Start()
	started := 0
	for _, proc := range []struct {
		name  string
		start func() bool
	}{
		{"motion", p.Motion.Start},
		{"position", p.Position.Start},
		{"proximity", p.Proximity.Start},
		{"light", p.Light.Start},
	} {
		if proc.start() {
			started++
		} else {
			log.Printf("pipeline: %s processor not started", proc.name)
		}
	}
	return started
}

// Stop stops the processors, then the session.
func (p *Pipeline) Stop() {
	p.Motion.Stop()
	p.Position.Stop()
	p.Proximity.Stop()
	p.Light.Stop()
	p.Session.Stop()
}

// Snapshot is the latest state of every processor plus the reader status.
type Snapshot struct {
	Motion    motion.State    `json:"motion"`
	Position  position.State  `json:"position"`
	Proximity proximity.State `json:"proximity"`
	Light     light.State     `json:"light"`
	Reader    adaptive.Status `json:"reader"`
}

func (p *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		Motion:    p.Motion.State(),
		Position:  p.Position.State(),
		Proximity: p.Proximity.State(),
		Light:     p.Light.State(),
		Reader:    p.Session.Status(),
	}
}
