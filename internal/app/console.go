// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/relabs-tech/adaptive_reader/internal/adaptive"
	"github.com/relabs-tech/adaptive_reader/internal/config"
	"github.com/relabs-tech/adaptive_reader/internal/replay"
	"github.com/relabs-tech/adaptive_reader/internal/sched"
	"github.com/relabs-tech/adaptive_reader/internal/sensors"
)

// RunConsole runs the whole pipeline locally and prints the reader status.
// With a trace path it replays the trace, otherwise it uses the mock feed.
func RunConsole(tracePath string) error {
	cfg := config.Get()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hub := sensors.NewHub()
	var run func(context.Context)
	if tracePath != "" {
		trace, err := replay.Load(tracePath)
		if err != nil {
			return err
		}
		player, err := replay.NewPlayer(hub, trace)
		if err != nil {
			return err
		}
		run = func(ctx context.Context) {
			player.Run(ctx, 1)
			cancel()
		}
	} else {
		feed := sensors.NewMockFeed(hub)
		interval := time.Duration(cfg.SampleIntervalMS) * time.Millisecond
		run = func(ctx context.Context) { feed.Run(ctx, interval) }
	}

	screen := adaptive.NewMemoryDisplay(0.5, true)
	pipeline := NewPipeline(hub, sched.System(), cfg, screen, Outputs{
		Signal: func(s adaptive.Signal) { fmt.Println(RenderSignal(s)) },
	})
	pipeline.Start()
	defer pipeline.Stop()

	go run(ctx)

	ticker := time.NewTicker(time.Duration(cfg.ConsoleLogInterval) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("console: shutting down")
			return nil
		case <-ticker.C:
			level, _ := screen.Brightness()
			fmt.Println(RenderSnapshot(pipeline.Snapshot(), level))
		}
	}
}

// RenderSnapshot draws one status box in the reader's current colours.
func RenderSnapshot(s Snapshot, level float64) string {
	scheme := s.Reader.Scheme
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(scheme.Primary))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color(scheme.OnBackground))
	warn := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(scheme.Error))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(scheme.Secondary)).
		Background(lipgloss.Color(scheme.Background)).
		Padding(0, 1)

	lines := []string{
		title.Render(fmt.Sprintf("page %d/%d  %s", s.Reader.Page+1, s.Reader.PageCount, s.Reader.Theme)),
		body.Render(fmt.Sprintf("brightness %3.0f%%  blue filter %3.0f%%", level*100, s.Reader.BlueLight*100)),
		body.Render(fmt.Sprintf("position %s  rotation %s  tilt %5.1f°", s.Position.Position, s.Position.Rotation, s.Position.TiltAngle)),
		body.Render(fmt.Sprintf("pitch %6.1f  roll %6.1f  azimuth %6.1f", s.Position.SmoothedPitch, s.Position.SmoothedRoll, s.Position.Azimuth)),
		body.Render(fmt.Sprintf("motion %s  |a| %5.2f  movement %s", s.Motion.Orientation, s.Motion.AccelerationMagnitude, s.Motion.Movement)),
	}
	if s.Proximity.IsAvailable {
		lines = append(lines, body.Render(fmt.Sprintf("distance %5.1fcm (avg %5.1fcm, %s)", s.Proximity.DistanceCm(), s.Proximity.AverageDistance*100, s.Proximity.Kind)))
	}
	if s.Light.IsAvailable {
		lines = append(lines, body.Render(fmt.Sprintf("light %7.1f lux (%s)", s.Light.AverageLux, s.Light.Category)))
	}
	if s.Reader.FaceWarning != "" {
		lines = append(lines, warn.Render(s.Reader.FaceWarning))
	}
	if s.Reader.FreeFalling {
		lines = append(lines, warn.Render("FREE FALL"))
	}
	return box.Render(strings.Join(lines, "\n"))
}

// RenderSignal formats one reader signal as a single line.
func RenderSignal(s adaptive.Signal) string {
	scheme := adaptive.SchemeFor(s.Theme)
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(scheme.Tertiary))
	switch s.Kind {
	case adaptive.FaceTooClose, adaptive.FreeFall:
		style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(scheme.Error))
	}

	text := fmt.Sprintf("[%s] %s", s.Time.Format("15:04:05.000"), s.Kind)
	switch s.Kind {
	case adaptive.PageTurned:
		text += fmt.Sprintf(" -> page %d (%s)", s.Page+1, s.Source)
	case adaptive.ThemeChanged:
		text += fmt.Sprintf(" -> %s (%s)", s.Theme, s.Source)
	case adaptive.BrightnessChanged:
		text += fmt.Sprintf(" -> %.0f%%", s.Level*100)
	default:
		text += ": " + s.Message
	}
	return style.Render(text)
}
