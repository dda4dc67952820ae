// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package adaptive

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/adaptive_reader/internal/light"
	"github.com/relabs-tech/adaptive_reader/internal/motion"
	"github.com/relabs-tech/adaptive_reader/internal/position"
	"github.com/relabs-tech/adaptive_reader/internal/proximity"
	"github.com/relabs-tech/adaptive_reader/internal/sched"
)

// SignalKind identifies a reader UI signal.
type SignalKind int

const (
	PageTurned SignalKind = iota + 1
	ThemeChanged
	BrightnessChanged
	FaceTooClose
	FreeFall
)

var signalNames = map[SignalKind]string{
	PageTurned:        "page_turned",
	ThemeChanged:      "theme_changed",
	BrightnessChanged: "brightness_changed",
	FaceTooClose:      "face_too_close",
	FreeFall:          "free_fall",
}

func (k SignalKind) String() string {
	if n, ok := signalNames[k]; ok {
		return n
	}
	return "unknown"
}

func (k SignalKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *SignalKind) UnmarshalText(b []byte) error {
	for v := PageTurned; v <= FreeFall; v++ {
		if v.String() == string(b) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown signal kind %q", b)
}

// Signal is one UI action derived from processor states.
type Signal struct {
	SessionID string     `json:"session_id"`
	Kind      SignalKind `json:"kind"`
	Page      int        `json:"page,omitempty"`
	Theme     Theme      `json:"theme"`
	Level     float64    `json:"level,omitempty"`
	Message   string     `json:"message,omitempty"`
	Source    string     `json:"source,omitempty"`
	Time      time.Time  `json:"time"`
}

// Status is the reader presentation at one point in time.
type Status struct {
	SessionID      string    `json:"session_id"`
	Page           int       `json:"page"`
	PageCount      int       `json:"page_count"`
	Theme          Theme     `json:"theme"`
	Scheme         Scheme    `json:"scheme"`
	BlueLight      float64   `json:"blue_light_intensity"`
	AdaptiveTheme  bool      `json:"adaptive_theme"`
	AutoBrightness bool      `json:"auto_brightness"`
	FaceWarning    string    `json:"face_warning,omitempty"`
	FreeFalling    bool      `json:"free_falling"`
	Time           time.Time `json:"time"`
}

// Navigation cooldowns.
const (
	FlickNavigationCooldown    = time.Second
	MovementNavigationCooldown = 300 * time.Millisecond
)

// SessionConfig holds the reader switches.
type SessionConfig struct {
	PageCount      int
	StartPage      int
	AdaptiveTheme  bool
	AutoBrightness bool
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{PageCount: 1, AdaptiveTheme: true, AutoBrightness: true}
}

// Session turns processor states into reader signals: page turns, theme
// and brightness changes, and safety warnings.
type Session struct {
	id         string
	clock      sched.Clock
	brightness *BrightnessController
	onSignal   func(Signal)

	mu           sync.Mutex
	cfg          SessionConfig
	page         int
	theme        Theme
	lastFlick    time.Time
	lastMovement time.Time
	faceWarning  string
	faceAt       time.Time
	freeFalling  bool
	started      bool
}

// NewSession creates a reader session. brightness may be nil when the
// display cannot be controlled; onSignal may be nil.
func NewSession(clock sched.Clock, cfg SessionConfig, brightness *BrightnessController, onSignal func(Signal)) *Session {
	if cfg.PageCount < 1 {
		cfg.PageCount = 1
	}
	s := &Session{
		id:         uuid.NewString(),
		clock:      clock,
		brightness: brightness,
		onSignal:   onSignal,
		cfg:        cfg,
		theme:      NormalMode,
	}
	s.page = clampPage(cfg.StartPage, cfg.PageCount)
	return s
}

func (s *Session) ID() string { return s.id }

// Start takes brightness control when auto brightness is on.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	if s.cfg.AutoBrightness && s.brightness != nil && !s.brightness.Enable() {
		log.Printf("session %s: auto brightness unavailable", s.id)
	}
	log.Printf("session %s: started (%d pages)", s.id, s.cfg.PageCount)
}

// Stop restores the display brightness.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	if s.brightness != nil {
		s.brightness.Disable()
	}
	log.Printf("session %s: stopped", s.id)
}

// Status returns the current presentation.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		SessionID:      s.id,
		Page:           s.page,
		PageCount:      s.cfg.PageCount,
		Theme:          s.theme,
		Scheme:         SchemeFor(s.theme),
		BlueLight:      s.blueLightLocked(),
		AdaptiveTheme:  s.cfg.AdaptiveTheme,
		AutoBrightness: s.cfg.AutoBrightness,
		FaceWarning:    s.faceWarning,
		FreeFalling:    s.freeFalling,
		Time:           s.clock.Now(),
	}
}

func (s *Session) blueLightLocked() float64 {
	if s.cfg.AdaptiveTheme && s.theme == NightMode {
		return BlueLightIntensity(s.theme)
	}
	return 0
}

// SetAdaptiveTheme toggles automatic theme selection.
func (s *Session) SetAdaptiveTheme(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.AdaptiveTheme = on
}

// SetAutoBrightness toggles automatic brightness.
func (s *Session) SetAutoBrightness(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.AutoBrightness == on {
		return
	}
	s.cfg.AutoBrightness = on
	if s.brightness == nil || !s.started {
		return
	}
	if on {
		s.brightness.Enable()
	} else {
		s.brightness.Disable()
	}
}

// SetTheme selects a theme by hand. It switches adaptive theme off.
func (s *Session) SetTheme(t Theme) {
	var sig []Signal
	s.mu.Lock()
	s.cfg.AdaptiveTheme = false
	if t != s.theme {
		s.theme = t
		sig = append(sig, s.signalLocked(ThemeChanged, "manual"))
	}
	s.mu.Unlock()
	s.emit(sig)
}

// GoTo jumps to page, clamped to the document.
func (s *Session) GoTo(page int) {
	var sig []Signal
	s.mu.Lock()
	if p := clampPage(page, s.cfg.PageCount); p != s.page {
		s.page = p
		sig = append(sig, s.signalLocked(PageTurned, "manual"))
	}
	s.mu.Unlock()
	s.emit(sig)
}

// OnPosition turns flicks into page turns: left is next, right is previous.
func (s *Session) OnPosition(st position.State) {
	if st.Flick != position.FlickLeft && st.Flick != position.FlickRight {
		return
	}
	var sig []Signal
	s.mu.Lock()
	now := s.clock.Now()
	if s.lastFlick.IsZero() || now.Sub(s.lastFlick) >= FlickNavigationCooldown {
		if s.turnLocked(st.Flick == position.FlickLeft) {
			s.lastFlick = now
			sig = append(sig, s.signalLocked(PageTurned, "flick_"+st.Flick.String()))
		}
	}
	s.mu.Unlock()
	s.emit(sig)
}

// OnMotion turns horizontal movement into page turns and raises the free
// fall warning on its rising edge.
func (s *Session) OnMotion(st motion.State) {
	var sig []Signal
	s.mu.Lock()
	now := s.clock.Now()
	if st.Movement != motion.None &&
		(s.lastMovement.IsZero() || now.Sub(s.lastMovement) >= MovementNavigationCooldown) {
		if s.turnLocked(st.Movement == motion.Left) {
			s.lastMovement = now
			sig = append(sig, s.signalLocked(PageTurned, "movement_"+st.Movement.String()))
		}
	}
	if st.IsFreeFalling && !s.freeFalling {
		w := s.signalLocked(FreeFall, "motion")
		w.Message = "Device is falling!"
		sig = append(sig, w)
	}
	s.freeFalling = st.IsFreeFalling
	s.mu.Unlock()
	s.emit(sig)
}

// OnProximity surfaces each new face distance warning once.
func (s *Session) OnProximity(st proximity.State) {
	var sig []Signal
	s.mu.Lock()
	switch {
	case st.Warning == "":
		s.faceWarning = ""
	case s.faceWarning != "" && st.WarningAt.Equal(s.faceAt):
		s.faceWarning = st.Warning
	default:
		s.faceWarning = st.Warning
		s.faceAt = st.WarningAt
		w := s.signalLocked(FaceTooClose, "proximity")
		w.Message = st.Warning
		sig = append(sig, w)
	}
	s.mu.Unlock()
	s.emit(sig)
}

// OnLight follows the light category with the theme and brightness.
func (s *Session) OnLight(st light.State) {
	if !st.IsAvailable || !st.IsActive {
		return
	}
	var sig []Signal
	s.mu.Lock()
	if s.cfg.AdaptiveTheme {
		if t := ThemeFor(st.Category); t != s.theme {
			s.theme = t
			sig = append(sig, s.signalLocked(ThemeChanged, st.Category.String()))
		}
	}
	if s.cfg.AutoBrightness && s.brightness != nil && s.started {
		rec := st.RecommendedBrightness
		if s.cfg.AdaptiveTheme {
			rec = TargetBrightness(s.theme)
		}
		if s.brightness.Adjust(rec) {
			b := s.signalLocked(BrightnessChanged, st.Category.String())
			b.Level = TargetLevel(rec)
			sig = append(sig, b)
		}
	}
	s.mu.Unlock()
	s.emit(sig)
}

func (s *Session) turnLocked(forward bool) bool {
	next := s.page - 1
	if forward {
		next = s.page + 1
	}
	if next < 0 || next >= s.cfg.PageCount {
		return false
	}
	s.page = next
	return true
}

func (s *Session) signalLocked(kind SignalKind, source string) Signal {
	return Signal{
		SessionID: s.id,
		Kind:      kind,
		Page:      s.page,
		Theme:     s.theme,
		Source:    source,
		Time:      s.clock.Now(),
	}
}

func (s *Session) emit(sig []Signal) {
	for _, v := range sig {
		switch v.Kind {
		case PageTurned:
			log.Printf("session %s: page %d (%s)", s.id, v.Page, v.Source)
		case ThemeChanged:
			log.Printf("session %s: theme %s (%s)", s.id, v.Theme, v.Source)
		case FaceTooClose, FreeFall:
			log.Printf("session %s: warning: %s", s.id, v.Message)
		}
		if s.onSignal != nil {
			s.onSignal(v)
		}
	}
}

func clampPage(p, count int) int {
	if p < 0 {
		return 0
	}
	if p >= count {
		return count - 1
	}
	return p
}
