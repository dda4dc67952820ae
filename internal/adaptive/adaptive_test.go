package adaptive

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/adaptive_reader/internal/light"
	"github.com/relabs-tech/adaptive_reader/internal/motion"
	"github.com/relabs-tech/adaptive_reader/internal/position"
	"github.com/relabs-tech/adaptive_reader/internal/proximity"
	"github.com/relabs-tech/adaptive_reader/internal/sched"
)

func TestThemeFor(t *testing.T) {
	tests := []struct {
		c    light.Category
		want Theme
	}{
		{light.Dark, NightMode},
		{light.VeryDim, NightMode},
		{light.Dim, NormalMode},
		{light.Normal, NormalMode},
		{light.Bright, HighContrastMode},
		{light.VeryBright, HighContrastMode},
	}
	for _, tt := range tests {
		if got := ThemeFor(tt.c); got != tt.want {
			t.Errorf("ThemeFor(%s) = %s, want %s", tt.c, got, tt.want)
		}
	}
}

func TestThemeTargets(t *testing.T) {
	tests := []struct {
		theme      Theme
		brightness float64
		blue       float64
		background string
	}{
		{NightMode, 0.15, 0.6, "#0A0A0A"},
		{NormalMode, 0.5, 0.3, "#0D0D0D"},
		{HighContrastMode, 0.9, 0.0, "#000000"},
	}
	for _, tt := range tests {
		if got := TargetBrightness(tt.theme); got != tt.brightness {
			t.Errorf("TargetBrightness(%s) = %v, want %v", tt.theme, got, tt.brightness)
		}
		if got := BlueLightIntensity(tt.theme); got != tt.blue {
			t.Errorf("BlueLightIntensity(%s) = %v, want %v", tt.theme, got, tt.blue)
		}
		if got := SchemeFor(tt.theme).Background; got != tt.background {
			t.Errorf("SchemeFor(%s).Background = %s, want %s", tt.theme, got, tt.background)
		}
	}
	if got, ok := ParseTheme("NIGHT_MODE"); !ok || got != NightMode {
		t.Errorf("ParseTheme(NIGHT_MODE) = %s, %v", got, ok)
	}
	if _, ok := ParseTheme("sepia"); ok {
		t.Error("ParseTheme(sepia) succeeded")
	}
}

func TestBrightnessControllerEnableDisable(t *testing.T) {
	d := NewMemoryDisplay(0.7, true)
	c := NewBrightnessController(d)

	if c.Adjust(0.1) {
		t.Fatal("Adjust before Enable changed the level")
	}
	if !c.Enable() {
		t.Fatal("Enable returned false")
	}
	if !c.Adjust(0) {
		t.Fatal("Adjust(0) did not change the level")
	}
	if lvl, _ := d.Brightness(); math.Abs(lvl-MinLevel) > 1e-9 {
		t.Errorf("level = %v, want %v", lvl, MinLevel)
	}
	c.Disable()
	if lvl, _ := d.Brightness(); lvl != 0.7 {
		t.Errorf("restored level = %v, want 0.7", lvl)
	}
	if c.Enabled() {
		t.Error("controller still enabled")
	}
}

func TestBrightnessControllerNoPermission(t *testing.T) {
	d := NewMemoryDisplay(0.5, false)
	c := NewBrightnessController(d)
	if c.Enable() {
		t.Fatal("Enable succeeded without permission")
	}
	if c.Adjust(1) {
		t.Fatal("Adjust changed level without permission")
	}
	if d.Writes() != 0 {
		t.Errorf("writes = %d, want 0", d.Writes())
	}
}

func TestBrightnessControllerSkipsSmallChanges(t *testing.T) {
	d := NewMemoryDisplay(TargetLevel(0.5), true)
	c := NewBrightnessController(d)
	c.Enable()

	if c.Adjust(0.53) {
		t.Error("3% change was applied")
	}
	if !c.Adjust(0.9) {
		t.Error("large change was skipped")
	}
	if !c.Adjust(7) {
		t.Error("out of range recommendation was not clamped and applied")
	}
	if lvl, _ := d.Brightness(); math.Abs(lvl-1) > 1e-9 {
		t.Errorf("level = %v, want 1", lvl)
	}
}

type failingDisplay struct{}

func (failingDisplay) CanAdjustBrightness() bool    { return true }
func (failingDisplay) Brightness() (float64, error) { return 0, errors.New("i2c gone") }
func (failingDisplay) SetBrightness(float64) error  { panic("bus fault") }

func TestBrightnessControllerNeverPanics(t *testing.T) {
	c := NewBrightnessController(failingDisplay{})
	if !c.Enable() {
		t.Fatal("Enable returned false")
	}
	if c.Adjust(0.9) {
		t.Error("Adjust reported a change after a panic")
	}
	c.Disable()
}

type signals []Signal

func (s *signals) record(sig Signal) { *s = append(*s, sig) }

func (s signals) count(k SignalKind) int {
	n := 0
	for _, v := range s {
		if v.Kind == k {
			n++
		}
	}
	return n
}

func newTestSession(cfg SessionConfig, d Display) (*Session, *sched.Manual, *signals) {
	clock := sched.NewManual(time.Unix(0, 0))
	var got signals
	var bc *BrightnessController
	if d != nil {
		bc = NewBrightnessController(d)
	}
	s := NewSession(clock, cfg, bc, got.record)
	s.Start()
	return s, clock, &got
}

func TestSessionFlickTurnsPagesWithCooldown(t *testing.T) {
	s, clock, got := newTestSession(SessionConfig{PageCount: 3}, nil)

	s.OnPosition(position.State{Flick: position.FlickLeft})
	s.OnPosition(position.State{Flick: position.FlickLeft})
	if p := s.Status().Page; p != 1 {
		t.Fatalf("page = %d, want 1 (second flick inside cooldown)", p)
	}

	clock.Advance(FlickNavigationCooldown)
	s.OnPosition(position.State{Flick: position.FlickLeft})
	clock.Advance(FlickNavigationCooldown)
	s.OnPosition(position.State{Flick: position.FlickLeft})
	if p := s.Status().Page; p != 2 {
		t.Fatalf("page = %d, want 2 (last page)", p)
	}

	clock.Advance(FlickNavigationCooldown)
	s.OnPosition(position.State{Flick: position.FlickRight})
	if p := s.Status().Page; p != 1 {
		t.Fatalf("page = %d, want 1 after right flick", p)
	}
	if n := got.count(PageTurned); n != 3 {
		t.Errorf("page signals = %d, want 3", n)
	}

	s.OnPosition(position.State{Flick: position.FlickUp})
	if p := s.Status().Page; p != 1 {
		t.Errorf("vertical flick turned the page to %d", p)
	}
}

func TestSessionMovementTurnsPages(t *testing.T) {
	s, clock, _ := newTestSession(SessionConfig{PageCount: 5, StartPage: 2}, nil)

	s.OnMotion(motion.State{Movement: motion.Right})
	if p := s.Status().Page; p != 1 {
		t.Fatalf("page = %d, want 1", p)
	}
	clock.Advance(100 * time.Millisecond)
	s.OnMotion(motion.State{Movement: motion.Right})
	if p := s.Status().Page; p != 1 {
		t.Fatalf("page = %d, want 1 inside cooldown", p)
	}
	clock.Advance(MovementNavigationCooldown)
	s.OnMotion(motion.State{Movement: motion.Right})
	clock.Advance(MovementNavigationCooldown)
	s.OnMotion(motion.State{Movement: motion.Right})
	if p := s.Status().Page; p != 0 {
		t.Fatalf("page = %d, want 0 (first page)", p)
	}
	clock.Advance(MovementNavigationCooldown)
	s.OnMotion(motion.State{Movement: motion.Left})
	if p := s.Status().Page; p != 1 {
		t.Fatalf("page = %d, want 1", p)
	}
}

func TestSessionFreeFallWarningOnRisingEdge(t *testing.T) {
	s, _, got := newTestSession(DefaultSessionConfig(), nil)

	s.OnMotion(motion.State{IsFreeFalling: true})
	s.OnMotion(motion.State{IsFreeFalling: true})
	s.OnMotion(motion.State{})
	s.OnMotion(motion.State{IsFreeFalling: true})
	if n := got.count(FreeFall); n != 2 {
		t.Errorf("free fall signals = %d, want 2", n)
	}
	if !s.Status().FreeFalling {
		t.Error("status does not report free fall")
	}
}

func TestSessionFaceWarning(t *testing.T) {
	s, clock, got := newTestSession(DefaultSessionConfig(), nil)
	at := clock.Now()
	st := proximity.State{IsFaceTooClose: true, Warning: "Too close!", WarningAt: at}

	s.OnProximity(st)
	s.OnProximity(st)
	if n := got.count(FaceTooClose); n != 1 {
		t.Fatalf("face signals = %d, want 1", n)
	}
	if s.Status().FaceWarning == "" {
		t.Fatal("status has no face warning")
	}

	st.WarningAt = at.Add(3 * time.Second)
	s.OnProximity(st)
	if n := got.count(FaceTooClose); n != 2 {
		t.Fatalf("face signals = %d, want 2 after a new warning", n)
	}

	s.OnProximity(proximity.State{})
	if w := s.Status().FaceWarning; w != "" {
		t.Errorf("warning = %q after clearing", w)
	}
}

func TestSessionThemeAndBrightnessFollowLight(t *testing.T) {
	d := NewMemoryDisplay(0.5, true)
	s, _, got := newTestSession(DefaultSessionConfig(), d)

	s.OnLight(light.State{IsAvailable: true, IsActive: true, Category: light.Dark, RecommendedBrightness: 0.1})
	st := s.Status()
	if st.Theme != NightMode {
		t.Fatalf("theme = %s, want NIGHT_MODE", st.Theme)
	}
	if st.BlueLight != 0.6 {
		t.Errorf("blue light = %v, want 0.6", st.BlueLight)
	}
	if lvl, _ := d.Brightness(); math.Abs(lvl-TargetLevel(0.15)) > 1e-9 {
		t.Errorf("level = %v, want night target %v", lvl, TargetLevel(0.15))
	}
	if got.count(ThemeChanged) != 1 || got.count(BrightnessChanged) != 1 {
		t.Errorf("signals = %+v", *got)
	}

	s.OnLight(light.State{IsAvailable: true, IsActive: true, Category: light.VeryDim, RecommendedBrightness: 0.2})
	if n := got.count(ThemeChanged); n != 1 {
		t.Errorf("theme signals = %d, want 1 (same theme)", n)
	}

	s.OnLight(light.State{Category: light.VeryBright})
	if s.Status().Theme != NightMode {
		t.Error("inactive light state changed the theme")
	}

	s.Stop()
	if lvl, _ := d.Brightness(); lvl != 0.5 {
		t.Errorf("level after Stop = %v, want 0.5", lvl)
	}
}

func TestSessionCategoryBrightnessWithoutAdaptiveTheme(t *testing.T) {
	d := NewMemoryDisplay(0.5, true)
	cfg := DefaultSessionConfig()
	cfg.AdaptiveTheme = false
	s, _, _ := newTestSession(cfg, d)

	s.OnLight(light.State{IsAvailable: true, IsActive: true, Category: light.VeryBright, RecommendedBrightness: 1})
	if s.Status().Theme != NormalMode {
		t.Error("theme changed with adaptive theme off")
	}
	if lvl, _ := d.Brightness(); math.Abs(lvl-1) > 1e-9 {
		t.Errorf("level = %v, want 1", lvl)
	}
}

func TestSessionManualTheme(t *testing.T) {
	s, _, got := newTestSession(DefaultSessionConfig(), nil)
	s.SetTheme(HighContrastMode)
	st := s.Status()
	if st.Theme != HighContrastMode || st.AdaptiveTheme {
		t.Fatalf("status = %+v", st)
	}
	s.OnLight(light.State{IsAvailable: true, IsActive: true, Category: light.Dark})
	if s.Status().Theme != HighContrastMode {
		t.Error("light overrode the manual theme")
	}
	if n := got.count(ThemeChanged); n != 1 {
		t.Errorf("theme signals = %d, want 1", n)
	}
	if st.SessionID == "" || st.SessionID != s.ID() {
		t.Errorf("session id = %q", st.SessionID)
	}
}
