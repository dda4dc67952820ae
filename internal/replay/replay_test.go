package replay

import (
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/adaptive_reader/internal/adaptive"
	"github.com/relabs-tech/adaptive_reader/internal/light"
	"github.com/relabs-tech/adaptive_reader/internal/proximity"
	"github.com/relabs-tech/adaptive_reader/internal/sched"
	"github.com/relabs-tech/adaptive_reader/internal/sensors"
)

const darkRoom = `
name: dark-room
sensors: [light, proximity]
proximity_max_range: 5
tail: 500ms
steps:
  - at: 0s
    sensor: light
    values: [0.5]
    repeat: 10
    every: 50ms
  - at: 100ms
    sensor: proximity
    values: [0.2]
    accuracy: 3
    repeat: 12
    every: 50ms
`

func TestDecodeAndExpand(t *testing.T) {
	tr, err := Decode(strings.NewReader(darkRoom))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tr.Name != "dark-room" || tr.Tail != 500*time.Millisecond || len(tr.Steps) != 2 {
		t.Fatalf("trace = %+v", tr)
	}
	if tr.Sensors[0] != sensors.Light {
		t.Errorf("sensor type = %v, want light", tr.Sensors[0])
	}
	if got, want := tr.Duration(), 100*time.Millisecond+11*50*time.Millisecond+500*time.Millisecond; got != want {
		t.Errorf("Duration = %s, want %s", got, want)
	}

	hub := sensors.NewHub()
	tr.Attach(hub)
	events, err := tr.Expand(hub)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(events) != 22 {
		t.Fatalf("events = %d, want 22", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].At < events[i-1].At {
			t.Fatalf("event %d at %s before %s", i, events[i].At, events[i-1].At)
		}
	}
	if s, ok := hub.Default(sensors.Proximity); !ok || s.MaxRange != 5 {
		t.Errorf("proximity sensor = %+v, %v", s, ok)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "empty document"},
		{"no sensor", "steps:\n  - at: 0s\n    values: [1]\n", "sensor is required"},
		{"repeat without period", "steps:\n  - sensor: light\n    values: [1]\n    repeat: 3\n", "positive every"},
		{"bad type", "sensors: [barometer]\n", "unknown sensor type"},
		{"bad duration", "tail: soon\n", "decode trace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestExpandUnknownSensor(t *testing.T) {
	tr, err := Decode(strings.NewReader("sensors: [light]\nsteps:\n  - sensor: proximity\n    values: [1]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewPlayer(sensors.NewHub(), tr); err == nil {
		t.Fatal("NewPlayer resolved a sensor the trace does not declare")
	}
}

func TestPlayManualDrivesProcessorsAndSession(t *testing.T) {
	tr, err := Decode(strings.NewReader(darkRoom))
	if err != nil {
		t.Fatal(err)
	}
	hub := sensors.NewHub()
	clock := sched.NewManual(time.Unix(1000, 0))
	player, err := NewPlayer(hub, tr)
	if err != nil {
		t.Fatal(err)
	}

	display := adaptive.NewMemoryDisplay(0.5, true)
	var signals []adaptive.Signal
	session := adaptive.NewSession(clock, adaptive.DefaultSessionConfig(), adaptive.NewBrightnessController(display), func(s adaptive.Signal) {
		signals = append(signals, s)
	})
	session.Start()

	lp := light.New(hub, clock, session.OnLight)
	rp := proximity.New(hub, clock, proximity.DefaultConfig(), session.OnProximity)
	if !lp.Start() || !rp.Start() {
		t.Fatal("processors did not start")
	}

	player.PlayManual(clock)

	if c := lp.State().Category; c != light.Dark {
		t.Errorf("light category = %s, want DARK", c)
	}
	if !rp.State().IsFaceTooClose {
		t.Error("face not reported too close at 20cm")
	}
	st := session.Status()
	if st.Theme != adaptive.NightMode {
		t.Errorf("theme = %s, want NIGHT_MODE", st.Theme)
	}
	if st.FaceWarning == "" {
		t.Error("session has no face warning")
	}
	var face int
	for _, s := range signals {
		if s.Kind == adaptive.FaceTooClose {
			face++
		}
	}
	if face != 1 {
		t.Errorf("face warnings = %d, want 1 inside the cooldown", face)
	}
}
