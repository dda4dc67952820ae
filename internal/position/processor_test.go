package position

import (
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/adaptive_reader/internal/sched"
	"github.com/relabs-tech/adaptive_reader/internal/sensors"
)

const g = 9.81

var epoch = time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)

type rig struct {
	hub    *sensors.Hub
	clock  *sched.Manual
	proc   *Processor
	states []State
	accel  sensors.Sensor
	mag    sensors.Sensor
}

func newRig(t *testing.T, types ...sensors.Type) *rig {
	t.Helper()
	r := &rig{hub: sensors.NewHub(), clock: sched.NewManual(epoch)}
	r.hub.SetClock(r.clock.Now)
	r.hub.AttachAll(sensors.Inventory("Test", types, 0))
	r.accel, _ = r.hub.Default(sensors.Accelerometer)
	r.mag, _ = r.hub.Default(sensors.Magnetometer)
	r.proc = New(r.hub, r.clock, DefaultConfig(), func(s State) { r.states = append(r.states, s) })
	if len(types) > 0 && types[0] == sensors.Accelerometer && !r.proc.Start() {
		t.Fatal("Start returned false")
	}
	return r
}

func (r *rig) send(s sensors.Sensor, v ...float64) {
	r.hub.Dispatch(sensors.Event{Sensor: s, Values: v})
}

// rollTo sends the gravity vector of a device rolled by deg degrees.
func (r *rig) rollTo(deg float64) {
	rad := deg * math.Pi / 180
	r.send(r.accel, 0, g*math.Sin(rad), g*math.Cos(rad))
}

// flickEdges counts transitions from no flick to a flick in the published
// states.
func (r *rig) flickEdges() int {
	edges := 0
	prev := FlickNone
	for _, s := range r.states {
		if s.Flick != FlickNone && prev == FlickNone {
			edges++
		}
		prev = s.Flick
	}
	return edges
}

func TestFlickReportedOncePerCooldown(t *testing.T) {
	r := newRig(t, sensors.Accelerometer)

	roll := 0.0
	step := func(until time.Duration) {
		for r.clock.Now().Sub(epoch) < until {
			r.rollTo(roll)
			roll += 5 // 250 deg/s at 20ms per event
			r.clock.Advance(20 * time.Millisecond)
		}
	}

	step(4900 * time.Millisecond)
	if n := r.flickEdges(); n != 1 {
		t.Fatalf("flicks in first 4.9s = %d, want 1", n)
	}

	var first State
	for _, s := range r.states {
		if s.Flick != FlickNone {
			first = s
			break
		}
	}
	if first.Flick != FlickLeft {
		t.Errorf("flick direction = %v, want LEFT for positive roll velocity", first.Flick)
	}
	if first.FlickSpeed <= DefaultConfig().FlickThreshold {
		t.Errorf("flick speed = %v", first.FlickSpeed)
	}

	step(5500 * time.Millisecond)
	if n := r.flickEdges(); n != 2 {
		t.Errorf("flicks after cooldown = %d, want 2", n)
	}

	r.clock.Advance(time.Second)
	if got := r.proc.State().Flick; got != FlickNone {
		t.Errorf("flick not reset: %v", got)
	}
}

// rollAt sends a roll reading stamped with the sensor time at.
func (r *rig) rollAt(deg float64, at time.Time) {
	rad := deg * math.Pi / 180
	r.hub.Dispatch(sensors.Event{
		Sensor: r.accel,
		Values: []float64{0, g * math.Sin(rad), g * math.Cos(rad)},
		Time:   at,
	})
}

func TestFlickUsesEventTimestamps(t *testing.T) {
	tests := []struct {
		name    string
		stamped time.Duration // spacing of the sensor timestamps
		want    int
	}{
		{"slow tilt delivered in a burst", 100 * time.Millisecond, 0},
		{"fast roll delivered in a burst", 10 * time.Millisecond, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, sensors.Accelerometer)
			at := epoch
			for i := 0; i < 10; i++ {
				r.rollAt(float64(i)*3, at)
				at = at.Add(tt.stamped)
				r.clock.Advance(2 * time.Millisecond)
			}
			r.clock.Advance(time.Second)
			if n := r.flickEdges(); n != tt.want {
				t.Errorf("flicks = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestFlickRightAndReset(t *testing.T) {
	r := newRig(t, sensors.Accelerometer)
	for i := 0; i < 5; i++ {
		r.rollTo(-6 * float64(i))
		r.clock.Advance(20 * time.Millisecond)
	}
	if r.flickEdges() != 1 {
		t.Fatalf("flicks = %d, want 1", r.flickEdges())
	}
	var sawRight bool
	for _, s := range r.states {
		sawRight = sawRight || s.Flick == FlickRight
	}
	if !sawRight {
		t.Error("negative roll velocity did not flick RIGHT")
	}
	r.clock.Advance(DefaultConfig().FlickReset)
	if last := r.states[len(r.states)-1]; last.Flick != FlickNone || last.FlickSpeed != 0 {
		t.Errorf("last state after reset = %v/%v", last.Flick, last.FlickSpeed)
	}
}

func TestVerticalFlickSuppressed(t *testing.T) {
	r := newRig(t, sensors.Accelerometer)
	for deg := 0.0; deg < 80; deg += 5 {
		rad := deg * math.Pi / 180
		r.send(r.accel, -g*math.Sin(rad), 0, g*math.Cos(rad))
		r.clock.Advance(20 * time.Millisecond)
	}
	r.clock.Advance(time.Second)
	if n := r.flickEdges(); n != 0 {
		t.Errorf("vertical rotation produced %d flicks", n)
	}
}

func TestFlatAndStable(t *testing.T) {
	r := newRig(t, sensors.Accelerometer)
	for i := 0; i < 5; i++ {
		r.send(r.accel, 0, 0, g)
		r.clock.Advance(30 * time.Millisecond)
	}
	r.clock.Advance(DebounceInterval)

	s := r.proc.State()
	if s.Position != Flat || s.Rotation != Portrait {
		t.Errorf("position = %v rotation = %v, want FLAT/PORTRAIT", s.Position, s.Rotation)
	}
	if !s.IsStable {
		t.Error("constant input not stable")
	}
	if s.IsTilted() || s.Azimuth != 0 {
		t.Errorf("unexpected tilt %v azimuth %v", s.TiltAngle, s.Azimuth)
	}
}

func TestAzimuthFromMagnetometerIsHeld(t *testing.T) {
	r := newRig(t, sensors.Accelerometer, sensors.Magnetometer)
	r.send(r.mag, 22, 0, -40)
	r.send(r.accel, 0, 0, g)
	r.clock.Advance(DebounceInterval)
	if got := r.proc.State().Azimuth; math.Abs(got-(-90)) > 1e-6 {
		t.Fatalf("azimuth = %v, want -90", got)
	}

	// field lost: pitch/roll from gravity only, azimuth keeps its last value
	r.send(r.mag, 0, 0, 0)
	r.send(r.accel, 0, 0, g)
	r.clock.Advance(DebounceInterval)
	if got := r.proc.State().Azimuth; math.Abs(got-(-90)) > 1e-6 {
		t.Errorf("azimuth after losing field = %v, want -90", got)
	}
}

func TestInvalidAccelerationKeepsAngles(t *testing.T) {
	r := newRig(t, sensors.Accelerometer)
	r.rollTo(20)
	r.clock.Advance(DebounceInterval)
	before := r.proc.State().Roll

	r.send(r.accel, 0, 0, 0)
	r.send(r.accel, 100, 0, 0)
	r.clock.Advance(DebounceInterval)
	if got := r.proc.State().Roll; got != before {
		t.Errorf("roll changed on invalid reading: %v -> %v", before, got)
	}
}

func TestAccuracyChange(t *testing.T) {
	r := newRig(t, sensors.Accelerometer)
	r.hub.SetAccuracy(r.accel, sensors.AccuracyHigh)
	r.send(r.accel, 0, 0, g)
	r.clock.Advance(DebounceInterval)
	if got := r.proc.State().Accuracy; got != sensors.AccuracyHigh {
		t.Errorf("accuracy = %v", got)
	}
}

func TestStopResetsAndIsIdempotent(t *testing.T) {
	r := newRig(t, sensors.Accelerometer)
	r.rollTo(40)
	r.clock.Advance(DebounceInterval)
	if r.proc.State().Roll == 0 {
		t.Fatal("roll not published")
	}

	r.rollTo(45)
	r.proc.Stop()
	r.proc.Stop()
	published := len(r.states)
	r.clock.Advance(time.Second)

	if len(r.states) != published {
		t.Error("published after Stop")
	}
	if s := r.proc.State(); s.Roll != 0 || s.SmoothedRoll != 0 {
		t.Errorf("angles not reset: %+v", s)
	}
	if r.proc.IsActive() || r.hub.Listeners() != 0 {
		t.Error("still active after Stop")
	}
}

func TestStartWithoutAccelerometer(t *testing.T) {
	r := newRig(t, sensors.Magnetometer)
	if r.proc.IsAvailable() || r.proc.Start() {
		t.Error("started without accelerometer")
	}
	if r.hub.Listeners() != 0 {
		t.Error("listener registered")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		pitch, roll float64
		pos         DevicePosition
		rot         Rotation
	}{
		{5, -5, Flat, Portrait},
		{80, 10, VerticalForward, Portrait},
		{-80, 10, VerticalBackward, Portrait},
		{10, 85, HorizontalLeft, LandscapeLeft},
		{-10, -85, HorizontalRight, LandscapeRight},
		{40, 50, Tilted, LandscapeLeft},
		{40, -50, Tilted, LandscapeRight},
		{50, 40, Tilted, Portrait},
		{20, 10, Upright, Portrait},
	}
	for _, tt := range tests {
		pos := Classify(tt.pitch, tt.roll)
		if pos != tt.pos {
			t.Errorf("Classify(%v, %v) = %v, want %v", tt.pitch, tt.roll, pos, tt.pos)
			continue
		}
		if rot := Recommend(pos, tt.pitch, tt.roll); rot != tt.rot {
			t.Errorf("Recommend(%v) = %v, want %v", pos, rot, tt.rot)
		}
	}
}

func TestUnwrapDelta(t *testing.T) {
	tests := []struct{ a, b, want float64 }{
		{10, 20, 10},
		{175, -175, 10},
		{-175, 175, -10},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := unwrapDelta(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("unwrapDelta(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
