package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/adaptive_reader/internal/adaptive"
	"github.com/relabs-tech/adaptive_reader/internal/config"
	"github.com/relabs-tech/adaptive_reader/internal/light"
	"github.com/relabs-tech/adaptive_reader/internal/position"
	"github.com/relabs-tech/adaptive_reader/internal/replay"
	"github.com/relabs-tech/adaptive_reader/internal/sched"
	"github.com/relabs-tech/adaptive_reader/internal/sensors"
)

var epoch = time.Date(2026, 5, 2, 22, 30, 0, 0, time.UTC)

type recorder struct {
	mu        sync.Mutex
	signals   []adaptive.Signal
	positions []position.State
}

func (r *recorder) outputs() Outputs {
	return Outputs{
		Signal: func(s adaptive.Signal) {
			r.mu.Lock()
			r.signals = append(r.signals, s)
			r.mu.Unlock()
		},
		Position: func(s position.State) {
			r.mu.Lock()
			r.positions = append(r.positions, s)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) count(k adaptive.SignalKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.signals {
		if s.Kind == k {
			n++
		}
	}
	return n
}

func TestPipelineFlickTurnsPage(t *testing.T) {
	hub := sensors.NewHub()
	clock := sched.NewManual(epoch)
	hub.SetClock(clock.Now)
	hub.AttachAll(sensors.Inventory("Test", []sensors.Type{sensors.Accelerometer, sensors.Gyroscope}, 0))
	accel, _ := hub.Default(sensors.Accelerometer)

	var rec recorder
	p := NewPipeline(hub, clock, config.Default(), nil, rec.outputs())
	if n := p.Start(); n != 2 {
		t.Fatalf("started %d processors, want motion and position", n)
	}

	for roll := 0.0; roll <= 60; roll += 5 {
		rad := roll * math.Pi / 180
		hub.Dispatch(sensors.Event{Sensor: accel, Values: []float64{0, 9.81 * math.Sin(rad), 9.81 * math.Cos(rad)}})
		clock.Advance(20 * time.Millisecond)
	}
	clock.Advance(time.Second)

	if page := p.Session.Status().Page; page != 1 {
		t.Fatalf("page = %d, want 1 after a left flick", page)
	}
	if n := rec.count(adaptive.PageTurned); n != 1 {
		t.Errorf("page signals = %d, want 1", n)
	}
	if len(rec.positions) == 0 {
		t.Error("position states were not forwarded")
	}

	p.Stop()
	if p.Motion.IsActive() || p.Position.IsActive() {
		t.Error("processors still active after Stop")
	}
}

func TestPipelineStartsInFixedOrder(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	hub := sensors.NewHub()
	clock := sched.NewManual(epoch)
	hub.AttachAll(sensors.Inventory("Test", []sensors.Type{sensors.Light}, 0))

	for i := 0; i < 5; i++ {
		logs.Reset()
		p := NewPipeline(hub, clock, config.Default(), nil, Outputs{})
		if n := p.Start(); n != 1 {
			t.Fatalf("started %d processors, want only light", n)
		}
		p.Stop()

		out := logs.String()
		prev := -1
		for _, name := range []string{"motion", "position", "proximity"} {
			at := strings.Index(out, "pipeline: "+name+" processor not started")
			if at < 0 || at < prev {
				t.Fatalf("run %d: %s logged out of order:\n%s", i, name, out)
			}
			prev = at
		}
	}
}

const brightRoom = `
name: bright-room
sensors: [accelerometer, light, proximity]
tail: 1s
steps:
  - at: 0s
    sensor: accelerometer
    values: [0, 0, 9.81]
    repeat: 20
    every: 50ms
  - at: 0s
    sensor: light
    values: [5000]
    repeat: 20
    every: 50ms
  - at: 0s
    sensor: proximity
    values: [0.6]
    repeat: 20
    every: 50ms
`

func TestPipelineReplayFollowsLight(t *testing.T) {
	trace, err := replay.Decode(strings.NewReader(brightRoom))
	if err != nil {
		t.Fatal(err)
	}
	hub := sensors.NewHub()
	clock := sched.NewManual(epoch)
	player, err := replay.NewPlayer(hub, trace)
	if err != nil {
		t.Fatal(err)
	}

	screen := adaptive.NewMemoryDisplay(0.3, true)
	var rec recorder
	p := NewPipeline(hub, clock, config.Default(), screen, rec.outputs())
	if n := p.Start(); n != 4 {
		t.Fatalf("started %d processors, want 4", n)
	}
	player.PlayManual(clock)

	snap := p.Snapshot()
	if snap.Light.Category != light.VeryBright {
		t.Errorf("light category = %s, want VERY_BRIGHT", snap.Light.Category)
	}
	if snap.Reader.Theme != adaptive.HighContrastMode {
		t.Errorf("theme = %s, want HIGH_CONTRAST_MODE", snap.Reader.Theme)
	}
	if snap.Position.Position != position.Flat {
		t.Errorf("position = %s, want FLAT", snap.Position.Position)
	}
	if snap.Proximity.IsFaceTooClose {
		t.Error("face too close at 60cm")
	}
	if lvl, _ := screen.Brightness(); math.Abs(lvl-adaptive.TargetLevel(0.9)) > 1e-9 {
		t.Errorf("screen level = %v, want %v", lvl, adaptive.TargetLevel(0.9))
	}

	p.Stop()
	if lvl, _ := screen.Brightness(); lvl != 0.3 {
		t.Errorf("screen level after Stop = %v, want 0.3", lvl)
	}
}

func TestApplyThemeRequest(t *testing.T) {
	s := adaptive.NewSession(sched.NewManual(epoch), adaptive.SessionConfig{PageCount: 10, AdaptiveTheme: true}, nil, nil)

	if err := applyThemeRequest(s, []byte(`{"theme":"NIGHT_MODE","page":4}`)); err != nil {
		t.Fatalf("applyThemeRequest: %v", err)
	}
	st := s.Status()
	if st.Theme != adaptive.NightMode || st.AdaptiveTheme || st.Page != 4 {
		t.Fatalf("status = %+v", st)
	}
	if err := applyThemeRequest(s, []byte(`{"adaptive":true}`)); err != nil {
		t.Fatal(err)
	}
	if !s.Status().AdaptiveTheme {
		t.Error("adaptive theme not re-enabled")
	}
	if err := applyThemeRequest(s, []byte(`{"theme":"SEPIA"}`)); err == nil {
		t.Error("unknown theme accepted")
	}
	if err := applyThemeRequest(s, []byte(`not json`)); err == nil {
		t.Error("invalid payload accepted")
	}
}

func TestRenderSnapshot(t *testing.T) {
	snap := Snapshot{
		Reader: adaptive.Status{
			Page:        1,
			PageCount:   20,
			Theme:       adaptive.NightMode,
			Scheme:      adaptive.SchemeFor(adaptive.NightMode),
			FaceWarning: "Too close!",
		},
		Light: light.State{IsAvailable: true, AverageLux: 3, Category: light.VeryDim},
	}
	out := RenderSnapshot(snap, 0.18)
	for _, want := range []string{"page 2/20", "NIGHT_MODE", "VERY_DIM", "Too close!", "brightness  18%"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}

	line := RenderSignal(adaptive.Signal{Kind: adaptive.PageTurned, Page: 2, Source: "flick_LEFT", Time: epoch})
	if !strings.Contains(line, "page_turned -> page 3 (flick_LEFT)") {
		t.Errorf("signal line = %q", line)
	}
}

func TestRenderStatusImage(t *testing.T) {
	lit := func(v displayView) int {
		n := 0
		for _, b := range renderStatus(v, epoch).Pix {
			if b != 0 {
				n++
			}
		}
		return n
	}
	waiting := lit(displayView{})
	if waiting == 0 {
		t.Fatal("waiting screen is blank")
	}
	full := lit(displayView{
		status:     adaptive.Status{Page: 3, PageCount: 9, Theme: adaptive.NormalMode, FreeFalling: true},
		haveStatus: true,
		light:      light.State{AverageLux: 120, Category: light.Normal},
		haveLight:  true,
	})
	if full <= waiting {
		t.Errorf("status screen lit %d bytes, waiting screen %d", full, waiting)
	}
}

func newTestWeb(t *testing.T) (*webServer, *httptest.Server, *[][]byte) {
	t.Helper()
	var published [][]byte
	srv := newWebServer("reader/theme/set", func(topic string, payload []byte) error {
		if topic != "reader/theme/set" {
			t.Errorf("published to %q", topic)
		}
		published = append(published, payload)
		return nil
	})
	ts := httptest.NewServer(srv.routes(""))
	t.Cleanup(ts.Close)
	return srv, ts, &published
}

func TestWebServesStaticPage(t *testing.T) {
	srv := newWebServer("reader/theme/set", func(string, []byte) error { return nil })

	page := httptest.NewServer(srv.routes("../../web"))
	defer page.Close()
	resp, err := http.Get(page.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "/ws/reader") {
		t.Fatalf("index status = %d", resp.StatusCode)
	}

	apiOnly := httptest.NewServer(srv.routes(""))
	defer apiOnly.Close()
	resp, err = http.Get(apiOnly.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("api only index status = %d", resp.StatusCode)
	}
}

func TestWebState(t *testing.T) {
	srv, ts, _ := newTestWeb(t)

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("empty state status = %d", resp.StatusCode)
	}

	status, _ := json.Marshal(adaptive.Status{Theme: adaptive.NightMode, PageCount: 3, AdaptiveTheme: true, BlueLight: 0.6})
	srv.handleMessage(keyStatus, status)
	srv.handleMessage(keyLight, []byte(`{"light_level":3}`))
	srv.handleMessage(keyMotion, []byte(`{broken`))

	resp, err = http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	var all map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(all) != 2 {
		t.Errorf("cached kinds = %d, want 2 (invalid payload dropped)", len(all))
	}

	resp, err = http.Get(ts.URL + "/api/state/motion")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing kind status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/theme")
	if err != nil {
		t.Fatal(err)
	}
	var theme themeResponse
	if err := json.NewDecoder(resp.Body).Decode(&theme); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if theme.Theme != adaptive.NightMode || theme.Scheme.Primary != "#D4A574" || theme.Brightness != 0.15 {
		t.Errorf("theme = %+v", theme)
	}
}

func TestWebSetTheme(t *testing.T) {
	_, ts, published := newTestWeb(t)

	resp, err := http.Post(ts.URL+"/api/theme", "application/json", bytes.NewBufferString(`{"theme":"HIGH_CONTRAST_MODE"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if len(*published) != 1 || !strings.Contains(string((*published)[0]), "HIGH_CONTRAST_MODE") {
		t.Fatalf("published = %q", *published)
	}

	resp, err = http.Post(ts.URL+"/api/theme", "application/json", bytes.NewBufferString(`{"theme":"SEPIA"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown theme status = %d, want 400", resp.StatusCode)
	}
	if len(*published) != 1 {
		t.Errorf("rejected request was published")
	}
}

func TestWebSocketStreamsMessages(t *testing.T) {
	srv, ts, _ := newTestWeb(t)
	srv.handleMessage(keyLight, []byte(`{"light_level":42}`))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/reader"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read cached: %v", err)
	}
	if msg.Kind != keyLight {
		t.Fatalf("first message kind = %q, want light", msg.Kind)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.clientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	srv.handleMessage(keySignal, []byte(`{"kind":"page_turned","page":1}`))

	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if msg.Kind != keySignal || !strings.Contains(string(msg.Data), "page_turned") {
		t.Errorf("broadcast = %+v", msg)
	}
}
