// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/adaptive_reader/internal/adaptive"
	"github.com/relabs-tech/adaptive_reader/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Keys of the cached producer payloads.
const (
	keyMotion    = "motion"
	keyPosition  = "position"
	keyProximity = "proximity"
	keyLight     = "light"
	keyStatus    = "status"
	keySignal    = "signal"
)

// wsMessage is what /ws/reader streams.
type wsMessage struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type wsClient struct {
	send chan []byte
}

// webServer caches the latest producer payloads and fans them out to
// websocket clients.
type webServer struct {
	publish    func(topic string, payload []byte) error
	themeTopic string

	mu     sync.RWMutex
	latest map[string]json.RawMessage

	clientsMu sync.Mutex
	clients   map[*wsClient]struct{}
}

func newWebServer(themeTopic string, publish func(topic string, payload []byte) error) *webServer {
	return &webServer{
		publish:    publish,
		themeTopic: themeTopic,
		latest:     make(map[string]json.RawMessage),
		clients:    make(map[*wsClient]struct{}),
	}
}

func RunWeb() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	srv := newWebServer(cfg.TopicThemeSet, func(topic string, payload []byte) error {
		token := client.Publish(topic, 0, false, payload)
		if !token.WaitTimeout(2 * time.Second) {
			return fmt.Errorf("publish %s: timeout", topic)
		}
		return token.Error()
	})

	topics := map[string]string{
		cfg.TopicMotion:    keyMotion,
		cfg.TopicPosition:  keyPosition,
		cfg.TopicProximity: keyProximity,
		cfg.TopicLight:     keyLight,
		cfg.TopicStatus:    keyStatus,
		cfg.TopicSignal:    keySignal,
	}
	for topic, key := range topics {
		key := key
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			srv.handleMessage(key, msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		log.Printf("web: subscribed to %s", topic)
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	staticDir := cfg.WebStaticDir
	if staticDir != "" {
		if _, err := os.Stat(staticDir); err != nil {
			log.Printf("web: static dir unavailable, serving API only: %v", err)
			staticDir = ""
		}
	}
	return http.ListenAndServe(addr, srv.routes(staticDir))
}

func (s *webServer) routes(staticDir string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/state", s.handleState).Methods("GET")
	r.HandleFunc("/api/state/{kind}", s.handleStateKind).Methods("GET")
	r.HandleFunc("/api/theme", s.handleTheme).Methods("GET")
	r.HandleFunc("/api/theme", s.handleSetTheme).Methods("POST")
	r.HandleFunc("/api/schemes", s.handleSchemes).Methods("GET")
	r.HandleFunc("/ws/reader", s.handleWS)
	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return r
}

// handleMessage stores one producer payload and streams it to clients.
// Signals are streamed but not cached.
func (s *webServer) handleMessage(kind string, payload []byte) {
	if !json.Valid(payload) {
		log.Printf("web: invalid %s payload dropped", kind)
		return
	}
	raw := json.RawMessage(append([]byte(nil), payload...))
	if kind != keySignal {
		s.mu.Lock()
		s.latest[kind] = raw
		s.mu.Unlock()
	}
	s.broadcast(wsMessage{Kind: kind, Data: raw})
}

func (s *webServer) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.latest) == 0 {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.latest)
}

func (s *webServer) handleStateKind(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]

	s.mu.RLock()
	raw, ok := s.latest[kind]
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "no "+kind+" data", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

type themeResponse struct {
	Theme         adaptive.Theme  `json:"theme"`
	Scheme        adaptive.Scheme `json:"scheme"`
	BlueLight     float64         `json:"blue_light_intensity"`
	Brightness    float64         `json:"target_brightness"`
	AdaptiveTheme bool            `json:"adaptive_theme"`
}

func (s *webServer) handleTheme(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	raw, ok := s.latest[keyStatus]
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	var st adaptive.Status
	if err := json.Unmarshal(raw, &st); err != nil {
		http.Error(w, "bad status payload", http.StatusBadGateway)
		return
	}
	writeJSON(w, themeResponse{
		Theme:         st.Theme,
		Scheme:        adaptive.SchemeFor(st.Theme),
		BlueLight:     st.BlueLight,
		Brightness:    adaptive.TargetBrightness(st.Theme),
		AdaptiveTheme: st.AdaptiveTheme,
	})
}

func (s *webServer) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Theme != "" {
		if _, ok := adaptive.ParseTheme(req.Theme); !ok {
			http.Error(w, fmt.Sprintf("unknown theme %q", req.Theme), http.StatusBadRequest)
			return
		}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.publish(s.themeTopic, payload); err != nil {
		log.Printf("web: theme request: %v", err)
		http.Error(w, "broker unavailable", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *webServer) handleSchemes(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]adaptive.Scheme)
	for _, t := range []adaptive.Theme{adaptive.NormalMode, adaptive.NightMode, adaptive.HighContrastMode} {
		out[t.String()] = adaptive.SchemeFor(t)
	}
	writeJSON(w, out)
}

func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &wsClient{send: make(chan []byte, 32)}

	// Replay the cache before registering so the client starts from the
	// latest picture.
	s.mu.RLock()
	for kind, raw := range s.latest {
		if err := conn.WriteJSON(wsMessage{Kind: kind, Data: raw}); err != nil {
			s.mu.RUnlock()
			return
		}
	}
	s.mu.RUnlock()

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
	defer s.removeClient(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

func (s *webServer) broadcast(m wsMessage) {
	payload, err := json.Marshal(m)
	if err != nil {
		log.Printf("web: marshal %s: %v", m.Kind, err)
		return
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			// slow client
			delete(s.clients, c)
			close(c.send)
		}
	}
}

func (s *webServer) removeClient(c *wsClient) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *webServer) clientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}
