// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/adrianmo/go-nmea"
	"github.com/jacobsa/go-serial/serial"
)

// Serial bridge sentences are NMEA framed:
//
//	$RDSEN,<type>,<status>,<v1>[,<v2>,<v3>]*<checksum>
//
// where <type> is a lower-case sensor type name and <status> a platform
// accuracy status code.
const (
	sentenceTalker = "RD"
	sentenceType   = "SEN"
)

// Reading is a decoded $RDSEN sentence.
type Reading struct {
	nmea.BaseSentence
	Kind   Type
	Status int64
	Values []float64
}

func init() {
	nmea.MustRegisterParser(sentenceType, parseReading)
}

func parseReading(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	if len(s.Fields) < 3 {
		return nil, fmt.Errorf("nmea: %s needs at least 3 fields, got %d", sentenceType, len(s.Fields))
	}
	kind, err := ParseType(p.String(0, "type"))
	if err != nil {
		return nil, fmt.Errorf("nmea: %w", err)
	}
	r := Reading{
		BaseSentence: s,
		Kind:         kind,
		Status:       p.Int64(1, "status"),
	}
	for i := 2; i < len(s.Fields); i++ {
		r.Values = append(r.Values, p.Float64(i, "value"))
	}
	return r, p.Err()
}

// FormatSentence encodes one reading as a $RDSEN sentence including
// checksum.
func FormatSentence(t Type, status int, values ...float64) string {
	fields := []string{sentenceTalker + sentenceType, t.String(), strconv.Itoa(status)}
	for _, v := range values {
		fields = append(fields, strconv.FormatFloat(v, 'f', -1, 64))
	}
	body := strings.Join(fields, ",")
	return "$" + body + "*" + nmea.Checksum(body)
}

// ParseSentence decodes a single $RDSEN line.
func ParseSentence(line string) (Reading, error) {
	s, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return Reading{}, err
	}
	r, ok := s.(Reading)
	if !ok {
		return Reading{}, fmt.Errorf("nmea: unexpected sentence %s", s.Prefix())
	}
	return r, nil
}

// SerialFeed fills a Hub from a UART sensor bridge.
type SerialFeed struct {
	hub  *Hub
	port string
	baud uint
}

func NewSerialFeed(hub *Hub, port string, baud int) *SerialFeed {
	return &SerialFeed{hub: hub, port: port, baud: uint(baud)}
}

// Run opens the port and dispatches readings until ctx is cancelled or the
// port fails.
func (f *SerialFeed) Run(ctx context.Context) error {
	options := serial.OpenOptions{
		PortName:        f.port,
		BaudRate:        f.baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}

	port, err := serial.Open(options)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", f.port, err)
	}
	log.Printf("serial feed: reading %s at %d baud", f.port, f.baud)

	go func() {
		<-ctx.Done()
		port.Close()
	}()

	err = f.Consume(port)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Consume reads sentences from r until EOF. Lines that fail to parse,
// including checksum mismatches, are logged and skipped.
func (f *SerialFeed) Consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := f.handle(line); err != nil {
			log.Printf("serial feed: dropped %q: %v", line, err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read serial: %w", err)
	}
	return nil
}

func (f *SerialFeed) handle(line string) error {
	r, err := ParseSentence(line)
	if err != nil {
		return err
	}
	s, ok := f.hub.Default(r.Kind)
	if !ok {
		return fmt.Errorf("%s: %w", r.Kind, ErrUnknownSensor)
	}
	f.hub.Dispatch(Event{
		Sensor:   s,
		Values:   r.Values,
		Accuracy: AccuracyFromStatus(int(r.Status)),
	})
	return nil
}
