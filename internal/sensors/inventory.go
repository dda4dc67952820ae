// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"strings"
)

// DefaultProximityRange is the max range given to declared proximity
// sensors when none is configured.
const DefaultProximityRange = 5.0

// Inventory builds the sensor descriptors a remote feed exposes. Names are
// "<prefix> <type>", except the colour sensor which is named so that the
// light processor's RGB heuristic finds it.
func Inventory(prefix string, types []Type, proximityRange float64) []Sensor {
	if proximityRange <= 0 {
		proximityRange = DefaultProximityRange
	}
	out := make([]Sensor, 0, len(types))
	for _, t := range types {
		s := Sensor{
			Name:   fmt.Sprintf("%s %s", prefix, t),
			Vendor: prefix,
			Type:   t,
		}
		switch t {
		case Color:
			s.Name = fmt.Sprintf("%s RGB Color", prefix)
		case Proximity:
			s.MaxRange = proximityRange
		case Light:
			s.MaxRange = 40000
		}
		out = append(out, s)
	}
	return out
}

// ParseTypes parses a comma separated list of sensor type names.
func ParseTypes(list string) ([]Type, error) {
	var out []Type
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := ParseType(part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// AttachAll attaches every sensor in list to h.
func (h *Hub) AttachAll(list []Sensor) {
	for _, s := range list {
		h.Attach(s)
	}
}
