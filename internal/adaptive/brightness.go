// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package adaptive

import (
	"errors"
	"log"
	"math"
	"sync"
)

// Brightness levels are normalised to [0,1].
const (
	// MinLevel keeps the screen readable at the lowest recommendation.
	MinLevel = 10.0 / 255.0
	// ChangeThreshold is the smallest level change worth applying.
	ChangeThreshold = 0.05
)

// ErrNoPermission is returned when the display refuses brightness control.
var ErrNoPermission = errors.New("brightness control not permitted")

// Display is the screen whose backlight the controller drives.
type Display interface {
	CanAdjustBrightness() bool
	Brightness() (float64, error)
	SetBrightness(level float64) error
}

// BrightnessController applies recommended brightness levels to a Display.
// All methods are best effort: display errors and panics are logged, never
// returned to the caller of Adjust.
type BrightnessController struct {
	display Display

	mu       sync.Mutex
	enabled  bool
	original float64
	saved    bool
}

func NewBrightnessController(d Display) *BrightnessController {
	return &BrightnessController{display: d}
}

// Enable takes control of the display brightness and remembers the current
// level. It returns false when the display does not permit adjustment.
func (c *BrightnessController) Enable() (ok bool) {
	defer c.recoverPanic("Enable", &ok)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.display == nil || !c.display.CanAdjustBrightness() {
		log.Printf("brightness: %v", ErrNoPermission)
		return false
	}
	if lvl, err := c.display.Brightness(); err == nil {
		c.original = lvl
		c.saved = true
	} else {
		log.Printf("brightness: read original level: %v", err)
	}
	c.enabled = true
	log.Printf("brightness: auto brightness enabled")
	return true
}

// Disable releases control and restores the level seen at Enable.
func (c *BrightnessController) Disable() {
	defer c.recoverPanic("Disable", nil)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}
	c.enabled = false
	if c.saved {
		if err := c.display.SetBrightness(c.original); err != nil {
			log.Printf("brightness: restore %.2f: %v", c.original, err)
		}
	}
	log.Printf("brightness: auto brightness disabled")
}

func (c *BrightnessController) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Adjust moves the display towards the recommended level in [0,1]. Changes
// smaller than ChangeThreshold are skipped. It reports whether the level was
// written.
func (c *BrightnessController) Adjust(recommended float64) (changed bool) {
	defer c.recoverPanic("Adjust", &changed)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return false
	}
	target := TargetLevel(recommended)

	current, err := c.display.Brightness()
	if err != nil {
		log.Printf("brightness: read level: %v", err)
		current = 0.5
	}
	if math.Abs(target-current) <= ChangeThreshold {
		return false
	}
	if err := c.display.SetBrightness(target); err != nil {
		log.Printf("brightness: set %.2f: %v", target, err)
		return false
	}
	log.Printf("brightness: %.2f -> %.2f (recommended %.0f%%)", current, target, recommended*100)
	return true
}

// TargetLevel maps a recommendation to a display level, clamping the input
// to [0,1] and never going below MinLevel.
func TargetLevel(recommended float64) float64 {
	if math.IsNaN(recommended) {
		recommended = 0.5
	}
	recommended = math.Max(0, math.Min(1, recommended))
	return recommended*(1-MinLevel) + MinLevel
}

func (c *BrightnessController) recoverPanic(where string, result *bool) {
	if r := recover(); r != nil {
		log.Printf("brightness: recovered from panic in %s: %v", where, r)
		if result != nil {
			*result = false
		}
	}
}

// MemoryDisplay is a Display holding its level in memory.
type MemoryDisplay struct {
	mu      sync.Mutex
	level   float64
	allowed bool
	writes  int
}

func NewMemoryDisplay(level float64, allowed bool) *MemoryDisplay {
	return &MemoryDisplay{level: level, allowed: allowed}
}

func (d *MemoryDisplay) CanAdjustBrightness() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allowed
}

func (d *MemoryDisplay) Brightness() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level, nil
}

func (d *MemoryDisplay) SetBrightness(level float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.allowed {
		return ErrNoPermission
	}
	d.level = level
	d.writes++
	return nil
}

// Writes counts successful SetBrightness calls.
func (d *MemoryDisplay) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}
