// Package hotkey listens for a global key combination.
package hotkey

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"

	"kiana/logutil"
)

var hookOnce sync.Once
var hookEvents chan gohook.Event

// Listen starts watching for combo (e.g. "Ctrl+Alt+T") and calls callback on
// every activation, from the hook goroutine.
func Listen(combo string, callback func()) error {
	c, err := Parse(combo)
	if err != nil {
		return err
	}
	log := logutil.Component("hotkey")
	log.Info().Str("combo", combo).Msg("hotkey listener configured")

	hookOnce.Do(func() { hookEvents = gohook.Start() })
	if hookEvents == nil {
		return fmt.Errorf("hotkey: gohook.Start returned nil channel")
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("hotkey goroutine panicked")
			}
		}()
		for ev := range hookEvents {
			switch ev.Kind {
			case gohook.KeyDown:
				if c.Press(ev.Keycode, ev.Rawcode) {
					log.Debug().Str("combo", combo).Msg("hotkey activated")
					if callback != nil {
						callback()
					}
				}
			case gohook.KeyUp:
				c.Release(ev.Keycode, ev.Rawcode)
			}
		}
		log.Debug().Msg("hook event channel closed")
	}()
	return nil
}

// Combo tracks the pressed state of each key in a combination.
type Combo struct {
	mu   sync.Mutex
	keys []keyState
}

type keyState struct {
	name     string
	keycodes []uint16
	rawcodes []uint16
	pressed  bool
}

// Parse turns "Ctrl+Alt+T" into a Combo. Every key must be known.
func Parse(combo string) (*Combo, error) {
	c := &Combo{}
	for _, name := range parseHotkey(combo) {
		if name == "" {
			continue
		}
		ks := keyState{name: name, keycodes: keyNameToKeycodes(name), rawcodes: keyNameToRawcodes(name)}
		if len(ks.keycodes) == 0 && len(ks.rawcodes) == 0 {
			return nil, fmt.Errorf("hotkey: unknown key %q in %q", name, combo)
		}
		c.keys = append(c.keys, ks)
	}
	if len(c.keys) == 0 {
		return nil, fmt.Errorf("hotkey: empty combination %q", combo)
	}
	return c, nil
}

// Press records a key-down and reports whether the whole combination is now
// held. Activation resets the state so holding the keys fires once.
func (c *Combo) Press(keycode, rawcode uint16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.keys {
		if c.keys[i].matches(keycode, rawcode) {
			c.keys[i].pressed = true
		}
	}
	for _, k := range c.keys {
		if !k.pressed {
			return false
		}
	}
	for i := range c.keys {
		c.keys[i].pressed = false
	}
	return true
}

func (c *Combo) Release(keycode, rawcode uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.keys {
		if c.keys[i].matches(keycode, rawcode) {
			c.keys[i].pressed = false
		}
	}
}

func (k keyState) matches(keycode, rawcode uint16) bool {
	for _, code := range k.keycodes {
		if code == keycode {
			return true
		}
	}
	// Windows reports virtual-key codes as rawcodes.
	if runtime.GOOS == "windows" {
		for _, code := range k.rawcodes {
			if code == rawcode {
				return true
			}
		}
	}
	return false
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "control":
			part = "ctrl"
		case "option":
			part = "alt"
		case "win", "super", "meta":
			part = "cmd"
		case "return":
			part = "enter"
		case "escape":
			part = "esc"
		}
		keys = append(keys, part)
	}
	return keys
}

// keyNameToKeycodes resolves a key through gohook's portable keycode table,
// including the right-hand variant of modifiers.
func keyNameToKeycodes(name string) []uint16 {
	var codes []uint16
	if code, ok := gohook.Keycode[name]; ok {
		codes = append(codes, code)
	}
	switch name {
	case "ctrl", "alt", "shift", "cmd":
		if code, ok := gohook.Keycode["r"+name]; ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// keyNameToRawcodes maps a key name to its Windows virtual key codes.
func keyNameToRawcodes(name string) []uint16 {
	switch name {
	case "ctrl":
		return []uint16{162, 163} // VK_LCONTROL, VK_RCONTROL
	case "alt":
		return []uint16{164, 165} // VK_LMENU, VK_RMENU
	case "shift":
		return []uint16{160, 161} // VK_LSHIFT, VK_RSHIFT
	case "cmd":
		return []uint16{91, 92} // VK_LWIN, VK_RWIN
	case "space":
		return []uint16{32}
	case "enter":
		return []uint16{13}
	case "esc":
		return []uint16{27}
	case "tab":
		return []uint16{9}
	}

	if len(name) == 1 {
		switch ch := name[0]; {
		case ch >= 'a' && ch <= 'z':
			return []uint16{uint16(ch-'a') + 65}
		case ch >= '0' && ch <= '9':
			return []uint16{uint16(ch-'0') + 48}
		}
	}
	var n int
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && n >= 1 && n <= 24 && name == fmt.Sprintf("f%d", n) {
		return []uint16{uint16(111 + n)} // VK_F1 = 112
	}
	return nil
}
