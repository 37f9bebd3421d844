// Package settings persists the operator-tunable knobs (persona, device
// key, calibration, voice) to a JSON file across restarts.
package settings

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"haptic/agent/internal/device"
)

const defaultPersona = "You are a warm, playful, attentive companion. " +
	"Keep replies short and sensual, follow the user's pace, and never rush a phase."

type Settings struct {
	Persona     string             `json:"persona"`
	Language    string             `json:"language"`
	HandyKey    string             `json:"handy_key"`
	VoiceID     string             `json:"voice_id"`
	Calibration device.Calibration `json:"calibration"`
}

func defaults() Settings {
	return Settings{
		Persona:     defaultPersona,
		Language:    "en",
		Calibration: device.DefaultCalibration(),
	}
}

// File is a settings store backed by one JSON file.
type File struct {
	mu   sync.Mutex
	path string
	cur  Settings
}

// Load reads the file at path, falling back to defaults when it does not
// exist yet. A corrupt file is an error, not a silent reset.
func Load(path string) (*File, error) {
	f := &File{path: path, cur: defaults()}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	f.cur = merge(defaults(), s)
	return f, nil
}

func merge(base, in Settings) Settings {
	if in.Persona != "" {
		base.Persona = in.Persona
	}
	if in.Language != "" {
		base.Language = in.Language
	}
	base.HandyKey = in.HandyKey
	if in.VoiceID != "" {
		base.VoiceID = in.VoiceID
	}
	if in.Calibration != (device.Calibration{}) {
		base.Calibration = in.Calibration
	}
	return base
}

func (f *File) Get() Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

// Update overwrites the settings and persists them. The write goes
// through a temp file and rename so a crash cannot leave half a file.
func (f *File) Update(s Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := merge(defaults(), s)
	b, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return err
	}
	f.cur = next
	return nil
}
