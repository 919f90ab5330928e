package syncengine

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/serr"
	"gopkg.in/yaml.v3"
)

// State is what a device remembers between runs.
type State struct {
	DeviceID    string    `yaml:"device_id"`
	Watermark   time.Time `yaml:"watermark"`
	LastSuccess time.Time `yaml:"last_success,omitempty"`
}

// LoadState reads the state file at path. A missing file yields a fresh
// state with a new device id. An empty path keeps state in memory only.
func LoadState(path string) (*State, error) {
	st := &State{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, serr.Wrap(err, "failed to read state file")
		default:
			if err := yaml.Unmarshal(data, st); err != nil {
				return nil, serr.Wrap(err, "failed to parse state file")
			}
		}
	}
	if st.DeviceID == "" {
		st.DeviceID = uuid.New().String()
	}
	return st, nil
}

// Save writes the state through a temp file and rename so a crash never
// leaves a truncated file behind.
func (s *State) Save(path string) error {
	if path == "" {
		return nil
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return serr.Wrap(err, "failed to encode state")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return serr.Wrap(err, "failed to create state directory")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return serr.Wrap(err, "failed to write state file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return serr.Wrap(err, "failed to replace state file")
	}
	return nil
}
