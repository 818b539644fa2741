package posegraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultStateCachePath is the default location of the emitter state cache
const DefaultStateCachePath = ".fgsp-state.json"

// EmitterState is the part of the command post that survives restarts
type EmitterState struct {
	RobotName         string           `json:"robotName"`
	History           map[int]LabelSet `json:"history"`
	DegenerateIndices []int            `json:"degenerateIndices"`
	LastUpdated       int64            `json:"lastUpdated"`
}

// LoadEmitterState loads a saved state. A missing file yields nil, nil.
func LoadEmitterState(path string) (*EmitterState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state EmitterState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	return &state, nil
}

// SaveEmitterState writes state to path, creating the directory if needed
func SaveEmitterState(path string, state *EmitterState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	state.LastUpdated = time.Now().Unix()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
