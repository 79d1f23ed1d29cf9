package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StepStore remembers the last workflow step a user was on, keyed by brand
// id, so reopening the app lands on the same step instead of re-running the
// first-load inference.
type StepStore struct {
	Version   string               `json:"version"`
	UpdatedAt time.Time            `json:"updated_at"`
	Brands    map[string]StepEntry `json:"brands"`
}

type StepEntry struct {
	Step         int    `json:"step"`
	GenerationID string `json:"generation_id,omitempty"`
	SetAt        string `json:"set_at"`
}

func GetStepStorePath() string {
	if path := os.Getenv("BRANDFLOW_STEP_STORE"); path != "" {
		return path
	}
	configDir, err := EnsureConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "step_store.json")
}

func LoadStepStore() (*StepStore, error) {
	path := GetStepStorePath()
	if path == "" {
		return &StepStore{Brands: make(map[string]StepEntry)}, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &StepStore{Version: "1.0", Brands: make(map[string]StepEntry)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read step store: %w", err)
	}

	var store StepStore
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("failed to parse step store: %w", err)
	}

	if store.Brands == nil {
		store.Brands = make(map[string]StepEntry)
	}

	return &store, nil
}

func (s *StepStore) Save() error {
	path := GetStepStorePath()
	if path == "" {
		return fmt.Errorf("cannot determine step store path")
	}

	s.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal step store: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// SetStep records the current step for a brand. Written on every step
// change so a brand switch or restart can restore it.
func (s *StepStore) SetStep(brandID string, step int, generationID string) {
	if s.Brands == nil {
		s.Brands = make(map[string]StepEntry)
	}
	s.Brands[brandID] = StepEntry{
		Step:         step,
		GenerationID: generationID,
		SetAt:        time.Now().Format(time.RFC3339),
	}
}

// GetStep returns the persisted step for a brand, or 0 if none was recorded.
func (s *StepStore) GetStep(brandID string) (int, bool) {
	if s.Brands == nil {
		return 0, false
	}
	entry, ok := s.Brands[brandID]
	if !ok || entry.Step < 1 || entry.Step > 4 {
		return 0, false
	}
	return entry.Step, true
}
