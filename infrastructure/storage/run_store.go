package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"webagent/domain/entities"
	"webagent/domain/interfaces"
)

type runStore struct {
	runsPath string
}

// NewRunStore - creates new run history storage
func NewRunStore() interfaces.Storage {
	homeDir, _ := os.UserHomeDir()
	stateDir := filepath.Join(homeDir, ".webagent")
	os.MkdirAll(stateDir, 0755)

	return &runStore{
		runsPath: filepath.Join(stateDir, "runs.json"),
	}
}

// SaveRun - appends one run record to the history file
func (s *runStore) SaveRun(run entities.RunRecord) error {
	runs, err := s.LoadRuns()
	if err != nil {
		return err
	}
	runs = append(runs, run)

	data, err := json.Marshal(runs)
	if err != nil {
		return err
	}
	return os.WriteFile(s.runsPath, data, 0644)
}

// LoadRuns - loads all persisted run records
func (s *runStore) LoadRuns() ([]entities.RunRecord, error) {
	data, err := os.ReadFile(s.runsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []entities.RunRecord{}, nil
		}
		return nil, err
	}

	var runs []entities.RunRecord
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, err
	}

	return runs, nil
}
