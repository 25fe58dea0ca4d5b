package incident

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReportStore persists incidents as one JSON file each so operator
// commands (list, show, resolve) work from a different process than
// the monitor that detected them. Files are owner read/write only.
type ReportStore struct {
	dir string
}

// NewReportStore creates a store rooted at dir.
func NewReportStore(dir string) *ReportStore {
	return &ReportStore{dir: dir}
}

// Save writes or overwrites the incident's report file.
func (s *ReportStore) Save(incident *Incident) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create incident directory: %w", err)
	}

	data, err := json.MarshalIndent(incident, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal incident: %w", err)
	}

	path := filepath.Join(s.dir, incident.ID+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write incident report: %w", err)
	}
	return nil
}

// Load reads one incident by id.
func (s *ReportStore) Load(id string) (*Incident, error) {
	path := filepath.Join(s.dir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("incident not found: %s", id)
		}
		return nil, fmt.Errorf("failed to read incident report: %w", err)
	}

	var incident Incident
	if err := json.Unmarshal(data, &incident); err != nil {
		return nil, fmt.Errorf("failed to parse incident report: %w", err)
	}
	return &incident, nil
}

// List returns every stored incident. Unreadable reports are skipped.
func (s *ReportStore) List() ([]*Incident, error) {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return []*Incident{}, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read incident directory: %w", err)
	}

	var incidents []*Incident
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		incident, err := s.Load(id)
		if err != nil {
			continue
		}
		incidents = append(incidents, incident)
	}
	return incidents, nil
}
