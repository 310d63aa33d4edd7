package hass

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// FileSource reads a dump of GET /api/states from disk on every snapshot
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by a JSON file
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Snapshot loads the file and picks out the requested entities
func (f *FileSource) Snapshot(_ context.Context, entityIDs ...string) (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, errors.Wrap(err, "reading snapshot file")
	}

	var states []*EntityState
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, errors.Wrapf(err, "decoding snapshot file %s", f.path)
	}

	wanted := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		wanted[id] = true
	}

	snap := make(Snapshot, len(entityIDs))
	for _, st := range states {
		if st != nil && wanted[st.EntityID] {
			snap[st.EntityID] = st
		}
	}
	return snap, nil
}
