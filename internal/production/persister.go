// Package production provides production integrations for running
// instances: snapshot persistence, event publishing, and chart
// visualization. Implements its interfaces using stdlib I/O plus the
// loader's yaml.v3 dependency, matching the teacher's own choices.
package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/waferflow/statechart/internal/mailbox"
)

// Persister saves and restores mailbox.Snapshot values keyed by instance id.
type Persister interface {
	Save(ctx context.Context, instanceID string, snapshot mailbox.Snapshot) error
	Load(ctx context.Context, instanceID string) (mailbox.Snapshot, error)
}

// JSONPersister is a stdlib-only file-based persister using JSON.
type JSONPersister struct {
	dir string
}

// NewJSONPersister creates a JSONPersister, ensuring dir exists.
func NewJSONPersister(dir string) (*JSONPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &JSONPersister{dir: dir}, nil
}

func (p *JSONPersister) Save(_ context.Context, instanceID string, snapshot mailbox.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	fn := filepath.Join(p.dir, instanceID+".json")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (p *JSONPersister) Load(_ context.Context, instanceID string) (mailbox.Snapshot, error) {
	fn := filepath.Join(p.dir, instanceID+".json")
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return mailbox.Snapshot{}, fmt.Errorf("instance %q: %w", instanceID, os.ErrNotExist)
		}
		return mailbox.Snapshot{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var snapshot mailbox.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return mailbox.Snapshot{}, fmt.Errorf("json unmarshal: %w", err)
	}
	return snapshot, nil
}

// YAMLPersister is a file-based persister using YAML, the teacher's own
// production.YAMLPersister format.
type YAMLPersister struct {
	dir string
}

// NewYAMLPersister creates a YAMLPersister, ensuring dir exists.
func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &YAMLPersister{dir: dir}, nil
}

func (p *YAMLPersister) Save(_ context.Context, instanceID string, snapshot mailbox.Snapshot) error {
	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	fn := filepath.Join(p.dir, instanceID+".yaml")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (p *YAMLPersister) Load(_ context.Context, instanceID string) (mailbox.Snapshot, error) {
	fn := filepath.Join(p.dir, instanceID+".yaml")
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return mailbox.Snapshot{}, fmt.Errorf("instance %q: %w", instanceID, os.ErrNotExist)
		}
		return mailbox.Snapshot{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var snapshot mailbox.Snapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return mailbox.Snapshot{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return snapshot, nil
}
