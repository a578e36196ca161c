// Package registry stores versioned snapshots of mailbox instances so a
// host can inspect an instance's snapshot history without the engine
// itself needing to persist across restarts (that remains a Non-goal; this
// is an in-process, in-memory generalisation of the snapshot contract the
// engine design already requires for AskState).
//
// Grounded on the teacher's internal/core/registry.go Registry interface
// and its MachineSnapshotVersion wrapper.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/waferflow/statechart/internal/mailbox"
)

var (
	ErrNotFound = errors.New("registry: version or instance not found")
	ErrExists   = errors.New("registry: version already exists")
)

// Registry manages versioned snapshots of running instances.
type Registry interface {
	Register(ctx context.Context, instanceID string, snapshot mailbox.Snapshot) (version string, err error)
	Latest(ctx context.Context, instanceID string) (SnapshotVersion, error)
	Version(ctx context.Context, instanceID, version string) (SnapshotVersion, error)
	ListVersions(ctx context.Context, instanceID string) ([]string, error)
	ListInstances(ctx context.Context) ([]string, error)
}

// SnapshotVersion annotates a mailbox.Snapshot with a monotonic version
// string and the time it was recorded.
type SnapshotVersion struct {
	mailbox.Snapshot
	Version   string
	Timestamp time.Time
}

// InMemory is the default Registry implementation: a process-local map of
// instance id to version-ordered snapshots, matching the engine design's
// explicit Non-goal of persistence across restarts (this never touches
// disk).
type InMemory struct {
	mu       sync.RWMutex
	versions map[string][]SnapshotVersion // instanceID -> versions, oldest first
	seq      map[string]int
	now      func() time.Time
}

// NewInMemory creates an empty in-memory registry. nowFn defaults to
// time.Now; tests may override it for deterministic timestamps.
func NewInMemory(nowFn func() time.Time) *InMemory {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &InMemory{
		versions: make(map[string][]SnapshotVersion),
		seq:      make(map[string]int),
		now:      nowFn,
	}
}

func (r *InMemory) Register(_ context.Context, instanceID string, snapshot mailbox.Snapshot) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq[instanceID]++
	version := fmt.Sprintf("v%d", r.seq[instanceID])
	r.versions[instanceID] = append(r.versions[instanceID], SnapshotVersion{
		Snapshot:  snapshot,
		Version:   version,
		Timestamp: r.now(),
	})
	return version, nil
}

func (r *InMemory) Latest(_ context.Context, instanceID string) (SnapshotVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.versions[instanceID]
	if len(list) == 0 {
		return SnapshotVersion{}, ErrNotFound
	}
	return list[len(list)-1], nil
}

func (r *InMemory) Version(_ context.Context, instanceID, version string) (SnapshotVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sv := range r.versions[instanceID] {
		if sv.Version == version {
			return sv, nil
		}
	}
	return SnapshotVersion{}, ErrNotFound
}

func (r *InMemory) ListVersions(_ context.Context, instanceID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.versions[instanceID]
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	out := make([]string, len(list))
	for i, sv := range list {
		out[len(list)-1-i] = sv.Version // newest first, matching teacher's ListVersions contract
	}
	return out, nil
}

func (r *InMemory) ListInstances(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.versions))
	for id := range r.versions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
