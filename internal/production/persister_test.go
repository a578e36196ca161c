package production

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/waferflow/statechart/internal/mailbox"
)

func TestJSONPersister_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := NewJSONPersister(dir)
	if err != nil {
		t.Fatalf("NewJSONPersister failed: %v", err)
	}

	snapshot := mailbox.Snapshot{
		CurrentStates: []string{"op.idle"},
		Context:       map[string]any{"key": "value", "counter": float64(42)},
		IsRunning:     true,
		Status:        mailbox.StatusActive,
	}

	if err := p.Save(context.Background(), "test-instance", snapshot); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := p.Load(context.Background(), "test-instance")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	snapJSON, _ := json.Marshal(snapshot)
	loadedJSON, _ := json.Marshal(loaded)
	if !bytes.Equal(snapJSON, loadedJSON) {
		t.Errorf("Snapshot JSON mismatch:\nwant %s\ngot  %s", snapJSON, loadedJSON)
	}
}

func TestJSONPersister_LoadNonExistent(t *testing.T) {
	dir := t.TempDir()
	p, err := NewJSONPersister(dir)
	if err != nil {
		t.Fatalf("NewJSONPersister failed: %v", err)
	}

	_, err = p.Load(context.Background(), "nonexistent")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist wrapped error, got %v", err)
	}
}

func TestYAMLPersister_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := NewYAMLPersister(dir)
	if err != nil {
		t.Fatalf("NewYAMLPersister failed: %v", err)
	}

	snapshot := mailbox.Snapshot{
		CurrentStates: []string{"traffic.green"},
		Context:       map[string]any{"restored": true},
		Status:        mailbox.StatusActive,
	}
	if err := p.Save(context.Background(), "restore-test", snapshot); err != nil {
		t.Fatal(err)
	}

	loaded, err := p.Load(context.Background(), "restore-test")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.CurrentStates) != 1 || loaded.CurrentStates[0] != "traffic.green" {
		t.Errorf("restored current states mismatch: got %v", loaded.CurrentStates)
	}
}
