package leads

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dwc-systems/lead-map/pkg/utils"
)

// Snapshot is the last accepted lead list.
type Snapshot struct {
	FetchedAt time.Time `json:"fetched_at"`
	Leads     []Record  `json:"leads"`
}

type SnapshotStore interface {
	Load() (Snapshot, bool, error)
	Save(Snapshot) error
}

const defaultSnapshotKey = "leads/last-good"

// DiskSnapshot keeps the snapshot in a DiskStore under a single key.
type DiskSnapshot struct {
	store *utils.DiskStore
	key   string
}

func NewDiskSnapshot(store *utils.DiskStore, key string) *DiskSnapshot {
	if key == "" {
		key = defaultSnapshotKey
	}
	return &DiskSnapshot{store: store, key: key}
}

func (d *DiskSnapshot) Load() (Snapshot, bool, error) {
	raw, err := d.store.Get(d.key)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	if raw == nil {
		return Snapshot{}, false, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// Drop the unreadable entry so the next accepted list replaces it.
		if derr := d.store.Delete(d.key); derr != nil {
			err = errors.Join(err, derr)
		}
		return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

func (d *DiskSnapshot) Save(snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return d.store.Put(d.key, raw)
}
