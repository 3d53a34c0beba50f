package sii

import (
	"fmt"
	"sync"
	"time"
)

// DefaultMaxSnapshots bounds the rollback history of an Editor
const DefaultMaxSnapshots = 10

// Snapshot is a saved copy of an image taken before an edit
type Snapshot struct {
	Data        []byte
	Timestamp   time.Time
	Description string
}

// Editor is an editing session over one Image with snapshot and rollback.
type Editor struct {
	image *Image

	// oldest first, at most maxSnapshots entries
	snapshots    []*Snapshot
	maxSnapshots int

	mutex sync.Mutex
}

// NewEditor starts an editing session over img.
func NewEditor(img *Image) *Editor {
	return &Editor{
		image:        img,
		snapshots:    make([]*Snapshot, 0, DefaultMaxSnapshots),
		maxSnapshots: DefaultMaxSnapshots,
	}
}

// Image returns the image being edited.
func (e *Editor) Image() *Image {
	return e.image
}

// Snapshot records the current image contents. The oldest snapshot is
// dropped once the history is full.
func (e *Editor) Snapshot(description string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.snapshots = append(e.snapshots, &Snapshot{
		Data:        e.image.Bytes(),
		Timestamp:   time.Now(),
		Description: description,
	})

	if len(e.snapshots) > e.maxSnapshots {
		e.snapshots = e.snapshots[1:]
	}
}

// Rollback restores the most recent snapshot and removes it from the history.
func (e *Editor) Rollback() (*Snapshot, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if len(e.snapshots) == 0 {
		return nil, fmt.Errorf("no snapshot to roll back to")
	}

	last := e.snapshots[len(e.snapshots)-1]
	e.snapshots = e.snapshots[:len(e.snapshots)-1]
	e.image.SetBytes(last.Data)

	return last, nil
}

// Snapshots returns the history, oldest first.
func (e *Editor) Snapshots() []*Snapshot {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	result := make([]*Snapshot, len(e.snapshots))
	copy(result, e.snapshots)
	return result
}

// Apply snapshots the image and then runs edit. If edit fails the image is
// rolled back to the snapshot.
func (e *Editor) Apply(description string, edit func(img *Image) error) error {
	e.Snapshot(description)

	if err := edit(e.image); err != nil {
		if _, rbErr := e.Rollback(); rbErr != nil {
			return fmt.Errorf("%s: %w (rollback failed: %v)", description, err, rbErr)
		}
		return fmt.Errorf("%s: %w", description, err)
	}

	return nil
}
