// Package retention caps the disk usage of generated step files.
package retention

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alexisbeaulieu97/refinery/internal/logger"
)

// ArtifactSet is every file produced for one step, sharing a base name.
type ArtifactSet struct {
	Step  int
	Base  string
	Files []string
}

// NewArtifactSet lists dir/base+ext for each extension.
func NewArtifactSet(step int, dir, base string, extensions []string) ArtifactSet {
	files := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		files = append(files, filepath.Join(dir, base+ext))
	}
	return ArtifactSet{Step: step, Base: base, Files: files}
}

// Queue is a FIFO of artifact sets bounded at max. Pushing past the bound deletes
// the oldest set's files. Pinned paths survive eviction.
type Queue struct {
	mu     sync.Mutex
	max    int
	sets   []ArtifactSet
	pinned map[string]struct{}
	log    *logger.Logger
}

// New creates a queue that keeps at most max sets; max < 1 is treated as 1.
func New(max int, log *logger.Logger) *Queue {
	if max < 1 {
		max = 1
	}
	return &Queue{max: max, pinned: make(map[string]struct{}), log: log}
}

// Push registers set and evicts sets beyond the bound, oldest first. The evicted
// sets are returned in eviction order.
func (q *Queue) Push(set ArtifactSet) []ArtifactSet {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sets = append(q.sets, set)

	var evicted []ArtifactSet
	for len(q.sets) > q.max {
		oldest := q.sets[0]
		q.sets = q.sets[1:]
		q.remove(oldest)
		evicted = append(evicted, oldest)
	}
	return evicted
}

// Pin protects path from deletion, replacing any previous pin. A previously pinned
// file whose set was already evicted is deleted now.
func (q *Queue) Pin(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	path = filepath.Clean(path)
	previous := q.pinned
	q.pinned = map[string]struct{}{path: {}}

	for old := range previous {
		if old == path || q.retained(old) {
			continue
		}
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			q.log.Warn(fmt.Sprintf("could not remove artifact %s: %v", old, err))
		}
	}
}

func (q *Queue) retained(path string) bool {
	for _, set := range q.sets {
		for _, file := range set.Files {
			if filepath.Clean(file) == path {
				return true
			}
		}
	}
	return false
}

// Len returns the number of retained sets.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sets)
}

// Sets returns the retained sets, oldest first.
func (q *Queue) Sets() []ArtifactSet {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]ArtifactSet(nil), q.sets...)
}

func (q *Queue) remove(set ArtifactSet) {
	for _, file := range set.Files {
		if _, keep := q.pinned[filepath.Clean(file)]; keep {
			continue
		}
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			q.log.Warn(fmt.Sprintf("could not remove artifact %s: %v", file, err))
		}
	}
	q.log.Debug(fmt.Sprintf("evicted artifacts of step %d (%s)", set.Step, set.Base))
}
