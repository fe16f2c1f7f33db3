package naming

import (
	"fmt"
	"sync"
)

// CollisionResolver hands out artifact stems so that two inputs that would
// derive the same stem ("clip.mp4" and "clip.mkv" in one directory) never
// write to the same intermediate files. Duplicates get " - dupN" suffixes.
// All methods are goroutine-safe.
type CollisionResolver struct {
	mu       sync.Mutex
	owners   map[string]string // stem → input path that owns it
	counters map[string]int    // requested stem → next dup counter
}

// NewCollisionResolver creates a ready-to-use resolver.
func NewCollisionResolver() *CollisionResolver {
	return &CollisionResolver{
		owners:   make(map[string]string),
		counters: make(map[string]int),
	}
}

// Resolve returns the stem input may use. If requested is unclaimed (or
// already owned by input) it is returned as-is; otherwise a " - dupN"
// variant is reserved.
func (cr *CollisionResolver) Resolve(input, requested string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	owner, exists := cr.owners[requested]
	if !exists || owner == input {
		cr.owners[requested] = input
		return requested
	}

	counter := cr.counters[requested]
	if counter == 0 {
		counter = 1
	}
	for {
		candidate := fmt.Sprintf("%s - dup%d", requested, counter)
		cOwner, cExists := cr.owners[candidate]
		if !cExists || cOwner == input {
			cr.counters[requested] = counter + 1
			cr.owners[candidate] = input
			return candidate
		}
		counter++
	}
}

// Release frees every stem owned by input so a later run of the same
// file starts from its plain stem again.
func (cr *CollisionResolver) Release(input string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	for stem, owner := range cr.owners {
		if owner == input {
			delete(cr.owners, stem)
		}
	}
}
