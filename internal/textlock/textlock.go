package textlock

import (
	"sort"

	"github.com/smtart/whiteboard-app/internal/board"
)

// Coordinator tracks advisory single-writer claims on text elements.
// Claims are honored by convention: nothing here prevents a dishonest
// writer, and the authoritative store never consults it.
type Coordinator struct {
	owners map[board.ElementID]string
}

// NewCoordinator constructs an empty claim registry.
func NewCoordinator() *Coordinator {
	return &Coordinator{owners: make(map[board.ElementID]string)}
}

// Claim records a lock announcement, last writer wins.
func (c *Coordinator) Claim(elementID board.ElementID, ownerID string) {
	c.owners[elementID] = ownerID
}

// Release clears a claim if ownerID currently holds it.
func (c *Coordinator) Release(elementID board.ElementID, ownerID string) bool {
	if c.owners[elementID] != ownerID {
		return false
	}
	delete(c.owners, elementID)
	return true
}

// Owner reports who holds the claim on an element, if anyone.
func (c *Coordinator) Owner(elementID board.ElementID) (string, bool) {
	owner, ok := c.owners[elementID]
	return owner, ok
}

// ReleaseOwner clears every claim held by a departing owner and
// returns the freed element ids.
func (c *Coordinator) ReleaseOwner(ownerID string) []board.ElementID {
	var freed []board.ElementID
	for elementID, owner := range c.owners {
		if owner == ownerID {
			freed = append(freed, elementID)
		}
	}
	for _, elementID := range freed {
		delete(c.owners, elementID)
	}
	sort.Slice(freed, func(i, j int) bool { return freed[i] < freed[j] })
	return freed
}
