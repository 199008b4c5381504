package upload

import (
	"sync"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// maxDeclaredSets bounds the cache. Past it the cache starts over and open
// sessions rebuild their set on their next upload.
const maxDeclaredSets = 4096

// declaredSets caches the manifest of each open session as a set, so
// checking an uploaded chunk against a large manifest does not rescan it.
// Session ids are never reused, so an entry can only go stale by outliving
// its session.
type declaredSets struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

func newDeclaredSets() *declaredSets {
	return &declaredSets{sets: make(map[string]map[string]struct{})}
}

// contains reports whether hash is part of session's manifest.
func (d *declaredSets) contains(session *metadata.Session, hash string) bool {
	d.mu.Lock()
	set, ok := d.sets[session.ID]
	if !ok {
		if len(d.sets) >= maxDeclaredSets {
			clear(d.sets)
		}
		set = session.DeclaredSet()
		d.sets[session.ID] = set
	}
	d.mu.Unlock()

	_, ok = set[hash]
	return ok
}

func (d *declaredSets) forget(sessionID string) {
	d.mu.Lock()
	delete(d.sets, sessionID)
	d.mu.Unlock()
}

func (d *declaredSets) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sets)
}
