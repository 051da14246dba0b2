package match

import "github.com/chainmeet/chainmeet/pkg/com"

// matchLocked selects a partner from the pool for the given requester
// and removes it. Greedy first-fit: with interests set, the oldest
// entry sharing at least one interest wins; otherwise, or when no
// overlap exists, the oldest entry wins (FIFO). Entries never expire.
func (r *Registry) matchLocked(id com.Uid, interests []string) (com.Uid, bool) {
	if len(interests) > 0 {
		for i, e := range r.pool {
			if e.id == id {
				continue
			}
			if intersects(interests, e.interests) {
				r.pool = append(r.pool[:i], r.pool[i+1:]...)
				return e.id, true
			}
		}
	}
	for i, e := range r.pool {
		if e.id == id {
			continue
		}
		r.pool = append(r.pool[:i], r.pool[i+1:]...)
		return e.id, true
	}
	return com.NilUid, false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
