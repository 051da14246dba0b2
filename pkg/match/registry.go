// Package match holds the in-memory state of the matching authority:
// the session registry, the waiting pool, the first-fit matcher, and
// the admission guard. One Registry instance is owned by the server hub
// and shared by every session handler; all state dies with the process.
package match

import (
	"errors"
	"sync"
	"time"

	"github.com/chainmeet/chainmeet/pkg/com"
	"github.com/chainmeet/chainmeet/pkg/config"
)

var (
	ErrSessionExists  = errors.New("session already registered")
	ErrUnknownSession = errors.New("unknown session")
	// ErrOriginLimit rejects a connection sharing its network origin
	// with too many live sessions.
	ErrOriginLimit = errors.New("too many connections from this origin")
	// ErrCooldown rejects a queue-join issued too soon after the previous one.
	ErrCooldown = errors.New("too fast, please wait")
)

// Session is one connected participant as the registry sees it.
type Session struct {
	Id        com.Uid
	Role      string
	Interests []string
	// PartnerId points to the current partner; when set, the partner's
	// own PartnerId points back (symmetric pairing).
	PartnerId com.Uid
	Origin    string
	// JoinedQueueAt is the last queue-join request time, for throttling.
	JoinedQueueAt time.Time
	// Joined marks that preferences were submitted at least once, which
	// is what makes a later next-match able to re-enter the flow.
	Joined bool
}

// Outcome describes the registry mutation caused by a join or re-match.
type Outcome struct {
	Partner  com.Uid // new partner when matched
	Dropped  com.Uid // former partner detached by the request
	Enqueued bool    // the session went (back) into the waiting pool
}

type Registry struct {
	mu       sync.Mutex
	sessions map[com.Uid]*Session
	pool     []waitingEntry
	byOrigin map[string]int

	maxPerOrigin int
	cooldown     time.Duration
}

// waitingEntry is a snapshot of a searching session, held only while it
// sits in the pool. Insertion order is the match tie-break order.
type waitingEntry struct {
	id         com.Uid
	role       string
	interests  []string
	enqueuedAt time.Time
}

func NewRegistry(conf config.Matching) *Registry {
	return &Registry{
		sessions:     make(map[com.Uid]*Session, 64),
		byOrigin:     make(map[string]int, 64),
		maxPerOrigin: conf.MaxSessionsPerOrigin,
		cooldown:     conf.JoinCooldown,
	}
}

// Register adds a new session, enforcing the per-origin cap. Ids are
// generated by the transport layer and must be unique.
func (r *Registry) Register(id com.Uid, origin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return ErrSessionExists
	}
	if r.maxPerOrigin > 0 && r.byOrigin[origin] >= r.maxPerOrigin {
		return ErrOriginLimit
	}
	r.sessions[id] = &Session{Id: id, Origin: origin}
	r.byOrigin[origin]++
	return nil
}

// Remove drops a session on transport loss: clears its partner's back
// reference, evicts it from the pool, and forgets it. Returns the
// detached partner so the caller can notify it.
func (r *Registry) Remove(id com.Uid) (dropped com.Uid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return com.NilUid
	}
	dropped = r.detachLocked(s)
	r.dequeueLocked(id)
	delete(r.sessions, id)
	if n := r.byOrigin[s.Origin]; n <= 1 {
		delete(r.byOrigin, s.Origin)
	} else {
		r.byOrigin[s.Origin] = n - 1
	}
	return dropped
}

// Get returns a copy of the session state.
func (r *Registry) Get(id com.Uid) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return *s, true
	}
	return Session{}, false
}

// Stats reports the live session count and the waiting pool length.
func (r *Registry) Stats() (active, waiting int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions), len(r.pool)
}

// JoinQueue records the session's preferences and either pairs it with
// the first fitting waiting entry or enqueues it. A former partner, if
// any, is detached first so the pairing stays symmetric.
func (r *Registry) JoinQueue(id com.Uid, role string, interests []string, now time.Time) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Outcome{}, ErrUnknownSession
	}
	if err := r.throttleLocked(s, now); err != nil {
		return Outcome{}, err
	}
	s.Role = role
	s.Interests = interests
	s.Joined = true
	out := Outcome{Dropped: r.detachLocked(s)}
	r.dequeueLocked(id)
	r.rematchLocked(s, now, &out)
	return out, nil
}

// LeaveQueue cancels the search. No-op when the session is not enqueued.
func (r *Registry) LeaveQueue(id com.Uid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dequeueLocked(id)
}

// NextMatch skips the current partner and immediately re-enters the
// matching flow with the stored preferences. The admission cooldown is
// not bypassed: a throttled request leaves all state untouched.
func (r *Registry) NextMatch(id com.Uid, now time.Time) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Outcome{}, ErrUnknownSession
	}
	if err := r.throttleLocked(s, now); err != nil {
		return Outcome{}, err
	}
	out := Outcome{Dropped: r.detachLocked(s)}
	r.dequeueLocked(id)
	if !s.Joined {
		// never submitted preferences, nothing to re-match with
		return out, nil
	}
	r.rematchLocked(s, now, &out)
	return out, nil
}

func (r *Registry) throttleLocked(s *Session, now time.Time) error {
	if r.cooldown > 0 && !s.JoinedQueueAt.IsZero() && now.Sub(s.JoinedQueueAt) < r.cooldown {
		return ErrCooldown
	}
	s.JoinedQueueAt = now
	return nil
}

// rematchLocked pairs s with a waiting entry or enqueues it.
func (r *Registry) rematchLocked(s *Session, now time.Time, out *Outcome) {
	if partner, ok := r.matchLocked(s.Id, s.Interests); ok {
		p := r.sessions[partner]
		s.PartnerId, p.PartnerId = p.Id, s.Id
		out.Partner = partner
		return
	}
	r.pool = append(r.pool, waitingEntry{id: s.Id, role: s.Role, interests: s.Interests, enqueuedAt: now})
	out.Enqueued = true
}

// detachLocked clears a symmetric pairing and returns the former
// partner's id, or the nil id when the session was unpaired.
func (r *Registry) detachLocked(s *Session) com.Uid {
	if s.PartnerId.IsEmpty() {
		return com.NilUid
	}
	prev := s.PartnerId
	s.PartnerId = com.NilUid
	if p, ok := r.sessions[prev]; ok && p.PartnerId == s.Id {
		p.PartnerId = com.NilUid
	}
	return prev
}

func (r *Registry) dequeueLocked(id com.Uid) {
	for i, e := range r.pool {
		if e.id == id {
			r.pool = append(r.pool[:i], r.pool[i+1:]...)
			return
		}
	}
}
