package match

import (
	"errors"
	"testing"
	"time"

	"github.com/chainmeet/chainmeet/pkg/com"
	"github.com/chainmeet/chainmeet/pkg/config"
)

var t0 = time.Unix(1700000000, 0)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(config.Matching{MaxSessionsPerOrigin: 5, JoinCooldown: time.Second})
}

func register(t *testing.T, r *Registry, origin string) com.Uid {
	t.Helper()
	id := com.NewUid()
	if err := r.Register(id, origin); err != nil {
		t.Fatal(err)
	}
	return id
}

func join(t *testing.T, r *Registry, id com.Uid, interests []string, now time.Time) Outcome {
	t.Helper()
	out, err := r.JoinQueue(id, "", interests, now)
	if err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, r)
	return out
}

// checkInvariants asserts the structural properties that must hold
// after every registry mutation: pairings are symmetric, the pool has
// no duplicates, and no pooled session is paired.
func checkInvariants(t *testing.T, r *Registry) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.PartnerId.IsEmpty() {
			continue
		}
		p, ok := r.sessions[s.PartnerId]
		if !ok {
			t.Fatalf("%v paired with unknown %v", id, s.PartnerId)
		}
		if p.PartnerId != id {
			t.Fatalf("asymmetric pairing %v → %v → %v", id, s.PartnerId, p.PartnerId)
		}
	}
	seen := map[com.Uid]struct{}{}
	for _, e := range r.pool {
		if _, dup := seen[e.id]; dup {
			t.Fatalf("%v pooled twice", e.id)
		}
		seen[e.id] = struct{}{}
		s, ok := r.sessions[e.id]
		if !ok {
			t.Fatalf("pooled %v not registered", e.id)
		}
		if !s.PartnerId.IsEmpty() {
			t.Fatalf("pooled %v is paired with %v", e.id, s.PartnerId)
		}
	}
}

func TestFifoMatch(t *testing.T) {
	r := testRegistry(t)
	a := register(t, r, "1.1.1.1")
	b := register(t, r, "2.2.2.2")

	if out := join(t, r, a, nil, t0); !out.Enqueued {
		t.Errorf("first join should wait, got %+v", out)
	}
	out := join(t, r, b, nil, t0)
	if out.Partner != a {
		t.Errorf("expected match with %v, got %+v", a, out)
	}
	if sa, _ := r.Get(a); sa.PartnerId != b {
		t.Errorf("pairing not symmetric: %v", sa.PartnerId)
	}
	if _, waiting := r.Stats(); waiting != 0 {
		t.Errorf("pool should be empty, %d waiting", waiting)
	}
}

func TestNoOverlapFallsBackToFifo(t *testing.T) {
	r := testRegistry(t)
	a := register(t, r, "1.1.1.1")
	b := register(t, r, "2.2.2.2")

	join(t, r, a, []string{"music"}, t0)
	out := join(t, r, b, []string{"defi"}, t0)
	if out.Partner != a {
		t.Errorf("expected fifo fallback match with %v, got %+v", a, out)
	}
}

func TestNextMatch(t *testing.T) {
	r := testRegistry(t)
	a := register(t, r, "1.1.1.1")
	b := register(t, r, "2.2.2.2")
	join(t, r, a, nil, t0)
	join(t, r, b, nil, t0)

	out, err := r.NextMatch(a, t0.Add(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, r)
	if out.Dropped != b {
		t.Errorf("expected %v dropped, got %+v", b, out)
	}
	if !out.Enqueued {
		t.Errorf("skipper should re-enter the pool, got %+v", out)
	}
	if sb, _ := r.Get(b); !sb.PartnerId.IsEmpty() {
		t.Errorf("former partner still paired with %v", sb.PartnerId)
	}

	// a waits again, a new arrival pairs with it
	c := register(t, r, "3.3.3.3")
	if out := join(t, r, c, nil, t0); out.Partner != a {
		t.Errorf("expected match with %v, got %+v", a, out)
	}
}

func TestNextMatchWithoutPreferences(t *testing.T) {
	r := testRegistry(t)
	a := register(t, r, "1.1.1.1")

	out, err := r.NextMatch(a, t0)
	if err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, r)
	if out.Enqueued {
		t.Errorf("no preferences submitted, should not enqueue: %+v", out)
	}
}

func TestJoinCooldown(t *testing.T) {
	r := testRegistry(t)
	a := register(t, r, "1.1.1.1")
	join(t, r, a, nil, t0)

	if _, err := r.JoinQueue(a, "", nil, t0.Add(100*time.Millisecond)); !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}
	checkInvariants(t, r)
	if _, waiting := r.Stats(); waiting != 1 {
		t.Errorf("rejected join must not change the pool, %d waiting", waiting)
	}
	if _, err := r.JoinQueue(a, "", nil, t0.Add(time.Second)); err != nil {
		t.Fatalf("cooldown should have expired: %v", err)
	}
}

func TestNextMatchRespectsCooldown(t *testing.T) {
	r := testRegistry(t)
	a := register(t, r, "1.1.1.1")
	b := register(t, r, "2.2.2.2")
	join(t, r, a, nil, t0)
	join(t, r, b, nil, t0)

	if _, err := r.NextMatch(a, t0.Add(100*time.Millisecond)); !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}
	checkInvariants(t, r)
	if sa, _ := r.Get(a); sa.PartnerId != b {
		t.Errorf("throttled next-match must leave the pairing intact, partner %v", sa.PartnerId)
	}
}

func TestRejoinWhilePairedDropsPartner(t *testing.T) {
	r := testRegistry(t)
	a := register(t, r, "1.1.1.1")
	b := register(t, r, "2.2.2.2")
	join(t, r, a, nil, t0)
	join(t, r, b, nil, t0)

	out, err := r.JoinQueue(a, "", nil, t0.Add(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, r)
	if out.Dropped != b {
		t.Errorf("expected %v dropped, got %+v", b, out)
	}
	if sb, _ := r.Get(b); !sb.PartnerId.IsEmpty() {
		t.Errorf("former partner still paired with %v", sb.PartnerId)
	}
}

func TestLeaveQueueIdempotent(t *testing.T) {
	r := testRegistry(t)
	a := register(t, r, "1.1.1.1")
	join(t, r, a, nil, t0)

	r.LeaveQueue(a)
	r.LeaveQueue(a)
	checkInvariants(t, r)
	if _, waiting := r.Stats(); waiting != 0 {
		t.Errorf("pool should be empty, %d waiting", waiting)
	}

	// a left voluntarily, a later arrival must wait
	b := register(t, r, "2.2.2.2")
	if out := join(t, r, b, nil, t0); !out.Enqueued {
		t.Errorf("expected enqueue, got %+v", out)
	}
}

func TestRemoveDropsPartnerAndPoolEntry(t *testing.T) {
	r := testRegistry(t)
	a := register(t, r, "1.1.1.1")
	b := register(t, r, "2.2.2.2")
	join(t, r, a, nil, t0)
	join(t, r, b, nil, t0)

	if dropped := r.Remove(a); dropped != b {
		t.Errorf("expected %v dropped, got %v", b, dropped)
	}
	checkInvariants(t, r)
	if sb, _ := r.Get(b); !sb.PartnerId.IsEmpty() {
		t.Errorf("survivor still paired with %v", sb.PartnerId)
	}

	// removing a pooled session evicts its entry
	join(t, r, b, nil, t0.Add(2*time.Second))
	r.Remove(b)
	checkInvariants(t, r)
	if active, waiting := r.Stats(); active != 0 || waiting != 0 {
		t.Errorf("registry should be empty, %d active %d waiting", active, waiting)
	}
}

func TestOriginCap(t *testing.T) {
	r := testRegistry(t)
	for i := 0; i < 5; i++ {
		register(t, r, "9.9.9.9")
	}
	if err := r.Register(com.NewUid(), "9.9.9.9"); !errors.Is(err, ErrOriginLimit) {
		t.Fatalf("expected origin rejection, got %v", err)
	}
	if err := r.Register(com.NewUid(), "8.8.8.8"); err != nil {
		t.Fatalf("other origins must not be affected: %v", err)
	}

	// a disconnect frees a slot
	id := register(t, r, "7.7.7.7")
	r.Remove(id)
	if err := r.Register(com.NewUid(), "7.7.7.7"); err != nil {
		t.Fatalf("slot should be free again: %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := testRegistry(t)
	id := register(t, r, "1.1.1.1")
	if err := r.Register(id, "1.1.1.1"); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func TestUnknownSession(t *testing.T) {
	r := testRegistry(t)
	if _, err := r.JoinQueue(com.NewUid(), "", nil, t0); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected unknown session, got %v", err)
	}
	if _, err := r.NextMatch(com.NewUid(), t0); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected unknown session, got %v", err)
	}
	if dropped := r.Remove(com.NewUid()); !dropped.IsEmpty() {
		t.Fatalf("expected nil drop, got %v", dropped)
	}
}
