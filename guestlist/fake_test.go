package guestlist

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// memRepo is an in-memory Repository with the same semantics as the SQLite
// store, including the atomic conditional insert.
type memRepo struct {
	mu     sync.Mutex
	guests []Guest
	nextID int64
	calls  []string
	fail   error
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1}
}

func (r *memRepo) record(call string) error {
	r.calls = append(r.calls, call)
	return r.fail
}

func (r *memRepo) writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == "create" || c == "update" || c == "delete" {
			n++
		}
	}
	return n
}

func (r *memRepo) ListGuests(_ context.Context, f Filter) ([]Guest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("list"); err != nil {
		return nil, err
	}
	var out []Guest
	for _, g := range r.guests {
		if f.Query == "" || strings.Contains(strings.ToLower(g.Name), strings.ToLower(f.Query)) {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) LatestGuestBy(_ context.Context, addedBy string) (Guest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("latest"); err != nil {
		return Guest{}, err
	}
	return r.latestLocked(addedBy)
}

func (r *memRepo) latestLocked(addedBy string) (Guest, error) {
	var latest *Guest
	for i := range r.guests {
		g := &r.guests[i]
		if g.AddedBy == addedBy && (latest == nil || g.CreatedAt.After(latest.CreatedAt)) {
			latest = g
		}
	}
	if latest == nil {
		return Guest{}, ErrNotFound
	}
	return *latest, nil
}

func (r *memRepo) CreateGuest(_ context.Context, g Guest, since time.Time) (Guest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("create"); err != nil {
		return Guest{}, err
	}
	if latest, err := r.latestLocked(g.AddedBy); err == nil && latest.CreatedAt.After(since) {
		return Guest{}, ErrRateLimited
	}
	g.ID = r.nextID
	r.nextID++
	r.guests = append(r.guests, g)
	return g, nil
}

func (r *memRepo) UpdateGuestName(_ context.Context, id int64, name string) (Guest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("update"); err != nil {
		return Guest{}, err
	}
	for i := range r.guests {
		if r.guests[i].ID == id {
			r.guests[i].Name = name
			return r.guests[i], nil
		}
	}
	return Guest{}, ErrNotFound
}

func (r *memRepo) DeleteGuest(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("delete"); err != nil {
		return err
	}
	for i := range r.guests {
		if r.guests[i].ID == id {
			r.guests = append(r.guests[:i], r.guests[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// put stores g directly, bypassing the rate limit.
func (r *memRepo) put(g Guest) Guest {
	r.mu.Lock()
	defer r.mu.Unlock()
	g.ID = r.nextID
	r.nextID++
	r.guests = append(r.guests, g)
	return g
}

var errDiskFull = errors.New("disk I/O error")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
