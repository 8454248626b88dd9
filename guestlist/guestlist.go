// Package guestlist implements the guestbook: authenticated visitors add one
// entry per day, and the site admin edits or removes entries.
package guestlist

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxNameLength is the longest name stored, in characters. Longer input
	// is truncated rather than rejected.
	MaxNameLength = 50

	// Window is the period in which an identity may add at most one guest.
	Window = 24 * time.Hour

	// DefaultPerPage applies when a page is requested without a page size.
	DefaultPerPage = 5

	// MaxPerPage caps the page size of a listing.
	MaxPerPage = 100
)

// Guest is one guestbook entry.
type Guest struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	AddedBy   string    `json:"addedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListOptions narrows a listing. The zero value lists everything.
type ListOptions struct {
	Query   string // case-insensitive substring of the name
	Page    int    // 1-based; 0 means unpaginated unless PerPage is set
	PerPage int
}

// Filter is a listing as the repository sees it. A zero Limit means no limit.
type Filter struct {
	Query  string
	Limit  int
	Offset int
}

// Repository persists guests.
type Repository interface {
	// ListGuests returns the guests matching f, newest first.
	ListGuests(ctx context.Context, f Filter) ([]Guest, error)

	// LatestGuestBy returns the newest guest added by addedBy, or ErrNotFound.
	LatestGuestBy(ctx context.Context, addedBy string) (Guest, error)

	// CreateGuest inserts g unless a guest by g.AddedBy was created after
	// since, in which case it returns ErrRateLimited and writes nothing.
	// The check and the insert are a single atomic operation.
	CreateGuest(ctx context.Context, g Guest, since time.Time) (Guest, error)

	// UpdateGuestName sets the name of guest id, or returns ErrNotFound.
	UpdateGuestName(ctx context.Context, id int64, name string) (Guest, error)

	// DeleteGuest removes guest id, or returns ErrNotFound.
	DeleteGuest(ctx context.Context, id int64) error
}

// NormalizeName trims surrounding whitespace and keeps at most MaxNameLength
// characters. The result is empty when name holds only whitespace.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	n := 0
	for i := range name {
		if n == MaxNameLength {
			return name[:i]
		}
		n++
	}
	return name
}

func (o ListOptions) filter() (Filter, bool) {
	f := Filter{Query: strings.TrimSpace(o.Query)}
	if o.Page < 0 || o.PerPage < 0 || o.PerPage > MaxPerPage {
		return f, false
	}
	if o.Page == 0 && o.PerPage == 0 {
		return f, true
	}
	page, perPage := o.Page, o.PerPage
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	if page > math.MaxInt/perPage {
		return f, false
	}
	f.Limit = perPage
	f.Offset = (page - 1) * perPage
	return f, true
}
