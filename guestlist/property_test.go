package guestlist

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"pgregory.net/rapid"

	"github.com/eringen/folio/identity"
)

func quietService(repo Repository, clock *fakeClock) *Service {
	return NewService(repo, adminEmail,
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestNormalizeNameProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.String().Draw(t, "name")
		out := NormalizeName(in)

		if n := utf8.RuneCountInString(out); n > MaxNameLength {
			t.Fatalf("normalized name has %d characters", n)
		}
		if !strings.HasPrefix(strings.TrimSpace(in), out) {
			t.Fatalf("%q is not a prefix of the trimmed input %q", out, in)
		}
		if (strings.TrimSpace(in) == "") != (out == "") {
			t.Fatalf("blank input %q normalized to %q", in, out)
		}
		if utf8.ValidString(in) && !utf8.ValidString(out) {
			t.Fatalf("truncation split a character: %q", out)
		}
	})
}

func TestAddFirstTimeIdentityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[A-Za-z][A-Za-z .'-]{0,49}`).Draw(t, "name")
		login := rapid.StringMatching(`[a-z][a-z0-9-]{2,20}`).Draw(t, "login")
		clock := &fakeClock{now: t0}
		svc := quietService(newMemRepo(), clock)

		g, err := svc.Add(context.Background(), &identity.Identity{Login: login}, name)
		if err != nil {
			t.Fatalf("Add(%q): %v", name, err)
		}
		if g.AddedBy != login {
			t.Fatalf("addedBy = %q, want %q", g.AddedBy, login)
		}
		if g.Name != strings.TrimSpace(name) {
			t.Fatalf("name = %q, want %q", g.Name, strings.TrimSpace(name))
		}
		if !g.CreatedAt.Equal(t0) {
			t.Fatalf("createdAt = %v, want %v", g.CreatedAt, t0)
		}
	})
}

func TestSecondAddDependsOnElapsedTime(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		login := rapid.StringMatching(`[a-z]{3,12}`).Draw(t, "login")
		elapsed := time.Duration(rapid.Int64Range(0, int64(3*Window)).Draw(t, "elapsed"))
		clock := &fakeClock{now: t0}
		repo := newMemRepo()
		svc := quietService(repo, clock)
		caller := &identity.Identity{Login: login}

		if _, err := svc.Add(context.Background(), caller, "first"); err != nil {
			t.Fatalf("first Add: %v", err)
		}
		clock.Advance(elapsed)
		_, err := svc.Add(context.Background(), caller, "second")

		if elapsed < Window {
			if err != ErrRateLimited {
				t.Fatalf("after %v: err = %v, want ErrRateLimited", elapsed, err)
			}
			if len(repo.guests) != 1 {
				t.Fatalf("rate-limited Add stored a guest")
			}
		} else if err != nil {
			t.Fatalf("after %v: %v", elapsed, err)
		}
	})
}

func TestModerationRequiresAdminProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		caller := &identity.Identity{
			Name:  rapid.StringMatching(`[A-Za-z ]{0,10}`).Draw(t, "name"),
			Login: rapid.StringMatching(`[a-z]{0,10}`).Draw(t, "login"),
			Email: rapid.StringMatching(`[a-z]{1,8}@example\.(com|org)`).Filter(func(s string) bool {
				return s != adminEmail
			}).Draw(t, "email"),
		}
		id := rapid.Int64().Draw(t, "id")
		repo := newMemRepo()
		repo.put(Guest{Name: "Bob", AddedBy: "x", CreatedAt: t0})
		svc := quietService(repo, &fakeClock{now: t0})

		if _, err := svc.Update(context.Background(), caller, id, "Robert"); err != ErrForbidden {
			t.Fatalf("Update by %+v: %v", caller, err)
		}
		if err := svc.Delete(context.Background(), caller, id); err != ErrForbidden {
			t.Fatalf("Delete by %+v: %v", caller, err)
		}
		if repo.writes() != 0 {
			t.Fatalf("non-admin call reached the store")
		}
	})
}
