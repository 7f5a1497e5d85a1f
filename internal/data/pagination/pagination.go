// Package pagination implements keyset paging over (timestamp desc, id desc).
//
// A page request fetches take+1 rows at or below the cursor. The extra row, when
// present, becomes the next cursor and is the first row of the following page,
// so concatenated pages never skip or repeat rows that share a timestamp.
package pagination

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultTake = 30
	MaxTake     = 100
)

// Cursor is an inclusive upper bound. A zero ID bounds by time only.
type Cursor struct {
	Time time.Time
	ID   uuid.UUID
}

func (c Cursor) HasID() bool { return c.ID != uuid.Nil }

// String renders "<unix-micros>_<uuid>", or bare micros for a time-only cursor.
func (c Cursor) String() string {
	micros := strconv.FormatInt(c.Time.UnixMicro(), 10)
	if !c.HasID() {
		return micros
	}
	return micros + "_" + c.ID.String()
}

func (c Cursor) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ParseCursor accepts "<unix-micros>_<uuid>", "<unix-micros>" or an RFC3339
// timestamp. An empty string yields a nil cursor.
func ParseCursor(raw string) (*Cursor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ts, id, ok := strings.Cut(raw, "_"); ok {
		t, err := parseMicros(ts)
		if err != nil {
			return nil, err
		}
		uid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor id: %w", err)
		}
		return &Cursor{Time: t, ID: uid}, nil
	}
	if t, err := parseMicros(raw); err == nil {
		return &Cursor{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor %q", raw)
	}
	return &Cursor{Time: t.UTC().Truncate(time.Microsecond)}, nil
}

func parseMicros(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cursor timestamp %q", s)
	}
	return time.UnixMicro(n).UTC(), nil
}

// Keyset names the ordering columns of a paged table.
type Keyset struct {
	TimeColumn string
	IDColumn   string
}

type Request struct {
	Take   int
	Before *Cursor
}

// Normalize clamps Take into [1, max], using def when unset.
func (r Request) Normalize(def, max int) Request {
	if def <= 0 {
		def = DefaultTake
	}
	if max <= 0 {
		max = MaxTake
	}
	if def > max {
		def = max
	}
	switch {
	case r.Take <= 0:
		r.Take = def
	case r.Take > max:
		r.Take = max
	}
	return r
}

type Page[T any] struct {
	Items []T
	// Next is nil on the last page.
	Next *Cursor
}

// Apply adds the keyset bound, ordering and a take+1 limit to q.
func Apply(q *gorm.DB, ks Keyset, req Request) *gorm.DB {
	if c := req.Before; c != nil {
		if c.HasID() {
			q = q.Where(
				fmt.Sprintf("(%s < ? OR (%s = ? AND %s <= ?))", ks.TimeColumn, ks.TimeColumn, ks.IDColumn),
				c.Time, c.Time, c.ID,
			)
		} else {
			q = q.Where(fmt.Sprintf("%s <= ?", ks.TimeColumn), c.Time)
		}
	}
	return q.
		Order(fmt.Sprintf("%s DESC", ks.TimeColumn)).
		Order(fmt.Sprintf("%s DESC", ks.IDColumn)).
		Limit(req.Take + 1)
}

// Finish trims a take+1 fetch to a page and derives the next cursor.
func Finish[T any](rows []T, take int, key func(T) Cursor) Page[T] {
	if len(rows) <= take {
		if rows == nil {
			rows = []T{}
		}
		return Page[T]{Items: rows}
	}
	next := key(rows[take])
	return Page[T]{Items: rows[:take], Next: &next}
}

// Fetch runs q under the keyset and returns one page.
func Fetch[T any](q *gorm.DB, ks Keyset, req Request, key func(T) Cursor) (Page[T], error) {
	var rows []T
	if err := Apply(q, ks, req).Find(&rows).Error; err != nil {
		return Page[T]{}, err
	}
	return Finish(rows, req.Take, key), nil
}

// Window is a half-open time range: Before is inclusive, After exclusive.
// A nil side is unbounded.
type Window struct {
	Before *time.Time
	After  *time.Time
}

// EventWindow aligns an event range with a fetched page. Windows of adjacent
// pages are disjoint and together cover the whole timeline.
func EventWindow[T any](req Request, page Page[T]) Window {
	var w Window
	if req.Before != nil {
		t := req.Before.Time
		w.Before = &t
	}
	if page.Next != nil {
		t := page.Next.Time
		w.After = &t
	}
	return w
}
