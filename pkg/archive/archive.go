// Package archive persists completed interviews. The engine hands it the
// recap artifact plus the raw transcript once per completed interview; a
// failure here is surfaced distinctly to the caller but never blocks the
// recap from reaching the subject.
package archive

import (
	"context"
	"regexp"
	"time"

	"github.com/go-go-golems/pitlane/pkg/session"
)

// Record is everything worth keeping from a finished interview.
type Record struct {
	SessionID string
	Subject   string // "unknown" when the subject never introduced themselves
	Title     string
	Recap     string
	Turns     []session.Turn
	CreatedAt time.Time
}

// Store persists a record and returns an opaque reference to it (a file
// name, a row id).
type Store interface {
	Save(ctx context.Context, rec Record) (string, error)
}

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SafeName collapses a subject name into a filesystem- and key-safe token.
func SafeName(name string) string {
	s := unsafeNameRe.ReplaceAllString(name, "_")
	if s == "" || s == "_" {
		return "unknown"
	}
	return s
}
