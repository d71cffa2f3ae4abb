package carwash

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// OpenState is the meaning of a carwash's stored status text.
type OpenState int

const (
	StateUnknown OpenState = iota
	StateOpen
	StateClosed
)

func (s OpenState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Canonical tokens written by every code path that sets a status.
const (
	CanonicalOpen   = "Açık"
	CanonicalClosed = "Kapalı"
)

var ErrUnknownToken = errors.New("unknown status token")

// synonyms lists every encoding found in stored rows. Entries are folded at init, so the
// localized spelling and its romanized form collapse to the same key.
var synonyms = map[OpenState][]string{
	StateOpen:   {CanonicalOpen, "acik", "open", "active", "1"},
	StateClosed: {CanonicalClosed, "kapali", "closed", "inactive", "0"},
}

var (
	openTokens   = map[string]struct{}{}
	closedTokens = map[string]struct{}{}
)

func init() {
	for _, s := range synonyms[StateOpen] {
		openTokens[fold(s)] = struct{}{}
	}
	for _, s := range synonyms[StateClosed] {
		closedTokens[fold(s)] = struct{}{}
	}
}

// Normalize maps raw status text to an OpenState. Closed wins when a value matches both sets.
func Normalize(raw string) OpenState {
	key := fold(raw)
	if key == "" {
		return StateUnknown
	}
	if _, ok := closedTokens[key]; ok {
		return StateClosed
	}
	if _, ok := openTokens[key]; ok {
		return StateOpen
	}
	return StateUnknown
}

// Visible reports whether a carwash with this status accepts bookings and may be listed to
// customers. Empty and unrecognised values are not visible.
func Visible(status string) bool {
	return Normalize(status) == StateOpen
}

// ParseToggle interprets an owner's open/closed toggle input.
func ParseToggle(raw string) (OpenState, error) {
	st := Normalize(raw)
	if st == StateUnknown {
		return StateUnknown, ErrUnknownToken
	}
	return st, nil
}

// Canonical returns the stored token and is_active flag for a known state.
func Canonical(st OpenState) (string, bool) {
	if st == StateOpen {
		return CanonicalOpen, true
	}
	return CanonicalClosed, false
}

// fold trims and case-folds s, then strips diacritics. Turkish dotless ı has no decomposition
// and is mapped to i explicitly; dotted İ folds to i plus a combining dot which is stripped.
func fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = cases.Fold().String(s)
	s = strings.ReplaceAll(s, "ı", "i")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	// İ decomposes to I plus a combining dot when folding leaves it untouched.
	return strings.ToLower(out)
}
