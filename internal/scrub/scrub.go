// Package scrub parses scrub positions: the alignment rule pairing an anchor
// on the trigger element with an anchor on the viewport, written as two words
// such as "top center" (element top meets viewport center).
package scrub

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPosition is wrapped by every parse failure.
var ErrInvalidPosition = errors.New("scrub: invalid position")

// Anchor is an edge or the midpoint of a box.
type Anchor int

const (
	Top Anchor = iota
	Center
	Bottom
)

var anchorNames = map[string]Anchor{
	"top":    Top,
	"center": Center,
	"bottom": Bottom,
}

func (a Anchor) String() string {
	switch a {
	case Top:
		return "top"
	case Center:
		return "center"
	case Bottom:
		return "bottom"
	default:
		return fmt.Sprintf("Anchor(%d)", int(a))
	}
}

// Offset resolves the anchor inside a span starting at start with the given length.
func (a Anchor) Offset(start, length float64) float64 {
	switch a {
	case Center:
		return start + length/2
	case Bottom:
		return start + length
	default:
		return start
	}
}

// Position is an immutable (element anchor, viewport anchor) pair.
type Position struct {
	element  Anchor
	viewport Anchor
}

// NewPosition builds a position from already-resolved anchors.
func NewPosition(element, viewport Anchor) Position {
	return Position{element: element, viewport: viewport}
}

// Element returns the anchor on the trigger element.
func (p Position) Element() Anchor { return p.element }

// Viewport returns the anchor on the viewport.
func (p Position) Viewport() Anchor { return p.viewport }

func (p Position) String() string {
	return p.element.String() + " " + p.viewport.String()
}

// Parse reads a position: exactly two whitespace-separated, case-insensitive
// words, each one of top, center or bottom.
func Parse(s string) (Position, error) {
	words := strings.Fields(s)
	if len(words) != 2 {
		return Position{}, fmt.Errorf("%w: %q: want two words, got %d", ErrInvalidPosition, s, len(words))
	}

	element, ok := anchorNames[strings.ToLower(words[0])]
	if !ok {
		return Position{}, fmt.Errorf("%w: %q: unknown element anchor %q", ErrInvalidPosition, s, words[0])
	}
	viewport, ok := anchorNames[strings.ToLower(words[1])]
	if !ok {
		return Position{}, fmt.Errorf("%w: %q: unknown viewport anchor %q", ErrInvalidPosition, s, words[1])
	}

	return Position{element: element, viewport: viewport}, nil
}

// MustParse is like Parse but panics on error. Intended for literals.
func MustParse(s string) Position {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Valid reports whether s parses.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
