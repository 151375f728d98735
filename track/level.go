package track

import (
	"fmt"
	"strings"
)

// Level is the amount of allocation tracking the process performs. Levels
// are totally ordered by cost.
type Level uint8

const (
	// LevelOff disables tracking entirely. A process that starts off stays
	// off; no transition enters or leaves it.
	LevelOff Level = iota

	// LevelMinimal still reserves header space in every tracked block but
	// performs no accounting. It is the floor tracking can wind down to.
	LevelMinimal

	// LevelSummary maintains per-category counters and totals.
	LevelSummary

	// LevelDetail additionally attributes every allocation to its call site.
	LevelDetail
)

var levelNames = [...]string{
	LevelOff:     "off",
	LevelMinimal: "minimal",
	LevelSummary: "summary",
	LevelDetail:  "detail",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("Level(%d)", uint8(l))
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l <= LevelDetail
}

// ParseLevel converts a level name to its Level. Matching is
// case-insensitive.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// ValidTransition reports whether tracking may move from one level to
// another. Tracking only ever steps down: detail to summary or minimal, and
// summary to minimal. Off is never entered or left, and minimal is final.
func ValidTransition(from, to Level) bool {
	if from == LevelOff || to == LevelOff {
		return false
	}
	return from > to
}
