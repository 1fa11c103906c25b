// Package taxonomy defines the fixed six-level cognitive taxonomy used to
// classify demonstrated understanding. The levels are totally ordered by
// cognitive complexity and immutable; everything else in the engine builds on
// this ordering.
package taxonomy

import (
	"errors"
	"fmt"
)

// Level represents one of the six ordered cognitive levels.
// The zero value is LevelRemember, the lowest level.
type Level int

const (
	// LevelRemember - recall of facts and basic concepts.
	LevelRemember Level = iota
	// LevelUnderstand - explanation of ideas or concepts.
	LevelUnderstand
	// LevelApply - use of information in new situations.
	LevelApply
	// LevelAnalyze - drawing connections among ideas.
	LevelAnalyze
	// LevelEvaluate - justifying a stand or decision.
	LevelEvaluate
	// LevelCreate - producing new or original work.
	LevelCreate
)

// levelNames maps levels to their canonical lowercase names, which is also
// the wire/storage representation.
var levelNames = [...]string{
	LevelRemember:   "remember",
	LevelUnderstand: "understand",
	LevelApply:      "apply",
	LevelAnalyze:    "analyze",
	LevelEvaluate:   "evaluate",
	LevelCreate:     "create",
}

// ErrUnknownLevel is returned when parsing an unrecognized level name.
var ErrUnknownLevel = errors.New("unknown taxonomy level")

// Levels returns all levels in ascending order of cognitive complexity.
func Levels() []Level {
	return []Level{
		LevelRemember,
		LevelUnderstand,
		LevelApply,
		LevelAnalyze,
		LevelEvaluate,
		LevelCreate,
	}
}

// Count is the number of taxonomy levels.
const Count = 6

// Lowest returns the lowest level in the taxonomy.
func Lowest() Level {
	return LevelRemember
}

// Highest returns the highest level in the taxonomy.
func Highest() Level {
	return LevelCreate
}

// IsValid reports whether the level is one of the six defined levels.
func (l Level) IsValid() bool {
	return l >= LevelRemember && l <= LevelCreate
}

// Index returns the zero-based position of the level in the ordering.
func (l Level) Index() int {
	return int(l)
}

// AtOrAbove returns the level at the given ordering index, clamped to the
// valid range. Used to translate threshold indexes back into levels.
func AtOrAbove(index int) Level {
	if index < 0 {
		return LevelRemember
	}
	if index >= Count {
		return LevelCreate
	}
	return Level(index)
}

// Above reports whether l is strictly above other in the ordering.
func (l Level) Above(other Level) bool {
	return l > other
}

// String returns the canonical lowercase name of the level.
func (l Level) String() string {
	if !l.IsValid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Parse converts a canonical level name into a Level.
func Parse(name string) (Level, error) {
	for l, n := range levelNames {
		if n == name {
			return Level(l), nil
		}
	}
	return LevelRemember, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
