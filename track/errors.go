package track

import "errors"

var (
	// ErrUnknownLevel reports a level name that does not parse.
	ErrUnknownLevel = errors.New("track: unknown tracking level")

	// ErrLevelTransition reports a level change the state machine forbids.
	ErrLevelTransition = errors.New("track: invalid level transition")
)
