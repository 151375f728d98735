package alloc

import "errors"

var (
	// ErrTooLarge indicates a request above the dedicated-mapping cap.
	ErrTooLarge = errors.New("alloc: allocation too large")

	// ErrBadPointer indicates a free of a pointer this allocator never
	// handed out.
	ErrBadPointer = errors.New("alloc: bad pointer")

	// ErrMapFail indicates the backing mapping could not be created.
	ErrMapFail = errors.New("alloc: backing map failed")

	// ErrClosed indicates use of an allocator or arena after Close.
	ErrClosed = errors.New("alloc: closed")
)
