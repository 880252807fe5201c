package ustar

import "errors"

// Sentinel errors, one per error kind this package returns. Detail is
// attached with fmt.Errorf("%w: ...", <sentinel>) so callers can errors.Is
// against these while still getting a message that names the offending
// field or state.
var (
	ErrInvalidHeader      = errors.New("ustar: invalid header")
	ErrBlockSize          = errors.New("ustar: invalid block size")
	ErrInvalidStat        = errors.New("ustar: invalid stat")
	ErrInvalidFileName    = errors.New("ustar: invalid file name")
	ErrInvalidState       = errors.New("ustar: invalid state")
	ErrEndOfArchive       = errors.New("ustar: end of archive")
	ErrUndefinedBehaviour = errors.New("ustar: undefined behaviour")
)
