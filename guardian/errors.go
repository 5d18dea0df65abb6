package guardian

import "errors"

// ErrInvariantViolation is raised by Reconfigure when folding a proposal
// back into the view would make a node counter negative or leave a
// partition's membership invariant broken. Per spec.md §7 this is a bug,
// not a transient condition: the driver logs it and aborts rather than
// risk corrupting persisted state.
var ErrInvariantViolation = errors.New("guardian: reconfigure invariant violation")

// ErrUnknownPartition is returned when a caller names a GPID the view has
// never heard of.
var ErrUnknownPartition = errors.New("guardian: unknown partition")
