package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage indicates persisted state could not be written (or read
	// beyond recovery). Save-side failures are fatal to the pipeline;
	// load-side failures are downgraded to an absent baseline by the stores.
	ErrStorage = errors.New("memory storage failure")
)

// OverflowError reports a compression run that could not meet the size
// ceiling even after trimming droppable entries.
type OverflowError struct {
	Size    int
	Ceiling int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("compressed memory is %d bytes, exceeds ceiling of %d bytes even after trimming", e.Size, e.Ceiling)
}
