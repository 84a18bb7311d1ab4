package engine

import (
	"errors"
	"fmt"
)

var ErrNotArmed = errors.New("no timeline armed")

type LoadOp string

const (
	OpBank LoadOp = "bank"
	OpFile LoadOp = "file"
)

// LoadError reports a failed instrument bank or file load.
type LoadError struct {
	Op  LoadOp
	URI string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("could not load %s %q: %v", e.Op, e.URI, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
