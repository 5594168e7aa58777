package main

import "fmt"

// ErrConnection means the client could not be built or the deployment did
// not answer the initial ping.
type ErrConnection struct {
	URI string
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Sprintf("connect %s: %v", redactURI(e.URI), e.Err)
}

func (e ErrConnection) Unwrap() error { return e.Err }

// ErrOperation wraps the failure of one step. Steps after it never run.
type ErrOperation struct {
	Step string
	Err  error
}

func (e ErrOperation) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }

func (e ErrOperation) Unwrap() error { return e.Err }
