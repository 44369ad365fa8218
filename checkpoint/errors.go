package checkpoint

import (
	"errors"
	"fmt"
)

// ErrCheckpointNotFound signals that no committed checkpoint exists for the
// queried epoch. It marks a hash-chain gap and is distinguishable from plain
// query failures so the scheduler can react to it.
var ErrCheckpointNotFound = errors.New("no committed checkpoint for epoch")

// Submission stages, used to annotate failures
const (
	StageTemplate = "template"
	StageProof    = "proof"
	StagePrevHash = "prev-hash"
	StageSubmit   = "submit"
)

// SubmitError is a failed checkpoint submission, annotated with the stage
// that failed
type SubmitError struct {
	Stage string
	Epoch int64
	Err   error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("checkpoint submission for epoch %d failed at stage %s: %v", e.Epoch, e.Stage, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// ConversionError is a failed mapping between the native model and a runtime
// representation, annotated with the field that could not be converted
type ConversionError struct {
	Field string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s: %v", e.Field, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
