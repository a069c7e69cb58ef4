package invoice

import "errors"

// ErrInvalidState rejects issuance for carts that are not closed and paid.
// No external call is made.
var ErrInvalidState = errors.New("invoice requires a closed and paid cart")

// Step names the saga step an invoice failure originated in.
type Step string

const (
	StepCreate   Step = "creation"
	StepFinalize Step = "finalization"
	StepDownload Step = "download"
	StepUpload   Step = "upload"
	StepRecord   Step = "record"
)

// GenerationError wraps a failure of one issuance step. Payment and cart
// state are final by then and are never unwound; issuance stays retryable.
type GenerationError struct {
	Step Step
	Err  error
}

func (e *GenerationError) Error() string {
	return "invoice " + string(e.Step) + " failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }
