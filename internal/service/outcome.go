package service

import (
	"github.com/sakif/account-portal/internal/apperror"
)

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Redirect
	Failure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Redirect:
		return "redirect"
	case Failure:
		return "failure"
	}
	return "unknown"
}

// Outcome is the result of a pipeline step the caller has to act on.
//
// Any cookie write belonging to the step has already happened by the time an
// Outcome is returned; the caller only renders it.
//
//   - Success  → render an empty success result
//   - Redirect → send the client to Target
//   - Failure  → show Errors; Cause classifies them with an apperror sentinel
type Outcome struct {
	Kind   OutcomeKind
	Target string
	Errors []string
	Cause  error
}

func succeeded() Outcome {
	return Outcome{Kind: Success}
}

func redirectTo(target string) Outcome {
	return Outcome{Kind: Redirect, Target: target}
}

func failed(cause error, messages ...string) Outcome {
	return Outcome{Kind: Failure, Errors: messages, Cause: cause}
}

// structuralFailure is the single-message result for a malformed form.
func structuralFailure() Outcome {
	return failed(apperror.ErrValidation, MsgFormInvalid)
}
