package session

import (
	"fmt"
	"time"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/document"
)

// State is the position of a session in the signing flow.
type State int

const (
	Loading State = iota
	Loaded
	StaffEmbedded
	AwaitingRecipientDraw
	// RecipientEmbedded is the ready-to-submit state.
	RecipientEmbedded
	Submitted
	Failed
)

var stateNames = [...]string{
	Loading:               "loading",
	Loaded:                "loaded",
	StaffEmbedded:         "staff_embedded",
	AwaitingRecipientDraw: "awaiting_recipient_draw",
	RecipientEmbedded:     "recipient_embedded",
	Submitted:             "submitted",
	Failed:                "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// FailureKind classifies a failed session.
type FailureKind int

const (
	LoadFailure FailureKind = iota + 1
	CompositeFailure
	SubmitFailure
)

func (k FailureKind) String() string {
	switch k {
	case LoadFailure:
		return "LoadError"
	case CompositeFailure:
		return "CompositeError"
	case SubmitFailure:
		return "SubmitError"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Failure describes why a session is in the Failed state. Every failure
// keeps the last good document so the session can resume from it.
type Failure struct {
	Kind FailureKind
	Err  error
	// Stage is the state the session was in when the failing action ran.
	Stage State
	// Role is set for composite failures.
	Role common.Role
	// Document is the last good document, nil for load failures.
	Document *document.Document
}

// Transition is one entry of a session's history.
type Transition struct {
	From   State
	To     State
	Role   common.Role
	Digest string
	Err    error
	At     time.Time
}
