package event

import "errors"

// Kind identifies why an event was rejected.
type Kind string

const (
	NoProfileSelected Kind = "NoProfileSelected"
	MissingDateTime   Kind = "MissingDateTime"
	MalformedDateTime Kind = "MalformedDateTime"
	EndBeforeStart    Kind = "EndBeforeStart"
	EndInPast         Kind = "EndInPast"
)

var messages = map[Kind]string{
	NoProfileSelected: "Please select at least one profile",
	MissingDateTime:   "Please fill all date and time fields",
	MalformedDateTime: "Please enter valid dates and times",
	EndBeforeStart:    "End date/time must be after start date/time",
	EndInPast:         "End date/time cannot be in the past",
}

// ValidationError is a user-correctable problem with the form input. Its
// message is meant to be shown to the user as is.
type ValidationError struct {
	Kind Kind
}

// NewValidationError returns a ValidationError of kind k.
func NewValidationError(k Kind) *ValidationError {
	return &ValidationError{Kind: k}
}

func (e *ValidationError) Error() string {
	if msg, ok := messages[e.Kind]; ok {
		return msg
	}
	return string(e.Kind)
}

// KindOf reports the validation kind of err, if it is a ValidationError.
func KindOf(err error) (Kind, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return "", false
}
