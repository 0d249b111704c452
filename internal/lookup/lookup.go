// Package lookup defines lookup requests, their classification, and the
// contract for the external data services that answer them.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of identifier a lookup is for.
type Kind string

// Supported lookup kinds.
const (
	KindPhone      Kind = "phone"
	KindNationalID Kind = "national_id"
)

// Expected digit counts per kind.
const (
	PhoneDigits      = 10
	NationalIDDigits = 12
)

// Validation and upstream errors.
var (
	ErrNonNumeric          = errors.New("lookup: input must contain only digits")
	ErrWrongLength         = errors.New("lookup: input has the wrong number of digits")
	ErrUpstreamUnavailable = errors.New("lookup: upstream service unavailable")
)

// ValidationError reports why an input was rejected during classification.
type ValidationError struct {
	Input string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Input)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Request is a single lookup, alive only while it is processed.
type Request struct {
	ID          string
	RequesterID int64
	Kind        Kind
	Input       string
	SubmittedAt time.Time
}

// NewRequest builds a request with a fresh ID.
func NewRequest(requesterID int64, kind Kind, input string, now time.Time) Request {
	return Request{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		Kind:        kind,
		Input:       input,
		SubmittedAt: now,
	}
}

// Result is the outcome of one upstream call. Payload is the raw decoded
// JSON document and is only set when Succeeded is true.
type Result struct {
	Kind      Kind
	Succeeded bool
	Payload   json.RawMessage
}

// Gateway fetches records from the external data services. Implementations
// make exactly one bounded attempt per call and never return a partial payload.
type Gateway interface {
	FetchPhone(ctx context.Context, number string) (Result, error)
	FetchNationalID(ctx context.Context, id string) (Result, error)
}

// Fetch dispatches to the Gateway method for kind.
func Fetch(ctx context.Context, gw Gateway, kind Kind, input string) (Result, error) {
	switch kind {
	case KindPhone:
		return gw.FetchPhone(ctx, input)
	case KindNationalID:
		return gw.FetchNationalID(ctx, input)
	default:
		return Result{Kind: kind}, fmt.Errorf("lookup: unsupported kind %q", kind)
	}
}

// Classify trims raw and decides which lookup it denotes. Anything that is
// not purely digits, or has a digit count other than PhoneDigits or
// NationalIDDigits, yields a *ValidationError.
func Classify(raw string) (Kind, string, error) {
	input := strings.TrimSpace(raw)
	if input == "" || !isDigits(input) {
		return "", input, &ValidationError{Input: input, Err: ErrNonNumeric}
	}
	switch len(input) {
	case PhoneDigits:
		return KindPhone, input, nil
	case NationalIDDigits:
		return KindNationalID, input, nil
	default:
		return "", input, &ValidationError{Input: input, Err: ErrWrongLength}
	}
}

// ValidateNationalID checks an explicitly requested national-ID lookup.
func ValidateNationalID(raw string) (string, error) {
	kind, input, err := Classify(raw)
	if err != nil {
		return input, err
	}
	if kind != KindNationalID {
		return input, &ValidationError{Input: input, Err: ErrWrongLength}
	}
	return input, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
