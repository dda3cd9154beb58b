package points

import "errors"

// Outcome classifies a single fetch attempt.
type Outcome string

// Fetch outcomes reported by a Session.
const (
	OutcomeOK             Outcome = "ok"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeMissingElement Outcome = "missing_element"
	OutcomeSessionFault   Outcome = "session_fault"
	OutcomeUnexpected     Outcome = "unexpected"
)

// Extraction and persistence error classes.
var (
	ErrExtractionTimeout        = errors.New("extraction timeout")
	ErrExtractionMissingElement = errors.New("extraction missing element")
	ErrExtractionSessionFault   = errors.New("extraction session fault")
	ErrExtractionUnexpected     = errors.New("extraction unexpected fault")
	ErrPersistence              = errors.New("persistence failure")
	ErrChannel                  = errors.New("alert channel failure")
)

// FetchResult is the tagged result of Session.Fetch. Point is only meaningful
// when Outcome is OutcomeOK.
type FetchResult struct {
	Outcome Outcome
	Point   PricePoint
	Detail  string
}

// Found builds a successful result.
func Found(point PricePoint) FetchResult {
	return FetchResult{Outcome: OutcomeOK, Point: point}
}

// Absent builds a failed result with a short reason.
func Absent(outcome Outcome, detail string) FetchResult {
	return FetchResult{Outcome: outcome, Detail: detail}
}

// OK reports whether a value was read.
func (r FetchResult) OK() bool {
	return r.Outcome == OutcomeOK
}

// Err maps the outcome to its error class; nil for OutcomeOK.
func (r FetchResult) Err() error {
	switch r.Outcome {
	case OutcomeOK:
		return nil
	case OutcomeTimeout:
		return ErrExtractionTimeout
	case OutcomeMissingElement:
		return ErrExtractionMissingElement
	case OutcomeSessionFault:
		return ErrExtractionSessionFault
	default:
		return ErrExtractionUnexpected
	}
}

// SweepFault is any fault that aborts a full sweep. It is the only error class
// that causes the browser session to be recreated.
type SweepFault struct {
	Cause error
}

func (f *SweepFault) Error() string {
	if f.Cause == nil {
		return "sweep fault"
	}
	return "sweep fault: " + f.Cause.Error()
}

func (f *SweepFault) Unwrap() error {
	return f.Cause
}
