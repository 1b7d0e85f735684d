package enrichment

// Outcome is the result of one side-channel lookup. A defaulted outcome
// carries the documented default value and the reason the lookup did not
// produce a reading.
type Outcome[T any] struct {
	Value     T
	Defaulted bool
	Reason    string
}

// Found wraps a successful reading.
func Found[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Default wraps a default value with the reason it was used.
func Default[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Value: v, Defaulted: true, Reason: reason}
}

const (
	ReasonDisabled = "disabled"
	ReasonAbsent   = "no reading"
	ReasonNoSample = "no sample in window"
)
