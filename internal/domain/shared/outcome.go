package shared

// Outcome is the result of handling one changed-record event. An ignored event
// is a benign no-op, not a failure.
type Outcome struct {
	Processed bool
	Reason    string
}

// Processed returns a successful outcome
func Processed(reason string) Outcome {
	return Outcome{Processed: true, Reason: reason}
}

// Ignored returns a no-op outcome
func Ignored(reason string) Outcome {
	return Outcome{Reason: reason}
}
