package clocksync

// Decision is the safety valve verdict for one pass.
type Decision int

const (
	Proceed Decision = iota
	Abort
)

func (d Decision) String() string {
	if d == Abort {
		return "abort"
	}
	return "proceed"
}

// DefaultSafetyCeiling bounds how many records a single pass may upload.
const DefaultSafetyCeiling = 1000

// CheckSafety aborts when pending exceeds ceiling. A ceiling of zero or less disables the check.
func CheckSafety(pending, ceiling int) Decision {
	if ceiling > 0 && pending > ceiling {
		return Abort
	}
	return Proceed
}
