package domain

// SolveStatus is the terminal status reported by an optimization model.
type SolveStatus int

// Terminal statuses. Only StatusOptimal yields a result.
const (
	StatusUnknown SolveStatus = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
	StatusTimeLimit
	StatusIterationLimit
	StatusNumericalError
)

var statusNames = map[SolveStatus]string{
	StatusUnknown:        "unknown",
	StatusOptimal:        "optimal",
	StatusInfeasible:     "infeasible",
	StatusUnbounded:      "unbounded",
	StatusTimeLimit:      "timelimit",
	StatusIterationLimit: "iterationlimit",
	StatusNumericalError: "numerical_error",
}

// String returns the lower-case status name used in logs and metric labels.
func (s SolveStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsOptimal reports whether the status carries a usable solution.
func (s SolveStatus) IsOptimal() bool { return s == StatusOptimal }

// MarshalText encodes the status by name.
func (s SolveStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a status name; unrecognized names map to StatusUnknown.
func (s *SolveStatus) UnmarshalText(text []byte) error {
	*s = StatusUnknown
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			break
		}
	}
	return nil
}
