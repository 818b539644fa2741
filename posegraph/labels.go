package posegraph

import "strings"

// Severity is the tier of a detected discrepancy
type Severity uint8

const (
	SeverityLow Severity = iota
	SeverityMid
	SeverityHigh
)

var allSeverities = [...]Severity{SeverityLow, SeverityMid, SeverityHigh}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMid:
		return "MID"
	case SeverityHigh:
		return "HIGH"
	}
	return "UNKNOWN"
}

// LabelSet is a bitmask of severities. The zero value is the empty set.
type LabelSet uint8

// NewLabelSet returns a set holding the given severities
func NewLabelSet(severities ...Severity) LabelSet {
	var l LabelSet
	for _, s := range severities {
		l = l.Add(s)
	}
	return l
}

// Add returns l with s set
func (l LabelSet) Add(s Severity) LabelSet {
	return l | 1<<s
}

// Has reports whether s is set
func (l LabelSet) Has(s Severity) bool {
	return l&(1<<s) != 0
}

// Union returns the bitwise union of both sets
func (l LabelSet) Union(o LabelSet) LabelSet {
	return l | o
}

// IsEmpty reports whether no severity is set
func (l LabelSet) IsEmpty() bool {
	return l == 0
}

// Contains reports whether every bit of o is also set in l
func (l LabelSet) Contains(o LabelSet) bool {
	return l&o == o
}

// Severities lists the set bits in ascending order
func (l LabelSet) Severities() []Severity {
	var out []Severity
	for _, s := range allSeverities {
		if l.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

func (l LabelSet) String() string {
	names := make([]string, 0, 3)
	for _, s := range l.Severities() {
		names = append(names, s.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

// MergeLabels combines the labels of the current cycle with the history of
// a node. The result never has fewer bits than either input.
func MergeLabels(current, history LabelSet) LabelSet {
	return current.Union(history)
}
