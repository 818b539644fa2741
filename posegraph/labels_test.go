package posegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelSet_Basics(t *testing.T) {
	var empty LabelSet
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "{}", empty.String())

	l := NewLabelSet(SeverityHigh, SeverityLow)
	assert.True(t, l.Has(SeverityLow))
	assert.False(t, l.Has(SeverityMid))
	assert.True(t, l.Has(SeverityHigh))
	assert.Equal(t, []Severity{SeverityLow, SeverityHigh}, l.Severities())
	assert.Equal(t, "{LOW,HIGH}", l.String())

	// Adding twice is idempotent
	assert.Equal(t, l, l.Add(SeverityLow))
}

func TestMergeLabels(t *testing.T) {
	tests := []struct {
		name    string
		current LabelSet
		history LabelSet
		want    LabelSet
	}{
		{"both empty", 0, 0, 0},
		{"history only", 0, NewLabelSet(SeverityMid), NewLabelSet(SeverityMid)},
		{"current only", NewLabelSet(SeverityLow), 0, NewLabelSet(SeverityLow)},
		{"union", NewLabelSet(SeverityLow), NewLabelSet(SeverityHigh), NewLabelSet(SeverityLow, SeverityHigh)},
		{"overlap", NewLabelSet(SeverityLow, SeverityMid), NewLabelSet(SeverityMid), NewLabelSet(SeverityLow, SeverityMid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeLabels(tt.current, tt.history)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Contains(tt.current), "merge must keep the current labels")
			assert.True(t, got.Contains(tt.history), "merge must keep the history")
		})
	}
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "LOW", SeverityLow.String())
	assert.Equal(t, "MID", SeverityMid.String())
	assert.Equal(t, "HIGH", SeverityHigh.String())
	assert.Equal(t, "UNKNOWN", Severity(7).String())
}
