package models

import "fmt"

// Label is the tri-state anomaly label. The numeric values are the vote
// encoding used by the vote matrix.
type Label int8

const (
	NotAnomalous Label = -1
	Abstain      Label = 0
	Anomalous    Label = 1
)

// IsDefinite reports whether the label is Anomalous or NotAnomalous
func (l Label) IsDefinite() bool {
	return l == Anomalous || l == NotAnomalous
}

// Float returns the vote value of the label
func (l Label) Float() float64 { return float64(l) }

func (l Label) String() string {
	switch l {
	case Anomalous:
		return "anomalous"
	case NotAnomalous:
		return "not_anomalous"
	case Abstain:
		return "abstain"
	}
	return fmt.Sprintf("Label(%d)", int8(l))
}

// LabelFromBool maps true to Anomalous and false to NotAnomalous
func LabelFromBool(anomalous bool) Label {
	if anomalous {
		return Anomalous
	}
	return NotAnomalous
}

// LabelFromVote maps a vote value back to a label; 0 is Abstain
func LabelFromVote(v float64) Label {
	switch {
	case v > 0:
		return Anomalous
	case v < 0:
		return NotAnomalous
	}
	return Abstain
}
