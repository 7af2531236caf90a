package segment

import "fmt"

// Label is one of the four emotion classes the classifier can produce
type Label string

const (
	LabelSad      Label = "sad"
	LabelAngry    Label = "angry"
	LabelNeutral  Label = "neutral"
	LabelPositive Label = "positive"
)

// Labels lists the taxonomy in classifier output order. The order matters:
// index i of the classifier's probability vector corresponds to Labels[i].
var Labels = []Label{LabelSad, LabelAngry, LabelNeutral, LabelPositive}

// FallbackScore is the confidence reported when classification is skipped
const FallbackScore = 0.5

// Valid reports whether the label belongs to the fixed taxonomy
func (l Label) Valid() bool {
	switch l {
	case LabelSad, LabelAngry, LabelNeutral, LabelPositive:
		return true
	}
	return false
}

// ParseLabel converts a string into a Label, rejecting anything outside the taxonomy
func ParseLabel(s string) (Label, error) {
	l := Label(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown emotion label %q", s)
	}
	return l, nil
}
