package resolver

import (
	"fmt"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
)

// Arbitration thresholds.
const (
	DecisiveConfidence = 0.8
	UsableConfidence   = 0.5
)

// Arbitrate picks the final outcome from the optional fast-path and
// fallback outcomes:
//  1. a fast path above DecisiveConfidence wins;
//  2. otherwise the lowest latency among outcomes at or above
//     UsableConfidence wins, ties going to the fast path;
//  3. otherwise whichever exists, fast path first;
//  4. with neither, a resolution error.
//
// It returns the winner and a one-line reason.
func Arbitrate(fast, fallback *model.ResolutionOutcome) (model.ResolutionOutcome, string, error) {
	if fast != nil && fast.Confidence() > DecisiveConfidence {
		return *fast, fmt.Sprintf("fast path confidence %.2f above %.2f", fast.Confidence(), DecisiveConfidence), nil
	}

	// fast path is appended first so it wins latency ties
	var usable []*model.ResolutionOutcome
	for _, o := range []*model.ResolutionOutcome{fast, fallback} {
		if o != nil && o.Confidence() >= UsableConfidence {
			usable = append(usable, o)
		}
	}
	if len(usable) > 0 {
		best := usable[0]
		for _, o := range usable[1:] {
			if o.Latency() < best.Latency() {
				best = o
			}
		}
		return *best, fmt.Sprintf("%s has lowest latency %s among usable outcomes", best.Source(), best.Latency()), nil
	}

	if fast != nil {
		return *fast, "no usable outcome, keeping fast path", nil
	}
	if fallback != nil {
		return *fallback, "no usable outcome, keeping fallback", nil
	}
	return model.ResolutionOutcome{}, "", model.ResolutionErrorf("no resolution strategy produced an outcome")
}
