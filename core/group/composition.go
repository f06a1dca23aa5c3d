package group

import (
	"fmt"

	"github.com/trezcool/capstone/core/user"
)

// UnknownPath is the bucket members without a learning path are counted under.
const UnknownPath = "unknown"

// Violation is a rule a member set does not satisfy.
type Violation struct {
	Rule  Rule `json:"rule"`
	Count int  `json:"count"` // members holding Rule.Value
}

func (v *Violation) Error() string {
	return fmt.Sprintf("team composition does not satisfy %s: %s must be %s %d, got %d",
		v.Rule.Attribute, v.Rule.Value, v.Rule.Operator, v.Rule.Count, v.Count)
}

// Frequencies counts members per learning path.
func Frequencies(members []user.User) map[string]int {
	freqs := make(map[string]int)
	for _, m := range members {
		path := m.LearningPath
		if path == "" {
			path = UnknownPath
		}
		freqs[path]++
	}
	return freqs
}

// satisfies compares count against the rule. Unknown operators never match.
func satisfies(r Rule, count int) bool {
	switch r.Operator {
	case OpGTE:
		return count >= r.Count
	case OpLTE:
		return count <= r.Count
	case OpEQ:
		return count == r.Count
	default:
		return false
	}
}

// ValidateComposition checks members against rules in order and returns the first *Violation, or nil.
// Rules on attributes other than learning_path are ignored.
func ValidateComposition(members []user.User, rules []Rule) error {
	freqs := Frequencies(members)
	for _, r := range rules {
		if r.Attribute != AttrLearningPath {
			continue
		}
		if count := freqs[r.Value]; !satisfies(r, count) {
			return &Violation{Rule: r, Count: count}
		}
	}
	return nil
}

// ValidateCompositionAll is ValidateComposition without short-circuit: it returns every violation, in rule order.
func ValidateCompositionAll(members []user.User, rules []Rule) []Violation {
	freqs := Frequencies(members)
	violations := make([]Violation, 0)
	for _, r := range rules {
		if r.Attribute != AttrLearningPath {
			continue
		}
		if count := freqs[r.Value]; !satisfies(r, count) {
			violations = append(violations, Violation{Rule: r, Count: count})
		}
	}
	return violations
}
