package group

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/user"
)

// AttrLearningPath is the only user attribute rules constrain.
const AttrLearningPath = "learning_path"

// Rule operators
const (
	OpGTE = ">="
	OpLTE = "<="
	OpEQ  = "="
)

var Operators = []string{OpGTE, OpLTE, OpEQ}

func IsOperator(op string) bool {
	for _, o := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// Rule constrains how many members with a given attribute value a team holds.
type Rule struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batch_id"`
	UseCaseID  string    `json:"use_case_ref,omitempty"`
	Attribute  string    `json:"user_attribute"`
	Value      string    `json:"attribute_value"`
	Operator   string    `json:"operator"`
	Count      int       `json:"value"`
	IsActive   bool      `json:"is_active"`
	IsRequired bool      `json:"is_required"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %q %s %d", r.Attribute, r.Value, r.Operator, r.Count)
}

type NewRule struct {
	Attribute string `json:"user_attribute" validate:"required,oneof=learning_path"`
	Value     string `json:"attribute_value" validate:"required,learningpath"`
	Operator  string `json:"operator" validate:"required,ruleop"`
	Count     int    `json:"value" validate:"gte=0"`
}

func (nr *NewRule) clean() {
	nr.Attribute = core.CleanString(nr.Attribute, true /* lower */)
	if nr.Attribute == "" {
		nr.Attribute = AttrLearningPath
	}
	nr.Value = user.NormalizeLearningPath(core.CleanString(nr.Value))
	nr.Operator = core.CleanString(nr.Operator)
}

func (nr NewRule) rule() Rule {
	return Rule{Attribute: nr.Attribute, Value: nr.Value, Operator: nr.Operator, Count: nr.Count}
}

// SetRules replaces the active rules of a batch, or of one of its use cases when UseCaseID is set.
type SetRules struct {
	BatchID   string    `json:"batch_id" validate:"required,notblank"`
	UseCaseID string    `json:"use_case_id" validate:"omitempty,uuid"`
	Rules     []NewRule `json:"rules" validate:"required,min=1,dive"`
}

func (sr *SetRules) Validate(validate *validator.Validate) error {
	sr.BatchID = core.CleanString(sr.BatchID)
	sr.UseCaseID = core.CleanString(sr.UseCaseID)
	for i := range sr.Rules {
		sr.Rules[i].clean()
	}
	return validate.Struct(sr)
}

// RuleFilter selects active rules: the rules of UseCaseID when set (whatever their batch),
// otherwise the batch wide rules of BatchID.
type RuleFilter struct {
	BatchID   string
	UseCaseID string
}

// CheckComposition is an admin dry-run of the composition validator.
// Rules default to the active rules of BatchID (and UseCaseID) when none are given.
type CheckComposition struct {
	MemberSourceIDs []string  `json:"member_source_ids" validate:"required,min=1,dive,required"`
	BatchID         string    `json:"batch_id" validate:"required_without=Rules"`
	UseCaseID       string    `json:"use_case_id" validate:"omitempty,uuid"`
	Rules           []NewRule `json:"rules" validate:"omitempty,dive"`
}

func (cc *CheckComposition) Validate(validate *validator.Validate) error {
	for i, id := range cc.MemberSourceIDs {
		cc.MemberSourceIDs[i] = core.CleanString(id)
	}
	cc.BatchID = core.CleanString(cc.BatchID)
	cc.UseCaseID = core.CleanString(cc.UseCaseID)
	for i := range cc.Rules {
		cc.Rules[i].clean()
	}
	return validate.Struct(cc)
}

type CompositionResult struct {
	Valid       bool           `json:"valid"`
	Composition map[string]int `json:"composition"`
	Violations  []Violation    `json:"violations"`
}
