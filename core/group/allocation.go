package group

import (
	"fmt"

	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
)

// DefaultTeamSize is used when no positive team size is given.
const DefaultTeamSize = 3

// RandSource is the randomness the allocation engine draws from. *math/rand.Rand satisfies it.
type RandSource interface {
	// Intn returns a non-negative pseudo-random number in [0,n).
	Intn(n int) int
}

// TeamPlan is one team proposed by Allocate.
type TeamPlan struct {
	// Members[0] is the leader: the first member placed in the team, not necessarily the most senior.
	Members []user.User
	// RulePicks is the number of leading Members pulled by lower-bound rules.
	RulePicks int
	UseCase   *program.UseCase
	Notes     []string
}

// Leader returns the first member placed in the team.
func (tp TeamPlan) Leader() user.User {
	return tp.Members[0]
}

type requirement struct {
	value string
	count int
}

// requiredCounts collects the learning_path ">=" rules in rule order.
// A value listed twice keeps its first position and its last count.
func requiredCounts(rules []Rule) []requirement {
	var reqs []requirement
	index := make(map[string]int)
	for _, r := range rules {
		if r.Attribute != AttrLearningPath || r.Operator != OpGTE || r.Value == "" {
			continue
		}
		if i, ok := index[r.Value]; ok {
			reqs[i].count = r.Count
			continue
		}
		index[r.Value] = len(reqs)
		reqs = append(reqs, requirement{value: r.Value, count: r.Count})
	}
	return reqs
}

// Allocate partitions pool into teams of size members (the last one may be smaller).
// Each team first pulls the students required by the ">=" rules, scanning the pool in order,
// then is filled with random picks. "<=" and "=" rules are only reported in the notes.
// pool is not modified.
func Allocate(pool []user.User, rules []Rule, useCases []program.UseCase, size int, rnd RandSource) []TeamPlan {
	if size <= 0 {
		size = DefaultTeamSize
	}
	remaining := make([]user.User, len(pool))
	copy(remaining, pool)
	reqs := requiredCounts(rules)

	var plans []TeamPlan
	for len(remaining) > 0 {
		var plan TeamPlan
		plan.Members, remaining = pullRequired(remaining, reqs, size)
		plan.RulePicks = len(plan.Members)

		for len(plan.Members) < size && len(remaining) > 0 {
			i := rnd.Intn(len(remaining))
			plan.Members = append(plan.Members, remaining[i])
			remaining = append(remaining[:i], remaining[i+1:]...)
		}

		if len(useCases) > 0 {
			uc := useCases[rnd.Intn(len(useCases))]
			plan.UseCase = &uc
		}
		plan.Notes = compositionNotes(plan.Members, rules)
		plans = append(plans, plan)
	}
	return plans
}

// pullRequired moves up to req.count students of each required path from remaining into a new team,
// never exceeding size. Earlier requirements are served first.
func pullRequired(remaining []user.User, reqs []requirement, size int) (team, rest []user.User) {
	for _, req := range reqs {
		taken := 0
		kept := remaining[:0]
		for _, usr := range remaining {
			if taken < req.count && len(team) < size && usr.LearningPath == req.value {
				team = append(team, usr)
				taken++
				continue
			}
			kept = append(kept, usr)
		}
		remaining = kept
	}
	return team, remaining
}

func compositionNotes(members []user.User, rules []Rule) []string {
	freqs := Frequencies(members)
	notes := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.Attribute != AttrLearningPath {
			continue
		}
		count := freqs[r.Value]
		if satisfies(r, count) {
			notes = append(notes, fmt.Sprintf("satisfied: %s", r))
		} else {
			notes = append(notes, fmt.Sprintf("unsatisfied: %s (got %d)", r, count))
		}
	}
	return notes
}
