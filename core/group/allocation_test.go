package group

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
)

func roster(prefix, path string, n int) []user.User {
	users := make([]user.User, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("%s%d", prefix, i)
		users = append(users, user.User{ID: id, SourceID: id, Name: id, LearningPath: path, Role: user.RoleStudent})
	}
	return users
}

func ids(users []user.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

// checkPartition asserts that plans split pool exactly, in teams of size except maybe one smaller team.
func checkPartition(t *testing.T, pool []user.User, plans []TeamPlan, size int) {
	t.Helper()

	seen := make(map[string]int)
	smaller := 0
	for _, plan := range plans {
		n := len(plan.Members)
		if n == 0 || n > size {
			t.Fatalf("Allocate() team size = %d, want in [1, %d]", n, size)
		}
		if n < size {
			smaller++
		}
		for _, m := range plan.Members {
			seen[m.ID]++
		}
	}
	if smaller > 1 {
		t.Errorf("Allocate() created %d undersized teams, want at most 1", smaller)
	}
	if len(seen) != len(pool) {
		t.Errorf("Allocate() placed %d students, want %d", len(seen), len(pool))
	}
	for _, u := range pool {
		if seen[u.ID] != 1 {
			t.Errorf("Allocate() placed %s %d times, want 1", u.ID, seen[u.ID])
		}
	}
}

func TestAllocate_partition(t *testing.T) {
	paths := []string{user.PathML, user.PathFEBE, user.PathREBE, ""}
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		var pool []user.User
		n := rnd.Intn(25)
		for j := 0; j < n; j++ {
			id := fmt.Sprintf("s%d", j)
			pool = append(pool, user.User{ID: id, LearningPath: paths[rnd.Intn(len(paths))]})
		}
		var rules []Rule
		for j := rnd.Intn(4); j > 0; j-- {
			ops := []string{OpGTE, OpLTE, OpEQ}
			rules = append(rules, lpRule(paths[rnd.Intn(3)], ops[rnd.Intn(len(ops))], rnd.Intn(4)))
		}
		size := 1 + rnd.Intn(5)

		t.Run(fmt.Sprintf("pool=%d size=%d rules=%d", n, size, len(rules)), func(t *testing.T) {
			plans := Allocate(pool, rules, nil, size, rand.New(rand.NewSource(int64(i))))
			checkPartition(t, pool, plans, size)
		})
	}
}

func TestAllocate_doesNotModifyPool(t *testing.T) {
	pool := append(roster("ml", user.PathML, 4), roster("fe", user.PathFEBE, 3)...)
	want := ids(pool)

	Allocate(pool, []Rule{lpRule(user.PathML, OpGTE, 2)}, nil, 3, rand.New(rand.NewSource(1)))
	assert.Equal(t, want, ids(pool))
}

func TestAllocate_empty(t *testing.T) {
	plans := Allocate(nil, []Rule{lpRule(user.PathML, OpGTE, 2)}, nil, 3, rand.New(rand.NewSource(1)))
	assert.Empty(t, plans)
}

func TestAllocate_singleStudent(t *testing.T) {
	pool := roster("s", user.PathREBE, 1)

	plans := Allocate(pool, nil, nil, 3, rand.New(rand.NewSource(1)))
	require.Len(t, plans, 1)
	require.Len(t, plans[0].Members, 1)
	assert.Equal(t, "s1", plans[0].Leader().ID)
	assert.Nil(t, plans[0].UseCase)
}

func TestAllocate_defaultTeamSize(t *testing.T) {
	pool := roster("s", user.PathML, 7)

	plans := Allocate(pool, nil, nil, 0, rand.New(rand.NewSource(1)))
	checkPartition(t, pool, plans, DefaultTeamSize)
	assert.Len(t, plans, 3)
}

// 7 students (4 ML, 3 FEBE), rule ML >= 2, team size 3.
func TestAllocate_scenario(t *testing.T) {
	ml := roster("ml", user.PathML, 4)
	pool := append(append([]user.User{}, ml...), roster("fe", user.PathFEBE, 3)...)
	rules := []Rule{lpRule(user.PathML, OpGTE, 2)}

	for seed := int64(0); seed < 20; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			plans := Allocate(pool, rules, nil, 3, rand.New(rand.NewSource(seed)))
			checkPartition(t, pool, plans, 3)
			require.Len(t, plans, 3)

			first := plans[0]
			assert.Equal(t, 2, first.RulePicks)
			assert.Equal(t, []string{"ml1", "ml2"}, ids(first.Members[:2]))
			assert.Len(t, first.Members, 3)
			assert.Equal(t, "ml1", first.Leader().ID)
			assert.Len(t, plans[2].Members, 1)
		})
	}
}

// The students claimed by rules do not depend on the random source.
func TestAllocate_rulePriorityDeterminism(t *testing.T) {
	pool := append(roster("fe", user.PathFEBE, 3), roster("ml", user.PathML, 2)...)
	pool = append(pool, roster("re", user.PathREBE, 4)...)
	rules := []Rule{
		lpRule(user.PathREBE, OpGTE, 1),
		lpRule(user.PathML, OpGTE, 1),
		lpRule(user.PathFEBE, OpLTE, 1), // upper bounds never pull
	}

	var want []string
	for seed := int64(0); seed < 50; seed++ {
		plans := Allocate(pool, rules, nil, 4, rand.New(rand.NewSource(seed)))
		first := plans[0]
		got := ids(first.Members[:first.RulePicks])
		if want == nil {
			want = got
			assert.Equal(t, []string{"re1", "ml1"}, want)
			continue
		}
		if !assert.Equal(t, want, got) {
			t.Fatalf("Allocate() rule picks changed with seed %d", seed)
		}
	}
}

func TestAllocate_rules(t *testing.T) {
	ml := user.PathML
	fe := user.PathFEBE

	tests := []struct {
		name          string
		pool          []user.User
		rules         []Rule
		size          int
		wantRulePicks []string
		wantNotes     []string
	}{
		{
			name:          "under supply is tolerated",
			pool:          append(roster("ml", ml, 1), roster("fe", fe, 3)...),
			rules:         []Rule{lpRule(ml, OpGTE, 2)},
			size:          3,
			wantRulePicks: []string{"ml1"},
			wantNotes:     []string{fmt.Sprintf("unsatisfied: %s (got 1)", lpRule(ml, OpGTE, 2))},
		},
		{
			name:          "pulls are capped at team size",
			pool:          roster("ml", ml, 5),
			rules:         []Rule{lpRule(ml, OpGTE, 5)},
			size:          3,
			wantRulePicks: []string{"ml1", "ml2", "ml3"},
			wantNotes:     []string{fmt.Sprintf("unsatisfied: %s (got 3)", lpRule(ml, OpGTE, 5))},
		},
		{
			name:          "rule order decides priority",
			pool:          append(roster("ml", ml, 2), roster("fe", fe, 2)...),
			rules:         []Rule{lpRule(fe, OpGTE, 2), lpRule(ml, OpGTE, 2)},
			size:          3,
			wantRulePicks: []string{"fe1", "fe2", "ml1"},
			wantNotes: []string{
				fmt.Sprintf("satisfied: %s", lpRule(fe, OpGTE, 2)),
				fmt.Sprintf("unsatisfied: %s (got 1)", lpRule(ml, OpGTE, 2)),
			},
		},
		{
			name:          "duplicate value keeps first position and last count",
			pool:          append(roster("fe", fe, 2), roster("ml", ml, 3)...),
			rules:         []Rule{lpRule(ml, OpGTE, 1), lpRule(fe, OpGTE, 1), lpRule(ml, OpGTE, 2)},
			size:          3,
			wantRulePicks: []string{"ml1", "ml2", "fe1"},
			wantNotes: []string{
				fmt.Sprintf("satisfied: %s", lpRule(ml, OpGTE, 1)),
				fmt.Sprintf("satisfied: %s", lpRule(fe, OpGTE, 1)),
				fmt.Sprintf("satisfied: %s", lpRule(ml, OpGTE, 2)),
			},
		},
		{
			name:          "unknown path is never pulled",
			pool:          append(roster("x", "", 2), roster("ml", ml, 1)...),
			rules:         []Rule{lpRule("", OpGTE, 2), lpRule(UnknownPath, OpGTE, 2), lpRule(ml, OpGTE, 1)},
			size:          3,
			wantRulePicks: []string{"ml1"},
			wantNotes: []string{
				fmt.Sprintf("unsatisfied: %s (got 0)", lpRule("", OpGTE, 2)),
				fmt.Sprintf("satisfied: %s", lpRule(UnknownPath, OpGTE, 2)),
				fmt.Sprintf("satisfied: %s", lpRule(ml, OpGTE, 1)),
			},
		},
		{
			name:          "equality and upper bounds do not pull",
			pool:          append(roster("fe", fe, 3), roster("ml", ml, 3)...),
			rules:         []Rule{lpRule(ml, OpEQ, 3), lpRule(fe, OpLTE, 0)},
			size:          3,
			wantRulePicks: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans := Allocate(tt.pool, tt.rules, nil, tt.size, rand.New(rand.NewSource(7)))
			checkPartition(t, tt.pool, plans, tt.size)

			first := plans[0]
			assert.Equal(t, tt.wantRulePicks, ids(first.Members[:first.RulePicks]))
			if tt.wantNotes != nil {
				assert.Equal(t, tt.wantNotes, first.Notes)
			}
		})
	}
}

func TestAllocate_useCases(t *testing.T) {
	useCases := []program.UseCase{{ID: "uc1", Name: "One"}, {ID: "uc2", Name: "Two"}}
	pool := roster("s", user.PathML, 10)

	plans := Allocate(pool, nil, useCases, 3, rand.New(rand.NewSource(3)))
	require.Len(t, plans, 4)
	for _, plan := range plans {
		require.NotNil(t, plan.UseCase)
		assert.Contains(t, []string{"uc1", "uc2"}, plan.UseCase.ID)
	}
}
