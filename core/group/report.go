package group

// AllocationReport describes one AutoAssign run.
type AllocationReport struct {
	AssignedCount int                `json:"assigned_count"`
	GroupsCreated int                `json:"groups_created"`
	LeftOver      int                `json:"left_over"`
	Details       []AssignmentDetail `json:"details"`
	Groups        []AllocatedGroup   `json:"groups"`
}

type AssignmentDetail struct {
	User    string `json:"user"`
	UserID  string `json:"user_id"` // users_source_id
	Group   string `json:"group"`
	GroupID string `json:"group_id"`
	Role    string `json:"role"`
	UseCase string `json:"use_case"`
}

type AllocatedGroup struct {
	GroupID   string   `json:"group_id"`
	GroupName string   `json:"group_name"`
	UseCase   string   `json:"use_case"`
	Members   []string `json:"members"`
	Notes     []string `json:"notes"`
}

func newAllocationReport() AllocationReport {
	return AllocationReport{
		Details: make([]AssignmentDetail, 0),
		Groups:  make([]AllocatedGroup, 0),
	}
}

func (r *AllocationReport) add(grp Group, members []Member, plan TeamPlan) {
	var ucName string
	if plan.UseCase != nil {
		ucName = plan.UseCase.Name
	}

	allocated := AllocatedGroup{
		GroupID:   grp.ID,
		GroupName: grp.Name,
		UseCase:   ucName,
		Members:   make([]string, 0, len(members)),
		Notes:     plan.Notes,
	}
	if allocated.Notes == nil {
		allocated.Notes = make([]string, 0)
	}
	for _, m := range members {
		r.Details = append(r.Details, AssignmentDetail{
			User:    m.Name,
			UserID:  m.SourceID,
			Group:   grp.Name,
			GroupID: grp.ID,
			Role:    m.Role,
			UseCase: ucName,
		})
		allocated.Members = append(allocated.Members, m.Name)
	}
	r.Groups = append(r.Groups, allocated)
	r.AssignedCount += len(members)
	r.GroupsCreated++
}
