package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/capstone/core/deliverable"
)

type deliverableRepository struct {
	db *DB
}

var _ deliverable.Repository = (*deliverableRepository)(nil) // interface compliance check

func NewDeliverableRepository(db *DB) *deliverableRepository {
	return &deliverableRepository{db: db}
}

func (repo *deliverableRepository) CreateDeliverable(_ context.Context, d deliverable.Deliverable) (deliverable.Deliverable, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	d.ID = newID()
	stored := d
	repo.db.deliverables[d.ID] = &stored
	return d, nil
}

func (repo *deliverableRepository) ListDeliverables(_ context.Context, filter deliverable.QueryFilter) ([]deliverable.Row, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]deliverable.Row, 0)
	for _, d := range repo.db.deliverables {
		if filter.DocumentType != "" && d.DocumentType != filter.DocumentType {
			continue
		}
		if filter.UseCaseID != "" && d.UseCaseID != filter.UseCaseID {
			continue
		}
		row := deliverable.Row{Deliverable: *d}
		if grp, ok := repo.db.groups[d.GroupID]; ok {
			row.GroupName = grp.Name
		}
		if uc, ok := repo.db.useCases[d.UseCaseID]; ok {
			row.UseCaseName = uc.Name
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].SubmittedAt.After(rows[j].SubmittedAt) })
	return rows, nil
}
