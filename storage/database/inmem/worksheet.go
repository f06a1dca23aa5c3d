package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/worksheet"
)

type worksheetRepository struct {
	db *DB
}

var _ worksheet.Repository = (*worksheetRepository)(nil) // interface compliance check

func NewWorksheetRepository(db *DB) *worksheetRepository {
	return &worksheetRepository{db: db}
}

func (repo *worksheetRepository) CreateWorksheet(_ context.Context, ws worksheet.Worksheet) (worksheet.Worksheet, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ws.ID = newID()
	stored := ws
	repo.db.worksheets[ws.ID] = &stored
	return ws, nil
}

func (repo *worksheetRepository) GetWorksheet(_ context.Context, id string) (worksheet.Worksheet, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ws, ok := repo.db.worksheets[id]; ok {
		return *ws, nil
	}
	return worksheet.Worksheet{}, worksheet.ErrNotFound
}

func (repo *worksheetRepository) ListWorksheets(_ context.Context, filter worksheet.QueryFilter) ([]worksheet.Row, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]worksheet.Row, 0)
	for _, ws := range repo.db.worksheets {
		if filter.BatchID != "" && ws.BatchID != filter.BatchID {
			continue
		}
		if filter.Status != "" && ws.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && ws.UserID != filter.UserID {
			continue
		}
		row := worksheet.Row{Worksheet: *ws}
		if usr, ok := repo.db.users[ws.UserID]; ok {
			row.UserName = usr.Name
			row.UserEmail = usr.Email
		}
		if grp, ok := repo.db.groups[ws.GroupID]; ok {
			row.GroupName = grp.Name
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].SubmittedAt.After(rows[j].SubmittedAt) })
	return rows, nil
}

func (repo *worksheetRepository) UpdateWorksheet(_ context.Context, ws worksheet.Worksheet) (worksheet.Worksheet, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.worksheets[ws.ID]
	if !ok {
		return worksheet.Worksheet{}, worksheet.ErrNotFound
	}
	orig.Status = ws.Status
	orig.Feedback = ws.Feedback
	return *orig, nil
}

func (repo *worksheetRepository) SubmittedUserIDs(_ context.Context, start, end core.Date) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, ws := range repo.db.worksheets {
		if ws.PeriodStart.Equal(start.Time) && ws.PeriodEnd.Equal(end.Time) && !seen[ws.UserID] {
			seen[ws.UserID] = true
			ids = append(ids, ws.UserID)
		}
	}
	return ids, nil
}
