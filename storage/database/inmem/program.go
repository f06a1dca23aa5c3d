package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/capstone/core/program"
)

type programRepository struct {
	db *DB
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(db *DB) *programRepository {
	return &programRepository{db: db}
}

func (repo *programRepository) CreateUseCase(_ context.Context, uc program.UseCase) (program.UseCase, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.useCases {
		if existing.SourceID == uc.SourceID {
			return program.UseCase{}, program.ErrUseCaseExists
		}
	}
	uc.ID = newID()
	repo.db.useCases[uc.ID] = &uc
	return uc, nil
}

func (repo *programRepository) ListUseCases(_ context.Context) ([]program.UseCase, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ucs := make([]program.UseCase, 0, len(repo.db.useCases))
	for _, uc := range repo.db.useCases {
		ucs = append(ucs, *uc)
	}
	sort.Slice(ucs, func(i, j int) bool { return ucs[i].SourceID < ucs[j].SourceID })
	return ucs, nil
}

func (repo *programRepository) GetUseCase(_ context.Context, filter program.UseCaseFilter) (program.UseCase, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if uc, ok := repo.db.useCases[filter.ID]; ok {
			return *uc, nil
		}
		return program.UseCase{}, program.ErrUseCaseNotFound
	}
	if filter.SourceID != "" {
		for _, uc := range repo.db.useCases {
			if uc.SourceID == filter.SourceID {
				return *uc, nil
			}
		}
	}
	return program.UseCase{}, program.ErrUseCaseNotFound
}

func (repo *programRepository) CreateTimelineEntry(_ context.Context, entry program.TimelineEntry) (program.TimelineEntry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	entry.ID = newID()
	repo.db.timeline[entry.ID] = &entry
	return entry, nil
}

func (repo *programRepository) ListTimeline(_ context.Context, batchID string) ([]program.TimelineEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]program.TimelineEntry, 0)
	for _, e := range repo.db.timeline {
		if batchID == "" || e.BatchID == batchID {
			entries = append(entries, *e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

func (repo *programRepository) CreateDoc(_ context.Context, doc program.Doc) (program.Doc, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	doc.ID = newID()
	repo.db.docs[doc.ID] = &doc
	return doc, nil
}

func (repo *programRepository) ListDocs(_ context.Context) ([]program.Doc, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	docs := make([]program.Doc, 0, len(repo.db.docs))
	for _, d := range repo.db.docs {
		docs = append(docs, *d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].OrderIdx != docs[j].OrderIdx {
			return docs[i].OrderIdx < docs[j].OrderIdx
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

func (repo *programRepository) CreatePeriod(_ context.Context, period program.Period) (program.Period, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	period.ID = newID()
	repo.db.periods[period.ID] = &period
	return period, nil
}

func (repo *programRepository) ListPeriods(_ context.Context, batchID string) ([]program.Period, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	periods := make([]program.Period, 0)
	for _, p := range repo.db.periods {
		if batchID == "" || p.BatchID == batchID {
			periods = append(periods, *p)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].StartDate.Before(periods[j].StartDate.Time) })
	return periods, nil
}

func (repo *programRepository) GetPeriod(_ context.Context, id string) (program.Period, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.periods[id]; ok {
		return *p, nil
	}
	return program.Period{}, program.ErrPeriodNotFound
}
