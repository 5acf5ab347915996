package cycles

import "context"

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetActive(ctx context.Context) (*Cycle, error) {
	return s.store.GetActive(ctx)
}

func (s *Service) GetByID(ctx context.Context, cycleID string) (*Cycle, error) {
	return s.store.GetByID(ctx, cycleID)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]Cycle, error) {
	return s.store.List(ctx, status, limit, offset)
}

func (s *Service) Count(ctx context.Context, status string) (int, error) {
	return s.store.Count(ctx, status)
}

func (s *Service) Create(ctx context.Context, c Cycle) (string, error) {
	return s.store.Create(ctx, c)
}

func (s *Service) Update(ctx context.Context, cycleID string, c Cycle) (bool, error) {
	return s.store.Update(ctx, cycleID, c)
}

func (s *Service) IsReferenced(ctx context.Context, cycleID string) (bool, error) {
	return s.store.IsReferenced(ctx, cycleID)
}

func (s *Service) Delete(ctx context.Context, cycleID string) (bool, error) {
	return s.store.Delete(ctx, cycleID)
}
