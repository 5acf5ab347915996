package users

import "context"

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetByID(ctx context.Context, userID string) (*User, error) {
	return s.store.GetByID(ctx, userID)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]User, error) {
	return s.store.List(ctx, filter, limit, offset)
}

func (s *Service) Count(ctx context.Context, filter ListFilter) (int, error) {
	return s.store.Count(ctx, filter)
}

func (s *Service) Create(ctx context.Context, u User, passwordHash string) (string, error) {
	return s.store.Create(ctx, u, passwordHash)
}

func (s *Service) Update(ctx context.Context, userID string, u User) (bool, error) {
	return s.store.Update(ctx, userID, u)
}

func (s *Service) UpdateProfile(ctx context.Context, userID, name, department, position string) error {
	return s.store.UpdateProfile(ctx, userID, name, department, position)
}

func (s *Service) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.store.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) IsReferenced(ctx context.Context, userID string) (bool, error) {
	return s.store.IsReferenced(ctx, userID)
}

func (s *Service) Deactivate(ctx context.Context, userID string) error {
	return s.store.Deactivate(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID string) (bool, error) {
	return s.store.Delete(ctx, userID)
}

func (s *Service) ListReviewers(ctx context.Context) ([]Reviewer, error) {
	return s.store.ListReviewers(ctx)
}
