package feedback

import "context"

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) IsAssigned(ctx context.Context, reviewerID, employeeID, cycleID string) (bool, error) {
	return s.store.IsAssigned(ctx, reviewerID, employeeID, cycleID)
}

func (s *Service) ActiveUserExists(ctx context.Context, userID string) (bool, error) {
	return s.store.ActiveUserExists(ctx, userID)
}

func (s *Service) Create(ctx context.Context, f Form) (string, error) {
	return s.store.Create(ctx, f)
}

func (s *Service) GetByID(ctx context.Context, formID string) (*Form, error) {
	return s.store.GetByID(ctx, formID)
}

func (s *Service) Update(ctx context.Context, formID, strengths, improvements, rating string, expectedVersion int) (bool, error) {
	return s.store.Update(ctx, formID, strengths, improvements, rating, expectedVersion)
}

func (s *Service) Submit(ctx context.Context, formID, strengths, improvements, rating string, expectedVersion int) (bool, error) {
	return s.store.Submit(ctx, formID, strengths, improvements, rating, expectedVersion)
}

func (s *Service) DeleteDraft(ctx context.Context, formID string) (bool, error) {
	return s.store.DeleteDraft(ctx, formID)
}

func (s *Service) ListByReviewer(ctx context.Context, reviewerID string, filter ListFilter, limit, offset int) ([]FormDetails, error) {
	return s.store.ListByReviewer(ctx, reviewerID, filter, limit, offset)
}

func (s *Service) CountByReviewer(ctx context.Context, reviewerID string, filter ListFilter) (int, error) {
	return s.store.CountByReviewer(ctx, reviewerID, filter)
}

func (s *Service) ListSubmittedForEmployee(ctx context.Context, employeeID string, limit, offset int) ([]FormDetails, error) {
	return s.store.ListSubmittedForEmployee(ctx, employeeID, limit, offset)
}

func (s *Service) CountSubmittedForEmployee(ctx context.Context, employeeID string) (int, error) {
	return s.store.CountSubmittedForEmployee(ctx, employeeID)
}

func (s *Service) ListAll(ctx context.Context, status string, limit, offset int) ([]FormDetails, error) {
	return s.store.ListAll(ctx, status, limit, offset)
}

func (s *Service) CountAll(ctx context.Context, status string) (int, error) {
	return s.store.CountAll(ctx, status)
}

func (s *Service) ListAssignments(ctx context.Context, reviewerID string) ([]Assignment, error) {
	return s.store.ListAssignments(ctx, reviewerID)
}
