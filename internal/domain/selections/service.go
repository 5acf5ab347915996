package selections

import "context"

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetByID(ctx context.Context, selectionID string) (*Selection, error) {
	return s.store.GetByID(ctx, selectionID)
}

func (s *Service) GetByMenteeAndCycle(ctx context.Context, menteeID, cycleID string) (*Selection, error) {
	return s.store.GetByMenteeAndCycle(ctx, menteeID, cycleID)
}

func (s *Service) ActiveReviewerCount(ctx context.Context, reviewerIDs []string) (int, error) {
	return s.store.ActiveReviewerCount(ctx, reviewerIDs)
}

func (s *Service) Create(ctx context.Context, cycleID, menteeID string, reviewerIDs []string) (string, error) {
	return s.store.Create(ctx, cycleID, menteeID, reviewerIDs)
}

func (s *Service) ReplaceReviewers(ctx context.Context, selectionID string, reviewerIDs []string, expectedVersion int) (bool, error) {
	return s.store.ReplaceReviewers(ctx, selectionID, reviewerIDs, expectedVersion)
}

func (s *Service) DeletePending(ctx context.Context, selectionID string) (bool, error) {
	return s.store.DeletePending(ctx, selectionID)
}

func (s *Service) Decide(ctx context.Context, selectionID, newStatus, feedback string) (bool, error) {
	return s.store.Decide(ctx, selectionID, newStatus, feedback)
}

func (s *Service) GetDetails(ctx context.Context, selectionID string) (*Details, error) {
	return s.store.GetDetails(ctx, selectionID)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]Details, error) {
	return s.store.List(ctx, status, limit, offset)
}

func (s *Service) Count(ctx context.Context, status string) (int, error) {
	return s.store.Count(ctx, status)
}
