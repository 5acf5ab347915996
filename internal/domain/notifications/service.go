package notifications

import (
	"context"
	"log/slog"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store        StoreAPI
	Mailer       Mailer
	EmailEnabled bool
	From         string
}

func New(store StoreAPI, mailer Mailer, emailEnabled bool, from string) *Service {
	if from == "" {
		from = "no-reply@example.com"
	}
	return &Service{store: store, Mailer: mailer, EmailEnabled: emailEnabled, From: from}
}

// Create stores the notification row and sends a best-effort email copy.
// Email failures are logged and swallowed so the triggering request never
// fails on a side channel.
func (s *Service) Create(ctx context.Context, userID, ntype, title, message string) error {
	if err := s.store.CreateNotification(ctx, userID, ntype, title, message); err != nil {
		return err
	}

	if s.Mailer == nil || !s.EmailEnabled {
		return nil
	}

	email, err := s.store.UserEmail(ctx, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "err", err)
		return nil
	}
	if email == "" {
		return nil
	}
	if err := s.Mailer.Send(ctx, s.From, email, title, message); err != nil {
		slog.Warn("notification email send failed", "err", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) Count(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	return s.store.CountNotifications(ctx, userID, unreadOnly)
}

func (s *Service) OwnerID(ctx context.Context, notificationID string) (string, error) {
	return s.store.OwnerID(ctx, notificationID)
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]Notification, error) {
	return s.store.ListAllNotifications(ctx, limit, offset)
}

func (s *Service) CountAll(ctx context.Context) (int, error) {
	return s.store.CountAllNotifications(ctx)
}

func (s *Service) Delete(ctx context.Context, notificationID string) (bool, error) {
	return s.store.DeleteNotification(ctx, notificationID)
}
