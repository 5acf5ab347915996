package notifications

import "context"

type StoreAPI interface {
	CreateNotification(ctx context.Context, userID, ntype, title, message string) error
	UserEmail(ctx context.Context, userID string) (string, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int, error)
	OwnerID(ctx context.Context, notificationID string) (string, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	ListAllNotifications(ctx context.Context, limit, offset int) ([]Notification, error)
	CountAllNotifications(ctx context.Context) (int, error)
	DeleteNotification(ctx context.Context, notificationID string) (bool, error)
}
