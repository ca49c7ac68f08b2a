package notify

import (
	"context"
	"time"
)

type StoreAPI interface {
	CreateNotification(ctx context.Context, tenantID, userID, category, priority, title, body, linkURL string) error
	CreateCalendarEvent(ctx context.Context, tenantID, userID, title, body string, eventAt time.Time) error
	UserEmail(ctx context.Context, tenantID, userID string) (string, error)
	ListNotifications(ctx context.Context, tenantID, userID string, limit, offset int) ([]map[string]any, error)
	CountUnread(ctx context.Context, tenantID, userID string) (int, error)
	MarkRead(ctx context.Context, tenantID, userID, notificationID string) error
}
