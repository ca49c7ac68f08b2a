package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Request is one notification to one recipient. Delivery is attempted on each
// requested channel independently; a channel failure never blocks the others.
type Request struct {
	RecipientID string            `json:"recipientId"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Priority    string            `json:"priority"`
	Category    string            `json:"category"`
	LinkURL     string            `json:"linkUrl,omitempty"`
	Channels    []string          `json:"channels"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	EventAt     *time.Time        `json:"eventAt,omitempty"`
}

// Dispatcher is the single notification capability the review workflows and
// sweeps depend on. Delivery is at-least-once; callers keep their own
// notified flags where a duplicate would be user-visible.
type Dispatcher interface {
	Notify(ctx context.Context, tenantID string, req Request) error
}

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	WebhookURL  string
	DefaultFrom string
	HTTPClient  *http.Client
}

func New(store StoreAPI, mailer Mailer, webhookURL, defaultFrom string) *Service {
	return &Service{
		store:       store,
		Mailer:      mailer,
		WebhookURL:  webhookURL,
		DefaultFrom: defaultFrom,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify fans the request out to every requested channel. Errors from
// individual channels are joined so the caller can log them; partial delivery
// still counts as delivery for the surviving channels.
func (s *Service) Notify(ctx context.Context, tenantID string, req Request) error {
	if req.RecipientID == "" {
		return errors.New("notification recipient required")
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if len(req.Channels) == 0 {
		req.Channels = []string{ChannelInApp}
	}

	var errs []error
	for _, channel := range req.Channels {
		var err error
		switch channel {
		case ChannelInApp:
			err = s.deliverInApp(ctx, tenantID, req)
		case ChannelEmail:
			err = s.deliverEmail(ctx, tenantID, req)
		case ChannelChat:
			err = s.deliverChat(ctx, tenantID, req)
		case ChannelCalendar:
			err = s.deliverCalendar(ctx, tenantID, req)
		case ChannelSMS:
			// No SMS provider is configured; recorded for the in-app feed only.
			slog.Debug("sms channel skipped", "tenantId", tenantID, "recipientId", req.RecipientID)
		default:
			err = fmt.Errorf("unknown channel %q", channel)
		}
		if err != nil {
			slog.Warn("notification channel failed", "channel", channel, "category", req.Category, "recipientId", req.RecipientID, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) deliverInApp(ctx context.Context, tenantID string, req Request) error {
	return s.store.CreateNotification(ctx, tenantID, req.RecipientID, req.Category, req.Priority, req.Title, req.Message, req.LinkURL)
}

func (s *Service) deliverEmail(ctx context.Context, tenantID string, req Request) error {
	if s.Mailer == nil {
		return nil
	}
	email, err := s.store.UserEmail(ctx, tenantID, req.RecipientID)
	if err != nil {
		return err
	}
	if email == "" {
		return nil
	}
	body := req.Message
	if req.LinkURL != "" {
		body += "\n\n" + req.LinkURL
	}
	return s.Mailer.Send(ctx, s.DefaultFrom, email, req.Title, body)
}

func (s *Service) deliverChat(ctx context.Context, tenantID string, req Request) error {
	if s.WebhookURL == "" {
		return nil
	}
	payload, err := json.Marshal(map[string]any{
		"recipientId": req.RecipientID,
		"title":       req.Title,
		"text":        req.Message,
		"priority":    req.Priority,
		"link":        req.LinkURL,
	})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := s.HTTPClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chat webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (s *Service) deliverCalendar(ctx context.Context, tenantID string, req Request) error {
	eventAt := time.Now()
	if req.EventAt != nil {
		eventAt = *req.EventAt
	}
	return s.store.CreateCalendarEvent(ctx, tenantID, req.RecipientID, req.Title, req.Message, eventAt)
}

// In-app feed, kept for the notifications endpoints.

func (s *Service) List(ctx context.Context, tenantID, userID string, limit, offset int) ([]map[string]any, error) {
	return s.store.ListNotifications(ctx, tenantID, userID, limit, offset)
}

func (s *Service) CountUnread(ctx context.Context, tenantID, userID string) (int, error) {
	return s.store.CountUnread(ctx, tenantID, userID)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, userID, notificationID string) error {
	return s.store.MarkRead(ctx, tenantID, userID, notificationID)
}
