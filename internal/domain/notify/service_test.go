package notify

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memStore struct {
	notifications []string
	events        []time.Time
	emails        map[string]string
	failInApp     bool
}

func (m *memStore) CreateNotification(_ context.Context, _, userID, _, _, _, _, _ string) error {
	if m.failInApp {
		return errors.New("notifications table unavailable")
	}
	m.notifications = append(m.notifications, userID)
	return nil
}

func (m *memStore) CreateCalendarEvent(_ context.Context, _, _, _, _ string, eventAt time.Time) error {
	m.events = append(m.events, eventAt)
	return nil
}

func (m *memStore) UserEmail(_ context.Context, _, userID string) (string, error) {
	return m.emails[userID], nil
}

func (m *memStore) ListNotifications(_ context.Context, _, _ string, _, _ int) ([]map[string]any, error) {
	return nil, nil
}

func (m *memStore) CountUnread(_ context.Context, _, _ string) (int, error) { return 0, nil }

func (m *memStore) MarkRead(_ context.Context, _, _, _ string) error { return nil }

type memMailer struct {
	sent []string
	err  error
}

func (m *memMailer) Send(_ context.Context, _, to, _, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func TestNotifyRequiresRecipient(t *testing.T) {
	svc := New(&memStore{}, nil, "", "hr@example.com")
	if err := svc.Notify(context.Background(), "t1", Request{Title: "x"}); err == nil {
		t.Fatal("expected error without a recipient")
	}
}

func TestNotifyDefaultsToInApp(t *testing.T) {
	store := &memStore{}
	svc := New(store, nil, "", "hr@example.com")
	err := svc.Notify(context.Background(), "t1", Request{RecipientID: "u1", Title: "Hello"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(store.notifications) != 1 {
		t.Fatalf("in-app deliveries = %d, want 1", len(store.notifications))
	}
}

func TestNotifyChannelFailureIsolation(t *testing.T) {
	store := &memStore{failInApp: true, emails: map[string]string{"u1": "u1@example.com"}}
	mailer := &memMailer{}
	svc := New(store, mailer, "", "hr@example.com")

	err := svc.Notify(context.Background(), "t1", Request{
		RecipientID: "u1",
		Title:       "Review overdue",
		Channels:    []string{ChannelInApp, ChannelEmail},
	})
	if err == nil {
		t.Fatal("expected joined error from the failed channel")
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("email deliveries = %d, want 1 despite in-app failure", len(mailer.sent))
	}
}

func TestNotifySkipsEmailWithoutAddress(t *testing.T) {
	store := &memStore{emails: map[string]string{}}
	mailer := &memMailer{}
	svc := New(store, mailer, "", "hr@example.com")

	err := svc.Notify(context.Background(), "t1", Request{
		RecipientID: "u1",
		Title:       "Hello",
		Channels:    []string{ChannelEmail},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("email deliveries = %d, want 0", len(mailer.sent))
	}
}

func TestNotifyCalendarUsesEventTime(t *testing.T) {
	store := &memStore{}
	svc := New(store, nil, "", "hr@example.com")

	when := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	err := svc.Notify(context.Background(), "t1", Request{
		RecipientID: "u1",
		Title:       "Check-in",
		Channels:    []string{ChannelCalendar},
		EventAt:     &when,
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(store.events) != 1 || !store.events[0].Equal(when) {
		t.Fatalf("calendar events = %v, want one at %v", store.events, when)
	}
}

func TestNotifyUnknownChannel(t *testing.T) {
	svc := New(&memStore{}, nil, "", "hr@example.com")
	err := svc.Notify(context.Background(), "t1", Request{
		RecipientID: "u1",
		Title:       "x",
		Channels:    []string{"PIGEON"},
	})
	if err == nil {
		t.Fatal("expected error for unknown channel")
	}
}
