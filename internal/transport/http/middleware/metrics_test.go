package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeRecorder struct {
	status   int
	duration time.Duration
	calls    int
}

func (f *fakeRecorder) Record(status int, duration time.Duration) {
	f.status = status
	f.duration = duration
	f.calls++
}

func TestMetricsMiddlewareRecords(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := Metrics(recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if recorder.calls != 1 {
		t.Fatalf("expected one recorded request, got %d", recorder.calls)
	}
	if recorder.status != http.StatusTeapot {
		t.Fatalf("recorded status = %d, want %d", recorder.status, http.StatusTeapot)
	}
	if recorder.duration < 0 {
		t.Fatalf("recorded duration = %v, want non-negative", recorder.duration)
	}
}

func TestMetricsMiddlewareNilRecorder(t *testing.T) {
	handler := Metrics(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
