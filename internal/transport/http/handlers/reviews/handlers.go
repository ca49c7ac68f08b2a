package reviewshandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reviewhub/internal/domain/audit"
	"reviewhub/internal/domain/auth"
	"reviewhub/internal/domain/review"
	"reviewhub/internal/transport/http/api"
	"reviewhub/internal/transport/http/middleware"
	"reviewhub/internal/transport/http/shared"
)

type Handler struct {
	Service     *review.Service
	Perms       middleware.PermissionStore
	Audit       *audit.Service
	Idempotency *middleware.IdempotencyStore
}

func NewHandler(service *review.Service, perms middleware.PermissionStore, auditSvc *audit.Service, idempotency *middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc, Idempotency: idempotency}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reviews", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/cycles", h.handleListCycles)
		r.With(middleware.RequirePermission(auth.PermReviewsAdmin, h.Perms)).Post("/cycles", h.handleCreateCycle)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/cycles/{cycleID}", h.handleGetCycle)
		r.With(middleware.RequirePermission(auth.PermReviewsAdmin, h.Perms)).Post("/cycles/{cycleID}/activate", h.handleActivateCycle)
		r.With(middleware.RequirePermission(auth.PermReviewsAdmin, h.Perms)).Post("/cycles/{cycleID}/publish", h.handlePublishCycle)
		r.With(middleware.RequirePermission(auth.PermReviewsAdmin, h.Perms)).Post("/cycles/{cycleID}/close", h.handleCloseCycle)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/cycles/{cycleID}/progress", h.handleCycleProgress)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/cycles/{cycleID}/forms", h.handleListCycleForms)
		r.With(middleware.RequirePermission(auth.PermReviewsWrite, h.Perms)).Post("/cycles/{cycleID}/peer-reviewers", h.handleAssignPeerReviewer)

		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/forms/mine", h.handleListMyForms)
		r.With(middleware.RequirePermission(auth.PermReviewsRead, h.Perms)).Get("/forms/{formID}", h.handleGetForm)
		r.With(middleware.RequirePermission(auth.PermReviewsWrite, h.Perms)).Put("/forms/{formID}/draft", h.handleSaveDraft)
		r.With(middleware.RequirePermission(auth.PermReviewsSubmit, h.Perms)).Post("/forms/{formID}/submit", h.handleSubmitForm)

		r.With(middleware.RequirePermission(auth.PermReviewsCalibrate, h.Perms)).Get("/cycles/{cycleID}/calibration", h.handleListCalibration)
		r.With(middleware.RequirePermission(auth.PermReviewsCalibrate, h.Perms)).Get("/calibration/{recordID}", h.handleGetCalibration)
		r.With(middleware.RequirePermission(auth.PermReviewsCalibrate, h.Perms)).Get("/calibration/{recordID}/changes", h.handleListCalibrationChanges)
		r.With(middleware.RequirePermission(auth.PermReviewsCalibrate, h.Perms)).Put("/calibration/{recordID}/rating", h.handleAdjustCalibration)
		r.With(middleware.RequirePermission(auth.PermReviewsCalibrate, h.Perms)).Post("/calibration/{recordID}/dispute", h.handleDisputeCalibration)
		r.With(middleware.RequirePermission(auth.PermReviewsCalibrate, h.Perms)).Post("/calibration/{recordID}/resolve", h.handleResolveDispute)
		r.With(middleware.RequirePermission(auth.PermReviewsCalibrate, h.Perms)).Post("/calibration/{recordID}/finalize", h.handleFinalizeCalibration)
	})
}

func (h *Handler) handleListCycles(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	cycles, err := h.Service.ListCycles(r.Context(), user.TenantID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "cycle_list_failed", "failed to list review cycles", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, cycles, middleware.GetRequestID(r.Context()))
}

type cyclePayload struct {
	Name                string          `json:"name"`
	Kind                string          `json:"kind"`
	PeriodStart         string          `json:"periodStart"`
	PeriodEnd           string          `json:"periodEnd"`
	SelfReviewStart     string          `json:"selfReviewStart"`
	SelfReviewEnd       string          `json:"selfReviewEnd"`
	ManagerReviewStart  string          `json:"managerReviewStart"`
	ManagerReviewEnd    string          `json:"managerReviewEnd"`
	PeerReviewStart     string          `json:"peerReviewStart"`
	PeerReviewEnd       string          `json:"peerReviewEnd"`
	CalibrationDate     string          `json:"calibrationDate"`
	PublishDate         string          `json:"publishDate"`
	RatingScale         string          `json:"ratingScale"`
	PeerEnabled         bool            `json:"peerEnabled"`
	UpwardEnabled       bool            `json:"upwardEnabled"`
	AnonymousPeer       bool            `json:"anonymousPeer"`
	CalibrationRequired bool            `json:"calibrationRequired"`
	CompensationLinked  bool            `json:"compensationLinked"`
	Sections            json.RawMessage `json:"sections"`
	ExcludedDepartments []string        `json:"excludedDepartments"`
	ExcludedEmployees   []string        `json:"excludedEmployees"`
}

func (h *Handler) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload cyclePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "cycle name is required")
	v.Enum("kind", payload.Kind, []string{review.CycleQuarterly, review.CycleMidYear, review.CycleAnnual, review.CycleProbation, review.CycleCustom}, "unknown cycle kind")
	periodStart, _ := v.Date("periodStart", payload.PeriodStart)
	periodEnd, _ := v.Date("periodEnd", payload.PeriodEnd)
	selfStart, _ := v.Date("selfReviewStart", payload.SelfReviewStart)
	selfEnd, _ := v.Date("selfReviewEnd", payload.SelfReviewEnd)
	managerStart, _ := v.Date("managerReviewStart", payload.ManagerReviewStart)
	managerEnd, _ := v.Date("managerReviewEnd", payload.ManagerReviewEnd)
	v.DateOrder("periodStart", periodStart, "periodEnd", periodEnd)
	v.DateOrder("selfReviewStart", selfStart, "selfReviewEnd", selfEnd)
	v.DateOrder("managerReviewStart", managerStart, "managerReviewEnd", managerEnd)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	cycle := review.ReviewCycle{
		Name:                payload.Name,
		Kind:                payload.Kind,
		PeriodStart:         periodStart,
		PeriodEnd:           periodEnd,
		SelfReviewStart:     selfStart,
		SelfReviewEnd:       selfEnd,
		ManagerReviewStart:  managerStart,
		ManagerReviewEnd:    managerEnd,
		RatingScale:         payload.RatingScale,
		PeerEnabled:         payload.PeerEnabled,
		UpwardEnabled:       payload.UpwardEnabled,
		AnonymousPeer:       payload.AnonymousPeer,
		CalibrationRequired: payload.CalibrationRequired,
		CompensationLinked:  payload.CompensationLinked,
		Sections:            payload.Sections,
		ExcludedDepartments: payload.ExcludedDepartments,
		ExcludedEmployees:   payload.ExcludedEmployees,
	}
	cycle.PeerReviewStart = optionalDate(payload.PeerReviewStart)
	cycle.PeerReviewEnd = optionalDate(payload.PeerReviewEnd)
	cycle.CalibrationDate = optionalDate(payload.CalibrationDate)
	cycle.PublishDate = optionalDate(payload.PublishDate)

	id, err := h.Service.CreateCycle(r.Context(), user.TenantID, cycle)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "cycle_create_failed", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user, "reviews.cycle.create", "review_cycle", id, payload)
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	cycle, err := h.Service.GetCycle(r.Context(), user.TenantID, chi.URLParam(r, "cycleID"))
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "review cycle not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, cycle, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleActivateCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	cycleID := chi.URLParam(r, "cycleID")
	if err := h.Service.ActivateCycle(r.Context(), user.TenantID, cycleID); err != nil {
		h.failDomain(w, r, err, "cycle_activate_failed")
		return
	}
	h.record(r, user, "reviews.cycle.activate", "review_cycle", cycleID, nil)
	api.Success(w, map[string]string{"phase": review.PhaseActive}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePublishCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	cycleID := chi.URLParam(r, "cycleID")

	// Publication fans out archives and notifications; a retried request with
	// the same key replays the stored response instead of re-publishing.
	idempotencyKey := r.Header.Get("Idempotency-Key")
	requestHash := middleware.RequestHash([]byte(cycleID))
	if idempotencyKey != "" {
		stored, found, err := h.Idempotency.Check(r.Context(), user.TenantID, user.UserID, "reviews.cycle.publish", idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different request", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if found {
			api.Success(w, json.RawMessage(stored), middleware.GetRequestID(r.Context()))
			return
		}
	}

	summary, err := h.Service.PublishCycle(r.Context(), user.TenantID, cycleID, time.Now().UTC())
	if err != nil {
		h.failDomain(w, r, err, "cycle_publish_failed")
		return
	}
	h.record(r, user, "reviews.cycle.publish", "review_cycle", cycleID, summary)

	if idempotencyKey != "" {
		if payload, err := json.Marshal(summary); err == nil {
			if err := h.Idempotency.Save(r.Context(), user.TenantID, user.UserID, "reviews.cycle.publish", idempotencyKey, requestHash, payload); err != nil {
				slog.Warn("idempotency save failed", "err", err)
			}
		}
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCloseCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	cycleID := chi.URLParam(r, "cycleID")
	if err := h.Service.CloseCycle(r.Context(), user.TenantID, cycleID); err != nil {
		h.failDomain(w, r, err, "cycle_close_failed")
		return
	}
	h.record(r, user, "reviews.cycle.close", "review_cycle", cycleID, nil)
	api.Success(w, map[string]string{"phase": review.PhaseClosed}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCycleProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	progress, err := h.Service.Progress(r.Context(), user.TenantID, chi.URLParam(r, "cycleID"))
	if err != nil {
		h.failDomain(w, r, err, "cycle_progress_failed")
		return
	}
	api.Success(w, progress, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListCycleForms(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName == auth.RoleEmployee {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}
	forms, err := h.Service.ListFormsByCycle(r.Context(), user.TenantID, chi.URLParam(r, "cycleID"), r.URL.Query().Get("kind"))
	if err != nil {
		h.failDomain(w, r, err, "form_list_failed")
		return
	}
	api.Success(w, forms, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAssignPeerReviewer(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName == auth.RoleEmployee {
		api.Fail(w, http.StatusForbidden, "forbidden", "manager or hr required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		SubjectID  string `json:"subjectId"`
		ReviewerID string `json:"reviewerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.SubjectID == "" || payload.ReviewerID == "" || payload.SubjectID == payload.ReviewerID {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "distinct subject and reviewer ids required", middleware.GetRequestID(r.Context()))
		return
	}

	cycleID := chi.URLParam(r, "cycleID")
	if user.RoleName == auth.RoleManager {
		managerID, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID)
		if err != nil {
			slog.Warn("peer assignment manager lookup failed", "err", err)
		}
		subjectManager, err := h.Service.ManagerIDByEmployeeID(r.Context(), user.TenantID, payload.SubjectID)
		if err != nil || managerID == "" || subjectManager != managerID {
			api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
			return
		}
	}

	id, err := h.Service.AssignPeerReviewer(r.Context(), user.TenantID, cycleID, payload.SubjectID, payload.ReviewerID)
	if err != nil {
		h.failDomain(w, r, err, "peer_assign_failed")
		return
	}
	h.record(r, user, "reviews.peer.assign", "review_form", id, payload)
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListMyForms(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	employeeID, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID)
	if err != nil || employeeID == "" {
		api.Fail(w, http.StatusNotFound, "not_found", "no employee record for user", middleware.GetRequestID(r.Context()))
		return
	}
	forms, err := h.Service.ListFormsByAuthor(r.Context(), user.TenantID, employeeID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "form_list_failed", "failed to list forms", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, forms, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetForm(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	form, err := h.Service.GetForm(r.Context(), user.TenantID, chi.URLParam(r, "formID"))
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "review form not found", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName == auth.RoleEmployee {
		employeeID, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID)
		if err != nil {
			slog.Warn("form get employee lookup failed", "err", err)
		}
		published := form.Status == review.StatusPublished && form.SubjectID == employeeID
		if employeeID == "" || (form.AuthorID != employeeID && !published) {
			api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
			return
		}
	}
	api.Success(w, form, middleware.GetRequestID(r.Context()))
}

type draftPayload struct {
	Answers       json.RawMessage `json:"answers"`
	OverallRating *float64        `json:"overallRating"`
	Strengths     string          `json:"strengths"`
	Improvements  string          `json:"improvements"`
	Development   string          `json:"development"`
}

func (h *Handler) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload draftPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID)
	if err != nil || employeeID == "" {
		api.Fail(w, http.StatusNotFound, "not_found", "no employee record for user", middleware.GetRequestID(r.Context()))
		return
	}

	formID := chi.URLParam(r, "formID")
	err = h.Service.SaveFormDraft(r.Context(), user.TenantID, formID, employeeID, review.FormDraft{
		Answers:       payload.Answers,
		OverallRating: payload.OverallRating,
		Strengths:     payload.Strengths,
		Improvements:  payload.Improvements,
		Development:   payload.Development,
	})
	if err != nil {
		h.failDomain(w, r, err, "draft_save_failed")
		return
	}
	api.Success(w, map[string]string{"status": review.StatusDraft}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID)
	if err != nil || employeeID == "" {
		api.Fail(w, http.StatusNotFound, "not_found", "no employee record for user", middleware.GetRequestID(r.Context()))
		return
	}

	formID := chi.URLParam(r, "formID")
	result, err := h.Service.SubmitForm(r.Context(), user.TenantID, formID, employeeID, time.Now().UTC())
	if err != nil {
		h.failDomain(w, r, err, "form_submit_failed")
		return
	}
	h.record(r, user, "reviews.form.submit", "review_form", formID, result)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListCalibration(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	records, err := h.Service.ListCalibrationRecords(r.Context(), user.TenantID, chi.URLParam(r, "cycleID"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "calibration_list_failed", "failed to list calibration records", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, records, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetCalibration(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	record, err := h.Service.GetCalibrationRecord(r.Context(), user.TenantID, chi.URLParam(r, "recordID"))
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "calibration record not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, record, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListCalibrationChanges(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	changes, err := h.Service.ListCalibrationChanges(r.Context(), user.TenantID, chi.URLParam(r, "recordID"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "calibration_changes_failed", "failed to list calibration changes", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, changes, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdjustCalibration(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		Rating        *float64 `json:"rating"`
		PotentialTier string   `json:"potentialTier"`
		Justification string   `json:"justification"`
		Reason        string   `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Rating == nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "rating required", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Reason == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "a reason is required for calibration changes", middleware.GetRequestID(r.Context()))
		return
	}

	recordID := chi.URLParam(r, "recordID")
	err := h.Service.AdjustCalibration(r.Context(), user.TenantID, recordID, user.UserID, *payload.Rating, payload.PotentialTier, payload.Justification, payload.Reason)
	if err != nil {
		h.failDomain(w, r, err, "calibration_adjust_failed")
		return
	}
	h.record(r, user, "reviews.calibration.adjust", "calibration_record", recordID, payload)
	api.Success(w, map[string]string{"id": recordID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDisputeCalibration(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Reason == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "a dispute reason is required", middleware.GetRequestID(r.Context()))
		return
	}

	recordID := chi.URLParam(r, "recordID")
	if err := h.Service.DisputeCalibration(r.Context(), user.TenantID, recordID, user.UserID, payload.Reason); err != nil {
		h.failDomain(w, r, err, "calibration_dispute_failed")
		return
	}
	h.record(r, user, "reviews.calibration.dispute", "calibration_record", recordID, payload)
	api.Success(w, map[string]string{"id": recordID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload struct {
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Outcome == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "a dispute outcome is required", middleware.GetRequestID(r.Context()))
		return
	}

	recordID := chi.URLParam(r, "recordID")
	if err := h.Service.ResolveCalibrationDispute(r.Context(), user.TenantID, recordID, user.UserID, payload.Outcome); err != nil {
		h.failDomain(w, r, err, "calibration_resolve_failed")
		return
	}
	h.record(r, user, "reviews.calibration.resolve", "calibration_record", recordID, payload)
	api.Success(w, map[string]string{"id": recordID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleFinalizeCalibration(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	recordID := chi.URLParam(r, "recordID")
	result, err := h.Service.FinalizeCalibration(r.Context(), user.TenantID, recordID, user.UserID, time.Now().UTC())
	if err != nil {
		h.failDomain(w, r, err, "calibration_finalize_failed")
		return
	}
	h.record(r, user, "reviews.calibration.finalize", "calibration_record", recordID, result)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

// failDomain maps domain sentinels to HTTP statuses.
func (h *Handler) failDomain(w http.ResponseWriter, r *http.Request, err error, code string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, review.ErrCycleNotFound),
		errors.Is(err, review.ErrFormNotFound),
		errors.Is(err, review.ErrRecordNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, review.ErrNotFormAuthor):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), requestID)
	case errors.Is(err, review.ErrInvalidPhase),
		errors.Is(err, review.ErrInvalidStatus),
		errors.Is(err, review.ErrKindNotOpen),
		errors.Is(err, review.ErrFormLocked),
		errors.Is(err, review.ErrCalibrationOpen),
		errors.Is(err, review.ErrCalibrationFinalized):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, code, "operation failed", requestID)
	}
}

func optionalDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	parsed, err := shared.ParseDate(raw)
	if err != nil || parsed.IsZero() {
		return nil
	}
	return &parsed
}
