// Package handler exposes the service operations over HTTP for the API
// gateway. Authentication happens at the gateway, which forwards the
// resolved identity in the X-User-ID and X-User-Role headers.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/payment"
	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
	"github.com/pesio-ai/be-vm-acceptance/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	documents     *service.DocumentService
	approvals     *service.ApprovalService
	attachments   *service.AttachmentService
	notifications *service.NotificationService
	payments      *payment.Service
	log           zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	documents *service.DocumentService,
	approvals *service.ApprovalService,
	attachments *service.AttachmentService,
	notifications *service.NotificationService,
	payments *payment.Service,
	log zerolog.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		documents:     documents,
		approvals:     approvals,
		attachments:   attachments,
		notifications: notifications,
		payments:      payments,
		log:           log,
	}
}

// Register attaches all routes to the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListDocuments(w, r)
		case http.MethodPost:
			h.CreateDocument(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/documents/get", h.GetDocument)
	mux.HandleFunc("/api/v1/documents/update", h.UpdateDocument)
	mux.HandleFunc("/api/v1/documents/delete", h.DeleteDocument)
	mux.HandleFunc("/api/v1/documents/submit", h.SubmitDocument)
	mux.HandleFunc("/api/v1/documents/review", h.StartReview)
	mux.HandleFunc("/api/v1/documents/approve", h.ApproveDocument)
	mux.HandleFunc("/api/v1/documents/reject", h.RejectDocument)
	mux.HandleFunc("/api/v1/documents/revision", h.RequestRevision)
	mux.HandleFunc("/api/v1/documents/history", h.ApprovalHistory)
	mux.HandleFunc("/api/v1/attachments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListAttachments(w, r)
		case http.MethodPost:
			h.UploadAttachment(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/notifications", h.ListNotifications)
	mux.HandleFunc("/api/v1/notifications/unread-count", h.UnreadCount)
	mux.HandleFunc("/api/v1/notifications/read", h.MarkNotificationRead)
	mux.HandleFunc("/api/v1/notifications/unread", h.MarkNotificationUnread)
	mux.HandleFunc("/api/v1/notifications/read-all", h.MarkAllNotificationsRead)
	mux.HandleFunc("/api/v1/notifications/delete", h.DeleteNotification)
	mux.HandleFunc("/api/v1/notifications/clear", h.ClearNotifications)
	mux.HandleFunc("/api/v1/payments/readiness", h.PaymentReadiness)
	mux.HandleFunc("/api/v1/payments/process", h.ProcessPayment)
	mux.HandleFunc("/api/v1/payments/history", h.PaymentHistory)
}

// ── request DTOs ─────────────────────────────────────────────────────────────

type lineItemDTO struct {
	ItemName         *string  `json:"item_name,omitempty"`
	QuantityOrdered  *float64 `json:"quantity_ordered,omitempty"`
	QuantityReceived *float64 `json:"quantity_received,omitempty"`
	Condition        *string  `json:"condition,omitempty"`
	WorkItemName     *string  `json:"work_item_name,omitempty"`
	PlannedProgress  *float64 `json:"planned_progress,omitempty"`
	ActualProgress   *float64 `json:"actual_progress,omitempty"`
	Quality          *string  `json:"quality,omitempty"`
	Unit             string   `json:"unit"`
	Notes            *string  `json:"notes,omitempty"`
}

type documentDTO struct {
	DocType         string         `json:"doc_type"`
	ID              string         `json:"id,omitempty"`
	OrderNumber     *string        `json:"order_number,omitempty"`
	DeliveryDate    *string        `json:"delivery_date,omitempty"`
	ContractNumber  *string        `json:"contract_number,omitempty"`
	ProjectName     *string        `json:"project_name,omitempty"`
	ProjectLocation *string        `json:"project_location,omitempty"`
	StartDate       *string        `json:"start_date,omitempty"`
	EndDate         *string        `json:"end_date,omitempty"`
	CompletionDate  *string        `json:"completion_date,omitempty"`
	Items           []*lineItemDTO `json:"items"`
}

func (d *documentDTO) items() []*service.LineItemInput {
	if d.Items == nil {
		return nil
	}
	items := make([]*service.LineItemInput, 0, len(d.Items))
	for _, it := range d.Items {
		in := &service.LineItemInput{
			ItemName:         it.ItemName,
			QuantityOrdered:  it.QuantityOrdered,
			QuantityReceived: it.QuantityReceived,
			WorkItemName:     it.WorkItemName,
			PlannedProgress:  it.PlannedProgress,
			ActualProgress:   it.ActualProgress,
			Unit:             it.Unit,
			Notes:            it.Notes,
		}
		if it.Condition != nil {
			c := repository.ItemCondition(*it.Condition)
			in.Condition = &c
		}
		if it.Quality != nil {
			q := repository.WorkQuality(*it.Quality)
			in.Quality = &q
		}
		items = append(items, in)
	}
	return items
}

type actionDTO struct {
	DocType string  `json:"doc_type"`
	ID      string  `json:"id"`
	Reason  string  `json:"reason,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

// ── document endpoints ───────────────────────────────────────────────────────

// CreateDocument handles document creation.
func (h *HTTPHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto documentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.documents.Create(r.Context(), actor, &service.CreateDocumentRequest{
		DocType:         repository.DocType(dto.DocType),
		OrderNumber:     dto.OrderNumber,
		DeliveryDate:    dto.DeliveryDate,
		ContractNumber:  dto.ContractNumber,
		ProjectName:     dto.ProjectName,
		ProjectLocation: dto.ProjectLocation,
		StartDate:       dto.StartDate,
		EndDate:         dto.EndDate,
		CompletionDate:  dto.CompletionDate,
		Items:           dto.items(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, doc)
}

// GetDocument handles single-document reads.
func (h *HTTPHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	docType, id, ok := h.docRef(w, r)
	if !ok {
		return
	}

	doc, err := h.documents.Get(r.Context(), docType, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// ListDocuments handles filtered document listings.
func (h *HTTPHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	docType := repository.DocType(r.URL.Query().Get("doc_type"))
	if !docType.Valid() {
		http.Error(w, "doc_type is required", http.StatusBadRequest)
		return
	}

	opts := repository.ListOptions{}
	if v := r.URL.Query().Get("vendor_id"); v != "" {
		opts.VendorID = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := repository.Status(v)
		if !status.Valid() {
			http.Error(w, "unknown status", http.StatusBadRequest)
			return
		}
		opts.Status = &status
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	opts.Limit = pageSize
	opts.Offset = (page - 1) * pageSize

	docs, total, err := h.documents.List(r.Context(), actor, docType, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     total,
		"page":      page,
		"pageSize":  pageSize,
	})
}

// UpdateDocument handles owner edits.
func (h *HTTPHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto documentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := h.documents.Update(r.Context(), actor, &service.UpdateDocumentRequest{
		DocType:         repository.DocType(dto.DocType),
		ID:              dto.ID,
		OrderNumber:     dto.OrderNumber,
		DeliveryDate:    dto.DeliveryDate,
		ContractNumber:  dto.ContractNumber,
		ProjectName:     dto.ProjectName,
		ProjectLocation: dto.ProjectLocation,
		StartDate:       dto.StartDate,
		EndDate:         dto.EndDate,
		CompletionDate:  dto.CompletionDate,
		Items:           dto.items(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles draft deletion.
func (h *HTTPHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto actionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.documents.Delete(r.Context(), actor, repository.DocType(dto.DocType), dto.ID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// ── approval endpoints ───────────────────────────────────────────────────────

// SubmitDocument handles submission for review.
func (h *HTTPHandler) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	actor, dto, ok := h.action(w, r)
	if !ok {
		return
	}

	doc, err := h.approvals.Submit(r.Context(), actor, repository.DocType(dto.DocType), dto.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// StartReview moves a submitted document to in_review.
func (h *HTTPHandler) StartReview(w http.ResponseWriter, r *http.Request) {
	actor, dto, ok := h.action(w, r)
	if !ok {
		return
	}

	doc, err := h.approvals.StartReview(r.Context(), actor, repository.DocType(dto.DocType), dto.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// ApproveDocument handles approval.
func (h *HTTPHandler) ApproveDocument(w http.ResponseWriter, r *http.Request) {
	actor, dto, ok := h.action(w, r)
	if !ok {
		return
	}

	result, err := h.approvals.Approve(r.Context(), actor, repository.DocType(dto.DocType), dto.ID, dto.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := map[string]any{"document": result.Document}
	if result.Warning != "" {
		resp["warning"] = result.Warning
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// RejectDocument handles rejection.
func (h *HTTPHandler) RejectDocument(w http.ResponseWriter, r *http.Request) {
	actor, dto, ok := h.action(w, r)
	if !ok {
		return
	}

	doc, err := h.approvals.Reject(r.Context(), actor, repository.DocType(dto.DocType), dto.ID, dto.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// RequestRevision handles revision requests.
func (h *HTTPHandler) RequestRevision(w http.ResponseWriter, r *http.Request) {
	actor, dto, ok := h.action(w, r)
	if !ok {
		return
	}

	doc, err := h.approvals.RequestRevision(r.Context(), actor, repository.DocType(dto.DocType), dto.ID, dto.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// ApprovalHistory returns the approval trail of a document.
func (h *HTTPHandler) ApprovalHistory(w http.ResponseWriter, r *http.Request) {
	docType, id, ok := h.docRef(w, r)
	if !ok {
		return
	}

	records, err := h.approvals.History(r.Context(), docType, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

// ── attachment endpoints ─────────────────────────────────────────────────────

// UploadAttachment records attachment metadata. The file bytes are written
// to blob storage by the gateway before this call.
func (h *HTTPHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto struct {
		DocType    string `json:"doc_type"`
		DocumentID string `json:"document_id"`
		FileType   string `json:"file_type"`
		FilePath   string `json:"file_path"`
		FileName   string `json:"file_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	att, err := h.attachments.Attach(r.Context(), actor,
		repository.DocType(dto.DocType), dto.DocumentID,
		repository.FileType(dto.FileType), dto.FilePath, dto.FileName)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, att)
}

// ListAttachments returns a document's attachments.
func (h *HTTPHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	docType := repository.DocType(r.URL.Query().Get("doc_type"))
	id := r.URL.Query().Get("document_id")
	if !docType.Valid() || id == "" {
		http.Error(w, "doc_type and document_id are required", http.StatusBadRequest)
		return
	}

	atts, err := h.attachments.List(r.Context(), docType, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"attachments": atts})
}

// ── notification endpoints ───────────────────────────────────────────────────

// ListNotifications returns the caller's inbox.
func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	unreadOnly := r.URL.Query().Get("unread_only") == "true"
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.notifications.List(r.Context(), actor, unreadOnly, pageSize, (page-1)*pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"total":         total,
		"page":          page,
		"pageSize":      pageSize,
	})
}

// UnreadCount returns the caller's unread notification count.
func (h *HTTPHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	count, err := h.notifications.UnreadCount(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"unread": count})
}

// MarkNotificationRead marks one notification read.
func (h *HTTPHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	h.toggleNotification(w, r, true)
}

// MarkNotificationUnread marks one notification unread.
func (h *HTTPHandler) MarkNotificationUnread(w http.ResponseWriter, r *http.Request) {
	h.toggleNotification(w, r, false)
}

func (h *HTTPHandler) toggleNotification(w http.ResponseWriter, r *http.Request, read bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	if read {
		err = h.notifications.MarkRead(r.Context(), actor, dto.ID)
	} else {
		err = h.notifications.MarkUnread(r.Context(), actor, dto.ID)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

// MarkAllNotificationsRead marks the caller's whole inbox read.
func (h *HTTPHandler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	count, err := h.notifications.MarkAllRead(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"updated": count})
}

// DeleteNotification removes one notification.
func (h *HTTPHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.notifications.Delete(r.Context(), actor, dto.ID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// ClearNotifications empties the caller's inbox.
func (h *HTTPHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	count, err := h.notifications.Clear(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": count})
}

// ── payment endpoints ────────────────────────────────────────────────────────

// PaymentReadiness reports whether a document may be paid, with blockers.
func (h *HTTPHandler) PaymentReadiness(w http.ResponseWriter, r *http.Request) {
	docType, id, ok := h.docRef(w, r)
	if !ok {
		return
	}

	readiness, err := h.payments.CheckReadiness(r.Context(), docType, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, readiness)
}

// ProcessPayment runs a settlement attempt.
func (h *HTTPHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}

	var dto struct {
		DocType        string   `json:"doc_type"`
		DocumentID     string   `json:"document_id"`
		Amount         *float64 `json:"amount,omitempty"`
		ContractAmount *float64 `json:"contract_amount,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.payments.Process(r.Context(), &payment.ProcessRequest{
		DocType:        repository.DocType(dto.DocType),
		DocumentID:     dto.DocumentID,
		Amount:         dto.Amount,
		ContractAmount: dto.ContractAmount,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result.Response)
}

// PaymentHistory returns a vendor's settlement attempts.
func (h *HTTPHandler) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	vendorID := r.URL.Query().Get("vendor_id")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	logs, total, err := h.payments.History(r.Context(), actor, vendorID, pageSize, (page-1)*pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"payments": logs,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (h *HTTPHandler) actor(w http.ResponseWriter, r *http.Request) (repository.Actor, bool) {
	id := r.Header.Get("X-User-ID")
	role := repository.Role(r.Header.Get("X-User-Role"))
	if id == "" || !role.Valid() {
		http.Error(w, "Missing or invalid identity headers", http.StatusUnauthorized)
		return repository.Actor{}, false
	}
	return repository.Actor{ID: id, Role: role}, true
}

func (h *HTTPHandler) action(w http.ResponseWriter, r *http.Request) (repository.Actor, *actionDTO, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return repository.Actor{}, nil, false
	}

	actor, ok := h.actor(w, r)
	if !ok {
		return repository.Actor{}, nil, false
	}

	var dto actionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return repository.Actor{}, nil, false
	}
	return actor, &dto, true
}

func (h *HTTPHandler) docRef(w http.ResponseWriter, r *http.Request) (repository.DocType, string, bool) {
	docType := repository.DocType(r.URL.Query().Get("doc_type"))
	id := r.URL.Query().Get("id")
	if !docType.Valid() || id == "" {
		http.Error(w, "doc_type and id are required", http.StatusBadRequest)
		return "", "", false
	}
	return docType, id, true
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.Code(err) {
	case apperr.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case apperr.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperr.ErrCodeConflict:
		status = http.StatusConflict
	case apperr.ErrCodePermissionDenied:
		status = http.StatusForbidden
	case apperr.ErrCodeFailedPrecondition:
		status = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
