package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

// DocumentService owns the document lifecycle outside of approval
// transitions: creation with number generation, owner edits (including the
// revision_required → draft reset), listing and draft deletion.
type DocumentService struct {
	docs DocumentStore
	log  zerolog.Logger
}

// NewDocumentService creates a new document service.
func NewDocumentService(docs DocumentStore, log zerolog.Logger) *DocumentService {
	return &DocumentService{docs: docs, log: log}
}

// LineItemInput is one requested line item. BAPB fields and BAPP fields are
// mutually exclusive per document type.
type LineItemInput struct {
	// BAPB item fields.
	ItemName         *string
	QuantityOrdered  *float64
	QuantityReceived *float64
	Condition        *repository.ItemCondition

	// BAPP work item fields.
	WorkItemName    *string
	PlannedProgress *float64
	ActualProgress  *float64
	Quality         *repository.WorkQuality

	Unit  string
	Notes *string
}

// CreateDocumentRequest carries the fields for a new document.
type CreateDocumentRequest struct {
	DocType repository.DocType

	// BAPB fields.
	OrderNumber  *string
	DeliveryDate *string

	// BAPP fields.
	ContractNumber  *string
	ProjectName     *string
	ProjectLocation *string
	StartDate       *string
	EndDate         *string
	CompletionDate  *string

	Items []*LineItemInput
}

// UpdateDocumentRequest carries owner edits. A nil Items leaves the existing
// line items untouched; a non-nil Items (even empty) replaces the full set.
type UpdateDocumentRequest struct {
	DocType repository.DocType
	ID      string

	OrderNumber  *string
	DeliveryDate *string

	ContractNumber  *string
	ProjectName     *string
	ProjectLocation *string
	StartDate       *string
	EndDate         *string
	CompletionDate  *string

	Items []*LineItemInput
}

// Create validates the request, generates the document number and persists
// the document with its line items. An empty item list produces a document
// with zero items; submission is where that state gets rejected.
func (s *DocumentService) Create(ctx context.Context, actor repository.Actor, req *CreateDocumentRequest) (*repository.Document, error) {
	if actor.Role != repository.RoleVendor {
		return nil, apperr.PermissionDenied("only vendors can create acceptance documents")
	}
	if !req.DocType.Valid() {
		return nil, apperr.InvalidInput("doc_type", "unknown document type")
	}

	if err := validateTypeFields(req.DocType, typeFields{
		OrderNumber:     req.OrderNumber,
		DeliveryDate:    req.DeliveryDate,
		ContractNumber:  req.ContractNumber,
		ProjectName:     req.ProjectName,
		ProjectLocation: req.ProjectLocation,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		CompletionDate:  req.CompletionDate,
	}); err != nil {
		return nil, err
	}

	items, err := buildItems(req.DocType, req.Items)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	number, err := s.docs.GenerateNumber(ctx, req.DocType, now)
	if err != nil {
		return nil, err
	}

	doc := &repository.Document{
		DocType:         req.DocType,
		Number:          number,
		VendorID:        actor.ID,
		Status:          repository.StatusDraft,
		OrderNumber:     req.OrderNumber,
		DeliveryDate:    req.DeliveryDate,
		ContractNumber:  req.ContractNumber,
		ProjectName:     req.ProjectName,
		ProjectLocation: req.ProjectLocation,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		CompletionDate:  req.CompletionDate,
		Items:           items,
	}

	if req.DocType == repository.DocTypeBAPP {
		progress := repository.TotalProgress(items)
		doc.TotalProgress = &progress
	}

	if err := s.docs.CreateWithItems(ctx, doc); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Str("doc_type", string(doc.DocType)).
		Str("number", doc.Number).
		Str("vendor_id", doc.VendorID).
		Int("item_count", len(doc.Items)).
		Msg("Document created")

	return doc, nil
}

// Update applies owner edits to a draft or revision_required document.
// Editing a revision_required document resets its status to draft and
// clears the rejection reason in the same call: the re-edit is the implicit
// un-reject. When Items is non-nil the full line-item set is replaced
// (delete-then-insert) and the derived progress is recomputed.
func (s *DocumentService) Update(ctx context.Context, actor repository.Actor, req *UpdateDocumentRequest) (*repository.Document, error) {
	doc, err := s.docs.GetByID(ctx, req.DocType, req.ID)
	if err != nil {
		return nil, err
	}

	if doc.VendorID != actor.ID {
		return nil, apperr.PermissionDenied("only the owning vendor can edit this document")
	}
	if !doc.Status.Editable() {
		return nil, apperr.Conflict("cannot edit document with status '" + string(doc.Status) + "'")
	}

	if err := applyTypeFields(doc, req); err != nil {
		return nil, err
	}

	var items []*repository.LineItem
	if req.Items != nil {
		items, err = buildItems(req.DocType, req.Items)
		if err != nil {
			return nil, err
		}
		if req.DocType == repository.DocTypeBAPP {
			progress := repository.TotalProgress(items)
			doc.TotalProgress = &progress
		}
	}

	// Edit implies un-reject: revision_required goes back to draft and the
	// reason is cleared as part of the same update.
	if doc.Status == repository.StatusRevisionRequired {
		doc.Status = repository.StatusDraft
		doc.RejectionReason = nil
	}

	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, err
	}

	if req.Items != nil {
		if err := s.docs.ReplaceItems(ctx, req.DocType, doc.ID, items); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Str("doc_type", string(doc.DocType)).
		Bool("items_replaced", req.Items != nil).
		Msg("Document updated")

	return s.docs.GetByID(ctx, req.DocType, doc.ID)
}

// Get retrieves a document with its items.
func (s *DocumentService) Get(ctx context.Context, docType repository.DocType, id string) (*repository.Document, error) {
	return s.docs.GetByID(ctx, docType, id)
}

// List returns documents of a type. Vendors only ever see their own.
func (s *DocumentService) List(ctx context.Context, actor repository.Actor, docType repository.DocType, opts repository.ListOptions) ([]*repository.Document, int64, error) {
	if actor.Role == repository.RoleVendor {
		opts.VendorID = &actor.ID
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	return s.docs.List(ctx, docType, opts)
}

// Delete removes a document. Only drafts may be deleted, and only by their
// owning vendor.
func (s *DocumentService) Delete(ctx context.Context, actor repository.Actor, docType repository.DocType, id string) error {
	doc, err := s.docs.GetByID(ctx, docType, id)
	if err != nil {
		return err
	}

	if doc.VendorID != actor.ID {
		return apperr.PermissionDenied("only the owning vendor can delete this document")
	}
	if doc.Status != repository.StatusDraft {
		return apperr.Conflict("cannot delete document with status '" + string(doc.Status) + "'")
	}

	if err := s.docs.Delete(ctx, docType, id); err != nil {
		return err
	}

	s.log.Info().
		Str("document_id", id).
		Str("doc_type", string(docType)).
		Str("number", doc.Number).
		Msg("Document deleted")

	return nil
}

// ── validation helpers ───────────────────────────────────────────────────────

type typeFields struct {
	OrderNumber     *string
	DeliveryDate    *string
	ContractNumber  *string
	ProjectName     *string
	ProjectLocation *string
	StartDate       *string
	EndDate         *string
	CompletionDate  *string
}

func validateTypeFields(docType repository.DocType, f typeFields) error {
	switch docType {
	case repository.DocTypeBAPB:
		if f.OrderNumber == nil || strings.TrimSpace(*f.OrderNumber) == "" {
			return apperr.InvalidInput("order_number", "order number is required")
		}
		if err := requireDate("delivery_date", f.DeliveryDate); err != nil {
			return err
		}
	case repository.DocTypeBAPP:
		if f.ContractNumber == nil || strings.TrimSpace(*f.ContractNumber) == "" {
			return apperr.InvalidInput("contract_number", "contract number is required")
		}
		if f.ProjectName == nil || strings.TrimSpace(*f.ProjectName) == "" {
			return apperr.InvalidInput("project_name", "project name is required")
		}
		if f.ProjectLocation == nil || strings.TrimSpace(*f.ProjectLocation) == "" {
			return apperr.InvalidInput("project_location", "project location is required")
		}
		if err := requireDate("start_date", f.StartDate); err != nil {
			return err
		}
		if err := requireDate("end_date", f.EndDate); err != nil {
			return err
		}
		if f.CompletionDate != nil {
			if err := requireDate("completion_date", f.CompletionDate); err != nil {
				return err
			}
		}
	}
	return nil
}

func requireDate(field string, value *string) error {
	if value == nil || *value == "" {
		return apperr.InvalidInput(field, field+" is required")
	}
	if _, err := time.Parse("2006-01-02", *value); err != nil {
		return apperr.InvalidInput(field, "invalid date format, expected YYYY-MM-DD")
	}
	return nil
}

func applyTypeFields(doc *repository.Document, req *UpdateDocumentRequest) error {
	if err := validateTypeFields(req.DocType, typeFields{
		OrderNumber:     pick(req.OrderNumber, doc.OrderNumber),
		DeliveryDate:    pick(req.DeliveryDate, doc.DeliveryDate),
		ContractNumber:  pick(req.ContractNumber, doc.ContractNumber),
		ProjectName:     pick(req.ProjectName, doc.ProjectName),
		ProjectLocation: pick(req.ProjectLocation, doc.ProjectLocation),
		StartDate:       pick(req.StartDate, doc.StartDate),
		EndDate:         pick(req.EndDate, doc.EndDate),
		CompletionDate:  pick(req.CompletionDate, doc.CompletionDate),
	}); err != nil {
		return err
	}

	if req.OrderNumber != nil {
		doc.OrderNumber = req.OrderNumber
	}
	if req.DeliveryDate != nil {
		doc.DeliveryDate = req.DeliveryDate
	}
	if req.ContractNumber != nil {
		doc.ContractNumber = req.ContractNumber
	}
	if req.ProjectName != nil {
		doc.ProjectName = req.ProjectName
	}
	if req.ProjectLocation != nil {
		doc.ProjectLocation = req.ProjectLocation
	}
	if req.StartDate != nil {
		doc.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		doc.EndDate = req.EndDate
	}
	if req.CompletionDate != nil {
		doc.CompletionDate = req.CompletionDate
	}
	return nil
}

func pick(requested, current *string) *string {
	if requested != nil {
		return requested
	}
	return current
}

func buildItems(docType repository.DocType, inputs []*LineItemInput) ([]*repository.LineItem, error) {
	items := make([]*repository.LineItem, 0, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in.Unit) == "" {
			return nil, apperr.InvalidInput("unit", "unit is required")
		}

		item := &repository.LineItem{
			DocType: docType,
			Unit:    in.Unit,
			Notes:   in.Notes,
		}

		switch docType {
		case repository.DocTypeBAPB:
			if in.ItemName == nil || strings.TrimSpace(*in.ItemName) == "" {
				return nil, apperr.InvalidInput("item_name", "item name is required")
			}
			if in.QuantityOrdered == nil || *in.QuantityOrdered <= 0 {
				return nil, apperr.InvalidInput("quantity_ordered", "quantity ordered must be positive")
			}
			if in.QuantityReceived == nil || *in.QuantityReceived < 0 {
				return nil, apperr.InvalidInput("quantity_received", "quantity received cannot be negative")
			}
			condition := repository.ConditionGood
			if in.Condition != nil {
				if !in.Condition.Valid() {
					return nil, apperr.InvalidInput("condition", "unknown item condition")
				}
				condition = *in.Condition
			}
			item.ItemName = in.ItemName
			item.QuantityOrdered = in.QuantityOrdered
			item.QuantityReceived = in.QuantityReceived
			item.Condition = &condition

		case repository.DocTypeBAPP:
			if in.WorkItemName == nil || strings.TrimSpace(*in.WorkItemName) == "" {
				return nil, apperr.InvalidInput("work_item_name", "work item name is required")
			}
			if in.PlannedProgress == nil || *in.PlannedProgress < 0 || *in.PlannedProgress > 100 {
				return nil, apperr.InvalidInput("planned_progress", "planned progress must be between 0 and 100")
			}
			if in.ActualProgress == nil || *in.ActualProgress < 0 || *in.ActualProgress > 100 {
				return nil, apperr.InvalidInput("actual_progress", "actual progress must be between 0 and 100")
			}
			quality := repository.QualityAcceptable
			if in.Quality != nil {
				if !in.Quality.Valid() {
					return nil, apperr.InvalidInput("quality", "unknown work quality")
				}
				quality = *in.Quality
			}
			item.WorkItemName = in.WorkItemName
			item.PlannedProgress = in.PlannedProgress
			item.ActualProgress = in.ActualProgress
			item.Quality = &quality
		}

		items = append(items, item)
	}
	return items, nil
}
