package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/store"
)

// DocumentRepository handles acceptance documents and their line items for
// both document types. The store offers no multi-statement transactions, so
// every multi-row write here is an ordered sequence of independent calls:
// the create path compensates by deleting the new document when item
// insertion fails; the item-replacement path has no compensation and a
// failure leaves the document without its old items (callers must treat that
// as requiring manual reconciliation).
type DocumentRepository struct {
	db *store.DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *store.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, doc_type, number, vendor_id, status, rejection_reason,
       primary_reviewer_id,
       order_number, delivery_date,
       contract_number, project_name, project_location,
       start_date, end_date, completion_date, total_progress,
       created_at, updated_at`

const itemColumns = `id, document_id, doc_type,
       item_name, quantity_ordered, quantity_received, condition,
       work_item_name, planned_progress, actual_progress, quality,
       unit, notes, created_at, updated_at`

// CreateWithItems inserts the document row, then bulk-inserts its line items.
// If any item insert fails, the just-created document row is deleted and a
// single aggregated error is returned. The returned document is fully
// hydrated. An empty item list is tolerated here; submission is where a
// document without items gets rejected.
func (r *DocumentRepository) CreateWithItems(ctx context.Context, doc *Document) error {
	doc.ID = uuid.NewString()

	query := `
		INSERT INTO documents (id, doc_type, number, vendor_id, status, rejection_reason,
		                       primary_reviewer_id,
		                       order_number, delivery_date,
		                       contract_number, project_name, project_location,
		                       start_date, end_date, completion_date, total_progress)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		doc.ID,
		doc.DocType,
		doc.Number,
		doc.VendorID,
		doc.Status,
		doc.RejectionReason,
		doc.PrimaryReviewerID,
		doc.OrderNumber,
		doc.DeliveryDate,
		doc.ContractNumber,
		doc.ProjectName,
		doc.ProjectLocation,
		doc.StartDate,
		doc.EndDate,
		doc.CompletionDate,
		doc.TotalProgress,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to create document")
	}

	if err := r.insertItems(ctx, doc.DocType, doc.ID, doc.Items); err != nil {
		// Compensating delete: the store has no transactions, so roll the
		// document back by hand and surface one aggregated error.
		if _, delErr := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, doc.ID); delErr != nil {
			return apperr.Wrap(err, apperr.ErrCodeInternal,
				fmt.Sprintf("failed to create line items and rollback also failed (%v); document %s requires manual cleanup", delErr, doc.ID))
		}
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to create line items; document creation rolled back, please retry")
	}

	return nil
}

// Update writes the mutable document fields. Line items are untouched; use
// ReplaceItems to swap the item set.
func (r *DocumentRepository) Update(ctx context.Context, doc *Document) error {
	query := `
		UPDATE documents
		SET status              = $3,
		    rejection_reason    = $4,
		    order_number        = $5,
		    delivery_date       = $6,
		    contract_number     = $7,
		    project_name        = $8,
		    project_location    = $9,
		    start_date          = $10,
		    end_date            = $11,
		    completion_date     = $12,
		    total_progress      = $13,
		    updated_at          = NOW()
		WHERE id = $1 AND doc_type = $2
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		doc.ID,
		doc.DocType,
		doc.Status,
		doc.RejectionReason,
		doc.OrderNumber,
		doc.DeliveryDate,
		doc.ContractNumber,
		doc.ProjectName,
		doc.ProjectLocation,
		doc.StartDate,
		doc.EndDate,
		doc.CompletionDate,
		doc.TotalProgress,
	).Scan(&doc.UpdatedAt)

	if err == pgx.ErrNoRows {
		return apperr.NotFound("document", doc.ID)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to update document")
	}
	return nil
}

// ReplaceItems swaps the full line-item set of a document: delete all
// existing rows, then insert the replacement set. This is deliberately
// delete-then-insert, never a merge — an item omitted from the new set is
// removed. There is no compensation: an insert failure after the delete
// leaves the document with no items.
func (r *DocumentRepository) ReplaceItems(ctx context.Context, docType DocType, documentID string, items []*LineItem) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM document_items WHERE document_id = $1 AND doc_type = $2`,
		documentID, docType)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to delete existing line items")
	}

	if err := r.insertItems(ctx, docType, documentID, items); err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal,
			"failed to insert replacement line items; existing items were already removed and require manual reconciliation")
	}
	return nil
}

func (r *DocumentRepository) insertItems(ctx context.Context, docType DocType, documentID string, items []*LineItem) error {
	query := `
		INSERT INTO document_items (id, document_id, doc_type,
		                            item_name, quantity_ordered, quantity_received, condition,
		                            work_item_name, planned_progress, actual_progress, quality,
		                            unit, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	for _, item := range items {
		item.ID = uuid.NewString()
		item.DocumentID = documentID
		item.DocType = docType

		err := r.db.QueryRow(ctx, query,
			item.ID,
			item.DocumentID,
			item.DocType,
			item.ItemName,
			item.QuantityOrdered,
			item.QuantityReceived,
			item.Condition,
			item.WorkItemName,
			item.PlannedProgress,
			item.ActualProgress,
			item.Quality,
			item.Unit,
			item.Notes,
		).Scan(&item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a document with all of its line items.
func (r *DocumentRepository) GetByID(ctx context.Context, docType DocType, id string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND doc_type = $2`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, id, docType))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("document", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to get document")
	}

	items, err := r.GetItems(ctx, docType, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Items = items

	return doc, nil
}

// GetItems retrieves all line items for a document in insertion order.
func (r *DocumentRepository) GetItems(ctx context.Context, docType DocType, documentID string) ([]*LineItem, error) {
	query := `SELECT ` + itemColumns + `
		FROM document_items
		WHERE document_id = $1 AND doc_type = $2
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, documentID, docType)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to get line items")
	}
	defer rows.Close()

	items := make([]*LineItem, 0)
	for rows.Next() {
		item := &LineItem{}
		err := rows.Scan(
			&item.ID,
			&item.DocumentID,
			&item.DocType,
			&item.ItemName,
			&item.QuantityOrdered,
			&item.QuantityReceived,
			&item.Condition,
			&item.WorkItemName,
			&item.PlannedProgress,
			&item.ActualProgress,
			&item.Quality,
			&item.Unit,
			&item.Notes,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to scan line item")
		}
		items = append(items, item)
	}

	return items, nil
}

// ListOptions filters and paginates document listings.
type ListOptions struct {
	VendorID *string
	Status   *Status
	Limit    int
	Offset   int
}

// List retrieves documents of a type with filtering, pagination and an
// exact total count. Items are not hydrated on listings.
func (r *DocumentRepository) List(ctx context.Context, docType DocType, opts ListOptions) ([]*Document, int64, error) {
	filters := store.NewFilters().Eq("doc_type", docType)
	if opts.VendorID != nil {
		filters.Eq("vendor_id", *opts.VendorID)
	}
	if opts.Status != nil {
		filters.Eq("status", *opts.Status)
	}

	where, args := filters.SQL(1)

	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to count documents")
	}

	page, pageArgs := store.Page(len(args)+1, opts.Limit, opts.Offset)
	query := `SELECT ` + documentColumns + ` FROM documents` + where +
		` ORDER BY created_at DESC, number DESC` + page

	rows, err := r.db.Query(ctx, query, append(args, pageArgs...)...)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to list documents")
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to scan document")
		}
		docs = append(docs, doc)
	}

	return docs, total, nil
}

// SetStatus updates the document status and rejection reason in one write.
// Pass reason nil to clear it.
func (r *DocumentRepository) SetStatus(ctx context.Context, docType DocType, id string, status Status, reason *string) error {
	query := `
		UPDATE documents
		SET status = $3, rejection_reason = $4, updated_at = NOW()
		WHERE id = $1 AND doc_type = $2
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, docType, status, reason).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("document", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to update document status")
	}
	return nil
}

// PinPrimaryReviewer sets the primary reviewer if it is still unset. A
// document whose reviewer is already pinned is left untouched.
func (r *DocumentRepository) PinPrimaryReviewer(ctx context.Context, docType DocType, id, reviewerID string) error {
	query := `
		UPDATE documents
		SET primary_reviewer_id = $3, updated_at = NOW()
		WHERE id = $1 AND doc_type = $2 AND primary_reviewer_id IS NULL
	`

	_, err := r.db.Exec(ctx, query, id, docType, reviewerID)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to pin primary reviewer")
	}
	return nil
}

// Delete removes a document with its line items and attachments. The store
// has no transactions, so children go first and the header last; a failure
// partway leaves the children already gone. Status gating (draft only) is
// the service's responsibility.
func (r *DocumentRepository) Delete(ctx context.Context, docType DocType, id string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM document_items WHERE document_id = $1 AND doc_type = $2`, id, docType)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to delete line items")
	}

	_, err = r.db.Exec(ctx,
		`DELETE FROM attachments WHERE document_id = $1 AND doc_type = $2`, id, docType)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to delete attachments")
	}

	tag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND doc_type = $2`, id, docType)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to delete document")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("document", id)
	}

	return nil
}

// GenerateNumber produces the next sequential document number for the
// current calendar month: {PREFIX}/{YYYY}/{MM}/{NNNN}, sequence = count of
// documents of this type created this month + 1. This count-then-format
// pattern is racy: two concurrent creations in the same month can read the
// same count and collide. Known limitation, kept as-is because the store
// offers no locking primitive to serialize it.
func (r *DocumentRepository) GenerateNumber(ctx context.Context, docType DocType, now time.Time) (string, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := monthStart.AddDate(0, 1, 0)

	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE doc_type = $1 AND created_at >= $2 AND created_at < $3`,
		docType, monthStart, nextMonth,
	).Scan(&count)
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrCodeInternal, "failed to count documents for numbering")
	}

	return NumberForCount(docType.NumberPrefix(), now, count), nil
}

// NumberForCount formats a document number for the month of at, given the
// count of documents already created in that month.
func NumberForCount(prefix string, at time.Time, count int64) string {
	return fmt.Sprintf("%s/%04d/%02d/%04d", prefix, at.Year(), int(at.Month()), count+1)
}

// TotalProgress computes the derived BAPP progress percentage: the
// arithmetic mean of each work item's actual progress, rounded to two
// decimals. Zero items yields 0.
func TotalProgress(items []*LineItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range items {
		if item.ActualProgress != nil {
			sum += *item.ActualProgress
		}
	}
	return math.Round(sum/float64(len(items))*100) / 100
}

// ── scan helper ──────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	doc := &Document{}
	err := row.Scan(
		&doc.ID,
		&doc.DocType,
		&doc.Number,
		&doc.VendorID,
		&doc.Status,
		&doc.RejectionReason,
		&doc.PrimaryReviewerID,
		&doc.OrderNumber,
		&doc.DeliveryDate,
		&doc.ContractNumber,
		&doc.ProjectName,
		&doc.ProjectLocation,
		&doc.StartDate,
		&doc.EndDate,
		&doc.CompletionDate,
		&doc.TotalProgress,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
