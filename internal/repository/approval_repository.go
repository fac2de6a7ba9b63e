package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/store"
)

// ApprovalRepository manages the append-only approval history. Records are
// never updated or deleted; the at-most-one-approval-per-approver rule is
// enforced by the approval service through HasApproved, not by a storage
// constraint.
type ApprovalRepository struct {
	db *store.DB
}

// NewApprovalRepository creates a new ApprovalRepository.
func NewApprovalRepository(db *store.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Append inserts an approval record.
func (r *ApprovalRepository) Append(ctx context.Context, rec *ApprovalRecord) error {
	rec.ID = uuid.NewString()

	query := `
		INSERT INTO approval_records (id, doc_type, document_id, approver_id, action, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING approved_at
	`

	err := r.db.QueryRow(ctx, query,
		rec.ID,
		rec.DocType,
		rec.DocumentID,
		rec.ApproverID,
		rec.Action,
		rec.Notes,
	).Scan(&rec.ApprovedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to record approval")
	}
	return nil
}

// HasApproved reports whether the approver already has an approved-action
// record for this document. Read-then-write with no compare-and-swap: two
// concurrent approvals can both pass this check, the status write is
// last-write-wins.
func (r *ApprovalRepository) HasApproved(ctx context.Context, docType DocType, documentID, approverID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM approval_records
			WHERE doc_type = $1 AND document_id = $2 AND approver_id = $3 AND action = 'approved'
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, docType, documentID, approverID).Scan(&exists)
	if err != nil {
		return false, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to check prior approval")
	}
	return exists, nil
}

// ListByDocument returns the approval history for a document, oldest first.
func (r *ApprovalRepository) ListByDocument(ctx context.Context, docType DocType, documentID string) ([]*ApprovalRecord, error) {
	query := `
		SELECT id, doc_type, document_id, approver_id, action, notes, approved_at
		FROM approval_records
		WHERE doc_type = $1 AND document_id = $2
		ORDER BY approved_at
	`

	rows, err := r.db.Query(ctx, query, docType, documentID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to list approvals")
	}
	defer rows.Close()

	records := make([]*ApprovalRecord, 0)
	for rows.Next() {
		rec := &ApprovalRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.DocType,
			&rec.DocumentID,
			&rec.ApproverID,
			&rec.Action,
			&rec.Notes,
			&rec.ApprovedAt,
		)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to scan approval record")
		}
		records = append(records, rec)
	}

	return records, nil
}
