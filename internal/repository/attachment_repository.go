package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/store"
)

// AttachmentRepository stores file references owned by documents. The blob
// contents live in external storage keyed by file_path; only metadata rows
// live here.
type AttachmentRepository struct {
	db *store.DB
}

// NewAttachmentRepository creates a new AttachmentRepository.
func NewAttachmentRepository(db *store.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Insert records an attachment. Signature duplicates for the same
// (document, uploader) pair are tolerated; readers take the latest.
func (r *AttachmentRepository) Insert(ctx context.Context, att *Attachment) error {
	att.ID = uuid.NewString()

	query := `
		INSERT INTO attachments (id, doc_type, document_id, file_type, file_path, file_name, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		att.ID,
		att.DocType,
		att.DocumentID,
		att.FileType,
		att.FilePath,
		att.FileName,
		att.UploadedBy,
	).Scan(&att.CreatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to save attachment")
	}
	return nil
}

// SignatureFor returns the most recent signature attachment uploaded by the
// given user for a document, or nil when none exists.
func (r *AttachmentRepository) SignatureFor(ctx context.Context, docType DocType, documentID, uploadedBy string) (*Attachment, error) {
	query := `
		SELECT id, doc_type, document_id, file_type, file_path, file_name, uploaded_by, created_at
		FROM attachments
		WHERE doc_type = $1 AND document_id = $2 AND uploaded_by = $3 AND file_type = 'signature'
		ORDER BY created_at DESC
		LIMIT 1
	`

	att := &Attachment{}
	err := r.db.QueryRow(ctx, query, docType, documentID, uploadedBy).Scan(
		&att.ID,
		&att.DocType,
		&att.DocumentID,
		&att.FileType,
		&att.FilePath,
		&att.FileName,
		&att.UploadedBy,
		&att.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to look up signature")
	}
	return att, nil
}

// ListByDocument returns all attachments for a document, oldest first.
func (r *AttachmentRepository) ListByDocument(ctx context.Context, docType DocType, documentID string) ([]*Attachment, error) {
	query := `
		SELECT id, doc_type, document_id, file_type, file_path, file_name, uploaded_by, created_at
		FROM attachments
		WHERE doc_type = $1 AND document_id = $2
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, docType, documentID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to list attachments")
	}
	defer rows.Close()

	atts := make([]*Attachment, 0)
	for rows.Next() {
		att := &Attachment{}
		err := rows.Scan(
			&att.ID,
			&att.DocType,
			&att.DocumentID,
			&att.FileType,
			&att.FilePath,
			&att.FileName,
			&att.UploadedBy,
			&att.CreatedAt,
		)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to scan attachment")
		}
		atts = append(atts, att)
	}

	return atts, nil
}

// DeleteByDocument removes all attachment rows for a document.
func (r *AttachmentRepository) DeleteByDocument(ctx context.Context, docType DocType, documentID string) error {
	filters := store.NewFilters().Eq("doc_type", docType).Eq("document_id", documentID)
	where, args := filters.SQL(1)

	_, err := r.db.Exec(ctx, `DELETE FROM attachments`+where, args...)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to delete attachments")
	}
	return nil
}
