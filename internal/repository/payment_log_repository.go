package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/store"
)

// PaymentLogRepository records settlement attempts. Append-only: every
// attempt, failed or successful, gets a row before any notification fires.
type PaymentLogRepository struct {
	db *store.DB
}

// NewPaymentLogRepository creates a new PaymentLogRepository.
func NewPaymentLogRepository(db *store.DB) *PaymentLogRepository {
	return &PaymentLogRepository{db: db}
}

// Append inserts a payment log entry.
func (r *PaymentLogRepository) Append(ctx context.Context, pl *PaymentLog) error {
	pl.ID = uuid.NewString()

	query := `
		INSERT INTO payment_logs (id, doc_type, document_id, vendor_id,
		                          amount, status, transaction_id, gateway_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING processed_at
	`

	err := r.db.QueryRow(ctx, query,
		pl.ID,
		pl.DocType,
		pl.DocumentID,
		pl.VendorID,
		pl.Amount,
		pl.Status,
		pl.TransactionID,
		pl.GatewayResponse,
	).Scan(&pl.ProcessedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to record payment attempt")
	}
	return nil
}

// HasSuccessful reports whether a successful settlement already exists for
// the document. Used by the readiness check to block duplicate payment.
func (r *PaymentLogRepository) HasSuccessful(ctx context.Context, docType DocType, documentID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payment_logs
			WHERE doc_type = $1 AND document_id = $2 AND status = 'success'
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, docType, documentID).Scan(&exists)
	if err != nil {
		return false, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to check payment history")
	}
	return exists, nil
}

// ListByVendor returns a vendor's payment attempts, newest first.
func (r *PaymentLogRepository) ListByVendor(ctx context.Context, vendorID string, limit, offset int) ([]*PaymentLog, int64, error) {
	filters := store.NewFilters().Eq("vendor_id", vendorID)
	where, args := filters.SQL(1)

	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payment_logs`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to count payment logs")
	}

	page, pageArgs := store.Page(len(args)+1, limit, offset)
	query := `
		SELECT id, doc_type, document_id, vendor_id,
		       amount, status, transaction_id, gateway_response, processed_at
		FROM payment_logs` + where + `
		ORDER BY processed_at DESC` + page

	rows, err := r.db.Query(ctx, query, append(args, pageArgs...)...)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to list payment logs")
	}
	defer rows.Close()

	logs := make([]*PaymentLog, 0)
	for rows.Next() {
		pl := &PaymentLog{}
		err := rows.Scan(
			&pl.ID,
			&pl.DocType,
			&pl.DocumentID,
			&pl.VendorID,
			&pl.Amount,
			&pl.Status,
			&pl.TransactionID,
			&pl.GatewayResponse,
			&pl.ProcessedAt,
		)
		if err != nil {
			return nil, 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to scan payment log")
		}
		logs = append(logs, pl)
	}

	return logs, total, nil
}
