package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

// DocumentStore is the document persistence surface the services consume.
// Implemented by repository.DocumentRepository; tests substitute fakes.
type DocumentStore interface {
	CreateWithItems(ctx context.Context, doc *repository.Document) error
	Update(ctx context.Context, doc *repository.Document) error
	ReplaceItems(ctx context.Context, docType repository.DocType, documentID string, items []*repository.LineItem) error
	GetByID(ctx context.Context, docType repository.DocType, id string) (*repository.Document, error)
	List(ctx context.Context, docType repository.DocType, opts repository.ListOptions) ([]*repository.Document, int64, error)
	SetStatus(ctx context.Context, docType repository.DocType, id string, status repository.Status, reason *string) error
	PinPrimaryReviewer(ctx context.Context, docType repository.DocType, id, reviewerID string) error
	Delete(ctx context.Context, docType repository.DocType, id string) error
	GenerateNumber(ctx context.Context, docType repository.DocType, now time.Time) (string, error)
}

// ApprovalStore is the approval-history surface consumed by the approval
// service.
type ApprovalStore interface {
	Append(ctx context.Context, rec *repository.ApprovalRecord) error
	HasApproved(ctx context.Context, docType repository.DocType, documentID, approverID string) (bool, error)
	ListByDocument(ctx context.Context, docType repository.DocType, documentID string) ([]*repository.ApprovalRecord, error)
}

// SignatureStore looks up signature attachments for the approval
// precondition check.
type SignatureStore interface {
	SignatureFor(ctx context.Context, docType repository.DocType, documentID, uploadedBy string) (*repository.Attachment, error)
}

// Dispatcher fires lifecycle notifications. All methods are fire-and-forget
// and must never fail the calling operation.
type Dispatcher interface {
	DocumentSubmitted(ctx context.Context, doc *repository.Document)
	DocumentApproved(ctx context.Context, doc *repository.Document, approverID string)
	DocumentRejected(ctx context.Context, doc *repository.Document, reason string)
	RevisionRequested(ctx context.Context, doc *repository.Document, reason string)
}
