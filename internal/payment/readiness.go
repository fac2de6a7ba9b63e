package payment

import (
	"context"
	"fmt"

	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

// DocumentGetter retrieves documents for readiness evaluation.
type DocumentGetter interface {
	GetByID(ctx context.Context, docType repository.DocType, id string) (*repository.Document, error)
}

// LogStore is the payment-log surface the payment components consume.
type LogStore interface {
	Append(ctx context.Context, pl *repository.PaymentLog) error
	HasSuccessful(ctx context.Context, docType repository.DocType, documentID string) (bool, error)
	ListByVendor(ctx context.Context, vendorID string, limit, offset int) ([]*repository.PaymentLog, int64, error)
}

// VendorDirectory checks vendor account state.
type VendorDirectory interface {
	IsActiveVendor(ctx context.Context, id string) (bool, error)
}

// Readiness is the outcome of a readiness check. When not ready, Blockers
// lists every blocking condition, not just the first.
type Readiness struct {
	Ready    bool     `json:"ready"`
	Blockers []string `json:"blockers,omitempty"`
}

// ReadinessChecker decides whether a document may be paid.
type ReadinessChecker struct {
	docs    DocumentGetter
	logs    LogStore
	vendors VendorDirectory
}

// NewReadinessChecker creates a readiness checker.
func NewReadinessChecker(docs DocumentGetter, logs LogStore, vendors VendorDirectory) *ReadinessChecker {
	return &ReadinessChecker{docs: docs, logs: logs, vendors: vendors}
}

// Check evaluates all payment preconditions for a document: approved
// status, no prior successful settlement, active vendor account. Every
// failed condition is collected as a blocker.
func (c *ReadinessChecker) Check(ctx context.Context, docType repository.DocType, documentID string) (*Readiness, *repository.Document, error) {
	doc, err := c.docs.GetByID(ctx, docType, documentID)
	if err != nil {
		return nil, nil, err
	}

	blockers := make([]string, 0)

	if doc.Status != repository.StatusApproved {
		blockers = append(blockers,
			fmt.Sprintf("document is not approved (status '%s')", doc.Status))
	}

	paid, err := c.logs.HasSuccessful(ctx, docType, documentID)
	if err != nil {
		return nil, nil, err
	}
	if paid {
		blockers = append(blockers, "a successful payment already exists for this document")
	}

	active, err := c.vendors.IsActiveVendor(ctx, doc.VendorID)
	if err != nil {
		return nil, nil, err
	}
	if !active {
		blockers = append(blockers, "vendor account is inactive")
	}

	return &Readiness{Ready: len(blockers) == 0, Blockers: blockers}, doc, nil
}
