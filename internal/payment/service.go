package payment

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

// Notifier announces successful settlements. Fire-and-forget.
type Notifier interface {
	PaymentProcessed(ctx context.Context, pl *repository.PaymentLog)
}

// Service runs the settlement flow: readiness check, amount resolution,
// simulated gateway call, payment-log append (always, before any
// notification), and a success notification.
type Service struct {
	checker    *ReadinessChecker
	gateway    *Gateway
	logs       LogStore
	dispatcher Notifier
	log        zerolog.Logger
}

// NewService creates a payment service.
func NewService(checker *ReadinessChecker, gateway *Gateway, logs LogStore, dispatcher Notifier, log zerolog.Logger) *Service {
	return &Service{
		checker:    checker,
		gateway:    gateway,
		logs:       logs,
		dispatcher: dispatcher,
		log:        log,
	}
}

// ProcessRequest asks for a settlement attempt. Amount may be nil for BAPP,
// in which case it defaults to ContractAmount * total_progress / 100.
type ProcessRequest struct {
	DocType        repository.DocType
	DocumentID     string
	Amount         *float64
	ContractAmount *float64
}

// Result is the outcome of a processed (possibly failed) settlement.
type Result struct {
	Log      *repository.PaymentLog
	Response *GatewayResponse
}

// CheckReadiness evaluates whether the document may be paid.
func (s *Service) CheckReadiness(ctx context.Context, docType repository.DocType, documentID string) (*Readiness, error) {
	readiness, _, err := s.checker.Check(ctx, docType, documentID)
	return readiness, err
}

// Process settles a payment for an approved document. The attempt is
// appended to the payment log whether it succeeds or fails; the vendor is
// notified only on success.
func (s *Service) Process(ctx context.Context, req *ProcessRequest) (*Result, error) {
	readiness, doc, err := s.checker.Check(ctx, req.DocType, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if !readiness.Ready {
		return nil, apperr.FailedPrecondition(
			"document is not ready for payment: " + strings.Join(readiness.Blockers, "; "))
	}

	amount, err := resolveAmount(req, doc)
	if err != nil {
		return nil, err
	}

	resp := s.gateway.Settle(amount)

	pl := &repository.PaymentLog{
		DocType:       req.DocType,
		DocumentID:    req.DocumentID,
		VendorID:      doc.VendorID,
		Amount:        amount,
		Status:        resp.Status,
		TransactionID: resp.TransactionID,
		GatewayResponse: map[string]any{
			"status":    string(resp.Status),
			"timestamp": resp.Timestamp,
		},
	}
	if resp.EstimatedSettlement != nil {
		pl.GatewayResponse["estimated_settlement"] = *resp.EstimatedSettlement
	}
	if resp.ErrorCode != nil {
		pl.GatewayResponse["error_code"] = *resp.ErrorCode
		pl.GatewayResponse["error_message"] = *resp.ErrorMessage
	}

	// The audit row always lands before any notification fires.
	if err := s.logs.Append(ctx, pl); err != nil {
		return nil, err
	}

	if resp.Status == repository.PaymentSuccess {
		s.log.Info().
			Str("document_id", req.DocumentID).
			Str("doc_type", string(req.DocType)).
			Str("transaction_id", resp.TransactionID).
			Float64("amount", amount).
			Msg("Payment settled")
		s.dispatcher.PaymentProcessed(ctx, pl)
	} else {
		s.log.Warn().
			Str("document_id", req.DocumentID).
			Str("transaction_id", resp.TransactionID).
			Str("error_code", deref(resp.ErrorCode)).
			Msg("Payment settlement failed")
	}

	return &Result{Log: pl, Response: resp}, nil
}

// History returns a vendor's settlement attempts, newest first. Vendors are
// restricted to their own history.
func (s *Service) History(ctx context.Context, actor repository.Actor, vendorID string, limit, offset int) ([]*repository.PaymentLog, int64, error) {
	if actor.Role == repository.RoleVendor {
		vendorID = actor.ID
	}
	if vendorID == "" {
		return nil, 0, apperr.InvalidInput("vendor_id", "vendor id is required")
	}
	if limit <= 0 {
		limit = 20
	}
	return s.logs.ListByVendor(ctx, vendorID, limit, offset)
}

// resolveAmount returns the explicit amount, or for BAPP derives it from
// the contract amount and the approved progress percentage.
func resolveAmount(req *ProcessRequest, doc *repository.Document) (float64, error) {
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return 0, apperr.InvalidInput("amount", "amount must be positive")
		}
		return *req.Amount, nil
	}

	if req.DocType == repository.DocTypeBAPP && req.ContractAmount != nil && doc.TotalProgress != nil {
		contract := *req.ContractAmount
		progress := *doc.TotalProgress
		amount := math.Round(contract*progress) / 100 // contract * progress% to 2 decimals
		if amount <= 0 {
			return 0, apperr.InvalidInput("amount", "derived settlement amount must be positive")
		}
		return amount, nil
	}

	return 0, apperr.InvalidInput("amount", "amount is required")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
