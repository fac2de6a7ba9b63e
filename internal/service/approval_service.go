package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

// ApprovalService is the approval state machine. It validates role and
// status preconditions before any write, appends the approval record, then
// drives the status transition; notifications fire last and are
// fire-and-forget. Role eligibility comes from the capability table in the
// repository package, not from per-operation string checks.
//
// The double-approval check and the first-approver pinning are both
// read-then-write with no compare-and-swap; two concurrent approvals by
// different reviewers can both pass the check, with the single status field
// settling last-write-wins. Known limitation, kept as-is.
type ApprovalService struct {
	docs       DocumentStore
	approvals  ApprovalStore
	signatures SignatureStore
	dispatcher Dispatcher
	log        zerolog.Logger
}

// NewApprovalService creates a new approval service.
func NewApprovalService(
	docs DocumentStore,
	approvals ApprovalStore,
	signatures SignatureStore,
	dispatcher Dispatcher,
	log zerolog.Logger,
) *ApprovalService {
	return &ApprovalService{
		docs:       docs,
		approvals:  approvals,
		signatures: signatures,
		dispatcher: dispatcher,
		log:        log,
	}
}

// ApprovalResult is the outcome of an approve call. Warning is set for the
// BAPB soft signature path and empty otherwise.
type ApprovalResult struct {
	Document *repository.Document
	Warning  string
}

// Submit moves a draft or revision_required document to submitted and
// broadcasts to all active reviewer-eligible users. Only the owning vendor
// may submit, and only with at least one line item.
func (s *ApprovalService) Submit(ctx context.Context, actor repository.Actor, docType repository.DocType, id string) (*repository.Document, error) {
	doc, err := s.docs.GetByID(ctx, docType, id)
	if err != nil {
		return nil, err
	}

	if doc.VendorID != actor.ID {
		return nil, apperr.PermissionDenied("only the owning vendor can submit this document")
	}
	if !doc.Status.Editable() {
		return nil, apperr.Conflict(fmt.Sprintf("cannot submit document with status '%s'", doc.Status))
	}
	if len(doc.Items) == 0 {
		return nil, apperr.InvalidInput("items", "document must have at least 1 line item before submission")
	}

	if err := s.docs.SetStatus(ctx, docType, id, repository.StatusSubmitted, nil); err != nil {
		return nil, err
	}
	doc.Status = repository.StatusSubmitted
	doc.RejectionReason = nil

	s.log.Info().
		Str("document_id", doc.ID).
		Str("doc_type", string(docType)).
		Str("number", doc.Number).
		Msg("Document submitted")

	s.dispatcher.DocumentSubmitted(ctx, doc)

	return doc, nil
}

// StartReview moves a submitted document to in_review, marking that a
// reviewer has picked it up.
func (s *ApprovalService) StartReview(ctx context.Context, actor repository.Actor, docType repository.DocType, id string) (*repository.Document, error) {
	doc, err := s.docs.GetByID(ctx, docType, id)
	if err != nil {
		return nil, err
	}

	if !repository.CanReview(actor.Role, docType) {
		return nil, apperr.PermissionDenied("role is not eligible to review this document type")
	}
	if doc.Status != repository.StatusSubmitted {
		return nil, apperr.Conflict(fmt.Sprintf("cannot start review on document with status '%s'", doc.Status))
	}

	if err := s.docs.SetStatus(ctx, docType, id, repository.StatusInReview, doc.RejectionReason); err != nil {
		return nil, err
	}
	doc.Status = repository.StatusInReview

	s.log.Info().
		Str("document_id", doc.ID).
		Str("reviewer_id", actor.ID).
		Msg("Document review started")

	return doc, nil
}

// Approve records an approval and moves the document to approved. The
// caller must hold a reviewer-eligible role and must not have approved this
// document before. BAPP additionally requires the caller's signature to be
// on file: a missing signature or a failed lookup blocks the approval. For
// BAPB the same conditions only produce a non-blocking warning. If the
// document's primary reviewer is unset and the caller holds the designated
// primary reviewer role, the caller is pinned as primary reviewer.
func (s *ApprovalService) Approve(ctx context.Context, actor repository.Actor, docType repository.DocType, id string, notes *string) (*ApprovalResult, error) {
	doc, err := s.docs.GetByID(ctx, docType, id)
	if err != nil {
		return nil, err
	}

	if !repository.CanReview(actor.Role, docType) {
		return nil, apperr.PermissionDenied("role is not eligible to approve this document type")
	}
	if !doc.Status.Reviewable() {
		return nil, apperr.Conflict(fmt.Sprintf("cannot approve document with status '%s'", doc.Status))
	}

	approved, err := s.approvals.HasApproved(ctx, docType, id, actor.ID)
	if err != nil {
		return nil, err
	}
	if approved {
		return nil, apperr.Conflict("you have already approved this document")
	}

	warning, err := s.checkSignature(ctx, actor, docType, id)
	if err != nil {
		return nil, err
	}

	rec := &repository.ApprovalRecord{
		DocType:    docType,
		DocumentID: id,
		ApproverID: actor.ID,
		Action:     repository.ActionApproved,
		Notes:      notes,
	}
	if err := s.approvals.Append(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.docs.SetStatus(ctx, docType, id, repository.StatusApproved, nil); err != nil {
		return nil, err
	}

	// First approver with the designated role claims the primary reviewer
	// slot; later approvals leave it untouched.
	if doc.PrimaryReviewerID == nil && actor.Role == repository.PrimaryReviewerRole(docType) {
		if err := s.docs.PinPrimaryReviewer(ctx, docType, id, actor.ID); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("document_id", id).
		Str("doc_type", string(docType)).
		Str("approver_id", actor.ID).
		Bool("with_warning", warning != "").
		Msg("Document approved")

	doc, err = s.docs.GetByID(ctx, docType, id)
	if err != nil {
		return nil, err
	}

	s.dispatcher.DocumentApproved(ctx, doc, actor.ID)

	return &ApprovalResult{Document: doc, Warning: warning}, nil
}

// checkSignature enforces the signature precondition. BAPP blocks hard on a
// missing signature or a failed lookup; BAPB degrades both to a warning and
// lets the approval proceed. The asymmetry is deliberate.
func (s *ApprovalService) checkSignature(ctx context.Context, actor repository.Actor, docType repository.DocType, id string) (string, error) {
	sig, err := s.signatures.SignatureFor(ctx, docType, id, actor.ID)

	if docType == repository.DocTypeBAPP {
		if err != nil {
			return "", apperr.Wrap(err, apperr.ErrCodeInternal, "failed to verify signature")
		}
		if sig == nil {
			return "", apperr.FailedPrecondition("please upload your signature for this document before approving")
		}
		return "", nil
	}

	if err != nil {
		s.log.Warn().Err(err).
			Str("document_id", id).
			Str("approver_id", actor.ID).
			Msg("signature lookup failed, approving without signature check")
		return "could not verify signature; the rendered document may omit it", nil
	}
	if sig == nil {
		return "no signature on file; the rendered document will omit your signature", nil
	}
	return "", nil
}

// Reject records a rejection and moves the document to the terminal
// rejected status. A non-empty reason is required.
func (s *ApprovalService) Reject(ctx context.Context, actor repository.Actor, docType repository.DocType, id, reason string) (*repository.Document, error) {
	return s.decline(ctx, actor, docType, id, reason, repository.ActionRejected)
}

// RequestRevision records a revision request and moves the document to
// revision_required, re-opening it for owner edits. A non-empty reason is
// required.
func (s *ApprovalService) RequestRevision(ctx context.Context, actor repository.Actor, docType repository.DocType, id, reason string) (*repository.Document, error) {
	return s.decline(ctx, actor, docType, id, reason, repository.ActionRevisionRequired)
}

func (s *ApprovalService) decline(ctx context.Context, actor repository.Actor, docType repository.DocType, id, reason string, action repository.ApprovalAction) (*repository.Document, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.InvalidInput("reason", "a reason is required")
	}

	doc, err := s.docs.GetByID(ctx, docType, id)
	if err != nil {
		return nil, err
	}

	if !repository.CanReview(actor.Role, docType) {
		return nil, apperr.PermissionDenied("role is not eligible to review this document type")
	}
	if !doc.Status.Reviewable() {
		return nil, apperr.Conflict(fmt.Sprintf("cannot act on document with status '%s'", doc.Status))
	}

	rec := &repository.ApprovalRecord{
		DocType:    docType,
		DocumentID: id,
		ApproverID: actor.ID,
		Action:     action,
		Notes:      &reason,
	}
	if err := s.approvals.Append(ctx, rec); err != nil {
		return nil, err
	}

	status := repository.StatusRejected
	if action == repository.ActionRevisionRequired {
		status = repository.StatusRevisionRequired
	}
	if err := s.docs.SetStatus(ctx, docType, id, status, &reason); err != nil {
		return nil, err
	}
	doc.Status = status
	doc.RejectionReason = &reason

	s.log.Info().
		Str("document_id", id).
		Str("doc_type", string(docType)).
		Str("reviewer_id", actor.ID).
		Str("action", string(action)).
		Msg("Document declined")

	if action == repository.ActionRevisionRequired {
		s.dispatcher.RevisionRequested(ctx, doc, reason)
	} else {
		s.dispatcher.DocumentRejected(ctx, doc, reason)
	}

	return doc, nil
}

// History returns the approval history for a document, oldest first.
func (s *ApprovalService) History(ctx context.Context, docType repository.DocType, id string) ([]*repository.ApprovalRecord, error) {
	return s.approvals.ListByDocument(ctx, docType, id)
}
