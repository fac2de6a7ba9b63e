package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

// In-memory fakes for the store interfaces. They mimic only the behavior
// the services rely on: keyed lookup, field writes and call recording.

type fakeDocStore struct {
	docs map[string]*repository.Document

	nextID     int
	number     string
	createErr  error
	replaceErr error

	replaceCalls int
	lastReplaced []*repository.LineItem
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[string]*repository.Document), number: "BAPB/2024/03/0001"}
}

func (f *fakeDocStore) put(doc *repository.Document) *repository.Document {
	f.docs[doc.ID] = doc
	return doc
}

func (f *fakeDocStore) CreateWithItems(ctx context.Context, doc *repository.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	doc.ID = fmt.Sprintf("doc-%d", f.nextID)
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocStore) Update(ctx context.Context, doc *repository.Document) error {
	doc.UpdatedAt = time.Now()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocStore) ReplaceItems(ctx context.Context, docType repository.DocType, documentID string, items []*repository.LineItem) error {
	f.replaceCalls++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.lastReplaced = items
	if doc, ok := f.docs[documentID]; ok {
		doc.Items = items
	}
	return nil
}

func (f *fakeDocStore) GetByID(ctx context.Context, docType repository.DocType, id string) (*repository.Document, error) {
	doc, ok := f.docs[id]
	if !ok || doc.DocType != docType {
		return nil, fakeNotFound(id)
	}
	return doc, nil
}

func (f *fakeDocStore) List(ctx context.Context, docType repository.DocType, opts repository.ListOptions) ([]*repository.Document, int64, error) {
	out := make([]*repository.Document, 0)
	for _, doc := range f.docs {
		if doc.DocType != docType {
			continue
		}
		if opts.VendorID != nil && doc.VendorID != *opts.VendorID {
			continue
		}
		if opts.Status != nil && doc.Status != *opts.Status {
			continue
		}
		out = append(out, doc)
	}
	return out, int64(len(out)), nil
}

func (f *fakeDocStore) SetStatus(ctx context.Context, docType repository.DocType, id string, status repository.Status, reason *string) error {
	doc, ok := f.docs[id]
	if !ok {
		return fakeNotFound(id)
	}
	doc.Status = status
	doc.RejectionReason = reason
	return nil
}

func (f *fakeDocStore) PinPrimaryReviewer(ctx context.Context, docType repository.DocType, id, reviewerID string) error {
	doc, ok := f.docs[id]
	if !ok {
		return fakeNotFound(id)
	}
	if doc.PrimaryReviewerID == nil {
		doc.PrimaryReviewerID = &reviewerID
	}
	return nil
}

func (f *fakeDocStore) Delete(ctx context.Context, docType repository.DocType, id string) error {
	if _, ok := f.docs[id]; !ok {
		return fakeNotFound(id)
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocStore) GenerateNumber(ctx context.Context, docType repository.DocType, now time.Time) (string, error) {
	return f.number, nil
}

type fakeApprovalStore struct {
	records   []*repository.ApprovalRecord
	appendErr error
}

func (f *fakeApprovalStore) Append(ctx context.Context, rec *repository.ApprovalRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	rec.ID = fmt.Sprintf("apr-%d", len(f.records)+1)
	rec.ApprovedAt = time.Now()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeApprovalStore) HasApproved(ctx context.Context, docType repository.DocType, documentID, approverID string) (bool, error) {
	for _, rec := range f.records {
		if rec.DocType == docType && rec.DocumentID == documentID &&
			rec.ApproverID == approverID && rec.Action == repository.ActionApproved {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeApprovalStore) ListByDocument(ctx context.Context, docType repository.DocType, documentID string) ([]*repository.ApprovalRecord, error) {
	out := make([]*repository.ApprovalRecord, 0)
	for _, rec := range f.records {
		if rec.DocType == docType && rec.DocumentID == documentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeSignatureStore struct {
	sig *repository.Attachment
	err error
}

func (f *fakeSignatureStore) SignatureFor(ctx context.Context, docType repository.DocType, documentID, uploadedBy string) (*repository.Attachment, error) {
	return f.sig, f.err
}

type fakeAttachmentStore struct {
	attachments []*repository.Attachment
}

func (f *fakeAttachmentStore) Insert(ctx context.Context, att *repository.Attachment) error {
	att.ID = fmt.Sprintf("att-%d", len(f.attachments)+1)
	att.CreatedAt = time.Now()
	f.attachments = append(f.attachments, att)
	return nil
}

func (f *fakeAttachmentStore) ListByDocument(ctx context.Context, docType repository.DocType, documentID string) ([]*repository.Attachment, error) {
	return f.attachments, nil
}

type fakeDispatcher struct {
	submitted int
	approved  int
	rejected  int
	revision  int

	lastReason string
}

func (f *fakeDispatcher) DocumentSubmitted(ctx context.Context, doc *repository.Document) {
	f.submitted++
}

func (f *fakeDispatcher) DocumentApproved(ctx context.Context, doc *repository.Document, approverID string) {
	f.approved++
}

func (f *fakeDispatcher) DocumentRejected(ctx context.Context, doc *repository.Document, reason string) {
	f.rejected++
	f.lastReason = reason
}

func (f *fakeDispatcher) RevisionRequested(ctx context.Context, doc *repository.Document, reason string) {
	f.revision++
	f.lastReason = reason
}

type fakeNotFound string

func (f fakeNotFound) Error() string { return "document " + string(f) + " not found" }

// strptr and friends keep test fixtures readable.
func strptr(s string) *string   { return &s }
func f64ptr(v float64) *float64 { return &v }
