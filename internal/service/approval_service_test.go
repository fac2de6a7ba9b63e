package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

var direksi = repository.Actor{ID: "direksi-1", Role: repository.RoleDireksiPekerjaan}

type approvalFixture struct {
	docs       *fakeDocStore
	approvals  *fakeApprovalStore
	signatures *fakeSignatureStore
	dispatcher *fakeDispatcher
	svc        *ApprovalService
}

func newApprovalFixture() *approvalFixture {
	f := &approvalFixture{
		docs:       newFakeDocStore(),
		approvals:  &fakeApprovalStore{},
		signatures: &fakeSignatureStore{},
		dispatcher: &fakeDispatcher{},
	}
	f.svc = NewApprovalService(f.docs, f.approvals, f.signatures, f.dispatcher, testLog)
	return f
}

func (f *approvalFixture) seed(docType repository.DocType, status repository.Status, items int) *repository.Document {
	doc := &repository.Document{
		ID:       "doc-1",
		DocType:  docType,
		Number:   "BAPB/2024/03/0001",
		VendorID: vendor.ID,
		Status:   status,
	}
	for i := 0; i < items; i++ {
		doc.Items = append(doc.Items, &repository.LineItem{ID: "item-1", DocType: docType})
	}
	return f.docs.put(doc)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("draft with items becomes submitted", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusDraft, 2)

		doc, err := f.svc.Submit(ctx, vendor, repository.DocTypeBAPB, "doc-1")
		require.NoError(t, err)

		assert.Equal(t, repository.StatusSubmitted, doc.Status)
		assert.Equal(t, 1, f.dispatcher.submitted)
	})

	t.Run("zero items block submission and leave status unchanged", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusDraft, 0)

		_, err := f.svc.Submit(ctx, vendor, repository.DocTypeBAPB, "doc-1")
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeInvalidInput))
		assert.Equal(t, repository.StatusDraft, f.docs.docs["doc-1"].Status)
		assert.Zero(t, f.dispatcher.submitted)
	})

	t.Run("only the owner can submit", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusDraft, 1)

		other := repository.Actor{ID: "vendor-2", Role: repository.RoleVendor}
		_, err := f.svc.Submit(ctx, other, repository.DocTypeBAPB, "doc-1")
		assert.True(t, apperr.IsCode(err, apperr.ErrCodePermissionDenied))
	})

	t.Run("already submitted cannot be re-submitted", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

		_, err := f.svc.Submit(ctx, vendor, repository.DocTypeBAPB, "doc-1")
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeConflict))
	})

	t.Run("revision_required can be re-submitted", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusRevisionRequired, 1)

		doc, err := f.svc.Submit(ctx, vendor, repository.DocTypeBAPB, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, repository.StatusSubmitted, doc.Status)
	})
}

func TestStartReview(t *testing.T) {
	ctx := context.Background()

	t.Run("reviewer picks up a submitted document", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

		doc, err := f.svc.StartReview(ctx, gudang, repository.DocTypeBAPB, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, repository.StatusInReview, doc.Status)
	})

	t.Run("wrong role for the document type", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

		_, err := f.svc.StartReview(ctx, direksi, repository.DocTypeBAPB, "doc-1")
		assert.True(t, apperr.IsCode(err, apperr.ErrCodePermissionDenied))
	})

	t.Run("only submitted documents can enter review", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusDraft, 1)

		_, err := f.svc.StartReview(ctx, gudang, repository.DocTypeBAPB, "doc-1")
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeConflict))
	})
}

func TestApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("bapb approval without a signature proceeds with a warning", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

		res, err := f.svc.Approve(ctx, gudang, repository.DocTypeBAPB, "doc-1", nil)
		require.NoError(t, err)

		assert.Equal(t, repository.StatusApproved, res.Document.Status)
		assert.Contains(t, res.Warning, "no signature on file")
		assert.Len(t, f.approvals.records, 1)
		assert.Equal(t, 1, f.dispatcher.approved)
	})

	t.Run("bapb approval with a signature has no warning", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)
		f.signatures.sig = &repository.Attachment{ID: "att-1"}

		res, err := f.svc.Approve(ctx, gudang, repository.DocTypeBAPB, "doc-1", nil)
		require.NoError(t, err)
		assert.Empty(t, res.Warning)
	})

	t.Run("bapb signature lookup failure degrades to a warning", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)
		f.signatures.err = errors.New("connection reset")

		res, err := f.svc.Approve(ctx, gudang, repository.DocTypeBAPB, "doc-1", nil)
		require.NoError(t, err)
		assert.Contains(t, res.Warning, "could not verify signature")
	})

	t.Run("bapp approval without a signature is blocked", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPP, repository.StatusSubmitted, 1)

		_, err := f.svc.Approve(ctx, direksi, repository.DocTypeBAPP, "doc-1", nil)
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeFailedPrecondition))

		// Blocked before any write.
		assert.Empty(t, f.approvals.records)
		assert.Equal(t, repository.StatusSubmitted, f.docs.docs["doc-1"].Status)
		assert.Zero(t, f.dispatcher.approved)
	})

	t.Run("bapp signature lookup failure blocks hard", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPP, repository.StatusSubmitted, 1)
		f.signatures.err = errors.New("connection reset")

		_, err := f.svc.Approve(ctx, direksi, repository.DocTypeBAPP, "doc-1", nil)
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeInternal))
		assert.Empty(t, f.approvals.records)
	})

	t.Run("bapp approval with a signature succeeds", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPP, repository.StatusSubmitted, 1)
		f.signatures.sig = &repository.Attachment{ID: "att-1"}

		res, err := f.svc.Approve(ctx, direksi, repository.DocTypeBAPP, "doc-1", nil)
		require.NoError(t, err)
		assert.Equal(t, repository.StatusApproved, res.Document.Status)
		assert.Empty(t, res.Warning)
	})

	t.Run("second approval by the same reviewer conflicts", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

		_, err := f.svc.Approve(ctx, gudang, repository.DocTypeBAPB, "doc-1", nil)
		require.NoError(t, err)

		_, err = f.svc.Approve(ctx, gudang, repository.DocTypeBAPB, "doc-1", nil)
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeConflict))
		assert.Len(t, f.approvals.records, 1)
	})

	t.Run("vendor cannot approve", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

		_, err := f.svc.Approve(ctx, vendor, repository.DocTypeBAPB, "doc-1", nil)
		assert.True(t, apperr.IsCode(err, apperr.ErrCodePermissionDenied))
	})

	t.Run("draft cannot be approved", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusDraft, 1)

		_, err := f.svc.Approve(ctx, gudang, repository.DocTypeBAPB, "doc-1", nil)
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeConflict))
	})

	t.Run("first approver with the designated role is pinned", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

		res, err := f.svc.Approve(ctx, gudang, repository.DocTypeBAPB, "doc-1", nil)
		require.NoError(t, err)

		require.NotNil(t, res.Document.PrimaryReviewerID)
		assert.Equal(t, gudang.ID, *res.Document.PrimaryReviewerID)
	})

	t.Run("admin approval does not claim the primary slot", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

		admin := repository.Actor{ID: "admin-1", Role: repository.RoleAdmin}
		res, err := f.svc.Approve(ctx, admin, repository.DocTypeBAPB, "doc-1", nil)
		require.NoError(t, err)
		assert.Nil(t, res.Document.PrimaryReviewerID)
	})

	t.Run("an existing primary reviewer is kept", func(t *testing.T) {
		f := newApprovalFixture()
		doc := f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)
		doc.PrimaryReviewerID = strptr("gudang-0")

		res, err := f.svc.Approve(ctx, gudang, repository.DocTypeBAPB, "doc-1", nil)
		require.NoError(t, err)
		assert.Equal(t, "gudang-0", *res.Document.PrimaryReviewerID)
	})
}

func TestRejectAndRequestRevision(t *testing.T) {
	ctx := context.Background()

	t.Run("reject records the reason and is terminal", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusInReview, 1)

		doc, err := f.svc.Reject(ctx, gudang, repository.DocTypeBAPB, "doc-1", "quantities do not match the PO")
		require.NoError(t, err)

		assert.Equal(t, repository.StatusRejected, doc.Status)
		assert.Equal(t, "quantities do not match the PO", *doc.RejectionReason)
		require.Len(t, f.approvals.records, 1)
		assert.Equal(t, repository.ActionRejected, f.approvals.records[0].Action)
		assert.Equal(t, 1, f.dispatcher.rejected)
		assert.Equal(t, "quantities do not match the PO", f.dispatcher.lastReason)
	})

	t.Run("revision request re-opens the document", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

		doc, err := f.svc.RequestRevision(ctx, gudang, repository.DocTypeBAPB, "doc-1", "please attach the delivery note")
		require.NoError(t, err)

		assert.Equal(t, repository.StatusRevisionRequired, doc.Status)
		assert.True(t, doc.Status.Editable())
		assert.Equal(t, 1, f.dispatcher.revision)
	})

	t.Run("a blank reason is rejected before any write", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

		_, err := f.svc.Reject(ctx, gudang, repository.DocTypeBAPB, "doc-1", "   ")
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeInvalidInput))

		_, err = f.svc.RequestRevision(ctx, gudang, repository.DocTypeBAPB, "doc-1", "")
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeInvalidInput))

		assert.Empty(t, f.approvals.records)
		assert.Equal(t, repository.StatusSubmitted, f.docs.docs["doc-1"].Status)
	})

	t.Run("vendor cannot reject", func(t *testing.T) {
		f := newApprovalFixture()
		f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

		_, err := f.svc.Reject(ctx, vendor, repository.DocTypeBAPB, "doc-1", "reason")
		assert.True(t, apperr.IsCode(err, apperr.ErrCodePermissionDenied))
	})
}

func TestHistory(t *testing.T) {
	ctx := context.Background()

	f := newApprovalFixture()
	f.seed(repository.DocTypeBAPB, repository.StatusSubmitted, 1)

	_, err := f.svc.RequestRevision(ctx, gudang, repository.DocTypeBAPB, "doc-1", "fix item 2")
	require.NoError(t, err)
	f.docs.docs["doc-1"].Status = repository.StatusSubmitted

	_, err = f.svc.Approve(ctx, gudang, repository.DocTypeBAPB, "doc-1", nil)
	require.NoError(t, err)

	records, err := f.svc.History(ctx, repository.DocTypeBAPB, "doc-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, repository.ActionRevisionRequired, records[0].Action)
	assert.Equal(t, repository.ActionApproved, records[1].Action)
}
