package payment

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

type fakeDocs struct {
	doc *repository.Document
	err error
}

func (f *fakeDocs) GetByID(ctx context.Context, docType repository.DocType, id string) (*repository.Document, error) {
	return f.doc, f.err
}

type fakeLogs struct {
	entries   []*repository.PaymentLog
	paid      bool
	appendErr error
}

func (f *fakeLogs) Append(ctx context.Context, pl *repository.PaymentLog) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, pl)
	return nil
}

func (f *fakeLogs) HasSuccessful(ctx context.Context, docType repository.DocType, documentID string) (bool, error) {
	return f.paid, nil
}

func (f *fakeLogs) ListByVendor(ctx context.Context, vendorID string, limit, offset int) ([]*repository.PaymentLog, int64, error) {
	out := make([]*repository.PaymentLog, 0)
	for _, pl := range f.entries {
		if pl.VendorID == vendorID {
			out = append(out, pl)
		}
	}
	return out, int64(len(out)), nil
}

type fakeVendors struct {
	active bool
}

func (f *fakeVendors) IsActiveVendor(ctx context.Context, id string) (bool, error) {
	return f.active, nil
}

type fakeNotifier struct {
	processed      int
	appendedBefore bool
	logs           *fakeLogs
}

func (f *fakeNotifier) PaymentProcessed(ctx context.Context, pl *repository.PaymentLog) {
	f.processed++
	f.appendedBefore = len(f.logs.entries) > 0
}

type paymentFixture struct {
	docs    *fakeDocs
	logs    *fakeLogs
	vendors *fakeVendors
	notif   *fakeNotifier
	svc     *Service
}

func newPaymentFixture(successRate float64, doc *repository.Document) *paymentFixture {
	f := &paymentFixture{
		docs:    &fakeDocs{doc: doc},
		logs:    &fakeLogs{},
		vendors: &fakeVendors{active: true},
	}
	f.notif = &fakeNotifier{logs: f.logs}
	checker := NewReadinessChecker(f.docs, f.logs, f.vendors)
	gateway := NewGateway(GatewayConfig{SuccessRate: successRate, Source: rand.NewSource(1)})
	f.svc = NewService(checker, gateway, f.logs, f.notif, zerolog.Nop())
	return f
}

func approvedDoc(docType repository.DocType) *repository.Document {
	progress := 50.0
	doc := &repository.Document{
		ID:       "doc-1",
		DocType:  docType,
		VendorID: "vendor-1",
		Status:   repository.StatusApproved,
	}
	if docType == repository.DocTypeBAPP {
		doc.TotalProgress = &progress
	}
	return doc
}

func f64(v float64) *float64 { return &v }

func TestCheckReadiness(t *testing.T) {
	ctx := context.Background()

	t.Run("approved document with active vendor is ready", func(t *testing.T) {
		f := newPaymentFixture(1.0, approvedDoc(repository.DocTypeBAPB))

		r, err := f.svc.CheckReadiness(ctx, repository.DocTypeBAPB, "doc-1")
		require.NoError(t, err)
		assert.True(t, r.Ready)
		assert.Empty(t, r.Blockers)
	})

	t.Run("every blocking condition is collected", func(t *testing.T) {
		doc := approvedDoc(repository.DocTypeBAPB)
		doc.Status = repository.StatusSubmitted
		f := newPaymentFixture(1.0, doc)
		f.logs.paid = true
		f.vendors.active = false

		r, err := f.svc.CheckReadiness(ctx, repository.DocTypeBAPB, "doc-1")
		require.NoError(t, err)

		assert.False(t, r.Ready)
		require.Len(t, r.Blockers, 3)
		assert.Contains(t, r.Blockers[0], "not approved")
		assert.Contains(t, r.Blockers[1], "successful payment already exists")
		assert.Contains(t, r.Blockers[2], "vendor account is inactive")
	})

	t.Run("prior successful payment blocks on its own", func(t *testing.T) {
		f := newPaymentFixture(1.0, approvedDoc(repository.DocTypeBAPB))
		f.logs.paid = true

		r, err := f.svc.CheckReadiness(ctx, repository.DocTypeBAPB, "doc-1")
		require.NoError(t, err)
		assert.False(t, r.Ready)
		assert.Len(t, r.Blockers, 1)
	})
}

func TestProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("successful settlement logs then notifies", func(t *testing.T) {
		f := newPaymentFixture(1.0, approvedDoc(repository.DocTypeBAPB))

		res, err := f.svc.Process(ctx, &ProcessRequest{
			DocType:    repository.DocTypeBAPB,
			DocumentID: "doc-1",
			Amount:     f64(2500000),
		})
		require.NoError(t, err)

		assert.Equal(t, repository.PaymentSuccess, res.Log.Status)
		assert.Equal(t, 2500000.0, res.Log.Amount)
		assert.Equal(t, "vendor-1", res.Log.VendorID)
		assert.Equal(t, res.Response.TransactionID, res.Log.TransactionID)

		require.Len(t, f.logs.entries, 1)
		assert.Equal(t, 1, f.notif.processed)
		assert.True(t, f.notif.appendedBefore, "log row must land before the notification")
	})

	t.Run("failed settlement is logged but not notified", func(t *testing.T) {
		f := newPaymentFixture(0, approvedDoc(repository.DocTypeBAPB))

		res, err := f.svc.Process(ctx, &ProcessRequest{
			DocType:    repository.DocTypeBAPB,
			DocumentID: "doc-1",
			Amount:     f64(100),
		})
		require.NoError(t, err)

		assert.Equal(t, repository.PaymentFailed, res.Log.Status)
		assert.Contains(t, res.Log.GatewayResponse, "error_code")
		require.Len(t, f.logs.entries, 1)
		assert.Zero(t, f.notif.processed)
	})

	t.Run("not-ready document fails before any gateway call", func(t *testing.T) {
		doc := approvedDoc(repository.DocTypeBAPB)
		doc.Status = repository.StatusDraft
		f := newPaymentFixture(1.0, doc)

		_, err := f.svc.Process(ctx, &ProcessRequest{
			DocType:    repository.DocTypeBAPB,
			DocumentID: "doc-1",
			Amount:     f64(100),
		})
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeFailedPrecondition))
		assert.Empty(t, f.logs.entries)
		assert.Zero(t, f.notif.processed)
	})

	t.Run("bapp derives the amount from contract and progress", func(t *testing.T) {
		f := newPaymentFixture(1.0, approvedDoc(repository.DocTypeBAPP))

		res, err := f.svc.Process(ctx, &ProcessRequest{
			DocType:        repository.DocTypeBAPP,
			DocumentID:     "doc-1",
			ContractAmount: f64(1000),
		})
		require.NoError(t, err)

		// 1000 * 50% progress.
		assert.Equal(t, 500.0, res.Log.Amount)
	})

	t.Run("explicit amount wins over derivation", func(t *testing.T) {
		f := newPaymentFixture(1.0, approvedDoc(repository.DocTypeBAPP))

		res, err := f.svc.Process(ctx, &ProcessRequest{
			DocType:        repository.DocTypeBAPP,
			DocumentID:     "doc-1",
			Amount:         f64(750),
			ContractAmount: f64(1000),
		})
		require.NoError(t, err)
		assert.Equal(t, 750.0, res.Log.Amount)
	})

	t.Run("missing amount for bapb is invalid", func(t *testing.T) {
		f := newPaymentFixture(1.0, approvedDoc(repository.DocTypeBAPB))

		_, err := f.svc.Process(ctx, &ProcessRequest{
			DocType:    repository.DocTypeBAPB,
			DocumentID: "doc-1",
		})
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeInvalidInput))
	})

	t.Run("non-positive amount is invalid", func(t *testing.T) {
		f := newPaymentFixture(1.0, approvedDoc(repository.DocTypeBAPB))

		_, err := f.svc.Process(ctx, &ProcessRequest{
			DocType:    repository.DocTypeBAPB,
			DocumentID: "doc-1",
			Amount:     f64(-5),
		})
		assert.True(t, apperr.IsCode(err, apperr.ErrCodeInvalidInput))
	})

	t.Run("vendors only see their own payment history", func(t *testing.T) {
		f := newPaymentFixture(1.0, approvedDoc(repository.DocTypeBAPB))
		f.logs.entries = []*repository.PaymentLog{
			{ID: "pl-1", VendorID: "vendor-1"},
			{ID: "pl-2", VendorID: "vendor-2"},
		}

		actor := repository.Actor{ID: "vendor-1", Role: repository.RoleVendor}
		logs, total, err := f.svc.History(ctx, actor, "vendor-2", 20, 0)
		require.NoError(t, err)

		assert.EqualValues(t, 1, total)
		assert.Equal(t, "pl-1", logs[0].ID)
	})

	t.Run("log append failure surfaces and suppresses the notification", func(t *testing.T) {
		f := newPaymentFixture(1.0, approvedDoc(repository.DocTypeBAPB))
		f.logs.appendErr = errors.New("write failed")

		_, err := f.svc.Process(ctx, &ProcessRequest{
			DocType:    repository.DocTypeBAPB,
			DocumentID: "doc-1",
			Amount:     f64(100),
		})
		assert.Error(t, err)
		assert.Zero(t, f.notif.processed)
	})
}
