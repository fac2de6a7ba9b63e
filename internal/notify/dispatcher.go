// Package notify is the notification dispatcher. Every dispatch is
// fire-and-forget: recipient resolution, row insertion and event publishing
// failures are logged and swallowed so a notification problem never fails
// the business operation that triggered it. There is no ordering guarantee
// between the state-changing write and the notification write.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

// RowStore persists notification rows.
type RowStore interface {
	Insert(ctx context.Context, n *repository.Notification) error
}

// UserDirectory resolves recipient sets at dispatch time.
type UserDirectory interface {
	ActiveWithRole(ctx context.Context, roles []repository.Role) ([]*repository.User, error)
}

// EventPublisher publishes serialized events to the notification bus.
// *nats.Conn satisfies this directly.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// Event is the JSON schema published to the bus for the platform
// notifications consumer. Subject convention: notifications.vm.<type>.
type Event struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Recipients []string       `json:"recipients"`
	DocType    string         `json:"doc_type,omitempty"`
	DocumentID string         `json:"document_id,omitempty"`
	Priority   string         `json:"priority"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Dispatcher creates notification rows and publishes bus events for
// document lifecycle and payment activity.
type Dispatcher struct {
	rows      RowStore
	users     UserDirectory
	publisher EventPublisher // nil disables bus publishing
	log       zerolog.Logger
}

// NewDispatcher creates a dispatcher. publisher may be nil, in which case
// only notification rows are written.
func NewDispatcher(rows RowStore, users UserDirectory, publisher EventPublisher, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{rows: rows, users: users, publisher: publisher, log: log}
}

// DocumentSubmitted notifies every active reviewer-eligible user for the
// document's type.
func (d *Dispatcher) DocumentSubmitted(ctx context.Context, doc *repository.Document) {
	recipients := d.reviewerIDs(ctx, doc.DocType)
	d.dispatch(ctx, Event{
		Type:       eventType(doc.DocType, "submitted"),
		Title:      fmt.Sprintf("%s submitted for review", doc.DocType.NumberPrefix()),
		Message:    fmt.Sprintf("Document %s has been submitted and is awaiting review.", doc.Number),
		Recipients: recipients,
		DocType:    string(doc.DocType),
		DocumentID: doc.ID,
		Priority:   string(repository.PriorityHigh),
	})
}

// DocumentApproved notifies the owning vendor.
func (d *Dispatcher) DocumentApproved(ctx context.Context, doc *repository.Document, approverID string) {
	d.dispatch(ctx, Event{
		Type:       eventType(doc.DocType, "approved"),
		Title:      fmt.Sprintf("%s approved", doc.DocType.NumberPrefix()),
		Message:    fmt.Sprintf("Document %s has been approved.", doc.Number),
		Recipients: []string{doc.VendorID},
		DocType:    string(doc.DocType),
		DocumentID: doc.ID,
		Priority:   string(repository.PriorityHigh),
		Metadata:   map[string]any{"approver_id": approverID},
	})
}

// DocumentRejected notifies the owning vendor with the rejection reason.
func (d *Dispatcher) DocumentRejected(ctx context.Context, doc *repository.Document, reason string) {
	d.dispatch(ctx, Event{
		Type:       eventType(doc.DocType, "rejected"),
		Title:      fmt.Sprintf("%s rejected", doc.DocType.NumberPrefix()),
		Message:    fmt.Sprintf("Document %s was rejected: %s", doc.Number, reason),
		Recipients: []string{doc.VendorID},
		DocType:    string(doc.DocType),
		DocumentID: doc.ID,
		Priority:   string(repository.PriorityUrgent),
	})
}

// RevisionRequested notifies the owning vendor with a link to the edit
// action.
func (d *Dispatcher) RevisionRequested(ctx context.Context, doc *repository.Document, reason string) {
	d.dispatch(ctx, Event{
		Type:       eventType(doc.DocType, "revision_required"),
		Title:      fmt.Sprintf("%s needs revision", doc.DocType.NumberPrefix()),
		Message:    fmt.Sprintf("Document %s needs revision: %s", doc.Number, reason),
		Recipients: []string{doc.VendorID},
		DocType:    string(doc.DocType),
		DocumentID: doc.ID,
		Priority:   string(repository.PriorityHigh),
		Metadata: map[string]any{
			"action_url": fmt.Sprintf("/documents/%s/%s/edit", doc.DocType, doc.ID),
		},
	})
}

// PaymentProcessed notifies the vendor of a successful settlement.
func (d *Dispatcher) PaymentProcessed(ctx context.Context, pl *repository.PaymentLog) {
	d.dispatch(ctx, Event{
		Type:       "payment_processed",
		Title:      "Payment processed",
		Message:    fmt.Sprintf("Payment of %.2f for document %s has been processed.", pl.Amount, pl.DocumentID),
		Recipients: []string{pl.VendorID},
		DocType:    string(pl.DocType),
		DocumentID: pl.DocumentID,
		Priority:   string(repository.PriorityHigh),
		Metadata:   map[string]any{"transaction_id": pl.TransactionID},
	})
}

// reviewerIDs resolves the active users holding a reviewer-eligible role
// for the document type. Resolution failure yields an empty set, logged.
func (d *Dispatcher) reviewerIDs(ctx context.Context, docType repository.DocType) []string {
	users, err := d.users.ActiveWithRole(ctx, repository.ReviewerRoles(docType))
	if err != nil {
		d.log.Warn().Err(err).
			Str("doc_type", string(docType)).
			Msg("notification: failed to resolve reviewer recipients")
		return nil
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

// dispatch writes one notification row per recipient, then publishes a
// single bus event for the batch. All failures are non-fatal.
func (d *Dispatcher) dispatch(ctx context.Context, ev Event) {
	if len(ev.Recipients) == 0 {
		return
	}

	docType := repository.DocType(ev.DocType)
	for _, userID := range ev.Recipients {
		n := &repository.Notification{
			UserID:   userID,
			Type:     ev.Type,
			Title:    ev.Title,
			Message:  ev.Message,
			Priority: repository.Priority(ev.Priority),
			Metadata: ev.Metadata,
		}
		if ev.DocumentID != "" {
			n.RelatedType = &docType
			n.RelatedID = &ev.DocumentID
		}

		if err := d.rows.Insert(ctx, n); err != nil {
			d.log.Warn().Err(err).
				Str("type", ev.Type).
				Str("user_id", userID).
				Msg("notification: failed to write row (non-fatal)")
		}
	}

	d.publish(ev)
}

func (d *Dispatcher) publish(ev Event) {
	if d.publisher == nil {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		d.log.Warn().Err(err).Str("type", ev.Type).Msg("notification: failed to marshal event")
		return
	}

	subject := "notifications.vm." + ev.Type
	if err := d.publisher.Publish(subject, data); err != nil {
		d.log.Warn().Err(err).
			Str("subject", subject).
			Str("document_id", ev.DocumentID).
			Msg("notification: failed to publish bus event (non-fatal)")
		return
	}

	d.log.Debug().
		Str("subject", subject).
		Str("document_id", ev.DocumentID).
		Int("recipients", len(ev.Recipients)).
		Msg("notification: event published")
}

func eventType(docType repository.DocType, suffix string) string {
	return fmt.Sprintf("%s_%s", docType, suffix)
}
