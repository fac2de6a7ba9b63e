package repository

import "time"

// ── Document types and enums ─────────────────────────────────────────────────

// DocType discriminates the two acceptance document variants.
type DocType string

const (
	DocTypeBAPB DocType = "bapb" // goods-receipt acceptance
	DocTypeBAPP DocType = "bapp" // work-progress acceptance
)

// Valid reports whether t is a known document type.
func (t DocType) Valid() bool { return t == DocTypeBAPB || t == DocTypeBAPP }

// NumberPrefix is the prefix used in generated document numbers.
func (t DocType) NumberPrefix() string {
	if t == DocTypeBAPB {
		return "BAPB"
	}
	return "BAPP"
}

// Status is the document lifecycle status.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusSubmitted        Status = "submitted"
	StatusInReview         Status = "in_review"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusRevisionRequired Status = "revision_required"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusInReview,
		StatusApproved, StatusRejected, StatusRevisionRequired:
		return true
	}
	return false
}

// Editable reports whether the owning vendor may edit a document in this
// status. Rejected is terminal; only revision_required re-opens editing.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRevisionRequired
}

// Reviewable reports whether a reviewer may act (approve/reject/request
// revision) on a document in this status.
func (s Status) Reviewable() bool {
	return s == StatusSubmitted || s == StatusInReview
}

// ApprovalAction is the action recorded in an approval record.
type ApprovalAction string

const (
	ActionApproved         ApprovalAction = "approved"
	ActionRejected         ApprovalAction = "rejected"
	ActionRevisionRequired ApprovalAction = "revision_required"
)

// ItemCondition is the received condition of a BAPB line item.
type ItemCondition string

const (
	ConditionGood    ItemCondition = "good"
	ConditionDamaged ItemCondition = "damaged"
	ConditionShort   ItemCondition = "short"
)

// Valid reports whether c is a known condition.
func (c ItemCondition) Valid() bool {
	return c == ConditionGood || c == ConditionDamaged || c == ConditionShort
}

// WorkQuality is the assessed quality of a BAPP work item.
type WorkQuality string

const (
	QualityExcellent  WorkQuality = "excellent"
	QualityGood       WorkQuality = "good"
	QualityAcceptable WorkQuality = "acceptable"
	QualityPoor       WorkQuality = "poor"
	QualityRejected   WorkQuality = "rejected"
)

// Valid reports whether q is a known quality grade.
func (q WorkQuality) Valid() bool {
	switch q {
	case QualityExcellent, QualityGood, QualityAcceptable, QualityPoor, QualityRejected:
		return true
	}
	return false
}

// FileType classifies an attachment.
type FileType string

const (
	FileTypeSignature     FileType = "signature"
	FileTypeSupportingDoc FileType = "supporting_doc"
)

// Priority is the notification priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// PaymentStatus is the outcome recorded in a payment log entry.
type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// ── Roles and capabilities ───────────────────────────────────────────────────

// Role is a closed user role. Authorization checks consult the capability
// table below instead of comparing raw strings per call site.
type Role string

const (
	RoleVendor           Role = "vendor"
	RolePICGudang        Role = "pic_gudang"        // warehouse reviewer (BAPB)
	RoleDireksiPekerjaan Role = "direksi_pekerjaan" // works director (BAPP)
	RoleAdmin            Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleVendor, RolePICGudang, RoleDireksiPekerjaan, RoleAdmin:
		return true
	}
	return false
}

// reviewerRoles maps each document type to the roles allowed to review it.
// Admin can review both types; the type-specific role is the one pinned as
// primary reviewer on first approval.
var reviewerRoles = map[DocType][]Role{
	DocTypeBAPB: {RolePICGudang, RoleAdmin},
	DocTypeBAPP: {RoleDireksiPekerjaan, RoleAdmin},
}

// primaryReviewerRole maps each document type to its designated primary
// reviewer role.
var primaryReviewerRole = map[DocType]Role{
	DocTypeBAPB: RolePICGudang,
	DocTypeBAPP: RoleDireksiPekerjaan,
}

// ReviewerRoles returns the roles eligible to review documents of type t.
func ReviewerRoles(t DocType) []Role { return reviewerRoles[t] }

// PrimaryReviewerRole returns the role pinned as primary reviewer on first
// approval of documents of type t.
func PrimaryReviewerRole(t DocType) Role { return primaryReviewerRole[t] }

// CanReview reports whether role r may review documents of type t.
func CanReview(r Role, t DocType) bool {
	for _, allowed := range reviewerRoles[t] {
		if r == allowed {
			return true
		}
	}
	return false
}

// Actor is the authenticated caller of an operation. Token verification
// happens upstream; services only see the resolved identity and role.
type Actor struct {
	ID   string
	Role Role
}

// ── Entities ─────────────────────────────────────────────────────────────────

// Document is an acceptance document header. The two variants share one
// struct; type-specific fields are pointers and nil for the other variant.
type Document struct {
	ID              string
	DocType         DocType
	Number          string
	VendorID        string
	Status          Status
	RejectionReason *string

	// Primary reviewer, nil until pinned by the first approval.
	// pic_gudang for BAPB, direksi_pekerjaan for BAPP.
	PrimaryReviewerID *string

	// BAPB fields.
	OrderNumber  *string
	DeliveryDate *string // YYYY-MM-DD

	// BAPP fields.
	ContractNumber  *string
	ProjectName     *string
	ProjectLocation *string
	StartDate       *string // YYYY-MM-DD
	EndDate         *string
	CompletionDate  *string
	TotalProgress   *float64 // derived, 0-100, two decimals

	CreatedAt time.Time
	UpdatedAt time.Time

	Items []*LineItem
}

// LineItem is a document line. BAPB items fill the quantity/condition
// fields; BAPP work items fill the progress/quality fields.
type LineItem struct {
	ID         string
	DocumentID string
	DocType    DocType

	// BAPB item fields.
	ItemName         *string
	QuantityOrdered  *float64
	QuantityReceived *float64
	Condition        *ItemCondition

	// BAPP work item fields.
	WorkItemName    *string
	PlannedProgress *float64
	ActualProgress  *float64
	Quality         *WorkQuality

	Unit  string
	Notes *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApprovalRecord is one immutable entry in a document's approval history.
type ApprovalRecord struct {
	ID         string
	DocType    DocType
	DocumentID string
	ApproverID string
	Action     ApprovalAction
	Notes      *string
	ApprovedAt time.Time
}

// Attachment is a file reference owned by a document. Signature attachments
// are logically one per (document, uploader); duplicates are tolerated and
// the latest match is used for rendering.
type Attachment struct {
	ID         string
	DocType    DocType
	DocumentID string
	FileType   FileType
	FilePath   string
	FileName   string
	UploadedBy string
	CreatedAt  time.Time
}

// Notification is a per-user inbox entry written by the dispatcher and
// mutated only through read/unread toggling by its owner.
type Notification struct {
	ID          string
	UserID      string
	Type        string
	Title       string
	Message     string
	RelatedType *DocType
	RelatedID   *string
	Priority    Priority
	IsRead      bool
	ReadAt      *time.Time
	Metadata    map[string]any
	CreatedAt   time.Time
}

// PaymentLog is an append-only audit record of a settlement attempt.
type PaymentLog struct {
	ID              string
	DocType         DocType
	DocumentID      string
	VendorID        string
	Amount          float64
	Status          PaymentStatus
	TransactionID   string
	GatewayResponse map[string]any
	ProcessedAt     time.Time
}

// User is the slice of the platform user record this service reads for
// recipient resolution and vendor checks. Account management is external.
type User struct {
	ID       string
	Name     string
	Role     Role
	IsActive bool
}
