package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/repository"
)

// AttachmentStore is the attachment persistence surface.
type AttachmentStore interface {
	Insert(ctx context.Context, att *repository.Attachment) error
	ListByDocument(ctx context.Context, docType repository.DocType, documentID string) ([]*repository.Attachment, error)
}

// AttachmentService records attachment metadata. The file bytes themselves
// live in external blob storage keyed by file path; this service only sees
// the path the storage layer produced.
type AttachmentService struct {
	docs        DocumentStore
	attachments AttachmentStore
	log         zerolog.Logger
}

// NewAttachmentService creates a new attachment service.
func NewAttachmentService(docs DocumentStore, attachments AttachmentStore, log zerolog.Logger) *AttachmentService {
	return &AttachmentService{docs: docs, attachments: attachments, log: log}
}

// Attach records a file against a document. Signature duplicates per
// (document, uploader) are allowed; the latest wins at render time.
func (s *AttachmentService) Attach(ctx context.Context, actor repository.Actor, docType repository.DocType, documentID string, fileType repository.FileType, filePath, fileName string) (*repository.Attachment, error) {
	if fileType != repository.FileTypeSignature && fileType != repository.FileTypeSupportingDoc {
		return nil, apperr.InvalidInput("file_type", "unknown file type")
	}
	if strings.TrimSpace(filePath) == "" {
		return nil, apperr.InvalidInput("file_path", "file path is required")
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, apperr.InvalidInput("file_name", "file name is required")
	}

	// Verifies the document exists before writing the child row.
	if _, err := s.docs.GetByID(ctx, docType, documentID); err != nil {
		return nil, err
	}

	att := &repository.Attachment{
		DocType:    docType,
		DocumentID: documentID,
		FileType:   fileType,
		FilePath:   filePath,
		FileName:   fileName,
		UploadedBy: actor.ID,
	}
	if err := s.attachments.Insert(ctx, att); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("document_id", documentID).
		Str("file_type", string(fileType)).
		Str("uploaded_by", actor.ID).
		Msg("Attachment saved")

	return att, nil
}

// List returns a document's attachments.
func (s *AttachmentService) List(ctx context.Context, docType repository.DocType, documentID string) ([]*repository.Attachment, error) {
	return s.attachments.ListByDocument(ctx, docType, documentID)
}
