package services

import (
	"context"
	"fmt"
	"strings"

	docs "google.golang.org/api/docs/v1"
	"google.golang.org/api/option"

	apperrors "github.com/vladimiradmaev/calorie-helper/internal/errors"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

const docURLMarker = "docs.google.com/document/d/"

// docsAPI is the part of the Docs API the sync uses
type docsAPI interface {
	EndIndex(ctx context.Context, documentID string) (int64, error)
	BatchUpdate(ctx context.Context, documentID string, requests []*docs.Request) error
}

type docsClientWrapper struct {
	srv *docs.Service
}

func (w *docsClientWrapper) EndIndex(ctx context.Context, documentID string) (int64, error) {
	doc, err := w.srv.Documents.Get(documentID).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	if doc.Body == nil || len(doc.Body.Content) == 0 {
		return 1, nil
	}
	return doc.Body.Content[len(doc.Body.Content)-1].EndIndex, nil
}

func (w *docsClientWrapper) BatchUpdate(ctx context.Context, documentID string, requests []*docs.Request) error {
	_, err := w.srv.Documents.BatchUpdate(documentID, &docs.BatchUpdateDocumentRequest{Requests: requests}).
		Context(ctx).Do()
	return err
}

// GoogleDocsService appends daily reports to a Google document
type GoogleDocsService struct {
	api docsAPI
}

// NewGoogleDocsService authenticates with a service account credentials file
func NewGoogleDocsService(ctx context.Context, credentialsFile string) (*GoogleDocsService, error) {
	srv, err := docs.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(docs.DocumentsScope, "https://www.googleapis.com/auth/drive.file"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docs client: %w", err)
	}
	return &GoogleDocsService{api: &docsClientWrapper{srv: srv}}, nil
}

// Append writes text at the end of the document, separated from earlier
// content by a page break
func (s *GoogleDocsService) Append(ctx context.Context, documentID, text string) error {
	documentID = ExtractDocID(documentID)
	if documentID == "" {
		return apperrors.ErrNoDocument
	}

	end, err := s.api.EndIndex(ctx, documentID)
	if err != nil {
		return apperrors.NewExternalAPIError(err, "google_docs")
	}
	index := end - 1
	if index < 1 {
		index = 1
	}

	if index > 2 {
		pageBreak := []*docs.Request{{
			InsertPageBreak: &docs.InsertPageBreakRequest{Location: &docs.Location{Index: index}},
		}}
		if err := s.api.BatchUpdate(ctx, documentID, pageBreak); err != nil {
			return apperrors.NewExternalAPIError(err, "google_docs")
		}
		index++
	}

	insert := []*docs.Request{{
		InsertText: &docs.InsertTextRequest{
			Location: &docs.Location{Index: index},
			Text:     "\n" + text + "\n",
		},
	}}
	if err := s.api.BatchUpdate(ctx, documentID, insert); err != nil {
		return apperrors.NewExternalAPIError(err, "google_docs")
	}

	logger.Info("Appended report to document", "document_id", documentID, "index", index)
	return nil
}

// ExtractDocID accepts a raw document id or a full document URL
func ExtractDocID(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, docURLMarker); i >= 0 {
		ref = ref[i+len(docURLMarker):]
		if j := strings.IndexAny(ref, "/?#"); j >= 0 {
			ref = ref[:j]
		}
	}
	return ref
}
