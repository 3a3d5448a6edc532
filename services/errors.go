package services

import "errors"

var (
	ErrInvalidUpload        = errors.New("invalid upload")
	ErrDocumentLimit        = errors.New("document limit reached")
	ErrNoProcessedDocuments = errors.New("no processed documents available for search")
	ErrEmptyQuery           = errors.New("query is required")
)
