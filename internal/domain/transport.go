package domain

import (
	"context"
	"net/url"
)

// HTTPClient is the authenticated API client. Implementations inject the
// authorization header; callers never build it themselves.
type HTTPClient interface {
	// Get decodes the JSON answer of a GET into out (out may be nil)
	Get(ctx context.Context, path string, params url.Values, out any) error

	// Post sends body as JSON and decodes the answer into out
	Post(ctx context.Context, path string, body, out any) error

	// Put sends body as JSON and decodes the answer into out
	Put(ctx context.Context, path string, body, out any) error

	// Delete issues a DELETE and decodes the answer into out
	Delete(ctx context.Context, path string, out any) error

	// Download fetches a binary export (spreadsheets, attachments)
	Download(ctx context.Context, path string, params url.Values) (*Download, error)
}

// Download is a file returned by the API.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}
