package downloader

import (
	"context"
	"io"
)

// Downloader fetches the content behind a URL.
type Downloader interface {
	// Download issues a GET for url and returns the streaming body.
	// Caller is responsible for closing Response.Body.
	Download(ctx context.Context, url string) (*Response, error)
}

// Response is a successful (2xx) response whose body has not been read yet.
type Response struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	StatusCode    int
}
