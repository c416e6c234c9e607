package domain

import (
	"errors"
	"strconv"
)

// Domain errors.
var (
	// ErrSourceRead is returned when the input table cannot be read or parsed.
	ErrSourceRead = errors.New("cannot read spreadsheet")

	// ErrUnsupportedFormat is returned for files that are not a known tabular format.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

	// ErrNoURLColumn is returned when no column looks like it holds URLs.
	ErrNoURLColumn = errors.New("no column containing URLs found")

	// ErrNoValidLinks is returned when the URL column has no usable http(s) links.
	ErrNoValidLinks = errors.New("no valid download links found")

	// ErrItemDownload is returned when a single candidate cannot be fetched or written.
	ErrItemDownload = errors.New("item download failed")

	// ErrConcurrentRun is returned when a run is requested while another is active.
	ErrConcurrentRun = errors.New("a download is already in progress")

	// ErrMissingSource is returned when no spreadsheet path was given.
	ErrMissingSource = errors.New("no spreadsheet selected")

	// ErrMissingDestination is returned when no destination folder was given.
	ErrMissingDestination = errors.New("no download folder selected")

	// ErrRunNotFound is returned when a run cannot be found.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotActive is returned when cancelling a run that already finished.
	ErrRunNotActive = errors.New("run is not active")
)

// SourceError wraps a spreadsheet loading failure with its path.
// It matches ErrSourceRead with errors.Is.
type SourceError struct {
	Path string
	Op   string
	Err  error
}

func (e *SourceError) Error() string {
	if e.Path != "" {
		return e.Op + " [" + e.Path + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is reports ErrSourceRead as part of the chain.
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceRead
}

// NewSourceError creates a new SourceError.
func NewSourceError(path, op string, err error) *SourceError {
	return &SourceError{
		Path: path,
		Op:   op,
		Err:  err,
	}
}

// ItemError wraps a per-candidate failure. It matches ErrItemDownload.
type ItemError struct {
	RowIndex int
	URL      string
	Err      error
}

func (e *ItemError) Error() string {
	return "row " + strconv.Itoa(e.RowIndex) + " [" + e.URL + "]: " + e.Err.Error()
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Is reports ErrItemDownload as part of the chain.
func (e *ItemError) Is(target error) bool {
	return target == ErrItemDownload
}

// NewItemError creates a new ItemError.
func NewItemError(c Candidate, err error) *ItemError {
	return &ItemError{
		RowIndex: c.RowIndex,
		URL:      c.URL,
		Err:      err,
	}
}
