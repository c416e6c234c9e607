package domain

import "fmt"

// Candidate is a table row whose URL column holds a downloadable link.
// RowIndex is the 0-based data row in the source table and is kept even
// when earlier rows were filtered out.
type Candidate struct {
	RowIndex int
	URL      string
}

// OutputFilename builds the name a candidate is saved under:
// {stem}_{rowIndex zero-padded to 3 digits}{ext}.
func OutputFilename(stem string, rowIndex int, ext string) string {
	return fmt.Sprintf("%s_%03d%s", stem, rowIndex, ext)
}

// OutcomeStatus is the result of a single candidate download.
type OutcomeStatus string

const (
	OutcomeSaved  OutcomeStatus = "saved"
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome records what happened to one candidate.
type Outcome struct {
	Status   OutcomeStatus
	RowIndex int
	URL      string
	Path     string // set when saved
	Filename string // set when saved
	Bytes    int64
	Reason   string // set when failed
}

// Saved returns a successful outcome.
func Saved(c Candidate, path, filename string, bytes int64) Outcome {
	return Outcome{
		Status:   OutcomeSaved,
		RowIndex: c.RowIndex,
		URL:      c.URL,
		Path:     path,
		Filename: filename,
		Bytes:    bytes,
	}
}

// Failed returns a failed outcome carrying the error text.
func Failed(c Candidate, err error) Outcome {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return Outcome{
		Status:   OutcomeFailed,
		RowIndex: c.RowIndex,
		URL:      c.URL,
		Reason:   reason,
	}
}

// IsSaved reports whether the download succeeded.
func (o Outcome) IsSaved() bool {
	return o.Status == OutcomeSaved
}

// ProgressState is the observable progress of one run. Completed only
// grows; Total is fixed when the run starts.
type ProgressState struct {
	Completed int
	Total     int
	Message   string
}

// Fraction returns completion in the range [0, 1].
func (p ProgressState) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}
