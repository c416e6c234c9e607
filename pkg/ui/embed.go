// Package ui provides the embedded web UI served by the sheetgrab server.
//
// The page drives the HTTP API: it previews a spreadsheet, starts a run
// and polls its progress until the run finishes.
package ui

import (
	_ "embed"
)

// IndexHTML is the download form page.
//
//go:embed index.html
var IndexHTML []byte
