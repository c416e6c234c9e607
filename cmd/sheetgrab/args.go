package main

import (
	"fmt"

	"github.com/alexflint/go-arg"
)

// PreviewCmd shows the first rows of a spreadsheet.
type PreviewCmd struct {
	File  string `arg:"positional,required" help:"spreadsheet to read (.xlsx, .xlsm, .xls, .csv)"`
	Limit int    `arg:"-n,--limit" default:"10" help:"number of rows to show"`
}

// DownloadCmd downloads every link of a spreadsheet.
type DownloadCmd struct {
	File   string `arg:"positional,required" help:"spreadsheet to read (.xlsx, .xlsm, .xls, .csv)"`
	Output string `arg:"-o,--output" help:"download folder; created if missing (default: storage.default_destination)"`
}

// HistoryCmd lists stored runs.
type HistoryCmd struct {
	Limit int `arg:"-n,--limit" default:"20" help:"number of runs to show"`
}

// Args is the sheetgrab command line.
type Args struct {
	Config   string       `arg:"-c,--config" help:"path to config file"`
	Preview  *PreviewCmd  `arg:"subcommand:preview" help:"show the spreadsheet and its detected URL column"`
	Download *DownloadCmd `arg:"subcommand:download" help:"download every link in the spreadsheet"`
	History  *HistoryCmd  `arg:"subcommand:history" help:"list previous runs (needs storage.history_path)"`
}

// Version is printed for --version.
func (Args) Version() string {
	return fmt.Sprintf("sheetgrab %s (built %s)", Version, BuildTime)
}

// Description is printed at the top of --help.
func (Args) Description() string {
	return "Downloads the file behind every link in a spreadsheet column.\n" +
		"Files are named {spreadsheet}_{row}{ext}, where row is the 0-based data row.\n"
}

func newParser(args *Args) (*arg.Parser, error) {
	return arg.NewParser(arg.Config{Program: "sheetgrab"}, args)
}
