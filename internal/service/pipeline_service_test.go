package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/iconidentify/sheetgrab/internal/domain"
	"github.com/iconidentify/sheetgrab/internal/progress"
)

func TestPipelineService_StartDownload_Workbook(t *testing.T) {
	server := newFileServer(t, nil)
	dir := t.TempDir()

	// Rows 0, 2 and 5 hold links; the others are blank or not URLs.
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"name", "Image URL"},
		{"a", server.URL + "/a.png"},
		{"b", "not-a-url"},
		{"c", server.URL + "/missing"},
		{"d", nil},
		{"e", "nan"},
		{"f", server.URL + "/report"},
	}
	for r, values := range rows {
		for c, v := range values {
			if v == nil {
				continue
			}
			axis, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(sheet, axis, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	src := filepath.Join(dir, "orders.xlsx")
	if err := f.SaveAs(src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	dest := filepath.Join(dir, "out", "nested")
	rec := &progress.Recorder{}

	outcomes, err := newTestPipeline(testDownloadConfig()).StartDownload(context.Background(), src, dest, rec)
	if err != nil {
		t.Fatalf("StartDownload failed: %v", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	wantRows := []int{0, 2, 5}
	for i, row := range wantRows {
		if outcomes[i].RowIndex != row {
			t.Errorf("outcome %d row = %d, want %d", i, outcomes[i].RowIndex, row)
		}
	}
	if !outcomes[0].IsSaved() || outcomes[1].IsSaved() || !outcomes[2].IsSaved() {
		t.Errorf("statuses = %s %s %s, want saved failed saved",
			outcomes[0].Status, outcomes[1].Status, outcomes[2].Status)
	}

	for _, name := range []string{"orders_000.png", "orders_005.pdf"} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	msgs := rec.Messages()
	if len(msgs) < 2 || msgs[0] != "Reading spreadsheet..." || msgs[1] != "Found 3 valid links, starting download..." {
		t.Errorf("leading messages = %q", msgs)
	}

	p := rec.Progress()
	if last := p[len(p)-1]; last != [2]int{0, 3} {
		t.Errorf("final progress = %v, want reset to {0 3}", last)
	}
}

func TestPipelineService_Start_FatalErrors(t *testing.T) {
	dir := t.TempDir()
	noColumn := writeCSV(t, dir, "plain.csv", "name,qty", "a,1")
	noLinks := writeCSV(t, dir, "empty.csv", "url", "not-a-url", "")
	valid := writeCSV(t, dir, "ok.csv", "url", "https://example.com/a")

	tests := []struct {
		name    string
		source  string
		dest    string
		wantErr error
	}{
		{"missing source", "", dir, domain.ErrMissingSource},
		{"missing destination", valid, "  ", domain.ErrMissingDestination},
		{"unreadable source", filepath.Join(dir, "nope.xlsx"), dir, domain.ErrSourceRead},
		{"unsupported source", writeCSV(t, dir, "notes.txt", "x"), dir, domain.ErrUnsupportedFormat},
		{"no url column", noColumn, dir, domain.ErrNoURLColumn},
		{"no valid links", noLinks, dir, domain.ErrNoValidLinks},
	}

	svc := newTestPipeline(testDownloadConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := svc.Start(context.Background(), tt.source, tt.dest, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if h != nil {
				t.Error("handle should be nil on error")
			}
			if svc.IsRunning() {
				t.Error("run flag should be released after a fatal error")
			}
		})
	}
}

func TestPipelineService_Start_RejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	server := newFileServer(t, release)
	dir := t.TempDir()
	src := writeCSV(t, dir, "slow.csv", "url", server.URL+"/block")

	svc := newTestPipeline(testDownloadConfig())
	h, err := svc.Start(context.Background(), src, filepath.Join(dir, "out"), nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !svc.IsRunning() {
		t.Error("IsRunning() = false during a run")
	}
	if h.URLColumn() != "url" || len(h.Candidates()) != 1 {
		t.Errorf("handle = column %q, %d candidates", h.URLColumn(), len(h.Candidates()))
	}

	rec := &progress.Recorder{}
	_, err = svc.Start(context.Background(), src, filepath.Join(dir, "out"), rec)
	if !errors.Is(err, domain.ErrConcurrentRun) {
		t.Errorf("second Start error = %v, want ErrConcurrentRun", err)
	}
	if len(rec.Messages()) != 0 {
		t.Errorf("rejected run should not report anything, got %q", rec.Messages())
	}

	close(release)
	outcomes, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].IsSaved() || outcomes[0].Filename != "slow_000.jpg" {
		t.Errorf("outcomes = %+v", outcomes)
	}
	if svc.IsRunning() {
		t.Error("IsRunning() = true after Wait")
	}

	// The pipeline is free again.
	h2, err := svc.Start(context.Background(), src, filepath.Join(dir, "out"), nil)
	if err != nil {
		t.Fatalf("Start after finish failed: %v", err)
	}
	h2.Wait()
}

func TestPipelineService_Cancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	server := newFileServer(t, release)
	dir := t.TempDir()
	src := writeCSV(t, dir, "slow.csv", "url", server.URL+"/block", server.URL+"/a.png")

	svc := newTestPipeline(testDownloadConfig())
	rec := &progress.Recorder{}
	h, err := svc.Start(context.Background(), src, dir, rec)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	h.Cancel()
	<-h.Done()

	outcomes, err := h.Wait()
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	// The in-flight request is aborted and recorded as failed; nothing after it runs.
	if len(outcomes) > 1 {
		t.Errorf("outcomes = %+v, want at most the in-flight item", outcomes)
	}
	if svc.IsRunning() {
		t.Error("IsRunning() = true after cancel")
	}

	// Only the initial zero; a cancelled run keeps its last progress.
	zeros := 0
	for _, p := range rec.Progress() {
		if p == [2]int{0, 2} {
			zeros++
		}
	}
	if zeros != 1 {
		t.Errorf("progress = %v, want no reset after cancel", rec.Progress())
	}
}

func TestPipelineService_Preview(t *testing.T) {
	dir := t.TempDir()
	src := writeCSV(t, dir, "links.csv", "id,地址", "1,https://example.com/a")

	svc := newTestPipeline(testDownloadConfig())
	table, err := svc.Preview(src)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if table.Len() != 1 || len(table.Columns) != 2 {
		t.Errorf("table = %d rows, %d columns", table.Len(), len(table.Columns))
	}

	if _, err := svc.Preview(""); !errors.Is(err, domain.ErrMissingSource) {
		t.Errorf("empty path error = %v, want ErrMissingSource", err)
	}
}
