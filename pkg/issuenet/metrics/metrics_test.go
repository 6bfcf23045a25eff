package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRun(t *testing.T) {
	r := New()
	end := time.Unix(1_740_000_000, 0)
	r.RecordRun(Run{Loaded: 20, RowsSkipped: 1, Duplicates: 2, Clusters: 3, Issues: 2, Inserted: 17, URLSkipped: 1,
		Fallbacks: 1, Duration: 4 * time.Second, Success: true, End: end})
	r.RecordRun(Run{Loaded: 5, Clusters: 0, Duration: time.Second})

	if got := testutil.ToFloat64(r.ArticlesLoaded); got != 25 {
		t.Errorf("articles loaded = %v", got)
	}
	if got := testutil.ToFloat64(r.ClustersFound); got != 0 {
		t.Errorf("clusters gauge = %v, want last run's value", got)
	}
	if got := testutil.ToFloat64(r.LastRunSuccessTime); got != float64(end.Unix()) {
		t.Errorf("last success = %v, failed run must not move it", got)
	}
	if got := testutil.ToFloat64(r.LastRunDuration); got != 1 {
		t.Errorf("last duration = %v", got)
	}
}

func TestObserveStage(t *testing.T) {
	r := New()
	r.ObserveStage("cluster", 200*time.Millisecond)
	r.ObserveStage("persist", time.Second)
	if n := testutil.CollectAndCount(r.StageDuration); n != 2 {
		t.Errorf("stage series = %d, want 2", n)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveStage("dedup", time.Second)
	r.RecordRun(Run{Loaded: 1})
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.RecordRun(Run{Issues: 2, Success: true, End: time.Now()})
	path := filepath.Join(t.TempDir(), "issuenet.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "issuenet_issues_written_total 2") {
		t.Errorf("textfile missing counter:\n%s", data)
	}
}
