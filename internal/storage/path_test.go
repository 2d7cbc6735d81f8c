package storage

import (
	"testing"
	"time"
)

func TestBuildSnapshotPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 23, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildSnapshotPath("sales_data", ts, 3)
	if err != nil {
		t.Fatalf("BuildSnapshotPath() error = %v", err)
	}
	want := "sales_data/date=2026-02-20/snapshot-1771560300-00003.parquet"
	if key != want {
		t.Fatalf("BuildSnapshotPath() = %q, want %q", key, want)
	}
}

func TestBuildSnapshotPathRejectsInvalidInput(t *testing.T) {
	if _, err := BuildSnapshotPath("../oops", time.Now(), 0); err == nil {
		t.Fatal("expected invalid component error")
	}
	if _, err := BuildSnapshotPath("sales_data", time.Now(), -1); err == nil {
		t.Fatal("expected invalid part error")
	}
}
