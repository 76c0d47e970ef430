package importer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ucsf-education/ldapsync/database"
	"github.com/ucsf-education/ldapsync/directory"
	"github.com/ucsf-education/ldapsync/importer"
)

type fakeSearcher struct {
	since  string
	people []directory.Person
	err    error
}

func (f *fakeSearcher) FetchUpdates(sinceLdapTime string) ([]directory.Person, error) {
	f.since = sinceLdapTime
	return f.people, f.err
}

type fakeReconciler struct {
	got   []directory.Person
	stats database.ReconcileStats
	err   error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, people []directory.Person) (database.ReconcileStats, error) {
	f.got = people
	return f.stats, f.err
}

type memStore map[string]string

func (m memStore) GetConfig(ctx context.Context, key string) (string, error) {
	return m[key], nil
}

func (m memStore) SetConfig(ctx context.Context, key, value string) error {
	m[key] = value
	return nil
}

func TestRunAdvancesWatermark(t *testing.T) {
	searcher := &fakeSearcher{people: []directory.Person{{Username: "00001@example.org"}}}
	reconciler := &fakeReconciler{}
	store := memStore{}

	imp := importer.New(searcher, reconciler, store, 0)
	if err := imp.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stored := store[importer.WatermarkKey]
	if stored == "" {
		t.Fatal("watermark was not persisted")
	}
	if _, err := time.Parse(time.RFC3339, stored); err != nil {
		t.Errorf("watermark %q is not RFC3339: %v", stored, err)
	}
	if len(reconciler.got) != 1 {
		t.Errorf("reconciler got %d records, want 1", len(reconciler.got))
	}
}

func TestRunKeepsWatermarkOnDirectoryFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection reset")}
	store := memStore{importer.WatermarkKey: "2024-01-01T00:00:00Z"}

	imp := importer.New(searcher, &fakeReconciler{}, store, 0)
	if err := imp.Run(context.Background()); err == nil {
		t.Fatal("expected error from failed directory query")
	}

	if store[importer.WatermarkKey] != "2024-01-01T00:00:00Z" {
		t.Errorf("watermark changed to %q after failed pass", store[importer.WatermarkKey])
	}
}

func TestRunKeepsWatermarkOnReconcileFailure(t *testing.T) {
	searcher := &fakeSearcher{people: []directory.Person{{Username: "00001@example.org"}}}
	reconciler := &fakeReconciler{err: errors.New("couldn't create staging table")}
	store := memStore{importer.WatermarkKey: "2024-01-01T00:00:00Z"}

	imp := importer.New(searcher, reconciler, store, 0)
	if err := imp.Run(context.Background()); err == nil {
		t.Fatal("expected error from failed reconciliation")
	}

	if store[importer.WatermarkKey] != "2024-01-01T00:00:00Z" {
		t.Errorf("watermark changed to %q after failed pass", store[importer.WatermarkKey])
	}
}

func TestRunUsesStoredWatermark(t *testing.T) {
	searcher := &fakeSearcher{}
	store := memStore{importer.WatermarkKey: "2024-01-02T03:04:05Z"}

	imp := importer.New(searcher, &fakeReconciler{}, store, 0)
	if err := imp.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if searcher.since != "20240102030405Z" {
		t.Errorf("searcher got watermark %q, want %q", searcher.since, "20240102030405Z")
	}
}

func TestRunFullScanWithoutWatermark(t *testing.T) {
	searcher := &fakeSearcher{}
	imp := importer.New(searcher, &fakeReconciler{}, memStore{}, 0)
	if err := imp.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if searcher.since != "" {
		t.Errorf("expected full scan, got watermark %q", searcher.since)
	}
}

func TestRunFullScanOnGarbageWatermark(t *testing.T) {
	searcher := &fakeSearcher{}
	store := memStore{importer.WatermarkKey: "last tuesday"}

	imp := importer.New(searcher, &fakeReconciler{}, store, 0)
	if err := imp.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if searcher.since != "" {
		t.Errorf("expected full scan fallback, got %q", searcher.since)
	}
}

func TestRunSinceOverrideWinsOverStore(t *testing.T) {
	searcher := &fakeSearcher{}
	store := memStore{importer.WatermarkKey: "2024-01-02T03:04:05Z"}

	imp := importer.New(searcher, &fakeReconciler{}, store, 946684800)
	if err := imp.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if searcher.since != "20000101000000Z" {
		t.Errorf("searcher got %q, want the override window", searcher.since)
	}
}
