package importer_test

import (
	"testing"

	"github.com/ucsf-education/ldapsync/importer"
)

func TestUserListCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	userlist := []string{"00001@example.org", "00002@example.org"}

	if _, err := importer.WriteUserListCache(dir, userlist); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, ok, err := importer.ReadUserListCache(dir)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !ok {
		t.Fatal("cache reported missing after write")
	}
	if len(got) != len(userlist) || got[0] != userlist[0] || got[1] != userlist[1] {
		t.Errorf("got %v, want %v", got, userlist)
	}
}

func TestUserListCacheMissing(t *testing.T) {
	_, ok, err := importer.ReadUserListCache(t.TempDir())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if ok {
		t.Error("empty directory reported a cache hit")
	}
}

func TestInvalidateUserListCache(t *testing.T) {
	dir := t.TempDir()
	if _, err := importer.WriteUserListCache(dir, []string{"00001@example.org"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if err := importer.InvalidateUserListCache(dir); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, ok, _ := importer.ReadUserListCache(dir); ok {
		t.Error("cache still present after invalidation")
	}

	// invalidating an absent cache is not an error
	if err := importer.InvalidateUserListCache(dir); err != nil {
		t.Errorf("second invalidate failed: %v", err)
	}
}
