package version

import (
	"testing"

	"desec-core/internal/model"
)

func sampleRRsets() []model.RRset {
	return []model.RRset{
		{Subname: "", Type: "A", TTL: 3600, Records: []string{"1.2.3.4"}},
		{Subname: "www", Type: "CNAME", TTL: 3600, Records: []string{"example.com."}},
	}
}

func TestSnapshotIdempotentOnUnchangedState(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h1, err := s.Snapshot("example.com", "first", sampleRRsets())
	if err != nil {
		t.Fatal(err)
	}
	h2, err := s.Snapshot("example.com", "duplicate", sampleRRsets())
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical state to dedup to the same hash, got %s and %s", h1, h2)
	}
	entries, err := s.List("example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 entry after a no-op snapshot, got %d", len(entries))
	}
}

func TestSnapshotAppendsOnChangedState(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Snapshot("example.com", "first", sampleRRsets()); err != nil {
		t.Fatal(err)
	}
	changed := sampleRRsets()
	changed[0].Records = []string{"5.6.7.8"}
	if _, err := s.Snapshot("example.com", "second", changed); err != nil {
		t.Fatal(err)
	}
	entries, err := s.List("example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", len(entries))
	}
}

func TestReadRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	want := sampleRRsets()
	hash, err := s.Snapshot("example.com", "msg", want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Read("example.com", hash)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d rrsets back, got %d", len(want), len(got))
	}
}

func TestRestoreBuildsBulkPutRequest(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	hash, err := s.Snapshot("example.com", "msg", sampleRRsets())
	if err != nil {
		t.Fatal(err)
	}
	req, err := s.Restore("example.com", hash)
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != "PUT" {
		t.Fatalf("expected a PUT request, got %s", req.Method)
	}
	if req.URL != "/domains/example.com/rrsets/" {
		t.Fatalf("unexpected restore URL: %s", req.URL)
	}
}

func TestDiffAgainstDetectsAddedRemovedChanged(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	hash, err := s.Snapshot("example.com", "msg", sampleRRsets())
	if err != nil {
		t.Fatal(err)
	}

	current := []model.RRset{
		{Subname: "", Type: "A", TTL: 3600, Records: []string{"9.9.9.9"}}, // changed
		{Subname: "mail", Type: "MX", TTL: 3600, Records: []string{"10 mail.example.com."}}, // not in snapshot -> removed relative to snapshot
	}
	diff, err := s.DiffAgainst("example.com", hash, current)
	if err != nil {
		t.Fatal(err)
	}
	if len(diff.Changed) != 1 {
		t.Fatalf("expected 1 changed rrset, got %d", len(diff.Changed))
	}
	if len(diff.Added) != 1 {
		t.Fatalf("expected 1 added rrset (www CNAME present in snapshot only), got %d", len(diff.Added))
	}
	if len(diff.Removed) != 1 {
		t.Fatalf("expected 1 removed rrset (mail MX present only in current), got %d", len(diff.Removed))
	}
}

func TestDeleteHistoryDropsAllEntries(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Snapshot("example.com", "msg", sampleRRsets()); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteHistory("example.com"); err != nil {
		t.Fatal(err)
	}
	entries, err := s.List("example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries after delete_history, got %d", len(entries))
	}
}
