// Package version is the per-profile Zone Version Store: a tamper-evident,
// append-only log of zone states so a user can browse and revert history
// (§4.5). Entries are content-addressed by the sha256 of their canonical
// state blob, which gives snapshot() its idempotence for free.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"desec-core/internal/httpclient"
	"desec-core/internal/model"
)

// Entry is one append-only log row, as returned by List.
type Entry struct {
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// snapshotFile is the on-disk shape of <zone>/<hash>.json.
type snapshotFile struct {
	Zone      string       `json:"zone"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
	StateHash string       `json:"state_hash"`
	RRsets    []model.RRset `json:"rrsets"`
}

// Store manages one profile's versions/ directory, one subdirectory per zone.
type Store struct {
	root string
}

// New creates a Store rooted at dir (typically <profile>/versions/).
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create version store directory: %w", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) zoneDir(zone string) string { return filepath.Join(s.root, zone) }

// canonicalize produces the deterministic state_blob described in §4.5:
// RRsets sorted by (subname, type), each record value's lines joined by
// newline. Two snapshots of the same logical state always hash equal
// regardless of the order the API returned them in.
func canonicalize(rrsets []model.RRset) []byte {
	sorted := append([]model.RRset(nil), rrsets...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Subname != sorted[j].Subname {
			return sorted[i].Subname < sorted[j].Subname
		}
		return sorted[i].Type < sorted[j].Type
	})

	var b strings.Builder
	for _, rr := range sorted {
		fmt.Fprintf(&b, "%s\t%s\t%d\n", rr.Subname, rr.Type, rr.TTL)
		b.WriteString(strings.Join(rr.Records, "\n"))
		b.WriteString("\n---\n")
	}
	return []byte(b.String())
}

func hashOf(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// Snapshot computes the state_blob for rrsets and appends a new entry
// unless its hash matches the most recent entry for zone, in which case
// it is a no-op (§4.5 "Snapshots are idempotent"). Returns the entry's
// hash either way.
func (s *Store) Snapshot(zone, message string, rrsets []model.RRset) (string, error) {
	blob := canonicalize(rrsets)
	hash := hashOf(blob)

	entries, err := s.List(zone)
	if err != nil {
		return "", fmt.Errorf("list existing snapshots: %w", err)
	}
	if len(entries) > 0 && entries[0].Hash == hash {
		return hash, nil
	}

	sf := snapshotFile{Zone: zone, Message: message, Timestamp: time.Now(), StateHash: hash, RRsets: rrsets}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	dir := s.zoneDir(zone)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create zone version directory: %w", err)
	}
	path := filepath.Join(dir, hash+".json")
	tmp, err := os.CreateTemp(dir, hash+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp snapshot file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write temp snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename snapshot into place: %w", err)
	}
	return hash, nil
}

// List returns zone's snapshots newest first.
func (s *Store) List(zone string) ([]Entry, error) {
	dir := s.zoneDir(zone)
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read zone version directory: %w", err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		sf, err := s.readSnapshot(zone, strings.TrimSuffix(f.Name(), ".json"))
		if err != nil {
			continue // a corrupted entry is skipped, not fatal to the whole list
		}
		entries = append(entries, Entry{Hash: sf.StateHash, Timestamp: sf.Timestamp, Message: sf.Message})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	return entries, nil
}

func (s *Store) readSnapshot(zone, hash string) (snapshotFile, error) {
	data, err := os.ReadFile(filepath.Join(s.zoneDir(zone), hash+".json"))
	if err != nil {
		return snapshotFile{}, err
	}
	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return snapshotFile{}, err
	}
	return sf, nil
}

// Read returns the full RRset state recorded at hash.
func (s *Store) Read(zone, hash string) ([]model.RRset, error) {
	sf, err := s.readSnapshot(zone, hash)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s/%s: %w", zone, hash, err)
	}
	return sf.RRsets, nil
}

// Restore builds the single bulk-put Request that replaces zone's entire
// RRset collection with the state recorded at hash. The store never
// mutates the service itself — it only hands back the intent; the
// façade is responsible for actually submitting it through the queue
// (§4.5 "The store itself does not mutate the service").
func (s *Store) Restore(zone, hash string) (model.Request, error) {
	rrsets, err := s.Read(zone, hash)
	if err != nil {
		return model.Request{}, err
	}
	return httpclient.NewBulkPutRRsetsRequest(zone, rrsets), nil
}

// Diff reports which RRsets differ between the snapshot at hash and the
// zone's current state, keyed by (subname, type). This supplements the
// distilled "restore" operation with the comparison the original desktop
// client's history browser shows before a user commits to reverting.
type Diff struct {
	Added   []model.RRset
	Removed []model.RRset
	Changed []model.RRset // the snapshot's version of a changed RRset
}

func (s *Store) DiffAgainst(zone, hash string, current []model.RRset) (Diff, error) {
	target, err := s.Read(zone, hash)
	if err != nil {
		return Diff{}, err
	}

	currentByKey := make(map[model.RRsetKey]model.RRset, len(current))
	for _, rr := range current {
		currentByKey[rr.Key()] = rr
	}
	targetByKey := make(map[model.RRsetKey]model.RRset, len(target))
	for _, rr := range target {
		targetByKey[rr.Key()] = rr
	}

	var d Diff
	for key, rr := range targetByKey {
		cur, ok := currentByKey[key]
		if !ok {
			d.Added = append(d.Added, rr)
			continue
		}
		if cur.TTL != rr.TTL || !sameRecords(cur.Records, rr.Records) {
			d.Changed = append(d.Changed, rr)
		}
	}
	for key, rr := range currentByKey {
		if _, ok := targetByKey[key]; !ok {
			d.Removed = append(d.Removed, rr)
		}
	}
	return d, nil
}

func sameRecords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := append([]string(nil), a...), append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// DeleteHistory drops all entries for zone.
func (s *Store) DeleteHistory(zone string) error {
	if err := os.RemoveAll(s.zoneDir(zone)); err != nil {
		return fmt.Errorf("delete version history for %s: %w", zone, err)
	}
	return nil
}
