// Package cache implements the three-layer, per-profile cache described
// in §4.3: an in-memory index for instant reads, a binary layer for fast
// reload, and a textual layer written alongside it as a resilience
// fallback when the binary layer's schema has drifted.
package cache

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"desec-core/internal/model"
)

// defaultZonesStaleAfter and recordsStaleAfter are the time-based
// invalidation windows from §4.3. defaultZonesStaleAfter is the default;
// a profile's sync_interval_minutes setting overrides it at construction
// time.
const (
	defaultZonesStaleAfter = 15 * time.Minute
	recordsStaleAfter      = 5 * time.Minute
)

// recordBucket is L1's per-domain entry: the RRset list plus its index
// and the time it was fetched, used for both O(1) lookup and staleness.
type recordBucket struct {
	List      []model.RRset
	Index     map[model.RRsetKey]int // into List
	FetchedAt time.Time
}

// Cache is the per-profile three-layer cache. All public methods are
// safe for concurrent use; one writer at a time per key, readers never
// block on writers (§4.3 "Concurrency").
type Cache struct {
	mu sync.RWMutex

	dir            string // profile's cache/ directory
	zonesStaleAfter time.Duration

	zones        []model.Zone
	zonesByName  map[string]int // into zones
	zonesFetched time.Time
	zonesLoaded  bool

	records map[string]*recordBucket // domain -> bucket
}

// New creates a Cache rooted at dir (typically <profile>/cache/). dir is
// created if it does not exist.
func New(dir string, zonesStaleAfter time.Duration) (*Cache, error) {
	if zonesStaleAfter <= 0 {
		zonesStaleAfter = defaultZonesStaleAfter
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache{
		dir:             dir,
		zonesStaleAfter: zonesStaleAfter,
		records:         make(map[string]*recordBucket),
	}, nil
}

// --- Zones ---

// ZonesResult is what Zones() returns: the cached list (possibly empty),
// whether it was found at all, and whether it should be considered stale.
type ZonesResult struct {
	Zones []model.Zone
	Hit   bool
	Stale bool
}

// Zones reads through L1 -> L2 -> L3, populating upper layers on a lower
// hit (§4.3 "Read path").
func (c *Cache) Zones() ZonesResult {
	c.mu.RLock()
	if c.zonesLoaded {
		zones := append([]model.Zone(nil), c.zones...)
		stale := time.Since(c.zonesFetched) > c.zonesStaleAfter
		c.mu.RUnlock()
		return ZonesResult{Zones: zones, Hit: true, Stale: stale}
	}
	c.mu.RUnlock()

	if zones, fetchedAt, ok := c.loadZonesBinary(); ok {
		c.setZones(zones, fetchedAt)
		return ZonesResult{Zones: zones, Hit: true, Stale: time.Since(fetchedAt) > c.zonesStaleAfter}
	}
	if zones, fetchedAt, ok := c.loadZonesText(); ok {
		c.setZones(zones, fetchedAt)
		return ZonesResult{Zones: zones, Hit: true, Stale: time.Since(fetchedAt) > c.zonesStaleAfter}
	}
	return ZonesResult{}
}

// ZonesAge reports how long ago the cached zone list was fetched. The
// second return is false when nothing has been cached yet.
func (c *Cache) ZonesAge() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.zonesLoaded {
		return 0, false
	}
	return time.Since(c.zonesFetched), true
}

// PutZones overwrites the cached zone list and writes all three layers
// (§4.3 "Write path").
func (c *Cache) PutZones(zones []model.Zone) error {
	now := time.Now()
	c.setZones(zones, now)
	return c.persistZones(zones, now)
}

// InvalidateZones evicts the zone cache from all three layers, mirroring
// the event-based rule "any zone add/delete evicts the full zone cache".
func (c *Cache) InvalidateZones() error {
	c.mu.Lock()
	c.zones = nil
	c.zonesByName = nil
	c.zonesLoaded = false
	c.mu.Unlock()

	var errs []error
	if err := os.Remove(c.binPath("zones")); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := os.Remove(c.jsonPath("zones")); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	return joinErrors(errs)
}

func (c *Cache) setZones(zones []model.Zone, fetchedAt time.Time) {
	byName := make(map[string]int, len(zones))
	for i, z := range zones {
		byName[z.Name] = i
	}
	c.mu.Lock()
	c.zones = zones
	c.zonesByName = byName
	c.zonesFetched = fetchedAt
	c.zonesLoaded = true
	c.mu.Unlock()
}

// --- Records ---

// RecordsResult mirrors ZonesResult for a single domain's RRsets.
type RecordsResult struct {
	RRsets []model.RRset
	Hit    bool
	Stale  bool
}

// Records reads through L1 -> L2 -> L3 for a single domain.
func (c *Cache) Records(domain string) RecordsResult {
	c.mu.RLock()
	if b, ok := c.records[domain]; ok {
		rrsets := append([]model.RRset(nil), b.List...)
		stale := time.Since(b.FetchedAt) > recordsStaleAfter
		c.mu.RUnlock()
		return RecordsResult{RRsets: rrsets, Hit: true, Stale: stale}
	}
	c.mu.RUnlock()

	if rrsets, fetchedAt, ok := c.loadRecordsBinary(domain); ok {
		c.setRecords(domain, rrsets, fetchedAt)
		return RecordsResult{RRsets: rrsets, Hit: true, Stale: time.Since(fetchedAt) > recordsStaleAfter}
	}
	if rrsets, fetchedAt, ok := c.loadRecordsText(domain); ok {
		c.setRecords(domain, rrsets, fetchedAt)
		return RecordsResult{RRsets: rrsets, Hit: true, Stale: time.Since(fetchedAt) > recordsStaleAfter}
	}
	return RecordsResult{}
}

// RecordsAge reports how long ago domain's RRsets were fetched.
func (c *Cache) RecordsAge(domain string) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.records[domain]
	if !ok {
		return 0, false
	}
	return time.Since(b.FetchedAt), true
}

// PutRecords overwrites domain's cached RRsets and writes all three layers.
func (c *Cache) PutRecords(domain string, rrsets []model.RRset) error {
	now := time.Now()
	c.setRecords(domain, rrsets, now)
	return c.persistRecords(domain, rrsets, now)
}

// InvalidateRecords evicts domain's RRsets from all three layers — "any
// successful record mutation in domain d evicts records[d]" (§4.3).
func (c *Cache) InvalidateRecords(domain string) error {
	c.mu.Lock()
	delete(c.records, domain)
	c.mu.Unlock()

	key := "records_" + domain
	var errs []error
	if err := os.Remove(c.binPath(key)); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := os.Remove(c.jsonPath(key)); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	return joinErrors(errs)
}

func (c *Cache) setRecords(domain string, rrsets []model.RRset, fetchedAt time.Time) {
	index := make(map[model.RRsetKey]int, len(rrsets))
	for i, rr := range rrsets {
		index[rr.Key()] = i
	}
	c.mu.Lock()
	c.records[domain] = &recordBucket{List: rrsets, Index: index, FetchedAt: fetchedAt}
	c.mu.Unlock()
}

// --- Persistence ---

func (c *Cache) binPath(key string) string  { return filepath.Join(c.dir, key+".bin") }
func (c *Cache) jsonPath(key string) string { return filepath.Join(c.dir, key+".json") }

type zonesEnvelope struct {
	FetchedAt time.Time    `json:"fetched_at"`
	Zones     []model.Zone `json:"zones"`
}

func (c *Cache) persistZones(zones []model.Zone, fetchedAt time.Time) error {
	env := zonesEnvelope{FetchedAt: fetchedAt, Zones: zones}
	if err := writeAtomicGob(c.binPath("zones"), env); err != nil {
		return fmt.Errorf("write zones binary layer: %w", err)
	}
	if err := writeAtomicJSON(c.jsonPath("zones"), env); err != nil {
		return fmt.Errorf("write zones text layer: %w", err)
	}
	return nil
}

func (c *Cache) loadZonesBinary() ([]model.Zone, time.Time, bool) {
	var env zonesEnvelope
	if !readGob(c.binPath("zones"), &env) {
		return nil, time.Time{}, false
	}
	return env.Zones, env.FetchedAt, true
}

func (c *Cache) loadZonesText() ([]model.Zone, time.Time, bool) {
	var env zonesEnvelope
	if !readJSON(c.jsonPath("zones"), &env) {
		return nil, time.Time{}, false
	}
	return env.Zones, env.FetchedAt, true
}

type recordsEnvelope struct {
	FetchedAt time.Time     `json:"fetched_at"`
	RRsets    []model.RRset `json:"rrsets"`
}

func (c *Cache) persistRecords(domain string, rrsets []model.RRset, fetchedAt time.Time) error {
	env := recordsEnvelope{FetchedAt: fetchedAt, RRsets: rrsets}
	key := "records_" + domain
	if err := writeAtomicGob(c.binPath(key), env); err != nil {
		return fmt.Errorf("write records binary layer for %s: %w", domain, err)
	}
	if err := writeAtomicJSON(c.jsonPath(key), env); err != nil {
		return fmt.Errorf("write records text layer for %s: %w", domain, err)
	}
	return nil
}

func (c *Cache) loadRecordsBinary(domain string) ([]model.RRset, time.Time, bool) {
	var env recordsEnvelope
	if !readGob(c.binPath("records_"+domain), &env) {
		return nil, time.Time{}, false
	}
	return env.RRsets, env.FetchedAt, true
}

func (c *Cache) loadRecordsText(domain string) ([]model.RRset, time.Time, bool) {
	var env recordsEnvelope
	if !readJSON(c.jsonPath("records_"+domain), &env) {
		return nil, time.Time{}, false
	}
	return env.RRsets, env.FetchedAt, true
}

// writeAtomicGob and writeAtomicJSON both write to a temp file in the
// same directory and rename into place, so a crash mid-write never
// leaves a torn L2/L3 file (§4.3 "always written atomically").
func writeAtomicGob(path string, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encode gob: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

func writeAtomicJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}

// readGob and readJSON return false on any read/decode failure — a
// missing file, truncated write, or schema drift are all treated as a
// miss, letting the caller fall through to the next layer.
func readGob(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return false
	}
	return true
}

func readJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false
	}
	return true
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d error(s): %v", len(errs), msgs)
}
