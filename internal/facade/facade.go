// Package facade is the single entry point the UI layer talks to (§4.7).
// It wires together the profile store, credential store, cache, version
// store, HTTP client, and queue, and exposes the handful of operations
// and signals the rest of the process needs: submit/pause/resume,
// cache-first readers that enqueue a refresh when stale, snapshot
// browsing, and profile switching.
package facade

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"desec-core/internal/cache"
	"desec-core/internal/catalogue"
	"desec-core/internal/httpclient"
	"desec-core/internal/model"
	"desec-core/internal/profile"
	"desec-core/internal/queue"
	"desec-core/internal/version"
)

// Signals groups the callback hooks the UI layer registers once at
// startup (§4.7 "Signals"). Any hook left nil is simply not invoked.
type Signals struct {
	OnlineChanged    func(online bool)
	RateLimited      func(retryAfter int)
	QueueChanged     func()
	CacheInvalidated func(key string)
	Notify           func(level, title, message string)
}

// Facade is the core façade. One instance owns exactly one active
// profile's subsystems at a time; SwitchProfile tears down and rebuilds
// them.
type Facade struct {
	mu      sync.Mutex
	root    string
	store   *profile.Store
	signals Signals

	activeName string
	cfg        profile.Config
	token      string // plaintext, held only while the profile is active

	client   *httpclient.Client
	q        *queue.Queue
	ch       *cache.Cache
	versions *version.Store
	online   bool
}

// Open loads the profile registry at root, migrates a legacy single-profile
// layout if present, and activates whichever profile the registry names.
// It does not unseal a token — call SwitchProfile with the profile's
// password once the caller has it.
func Open(root string, signals Signals) (*Facade, error) {
	store, err := profile.Open(root)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	if err := store.MigrateLegacy(); err != nil {
		return nil, fmt.Errorf("migrate legacy config: %w", err)
	}

	f := &Facade{root: root, store: store, signals: signals}
	active, err := store.Active()
	if err != nil {
		return nil, err
	}
	if err := f.activate(active, ""); err != nil {
		return nil, err
	}
	return f, nil
}

// activate (re)builds every per-profile subsystem for name. password may
// be empty if the profile has no sealed token yet (first run).
func (f *Facade) activate(name, password string) error {
	cfgPath := f.store.ConfigPath(name)
	cfg, err := profile.LoadConfig(cfgPath)
	if err != nil {
		cfg = profile.DefaultConfig()
		if err := profile.SaveConfig(cfgPath, cfg); err != nil {
			return fmt.Errorf("write initial config: %w", err)
		}
	}

	var token string
	if cfg.SealedToken != "" && password != "" {
		salt, err := readSalt(f.store.SaltPath(name))
		if err != nil {
			return err
		}
		token, err = profile.UnsealToken(password, salt, cfg.SealedToken)
		if err != nil {
			return fmt.Errorf("unlock profile %q: %w", name, err)
		}
	}

	ch, err := cache.New(f.store.CacheDir(name), durationMinutes(cfg.SyncIntervalMinutes))
	if err != nil {
		return err
	}
	versions, err := version.New(f.store.VersionsDir(name))
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.activeName = name
	f.cfg = cfg
	f.token = token
	f.ch = ch
	f.versions = versions
	f.mu.Unlock()

	client := httpclient.New(cfg.BaseURL, cfg.RateLimit, f.currentToken)
	q := queue.New(client, cfg.QueueHistoryCap)
	q.OnRateLimited(func(retryAfter int) {
		if f.signals.RateLimited != nil {
			f.signals.RateLimited(retryAfter)
		}
	})
	q.OnQueueChange(func() {
		if f.signals.QueueChanged != nil {
			f.signals.QueueChanged()
		}
	})
	if cfg.QueueHistoryPersist {
		if err := q.LoadHistory(f.historyPath(name)); err != nil {
			log.Printf("[facade] load queue history for %s: %v", name, err)
		}
	}
	q.Start()

	f.mu.Lock()
	f.client = client
	f.q = q
	f.online = !cfg.OfflineMode
	f.mu.Unlock()

	if cfg.OfflineMode {
		q.Pause()
	}
	return nil
}

func (f *Facade) historyPath(name string) string {
	return filepath.Join(f.store.ProfileDir(name), "queue_history.json")
}

func (f *Facade) currentToken() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func durationMinutes(n int) time.Duration { return time.Duration(n) * time.Minute }

func readSalt(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile salt: %w", err)
	}
	return data, nil
}

// --- Queue operations ---

// Submit enqueues a request and returns a cancellable handle (§4.7 "submit").
func (f *Facade) Submit(s queue.Submission) queue.Handle {
	f.mu.Lock()
	q := f.q
	f.mu.Unlock()
	return q.Submit(s)
}

// Pause stops dispatch; used by offline mode and explicit user action.
func (f *Facade) Pause() {
	f.mu.Lock()
	q := f.q
	f.online = false
	f.mu.Unlock()
	q.Pause()
	if f.signals.OnlineChanged != nil {
		f.signals.OnlineChanged(false)
	}
}

// Resume re-enables dispatch and enqueues a HIGH-priority connectivity
// check — CheckConnectivity supplements §4.7/§5 "a connectivity check is
// enqueued at HIGH" for the explicit resume() call, not just the offline
// toggle.
func (f *Facade) Resume() {
	f.mu.Lock()
	q := f.q
	f.online = true
	f.mu.Unlock()
	q.Resume()
	if f.signals.OnlineChanged != nil {
		f.signals.OnlineChanged(true)
	}
	f.CheckConnectivity(nil)
}

// SetRate forwards to the queue's rate limiter.
func (f *Facade) SetRate(rate float64) {
	f.mu.Lock()
	q := f.q
	f.mu.Unlock()
	q.SetRate(rate)
}

// CheckConnectivity enqueues a HIGH-priority account fetch purely to
// exercise the connection; cb (optional) receives the raw queue item.
func (f *Facade) CheckConnectivity(cb queue.Callback) queue.Handle {
	return f.Submit(queue.Submission{
		Priority: model.PriorityHigh,
		Category: "connectivity",
		Action:   "check connectivity",
		Request:  httpclient.NewGetAccountRequest(),
		Callback: cb,
	})
}

// --- Cache-first readers ---

// Zones returns the cached zone list, enqueueing a refresh if stale or
// absent (§4.7 "zones()").
func (f *Facade) Zones() ([]model.Zone, bool) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()

	res := ch.Zones()
	if !res.Hit || res.Stale {
		f.refreshZones()
	}
	return res.Zones, res.Hit
}

func (f *Facade) refreshZones() {
	f.Submit(queue.Submission{
		Priority: model.PriorityNormal,
		Category: "zones",
		Action:   "refresh zone list",
		Request:  httpclient.NewListZonesRequest(),
		Callback: func(it queue.Item) {
			if it.Status != model.StatusOK || it.Response == nil {
				return
			}
			zones, err := httpclient.ParseZones(it.Response.Body)
			if err != nil {
				log.Printf("[facade] parse zones: %v", err)
				return
			}
			f.mu.Lock()
			ch := f.ch
			f.mu.Unlock()
			if err := ch.PutZones(zones); err == nil {
				f.invalidated("zones")
			}
		},
	})
}

// Records returns the cached RRsets for domain, enqueueing a refresh if
// stale or absent (§4.7 "records(domain)").
func (f *Facade) Records(domain string) ([]model.RRset, bool) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()

	res := ch.Records(domain)
	if !res.Hit || res.Stale {
		f.refreshRecords(domain)
	}
	return res.RRsets, res.Hit
}

func (f *Facade) refreshRecords(domain string) {
	f.Submit(queue.Submission{
		Priority: model.PriorityNormal,
		Category: "records",
		Action:   fmt.Sprintf("refresh records for %s", domain),
		Request:  httpclient.NewListRRsetsRequest(domain),
		Callback: func(it queue.Item) {
			if it.Status != model.StatusOK || it.Response == nil {
				return
			}
			rrsets, err := httpclient.ParseRRsets(it.Response.Body)
			if err != nil {
				log.Printf("[facade] parse rrsets for %s: %v", domain, err)
				return
			}
			f.mu.Lock()
			ch := f.ch
			f.mu.Unlock()
			if err := ch.PutRecords(domain, rrsets); err == nil {
				f.invalidated("records:" + domain)
			}
		},
	})
}

// Account enqueues a fetch of the account info and passes the result to
// cb once the queue delivers it. There is no account cache layer: nothing
// is returned immediately, and a failed fetch yields an error rather than
// last-known data.
func (f *Facade) Account(cb func(model.AccountInfo, error)) queue.Handle {
	return f.Submit(queue.Submission{
		Priority: model.PriorityNormal,
		Category: "account",
		Action:   "refresh account info",
		Request:  httpclient.NewGetAccountRequest(),
		Callback: func(it queue.Item) {
			if cb == nil {
				return
			}
			if it.Status != model.StatusOK || it.Response == nil {
				cb(model.AccountInfo{}, fmt.Errorf("account refresh failed: %s", it.Err))
				return
			}
			info, err := httpclient.ParseAccount(it.Response.Body)
			cb(info, err)
		},
	})
}

func (f *Facade) invalidated(key string) {
	if f.signals.CacheInvalidated != nil {
		f.signals.CacheInvalidated(key)
	}
}

// --- Record mutation helper ---

// SubmitRecordMutation wraps a record-mutating request so that, on
// success, it evicts the domain's cache and triggers a best-effort
// version snapshot — §2 "for record mutations — triggers a version
// snapshot and cache invalidation".
func (f *Facade) SubmitRecordMutation(zone string, s queue.Submission, snapshotMessage string) queue.Handle {
	userCallback := s.Callback
	s.Callback = func(it queue.Item) {
		if it.Status == model.StatusOK {
			f.mu.Lock()
			ch, versions := f.ch, f.versions
			f.mu.Unlock()
			if err := ch.InvalidateRecords(zone); err == nil {
				f.invalidated("records:" + zone)
			}
			f.snapshotBestEffort(versions, zone, snapshotMessage)
		}
		if userCallback != nil {
			userCallback(it)
		}
	}
	return f.Submit(s)
}

// snapshotBestEffort fetches the zone's current RRsets and appends a
// version snapshot. A failure here never fails the originating mutation
// (§4.5 "Failure model").
func (f *Facade) snapshotBestEffort(versions *version.Store, zone, message string) {
	f.Submit(queue.Submission{
		Priority: model.PriorityLow,
		Category: "versions",
		Action:   fmt.Sprintf("snapshot %s", zone),
		Request:  httpclient.NewListRRsetsRequest(zone),
		Callback: func(it queue.Item) {
			if it.Status != model.StatusOK || it.Response == nil {
				return
			}
			rrsets, err := httpclient.ParseRRsets(it.Response.Body)
			if err != nil {
				return
			}
			if _, err := versions.Snapshot(zone, message, rrsets); err != nil {
				log.Printf("[facade] snapshot %s failed (non-fatal): %v", zone, err)
			}
		},
	})
}

// BulkDeleteRecords deletes each of keys from zone one at a time, continuing
// past per-item failures and returning an aggregate summary rather than
// aborting on the first error (§7 "Bulk operations ... continue on
// per-item failure and produce a per-item log plus an aggregate summary").
// Each deletion still goes through SubmitRecordMutation, so the cache
// eviction and version snapshot fire exactly as they would for a single
// interactive delete.
func (f *Facade) BulkDeleteRecords(zone string, keys []model.RRsetKey) model.BulkResult {
	var result model.BulkResult
	for _, k := range keys {
		done := make(chan queue.Item, 1)
		f.SubmitRecordMutation(zone, queue.Submission{
			Priority: model.PriorityLow,
			Category: "records",
			Action:   fmt.Sprintf("bulk delete %s %s from %s", k.Subname, k.Type, zone),
			Request:  httpclient.NewDeleteRRsetRequest(zone, k.Subname, k.Type),
			Callback: func(it queue.Item) { done <- it },
		}, fmt.Sprintf("bulk delete %s/%s", k.Subname, k.Type))

		it := <-done
		if it.Status == model.StatusOK {
			result.Succeeded++
			continue
		}
		result.Failed = append(result.Failed, model.FailedItem{
			Description: fmt.Sprintf("%s/%s", k.Subname, k.Type),
			Err:         fmt.Errorf("%s", it.Err),
		})
	}
	return result
}

// --- Version store passthrough ---

// Snapshots returns zone's version history, newest first.
func (f *Facade) Snapshots(zone string) ([]version.Entry, error) {
	f.mu.Lock()
	versions := f.versions
	f.mu.Unlock()
	return versions.List(zone)
}

// Restore emits the single bulk-put queue item that reverts zone to the
// state recorded at hash (§4.5 "restore").
func (f *Facade) Restore(zone, hash string, cb queue.Callback) (queue.Handle, error) {
	f.mu.Lock()
	versions := f.versions
	f.mu.Unlock()

	req, err := versions.Restore(zone, hash)
	if err != nil {
		return queue.Handle{}, err
	}
	return f.SubmitRecordMutation(zone, queue.Submission{
		Priority: model.PriorityHigh,
		Category: "zones",
		Action:   fmt.Sprintf("restore %s to %s", zone, hash),
		Request:  req,
		Callback: cb,
	}, fmt.Sprintf("restored from %s", hash)), nil
}

// --- Profile passthrough ---

// Profiles lists all known profiles.
func (f *Facade) Profiles() ([]profile.Metadata, error) { return f.store.List() }

// CreateProfile registers a new, empty profile without activating it.
func (f *Facade) CreateProfile(name, display string) (profile.Metadata, error) {
	return f.store.Create(name, display)
}

// SetToken seals token under password and persists it into the active
// profile's config, then makes it available to the HTTP client
// immediately — the CLI's equivalent of the desktop client's login
// dialog (§4.6 "Credential hygiene").
func (f *Facade) SetToken(password, token string) error {
	f.mu.Lock()
	name, cfg := f.activeName, f.cfg
	f.mu.Unlock()

	saltPath := f.store.SaltPath(name)
	salt, err := readSalt(saltPath)
	if err != nil {
		salt, err = profile.NewSalt()
		if err != nil {
			return err
		}
		if err := os.WriteFile(saltPath, salt, 0o600); err != nil {
			return fmt.Errorf("write profile salt: %w", err)
		}
	}

	sealed, err := profile.SealToken(password, salt, token)
	if err != nil {
		return err
	}
	cfg.SealedToken = sealed
	if err := profile.SaveConfig(f.store.ConfigPath(name), cfg); err != nil {
		return err
	}

	f.mu.Lock()
	f.cfg = cfg
	f.token = token
	f.mu.Unlock()
	return nil
}

// SwitchProfile deactivates the current profile's subsystems and
// activates name. password unlocks name's sealed token, if any.
func (f *Facade) SwitchProfile(name, password string) error {
	f.mu.Lock()
	oldQueue := f.q
	f.mu.Unlock()
	if oldQueue != nil {
		oldQueue.Stop()
	}
	if err := f.store.Switch(name); err != nil {
		return err
	}
	return f.activate(name, password)
}

// --- Validation passthrough ---

// ValidateRecord exposes the catalogue's validator so the UI layer never
// needs to import it directly.
func ValidateRecord(recordType string, values []string) error {
	return catalogue.Validate(recordType, values)
}

// --- Lifecycle ---

// Online reports whether the façade believes the queue is dispatching
// (i.e. not paused for offline mode or mid-cooldown).
func (f *Facade) Online() bool {
	f.mu.Lock()
	online, q := f.online, f.q
	f.mu.Unlock()
	return online && !q.Paused()
}

// QueueSnapshot exposes the active queue's pending/history view.
func (f *Facade) QueueSnapshot() queue.Snapshot {
	f.mu.Lock()
	q := f.q
	f.mu.Unlock()
	return q.Snapshot()
}

// Close persists queue history (if enabled for the active profile) and
// stops the queue's goroutines. Call once on process shutdown.
func (f *Facade) Close() error {
	f.mu.Lock()
	q, name, persist := f.q, f.activeName, f.cfg.QueueHistoryPersist
	f.mu.Unlock()

	var err error
	if persist {
		err = q.SaveHistory(f.historyPath(name))
	}
	q.Stop()
	return err
}
