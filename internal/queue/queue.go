package queue

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"desec-core/internal/httpclient"
	"desec-core/internal/model"
)

const defaultHistoryCap = 5000

// maxAutoRetrySeconds and maxAutoRetryCount bound the auto-retry policy
// on a RateLimited result (§4.2): with retry_after at most
// maxAutoRetrySeconds and fewer than maxAutoRetryCount prior retries the
// item is re-enqueued; otherwise it terminates as rate_limited and the
// queue enters cooldown.
const (
	maxAutoRetrySeconds = 60
	maxAutoRetryCount   = 3
)

// node wraps an Item with the bookkeeping the heap and cancellation path
// need but that has no business being part of the value callers see.
type node struct {
	item            *Item
	index           int
	cancelRequested bool
}

type pqueue []*node

func (pq pqueue) Len() int { return len(pq) }

func (pq pqueue) Less(i, j int) bool {
	a, b := pq[i].item, pq[j].item
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.seq < b.seq
}

func (pq pqueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pqueue) Push(x any) {
	n := x.(*node)
	n.index = len(*pq)
	*pq = append(*pq, n)
}

func (pq *pqueue) Pop() any {
	old := *pq
	n := len(old)
	n0 := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return n0
}

// Handle is returned by Submit and lets the caller cancel the item it
// names without holding a reference to the queue's internals.
type Handle struct {
	ID int64
	q  *Queue
}

// Cancel requests cancellation of the handle's item. Returns false if the
// item has already reached a terminal status or is unknown.
func (h Handle) Cancel() bool { return h.q.cancel(h.ID) }

// Snapshot is the structural copy of queue state handed to the UI layer.
type Snapshot struct {
	Pending []Item
	History []Item
	Paused  bool
}

// Queue is the single-writer serializer described in §4.2: one worker
// goroutine dequeues items in (priority, sequence) order, dispatches
// them through an httpclient.Client, and hands terminal results to a
// dedicated delivery goroutine so callbacks always arrive in a single,
// globally ordered stream (§5 ordering guarantee (a)).
type Queue struct {
	mu          sync.Mutex
	pq          pqueue
	pendingByID map[int64]*node
	runningNode *node
	history     []Item
	historyCap  int
	paused      bool
	nextID      int64
	nextSeq     int64

	client *httpclient.Client
	clock  httpclient.Clock

	wakeCh     chan struct{}
	deliverCh  chan Item
	stopCh     chan struct{}
	wg         sync.WaitGroup
	started    bool

	onRateLimited func(retryAfter int)
	onQueueChange func()
}

// New creates a Queue bound to client. historyCap <= 0 uses the default
// of 5000 entries (§4.2 "History").
func New(client *httpclient.Client, historyCap int) *Queue {
	if historyCap <= 0 {
		historyCap = defaultHistoryCap
	}
	return &Queue{
		pendingByID: make(map[int64]*node),
		historyCap:  historyCap,
		client:      client,
		clock:       httpclient.NewRealClock(),
		wakeCh:      make(chan struct{}, 1),
		deliverCh:   make(chan Item, 64),
		stopCh:      make(chan struct{}),
	}
}

// OnRateLimited registers the façade's rate_limited(retry_after) signal.
func (q *Queue) OnRateLimited(fn func(retryAfter int)) { q.onRateLimited = fn }

// OnQueueChange registers the façade's queue_changed signal, fired after
// every enqueue, dequeue, or terminal transition.
func (q *Queue) OnQueueChange(fn func()) { q.onQueueChange = fn }

// WithClock overrides the queue's clock, for deterministic retry/cooldown
// tests (§8).
func (q *Queue) WithClock(c httpclient.Clock) *Queue {
	q.clock = c
	return q
}

// Start launches the worker and delivery goroutines. Idempotent.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	q.wg.Add(2)
	go q.runWorker()
	go q.runDelivery()
}

// Stop signals both goroutines to exit and waits for them.
func (q *Queue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
}

// Submit enqueues s and returns a Handle the caller can cancel.
func (q *Queue) Submit(s Submission) Handle {
	now := q.clock.Now()

	q.mu.Lock()
	q.nextID++
	id := q.nextID
	q.nextSeq++
	seq := q.nextSeq

	item := &Item{
		ID: id, Priority: s.Priority, Category: s.Category, Action: s.Action,
		Request: s.Request, Callback: s.Callback, CreatedAt: now,
		Status: model.StatusPending, seq: seq,
	}
	n := &node{item: item}
	q.pendingByID[id] = n
	heap.Push(&q.pq, n)
	q.mu.Unlock()

	q.wake()
	q.notifyChanged()
	return Handle{ID: id, q: q}
}

// Pause stops the worker from dispatching new items; a running item is
// allowed to complete (§4.2 "Pause/resume").
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
	q.notifyChanged()
}

// Resume re-enables dispatch and wakes the worker.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.wake()
	q.notifyChanged()
}

// Paused reports the queue's current pause state.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// SetRate forwards to the underlying client's rate limiter.
func (q *Queue) SetRate(rate float64) { q.client.Limiter().SetRate(rate) }

// Snapshot returns a structural copy of pending items and history.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := make([]Item, 0, len(q.pq))
	for _, n := range q.pq {
		pending = append(pending, *n.item)
	}
	if q.runningNode != nil {
		pending = append(pending, *q.runningNode.item)
	}
	history := make([]Item, len(q.history))
	copy(history, q.history)
	return Snapshot{Pending: pending, History: history, Paused: q.paused}
}

func (q *Queue) wake() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

func (q *Queue) notifyChanged() {
	if q.onQueueChange != nil {
		q.onQueueChange()
	}
}

// cancel implements Handle.Cancel. A pending item is removed from the
// heap and finalized synchronously — the spec's "cancelling a pending
// item is synchronous and guaranteed" (§5). A running item only gets a
// best-effort flag; the worker checks it once the in-flight call returns.
func (q *Queue) cancel(id int64) bool {
	q.mu.Lock()
	if n, ok := q.pendingByID[id]; ok {
		delete(q.pendingByID, id)
		heap.Remove(&q.pq, n.index)
		q.mu.Unlock()
		q.finalize(n.item, model.StatusCancelled, nil, "cancelled before dispatch")
		return true
	}
	if q.runningNode != nil && q.runningNode.item.ID == id {
		q.runningNode.cancelRequested = true
		q.mu.Unlock()
		return true
	}
	q.mu.Unlock()
	return false
}

func (q *Queue) runWorker() {
	defer q.wg.Done()
	for {
		n, ok := q.nextReady()
		if !ok {
			select {
			case <-q.wakeCh:
				continue
			case <-q.stopCh:
				return
			}
		}

		started := q.clock.Now()
		q.mu.Lock()
		n.item.StartedAt = &started
		n.item.Status = model.StatusRunning
		q.runningNode = n
		q.mu.Unlock()
		q.notifyChanged()

		result := q.client.DoRaw(context.Background(), n.item.Request)

		q.mu.Lock()
		cancelled := n.cancelRequested
		q.runningNode = nil
		q.mu.Unlock()

		if cancelled {
			q.finalize(n.item, model.StatusCancelled, nil, "cancelled while running")
			continue
		}
		q.handleResult(n, result)
	}
}

// nextReady pops the next dispatchable item, or reports false if the
// queue is empty or paused.
func (q *Queue) nextReady() (*node, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused || len(q.pq) == 0 {
		return nil, false
	}
	n := heap.Pop(&q.pq).(*node)
	delete(q.pendingByID, n.item.ID)
	return n, true
}

func (q *Queue) handleResult(n *node, result httpclient.Result) {
	switch {
	case result.OK():
		resp := &model.Response{StatusCode: result.StatusCode, Body: result.Payload, CorrelationID: result.CorrelationID}
		q.finalize(n.item, model.StatusOK, resp, "")
	case result.Kind == httpclient.KindRateLimited:
		q.onRateLimit(n, result)
	default:
		q.finalize(n.item, model.StatusFailed, nil, result.Error())
	}
}

// onRateLimit implements the auto-retry/cooldown policy of §4.2.
func (q *Queue) onRateLimit(n *node, result httpclient.Result) {
	q.client.Limiter().AdaptRateLimit()

	if result.RetryAfter <= maxAutoRetrySeconds && n.item.RetryCount < maxAutoRetryCount {
		n.item.RetryCount++
		log.Printf("[queue] item %d rate_limited, retry %d/%d in %ds", n.item.ID, n.item.RetryCount, maxAutoRetryCount, result.RetryAfter)
		q.clock.Sleep(time.Duration(result.RetryAfter) * time.Second)

		q.mu.Lock()
		q.nextSeq++
		n.item.seq = q.nextSeq
		n.item.Status = model.StatusPending
		n.item.StartedAt = nil
		n.cancelRequested = false
		q.pendingByID[n.item.ID] = n
		heap.Push(&q.pq, n)
		q.mu.Unlock()

		q.wake()
		q.notifyChanged()
		return
	}

	q.finalize(n.item, model.StatusRateLimited, nil, result.Error())
	q.enterCooldown(result.RetryAfter)
}

// enterCooldown pauses dispatch, signals the façade, and schedules an
// unconditional auto-resume after retryAfter seconds (§4.2 "Cooldown").
func (q *Queue) enterCooldown(retryAfter int) {
	q.Pause()
	if q.onRateLimited != nil {
		q.onRateLimited(retryAfter)
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.clock.Sleep(time.Duration(retryAfter) * time.Second)
		select {
		case <-q.stopCh:
			return
		default:
			q.Resume()
		}
	}()
}

// finalize moves item into its terminal status, appends it to history
// (evicting the oldest entry past the cap), and hands it to the delivery
// goroutine.
func (q *Queue) finalize(item *Item, status model.Status, resp *model.Response, errMsg string) {
	now := q.clock.Now()
	item.Status = status
	item.CompletedAt = &now
	item.Response = resp
	item.Err = errMsg

	q.mu.Lock()
	q.history = append(q.history, *item)
	if len(q.history) > q.historyCap {
		q.history = q.history[len(q.history)-q.historyCap:]
	}
	q.mu.Unlock()

	q.notifyChanged()
	q.deliverCh <- *item
}

func (q *Queue) runDelivery() {
	defer q.wg.Done()
	for {
		select {
		case item := <-q.deliverCh:
			if item.Callback != nil {
				item.Callback(item)
			}
		case <-q.stopCh:
			return
		}
	}
}

// historyFile is the wire shape for optional history persistence (§4.2
// "Optionally persisted on exit").
type historyFile struct {
	Items []Item `json:"items"`
}

// SaveHistory writes the queue's history to path using the temp-then-rename
// pattern so a crash mid-write never leaves a torn file.
func (q *Queue) SaveHistory(path string) error {
	q.mu.Lock()
	items := make([]Item, len(q.history))
	copy(items, q.history)
	q.mu.Unlock()

	data, err := json.MarshalIndent(historyFile{Items: items}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue history: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "queue_history-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp history file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename history file into place: %w", err)
	}
	return nil
}

// LoadHistory replaces the queue's history with the contents of path, if
// it exists. A missing file is not an error — there is simply no prior
// history to restore.
func (q *Queue) LoadHistory(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read history file: %w", err)
	}
	var hf historyFile
	if err := json.Unmarshal(data, &hf); err != nil {
		return fmt.Errorf("decode history file: %w", err)
	}

	q.mu.Lock()
	q.history = hf.Items
	if len(q.history) > q.historyCap {
		q.history = q.history[len(q.history)-q.historyCap:]
	}
	q.mu.Unlock()
	return nil
}
