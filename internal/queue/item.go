// Package queue is the single-writer serializer for every outbound API
// call: one background worker drains a priority queue, dispatches each
// item through the HTTP client, applies retry/cooldown on rate-limit
// responses, and delivers the terminal result back to the submitter on
// the dispatcher goroutine that stands in for the process's UI thread.
package queue

import (
	"time"

	"desec-core/internal/model"
)

// Callback is the completion sink a caller attaches to a submitted item.
// It is always invoked from the queue's single dispatch goroutine, never
// from the worker goroutine directly, so two callbacks for items A
// (finished first) and B (finished second) are always delivered in that
// order (§5 "ordering guarantees" (a)).
type Callback func(Item)

// Item is a QueueItem: one outbound API call plus its lifecycle state.
// A zero-value Item is never submitted directly — pass a Submission to
// Queue.Submit, which builds the Item.
type Item struct {
	ID          int64
	Priority    model.Priority
	Category    string
	Action      string
	Request     model.Request
	Callback    Callback
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Status      model.Status
	RetryCount  int
	Response    *model.Response
	Err         string

	seq int64 // re-assigned on every re-enqueue; breaks priority ties FIFO
}

// Duration returns the item's total time in flight, valid once the item
// has reached a terminal status.
func (it Item) Duration() time.Duration {
	if it.StartedAt == nil || it.CompletedAt == nil {
		return 0
	}
	return it.CompletedAt.Sub(*it.StartedAt)
}

// Terminal reports whether the item has left the queue for good.
func (it Item) Terminal() bool {
	switch it.Status {
	case model.StatusOK, model.StatusFailed, model.StatusCancelled, model.StatusRateLimited:
		return true
	default:
		return false
	}
}

// Submission is what a caller hands to Queue.Submit: everything needed
// to build an Item except the bookkeeping fields the queue itself owns.
type Submission struct {
	Priority model.Priority
	Category string
	Action   string
	Request  model.Request
	Callback Callback
}
