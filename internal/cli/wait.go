package cli

import (
	"desec-core/internal/facade"
	"desec-core/internal/queue"
)

// submitAndWait submits s through f and blocks until the item reaches a
// terminal status, for commands where the synchronous CLI UX should wait
// on the async queue rather than return immediately.
func submitAndWait(f *facade.Facade, s queue.Submission) queue.Item {
	done := make(chan queue.Item, 1)
	userCb := s.Callback
	s.Callback = func(it queue.Item) {
		if userCb != nil {
			userCb(it)
		}
		done <- it
	}
	f.Submit(s)
	return <-done
}

// mutateAndWait is submitAndWait's counterpart for record-mutating calls,
// routed through SubmitRecordMutation so cache invalidation and the
// version snapshot still fire.
func mutateAndWait(f *facade.Facade, zone string, s queue.Submission, snapshotMessage string) queue.Item {
	done := make(chan queue.Item, 1)
	userCb := s.Callback
	s.Callback = func(it queue.Item) {
		if userCb != nil {
			userCb(it)
		}
		done <- it
	}
	f.SubmitRecordMutation(zone, s, snapshotMessage)
	return <-done
}
