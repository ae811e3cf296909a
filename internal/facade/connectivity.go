package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"desec-core/internal/httpclient"
)

// WaitForConnectivity blocks, probing the service directly (bypassing the
// queue) with exponential backoff, until it responds or ctx is cancelled.
// The queue's own retry policy is server-directed (it sleeps exactly
// retry_after seconds on a 429); this instead covers the case the spec's
// retry policy has no timing guidance for at all — a plain network
// outage — which is why it reaches for a real backoff schedule instead
// of a fixed interval.
func (f *Facade) WaitForConnectivity(ctx context.Context) error {
	f.mu.Lock()
	client := f.client
	f.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 30 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		result := client.DoRaw(ctx, httpclient.NewGetAccountRequest())
		if result.Kind == httpclient.KindNetwork {
			return struct{}{}, fmt.Errorf("still offline: %s", result.Message)
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b))
	return err
}
