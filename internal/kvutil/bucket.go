// Package kvutil provides helpers for NATS JetStream KeyValue buckets.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	defaultMaxRetries = 3
	baseBackoff       = 10 * time.Millisecond
	// historyDepth keeps a few revisions per key for audit and CAS diagnostics.
	historyDepth = 5
)

// BucketConfig returns the KV configuration used for CRM data: file storage,
// no TTL, a short history per key.
//
// Parameters:
//   - name: Bucket name
//   - replicas: Stream replicas (values below 1 become 1)
func BucketConfig(name string, replicas int) jetstream.KeyValueConfig {
	if replicas < 1 {
		replicas = 1
	}

	return jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "leadflow CRM records",
		History:     historyDepth,
		Storage:     jetstream.FileStorage,
		Replicas:    replicas,
	}
}

// EnsureKVBucketWithRetry creates or opens a KV bucket, retrying transient failures.
//
// Several processes may start against the same bucket at once. A create that loses
// the race with jetstream.ErrBucketExists opens the existing bucket instead. Other
// failures back off exponentially (10ms, 20ms, 40ms...) until maxRetries is reached.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of attempts (default: 3)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Last error after all attempts, or the context error
//
// Example:
//
//	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, kvutil.BucketConfig("leadflow-crm", 1), 3)
func EnsureKVBucketWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := range maxRetries {
		kv, err := openOrCreate(ctx, js, config)
		if err == nil {
			return kv, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}

		if attempt == maxRetries-1 {
			break
		}

		timer := time.NewTimer(Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w",
		config.Bucket, maxRetries, lastErr)
}

func openOrCreate(ctx context.Context, js jetstream.JetStream, config jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	kv, err := js.CreateKeyValue(ctx, config)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketExists) {
		return nil, err
	}

	kv, err = js.KeyValue(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists but failed to open: %w", err)
	}

	return kv, nil
}

// Backoff returns the delay before the attempt following the given zero-based attempt.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 10 {
		attempt = 10
	}

	return baseBackoff << uint(attempt) //nolint:gosec // attempt is clamped to [0, 10]
}
