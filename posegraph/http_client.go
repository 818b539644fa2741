package posegraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultFetchTimeout bounds one snapshot request
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of snapshot requests before giving up
	DefaultMaxRetries = 3

	defaultBaseBackoff = 500 * time.Millisecond

	// maxSnapshotBytes caps a snapshot body at 50 MB
	maxSnapshotBytes = 50 << 20
)

// FetchOption configures FetchRobotSnapshot
type FetchOption func(*snapshotFetch)

// snapshotFetch is one bootstrap request for the trajectory of a robot
type snapshotFetch struct {
	url         string
	robot       string
	timeout     time.Duration
	attempts    int
	baseBackoff time.Duration
	client      *http.Client
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) FetchOption {
	return func(f *snapshotFetch) { f.timeout = d }
}

// WithMaxRetries sets the number of attempts
func WithMaxRetries(n int) FetchOption {
	return func(f *snapshotFetch) { f.attempts = n }
}

// WithBaseBackoff sets the delay before the second attempt. It doubles on
// every further attempt.
func WithBaseBackoff(d time.Duration) FetchOption {
	return func(f *snapshotFetch) { f.baseBackoff = d }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) FetchOption {
	return func(f *snapshotFetch) { f.client = client }
}

// transientError marks a failure worth another attempt
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// FetchRobotSnapshot fetches an optimized trajectory snapshot and keeps only
// the nodes of robot. A snapshot without nodes of robot is ErrMalformedInput.
// Network failures, 5xx and 429 responses are retried with doubling backoff;
// other statuses and malformed payloads fail at once.
func FetchRobotSnapshot(ctx context.Context, apiURL, robot string, opts ...FetchOption) (*TrajectoryMessage, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("fetching snapshot: no URL configured")
	}
	if robot == "" {
		return nil, fmt.Errorf("fetching snapshot from %s: no robot name", apiURL)
	}
	f := &snapshotFetch{
		url:         apiURL,
		robot:       robot,
		timeout:     DefaultFetchTimeout,
		attempts:    DefaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.attempts = max(f.attempts, 1)
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}

	body, err := f.fetchWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := ParseTrajectoryMessage(body)
	if err != nil {
		return nil, fmt.Errorf("snapshot of %s: %w", robot, err)
	}
	return robotSnapshot(msg, robot)
}

func (f *snapshotFetch) fetchWithRetry(ctx context.Context) ([]byte, error) {
	backoff := f.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		body, err := f.get(ctx)
		if err == nil {
			return body, nil
		}
		var transient *transientError
		if !errors.As(err, &transient) {
			return nil, fmt.Errorf("fetching snapshot of %s: %w", f.robot, err)
		}
		lastErr = err
		if attempt == f.attempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("fetching snapshot of %s: %w", f.robot, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("fetching snapshot of %s: %d attempts failed: %w", f.robot, f.attempts, lastErr)
}

// get performs one request. Only failures another attempt may fix come back
// as transientError.
func (f *snapshotFetch) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transientError{fmt.Errorf("GET %s: %w", f.url, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &transientError{fmt.Errorf("GET %s: status %d", f.url, resp.StatusCode)}
	default:
		return nil, fmt.Errorf("GET %s: status %d", f.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, &transientError{fmt.Errorf("reading %s: %w", f.url, err)}
	}
	return body, nil
}

// robotSnapshot drops the nodes of other robots from msg
func robotSnapshot(msg *TrajectoryMessage, robot string) (*TrajectoryMessage, error) {
	out := &TrajectoryMessage{Header: msg.Header}
	for _, n := range msg.Nodes {
		if n.RobotName == robot {
			out.Nodes = append(out.Nodes, n)
		}
	}
	if len(out.Nodes) == 0 {
		return nil, fmt.Errorf("snapshot of %s: %w: %d nodes, none of this robot", robot, ErrMalformedInput, len(msg.Nodes))
	}
	return out, nil
}
