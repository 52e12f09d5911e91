// Package hosting abstracts the VCS hosting service behind the minimal
// capability surface the promotion engine needs: create a merge request,
// ask whether it merged, and read its state. Any provider satisfying that
// surface is interchangeable; the active one is chosen by configuration.
package hosting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/branchflow/internal/config"
)

// ErrMergeTimeout indicates the merge wait exceeded the caller's timeout.
var ErrMergeTimeout = errors.New("timed out waiting for merge request to merge")

// State is a merge request's lifecycle state.
type State string

const (
	StateOpen   State = "open"
	StateMerged State = "merged"
	StateClosed State = "closed"
)

// RequestID identifies a merge request at the hosting provider.
type RequestID struct {
	// Number is the provider-assigned request number.
	Number int

	// URL is the human-facing request page, when the provider reports one.
	URL string
}

func (id RequestID) String() string {
	return fmt.Sprintf("#%d", id.Number)
}

// Provider is the hosting capability surface.
type Provider interface {
	// CreateMergeRequest opens a request merging source into target.
	CreateMergeRequest(ctx context.Context, source, target, title, body string) (RequestID, error)

	// FindOpen returns the open request from source to target, if one
	// exists. Used to keep retried promotions idempotent instead of
	// opening duplicates.
	FindOpen(ctx context.Context, source, target string) (RequestID, bool, error)

	// IsMerged reports whether the request has merged.
	IsMerged(ctx context.Context, id RequestID) (bool, error)

	// MergeRequestState returns the request's current state.
	MergeRequestState(ctx context.Context, id RequestID) (State, error)
}

// New selects and builds the configured provider.
func New(cfg config.HostingConfig) (Provider, error) {
	switch cfg.Provider {
	case "github":
		return NewGitHub(cfg.GitHub)
	case "azuredevops":
		return NewAzureDevOps(cfg.AzureDevOps)
	default:
		return nil, fmt.Errorf("unknown hosting provider %q", cfg.Provider)
	}
}

// EnsureMergeRequest returns the open request from source to target,
// creating it only when none exists.
func EnsureMergeRequest(ctx context.Context, p Provider, source, target, title, body string) (RequestID, error) {
	if id, ok, err := p.FindOpen(ctx, source, target); err != nil {
		return RequestID{}, fmt.Errorf("looking for open merge request %s -> %s: %w", source, target, err)
	} else if ok {
		return id, nil
	}
	id, err := p.CreateMergeRequest(ctx, source, target, title, body)
	if err != nil {
		return RequestID{}, fmt.Errorf("creating merge request %s -> %s: %w", source, target, err)
	}
	return id, nil
}

// WaitForMerge polls the request until it merges or the timeout elapses.
// A request that closes without merging is a hard failure.
func WaitForMerge(ctx context.Context, p Provider, id RequestID, interval, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := p.MergeRequestState(ctx, id)
		if err != nil {
			// A poll cut off by the deadline is a timeout, not a
			// provider failure.
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w: %s after %s", ErrMergeTimeout, id, timeout)
			}
			return fmt.Errorf("polling merge request %s: %w", id, err)
		}
		switch state {
		case StateMerged:
			return nil
		case StateClosed:
			return fmt.Errorf("merge request %s was closed without merging", id)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %s", ErrMergeTimeout, id, timeout)
		case <-ticker.C:
		}
	}
}
