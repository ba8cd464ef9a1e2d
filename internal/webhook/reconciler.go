// ABOUTME: Idempotent webhook subscription reconciliation against messaging platforms
// ABOUTME: Converges remote state to exactly one subscription per desired name/URL

package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ActionKind classifies a step of a reconciliation plan.
type ActionKind string

const (
	ActionList   ActionKind = "list"
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
	ActionNoop   ActionKind = "noop"
	ActionDryRun ActionKind = "dry-run"
)

// Action is one step of a reconciliation plan or its applied record.
type Action struct {
	Kind           ActionKind `json:"kind"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	Name           string     `json:"name,omitempty"`
	TargetURL      string     `json:"target_url,omitempty"`
	Note           string     `json:"note,omitempty"`
}

// Result is the outcome of one reconciliation run.
type Result struct {
	Provider    string         `json:"provider"`
	TargetURL   string         `json:"target_url"`
	WebhookName string         `json:"webhook_name"`
	Actions     []Action       `json:"actions"`
	Webhooks    []Subscription `json:"webhooks"`
	Notes       []string       `json:"notes"`
}

// ReconcileError reports a remote call failure mid-plan. Applied lists
// every action that succeeded before the failure so an operator can see
// exactly what remote state changed; no rollback is attempted because
// webhook platforms offer no transactional guarantee.
type ReconcileError struct {
	Applied []Action
	Err     error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconciliation aborted after %d applied actions: %v", len(e.Applied), e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// Reconciler drives reconciliation runs. Runs for distinct
// (provider, desired name) tuples proceed in parallel; runs for the same
// tuple are serialized so two concurrent runs never both create.
type Reconciler struct {
	logger  *slog.Logger
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewReconciler creates a reconciler. timeout bounds every remote call;
// zero falls back to 10 seconds.
func NewReconciler(logger *slog.Logger, timeout time.Duration) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reconciler{
		logger:  logger.With("component", "webhook"),
		timeout: timeout,
		locks:   make(map[string]*sync.Mutex),
	}
}

// tupleLock returns the mutex serializing runs for one (provider, name) tuple.
func (r *Reconciler) tupleLock(provider, name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := provider + "\x00" + name
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// plannedStep pairs a plan entry with the remote call that applies it.
// run is nil for noop entries.
type plannedStep struct {
	action Action
	run    func(ctx context.Context) error
}

// Reconcile converges the provider's remote subscriptions to exactly one
// entry matching desired. In dry-run mode the plan is computed and
// returned without any mutating remote call. On a mid-plan failure the
// returned error is a *ReconcileError carrying the applied action list.
func (r *Reconciler) Reconcile(ctx context.Context, adapter PlatformAdapter, desired Desired, dryRun bool) (*Result, error) {
	provider := adapter.Provider()
	lock := r.tupleLock(provider, desired.Name)
	lock.Lock()
	defer lock.Unlock()

	result := &Result{
		Provider:    provider,
		TargetURL:   desired.TargetURL,
		WebhookName: desired.Name,
		Notes:       []string{},
	}

	applied := make([]Action, 0, 4)

	subs, err := r.list(ctx, adapter)
	if err != nil {
		return nil, &ReconcileError{Applied: applied, Err: fmt.Errorf("listing subscriptions: %w", err)}
	}
	applied = append(applied, Action{Kind: ActionList, Note: fmt.Sprintf("%d subscriptions listed", len(subs))})

	steps, notes := r.plan(adapter, subs, desired)
	result.Notes = append(result.Notes, notes...)

	if dryRun {
		result.Actions = applied
		for _, step := range steps {
			result.Actions = append(result.Actions, step.action)
		}
		result.Actions = append(result.Actions, Action{Kind: ActionDryRun, Note: "no remote changes applied"})
		result.Webhooks = subs
		return result, nil
	}

	for _, step := range steps {
		if step.run != nil {
			callCtx, cancel := context.WithTimeout(ctx, r.timeout)
			err := step.run(callCtx)
			cancel()
			if err != nil {
				r.logger.Error("reconcile step failed",
					"provider", provider,
					"kind", step.action.Kind,
					"subscription_id", step.action.SubscriptionID,
					"error", err)
				return nil, &ReconcileError{
					Applied: applied,
					Err:     fmt.Errorf("%s %s: %w", step.action.Kind, step.action.SubscriptionID, err),
				}
			}
		}
		applied = append(applied, step.action)
		r.logger.Info("reconcile step applied",
			"provider", provider,
			"kind", step.action.Kind,
			"name", desired.Name)
	}

	result.Actions = applied

	// Best-effort converged view; the apply already succeeded.
	if after, err := r.list(ctx, adapter); err != nil {
		result.Notes = append(result.Notes, fmt.Sprintf("post-apply listing failed: %v", err))
	} else {
		result.Webhooks = after
	}
	return result, nil
}

// plan classifies the listed subscriptions against desired and orders the
// steps: deletions of unwanted duplicates first, then the canonical
// create/update/noop. The ordering avoids a transient window where two
// same-name entries both exist and could double-deliver callbacks.
func (r *Reconciler) plan(adapter PlatformAdapter, subs []Subscription, desired Desired) ([]plannedStep, []string) {
	var exact, sameName []Subscription
	for _, sub := range subs {
		switch {
		case sub.Name == desired.Name && sub.TargetURL == desired.TargetURL:
			exact = append(exact, sub)
		case sub.Name == desired.Name:
			sameName = append(sameName, sub)
		}
	}

	var steps []plannedStep
	var notes []string

	deleteStep := func(sub Subscription, note string) plannedStep {
		id := sub.ID
		return plannedStep{
			action: Action{Kind: ActionDelete, SubscriptionID: id, Name: sub.Name, TargetURL: sub.TargetURL, Note: note},
			run:    func(ctx context.Context) error { return adapter.Delete(ctx, id) },
		}
	}

	switch {
	case len(exact) > 0:
		// Already converged; surplus entries sharing the name go away.
		// Listing order is platform-defined, so which duplicate survives
		// is not guaranteed across platforms.
		for _, dup := range exact[1:] {
			steps = append(steps, deleteStep(dup, "duplicate of converged subscription"))
		}
		for _, dup := range sameName {
			steps = append(steps, deleteStep(dup, "same name, different target"))
		}
		if len(exact) > 1 || len(sameName) > 0 {
			notes = append(notes, fmt.Sprintf("kept first of %d subscriptions named %q", len(exact)+len(sameName), desired.Name))
		} else {
			notes = append(notes, "already converged")
		}
		steps = append(steps, plannedStep{
			action: Action{Kind: ActionNoop, SubscriptionID: exact[0].ID, Name: desired.Name, TargetURL: desired.TargetURL},
		})

	case len(sameName) > 0:
		for _, dup := range sameName[1:] {
			steps = append(steps, deleteStep(dup, "same name, different target"))
		}
		keep := sameName[0]
		id := keep.ID
		steps = append(steps, plannedStep{
			action: Action{Kind: ActionUpdate, SubscriptionID: id, Name: desired.Name, TargetURL: desired.TargetURL},
			run: func(ctx context.Context) error {
				_, err := adapter.Update(ctx, id, desired)
				return err
			},
		})
		notes = append(notes, fmt.Sprintf("retargeting %q from %s", desired.Name, keep.TargetURL))

	default:
		steps = append(steps, plannedStep{
			action: Action{Kind: ActionCreate, Name: desired.Name, TargetURL: desired.TargetURL},
			run: func(ctx context.Context) error {
				_, err := adapter.Create(ctx, desired)
				return err
			},
		})
		notes = append(notes, "no matching subscription, creating")
	}

	return steps, notes
}

func (r *Reconciler) list(ctx context.Context, adapter PlatformAdapter) ([]Subscription, error) {
	listCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return adapter.List(listCtx)
}
