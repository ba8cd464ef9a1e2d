// Package webhook reconciles third-party webhook subscriptions.
//
// # Overview
//
// A reconciliation run converges one platform's subscription set to
// exactly one registration matching a desired (name, target URL) pair:
//
//	adapter := webhook.NewWebexAdapter(base, token, nil)
//	r := webhook.NewReconciler(logger, 10*time.Second)
//	result, err := r.Reconcile(ctx, adapter, desired, dryRun)
//
// The run lists remote subscriptions, classifies them against the desired
// registration, deletes surplus same-name entries, then creates or
// updates the canonical one. Re-running a converged state is a noop, so
// the operation is safe to repeat from cron or CI. Dry-run computes the
// plan without any mutating remote call.
//
// # Adapters
//
// PlatformAdapter abstracts the per-platform REST surface. WebexAdapter
// drives the named-webhook API at webexapis.com; TelegramAdapter maps the
// Bot API's single webhook slot onto the same contract.
package webhook
