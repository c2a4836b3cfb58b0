package worker

import "context"

type tokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int, error)
}

type subscriptionReconciler interface {
	Reconcile(ctx context.Context, limit int) (int, error)
}

// PurgeTokensJob deletes magic tokens that are used or past their expiry.
func PurgeTokensJob(spec string, auth tokenPurger) Job {
	return Job{
		Name:   "purge_magic_tokens",
		Spec:   spec,
		Action: "purged",
		Run:    auth.PurgeExpiredTokens,
	}
}

// ReconcileJob refreshes up to batch non-terminal subscriptions from the
// payment provider, catching webhooks that never arrived.
func ReconcileJob(spec string, batch int, billing subscriptionReconciler) Job {
	return Job{
		Name:   "reconcile_subscriptions",
		Spec:   spec,
		Action: "updated",
		Run: func(ctx context.Context) (int, error) {
			return billing.Reconcile(ctx, batch)
		},
	}
}
