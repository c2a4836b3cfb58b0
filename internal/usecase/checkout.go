package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/layoffproof/layoff-tracker/internal/domain"
	"github.com/layoffproof/layoff-tracker/internal/gateway"
	"github.com/layoffproof/layoff-tracker/internal/metrics"
	"github.com/layoffproof/layoff-tracker/internal/repository"
	"golang.org/x/sync/singleflight"
)

// CheckoutConfig describes the plan presented on the checkout page.
type CheckoutConfig struct {
	MonthlyAmount  float64 // major units
	Currency       string
	MonthlyPriceID string
}

// SubscribeResult carries the mirrored subscription plus the secret the payment
// form needs when the first invoice still requires confirmation.
type SubscribeResult struct {
	Subscription *domain.Subscription
	ClientSecret string
}

// CheckoutUsecase drives the checkout page: a trial that only saves a card,
// or an immediate payment the user switches to explicitly.
type CheckoutUsecase struct {
	users    repository.UserRepository
	subs     repository.SubscriptionRepository
	sessions repository.CheckoutSessionStore
	gateway  gateway.PaymentGateway
	cfg      CheckoutConfig
	flights  singleflight.Group
	turns    checkoutTurns
	logger   *slog.Logger
	now      func() time.Time
}

func NewCheckoutUsecase(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	sessions repository.CheckoutSessionStore,
	gw gateway.PaymentGateway,
	cfg CheckoutConfig,
	logger *slog.Logger,
) *CheckoutUsecase {
	cfg.Currency = gateway.NormalizeCurrency(cfg.Currency)
	return &CheckoutUsecase{
		users:    users,
		subs:     subs,
		sessions: sessions,
		gateway:  gw,
		cfg:      cfg,
		logger:   logger.With("component", "checkout"),
		now:      time.Now,
	}
}

// flightTimeout bounds a shared gateway call. Shared calls do not stop when
// the caller that started them goes away, since others may be waiting.
const flightTimeout = 30 * time.Second

func (u *CheckoutUsecase) Config() CheckoutConfig {
	return u.cfg
}

// StartTrial makes sure the user has a gateway customer and opens a trial
// session backed by a setup intent. Calling it again starts over.
func (u *CheckoutUsecase) StartTrial(ctx context.Context, userID string) (*domain.CheckoutSession, error) {
	return u.coalesce(ctx, "trial:"+userID, func(ctx context.Context) (*domain.CheckoutSession, error) {
		turn := u.turns.begin(userID)
		defer u.turns.end(userID)

		customerID, err := u.ensureCustomer(ctx, userID)
		if err != nil {
			return nil, u.setupFailed(ctx, userID, turn, domain.CheckoutTrial, err)
		}

		si, err := u.gateway.CreateSetupIntent(ctx, customerID)
		if err != nil {
			return nil, u.setupFailed(ctx, userID, turn, domain.CheckoutTrial, err)
		}

		return u.replaceSession(ctx, turn, &domain.CheckoutSession{
			UserID:       userID,
			Mode:         domain.CheckoutTrial,
			IntentID:     si.ID,
			ClientSecret: si.ClientSecret,
			Status:       si.Status,
			Currency:     u.cfg.Currency,
		})
	})
}

// SkipTrial switches the user to paying now. A session already in
// subscription mode is returned as is, so repeated clicks never create a
// second payment intent.
func (u *CheckoutUsecase) SkipTrial(ctx context.Context, userID string) (*domain.CheckoutSession, error) {
	return u.coalesce(ctx, "skip:"+userID, func(ctx context.Context) (*domain.CheckoutSession, error) {
		turn := u.turns.begin(userID)
		defer u.turns.end(userID)

		current, err := u.sessions.Get(ctx, userID)
		if err == nil && current.Mode == domain.CheckoutSubscription && current.ClientSecret != "" {
			return current, nil
		}

		customerID, err := u.ensureCustomer(ctx, userID)
		if err != nil {
			return nil, u.setupFailed(ctx, userID, turn, domain.CheckoutSubscription, err)
		}

		pi, err := u.gateway.CreatePaymentIntent(ctx, u.cfg.MonthlyAmount, customerID, u.cfg.Currency)
		if err != nil {
			return nil, u.setupFailed(ctx, userID, turn, domain.CheckoutSubscription, err)
		}

		return u.replaceSession(ctx, turn, &domain.CheckoutSession{
			UserID:       userID,
			Mode:         domain.CheckoutSubscription,
			IntentID:     pi.ID,
			ClientSecret: pi.ClientSecret,
			Status:       pi.Status,
			Amount:       pi.Amount,
			Currency:     pi.Currency,
		})
	})
}

// Current returns the user's open checkout session.
func (u *CheckoutUsecase) Current(ctx context.Context, userID string) (*domain.CheckoutSession, error) {
	return u.sessions.Get(ctx, userID)
}

// CreatePaymentIntent creates a one-off charge for amount (major units). The
// amount is validated before any remote call.
func (u *CheckoutUsecase) CreatePaymentIntent(ctx context.Context, userID string, amount float64, currency string) (gateway.PaymentIntent, error) {
	currency = gateway.NormalizeCurrency(currency)
	minor, err := gateway.ToMinorUnits(amount, currency)
	if err != nil {
		return gateway.PaymentIntent{}, err
	}

	key := fmt.Sprintf("payment:%s:%d:%s", userID, minor, currency)
	v, err := u.share(ctx, key, func(ctx context.Context) (any, error) {
		customerID, err := u.ensureCustomer(ctx, userID)
		if err != nil {
			return gateway.PaymentIntent{}, err
		}
		return u.gateway.CreatePaymentIntent(ctx, amount, customerID, currency)
	})
	if err != nil {
		return gateway.PaymentIntent{}, err
	}
	return v.(gateway.PaymentIntent), nil
}

// Subscribe starts the recurring monthly plan. With a payment method the
// gateway tries to activate it at once; without one the returned client
// secret lets the payment form collect the first payment.
func (u *CheckoutUsecase) Subscribe(ctx context.Context, userID, paymentMethodID string) (*SubscribeResult, error) {
	if u.cfg.MonthlyPriceID == "" {
		return nil, domain.ErrPlanNotConfigured
	}

	v, err := u.share(ctx, "subscribe:"+userID, func(ctx context.Context) (any, error) {
		turn := u.turns.begin(userID)
		defer u.turns.end(userID)

		existing, err := u.subs.LatestForUser(ctx, userID)
		switch {
		case err == nil && blocksNewSubscription(existing.Status):
			return nil, domain.ErrSubscriptionExists
		case err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound):
			return nil, fmt.Errorf("load subscription: %w", err)
		}

		customerID, err := u.ensureCustomer(ctx, userID)
		if err != nil {
			return nil, err
		}

		gs, err := u.gateway.CreateSubscription(ctx, customerID, u.cfg.MonthlyPriceID, paymentMethodID)
		if err != nil {
			return nil, err
		}

		saved, err := u.subs.Upsert(ctx, mirrorOf(userID, gs))
		if err != nil {
			return nil, fmt.Errorf("mirror subscription: %w", err)
		}

		if gs.ClientSecret == "" {
			u.clearSession(ctx, userID, turn)
		} else if _, err := u.replaceSession(ctx, turn, &domain.CheckoutSession{
			UserID:       userID,
			Mode:         domain.CheckoutSubscription,
			IntentID:     gs.PaymentIntentID,
			ClientSecret: gs.ClientSecret,
			Status:       string(gs.Status),
			Currency:     u.cfg.Currency,
		}); err != nil {
			return nil, err
		}

		u.logger.InfoContext(ctx, "subscription created",
			"user_id", userID, "subscription_id", gs.ID, "status", gs.Status)
		return &SubscribeResult{Subscription: saved, ClientSecret: gs.ClientSecret}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SubscribeResult), nil
}

// GetSubscription refreshes the user's latest subscription from the gateway.
func (u *CheckoutUsecase) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	local, err := u.subs.LatestForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if local.Status.Terminal() {
		return local, nil
	}

	gs, err := u.gateway.GetSubscription(ctx, local.StripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	saved, err := u.subs.Upsert(ctx, mirrorOf(userID, gs))
	if err != nil {
		return nil, fmt.Errorf("mirror subscription: %w", err)
	}
	return saved, nil
}

// CancelSubscription cancels the user's latest subscription. Canceling an
// already canceled subscription returns it unchanged.
func (u *CheckoutUsecase) CancelSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	local, err := u.subs.LatestForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if local.Status.Terminal() {
		return local, nil
	}

	turn := u.turns.begin(userID)
	defer u.turns.end(userID)

	gs, err := u.gateway.CancelSubscription(ctx, local.StripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	saved, err := u.subs.Upsert(ctx, mirrorOf(userID, gs))
	if err != nil {
		return nil, fmt.Errorf("mirror subscription: %w", err)
	}
	u.clearSession(ctx, userID, turn)

	u.logger.InfoContext(ctx, "subscription canceled", "user_id", userID, "subscription_id", gs.ID)
	return saved, nil
}

// ensureCustomer resolves the user's gateway customer and stores its id when
// it changed, which happens on first use and when the old one stopped resolving.
// Concurrent actions of one user share a single resolution, so at most one
// customer is created.
func (u *CheckoutUsecase) ensureCustomer(ctx context.Context, userID string) (string, error) {
	v, err := u.share(ctx, "customer:"+userID, func(ctx context.Context) (any, error) {
		return u.resolveCustomer(ctx, userID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (u *CheckoutUsecase) resolveCustomer(ctx context.Context, userID string) (string, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}

	ref := gateway.CustomerRef{UserID: user.ID, Email: user.Email, Name: user.Name}
	if user.StripeCustomerID != nil {
		ref.ExistingID = *user.StripeCustomerID
	}

	customerID, err := u.gateway.GetOrCreateCustomer(ctx, ref)
	if err != nil {
		return "", err
	}
	if customerID != ref.ExistingID {
		if err := u.users.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
			return "", fmt.Errorf("store customer id: %w", err)
		}
		if ref.ExistingID != "" {
			u.logger.WarnContext(ctx, "replaced unresolvable customer",
				"user_id", user.ID, "stale_customer_id", ref.ExistingID, "customer_id", customerID)
		}
	}
	return customerID, nil
}

// replaceSession drops the previous session before storing the new one, so a
// stale client secret is never readable once a new one was issued. When a
// newer checkout action started meanwhile, nothing is stored and the session
// that action left behind is returned instead, or ErrCheckoutSuperseded while
// it has none yet.
func (u *CheckoutUsecase) replaceSession(ctx context.Context, turn uint64, session *domain.CheckoutSession) (*domain.CheckoutSession, error) {
	session.UpdatedAt = u.now()
	stored, err := u.turns.write(session.UserID, turn, func() error {
		if err := u.sessions.Delete(ctx, session.UserID); err != nil {
			return fmt.Errorf("discard checkout session: %w", err)
		}
		if err := u.sessions.Put(ctx, session); err != nil {
			return fmt.Errorf("store checkout session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !stored {
		metrics.CheckoutSessionsTotal.WithLabelValues(string(session.Mode), "superseded").Inc()
		u.logger.InfoContext(ctx, "checkout superseded by a newer action",
			"user_id", session.UserID, "mode", session.Mode, "intent_id", session.IntentID)
		current, err := u.sessions.Get(ctx, session.UserID)
		if errors.Is(err, domain.ErrNoCheckoutSession) {
			return nil, domain.ErrCheckoutSuperseded
		}
		return current, err
	}
	metrics.CheckoutSessionsTotal.WithLabelValues(string(session.Mode), "ok").Inc()
	return session, nil
}

// clearSession removes the session unless a newer action owns it.
func (u *CheckoutUsecase) clearSession(ctx context.Context, userID string, turn uint64) {
	_, _ = u.turns.write(userID, turn, func() error {
		return u.sessions.Delete(ctx, userID)
	})
}

// setupFailed clears the session so no secret survives a failed setup.
// Gateway errors come back wrapped in ErrCheckoutSetup.
func (u *CheckoutUsecase) setupFailed(ctx context.Context, userID string, turn uint64, mode domain.CheckoutMode, err error) error {
	u.clearSession(ctx, userID, turn)
	metrics.CheckoutSessionsTotal.WithLabelValues(string(mode), "failed").Inc()

	if !errors.Is(err, gateway.ErrGateway) && !errors.Is(err, gateway.ErrGatewayUnavailable) {
		return err
	}
	u.logger.ErrorContext(ctx, "checkout setup failed", "user_id", userID, "mode", mode, "error", err)
	return fmt.Errorf("%w: %w", domain.ErrCheckoutSetup, err)
}

// share runs fn once for concurrent callers sharing key. fn gets a context
// detached from the first caller's cancellation and bounded by flightTimeout;
// each caller still stops waiting when its own ctx is done.
func (u *CheckoutUsecase) share(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	ch := u.flights.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return fn(flightCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// coalesce is share for session-returning actions. Every caller gets its own
// copy of the session.
func (u *CheckoutUsecase) coalesce(
	ctx context.Context,
	key string,
	fn func(ctx context.Context) (*domain.CheckoutSession, error),
) (*domain.CheckoutSession, error) {
	v, err := u.share(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return nil, err
	}
	session := *v.(*domain.CheckoutSession)
	return &session, nil
}

// checkoutTurns orders checkout actions per user. Only the most recently
// started action of a user may write that user's session.
type checkoutTurns struct {
	mu    sync.Mutex
	seq   uint64
	users map[string]*userTurns
}

type userTurns struct {
	latest   uint64
	inFlight int
}

func (t *checkoutTurns) begin(userID string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.users == nil {
		t.users = make(map[string]*userTurns)
	}
	ut := t.users[userID]
	if ut == nil {
		ut = &userTurns{}
		t.users[userID] = ut
	}
	t.seq++
	ut.latest = t.seq
	ut.inFlight++
	return t.seq
}

// end forgets the user once no action is in flight.
func (t *checkoutTurns) end(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ut := t.users[userID]
	if ut == nil {
		return
	}
	if ut.inFlight--; ut.inFlight <= 0 {
		delete(t.users, userID)
	}
}

// write runs fn while holding the lock if turn is still the user's latest,
// and reports whether it ran.
func (t *checkoutTurns) write(userID string, turn uint64, fn func() error) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ut := t.users[userID]
	if ut == nil || ut.latest != turn {
		return false, nil
	}
	return true, fn()
}

func blocksNewSubscription(status domain.SubscriptionStatus) bool {
	switch status {
	case domain.SubscriptionActive, domain.SubscriptionTrialing, domain.SubscriptionPastDue,
		domain.SubscriptionUnpaid, domain.SubscriptionPaused:
		return true
	}
	return false
}

func mirrorOf(userID string, gs gateway.Subscription) *domain.Subscription {
	return &domain.Subscription{
		UserID:               userID,
		StripeSubscriptionID: gs.ID,
		StripeCustomerID:     gs.CustomerID,
		PriceID:              gs.PriceID,
		Status:               gs.Status,
		CurrentPeriodEnd:     gs.CurrentPeriodEnd,
		CanceledAt:           gs.CanceledAt,
	}
}
