package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/layoffproof/layoff-tracker/internal/domain"
	"github.com/layoffproof/layoff-tracker/internal/gateway"
	"github.com/layoffproof/layoff-tracker/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// ---- users ----

type fakeUserRepo struct {
	findOrCreate           func(ctx context.Context, email string) (*domain.User, error)
	findByID               func(ctx context.Context, id string) (*domain.User, error)
	findByStripeCustomerID func(ctx context.Context, customerID string) (*domain.User, error)
	updateProfile          func(ctx context.Context, id string, input repository.UpdateProfileInput) (*domain.User, error)
	setStripeCustomerID    func(ctx context.Context, id, customerID string) error
	selectCompany          func(ctx context.Context, id, companyID string) error
}

func (r *fakeUserRepo) FindOrCreate(ctx context.Context, email string) (*domain.User, error) {
	return r.findOrCreate(ctx, email)
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findByID(ctx, id)
}

func (r *fakeUserRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	return r.findByStripeCustomerID(ctx, customerID)
}

func (r *fakeUserRepo) UpdateProfile(ctx context.Context, id string, input repository.UpdateProfileInput) (*domain.User, error) {
	return r.updateProfile(ctx, id, input)
}

func (r *fakeUserRepo) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	return r.setStripeCustomerID(ctx, id, customerID)
}

func (r *fakeUserRepo) SelectCompany(ctx context.Context, id, companyID string) error {
	return r.selectCompany(ctx, id, companyID)
}

// ---- magic tokens ----

// memTokenRepo mirrors the storage contract: claim once, only before expiry,
// without touching other tokens.
type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.MagicToken
	now    func() time.Time
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: map[string]*domain.MagicToken{}, now: time.Now}
}

func (r *memTokenRepo) CreateMagicToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenHash] = &domain.MagicToken{
		ID: tokenHash[:8], UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt, CreatedAt: r.now(),
	}
	return nil
}

func (r *memTokenRepo) ClaimMagicToken(_ context.Context, tokenHash string) (*domain.MagicToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mt, ok := r.tokens[tokenHash]
	if !ok || mt.UsedAt != nil || mt.Expired(r.now()) {
		return nil, domain.ErrTokenInvalid
	}
	now := r.now()
	mt.UsedAt = &now
	claimed := *mt
	return &claimed, nil
}

func (r *memTokenRepo) PurgeExpired(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for hash, mt := range r.tokens {
		if mt.UsedAt != nil || mt.Expired(before) {
			delete(r.tokens, hash)
			n++
		}
	}
	return n, nil
}

func (r *memTokenRepo) hashes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.tokens))
	for h := range r.tokens {
		out = append(out, h)
	}
	return out
}

// ---- subscriptions ----

type memSubscriptionRepo struct {
	mu   sync.Mutex
	rows []*domain.Subscription
	err  error

	claims    int
	claimedAt map[string]int
}

func (r *memSubscriptionRepo) Upsert(_ context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, row := range r.rows {
		if row.StripeSubscriptionID == sub.StripeSubscriptionID {
			if row.Status != domain.SubscriptionCanceled {
				row.Status = sub.Status
			}
			row.PriceID = sub.PriceID
			row.CurrentPeriodEnd = sub.CurrentPeriodEnd
			if row.CanceledAt == nil {
				row.CanceledAt = sub.CanceledAt
			}
			saved := *row
			return &saved, nil
		}
	}
	row := *sub
	row.ID = "sub-row-" + sub.StripeSubscriptionID
	row.CreatedAt = time.Now()
	r.rows = append(r.rows, &row)
	saved := row
	return &saved, nil
}

func (r *memSubscriptionRepo) LatestForUser(_ context.Context, userID string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].UserID == userID {
			s := *r.rows[i]
			return &s, nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (r *memSubscriptionRepo) GetByStripeID(_ context.Context, id string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.StripeSubscriptionID == id {
			s := *row
			return &s, nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

// ClaimForReconcile orders by last claim, never-claimed rows first, like the
// reconciled_at ordering in postgres.
func (r *memSubscriptionRepo) ClaimForReconcile(_ context.Context, limit int) ([]*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimedAt == nil {
		r.claimedAt = map[string]int{}
	}
	var live []*domain.Subscription
	for _, row := range r.rows {
		if !row.Status.Terminal() {
			live = append(live, row)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return r.claimedAt[live[i].ID] < r.claimedAt[live[j].ID]
	})

	var out []*domain.Subscription
	for _, row := range live {
		if len(out) == limit {
			break
		}
		r.claims++
		r.claimedAt[row.ID] = r.claims
		s := *row
		out = append(out, &s)
	}
	return out, nil
}

// ---- notifications ----

type memNotificationRepo struct {
	mu    sync.Mutex
	items []*domain.Notification
}

func (r *memNotificationRepo) Create(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.SourceID != "" {
		for _, existing := range r.items {
			if existing.UserID == n.UserID && existing.Kind == n.Kind && existing.SourceID == n.SourceID {
				out := *existing
				return &out, nil
			}
		}
	}
	saved := *n
	saved.ID = "n-" + string(rune('a'+len(r.items)))
	saved.CreatedAt = time.Now()
	r.items = append(r.items, &saved)
	out := saved
	return &out, nil
}

func (r *memNotificationRepo) ListForUser(_ context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for i := len(r.items) - 1; i >= 0 && len(out) < limit; i-- {
		n := r.items[i]
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	return out, nil
}

func (r *memNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id && n.UserID == userID {
			if n.ReadAt == nil {
				n.ReadAt = ptr(time.Now())
			}
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

// ---- companies ----

type fakeCompanyRepo struct {
	search  func(ctx context.Context, query string, limit int) ([]*domain.Company, error)
	getByID func(ctx context.Context, id string) (*domain.Company, error)
}

func (r *fakeCompanyRepo) Search(ctx context.Context, query string, limit int) ([]*domain.Company, error) {
	return r.search(ctx, query, limit)
}

func (r *fakeCompanyRepo) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	return r.getByID(ctx, id)
}

// ---- payment gateway ----

type fakeGateway struct {
	getOrCreateCustomer func(ctx context.Context, ref gateway.CustomerRef) (string, error)
	createSetupIntent   func(ctx context.Context, customerID string) (gateway.SetupIntent, error)
	createSubscription  func(ctx context.Context, customerID, priceID, paymentMethodID string) (gateway.Subscription, error)
	createPaymentIntent func(ctx context.Context, amount float64, customerID, currency string) (gateway.PaymentIntent, error)
	cancelSubscription  func(ctx context.Context, id string) (gateway.Subscription, error)
	getSubscription     func(ctx context.Context, id string) (gateway.Subscription, error)

	customerCalls      atomic.Int32
	setupIntentCalls   atomic.Int32
	paymentIntentCalls atomic.Int32
	subscriptionCalls  atomic.Int32
}

func (g *fakeGateway) GetOrCreateCustomer(ctx context.Context, ref gateway.CustomerRef) (string, error) {
	g.customerCalls.Add(1)
	if g.getOrCreateCustomer == nil {
		if ref.ExistingID != "" {
			return ref.ExistingID, nil
		}
		return "cus_new", nil
	}
	return g.getOrCreateCustomer(ctx, ref)
}

func (g *fakeGateway) CreateSetupIntent(ctx context.Context, customerID string) (gateway.SetupIntent, error) {
	n := g.setupIntentCalls.Add(1)
	if g.createSetupIntent == nil {
		id := "seti_" + string(rune('0'+n))
		return gateway.SetupIntent{
			ID: id, CustomerID: customerID, ClientSecret: id + "_secret", Status: "requires_payment_method",
		}, nil
	}
	return g.createSetupIntent(ctx, customerID)
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (gateway.Subscription, error) {
	g.subscriptionCalls.Add(1)
	return g.createSubscription(ctx, customerID, priceID, paymentMethodID)
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, amount float64, customerID, currency string) (gateway.PaymentIntent, error) {
	n := g.paymentIntentCalls.Add(1)
	if g.createPaymentIntent == nil {
		minor, err := gateway.ToMinorUnits(amount, currency)
		if err != nil {
			return gateway.PaymentIntent{}, err
		}
		id := "pi_" + string(rune('0'+n))
		return gateway.PaymentIntent{
			ID: id, CustomerID: customerID, ClientSecret: id + "_secret",
			Status: "requires_payment_method", Amount: minor, Currency: currency,
		}, nil
	}
	return g.createPaymentIntent(ctx, amount, customerID, currency)
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, id string) (gateway.Subscription, error) {
	return g.cancelSubscription(ctx, id)
}

func (g *fakeGateway) GetSubscription(ctx context.Context, id string) (gateway.Subscription, error) {
	return g.getSubscription(ctx, id)
}

// gatewayDown is what the Stripe client returns for a connection failure.
var gatewayDown = &gateway.Error{Op: "test", Kind: gateway.KindNetwork, Err: io.ErrUnexpectedEOF}
