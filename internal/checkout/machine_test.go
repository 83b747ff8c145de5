package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangefront/course-enrollment/internal/model"
	"github.com/rangefront/course-enrollment/internal/payment"
	"github.com/rangefront/course-enrollment/internal/pricing"
)

// ----- in-memory store -----

// memStore mirrors the MySQL store's semantics with a single mutex
// standing in for row locks, which makes the concurrency tests honest:
// TryReserve and ConfirmOnce are atomic sections here just as they are
// transactions there.
type memStore struct {
	mu           sync.Mutex
	offerings    map[uint64]*model.Offering
	reservations map[uint64]*model.Reservation
	waitlist     []*model.WaitlistEntry
	nextRes      uint64
	nextEntry    uint64
}

func newMemStore(offs ...*model.Offering) *memStore {
	s := &memStore{
		offerings:    make(map[uint64]*model.Offering),
		reservations: make(map[uint64]*model.Reservation),
	}
	for _, o := range offs {
		s.offerings[o.ID] = o
	}
	return s
}

func copyRes(r *model.Reservation) *model.Reservation {
	c := *r
	return &c
}

func (s *memStore) GetOffering(ctx context.Context, id uint64) (*model.Offering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offerings[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *o
	return &c, nil
}

func (s *memStore) CreateDraft(ctx context.Context, res *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRes++
	res.ID = s.nextRes
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	s.reservations[res.ID] = copyRes(res)
	return nil
}

func (s *memStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRes(r), nil
}

func (s *memStore) occupiedLocked(offeringID uint64) int {
	n := 0
	for _, r := range s.reservations {
		if r.OfferingID == offeringID && r.CountsAgainstCapacity() {
			n++
		}
	}
	return n
}

func (s *memStore) TryReserve(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[reservationID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status == model.StatusPendingPayment {
		return copyRes(r), nil
	}
	if r.Status != model.StatusDraft {
		return nil, ErrIntegrity
	}
	off, ok := s.offerings[r.OfferingID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.occupiedLocked(off.ID) >= int(off.Capacity) {
		return nil, ErrSoldOut
	}
	r.Status = model.StatusPendingPayment
	r.UpdatedAt = time.Now().UTC()
	return copyRes(r), nil
}

func (s *memStore) Release(ctx context.Context, reservationID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[reservationID]
	if !ok {
		return ErrNotFound
	}
	if r.Terminal() {
		return ErrIntegrity
	}
	r.Status = model.StatusCancelled
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) AvailableSpots(ctx context.Context, offeringID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	off, ok := s.offerings[offeringID]
	if !ok {
		return 0, ErrNotFound
	}
	n := int(off.Capacity) - s.occupiedLocked(offeringID)
	if n < 0 {
		n = 0
	}
	return n, nil
}

func (s *memStore) SetPricing(ctx context.Context, reservationID uint64, paymentOption string, promoCode *string, amountDueCents int64, intentID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[reservationID]
	if !ok {
		return ErrNotFound
	}
	if r.Terminal() {
		return ErrIntegrity
	}
	r.PaymentOption = paymentOption
	r.PromoCode = promoCode
	r.AmountDueCents = amountDueCents
	r.PaymentIntentID = intentID
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) MarkWaitlisted(ctx context.Context, reservationID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[reservationID]
	if !ok {
		return ErrNotFound
	}
	if r.Status != model.StatusDraft {
		return ErrIntegrity
	}
	r.Status = model.StatusWaitlisted
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) CreateWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEntry++
	entry.ID = s.nextEntry
	entry.CreatedAt = time.Now().UTC()
	e := *entry
	s.waitlist = append(s.waitlist, &e)
	return nil
}

func (s *memStore) ConfirmOnce(ctx context.Context, reservationID uint64, paymentRef string) (*model.Reservation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[reservationID]
	if !ok {
		return nil, false, ErrNotFound
	}
	switch r.Status {
	case model.StatusConfirmed:
		if r.PaymentRef != nil && *r.PaymentRef == paymentRef {
			return copyRes(r), false, nil
		}
		return nil, false, ErrIntegrity
	case model.StatusPendingPayment:
		ref := paymentRef
		r.Status = model.StatusConfirmed
		r.PaymentRef = &ref
		r.UpdatedAt = time.Now().UTC()
		return copyRes(r), true, nil
	default:
		return nil, false, ErrIntegrity
	}
}

func (s *memStore) ListAbandoned(ctx context.Context, cutoff time.Time) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if (r.Status == model.StatusDraft || r.Status == model.StatusPendingPayment) && r.CreatedAt.Before(cutoff) {
			out = append(out, *r)
		}
	}
	return out, nil
}

// backdate moves a reservation's creation time for reaper tests.
func (s *memStore) backdate(id uint64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[id].CreatedAt = s.reservations[id].CreatedAt.Add(-d)
}

// ----- other fakes -----

type memAccounts struct {
	mu     sync.Mutex
	nextID uint64
	emails map[string]uint64
}

func newMemAccounts() *memAccounts { return &memAccounts{emails: make(map[string]uint64)} }

func (a *memAccounts) Create(ctx context.Context, email, password, firstName, lastName, phone string) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.emails[email]; ok {
		return 0, ErrEmailExists
	}
	a.nextID++
	a.emails[email] = a.nextID
	return a.nextID, nil
}

type recordingNotifier struct {
	mu         sync.Mutex
	confirmed  int
	waitlisted int
}

func (n *recordingNotifier) EnrollmentConfirmed(ctx context.Context, res *model.Reservation, off *model.Offering) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed++
	return nil
}

func (n *recordingNotifier) WaitlistJoined(ctx context.Context, entry *model.WaitlistEntry, off *model.Offering) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waitlisted++
	return nil
}

type countingCache struct {
	mu sync.Mutex
	n  int
}

func (c *countingCache) Invalidate(ctx context.Context, offeringID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

// countingGateway wraps the sandbox so tests can assert that the
// gateway was never touched on free settlements.
type countingGateway struct {
	*payment.SandboxGateway
	mu      sync.Mutex
	created int
}

func (g *countingGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*payment.Intent, error) {
	g.mu.Lock()
	g.created++
	g.mu.Unlock()
	return g.SandboxGateway.CreateIntent(ctx, amountCents, currency, metadata)
}

type mapPromos struct {
	mu        sync.Mutex
	discounts map[string]int64
}

func (f *mapPromos) Validate(ctx context.Context, code string, off *model.Offering, subtotal int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.discounts[code]
	if !ok {
		return 0, &pricing.PromoError{Code: code, Reason: pricing.PromoNotFound}
	}
	return d, nil
}

func (f *mapPromos) drop(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.discounts, code)
}

// ----- harness -----

type harness struct {
	store    *memStore
	accounts *memAccounts
	gateway  *countingGateway
	notifier *recordingNotifier
	cache    *countingCache
	promos   *mapPromos
	engine   *Engine
}

func course(id uint64, price int64, capacity uint32) *model.Offering {
	return &model.Offering{
		ID:         id,
		Kind:       model.OfferingCourse,
		Title:      "Defensive Handgun I",
		Capacity:   capacity,
		PriceCents: price,
		IsActive:   true,
	}
}

func newHarness(t *testing.T, offs ...*model.Offering) *harness {
	t.Helper()
	h := &harness{
		store:    newMemStore(offs...),
		accounts: newMemAccounts(),
		gateway:  &countingGateway{SandboxGateway: payment.NewSandboxGateway()},
		notifier: &recordingNotifier{},
		cache:    &countingCache{},
		promos:   &mapPromos{discounts: map[string]int64{"SAVE10": 1000, "COMP": 1000000}},
	}
	quoter := pricing.NewQuoter(h.promos, pricing.NewFlatRateTax(0))
	h.engine = NewEngine(h.store, h.accounts, quoter, h.gateway, h.notifier, h.cache, "USD")
	return h
}

func guest(email string) PurchaserInfo {
	return PurchaserInfo{
		Email:           email,
		FirstName:       "Jordan",
		LastName:        "Reed",
		AcceptTerms:     true,
		Password:        "hunter2hunter2",
		PasswordConfirm: "hunter2hunter2",
	}
}

func (h *harness) draft(t *testing.T, offeringID uint64, info PurchaserInfo) *model.Reservation {
	t.Helper()
	res, err := h.engine.CreateDraft(context.Background(), offeringID, info, model.PayFull)
	require.NoError(t, err)
	return res
}

func (h *harness) reserve(t *testing.T, resID uint64) *ReserveResult {
	t.Helper()
	result, err := h.engine.QuoteAndReserve(context.Background(), resID)
	require.NoError(t, err)
	return result
}

// ----- tests -----

func TestCreateDraftValidation(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	ctx := context.Background()

	_, err := h.engine.CreateDraft(ctx, 1, PurchaserInfo{}, "FULL")
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr, "email")
	assert.Contains(t, verr, "first_name")
	assert.Contains(t, verr, "last_name")
	assert.Contains(t, verr, "accept_terms")
	assert.Contains(t, verr, "password")

	info := guest("a@b.com")
	info.PasswordConfirm = "different-password"
	_, err = h.engine.CreateDraft(ctx, 1, info, "FULL")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr, "password_confirm")

	info = guest("a@b.com")
	info.Password = "short"
	info.PasswordConfirm = "short"
	_, err = h.engine.CreateDraft(ctx, 1, info, "FULL")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr, "password")

	_, err = h.engine.CreateDraft(ctx, 1, guest("a@b.com"), "LAYAWAY")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr, "payment_option")
}

func TestCreateDraftGuestGetsAccount(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	res := h.draft(t, 1, guest("new@student.com"))
	assert.NotZero(t, res.UserID)
	assert.Equal(t, model.StatusDraft, res.Status)

	// A draft never occupies a spot.
	spots, err := h.engine.AvailableSpots(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, spots)
}

func TestCreateDraftDuplicateEmail(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	h.draft(t, 1, guest("dup@student.com"))

	_, err := h.engine.CreateDraft(context.Background(), 1, guest("dup@student.com"), "FULL")
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr, "email")
}

func TestCreateDraftAuthenticatedSkipsAccount(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	info := guest("existing@student.com")
	info.UserID = 42
	info.Password = ""
	info.PasswordConfirm = ""
	res := h.draft(t, 1, info)
	assert.Equal(t, uint64(42), res.UserID)
}

func TestReserveHappyPath(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	res := h.draft(t, 1, guest("s1@x.com"))

	result := h.reserve(t, res.ID)
	require.False(t, result.Waitlisted)
	assert.Equal(t, model.StatusPendingPayment, result.Reservation.Status)
	assert.Equal(t, int64(10000), result.Quote.TotalCents)
	require.NotNil(t, result.Intent)
	assert.Equal(t, int64(10000), result.Intent.AmountCents)
	assert.Equal(t, "USD", result.Intent.Currency)
	require.NotNil(t, result.Reservation.PaymentIntentID)
	assert.Equal(t, result.Intent.ID, *result.Reservation.PaymentIntentID)
	assert.Equal(t, int64(10000), result.Reservation.AmountDueCents)

	spots, err := h.engine.AvailableSpots(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, spots)
}

func TestReserveFreeSkipsGateway(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	res := h.draft(t, 1, guest("comp@x.com"))

	// Attach the fully-comping promo to the draft before reserving.
	_, err := h.engine.ApplyPromo(context.Background(), res.ID, "COMP")
	require.NoError(t, err)

	result := h.reserve(t, res.ID)
	assert.True(t, result.Quote.Free())
	assert.Nil(t, result.Intent)
	assert.Nil(t, result.Reservation.PaymentIntentID)
	assert.Equal(t, 0, h.gateway.created)

	// The spot is still held while unpaid.
	spots, err := h.engine.AvailableSpots(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, spots)

	confirmed, err := h.engine.ConfirmFree(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.PaymentRef)
	assert.Equal(t, "free", *confirmed.PaymentRef)
	assert.Equal(t, 0, h.gateway.created)
	assert.Equal(t, 1, h.notifier.confirmed)

	// Idempotent repeat.
	again, err := h.engine.ConfirmFree(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, again.Status)
	assert.Equal(t, 1, h.notifier.confirmed)
}

func TestConfirmFreeRejectsPayable(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	res := h.draft(t, 1, guest("payer@x.com"))
	h.reserve(t, res.ID)

	_, err := h.engine.ConfirmFree(context.Background(), res.ID)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestSoldOutFallsToWaitlist(t *testing.T) {
	h := newHarness(t, course(1, 10000, 2))

	for i, email := range []string{"a@x.com", "b@x.com"} {
		res := h.draft(t, 1, guest(email))
		result := h.reserve(t, res.ID)
		require.False(t, result.Waitlisted, "purchaser %d should get a spot", i)
	}

	res := h.draft(t, 1, guest("late@x.com"))
	result := h.reserve(t, res.ID)
	assert.True(t, result.Waitlisted)
	assert.Equal(t, model.StatusWaitlisted, result.Reservation.Status)
	assert.Nil(t, result.Quote)
	assert.Nil(t, result.Intent)
	assert.Equal(t, 1, h.notifier.waitlisted)
	require.Len(t, h.store.waitlist, 1)
	assert.Equal(t, res.UserID, h.store.waitlist[0].UserID)

	spots, err := h.engine.AvailableSpots(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, spots)
}

func TestConcurrentReserveSingleSpot(t *testing.T) {
	h := newHarness(t, course(1, 10000, 1))
	const n = 25

	ids := make([]uint64, n)
	for i := 0; i < n; i++ {
		res := h.draft(t, 1, PurchaserInfo{
			UserID:      uint64(i + 1000),
			Email:       "u@x.com",
			FirstName:   "A",
			LastName:    "B",
			AcceptTerms: true,
		})
		ids[i] = res.ID
	}

	var wg sync.WaitGroup
	results := make([]*ReserveResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.engine.QuoteAndReserve(context.Background(), ids[i])
		}(i)
	}
	wg.Wait()

	won := 0
	for i, r := range results {
		require.NoError(t, errs[i])
		if !r.Waitlisted {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one purchaser gets the last spot")
	assert.Equal(t, n-1, h.notifier.waitlisted)

	spots, err := h.engine.AvailableSpots(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, spots)
}

func TestConfirmHappyPathAndIdempotence(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	res := h.draft(t, 1, guest("pay@x.com"))
	result := h.reserve(t, res.ID)
	intentID := result.Intent.ID

	// Pending intents cannot settle.
	_, err := h.engine.Confirm(context.Background(), res.ID, intentID)
	assert.ErrorIs(t, err, ErrPaymentRequiresAction)

	require.True(t, h.gateway.Settle(intentID, payment.IntentSucceeded))
	confirmed, err := h.engine.Confirm(context.Background(), res.ID, intentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.PaymentRef)
	assert.Equal(t, intentID, *confirmed.PaymentRef)
	assert.Equal(t, 1, h.notifier.confirmed)

	// Same reference again: same outcome, no second event.
	again, err := h.engine.Confirm(context.Background(), res.ID, intentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, again.Status)
	assert.Equal(t, 1, h.notifier.confirmed)

	// A different reference against a confirmed reservation is an
	// integrity failure, not a silent success.
	_, err = h.engine.Confirm(context.Background(), res.ID, "pi_other")
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestConfirmDeclined(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	res := h.draft(t, 1, guest("declined@x.com"))
	result := h.reserve(t, res.ID)

	require.True(t, h.gateway.Settle(result.Intent.ID, payment.IntentFailed))
	_, err := h.engine.Confirm(context.Background(), res.ID, result.Intent.ID)
	var derr *payment.DeclinedError
	require.ErrorAs(t, err, &derr)

	// The spot stays held; the purchaser can retry with another card
	// after re-quoting.
	got, err := h.store.GetReservation(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingPayment, got.Status)
}

func TestChangePaymentOptionReplacesIntent(t *testing.T) {
	off := course(1, 10000, 5)
	dep := int64(2500)
	off.DepositCents = &dep
	h := newHarness(t, off)

	res := h.draft(t, 1, guest("deposit@x.com"))
	first := h.reserve(t, res.ID)
	oldIntent := first.Intent.ID

	second, err := h.engine.ChangePaymentOption(context.Background(), res.ID, model.PayDeposit)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), second.Quote.TotalCents)
	require.NotNil(t, second.Intent)
	assert.NotEqual(t, oldIntent, second.Intent.ID)
	assert.Equal(t, int64(2500), second.Reservation.AmountDueCents)

	// The replaced intent is void at the gateway.
	status, err := h.gateway.GetIntentStatus(context.Background(), oldIntent)
	require.NoError(t, err)
	assert.Equal(t, payment.IntentCancelled, status)

	// Settling the old intent anyway must not confirm anything.
	h.gateway.Settle(oldIntent, payment.IntentSucceeded)
	_, err = h.engine.Confirm(context.Background(), res.ID, oldIntent)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestApplyAndRemovePromo(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	res := h.draft(t, 1, guest("promo@x.com"))
	h.reserve(t, res.ID)

	discounted, err := h.engine.ApplyPromo(context.Background(), res.ID, "save10")
	require.NoError(t, err)
	assert.Equal(t, int64(9000), discounted.Quote.TotalCents)
	require.NotNil(t, discounted.Reservation.PromoCode)
	assert.Equal(t, "SAVE10", *discounted.Reservation.PromoCode)

	// A rejected code leaves the reservation untouched.
	_, err = h.engine.ApplyPromo(context.Background(), res.ID, "BOGUS")
	var perr *pricing.PromoError
	require.ErrorAs(t, err, &perr)
	got, err := h.store.GetReservation(context.Background(), res.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PromoCode)
	assert.Equal(t, "SAVE10", *got.PromoCode)
	assert.Equal(t, int64(9000), got.AmountDueCents)

	restored, err := h.engine.RemovePromo(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), restored.Quote.TotalCents)
	assert.Nil(t, restored.Reservation.PromoCode)
}

func TestConfirmStaleQuote(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	res := h.draft(t, 1, guest("stale@x.com"))
	h.reserve(t, res.ID)
	result, err := h.engine.ApplyPromo(context.Background(), res.ID, "SAVE10")
	require.NoError(t, err)
	intentID := result.Intent.ID
	h.gateway.Settle(intentID, payment.IntentSucceeded)

	// The code stops validating between quote and confirm.
	h.promos.drop("SAVE10")
	_, err = h.engine.Confirm(context.Background(), res.ID, intentID)
	assert.ErrorIs(t, err, ErrStaleQuote)
}

func TestConfirmPriceDrift(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	res := h.draft(t, 1, guest("drift@x.com"))
	result := h.reserve(t, res.ID)
	h.gateway.Settle(result.Intent.ID, payment.IntentSucceeded)

	// Price changes under the purchaser's feet.
	h.store.mu.Lock()
	h.store.offerings[1].PriceCents = 12000
	h.store.mu.Unlock()

	_, err := h.engine.Confirm(context.Background(), res.ID, result.Intent.ID)
	assert.ErrorIs(t, err, ErrStaleQuote)
}

func TestCancelReleasesSpot(t *testing.T) {
	h := newHarness(t, course(1, 10000, 1))
	res := h.draft(t, 1, guest("cancel@x.com"))
	result := h.reserve(t, res.ID)

	require.NoError(t, h.engine.Cancel(context.Background(), res.ID))

	got, err := h.store.GetReservation(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	status, err := h.gateway.GetIntentStatus(context.Background(), result.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.IntentCancelled, status)

	spots, err := h.engine.AvailableSpots(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, spots)

	// Cancelling twice is an integrity failure.
	assert.ErrorIs(t, h.engine.Cancel(context.Background(), res.ID), ErrIntegrity)
}

func TestJoinWaitlistRequiresFullOffering(t *testing.T) {
	h := newHarness(t, course(1, 10000, 1))

	_, err := h.engine.JoinWaitlist(context.Background(), 1, 7, "")
	assert.ErrorIs(t, err, ErrSpotsAvailable)

	res := h.draft(t, 1, guest("filler@x.com"))
	h.reserve(t, res.ID)

	entry, err := h.engine.JoinWaitlist(context.Background(), 1, 7, "prefers weekends")
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)
	assert.Equal(t, uint64(7), entry.UserID)
	assert.Equal(t, 1, h.notifier.waitlisted)
}

func TestReapAbandoned(t *testing.T) {
	h := newHarness(t, course(1, 10000, 2))

	stale := h.draft(t, 1, guest("stale@x.com"))
	staleResult := h.reserve(t, stale.ID)
	h.store.backdate(stale.ID, time.Hour)

	fresh := h.draft(t, 1, guest("fresh@x.com"))
	h.reserve(t, fresh.ID)

	n, err := h.engine.ReapAbandoned(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.store.GetReservation(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	status, err := h.gateway.GetIntentStatus(context.Background(), staleResult.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.IntentCancelled, status)

	kept, err := h.store.GetReservation(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingPayment, kept.Status)

	spots, err := h.engine.AvailableSpots(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, spots)
}

func TestReserveInactiveOffering(t *testing.T) {
	off := course(1, 10000, 5)
	off.IsActive = false
	h := newHarness(t, off)

	_, err := h.engine.CreateDraft(context.Background(), 1, guest("x@x.com"), "FULL")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReserveTerminalReservation(t *testing.T) {
	h := newHarness(t, course(1, 10000, 5))
	res := h.draft(t, 1, guest("done@x.com"))
	result := h.reserve(t, res.ID)
	h.gateway.Settle(result.Intent.ID, payment.IntentSucceeded)
	_, err := h.engine.Confirm(context.Background(), res.ID, result.Intent.ID)
	require.NoError(t, err)

	_, err = h.engine.QuoteAndReserve(context.Background(), res.ID)
	assert.ErrorIs(t, err, ErrIntegrity)
	_, err = h.engine.ApplyPromo(context.Background(), res.ID, "SAVE10")
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.ErrorIs(t, h.engine.Cancel(context.Background(), res.ID), ErrIntegrity)
}

func TestValidationErrorMessage(t *testing.T) {
	v := ValidationError{"email": "a valid email is required", "accept_terms": "terms must be accepted"}
	msg := v.Error()
	assert.Contains(t, msg, "accept_terms")
	assert.Contains(t, msg, "email")
	require.Error(t, errors.New(msg))
}
