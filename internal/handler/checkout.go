package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rangefront/course-enrollment/internal/checkout"
	"github.com/rangefront/course-enrollment/internal/config"
	"github.com/rangefront/course-enrollment/internal/model"
	"github.com/rangefront/course-enrollment/internal/payment"
	"github.com/rangefront/course-enrollment/internal/pricing"
	"github.com/rangefront/course-enrollment/internal/repository"
	"github.com/rangefront/course-enrollment/internal/utils"
)

// CheckoutHandler exposes the purchase flow over HTTP.  The engine owns
// all business rules; the handler binds requests, checks ownership and
// translates engine errors into status codes.
type CheckoutHandler struct {
	Cfg          config.Config
	Engine       *checkout.Engine
	Reservations *repository.ReservationRepo
	Tokens       *repository.TokenRepo
	Users        *repository.UserRepo
}

func NewCheckoutHandler(cfg config.Config, eng *checkout.Engine, res *repository.ReservationRepo, tok *repository.TokenRepo, users *repository.UserRepo) *CheckoutHandler {
	return &CheckoutHandler{Cfg: cfg, Engine: eng, Reservations: res, Tokens: tok, Users: users}
}

// ----- DTOs -----

type draftReq struct {
	OfferingID      uint64 `json:"offering_id"`
	PaymentOption   string `json:"payment_option"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone"`
	AcceptTerms     bool   `json:"accept_terms"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type promoReq struct {
	Code string `json:"code"`
}

type paymentOptionReq struct {
	PaymentOption string `json:"payment_option"`
}

type confirmReq struct {
	PaymentRef string `json:"payment_ref"`
}

type waitlistReq struct {
	Notes string `json:"notes"`
}

// reservationJSON shapes a reservation for responses.  Nullable fields
// are included only when set.
func reservationJSON(res *model.Reservation) echo.Map {
	m := echo.Map{
		"id":               res.ID,
		"offering_id":      res.OfferingID,
		"status":           res.Status,
		"payment_option":   res.PaymentOption,
		"amount_due_cents": res.AmountDueCents,
		"created_at":       res.CreatedAt,
	}
	if res.PromoCode != nil {
		m["promo_code"] = *res.PromoCode
	}
	if res.PaymentRef != nil {
		m["payment_ref"] = *res.PaymentRef
	}
	return m
}

func reserveResultJSON(r *checkout.ReserveResult) echo.Map {
	m := echo.Map{
		"reservation": reservationJSON(r.Reservation),
		"waitlisted":  r.Waitlisted,
	}
	if r.Quote != nil {
		m["quote"] = r.Quote
	}
	if r.Intent != nil {
		m["intent"] = r.Intent
	}
	return m
}

// CreateDraft starts a purchase attempt.  Works for guests (inline
// account creation, tokens returned) and for authenticated students.
func (h *CheckoutHandler) CreateDraft(c echo.Context) error {
	var req draftReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.OfferingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "offering_id required"})
	}

	// user_id is present only when OptionalJWT saw a valid token.
	uid, _ := getUserID(c)
	info := checkout.PurchaserInfo{
		UserID:          uid,
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		AcceptTerms:     req.AcceptTerms,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 8*time.Second)
	defer cancel()

	res, err := h.Engine.CreateDraft(ctx, req.OfferingID, info, req.PaymentOption)
	if err != nil {
		return mapCheckoutError(c, err)
	}

	body := echo.Map{"reservation": reservationJSON(res)}
	if uid == 0 {
		// A fresh account was just created for this guest; hand back a
		// session so the follow-up calls can authenticate.
		email := strings.ToLower(strings.TrimSpace(req.Email))
		u, err := h.Users.GetByEmail(ctx, email)
		if err == nil {
			if pair, terr := h.issueSession(ctx, u.ID, u.Role); terr == nil {
				pair.User = userPart{ID: u.ID, Email: u.Email, Role: u.Role, FirstName: u.FirstName, LastName: u.LastName}
				body["auth"] = pair
			}
		}
	}
	return c.JSON(http.StatusCreated, body)
}

func (h *CheckoutHandler) issueSession(ctx context.Context, userID uint64, role string) (*authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, role, h.Cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	if err := h.Tokens.StoreRefresh(ctx, userID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return &authResp{
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

// Reserve prices the draft and claims a spot.  Sold out flips the
// reservation onto the waitlist instead of failing.
func (h *CheckoutHandler) Reserve(c echo.Context) error {
	id, ok := h.owned(c)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 8*time.Second)
	defer cancel()
	result, err := h.Engine.QuoteAndReserve(ctx, id)
	if err != nil {
		return mapCheckoutError(c, err)
	}
	return c.JSON(http.StatusOK, reserveResultJSON(result))
}

// ChangePaymentOption switches FULL/DEPOSIT on a pending reservation.
// The old payment intent is discarded and a new one issued.
func (h *CheckoutHandler) ChangePaymentOption(c echo.Context) error {
	id, ok := h.owned(c)
	if !ok {
		return nil
	}
	var req paymentOptionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 8*time.Second)
	defer cancel()
	result, err := h.Engine.ChangePaymentOption(ctx, id, req.PaymentOption)
	if err != nil {
		return mapCheckoutError(c, err)
	}
	return c.JSON(http.StatusOK, reserveResultJSON(result))
}

// ApplyPromo attaches a promo code and reprices.
func (h *CheckoutHandler) ApplyPromo(c echo.Context) error {
	id, ok := h.owned(c)
	if !ok {
		return nil
	}
	var req promoReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 8*time.Second)
	defer cancel()
	result, err := h.Engine.ApplyPromo(ctx, id, strings.TrimSpace(req.Code))
	if err != nil {
		return mapCheckoutError(c, err)
	}
	return c.JSON(http.StatusOK, reserveResultJSON(result))
}

// RemovePromo strips the promo code and reprices.
func (h *CheckoutHandler) RemovePromo(c echo.Context) error {
	id, ok := h.owned(c)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 8*time.Second)
	defer cancel()
	result, err := h.Engine.RemovePromo(ctx, id)
	if err != nil {
		return mapCheckoutError(c, err)
	}
	return c.JSON(http.StatusOK, reserveResultJSON(result))
}

// Confirm settles a paid reservation against the gateway reference the
// client received from the payment flow.
func (h *CheckoutHandler) Confirm(c echo.Context) error {
	id, ok := h.owned(c)
	if !ok {
		return nil
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.PaymentRef) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_ref required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 8*time.Second)
	defer cancel()
	res, err := h.Engine.Confirm(ctx, id, strings.TrimSpace(req.PaymentRef))
	if err != nil {
		return mapCheckoutError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": reservationJSON(res)})
}

// ConfirmFree settles a zero-total reservation without a gateway round
// trip.
func (h *CheckoutHandler) ConfirmFree(c echo.Context) error {
	id, ok := h.owned(c)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 8*time.Second)
	defer cancel()
	res, err := h.Engine.ConfirmFree(ctx, id)
	if err != nil {
		return mapCheckoutError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": reservationJSON(res)})
}

// Cancel abandons a reservation, returning its spot to the pool.
func (h *CheckoutHandler) Cancel(c echo.Context) error {
	id, ok := h.owned(c)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 8*time.Second)
	defer cancel()
	if err := h.Engine.Cancel(ctx, id); err != nil {
		return mapCheckoutError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListReservations returns the caller's reservations, newest first.
func (h *CheckoutHandler) ListReservations(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	items, err := h.Reservations.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": items})
}

// GetReservation returns one reservation owned by the caller.
func (h *CheckoutHandler) GetReservation(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	d, err := h.Reservations.GetByIDForUser(ctx, id, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": d})
}

// JoinWaitlist adds the caller to an offering's waitlist.  Rejected
// with 409 while spots remain.
func (h *CheckoutHandler) JoinWaitlist(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	offeringID := pathID(c, "id")
	if offeringID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req waitlistReq
	_ = c.Bind(&req) // notes are optional
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	entry, err := h.Engine.JoinWaitlist(ctx, offeringID, uid, req.Notes)
	if err != nil {
		return mapCheckoutError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"waitlist_entry": echo.Map{
		"id":          entry.ID,
		"offering_id": entry.OfferingID,
		"created_at":  entry.CreatedAt,
	}})
}

// owned parses :id and verifies the reservation belongs to the caller.
// When ok is false the response has already been written.
func (h *CheckoutHandler) owned(c echo.Context) (id uint64, ok bool) {
	uid, err := getUserID(c)
	if err != nil {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return 0, false
	}
	id = pathID(c, "id")
	if id == 0 {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
		return 0, false
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Reservations.OwnedBy(ctx, id, uid); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows), errors.Is(err, checkout.ErrNotFound):
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			_ = c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		default:
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		return 0, false
	}
	return id, true
}

// mapCheckoutError translates engine and pricing errors into HTTP
// responses.  Unknown errors deliberately collapse to a generic 500.
func mapCheckoutError(c echo.Context, err error) error {
	var verr checkout.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": verr})
	}
	var perr *pricing.PromoError
	if errors.As(err, &perr) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid promo code", "code": perr.Code, "reason": perr.Reason})
	}
	var derr *payment.DeclinedError
	if errors.As(err, &derr) {
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment declined", "reason": derr.Reason})
	}
	switch {
	case errors.Is(err, checkout.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, checkout.ErrSoldOut):
		return c.JSON(http.StatusConflict, echo.Map{"error": "sold out"})
	case errors.Is(err, checkout.ErrStaleQuote):
		return c.JSON(http.StatusConflict, echo.Map{"error": "quote is stale, reprice and retry"})
	case errors.Is(err, checkout.ErrIntegrity):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation state conflict"})
	case errors.Is(err, checkout.ErrSpotsAvailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "spots are still available"})
	case errors.Is(err, pricing.ErrDepositNotConfigured):
		return c.JSON(http.StatusConflict, echo.Map{"error": "deposit payment not available for this offering"})
	case errors.Is(err, checkout.ErrPaymentRequiresAction):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment requires further action"})
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment provider unavailable, try again"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
