package checkout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/abdulbasit0-UI/storefront-backend/api/middleware"
	checkoutsvc "github.com/abdulbasit0-UI/storefront-backend/internal/checkout"
	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	"github.com/abdulbasit0-UI/storefront-backend/internal/payments"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
)

type stubCheckout struct {
	state        *checkoutsvc.State
	confirmation *checkoutsvc.Confirmation
	err          error

	lastAddress checkoutsvc.AddressInput
	lastConfirm checkoutsvc.ConfirmInput
	abandoned   bool
}

func (s *stubCheckout) Begin(ctx context.Context, id identity.Identity) (*checkoutsvc.State, error) {
	return s.state, s.err
}

func (s *stubCheckout) Get(ctx context.Context, id identity.Identity) (*checkoutsvc.State, error) {
	return s.state, s.err
}

func (s *stubCheckout) SubmitAddress(ctx context.Context, id identity.Identity, in checkoutsvc.AddressInput) (*checkoutsvc.State, error) {
	s.lastAddress = in
	return s.state, s.err
}

func (s *stubCheckout) Back(ctx context.Context, id identity.Identity) (*checkoutsvc.State, error) {
	return s.state, s.err
}

func (s *stubCheckout) Confirm(ctx context.Context, id identity.Identity, in checkoutsvc.ConfirmInput) (*checkoutsvc.Confirmation, error) {
	s.lastConfirm = in
	return s.confirmation, s.err
}

func (s *stubCheckout) Abandon(ctx context.Context, id identity.Identity) error {
	s.abandoned = true
	return s.err
}

func authedRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	id, err := identity.Authenticated(uuid.New())
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.WithIdentity(req.Context(), id))
}

func TestBeginRequiresAuthenticatedUser(t *testing.T) {
	guest, err := identity.Anonymous("guest-session-1")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), guest))

	resp := httptest.NewRecorder()
	Begin(&stubCheckout{}, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestBeginReturnsState(t *testing.T) {
	svc := &stubCheckout{state: &checkoutsvc.State{Session: &checkoutsvc.Session{Step: enums.CheckoutStepShippingInfo}}}
	resp := httptest.NewRecorder()
	Begin(svc, nil).ServeHTTP(resp, authedRequest(t, http.MethodPost, "/api/v1/checkout", ""))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"step":"`+string(enums.CheckoutStepShippingInfo)+`"`)
}

func TestSubmitAddressDecodesSavedAddress(t *testing.T) {
	addressID := uuid.New()
	svc := &stubCheckout{state: &checkoutsvc.State{}}
	body := `{"savedAddressId":"` + addressID.String() + `"}`

	resp := httptest.NewRecorder()
	SubmitAddress(svc, nil).ServeHTTP(resp, authedRequest(t, http.MethodPost, "/api/v1/checkout/address", body))

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.lastAddress.SavedAddressID)
	require.Equal(t, addressID, *svc.lastAddress.SavedAddressID)
}

func TestSubmitAddressRejectsUnknownFields(t *testing.T) {
	resp := httptest.NewRecorder()
	SubmitAddress(&stubCheckout{}, nil).ServeHTTP(resp, authedRequest(t, http.MethodPost, "/api/v1/checkout/address", `{"street":"x"}`))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestConfirmAllowsEmptyBody(t *testing.T) {
	orderID := uuid.New()
	svc := &stubCheckout{confirmation: &checkoutsvc.Confirmation{
		OrderID: orderID,
		Payment: &payments.Session{OrderID: orderID, SessionID: "cs_test_1", RedirectURL: "https://pay.example/cs_test_1"},
	}}

	resp := httptest.NewRecorder()
	Confirm(svc, nil).ServeHTTP(resp, authedRequest(t, http.MethodPost, "/api/v1/checkout/confirm", ""))

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Contains(t, resp.Body.String(), "cs_test_1")
	require.Empty(t, svc.lastConfirm.SuccessURL)
}

func TestConfirmPassesRedirects(t *testing.T) {
	svc := &stubCheckout{confirmation: &checkoutsvc.Confirmation{OrderID: uuid.New()}}
	body := `{"successUrl":"https://shop.example/ok","cancelUrl":"https://shop.example/cancel"}`

	resp := httptest.NewRecorder()
	Confirm(svc, nil).ServeHTTP(resp, authedRequest(t, http.MethodPost, "/api/v1/checkout/confirm", body))

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, "https://shop.example/ok", svc.lastConfirm.SuccessURL)
	require.Equal(t, "https://shop.example/cancel", svc.lastConfirm.CancelURL)
}

func TestConfirmSurfacesStateConflict(t *testing.T) {
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeConflict, "cart changed since checkout began")}

	resp := httptest.NewRecorder()
	Confirm(svc, nil).ServeHTTP(resp, authedRequest(t, http.MethodPost, "/api/v1/checkout/confirm", ""))
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestAbandon(t *testing.T) {
	svc := &stubCheckout{}
	resp := httptest.NewRecorder()
	Abandon(svc, nil).ServeHTTP(resp, authedRequest(t, http.MethodDelete, "/api/v1/checkout", ""))

	require.Equal(t, http.StatusOK, resp.Code)
	require.True(t, svc.abandoned)
}
