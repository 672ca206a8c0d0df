package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

type testValidator struct {
	v *validator.Validate
}

func (tv *testValidator) Validate(i interface{}) error {
	return tv.v.Struct(i)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}
	return e
}

// as attaches actor to the request the way the auth middleware does.
func as(actor *entities.User) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if actor != nil {
				c.SetRequest(c.Request().WithContext(ports.ContextWithUser(c.Request().Context(), actor)))
			}
			return next(c)
		}
	}
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type mockIdentity struct {
	mock.Mock
}

func (m *mockIdentity) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*ports.AuthResponse)
	return resp, args.Error(1)
}

func (m *mockIdentity) Login(ctx context.Context, req ports.LoginRequest) (*ports.AuthResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*ports.AuthResponse)
	return resp, args.Error(1)
}

func (m *mockIdentity) RefreshToken(ctx context.Context, token string) (*ports.AuthResponse, error) {
	args := m.Called(ctx, token)
	resp, _ := args.Get(0).(*ports.AuthResponse)
	return resp, args.Error(1)
}

func (m *mockIdentity) Logout(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockIdentity) Authenticate(ctx context.Context, token string) (*entities.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*entities.User)
	return user, args.Error(1)
}

func (m *mockIdentity) RequestPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockIdentity) ResetPassword(ctx context.Context, req ports.ResetPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockIdentity) CurrentUser(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*entities.User)
	return user, args.Error(1)
}

func (m *mockIdentity) UpdateProfile(ctx context.Context, userID uuid.UUID, req ports.UpdateProfileRequest) (*entities.User, error) {
	args := m.Called(ctx, userID, req)
	user, _ := args.Get(0).(*entities.User)
	return user, args.Error(1)
}

func (m *mockIdentity) ChangePassword(ctx context.Context, userID uuid.UUID, req ports.ChangePasswordRequest) error {
	return m.Called(ctx, userID, req).Error(0)
}

func TestAuthHandlerLogin(t *testing.T) {
	identity := &mockIdentity{}
	h := NewAuthHandler(identity, logger.NewNop())
	e := newEcho()
	e.POST("/login", h.Login)

	good := ports.LoginRequest{Email: "dev@example.com", Password: "correct-horse"}
	identity.On("Login", mock.Anything, good).Return(&ports.AuthResponse{AccessToken: "access", TokenType: "Bearer"}, nil)
	bad := ports.LoginRequest{Email: "dev@example.com", Password: "wrong"}
	identity.On("Login", mock.Anything, bad).Return(nil, entities.ErrInvalidCredentials)

	rec := do(e, http.MethodPost, "/login", `{"email":"dev@example.com","password":"correct-horse"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accessToken":"access"`)

	rec = do(e, http.MethodPost, "/login", `{"email":"dev@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodPost, "/login", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	identity.AssertNumberOfCalls(t, "Login", 2)
}

func TestAuthHandlerRegisterConflict(t *testing.T) {
	identity := &mockIdentity{}
	h := NewAuthHandler(identity, logger.NewNop())
	e := newEcho()
	e.POST("/register", h.Register)

	identity.On("Register", mock.Anything, mock.AnythingOfType("ports.RegisterRequest")).Return(nil, entities.ErrEmailTaken).Once()

	rec := do(e, http.MethodPost, "/register", `{"email":"dev@example.com","password":"long-enough","name":"Dev"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	identity.AssertExpectations(t)
}

func TestForgotPasswordNeverDisclosesAccounts(t *testing.T) {
	identity := &mockIdentity{}
	h := NewAuthHandler(identity, logger.NewNop())
	e := newEcho()
	e.POST("/forgot", h.ForgotPassword)

	identity.On("RequestPasswordReset", mock.Anything, "ghost@example.com").Return(assert.AnError)

	rec := do(e, http.MethodPost, "/forgot", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestLogoutRequiresUser(t *testing.T) {
	identity := &mockIdentity{}
	h := NewAuthHandler(identity, logger.NewNop())
	user := &entities.User{ID: uuid.New(), Email: "dev@example.com"}

	anon := newEcho()
	anon.POST("/logout", h.Logout)
	assert.Equal(t, http.StatusUnauthorized, do(anon, http.MethodPost, "/logout", "").Code)

	identity.On("Logout", mock.Anything, user.ID).Return(nil).Once()
	authed := newEcho()
	authed.POST("/logout", h.Logout, as(user))
	assert.Equal(t, http.StatusOK, do(authed, http.MethodPost, "/logout", "").Code)
	identity.AssertExpectations(t)
}

func TestUserHandlerChangePassword(t *testing.T) {
	identity := &mockIdentity{}
	h := NewUserHandler(identity, logger.NewNop())
	user := &entities.User{ID: uuid.New(), Email: "sso@example.com"}
	e := newEcho()
	e.PUT("/users/me/password", h.ChangePassword, as(user))

	identity.On("ChangePassword", mock.Anything, user.ID, mock.Anything).Return(entities.ErrPasswordNotApplicable)

	rec := do(e, http.MethodPut, "/users/me/password", `{"currentPassword":"x","newPassword":"long-enough"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "external identity provider")
}

func TestUserHandlerProfile(t *testing.T) {
	identity := &mockIdentity{}
	h := NewUserHandler(identity, logger.NewNop())
	user := &entities.User{ID: uuid.New(), Email: "dev@example.com", Name: "Dev"}
	e := newEcho()
	e.GET("/users/me", h.GetCurrentUser, as(user))
	e.PUT("/users/me", h.UpdateCurrentUser, as(user))

	identity.On("CurrentUser", mock.Anything, user.ID).Return(user, nil)
	name := "Renamed"
	identity.On("UpdateProfile", mock.Anything, user.ID, ports.UpdateProfileRequest{Name: &name}).
		Return(&entities.User{ID: user.ID, Email: user.Email, Name: name}, nil)

	rec := do(e, http.MethodGet, "/users/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"dev@example.com"`)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = do(e, http.MethodPut, "/users/me", `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Renamed"`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{entities.ErrAuthenticationRequired, http.StatusUnauthorized},
		{entities.ErrForbidden, http.StatusForbidden},
		{entities.ErrBoardNotFound, http.StatusNotFound},
		{entities.ErrVersionConflict, http.StatusConflict},
		{entities.ErrLastAdmin, http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
