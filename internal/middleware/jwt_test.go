package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangefront/course-enrollment/internal/utils"
)

const testSecret = "unit-test-secret"

// invoke runs a middleware chain against a bare GET request and returns
// the recorder plus the context seen by the terminal handler (nil when
// the chain short-circuited).
func invoke(t *testing.T, mw echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen echo.Context
	h := mw(func(c echo.Context) error {
		seen = c
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, seen
}

func TestJWTAuthValidToken(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 42, "STUDENT", 15)
	require.NoError(t, err)

	rec, seen := invoke(t, JWTAuth(testSecret), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, float64(42), seen.Get("user_id"))
	assert.Equal(t, "STUDENT", seen.Get("role"))
}

func TestJWTAuthMissingHeader(t *testing.T) {
	rec, seen := invoke(t, JWTAuth(testSecret), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)
}

func TestJWTAuthWrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("some-other-secret", 42, "STUDENT", 15)
	require.NoError(t, err)

	rec, seen := invoke(t, JWTAuth(testSecret), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)
}

func TestOptionalJWTGuestPassesThrough(t *testing.T) {
	rec, seen := invoke(t, OptionalJWT(testSecret), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Nil(t, seen.Get("user_id"))
}

func TestOptionalJWTValidTokenSetsIdentity(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 7, "INSTRUCTOR", 15)
	require.NoError(t, err)

	rec, seen := invoke(t, OptionalJWT(testSecret), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, float64(7), seen.Get("user_id"))
	assert.Equal(t, "INSTRUCTOR", seen.Get("role"))
}

func TestOptionalJWTGarbageTokenRejected(t *testing.T) {
	rec, seen := invoke(t, OptionalJWT(testSecret), "Bearer not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)
}

func TestRequireRole(t *testing.T) {
	run := func(role interface{}) int {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set("role", role)
		}
		h := RequireRole("STUDENT", "INSTRUCTOR")(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		require.NoError(t, h(c))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, run("STUDENT"))
	assert.Equal(t, http.StatusOK, run("INSTRUCTOR"))
	assert.Equal(t, http.StatusForbidden, run("SOMETHING_ELSE"))
	assert.Equal(t, http.StatusForbidden, run(nil))
	assert.Equal(t, http.StatusForbidden, run(123)) // wrong type in context
}
