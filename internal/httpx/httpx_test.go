package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func serve(t *testing.T, r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestError_StatusMapping(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", Invalid("email", "required"), http.StatusBadRequest, "email: required"},
		{"not found wrapped", errors.Wrap(apperr.NotFound("product not found"), "get"), http.StatusNotFound, "product not found"},
		{"forbidden", apperr.Forbidden("nope"), http.StatusForbidden, "nope"},
		{"unauthorized", auth.ErrInvalidToken, http.StatusUnauthorized, "invalid or expired token"},
		{"conflict", apperr.Conflict("taken"), http.StatusConflict, "taken"},
		{"unique violation", &pgconn.PgError{Code: "23505"}, http.StatusConflict, "resource already exists"},
		{"fk violation", errors.Wrap(&pgconn.PgError{Code: "23503"}, "insert"), http.StatusBadRequest, "referenced resource does not exist"},
		{"internal", errors.New("dial tcp 10.0.0.1:5432: refused"), http.StatusInternalServerError, "internal server error"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) { Error(c, tc.err) })
			w, env := serve(t, r, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tc.status, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tc.msg, env.Error)
		})
	}
}

func TestBindOptionalJSON(t *testing.T) {
	t.Parallel()
	type body struct {
		Reason string `json:"reason"`
	}
	for _, tc := range []struct {
		name   string
		body   string
		length int64
		status int
		reason string
	}{
		{"absent", "", 0, http.StatusOK, ""},
		{"sized", `{"reason":"late"}`, 17, http.StatusOK, "late"},
		{"chunked", `{"reason":"late"}`, -1, http.StatusOK, "late"},
		{"chunked empty", "", -1, http.StatusOK, ""},
		{"malformed", `{"reason":`, -1, http.StatusBadRequest, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/", func(c *gin.Context) {
				var b body
				if err := BindOptionalJSON(c, &b); err != nil {
					Error(c, err)
					return
				}
				OK(c, b)
			})
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			req.ContentLength = tc.length
			req.Header.Set("Content-Type", "application/json")
			w, env := serve(t, r, req)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			if tc.status != http.StatusOK {
				return
			}
			var got body
			require.NoError(t, json.Unmarshal(env.Data, &got))
			assert.Equal(t, tc.reason, got.Reason)
		})
	}
}

func TestOK_EmptyPageIsArray(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.GET("/", func(c *gin.Context) { OK(c, NewPage[string](nil, 20, 0)) })
	_, env := serve(t, r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"items":[],"limit":20,"offset":0}`, string(env.Data))
}

func TestPaging_Clamps(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		l, o := Paging(c)
		OK(c, gin.H{"l": l, "o": o})
	})
	_, env := serve(t, r, httptest.NewRequest(http.MethodGet, "/?limit=500&offset=-3", nil))
	assert.JSONEq(t, `{"l":20,"o":0}`, string(env.Data))
	_, env = serve(t, r, httptest.NewRequest(http.MethodGet, "/?limit=5&offset=10", nil))
	assert.JSONEq(t, `{"l":5,"o":10}`, string(env.Data))
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc-123", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "bad\x01id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "bad\x01id", w.Header().Get("X-Request-ID"))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestRecovery(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })
	w, env := serve(t, r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", env.Error)
}

type stubVerifier map[string]auth.Identity

func (s stubVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	id, ok := s[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

func TestRequireAuthAndRole(t *testing.T) {
	t.Parallel()
	v := stubVerifier{
		"admin": {UserID: "1", Role: auth.RoleAdmin},
		"cust":  {UserID: "2", Role: auth.RoleCustomer},
	}
	r := gin.New()
	r.GET("/admin", RequireAuth(v), RequireRole(auth.RoleAdmin), func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		OK(c, id.UserID)
	})

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w, _ := serve(t, r, req)
		return w.Code
	}
	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer nope"))
	assert.Equal(t, http.StatusForbidden, do("Bearer cust"))
	assert.Equal(t, http.StatusOK, do("Bearer admin"))
}
