package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"rebound/internal/cache"
	"rebound/internal/config"
	"rebound/internal/database"
	"rebound/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	database.RetryBackoff = 0
}

const testJWTSecret = "server-test-secret-at-least-32-chars"

type testServer struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)

	cfg := &config.Config{
		Port:             "0",
		Env:              "test",
		JWTSecret:        testJWTSecret,
		JWTIssuer:        "rebound-auth",
		JWTAudience:      "rebound-client",
		AllowedOrigins:   "http://localhost:5173",
		CommentMaxLength: 50,
	}
	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
		mr.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &testServer{srv: srv, app: srv.App(), db: db, mr: mr}
}

func (ts *testServer) post(t *testing.T, memberID uint) *models.Post {
	t.Helper()
	p := &models.Post{MemberID: memberID, Title: "Shipped on a Friday", Content: "Never again."}
	require.NoError(t, ts.db.WithContext(context.Background()).Create(p).Error)
	return p
}

func tokenFor(t *testing.T, memberID uint) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(memberID), 10),
		"iss": "rebound-auth",
		"aud": "rebound-client",
		"exp": time.Now().Add(time.Hour).Unix(),
		"jti": uuid.NewString(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return s
}

// do sends a request as memberID (0 means anonymous) and returns the
// response with its body read.
func (ts *testServer) do(t *testing.T, method, path string, memberID uint, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if memberID != 0 {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tokenFor(t, memberID))
	}

	resp, err := ts.app.Test(req, 5000)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	return decode[models.ErrorResponse](t, data).Code
}
