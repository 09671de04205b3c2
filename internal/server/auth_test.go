package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestJWTRoundTripThroughMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	signed, err := signJWT("user-123", secret, time.Hour)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := withAuth(func(c echo.Context) error {
		if got := c.Get("user_id"); got != "user-123" {
			t.Fatalf("expected user-123, got %v", got)
		}
		return c.NoContent(http.StatusOK)
	}, secret)

	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestWithAuthRejectsMissingToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := withAuth(func(c echo.Context) error { return nil }, []byte("s"))
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestWithAuthRejectsWrongSecret(t *testing.T) {
	signed, err := signJWT("user-123", []byte("secret-a"), time.Hour)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := withAuth(func(c echo.Context) error { return nil }, []byte("secret-b"))
	err = handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestWithAuthAcceptsCookie(t *testing.T) {
	secret := []byte("test-secret")
	signed, err := signJWT("user-456", secret, time.Hour)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: signed})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := withAuth(func(c echo.Context) error {
		if got := c.Get("user_id"); got != "user-456" {
			t.Fatalf("expected user-456, got %v", got)
		}
		return c.NoContent(http.StatusOK)
	}, secret)

	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
}
