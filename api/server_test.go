package api

import (
	"net/http"
	"testing"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
)

func TestNewServerUsesConfiguredPort(t *testing.T) {
	t.Setenv("PORT", "")
	srv := NewServer(&config.Config{App: config.AppConfig{Port: "8081"}}, http.NotFoundHandler())
	if srv.Addr != ":8081" {
		t.Fatalf("expected :8081, got %s", srv.Addr)
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Fatalf("expected header timeout to be set")
	}
}

func TestNewServerPrefersPlatformPort(t *testing.T) {
	t.Setenv("PORT", "9090")
	srv := NewServer(&config.Config{App: config.AppConfig{Port: "8081"}}, http.NotFoundHandler())
	if srv.Addr != ":9090" {
		t.Fatalf("expected :9090, got %s", srv.Addr)
	}
}
