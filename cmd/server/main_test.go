package main

import (
	"testing"

	"cookiecraze/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigRejectsRelativeBaseURL(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		PublicBaseURL: "shop.cookiecraze.local/verify",
	})
	if err == nil {
		t.Fatalf("expected relative PUBLIC_BASE_URL to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	for _, base := range []string{"", "https://shop.cookiecraze.com", "http://localhost:8080"} {
		err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", PublicBaseURL: base})
		if err != nil {
			t.Fatalf("expected strong config with base %q to pass, got %v", base, err)
		}
	}
}
