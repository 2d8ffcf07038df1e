package xid

import (
	"regexp"
	"strings"
	"testing"
)

func TestHexCodeShape(t *testing.T) {
	re := regexp.MustCompile(`^[0-9A-F]{8}$`)
	for i := 0; i < 50; i++ {
		code := HexCode()
		if !re.MatchString(code) {
			t.Fatalf("unexpected hex code %q", code)
		}
	}
}

func TestPublicCodes(t *testing.T) {
	if !regexp.MustCompile(`^CUST[0-9]{6}$`).MatchString(CustomerCode()) {
		t.Fatalf("customer code has wrong shape")
	}
	for i := 0; i < 50; i++ {
		code := StaffCode()
		if !regexp.MustCompile(`^STAFF[1-9][0-9]{3}$`).MatchString(code) {
			t.Fatalf("unexpected staff code %q", code)
		}
	}
	if !strings.HasPrefix(VoidCode(), "VOID") || len(VoidCode()) != 12 {
		t.Fatalf("void code has wrong shape")
	}
}

func TestTokenIsURLSafe(t *testing.T) {
	tok, err := Token(48)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if len(tok) != 64 {
		t.Fatalf("expected 64 chars for 48 bytes, got %d", len(tok))
	}
	if strings.ContainsAny(tok, "+/=") {
		t.Fatalf("token must be url-safe, got %q", tok)
	}
}
