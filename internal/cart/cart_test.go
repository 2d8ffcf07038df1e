package cart

import (
	"testing"

	"cookiecraze/backend/internal/domain"
)

func TestReadPrunesInvalidEntries(t *testing.T) {
	c := Read([]byte(`{"a":2,"b":0,"c":-1,"d":"3","e":"x","f":1.5,"":4}`))
	if len(c) != 2 || c["a"] != 2 || c["d"] != 3 {
		t.Fatalf("unexpected cart %+v", c)
	}
	if len(Read([]byte("not json"))) != 0 {
		t.Fatalf("expected empty cart for garbage input")
	}
}

func TestNormalizeDropsAndClamps(t *testing.T) {
	cookies := map[string]domain.Cookie{
		"choco": {ID: "choco", Available: true, Stock: 5},
		"ube":   {ID: "ube", Available: true, Stock: 2},
		"off":   {ID: "off", Available: false, Stock: 10},
		"empty": {ID: "empty", Available: true, Stock: 0},
	}
	in := Cart{"choco": 3, "ube": 9, "off": 1, "empty": 1, "gone": 1}

	out, changes := Normalize(in, cookies)
	if len(out) != 2 || out["choco"] != 3 || out["ube"] != 2 {
		t.Fatalf("unexpected normalized cart %+v", out)
	}
	if len(changes) != 4 {
		t.Fatalf("expected 4 changes, got %+v", changes)
	}
	if in["ube"] != 9 {
		t.Fatalf("input cart must not be mutated")
	}
}

func TestClampMessage(t *testing.T) {
	qty, msg := Clamp(7, 4)
	if qty != 4 || msg != "Only 4 item(s) available" {
		t.Fatalf("unexpected clamp %d %q", qty, msg)
	}
	if _, msg := Clamp(2, 4); msg != "" {
		t.Fatalf("expected no message, got %q", msg)
	}
}

func TestSetZeroRemoves(t *testing.T) {
	c := Cart{"choco": 2}
	c.Set("choco", 0)
	if !c.Empty() {
		t.Fatalf("expected empty cart")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	raw, err := Write(Cart{"b": 1, "a": 2, "z": 0})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	c := Read(raw)
	lines := c.Lines()
	if len(lines) != 2 || lines[0].CookieID != "a" || lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", lines)
	}
}
