// Package cart holds the session cart value object. A cart is a plain map of
// cookie id to desired quantity; reading, normalizing against live stock and
// writing are separate pure steps so callers decide where the bytes live.
package cart

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"cookiecraze/backend/internal/domain"
)

type Cart map[string]int

// Change describes why Normalize altered an entry.
type Change struct {
	CookieID  string `json:"cookie_id"`
	Requested int    `json:"requested"`
	Kept      int    `json:"kept"`
	Reason    string `json:"reason"`
}

const (
	ReasonUnavailable = "unavailable"
	ReasonClamped     = "clamped"
)

// Read decodes a stored cart. Entries that are not positive integers, or
// that are numeric strings of one, are dropped.
func Read(raw []byte) Cart {
	c := Cart{}
	if len(raw) == 0 {
		return c
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return c
	}
	for id, value := range entries {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if qty, ok := parseQuantity(value); ok {
			c[id] = qty
		}
	}
	return c
}

func parseQuantity(value json.RawMessage) (int, bool) {
	text := strings.TrimSpace(string(value))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	qty, err := strconv.Atoi(text)
	if err != nil || qty < 1 {
		return 0, false
	}
	return qty, true
}

func Write(c Cart) ([]byte, error) {
	clean := make(map[string]int, len(c))
	for id, qty := range c {
		if id != "" && qty > 0 {
			clean[id] = qty
		}
	}
	return json.Marshal(clean)
}

// Normalize drops unknown or unavailable cookies and clamps quantities to
// stock. The input cart is not modified.
func Normalize(c Cart, cookies map[string]domain.Cookie) (Cart, []Change) {
	next := make(Cart, len(c))
	var changes []Change
	for _, id := range c.IDs() {
		qty := c[id]
		cookie, ok := cookies[id]
		if !ok || !cookie.Orderable() {
			changes = append(changes, Change{CookieID: id, Requested: qty, Reason: ReasonUnavailable})
			continue
		}
		kept, _ := Clamp(qty, cookie.Stock)
		if kept != qty {
			changes = append(changes, Change{CookieID: id, Requested: qty, Kept: kept, Reason: ReasonClamped})
		}
		next[id] = kept
	}
	return next, changes
}

// Clamp limits qty to stock and returns the user-facing message when it had to.
func Clamp(qty int, stock int) (int, string) {
	if stock < 0 {
		stock = 0
	}
	if qty > stock {
		return stock, fmt.Sprintf("Only %d item(s) available", stock)
	}
	return qty, ""
}

// Set stores qty for id. A non-positive quantity removes the entry.
func (c Cart) Set(id string, qty int) {
	if qty <= 0 {
		delete(c, id)
		return
	}
	c[id] = qty
}

func (c Cart) Empty() bool {
	return len(c) == 0
}

// IDs returns the cookie ids in a stable order.
func (c Cart) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c Cart) Lines() []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(c))
	for _, id := range c.IDs() {
		lines = append(lines, domain.OrderLine{CookieID: id, Quantity: c[id]})
	}
	return lines
}
