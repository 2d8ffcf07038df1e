package xid

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// HexCode returns the first 8 hex digits of a random UUID, upper-cased.
// Callers are responsible for the uniqueness recheck.
func HexCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}

func VoidCode() string {
	return "VOID" + HexCode()
}

// CustomerCode returns CUST followed by six random digits.
func CustomerCode() string {
	return "CUST" + randomDigits(6, false)
}

// StaffCode returns STAFF followed by a number in [1000, 9999].
func StaffCode() string {
	return "STAFF" + randomDigits(4, true)
}

// Token returns a url-safe token built from n random bytes.
func Token(n int) (string, error) {
	if n < 16 {
		n = 16
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func randomDigits(n int, noLeadingZero bool) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		lo, span := int64(0), int64(10)
		if i == 0 && noLeadingZero {
			lo, span = 1, 9
		}
		v, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			b.WriteByte(byte('0' + lo + time.Now().UnixNano()%span))
			continue
		}
		b.WriteByte(byte('0' + lo + v.Int64()))
	}
	return b.String()
}
