package utils

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

const promoCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratePromoCode returns a random uppercase alphanumeric code.
// Uniqueness is not guaranteed here; the store's unique index is the
// authority and callers retry on duplicates.
func GeneratePromoCode(size int) string {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		s := strings.ToUpper(strconv.FormatInt(time.Now().UnixNano(), 36))
		for len(s) < size {
			s += s
		}
		return s[:size]
	}
	for i, v := range b {
		b[i] = promoCharset[int(v)%len(promoCharset)]
	}
	return string(b)
}
