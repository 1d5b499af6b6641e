package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidInitData covers every verification failure: malformed
// payload, missing or mismatched hash, unparseable identity. Callers
// treat them all the same way (reject the request).
var ErrInvalidInitData = errors.New("invalid init data")

// WebAppUser is the identity embedded in a verified initData payload.
type WebAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// ValidateInitData verifies a Telegram Mini App initData payload and
// returns the identity it carries.
//
// The check string is every key=value pair except hash, sorted by key
// and joined with newlines. The signing secret is
// HMAC-SHA256(key="WebAppData", msg=botToken) and the expected hash is
// the hex HMAC-SHA256 of the check string under that secret. The
// supplied hash is compared in constant time.
func ValidateInitData(initData, botToken string) (*WebAppUser, error) {
	if strings.TrimSpace(initData) == "" {
		return nil, ErrInvalidInitData
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}
	supplied := values.Get("hash")
	if supplied == "" {
		return nil, ErrInvalidInitData
	}

	pairs := make([]string, 0, len(values))
	for key, vals := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+vals[0])
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secret := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	expected := hex.EncodeToString(hmacSHA256(secret, []byte(checkString)))
	if !hmac.Equal([]byte(expected), []byte(supplied)) {
		return nil, ErrInvalidInitData
	}

	var user WebAppUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return nil, fmt.Errorf("%w: user field: %v", ErrInvalidInitData, err)
	}
	if user.ID == 0 {
		return nil, ErrInvalidInitData
	}
	return &user, nil
}

func hmacSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}
