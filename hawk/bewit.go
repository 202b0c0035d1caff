package hawk

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// Bewit query parameter name. A GET carrying ?bewit=<token> needs no
// Authorization header.
const BewitParam = "bewit"

// encodeBewit packs (id, expiry, mac) into a single opaque query-safe value.
func encodeBewit(credID string, expiry int64, mac string) string {
	raw := credID + "\\" + strconv.FormatInt(expiry, 10) + "\\" + mac
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeBewit unpacks a bewit token. Returns ErrMalformedBewit for anything
// that does not decode to exactly three fields with a numeric expiry.
func decodeBewit(token string) (credID string, expiry int64, mac string, err error) {
	raw, decodeErr := base64.RawURLEncoding.DecodeString(token)
	if decodeErr != nil {
		return "", 0, "", ErrMalformedBewit
	}

	parts := strings.Split(string(raw), "\\")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", 0, "", ErrMalformedBewit
	}

	expiry, parseErr := strconv.ParseInt(parts[1], 10, 64)
	if parseErr != nil {
		return "", 0, "", ErrMalformedBewit
	}

	return parts[0], expiry, parts[2], nil
}
