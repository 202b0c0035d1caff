package hawk

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Scheme is the Authorization header scheme for signed requests.
const Scheme = "Hawk"

// Header is the parsed form of a signed request's Authorization header. The
// method, host, port and resource bound by the MAC come from the request
// itself, not from the header.
type Header struct {
	ID        string
	Timestamp time.Time
	Nonce     string
	Hash      string
	MAC       string
}

// BuildHeader renders the Authorization header value for a signed request.
func BuildHeader(credID string, rc RequestContext, mac string) string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString(` id="`)
	b.WriteString(credID)
	b.WriteString(`", ts="`)
	b.WriteString(strconv.FormatInt(rc.Timestamp.Unix(), 10))
	b.WriteString(`", nonce="`)
	b.WriteString(rc.Nonce)
	if rc.Hash != "" {
		b.WriteString(`", hash="`)
		b.WriteString(rc.Hash)
	}
	b.WriteString(`", mac="`)
	b.WriteString(mac)
	b.WriteString(`"`)
	return b.String()
}

// ParseHeader parses an Authorization header value produced by BuildHeader
// (or any conforming peer). Unknown attributes are ignored; missing id, ts,
// nonce or mac make the header malformed.
func ParseHeader(value string) (Header, error) {
	rest, ok := strings.CutPrefix(value, Scheme+" ")
	if !ok {
		return Header{}, ErrMalformedHeader
	}

	h := Header{}
	for _, attr := range strings.Split(rest, ",") {
		attr = strings.TrimSpace(attr)
		key, val, found := strings.Cut(attr, "=")
		if !found {
			return Header{}, ErrMalformedHeader
		}
		val = strings.Trim(val, `"`)

		switch key {
		case "id":
			h.ID = val
		case "ts":
			sec, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return Header{}, fmt.Errorf("%w: bad ts %q", ErrMalformedHeader, val)
			}
			h.Timestamp = time.Unix(sec, 0).UTC()
		case "nonce":
			h.Nonce = val
		case "hash":
			h.Hash = val
		case "mac":
			h.MAC = val
		}
	}

	if h.ID == "" || h.Timestamp.IsZero() || h.Nonce == "" || h.MAC == "" {
		return Header{}, ErrMalformedHeader
	}
	return h, nil
}
