package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xraph/syndicate/hawk"
	"github.com/xraph/syndicate/notification"
	"github.com/xraph/syndicate/post"
)

const maxResponseBody = 1024 // 1KB cap on response body storage

// NotificationContentType is the media type of the notification envelope.
const NotificationContentType = "application/json"

// Envelope is the wire body of an outbound post notification.
type Envelope struct {
	Kind  notification.Kind `json:"kind"`
	Owner string            `json:"owner"`
	User  string            `json:"user,omitempty"`
	Post  *post.Version     `json:"post"`
}

// Sender performs signed HTTP notification delivery on behalf of the local
// server's credential.
type Sender struct {
	client     *http.Client
	credential *hawk.Credential
}

// NewSender creates a sender with the given HTTP timeout. Every outbound
// request is signed with cred.
func NewSender(timeout time.Duration, cred *hawk.Credential) *Sender {
	return &Sender{
		client:     &http.Client{Timeout: timeout},
		credential: cred,
	}
}

// Send delivers one notification to an endpoint and returns the result.
// Cancelling ctx aborts only the HTTP exchange.
func (s *Sender) Send(ctx context.Context, endpoint string, msg *notification.Message, v *post.Version) Result {
	body, err := json.Marshal(Envelope{
		Kind:  msg.EffectiveKind(),
		Owner: msg.Owner,
		User:  msg.User,
		Post:  v,
	})
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal envelope: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	rc, err := requestContext(req, body)
	if err != nil {
		return Result{Error: fmt.Sprintf("sign request: %v", err)}
	}
	mac := hawk.Sign(s.credential, rc)

	req.Header.Set("Content-Type", NotificationContentType)
	req.Header.Set("User-Agent", "Syndicate/1.0")
	req.Header.Set("X-Syndicate-Notification-ID", msg.ID.String())
	req.Header.Set("Authorization", hawk.BuildHeader(s.credential.ID, rc, mac))

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is a resolved federation endpoint; SSRF is by design.
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:     err.Error(),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  int(latency),
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Response:   string(respBody),
		LatencyMs:  int(latency),
	}
}

// requestContext builds the signing context for an outbound request, with
// port defaulting normalized the same way a verifying peer will.
func requestContext(req *http.Request, body []byte) (hawk.RequestContext, error) {
	port, err := portOf(req.URL)
	if err != nil {
		return hawk.RequestContext{}, err
	}

	resource := req.URL.Path
	if resource == "" {
		resource = "/"
	}
	if req.URL.RawQuery != "" {
		resource += "?" + req.URL.RawQuery
	}

	return hawk.RequestContext{
		Method:    req.Method,
		Host:      req.URL.Hostname(),
		Port:      port,
		Resource:  resource,
		Timestamp: time.Now().UTC(),
		Nonce:     hawk.NewNonce(),
		Hash:      hawk.PayloadHash(NotificationContentType, body),
	}, nil
}

func portOf(u *url.URL) (int, error) {
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("bad port %q: %w", p, err)
		}
		return port, nil
	}
	switch u.Scheme {
	case "https":
		return 443, nil
	default:
		return 80, nil
	}
}
