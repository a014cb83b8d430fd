package merchant

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/taimast/multi-merchant/internal/domain"
)

const requestTimeout = 30 * time.Second

// session is the shared network lifecycle composed into every HTTP adapter:
// the client is built lazily on first use, reused across calls, and released
// by Close. http.Client is safe for concurrent use, so no per-request lock is
// needed.
type session struct {
	merchant domain.MerchantID
	headers  func() http.Header

	mu     sync.Mutex
	client *http.Client
}

func newSession(merchant domain.MerchantID, headers func() http.Header) *session {
	return &session{merchant: merchant, headers: headers}
}

func (s *session) httpClient() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		// Redirects are never followed: provider APIs answer directly, and
		// the one endpoint that redirects (quickpay) wants the target itself.
		s.client = &http.Client{
			Timeout: requestTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return s.client
}

// close releases idle connections held by the lazily-created client.
func (s *session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.CloseIdleConnections()
		s.client = nil
	}
	return nil
}

// requestJSON sends a JSON request and returns the status code and raw body.
// Network and read failures come back as TransportError; interpreting the
// status code and body is the adapter's job.
func (s *session) requestJSON(ctx context.Context, method, rawURL string, body []byte, extra http.Header) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, nil, &domain.TransportError{Merchant: s.merchant, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, extra)
}

// requestForm sends a form-encoded request, for providers that do not speak
// JSON on the way in.
func (s *session) requestForm(ctx context.Context, method, rawURL string, form url.Values, extra http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, &domain.TransportError{Merchant: s.merchant, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, extra)
}

// postFormLocation posts a form and returns the redirect Location (resolved
// against the request URL) along with the response body.
func (s *session) postFormLocation(ctx context.Context, rawURL string, form url.Values) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", nil, &domain.TransportError{Merchant: s.merchant, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.headers != nil {
		for key, values := range s.headers() {
			for _, v := range values {
				req.Header.Set(key, v)
			}
		}
	}

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return "", nil, &domain.TransportError{Merchant: s.merchant, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, &domain.TransportError{Merchant: s.merchant, Err: err}
	}

	location := resp.Header.Get("Location")
	if location != "" {
		if u, err := req.URL.Parse(location); err == nil {
			location = u.String()
		}
	}
	return location, raw, nil
}

func (s *session) do(req *http.Request, extra http.Header) (int, []byte, error) {
	if s.headers != nil {
		for key, values := range s.headers() {
			for _, v := range values {
				req.Header.Set(key, v)
			}
		}
	}
	for key, values := range extra {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return 0, nil, &domain.TransportError{Merchant: s.merchant, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &domain.TransportError{Merchant: s.merchant, Err: err}
	}
	return resp.StatusCode, raw, nil
}
