package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const DefaultAuthTimeout = 5 * time.Second

var ErrUnauthorized = errors.New("authorization failed")

// Authorizer decides whether an incoming request may write data.
type Authorizer interface {
	Authorize(r *http.Request) error
}

type AuthorizerFunc func(r *http.Request) error

func (f AuthorizerFunc) Authorize(r *http.Request) error {
	return f(r)
}

// ValidateUser delegates the decision to the validate-user service. The
// cookies of the incoming request are forwarded; anything but a 200 answer
// is a failure.
type ValidateUser struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

func (v ValidateUser) Authorize(r *http.Request) error {
	endpoint, err := url.JoinPath(v.URL, "msapi", "validateuser")
	if err != nil {
		return fmt.Errorf("%w: invalid validate user url: %w", ErrUnauthorized, err)
	}

	timeout := v.Timeout
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	for _, cookie := range r.Cookies() {
		req.AddCookie(cookie)
	}

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w status_code=%d", ErrUnauthorized, resp.StatusCode)
	}
	return nil
}
