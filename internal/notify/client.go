// Package notify delivers donation requests to the email function that
// fans them out to donors.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hackgods/blood-donation-scheduling/internal/apperr"
)

// Request is the body the email function accepts.
type Request struct {
	Emails  []string `json:"emails"`
	Subject string   `json:"subject"`
	Message string   `json:"message"`
}

// StatusError reports a non-2xx answer from the email function.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("notify endpoint returned %d: %s", e.Code, e.Body)
}

// Client posts requests synchronously.
type Client struct {
	url   string
	token string
	http  *http.Client
}

func NewClient(url, token string, timeout time.Duration) *Client {
	return &Client{
		url:   url,
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Send(ctx context.Context, emails []string, subject, message string) error {
	return c.Deliver(ctx, Request{Emails: emails, Subject: subject, Message: message})
}

// Deliver posts req and fails with a dependency error on transport errors
// and non-2xx answers.
func (c *Client) Deliver(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode notify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return apperr.Dependency("send donation request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Dependency("send donation request", &StatusError{Code: resp.StatusCode, Body: string(snippet)})
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
