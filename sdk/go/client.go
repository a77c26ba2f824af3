package commlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Commline HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Commission represents the API commission model (partial).
type Commission struct {
	Identity    string   `json:"identity"`
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Category    string   `json:"category"`
	Status      string   `json:"status"`
	Date        string   `json:"date"`
	AgreedPrice *float64 `json:"agreedPrice,omitempty"`
	Liked       bool     `json:"liked"`
	Likes       int      `json:"likes"`
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	Identity string `json:"identity"`
	Liked    bool   `json:"liked"`
	Likes    int    `json:"likes"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Commissions lists visible commissions.
func (c *Client) Commissions(ctx context.Context) ([]Commission, error) {
	var resp []Commission
	err := c.do(ctx, http.MethodGet, "commissions", nil, &resp)
	return resp, err
}

// Commission fetches one record by identity.
func (c *Client) Commission(ctx context.Context, identity string) (Commission, error) {
	var resp Commission
	err := c.do(ctx, http.MethodGet, "commissions/"+url.PathEscape(identity), nil, &resp)
	return resp, err
}

// Submit posts a commission request.
func (c *Client) Submit(ctx context.Context, title, description, contactEmail, date string) (Commission, error) {
	body := map[string]any{
		"title":         title,
		"description":   description,
		"contact_email": contactEmail,
		"date":          date,
	}
	var resp Commission
	err := c.do(ctx, http.MethodPost, "commissions", body, &resp)
	return resp, err
}

// Complete finishes a commission with proof photos.
func (c *Client) Complete(ctx context.Context, identity string, proofPhotos []string, price float64) (Commission, error) {
	body := map[string]any{
		"proof_photos": proofPhotos,
		"price":        price,
	}
	var resp Commission
	err := c.do(ctx, http.MethodPost, "commissions/"+url.PathEscape(identity)+"/complete", body, &resp)
	return resp, err
}

// Cancel cancels a commission with the typed confirmation phrase.
func (c *Client) Cancel(ctx context.Context, identity, reason, confirmation string) (Commission, error) {
	body := map[string]any{
		"reason":       reason,
		"confirmation": confirmation,
	}
	var resp Commission
	err := c.do(ctx, http.MethodPost, "commissions/"+url.PathEscape(identity)+"/cancel", body, &resp)
	return resp, err
}

// ToggleLike flips the like state for an identity.
func (c *Client) ToggleLike(ctx context.Context, identity string) (LikeResult, error) {
	var resp LikeResult
	err := c.do(ctx, http.MethodPost, "commissions/"+url.PathEscape(identity)+"/like", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	base := strings.TrimRight(c.BaseURL, "/")
	full := base + "/v0/" + endpoint

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{StatusCode: res.StatusCode, Body: string(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
