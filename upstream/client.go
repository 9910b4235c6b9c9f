// Package upstream is the typed client for the verification backend, the
// source of truth for doctor records, counts and review decisions. This
// application never persists any of that data; every read is fetched fresh.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dexavision/admin-console/model"
)

// ErrNotConfigured is returned when the upstream base URL is missing.
// Absence is a request-time configuration error, never a silent default.
var ErrNotConfigured = errors.New("upstream server URL is not configured")

// ErrUnexpectedResponse marks a 2xx body that failed strict shape validation.
var ErrUnexpectedResponse = errors.New("unexpected upstream response")

// StatusError is a non-2xx upstream reply.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Client talks to the upstream verification backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds an upstream client for the given base URL (trailing slash
// stripped). An empty base URL is allowed at construction; calls fail with
// ErrNotConfigured.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// Configured reports whether a base URL is present.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// BaseURL returns the configured upstream root.
func (c *Client) BaseURL() string { return c.baseURL }

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// FetchProfile loads the caller's application profile. Validation is strict:
// the body must carry a boolean success and a data object with string
// displayName/email/role/userId; anything else is ErrUnexpectedResponse.
func (c *Client) FetchProfile(ctx context.Context, token string) (*model.Profile, error) {
	raw, err := c.getJSON(ctx, token, "/doctor/profile", nil)
	if err != nil {
		return nil, err
	}

	var fields struct {
		DisplayName    *string `json:"displayName"`
		Email          *string `json:"email"`
		Role           *string `json:"role"`
		UserID         *string `json:"userId"`
		ProfilePicture *string `json:"profilePicture"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, ErrUnexpectedResponse
	}
	if fields.DisplayName == nil || fields.Email == nil || fields.Role == nil || fields.UserID == nil {
		return nil, ErrUnexpectedResponse
	}

	profile := &model.Profile{
		UserID:      *fields.UserID,
		DisplayName: *fields.DisplayName,
		Email:       *fields.Email,
		Role:        *fields.Role,
	}
	if fields.ProfilePicture != nil {
		profile.ProfilePicture = *fields.ProfilePicture
	}
	return profile, nil
}

// ListQuery is the cursor-paginated list request. After/Before are mutually
// exclusive; the empty query fetches the first page.
type ListQuery struct {
	Status string
	Limit  int
	After  string
	Before string
}

// ListDoctors fetches one page of the verification list.
func (c *Client) ListDoctors(ctx context.Context, token string, q ListQuery) (*model.DoctorPage, error) {
	params := url.Values{}
	params.Set("status", q.Status)
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.After != "" {
		params.Set("after", q.After)
	}
	if q.Before != "" {
		params.Set("before", q.Before)
	}

	raw, err := c.getJSON(ctx, token, "/admin/doctors", params)
	if err != nil {
		return nil, err
	}

	var data struct {
		Doctors    []model.Doctor           `json:"doctors"`
		Pagination *model.PaginationCursors `json:"pagination"`
		Counts     *model.Counts            `json:"counts"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, ErrUnexpectedResponse
	}
	if data.Doctors == nil {
		data.Doctors = []model.Doctor{}
	}
	return &model.DoctorPage{
		Doctors:    data.Doctors,
		Pagination: data.Pagination,
		Counts:     data.Counts,
	}, nil
}

// GetDoctor fetches the full detail for one doctor. Duplicate documents for
// the same declared type are collapsed keeping the first seen.
func (c *Client) GetDoctor(ctx context.Context, token, userID string) (*model.DoctorDetail, error) {
	raw, err := c.getJSON(ctx, token, "/admin/doctors/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}

	var detail model.DoctorDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, ErrUnexpectedResponse
	}
	detail.DocumentURLs = dedupeDocuments(detail.DocumentURLs)
	return &detail, nil
}

func dedupeDocuments(docs []model.DocumentURL) []model.DocumentURL {
	seen := make(map[string]bool, len(docs))
	out := make([]model.DocumentURL, 0, len(docs))
	for _, d := range docs {
		if d.Type == "" || seen[d.Type] {
			continue
		}
		seen[d.Type] = true
		out = append(out, d)
	}
	return out
}

// SubmitReview relays an approve/reject decision for a doctor. The upstream
// body is returned opaquely on failure so the caller can surface it.
func (c *Client) SubmitReview(ctx context.Context, token, userID, action, message string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(map[string]string{"action": action, "message": message})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/admin/doctors/%s/review", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return nil
}

// Forward performs a raw upstream request on behalf of a relay handler: the
// caller's Authorization header is passed through untouched and the response
// is returned unread for byte-for-byte forwarding.
func (c *Client) Forward(ctx context.Context, method, path string, query url.Values, authorization string, body io.Reader) (*http.Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// getJSON performs a GET with strict envelope validation and returns the
// raw data member.
func (c *Client) getJSON(ctx context.Context, token, path string, query url.Values) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrUnexpectedResponse
	}
	if env.Success == nil || env.Data == nil {
		return nil, ErrUnexpectedResponse
	}
	if !*env.Success {
		return nil, ErrUnexpectedResponse
	}
	// data must be a JSON object
	trimmed := bytes.TrimSpace(env.Data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrUnexpectedResponse
	}
	return env.Data, nil
}
