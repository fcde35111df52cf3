// Package api implements the HTTP client for the ContactBook backend.
//
// All methods talk JSON to the /api endpoints of the server. The client keeps
// the access and refresh tokens in memory; when a call fails with 401 it
// refreshes the access token once and retries the request.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// User mirrors the user representation returned by the server.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Confirmed bool      `json:"confirmed"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact mirrors the contact representation returned by the server.
type Contact struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Birthday  string `json:"birthday"`
	ExtraInfo string `json:"extra_info,omitempty"`
}

// ContactInput is the payload for creating or updating a contact.
// Birthday uses the YYYY-MM-DD format expected by the server.
type ContactInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Birthday  string `json:"birthday,omitempty"`
	ExtraInfo string `json:"extra_info,omitempty"`
}

// ListFilter narrows ListContacts results. Zero values mean "no filter".
type ListFilter struct {
	FirstName string
	LastName  string
	Email     string
	Skip      int
	Limit     int
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type apiError struct {
	Detail string `json:"detail"`
}

// Client is a stateful HTTP client for the ContactBook API.
// It is not safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	accessToken  string
	refreshToken string
}

// NewClient returns a Client targeting baseURL (scheme://host:port, no /api
// suffix) with the given per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LoggedIn reports whether the client currently holds an access token.
func (c *Client) LoggedIn() bool {
	return c.accessToken != ""
}

// Logout drops the stored tokens.
func (c *Client) Logout() {
	c.accessToken = ""
	c.refreshToken = ""
}

// Register creates a new account. The server sends a confirmation email;
// the account cannot log in until the address is confirmed.
func (c *Client) Register(ctx context.Context, username, email string, password []byte) (*User, error) {
	body := map[string]string{
		"username": username,
		"email":    email,
		"password": string(password),
	}

	var user User
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", body, &user, false); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a token pair and stores it on the client.
func (c *Client) Login(ctx context.Context, username string, password []byte) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", string(password))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapTransportError(err)
	}
	defer resp.Body.Close()

	var pair tokenPair
	if err := decodeResponse(resp, &pair); err != nil {
		return err
	}

	c.accessToken = pair.AccessToken
	c.refreshToken = pair.RefreshToken
	return nil
}

// Me returns the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/me", nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateContact adds a contact to the authenticated user's address book.
func (c *Client) CreateContact(ctx context.Context, in *ContactInput) (*Contact, error) {
	var contact Contact
	if err := c.doJSON(ctx, http.MethodPost, "/api/contacts", in, &contact, true); err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListContacts returns the user's contacts, optionally filtered.
func (c *Client) ListContacts(ctx context.Context, filter ListFilter) ([]Contact, error) {
	q := url.Values{}
	if filter.FirstName != "" {
		q.Set("first_name", filter.FirstName)
	}
	if filter.LastName != "" {
		q.Set("last_name", filter.LastName)
	}
	if filter.Email != "" {
		q.Set("email", filter.Email)
	}
	if filter.Skip > 0 {
		q.Set("skip", strconv.Itoa(filter.Skip))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := "/api/contacts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var contacts []Contact
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &contacts, true); err != nil {
		return nil, err
	}
	return contacts, nil
}

// GetContact returns a single contact by id.
func (c *Client) GetContact(ctx context.Context, id int64) (*Contact, error) {
	var contact Contact
	path := fmt.Sprintf("/api/contacts/%d", id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &contact, true); err != nil {
		return nil, err
	}
	return &contact, nil
}

// UpdateContact replaces the contact with the given id.
func (c *Client) UpdateContact(ctx context.Context, id int64, in *ContactInput) (*Contact, error) {
	var contact Contact
	path := fmt.Sprintf("/api/contacts/%d", id)
	if err := c.doJSON(ctx, http.MethodPatch, path, in, &contact, true); err != nil {
		return nil, err
	}
	return &contact, nil
}

// DeleteContact removes a contact by id.
func (c *Client) DeleteContact(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/contacts/%d", id), nil, nil, true)
}

// UpcomingBirthdays returns contacts whose birthday falls within the next
// seven days.
func (c *Client) UpcomingBirthdays(ctx context.Context) ([]Contact, error) {
	var contacts []Contact
	if err := c.doJSON(ctx, http.MethodGet, "/api/contacts/birthdays/next7", nil, &contacts, true); err != nil {
		return nil, err
	}
	return contacts, nil
}

// refresh exchanges the stored refresh token for a new access token.
func (c *Client) refresh(ctx context.Context) error {
	if c.refreshToken == "" {
		return ErrUnauthorized
	}

	body, err := json.Marshal(map[string]string{"refresh_token": c.refreshToken})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/refresh-token", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapTransportError(err)
	}
	defer resp.Body.Close()

	var pair tokenPair
	if err := decodeResponse(resp, &pair); err != nil {
		return err
	}

	c.accessToken = pair.AccessToken
	c.refreshToken = pair.RefreshToken
	return nil
}

// doJSON performs an API request with a JSON body and decodes a JSON response
// into out (which may be nil). When authed is true the stored access token is
// attached and an expired token triggers one refresh-and-retry cycle.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any, authed bool) error {
	err := c.doJSONOnce(ctx, method, path, body, out, authed)
	if authed && errors.Is(err, ErrUnauthorized) {
		if rErr := c.refresh(ctx); rErr != nil {
			return err
		}
		return c.doJSONOnce(ctx, method, path, body, out, authed)
	}
	return err
}

func (c *Client) doJSONOnce(ctx context.Context, method, path string, body any, out any, authed bool) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapTransportError(err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// decodeResponse maps an HTTP response to out or to an error. Error bodies
// follow the server's {"detail": "..."} shape.
func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	var ae apiError
	_ = json.NewDecoder(resp.Body).Decode(&ae)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if ae.Detail != "" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, ae.Detail)
		}
		return ErrUnauthorized
	case http.StatusNotFound:
		if ae.Detail != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, ae.Detail)
		}
		return ErrNotFound
	default:
		if ae.Detail != "" {
			return errors.New(ae.Detail)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// wrapTransportError converts connection-level failures to ErrUnavailable so
// callers can distinguish "server down" from API errors.
func (c *Client) wrapTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
