package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cms-admin-service/internal/logger"
)

const listPageSize = 50

// Client talks to the provider's admin API with the privileged
// service key. Construct it once during wiring and hand it only to
// admin-gated code.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type apiUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	ConfirmedAt  *time.Time     `json:"confirmed_at"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (u apiUser) identity() *Identity {
	return &Identity{
		ID:        u.ID,
		Email:     u.Email,
		Confirmed: u.ConfirmedAt != nil,
		Metadata:  u.UserMetadata,
		CreatedAt: u.CreatedAt,
	}
}

// FindByEmail pages through the provider listing and matches the
// email case-insensitively. The provider has no exact-lookup
// endpoint, so this is a scan by contract.
func (c *Client) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	for page := 1; ; page++ {
		var body struct {
			Users []apiUser `json:"users"`
		}
		path := fmt.Sprintf("/admin/users?page=%d&per_page=%d", page, listPageSize)
		if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
			return nil, err
		}

		for _, u := range body.Users {
			if strings.EqualFold(u.Email, email) {
				return u.identity(), nil
			}
		}

		if len(body.Users) < listPageSize {
			return nil, nil
		}
	}
}

func (c *Client) Create(ctx context.Context, p CreateParams) (*Identity, error) {
	req := map[string]any{
		"email":         p.Email,
		"email_confirm": true,
	}
	if p.Password != "" {
		req["password"] = p.Password
	}
	if len(p.Metadata) > 0 {
		req["user_metadata"] = p.Metadata
	}

	var u apiUser
	if err := c.do(ctx, http.MethodPost, "/admin/users", req, &u); err != nil {
		return nil, classifyCreateError(err)
	}
	return u.identity(), nil
}

func (c *Client) UpdatePassword(ctx context.Context, id, newPassword string) error {
	req := map[string]any{"password": newPassword}
	return c.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(id), req, nil)
}

func (c *Client) GenerateLink(ctx context.Context, email, redirectTo string) (string, error) {
	req := map[string]any{
		"type":        "magiclink",
		"email":       email,
		"redirect_to": redirectTo,
	}

	var body struct {
		ActionLink string `json:"action_link"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/generate_link", req, &body); err != nil {
		return "", err
	}
	if body.ActionLink == "" {
		return "", &ProviderError{Message: "generate_link returned no action_link"}
	}
	return body.ActionLink, nil
}

func (c *Client) SendInvite(ctx context.Context, email, redirectTo string) error {
	path := "/invite?redirect_to=" + url.QueryEscape(redirectTo)
	return c.do(ctx, http.MethodPost, path, map[string]any{"email": email}, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, nil)
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("identity: encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeProviderError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("identity: decode response: %w", err)
		}
	}
	return nil
}

func decodeProviderError(resp *http.Response) error {
	var body struct {
		ErrorCode string `json:"error_code"`
		Code      string `json:"code"`
		Msg       string `json:"msg"`
		Message   string `json:"message"`
		ErrorDesc string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logger.Warn("provider error body not decodable", map[string]any{
			"status": resp.StatusCode,
		})
	}

	code := body.ErrorCode
	if code == "" {
		code = body.Code
	}
	msg := body.Msg
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		msg = body.ErrorDesc
	}
	if msg == "" {
		msg = resp.Status
	}

	return &ProviderError{
		Status:  resp.StatusCode,
		Code:    code,
		Message: msg,
	}
}
