package cafeteria

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
)

// MealService is the slice of the backend the plate pipeline depends on.
// It is implemented by *Client and can be faked in tests.
type MealService interface {
	FetchCurrentMeal(ctx context.Context) (*MealSnapshot, error)
	InitializeMeal(ctx context.Context, plateIdentifier string) (*InitializeResponse, error)
}

// Ensure Client implements MealService at compile time.
var _ MealService = (*Client)(nil)

// Client talks to the Smart Eating REST API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	session   *Session
}

const (
	defaultAPIURL    = "http://127.0.0.1:8000"
	defaultUserAgent = "tray/0.1"
	defaultTimeout   = 5 * time.Second
	maxErrorBody     = 64 * 1024
	// MaxImageSize caps a downloaded food photo.
	MaxImageSize = 8 << 20
)

// ErrImageTooLarge is wrapped by FetchImage when a photo exceeds MaxImageSize.
var ErrImageTooLarge = errors.New("image exceeds size limit")

// NewClient builds a Client for apiURL. session may be nil for anonymous
// calls; timeout <= 0 uses the default.
func NewClient(apiURL string, session *Session, timeout time.Duration) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if session == nil {
		session = NewSession(Credentials{}, nil)
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
		session:   session,
	}, nil
}

// BaseURL returns a copy of the API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Session returns the request context the client applies to every call.
func (c *Client) Session() *Session {
	return c.session
}

// FetchCurrentMeal retrieves the meal bound to the user's active plate.
// A 404 (IsNotFound) means no meal is active.
func (c *Client) FetchCurrentMeal(ctx context.Context) (*MealSnapshot, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload MealSnapshot
	if err := c.do(ctx, http.MethodGet, &url.URL{Path: "/auth/meals/current"}, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// InitializeMeal binds the scanned plate to a new meal.
func (c *Client) InitializeMeal(ctx context.Context, plateIdentifier string) (*InitializeResponse, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	plateIdentifier = strings.TrimSpace(plateIdentifier)
	if plateIdentifier == "" {
		return nil, fmt.Errorf("plate identifier required")
	}
	var payload InitializeResponse
	body := InitializeRequest{PlateIdentifier: plateIdentifier}
	if err := c.do(ctx, http.MethodPost, &url.URL{Path: "/auth/meals/initialize"}, body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchFoods retrieves one page of the public food catalog.
func (c *Client) FetchFoods(ctx context.Context, page, size int) (Page[Food], error) {
	var payload Page[Food]
	if err := c.do(ctx, http.MethodGet, pagedURL("/foods", page, size), nil, &payload); err != nil {
		return Page[Food]{}, err
	}
	return payload, nil
}

// FetchMenu retrieves the foods on today's menu.
func (c *Client) FetchMenu(ctx context.Context) (Page[Food], error) {
	var payload Page[Food]
	if err := c.do(ctx, http.MethodGet, &url.URL{Path: "/auth/foods/menu"}, nil, &payload); err != nil {
		return Page[Food]{}, err
	}
	return payload, nil
}

// FetchMealHistory retrieves one page of the user's past meals.
func (c *Client) FetchMealHistory(ctx context.Context, page, size int) (Page[MealSnapshot], error) {
	var payload Page[MealSnapshot]
	if err := c.do(ctx, http.MethodGet, pagedURL("/auth/meals", page, size), nil, &payload); err != nil {
		return Page[MealSnapshot]{}, err
	}
	return payload, nil
}

// FetchImage downloads src, which may be absolute or relative to the API root.
func (c *Client) FetchImage(ctx context.Context, src string) ([]byte, error) {
	target, err := c.resolve(src)
	if err != nil {
		return nil, err
	}
	op := http.MethodGet + " " + target.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, &Error{Op: op, Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, transportError(op, err)
	}
	if len(data) > MaxImageSize {
		return nil, &Error{Op: op, Kind: KindDecode, Err: ErrImageTooLarge}
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	err := c.doOnce(ctx, method, rel, body, dest)
	if KindOf(err) != KindUnauthorized || !c.session.CanRefresh() {
		return err
	}
	if _, refreshErr := c.session.Refresh(ctx); refreshErr != nil {
		return err
	}
	return c.doOnce(ctx, method, rel, body, dest)
}

func (c *Client) doOnce(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	op := method + " " + rel.Path
	reqURL := *c.baseURL
	reqURL.Path = c.baseURL.Path + rel.Path
	reqURL.RawQuery = rel.RawQuery

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.session.apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return &Error{
			Op:      op,
			Kind:    kindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: readMessage(resp.Body),
		}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if ctx.Err() != nil {
			return transportError(op, ctx.Err())
		}
		return &Error{Op: op, Kind: KindDecode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) resolve(src string) (*url.URL, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return nil, fmt.Errorf("image url is empty")
	}
	ref, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse image url %q: %w", src, err)
	}
	return c.baseURL.ResolveReference(ref), nil
}

func transportError(op string, err error) error {
	kind := KindNetwork
	if errors.Is(err, context.Canceled) {
		kind = KindCancelled
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

func readMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}

func pagedURL(path string, page, size int) *url.URL {
	values := url.Values{}
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		values.Set("size", strconv.Itoa(size))
	}
	return &url.URL{Path: path, RawQuery: values.Encode()}
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = defaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
