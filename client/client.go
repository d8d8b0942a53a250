// Package client is a typed HTTP client of the Investiga API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

const defaultTimeout = 30 * time.Second

// Problem is the error returned by every call of the Client.
type Problem struct {
	Kind    core.ErrorKind
	Status  int
	Message string
	Fields  map[string]string
}

func (p *Problem) Error() string {
	if p.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", p.Kind, p.Status, p.Message)
	}
	return fmt.Sprintf("%s: %s", p.Kind, p.Message)
}

// AsProblem converts any error to a Problem, errors that are not one are unknown problems.
func AsProblem(err error) *Problem {
	if err == nil {
		return nil
	}
	var p *Problem
	if errors.As(err, &p) {
		return p
	}
	return &Problem{Kind: core.KindUnknown, Message: err.Error()}
}

// Result holds either the value of a call or its Problem.
type Result[T any] struct {
	Value T
	Err   *Problem
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

// ResultOf builds a Result from the return values of a call.
func ResultOf[T any](v T, err error) Result[T] {
	if err != nil {
		var zero T
		return Result[T]{Value: zero, Err: AsProblem(err)}
	}
	return Result[T]{Value: v}
}

type Client struct {
	baseURL string
	http    *http.Client
	token   func() string
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client, its Timeout is the only one applied to calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the supplier of the bearer token sent with every request.
func WithToken(token func() string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		token:   func() string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Error  string            `json:"error"`
	Kind   core.ErrorKind    `json:"kind"`
	Fields map[string]string `json:"fields"`
}

func kindOfStatus(code int) core.ErrorKind {
	switch {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return core.KindBadData
	case code == http.StatusUnauthorized:
		return core.KindUnauthorized
	case code == http.StatusForbidden:
		return core.KindForbidden
	case code == http.StatusNotFound:
		return core.KindNotFound
	case code == http.StatusConflict:
		return core.KindConflict
	case code == http.StatusGatewayTimeout, code == http.StatusRequestTimeout:
		return core.KindTimeout
	case code >= 500:
		return core.KindServer
	}
	return core.KindUnknown
}

func problemFromResponse(resp *http.Response) *Problem {
	p := &Problem{Kind: kindOfStatus(resp.StatusCode), Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			p.Message = body.Error
		}
		if body.Kind != "" && p.Kind == core.KindUnknown {
			p.Kind = body.Kind
		}
		p.Fields = body.Fields
	}
	return p
}

func problemFromTransport(err error) *Problem {
	p := &Problem{Kind: core.KindUnknown, Message: err.Error()}

	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		p.Kind = core.KindTimeout
	case errors.As(err, &opErr) && opErr.Op == "dial":
		p.Kind = core.KindCannotConnect
	}
	return p
}

// do sends a request to path and decodes a JSON response into out, when given.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Problem{Kind: core.KindUnknown, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return problemFromTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return problemFromResponse(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Problem{Kind: core.KindUnknown, Status: resp.StatusCode, Message: "decoding response: " + err.Error()}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	if in == nil {
		return c.do(ctx, method, path, "", nil, out)
	}
	buf, err := json.Marshal(in)
	if err != nil {
		return &Problem{Kind: core.KindBadData, Message: err.Error()}
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(buf), out)
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

func (c *Client) Patch(ctx context.Context, path string, in, out interface{}) error {
	return c.doJSON(ctx, http.MethodPatch, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// Page is one page of a list of T.
type Page[T any] struct {
	Data  []T `json:"data"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

// Search posts filter to the search endpoint of a collection, e.g. "/v1/theses".
func Search[T any](ctx context.Context, c *Client, collection string, filter interface{}) (Page[T], error) {
	var page Page[T]
	err := c.Post(ctx, collection+"/search", filter, &page)
	return page, err
}

// RoleByEmail returns the role ID of the user with the given email, nil when they have none.
func (c *Client) RoleByEmail(ctx context.Context, email string) (*int, error) {
	var resp struct {
		RoleID *int `json:"roleId"`
	}
	if err := c.Get(ctx, "/v1/users/role", url.Values{"email": {email}}, &resp); err != nil {
		return nil, err
	}
	return resp.RoleID, nil
}
