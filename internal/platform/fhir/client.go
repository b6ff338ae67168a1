package fhir

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/rs/zerolog"
	zfhir "github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

const defaultClientTimeout = 30 * time.Second

// ClientConfig configures the transport client.
type ClientConfig struct {
	BaseURL string
	// Headers are sent with every request and override the default
	// Accept and Content-Type headers when they name the same key.
	Headers map[string]string
	Timeout time.Duration
}

// Client performs CRUD against an external FHIR endpoint. Every failure is
// returned as an *Error.
type Client struct {
	fhir    fhirclient.Client
	headers http.Header
	logger  zerolog.Logger
}

// NewClient creates a Client for the given configuration.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("invalid FHIR base URL %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return newClient(base, &http.Client{Timeout: timeout}, cfg.Headers, logger), nil
}

func newClient(base *url.URL, doer fhirclient.HttpRequestDoer, extra map[string]string, logger zerolog.Logger) *Client {
	headers := http.Header{}
	headers.Set("Accept", FHIRMediaType)
	headers.Set("Content-Type", FHIRMediaType)
	for k, v := range extra {
		headers.Set(k, v)
	}
	return &Client{
		fhir: fhirclient.New(base, doer, &fhirclient.Config{
			UsePostSearch: false,
		}),
		headers: headers,
		logger:  logger.With().Str("component", "fhir-client").Logger(),
	}
}

// applyHeaders replaces whatever the underlying client set for our header keys.
func (c *Client) applyHeaders(_ fhirclient.Client, r *http.Request) {
	for k, vs := range c.headers {
		r.Header[k] = append([]string(nil), vs...)
	}
}

func (c *Client) call(op, target string, fn func(opts ...fhirclient.Option) error) error {
	var status int
	err := fn(fhirclient.PreRequestOption(c.applyHeaders), fhirclient.ResponseStatusCode(&status))
	if err == nil {
		return nil
	}
	e := classify(op, target, status, err)
	c.logger.Debug().Err(err).Str("op", op).Str("target", target).Int("status", e.StatusCode).Msg("fhir request failed")
	return e
}

// GetResource reads resourceType/id into target.
func (c *Client) GetResource(ctx context.Context, resourceType, id string, target interface{}) error {
	if resourceType == "" || id == "" {
		return NewValidationError("resource type and id are required", nil)
	}
	path := resourceType + "/" + id
	c.logger.Debug().Str("resource_type", resourceType).Str("id", id).Msg("get resource")
	return c.call("read", path, func(opts ...fhirclient.Option) error {
		return c.fhir.ReadWithContext(ctx, path, target, opts...)
	})
}

// SearchResources runs a type-level search with params as query parameters.
func (c *Client) SearchResources(ctx context.Context, resourceType string, params map[string]string) (*Bundle, error) {
	if resourceType == "" {
		return nil, NewValidationError("resource type is required", nil)
	}
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	c.logger.Debug().Str("resource_type", resourceType).Interface("params", params).Msg("search resources")
	var bundle Bundle
	err := c.call("search", resourceType, func(opts ...fhirclient.Option) error {
		return c.fhir.SearchWithContext(ctx, resourceType, query, &bundle, opts...)
	})
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

// CreateResource posts resource to its type endpoint and decodes the stored
// resource into result.
func (c *Client) CreateResource(ctx context.Context, resource, result interface{}) error {
	desc, err := DescribeResource(resource)
	if err != nil {
		return NewValidationError(err.Error(), nil)
	}
	c.logger.Debug().Str("resource_type", desc.ResourceType).Msg("create resource")
	return c.call("create", desc.ResourceType, func(opts ...fhirclient.Option) error {
		return c.fhir.CreateWithContext(ctx, resource, result, opts...)
	})
}

// UpdateResource puts resource at <type>/<id>. The resource must carry an id.
func (c *Client) UpdateResource(ctx context.Context, resource, result interface{}) error {
	desc, err := DescribeResource(resource)
	if err != nil {
		return NewValidationError(err.Error(), nil)
	}
	if desc.ID == "" {
		return NewValidationError(fmt.Sprintf("%s must have an id to be updated", desc.ResourceType), nil)
	}
	path := desc.ResourceType + "/" + desc.ID
	c.logger.Debug().Str("resource_type", desc.ResourceType).Str("id", desc.ID).Msg("update resource")
	return c.call("update", path, func(opts ...fhirclient.Option) error {
		return c.fhir.UpdateWithContext(ctx, path, resource, result, opts...)
	})
}

// DeleteResource deletes resourceType/id.
func (c *Client) DeleteResource(ctx context.Context, resourceType, id string) error {
	if resourceType == "" || id == "" {
		return NewValidationError("resource type and id are required", nil)
	}
	path := resourceType + "/" + id
	c.logger.Debug().Str("resource_type", resourceType).Str("id", id).Msg("delete resource")
	return c.call("delete", path, func(opts ...fhirclient.Option) error {
		return c.fhir.DeleteWithContext(ctx, path, opts...)
	})
}

// classify maps a failed exchange onto the taxonomy. A zero status means no
// response was received.
func classify(op, target string, status int, err error) *Error {
	var detail interface{}
	var ooErr fhirclient.OperationOutcomeError
	if errors.As(err, &ooErr) {
		detail = convertOutcome(ooErr.OperationOutcome)
		if ooErr.HttpStatusCode != 0 {
			status = ooErr.HttpStatusCode
		}
	}
	msg := fmt.Sprintf("fhir %s %s failed", op, target)

	var e *Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e = Wrap(err, http.StatusGatewayTimeout, msg)
	case status == 0:
		e = Wrap(err, http.StatusBadGateway, msg)
	case status >= 200 && status < 300:
		// 2xx with an error outcome or an undecodable body
		e = Wrap(err, http.StatusBadGateway, msg)
	default:
		e = FromStatus(status, msg, nil)
		e.Err = err
	}
	if detail != nil {
		e.Detail = detail
	}
	return e
}

func convertOutcome(oo zfhir.OperationOutcome) *OperationOutcome {
	out := &OperationOutcome{ResourceType: "OperationOutcome"}
	for _, issue := range oo.Issue {
		item := OperationOutcomeIssue{
			Severity:   issue.Severity.Code(),
			Code:       issue.Code.Code(),
			Expression: issue.Expression,
		}
		if issue.Diagnostics != nil {
			item.Diagnostics = *issue.Diagnostics
		}
		out.Issue = append(out.Issue, item)
	}
	return out
}
