package patientapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"patientboard/internal/config"
	"patientboard/internal/logging"
	"patientboard/internal/services"
)

const (
	userAgent         = "patientboard/1.0"
	defaultRetryDelay = 500 * time.Millisecond
	maxErrorBody      = 512
	maxResponseBody   = 8 << 20
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Person is a named party on a record.
type Person struct {
	Name      string `json:"name"`
	Birthdate string `json:"birthdate"`
}

// Record is one appointment request returned by the lookup endpoint.
type Record struct {
	ID      int64  `json:"id"`
	Date    string `json:"date"`
	Patient Person `json:"patient_datum"`
	Dentist Person `json:"dentist_datum"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s returned %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client calls the patient API.
type Client struct {
	baseURL    string
	auth       string
	idKey      string
	filesField string
	lookupMode string
	attempts   uint
	delay      time.Duration
	http       HTTPDoer
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithRetryDelay sets the base backoff between attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.delay = delay
	}
}

// New builds a client from configuration. Missing API settings are a
// configuration error.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := cfg.RequireAPI(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "configure", "", err)
	}
	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.API.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.API.BaseURL, "/"),
		auth:       cfg.API.Auth,
		idKey:      cfg.API.PatientIDKey,
		filesField: cfg.API.FilesField,
		lookupMode: cfg.API.LookupMode,
		attempts:   uint(attempts),
		delay:      defaultRetryDelay,
		http:       &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "patientapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup returns the first record matching the patient ID.
func (c *Client) Lookup(ctx context.Context, patientID int64) (*Record, error) {
	record, err := retry.DoWithData(
		func() (*Record, error) { return c.lookupOnce(ctx, patientID) },
		c.retryOptions(ctx, "lookup", patientID)...,
	)
	if err != nil {
		return nil, classify("lookup", fmt.Sprintf("patient %d", patientID), err)
	}
	return record, nil
}

func (c *Client) lookupOnce(ctx context.Context, patientID int64) (*Record, error) {
	values := url.Values{c.idKey: {strconv.FormatInt(patientID, 10)}}
	var (
		target = c.baseURL
		body   io.Reader
	)
	if c.lookupMode == config.LookupModeQuery {
		target += "?" + values.Encode()
	} else {
		body = strings.NewReader(values.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, body)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("build lookup request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var records []Record
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&records); err != nil {
		return nil, retry.Unrecoverable(services.Wrap(services.ErrExternalTool, "api", "lookup", "decode response", err))
	}
	if len(records) == 0 {
		return nil, retry.Unrecoverable(services.Wrap(services.ErrNotFound, "api", "lookup",
			fmt.Sprintf("no record for patient %d", patientID), nil))
	}
	return &records[0], nil
}

// UploadTemplate PUTs a template image to the record's URL as a single
// multipart file part.
func (c *Client) UploadTemplate(ctx context.Context, recordID int64, filename string, data []byte) error {
	_, err := retry.DoWithData(
		func() (struct{}, error) { return struct{}{}, c.uploadOnce(ctx, recordID, filename, data) },
		c.retryOptions(ctx, "upload", recordID)...,
	)
	if err != nil {
		return classify("upload", fmt.Sprintf("record %d", recordID), err)
	}
	return nil
}

func (c *Client) uploadOnce(ctx context.Context, recordID int64, filename string, data []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, c.filesField, filename))
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create multipart part: %w", err))
	}
	if _, err := part.Write(data); err != nil {
		return retry.Unrecoverable(fmt.Errorf("write multipart part: %w", err))
	}
	if err := writer.Close(); err != nil {
		return retry.Unrecoverable(fmt.Errorf("close multipart body: %w", err))
	}

	target := c.baseURL + "/" + strconv.FormatInt(recordID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, &buf)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("build upload request: %w", err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	return resp.Body.Close()
}

// Ping issues one GET against the base URL. Any response below 500 proves
// the service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return nil
		}
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return resp.Body.Close()
}

// do sends the request with common headers and converts non-2xx responses
// into StatusError. Permanent client errors are marked unrecoverable.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	statusErr := &StatusError{
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
	if statusErr.Temporary() {
		return nil, statusErr
	}
	return nil, retry.Unrecoverable(statusErr)
}

func (c *Client) retryOptions(ctx context.Context, op string, id int64) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(10 * c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logging.WarnWithContext(c.logger, "patient api request failed; retrying", "api_retry",
				logging.String("op", op),
				logging.Int64("id", id),
				logging.Int("attempt", int(attempt)+1),
				logging.Error(err),
				logging.String(logging.FieldImpact, "request repeated after backoff"),
			)
		}),
	}
}

// classify tags an API error with the services marker the batch runner uses
// to pick a ledger status.
func classify(op, subject string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrExternalTool):
		return err
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusNotFound:
			return services.Wrap(services.ErrNotFound, "api", op, subject, err)
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "api", op, subject+": check api.auth", err)
		case !statusErr.Temporary():
			return services.Wrap(services.ErrValidation, "api", op, subject, err)
		}
	}
	return services.Wrap(services.ErrTransient, "api", op, subject, err)
}
