package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pstrings "github.com/sabbirahammad/currency/pkg/platform/strings"
)

// detectPath is the recognition endpoint relative to the service base URL.
const detectPath = "/api/detect-currency"

// maxErrorBodyBytes caps how much of an upstream error body is read.
// Misbehaving services must not balloon memory on the client side.
const maxErrorBodyBytes = 1 << 20

// Detector issues a single recognition attempt. Implementations must honor
// context cancellation and must not retry internally; the submission service
// owns the retry policy.
type Detector interface {
	Detect(ctx context.Context, req Request) (*Result, error)
}

// ServerError is a non-2xx response from the recognition service, carrying
// the upstream status and the decoded error body.
type ServerError struct {
	Status  int
	Message string
	Details string
}

func (e *ServerError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("recognition service returned %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("recognition service returned %d: %s", e.Status, e.Message)
}

// HTTPClient talks to the recognition service over multipart HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) {
		h.httpClient = c
	}
}

// WithClientLogger sets the logger for request-level diagnostics.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(h *HTTPClient) {
		h.logger = l
	}
}

// NewHTTPClient creates a recognition client for the given service base URL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		// No client-level timeout: each attempt runs under its own context
		// deadline set by the submission service.
		httpClient: &http.Client{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("currency/detect"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detect posts the image as multipart/form-data and decodes the verdict.
// Non-2xx responses come back as *ServerError; transport failures come back
// as the underlying error for the classifier to interpret.
func (c *HTTPClient) Detect(ctx context.Context, req Request) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "detect.attempt",
		trace.WithAttributes(
			attribute.Int("image.size_bytes", len(req.Body)),
			attribute.String("image.mime_type", req.MIMEType),
		))
	defer span.End()

	body, contentType, err := encodeMultipart(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("encode multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+detectPath, body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serverErr := decodeServerError(resp)
		span.SetStatus(codes.Error, "upstream error "+strconv.Itoa(resp.StatusCode))
		c.logger.DebugContext(ctx, "recognition request rejected",
			"status", resp.StatusCode,
			"message", serverErr.Message,
		)
		return nil, serverErr
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode detection result: %w", err)
	}
	// Recognition backends repeat and pad validation points across model
	// revisions; normalize before anything downstream stores or renders them.
	result.ValidationPoints = pstrings.DedupeAndTrim(result.ValidationPoints)

	return &result, nil
}

// encodeMultipart builds the form body the service expects: a single binary
// part named "image" carrying the file's own content type.
func encodeMultipart(req Request) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, req.Filename))
	header.Set("Content-Type", req.MIMEType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Body); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

// decodeServerError reads the error envelope from a non-2xx response. A body
// that fails to decode still yields a usable ServerError with the status.
func decodeServerError(resp *http.Response) *ServerError {
	serverErr := &ServerError{Status: resp.StatusCode, Message: resp.Status}

	var envelope struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return serverErr
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return serverErr
	}
	if envelope.Error != "" {
		serverErr.Message = envelope.Error
	}
	serverErr.Details = envelope.Details
	return serverErr
}
