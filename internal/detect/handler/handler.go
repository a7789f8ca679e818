package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sabbirahammad/currency/internal/audit"
	"github.com/sabbirahammad/currency/internal/detect"
	"github.com/sabbirahammad/currency/internal/reference"
	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
	"github.com/sabbirahammad/currency/pkg/platform/httputil"
	"github.com/sabbirahammad/currency/pkg/requestcontext"
)

// imageFormField is the multipart field carrying the image bytes.
const imageFormField = "image"

// submitBodyLimit caps the whole multipart body. Slightly above the image
// limit so field headers and boundaries do not eat into the image budget;
// the exact image size check happens in the service.
const submitBodyLimit = detect.MaxImageBytes + 1<<20

// Service defines the interface for submission operations.
type Service interface {
	Submit(ctx context.Context, req detect.Request) (*detect.Result, error)
	Progress() float64
}

// Recorder persists qualifying results. Recording is best-effort and must
// not influence the response.
type Recorder interface {
	Record(ctx context.Context, result detect.Result)
}

// Handler wires submission endpoints to the detection service.
type Handler struct {
	service  Service
	recorder Recorder
	audit    audit.Emitter
	logger   *slog.Logger
}

// New constructs a detection handler. recorder may be nil when history is
// disabled; emitter may be nil when auditing is disabled.
func New(service Service, recorder Recorder, emitter audit.Emitter, logger *slog.Logger) *Handler {
	if emitter == nil {
		emitter = audit.NopEmitter{}
	}
	return &Handler{
		service:  service,
		recorder: recorder,
		audit:    emitter,
		logger:   logger,
	}
}

// Register mounts detection endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/detections", h.HandleSubmit)
	r.Get("/detections/progress", h.HandleProgress)
}

// HandleSubmit handles POST /detections requests. The body is a multipart
// form with a single "image" file field.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, submitBodyLimit)

	req, digest, err := h.extractImage(r)
	if err != nil {
		h.logger.WarnContext(ctx, "submission rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	submitted := audit.NewEvent(audit.ActionDetectionSubmitted, requestcontext.Now(ctx))
	submitted.RequestID = requestID
	submitted.ClientIP = requestcontext.ClientIP(ctx)
	submitted.Client = audit.ClientDescription(requestcontext.UserAgent(ctx))
	submitted.ImageSHA256 = digest
	h.audit.Emit(ctx, submitted)

	result, err := h.service.Submit(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "detection failed",
			"request_id", requestID,
			"filename", req.Filename,
			"error", err,
		)

		failed := audit.NewEvent(audit.ActionDetectionFailed, requestcontext.Now(ctx))
		failed.RequestID = requestID
		failed.ImageSHA256 = digest
		failed.Reason = string(dErrors.CodeOf(err))
		h.audit.Emit(ctx, failed)

		httputil.WriteError(w, err)
		return
	}

	reference.Enrich(result)
	if h.recorder != nil {
		h.recorder.Record(ctx, *result)
	}

	succeeded := audit.NewEvent(audit.ActionDetectionSucceeded, requestcontext.Now(ctx))
	succeeded.RequestID = requestID
	succeeded.ImageSHA256 = digest
	succeeded.CurrencyCode = result.CurrencyCode
	if !result.Success {
		succeeded.Reason = result.Reason
	}
	h.audit.Emit(ctx, succeeded)

	h.logger.InfoContext(ctx, "detection completed",
		"request_id", requestID,
		"filename", req.Filename,
		"success", result.Success,
		"currency_code", result.CurrencyCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleProgress handles GET /detections/progress requests.
func (h *Handler) HandleProgress(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ProgressResponse{Progress: h.service.Progress()})
}

// extractImage pulls the image file out of the multipart form. The MIME type
// comes from the part header, falling back to content sniffing when absent.
func (h *Handler) extractImage(r *http.Request) (detect.Request, string, error) {
	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		if isBodyTooLarge(err) {
			return detect.Request{}, "", dErrors.Newf(dErrors.CodeValidation,
				"image exceeds the maximum size of %d bytes", detect.MaxImageBytes)
		}
		return detect.Request{}, "", dErrors.Wrap(err, dErrors.CodeBadRequest,
			"multipart form must include an "+imageFormField+" file field")
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			return detect.Request{}, "", dErrors.Newf(dErrors.CodeValidation,
				"image exceeds the maximum size of %d bytes", detect.MaxImageBytes)
		}
		return detect.Request{}, "", dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read image body")
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(body)
	}

	req := detect.Request{
		Filename: header.Filename,
		MIMEType: mimeType,
		Body:     body,
	}
	return req, audit.ImageDigest(body), nil
}

func isBodyTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes)
}
