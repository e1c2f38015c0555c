// Package handler wires the verification endpoints to the channel services.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"montoit/internal/ratelimit"
	"montoit/internal/verification"
	"montoit/internal/verification/document"
	"montoit/internal/verification/face"
	"montoit/internal/verification/kyc"
	"montoit/internal/verification/status"
	id "montoit/pkg/domain"
	dErrors "montoit/pkg/domain-errors"
	"montoit/pkg/platform/audit"
	"montoit/pkg/platform/httputil"
	"montoit/pkg/requestcontext"
)

// KYCService defines the KYC operations the handler depends on.
type KYCService interface {
	InitializeVerification(ctx context.Context, userID id.UserID, t verification.Type, idType verification.IDType, country string) (*verification.Job, error)
	GetVerificationStatus(ctx context.Context, userID id.UserID) (*verification.Job, error)
	CancelVerification(ctx context.Context, userID id.UserID) error
	ProcessCallback(ctx context.Context, payload kyc.CallbackPayload) error
}

// FaceService defines the selfie flow the handler depends on.
type FaceService interface {
	VerifyFace(ctx context.Context, userID id.UserID, image []byte, referenceImageURL string) *face.Outcome
}

// DocumentService defines the document flow the handler depends on.
type DocumentService interface {
	VerifyDocument(ctx context.Context, userID id.UserID, docType verification.DocumentType, blob []byte) *document.Outcome
}

// StatusService defines the unified status read the handler depends on.
type StatusService interface {
	GetVerificationStatus(ctx context.Context, userID id.UserID) (*status.View, error)
}

// Handler wires verification endpoints to the channel services.
type Handler struct {
	kyc       KYCService
	face      FaceService
	document  DocumentService
	status    StatusService
	limiter   ratelimit.Limiter
	audit     *audit.Publisher
	vendorKey string
	logger    *slog.Logger
}

// New constructs a verification handler with its dependencies. vendorKey is
// the partner API key used to authenticate vendor callbacks. trail may be
// nil, which disables auditing.
func New(
	kycSvc KYCService,
	faceSvc FaceService,
	docSvc DocumentService,
	statusSvc StatusService,
	limiter ratelimit.Limiter,
	trail *audit.Publisher,
	vendorKey string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		kyc:       kycSvc,
		face:      faceSvc,
		document:  docSvc,
		status:    statusSvc,
		limiter:   limiter,
		audit:     trail,
		vendorKey: vendorKey,
		logger:    logger,
	}
}

// record writes an audit event, logging failures without surfacing them.
func (h *Handler) record(ctx context.Context, event audit.Event) {
	if h.audit == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := h.audit.Emit(ctx, event); err != nil {
		h.logger.WarnContext(ctx, "audit emit failed",
			"action", string(event.Action),
			"error", err,
		)
	}
}

// Register mounts the authenticated verification endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verification/kyc", h.HandleStartKYC)
	r.Get("/verification/kyc", h.HandleKYCStatus)
	r.Post("/verification/kyc/cancel", h.HandleCancelKYC)
	r.Post("/verification/face", h.HandleFace)
	r.Post("/verification/document", h.HandleDocument)
	r.Get("/verification/status", h.HandleStatus)
}

// RegisterPublic mounts the endpoints reached by the vendor, not by users.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/verification/kyc/callback", h.HandleCallback)
}

// HandleStartKYC handles POST /verification/kyc.
func (h *Handler) HandleStartKYC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := h.limiter.Allow(ctx, userID, "kyc"); err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[StartKYCRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	job, err := h.kyc.InitializeVerification(ctx, userID, req.ParsedType(), req.ParsedIDType(), req.Country)
	if err != nil {
		h.logger.ErrorContext(ctx, "kyc initialization failed",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, fromFlowError(err))
		return
	}

	h.logger.InfoContext(ctx, "kyc verification started",
		"request_id", requestID,
		"user_id", userID.String(),
		"job_id", job.ID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	h.record(ctx, audit.Event{
		UserID:  userID,
		Action:  audit.ActionKYCStarted,
		Channel: "kyc",
		Status:  job.Status.String(),
		Detail:  "job " + job.ID.String(),
	})
	httputil.WriteJSON(w, http.StatusOK, fromJob(job))
}

// HandleKYCStatus handles GET /verification/kyc.
func (h *Handler) HandleKYCStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	job, err := h.kyc.GetVerificationStatus(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "kyc status lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, fromFlowError(err))
		return
	}
	if job == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no verification found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromJob(job))
}

// HandleCancelKYC handles POST /verification/kyc/cancel.
func (h *Handler) HandleCancelKYC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	if err := h.kyc.CancelVerification(ctx, userID); err != nil {
		httputil.WriteError(w, fromFlowError(err))
		return
	}

	h.logger.InfoContext(ctx, "kyc verification cancelled",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID.String(),
	)
	h.record(ctx, audit.Event{
		UserID:  userID,
		Action:  audit.ActionKYCCancelled,
		Channel: "kyc",
		Status:  verification.StatusCancelled.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleCallback handles POST /verification/kyc/callback from the vendor.
// Authentication is the vendor's HMAC signature, not a user token.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	payload, ok := httputil.DecodeAndPrepare[callbackRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if !kyc.ValidSignature(h.vendorKey, payload.Timestamp, payload.Signature) {
		h.logger.WarnContext(ctx, "callback signature rejected",
			"request_id", requestID,
			"job_id", payload.JobID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid callback signature"))
		return
	}

	if err := h.kyc.ProcessCallback(ctx, payload.toPayload()); err != nil {
		h.logger.ErrorContext(ctx, "callback processing failed",
			"request_id", requestID,
			"job_id", payload.JobID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	// The vendor callback carries no user token; the event is keyed by job id.
	h.record(ctx, audit.Event{
		Action:  audit.ActionKYCCallback,
		Channel: "kyc",
		Status:  payload.ResultCode,
		Detail:  "job " + payload.JobID,
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleFace handles POST /verification/face (multipart).
func (h *Handler) HandleFace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := h.limiter.Allow(ctx, userID, "face"); err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Read one byte past the limit so the gateway sees the violation instead
	// of a silently truncated image.
	blob, err := h.readUpload(r, "file", face.MaxSelfieSize+1)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := h.face.VerifyFace(ctx, userID, blob, r.FormValue("reference_image_url"))
	h.record(ctx, audit.Event{
		UserID:  userID,
		Action:  audit.ActionFaceSubmitted,
		Channel: "face",
		Status:  out.Status.String(),
		Detail:  out.Error,
	})
	httputil.WriteJSON(w, http.StatusOK, fromFaceOutcome(out))
}

// HandleDocument handles POST /verification/document (multipart).
func (h *Handler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := h.limiter.Allow(ctx, userID, "document"); err != nil {
		httputil.WriteError(w, err)
		return
	}

	docType, err := verification.ParseDocumentType(r.FormValue("document_type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	blob, err := h.readUpload(r, "file", document.MaxDocumentSize+1)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := h.document.VerifyDocument(ctx, userID, docType, blob)
	h.record(ctx, audit.Event{
		UserID:  userID,
		Action:  audit.ActionDocumentSubmitted,
		Channel: "document",
		Status:  out.Status.String(),
		Detail:  out.Error,
	})
	httputil.WriteJSON(w, http.StatusOK, fromDocumentOutcome(out))
}

// HandleStatus handles GET /verification/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	view, err := h.status.GetVerificationStatus(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "status aggregation failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromView(view))
}

func (h *Handler) readUpload(r *http.Request, field string, limit int64) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, "missing "+field+" upload", err)
	}
	defer file.Close()

	blob, err := io.ReadAll(io.LimitReader(file, limit))
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, "read "+field+" upload", err)
	}
	return blob, nil
}

// fromFlowError maps flow-tagged errors onto transport-level domain errors.
// Untagged errors pass through and render as internal.
func fromFlowError(err error) error {
	switch verification.KindOf(err) {
	case verification.ErrInvalidParameters:
		return dErrors.Wrap(dErrors.CodeValidation, "invalid verification parameters", err)
	case verification.ErrProviderUnavailable:
		return dErrors.Wrap(dErrors.CodeUnavailable, "verification provider unavailable", err)
	}
	return err
}
