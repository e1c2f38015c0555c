package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"montoit/internal/profile"
	"montoit/internal/ratelimit"
	"montoit/internal/upload"
	"montoit/internal/verification"
	"montoit/internal/verification/document"
	"montoit/internal/verification/face"
	"montoit/internal/verification/kyc"
	"montoit/internal/verification/status"
	"montoit/internal/verification/store"
	id "montoit/pkg/domain"
	"montoit/pkg/platform/audit"
	"montoit/pkg/requestcontext"
)

const vendorKey = "partner-api-key"

type stubVendor struct {
	createErr error
	getStatus *kyc.JobStatus
}

func (v *stubVendor) CreateJob(context.Context, kyc.CreateJobRequest) (*kyc.JobStatus, error) {
	if v.createErr != nil {
		return nil, v.createErr
	}
	return &kyc.JobStatus{JobID: "job-1", Status: verification.StatusSubmitted}, nil
}

func (v *stubVendor) GetJob(context.Context, id.JobID) (*kyc.JobStatus, error) {
	return v.getStatus, nil
}

func (v *stubVendor) CancelJob(context.Context, id.JobID) error { return nil }

type stubFaceEndpoint struct{ result *face.VerifyResult }

func (s *stubFaceEndpoint) Verify(context.Context, face.VerifyRequest) (*face.VerifyResult, error) {
	return s.result, nil
}

type stubDocEndpoint struct{ result *document.ValidateResult }

func (s *stubDocEndpoint) Validate(context.Context, document.ValidateRequest) (*document.ValidateResult, error) {
	return s.result, nil
}

type env struct {
	router   chi.Router
	store    *store.InMemoryStore
	profiles *profile.InMemoryStore
	vendor   *stubVendor
	faceEP   *stubFaceEndpoint
	docEP    *stubDocEndpoint
	limiter  ratelimit.Limiter
	trail    *audit.Publisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewInMemoryStore()
	profiles := profile.NewInMemoryStore()
	uploads := upload.NewInMemoryGateway()
	vendor := &stubVendor{}
	faceEP := &stubFaceEndpoint{result: &face.VerifyResult{Verified: true, MatchScore: 0.95, LivenessDetected: true}}
	docEP := &stubDocEndpoint{result: &document.ValidateResult{Valid: true, Confidence: 0.9}}
	limiter := ratelimit.NewMemoryLimiter(10, time.Minute)
	trail := audit.NewPublisher(audit.NewInMemoryStore())
	t.Cleanup(trail.Close)

	e := &env{
		store:    st,
		profiles: profiles,
		vendor:   vendor,
		faceEP:   faceEP,
		docEP:    docEP,
		limiter:  limiter,
		trail:    trail,
	}

	kycSvc := kyc.NewService(st, profiles, vendor, nil, nil, logger)
	faceSvc := face.NewService(st, uploads, faceEP, nil, logger)
	docSvc := document.NewService(st, uploads, docEP, nil, logger)
	statusSvc := status.NewService(st, logger)

	h := New(kycSvc, faceSvc, docSvc, statusSvc, limiter, trail, vendorKey, logger)
	r := chi.NewRouter()
	r.Group(h.Register)
	r.Group(h.RegisterPublic)
	e.router = r
	return e
}

func (e *env) do(t *testing.T, req *http.Request, userID *id.UserID) *httptest.ResponseRecorder {
	t.Helper()
	if userID != nil {
		req = req.WithContext(requestcontext.WithUserID(req.Context(), *userID))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func startKYCBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"type":    "biometric",
		"id_type": "NATIONAL_ID",
		"country": "CI",
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func multipartUpload(t *testing.T, blob []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "evidence.bin")
	require.NoError(t, err)
	_, err = fw.Write(blob)
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

var jpegBlob = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00},
	bytes.Repeat([]byte{1}, 64)...)

func TestStartKYC(t *testing.T) {
	e := newEnv(t)
	userID := id.NewUserID()

	req := httptest.NewRequest(http.MethodPost, "/verification/kyc", startKYCBody(t))
	rec := e.do(t, req, &userID)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "submitted", resp.Status)

	events, err := e.trail.List(req.Context(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionKYCStarted, events[0].Action)
	assert.Equal(t, "submitted", events[0].Status)
}

func TestStartKYC_Unauthenticated(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/verification/kyc", startKYCBody(t))
	rec := e.do(t, req, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStartKYC_InvalidType(t *testing.T) {
	e := newEnv(t)
	userID := id.NewUserID()

	body, _ := json.Marshal(map[string]string{"type": "astrology", "id_type": "NATIONAL_ID", "country": "CI"})
	req := httptest.NewRequest(http.MethodPost, "/verification/kyc", bytes.NewReader(body))
	rec := e.do(t, req, &userID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartKYC_VendorDown(t *testing.T) {
	e := newEnv(t)
	e.vendor.createErr = verification.NewFlowError(verification.ErrProviderUnavailable, "boom")
	userID := id.NewUserID()

	req := httptest.NewRequest(http.MethodPost, "/verification/kyc", startKYCBody(t))
	rec := e.do(t, req, &userID)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStartKYC_RateLimited(t *testing.T) {
	e := newEnv(t)
	userID := id.NewUserID()

	limited := ratelimit.NewMemoryLimiter(1, time.Minute)
	require.NoError(t, limited.Allow(context.Background(), userID, "kyc"))
	e.rebuildWithLimiter(t, limited)

	req := httptest.NewRequest(http.MethodPost, "/verification/kyc", startKYCBody(t))
	rec := e.do(t, req, &userID)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

// rebuildWithLimiter swaps the limiter and rebuilds the router.
func (e *env) rebuildWithLimiter(t *testing.T, limiter ratelimit.Limiter) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uploads := upload.NewInMemoryGateway()
	kycSvc := kyc.NewService(e.store, e.profiles, e.vendor, nil, nil, logger)
	faceSvc := face.NewService(e.store, uploads, e.faceEP, nil, logger)
	docSvc := document.NewService(e.store, uploads, e.docEP, nil, logger)
	statusSvc := status.NewService(e.store, logger)
	h := New(kycSvc, faceSvc, docSvc, statusSvc, limiter, e.trail, vendorKey, logger)
	r := chi.NewRouter()
	r.Group(h.Register)
	r.Group(h.RegisterPublic)
	e.router = r
}

func TestKYCStatus_NoJob(t *testing.T) {
	e := newEnv(t)
	userID := id.NewUserID()

	req := httptest.NewRequest(http.MethodGet, "/verification/kyc", nil)
	rec := e.do(t, req, &userID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallback_AppliesAndAcks(t *testing.T) {
	e := newEnv(t)
	userID := id.NewUserID()

	// Start a job first so the callback has something to match.
	req := httptest.NewRequest(http.MethodPost, "/verification/kyc", startKYCBody(t))
	require.Equal(t, http.StatusOK, e.do(t, req, &userID).Code)

	ts := "1718000000"
	mac := hmac.New(sha256.New, []byte(vendorKey))
	mac.Write([]byte("timestamp:" + ts))
	payload, _ := json.Marshal(map[string]any{
		"job_id":      "job-1",
		"result_code": "1210",
		"result":      map[string]any{"verification_status": "VERIFIED", "confidence_score": 90},
		"timestamp":   ts,
		"signature":   hex.EncodeToString(mac.Sum(nil)),
	})
	cbReq := httptest.NewRequest(http.MethodPost, "/verification/kyc/callback", bytes.NewReader(payload))
	rec := e.do(t, cbReq, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec2, err := e.store.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusVerified, rec2.KYC.Status)
}

func TestCallback_BadSignature(t *testing.T) {
	e := newEnv(t)

	payload, _ := json.Marshal(map[string]any{
		"job_id":      "job-1",
		"result_code": "1210",
		"timestamp":   "1718000000",
		"signature":   "deadbeef",
	})
	req := httptest.NewRequest(http.MethodPost, "/verification/kyc/callback", bytes.NewReader(payload))
	rec := e.do(t, req, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFaceUpload(t *testing.T) {
	e := newEnv(t)
	userID := id.NewUserID()

	body, contentType := multipartUpload(t, jpegBlob, nil)
	req := httptest.NewRequest(http.MethodPost, "/verification/face", body)
	req.Header.Set("Content-Type", contentType)
	rec := e.do(t, req, &userID)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp FaceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "verified", resp.Status)
	assert.NotEmpty(t, resp.ImageURL, "response must point at the stored selfie")
}

func TestFaceUpload_MissingFile(t *testing.T) {
	e := newEnv(t)
	userID := id.NewUserID()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/verification/face", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := e.do(t, req, &userID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentUpload(t *testing.T) {
	e := newEnv(t)
	userID := id.NewUserID()

	body, contentType := multipartUpload(t, jpegBlob, map[string]string{"document_type": "national_id"})
	req := httptest.NewRequest(http.MethodPost, "/verification/document", body)
	req.Header.Set("Content-Type", contentType)
	rec := e.do(t, req, &userID)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp DocumentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
}

func TestDocumentUpload_UnknownType(t *testing.T) {
	e := newEnv(t)
	userID := id.NewUserID()

	body, contentType := multipartUpload(t, jpegBlob, map[string]string{"document_type": "library_card"})
	req := httptest.NewRequest(http.MethodPost, "/verification/document", body)
	req.Header.Set("Content-Type", contentType)
	rec := e.do(t, req, &userID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnifiedStatus_EndToEnd(t *testing.T) {
	e := newEnv(t)
	userID := id.NewUserID()

	// Complete all three channels.
	req := httptest.NewRequest(http.MethodPost, "/verification/kyc", startKYCBody(t))
	require.Equal(t, http.StatusOK, e.do(t, req, &userID).Code)

	e.vendor.getStatus = &kyc.JobStatus{
		JobID:  "job-1",
		Status: verification.StatusCompleted,
		Result: json.RawMessage(`{"verification_status":"VERIFIED","confidence_score":95,"full_name":"Awa Kone"}`),
	}
	req = httptest.NewRequest(http.MethodGet, "/verification/kyc", nil)
	require.Equal(t, http.StatusOK, e.do(t, req, &userID).Code)

	body, contentType := multipartUpload(t, jpegBlob, nil)
	req = httptest.NewRequest(http.MethodPost, "/verification/face", body)
	req.Header.Set("Content-Type", contentType)
	require.Equal(t, http.StatusOK, e.do(t, req, &userID).Code)

	body, contentType = multipartUpload(t, jpegBlob, map[string]string{"document_type": "national_id"})
	req = httptest.NewRequest(http.MethodPost, "/verification/document", body)
	req.Header.Set("Content-Type", contentType)
	require.Equal(t, http.StatusOK, e.do(t, req, &userID).Code)

	req = httptest.NewRequest(http.MethodGet, "/verification/status", nil)
	rec := e.do(t, req, &userID)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.IdentityVerified)
	assert.True(t, resp.SmileIDVerified)
	assert.True(t, resp.FaceVerified)
	assert.True(t, resp.DocumentVerified)
	assert.Equal(t, "verified", resp.KYC.Status)

	// Profile picked up the vendor-confirmed name.
	p, err := e.profiles.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "Awa Kone", p.FullName)
}

func TestUnifiedStatus_PartialIsNotVerified(t *testing.T) {
	e := newEnv(t)
	userID := id.NewUserID()

	body, contentType := multipartUpload(t, jpegBlob, nil)
	req := httptest.NewRequest(http.MethodPost, "/verification/face", body)
	req.Header.Set("Content-Type", contentType)
	require.Equal(t, http.StatusOK, e.do(t, req, &userID).Code)

	req = httptest.NewRequest(http.MethodGet, "/verification/status", nil)
	rec := e.do(t, req, &userID)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.IdentityVerified)
	assert.True(t, resp.FaceVerified)
	assert.Equal(t, "not_started", resp.KYC.Status)
}
