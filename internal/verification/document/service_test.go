package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"montoit/internal/upload"
	"montoit/internal/verification"
	"montoit/internal/verification/store"
	id "montoit/pkg/domain"
	"montoit/pkg/platform/sentinel"
)

type fakeValidator struct {
	result     *ValidateResult
	err        error
	validateFn func(ctx context.Context, req ValidateRequest) (*ValidateResult, error)
	calls      int
}

func (v *fakeValidator) Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error) {
	v.calls++
	if v.validateFn != nil {
		return v.validateFn(ctx, req)
	}
	return v.result, v.err
}

var scan = append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0}, 256)...)

func newService(validator Validator) (*Service, *store.InMemoryStore, *upload.InMemoryGateway) {
	st := store.NewInMemoryStore()
	uploads := upload.NewInMemoryGateway()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(st, uploads, validator, nil, logger), st, uploads
}

func TestVerifyDocument_ValidPersistsExtractedData(t *testing.T) {
	userID := id.NewUserID()
	validator := &fakeValidator{result: &ValidateResult{
		Valid: true,
		Extracted: &verification.ExtractedDocument{
			FullName:       "Awa Kone",
			DocumentNumber: "CI00123456",
			DateOfBirth:    "1991-04-02",
			ExpiryDate:     "2031-04-02",
			Nationality:    "CIV",
		},
		Confidence: 0.93,
	}}
	svc, st, _ := newService(validator)

	out := svc.VerifyDocument(context.Background(), userID, verification.DocumentNationalID, scan)
	assert.True(t, out.Success)
	assert.Equal(t, verification.StatusVerified, out.Status)

	rec, err := st.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusVerified, rec.Document.Status)
	assert.Equal(t, verification.DocumentNationalID, rec.Document.DocumentType)
	require.NotNil(t, rec.Document.Extracted)
	assert.Equal(t, "CI00123456", rec.Document.Extracted.DocumentNumber)
	require.NotNil(t, rec.Document.Expired)
	assert.False(t, *rec.Document.Expired)
}

func TestVerifyDocument_ExpiredDocumentFails(t *testing.T) {
	userID := id.NewUserID()
	validator := &fakeValidator{result: &ValidateResult{
		Valid:   false,
		Expired: true,
		Error:   "document expired on 2019-01-01",
	}}
	svc, st, _ := newService(validator)

	out := svc.VerifyDocument(context.Background(), userID, verification.DocumentPassport, scan)
	assert.False(t, out.Success)
	assert.Equal(t, verification.StatusFailed, out.Status)
	assert.Empty(t, out.FailureKind)

	rec, err := st.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusFailed, rec.Document.Status)
	require.NotNil(t, rec.Document.Expired)
	assert.True(t, *rec.Document.Expired)
	assert.Equal(t, "document expired on 2019-01-01", rec.Document.Error)
}

func TestVerifyDocument_UploadFailureWritesNoStatus(t *testing.T) {
	userID := id.NewUserID()
	validator := &fakeValidator{}
	svc, st, uploads := newService(validator)
	uploads.FailNext = true

	out := svc.VerifyDocument(context.Background(), userID, verification.DocumentNationalID, scan)
	assert.Equal(t, verification.ErrUploadFailed, out.FailureKind)
	assert.Zero(t, validator.calls)

	_, err := st.Find(context.Background(), userID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestVerifyDocument_AcceptsPDF(t *testing.T) {
	userID := id.NewUserID()
	validator := &fakeValidator{result: &ValidateResult{Valid: true, Confidence: 0.9}}
	svc, _, uploads := newService(validator)

	out := svc.VerifyDocument(context.Background(), userID, verification.DocumentDriverLicense, scan)
	assert.True(t, out.Success)

	_, ok := uploads.Stored("documents/" + userID.String() + "/1")
	assert.True(t, ok)
}

func TestVerifyDocument_EndpointFailureMarksError(t *testing.T) {
	userID := id.NewUserID()
	validator := &fakeValidator{err: errors.New("gateway timeout")}
	svc, st, _ := newService(validator)

	out := svc.VerifyDocument(context.Background(), userID, verification.DocumentNationalID, scan)
	assert.Equal(t, verification.StatusError, out.Status)
	assert.Equal(t, verification.ErrProviderUnavailable, out.FailureKind)

	rec, err := st.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusError, rec.Document.Status)
	assert.Contains(t, rec.Document.Error, "gateway timeout")
}

func TestVerifyDocument_ResetClearsPriorError(t *testing.T) {
	userID := id.NewUserID()
	validator := &fakeValidator{}
	svc, st, _ := newService(validator)

	// The reset to pending must already have dropped the previous attempt's
	// error, before the endpoint answers.
	validator.validateFn = func(ctx context.Context, _ ValidateRequest) (*ValidateResult, error) {
		rec, err := st.Find(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, verification.StatusPending, rec.Document.Status)
		assert.Empty(t, rec.Document.Error)
		return &ValidateResult{Valid: true}, nil
	}

	failed := verification.StatusFailed
	staleErr := "document expired on 2019-01-01"
	require.NoError(t, st.UpsertDocument(context.Background(), userID, store.DocumentPatch{
		Status: &failed,
		Error:  &staleErr,
	}))

	out := svc.VerifyDocument(context.Background(), userID, verification.DocumentNationalID, scan)
	assert.Equal(t, verification.StatusVerified, out.Status)
	assert.Equal(t, 1, validator.calls)
}

func TestVerifyDocument_DoesNotTouchOtherChannels(t *testing.T) {
	userID := id.NewUserID()
	validator := &fakeValidator{result: &ValidateResult{Valid: true}}
	svc, st, _ := newService(validator)

	verified := verification.StatusVerified
	require.NoError(t, st.UpsertFace(context.Background(), userID, store.FacePatch{Status: &verified}))

	svc.VerifyDocument(context.Background(), userID, verification.DocumentNationalID, scan)

	rec, err := st.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusVerified, rec.Face.Status)
	assert.Equal(t, verification.StatusVerified, rec.Document.Status)
}
