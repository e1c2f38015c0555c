package kyc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"montoit/internal/verification"
	"montoit/internal/verification/store"
	id "montoit/pkg/domain"
	dErrors "montoit/pkg/domain-errors"
	"montoit/pkg/platform/sentinel"
)

func seedSubmitted(t *testing.T, f *fixture, userID id.UserID, jobID id.JobID) {
	t.Helper()
	submitted := verification.StatusSubmitted
	require.NoError(t, f.store.UpsertKYC(context.Background(), userID, store.KYCPatch{
		Status: &submitted,
		JobID:  &jobID,
	}))
}

func TestProcessCallback_VerifiedFamily(t *testing.T) {
	userID := id.NewUserID()
	f := newFixture(&fakeClient{})
	seedSubmitted(t, f, userID, "job-1")

	err := f.service.ProcessCallback(context.Background(), CallbackPayload{
		JobID:      "job-1",
		ResultCode: "1212",
		Result:     verifiedResult(92, "Awa Kone"),
	})
	require.NoError(t, err)

	rec, err := f.store.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusVerified, rec.KYC.Status)
	require.NotNil(t, rec.KYC.VerifiedAt)

	p, err := f.profiles.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, p.SmileIDVerified)
	assert.Equal(t, "Awa Kone", p.FullName)
}

func TestProcessCallback_FailedCode(t *testing.T) {
	userID := id.NewUserID()
	f := newFixture(&fakeClient{})
	seedSubmitted(t, f, userID, "job-1")

	err := f.service.ProcessCallback(context.Background(), CallbackPayload{
		JobID:      "job-1",
		ResultCode: "1203",
	})
	require.NoError(t, err)

	rec, err := f.store.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusFailed, rec.KYC.Status)

	_, err = f.profiles.Find(context.Background(), userID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestProcessCallback_UnknownCodeAcknowledged(t *testing.T) {
	userID := id.NewUserID()
	f := newFixture(&fakeClient{})
	seedSubmitted(t, f, userID, "job-1")

	err := f.service.ProcessCallback(context.Background(), CallbackPayload{
		JobID:      "job-1",
		ResultCode: "9999",
	})
	require.NoError(t, err)

	rec, err := f.store.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusSubmitted, rec.KYC.Status)
}

func TestProcessCallback_NeverRegressesTerminalStatus(t *testing.T) {
	userID := id.NewUserID()
	f := newFixture(&fakeClient{})
	seedSubmitted(t, f, userID, "job-1")

	require.NoError(t, f.service.ProcessCallback(context.Background(), CallbackPayload{
		JobID:      "job-1",
		ResultCode: "1210",
		Result:     verifiedResult(90, ""),
	}))

	// A late processing notification must not undo the verified state.
	require.NoError(t, f.service.ProcessCallback(context.Background(), CallbackPayload{
		JobID:      "job-1",
		ResultCode: "1202",
	}))

	rec, err := f.store.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusVerified, rec.KYC.Status)
}

func TestProcessCallback_ResolvesByPartnerParams(t *testing.T) {
	userID := id.NewUserID()
	f := newFixture(&fakeClient{})
	seedSubmitted(t, f, userID, "job-1")

	err := f.service.ProcessCallback(context.Background(), CallbackPayload{
		JobID:         "job-rotated",
		ResultCode:    "1202",
		PartnerParams: map[string]string{"user_id": userID.String()},
	})
	require.NoError(t, err)

	rec, err := f.store.Find(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, verification.StatusProcessing, rec.KYC.Status)
}

func TestProcessCallback_UnknownJob(t *testing.T) {
	f := newFixture(&fakeClient{})

	err := f.service.ProcessCallback(context.Background(), CallbackPayload{
		JobID:      "job-ghost",
		ResultCode: "1202",
	})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestValidSignature(t *testing.T) {
	apiKey := "secret-key"
	ts := "1718000000"

	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte("timestamp:" + ts))
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, ValidSignature(apiKey, ts, sig))
	assert.False(t, ValidSignature(apiKey, ts, "deadbeef"))
	assert.False(t, ValidSignature("other-key", ts, sig))
}
