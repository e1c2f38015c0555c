package handler

import (
	"time"

	"montoit/internal/verification"
	"montoit/internal/verification/document"
	"montoit/internal/verification/face"
	"montoit/internal/verification/status"
)

// JobResponse describes a KYC job to the client.
type JobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	JobType string `json:"job_type,omitempty"`
	IDType  string `json:"id_type,omitempty"`
	Country string `json:"country,omitempty"`

	Result *ResultResponse `json:"result,omitempty"`
}

// ResultResponse is the client-visible slice of a vendor result.
type ResultResponse struct {
	Outcome    string  `json:"outcome"`
	Confidence float64 `json:"confidence"`
	FullName   string  `json:"full_name,omitempty"`
}

func fromJob(job *verification.Job) JobResponse {
	resp := JobResponse{
		JobID:   job.ID.String(),
		Status:  job.Status.String(),
		JobType: string(job.JobType),
		IDType:  string(job.IDType),
		Country: job.Country,
	}
	if job.Result != nil {
		resp.Result = &ResultResponse{
			Outcome:    string(job.Result.Outcome),
			Confidence: job.Result.Confidence,
			FullName:   job.Result.FullName,
		}
	}
	return resp
}

// FaceResponse is the body of POST /verification/face. ImageURL is where the
// selfie landed; empty when the upload itself failed.
type FaceResponse struct {
	Success          bool     `json:"success"`
	Status           string   `json:"status"`
	ImageURL         string   `json:"image_url,omitempty"`
	MatchScore       *float64 `json:"match_score,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
	LivenessDetected *bool    `json:"liveness_detected,omitempty"`
	Error            string   `json:"error,omitempty"`
}

func fromFaceOutcome(out *face.Outcome) FaceResponse {
	return FaceResponse{
		Success:          out.Success,
		Status:           out.Status.String(),
		ImageURL:         out.ImageURL,
		MatchScore:       out.MatchScore,
		Confidence:       out.Confidence,
		LivenessDetected: out.LivenessDetected,
		Error:            out.Error,
	}
}

// DocumentResponse is the body of POST /verification/document.
type DocumentResponse struct {
	Success    bool                            `json:"success"`
	Status     string                          `json:"status"`
	Extracted  *verification.ExtractedDocument `json:"extracted_data,omitempty"`
	Confidence *float64                        `json:"confidence,omitempty"`
	Expired    *bool                           `json:"expired,omitempty"`
	Error      string                          `json:"error,omitempty"`
}

func fromDocumentOutcome(out *document.Outcome) DocumentResponse {
	return DocumentResponse{
		Success:    out.Success,
		Status:     out.Status.String(),
		Extracted:  out.Extracted,
		Confidence: out.Confidence,
		Expired:    out.Expired,
		Error:      out.Error,
	}
}

// StatusResponse is the body of GET /verification/status: the unified
// determination plus each channel's state.
type StatusResponse struct {
	IdentityVerified bool `json:"identity_verified"`
	SmileIDVerified  bool `json:"smile_id_verified"`
	FaceVerified     bool `json:"face_verified"`
	DocumentVerified bool `json:"document_verified"`

	KYC      KYCChannelResponse      `json:"kyc"`
	Face     FaceChannelResponse     `json:"face"`
	Document DocumentChannelResponse `json:"document"`
}

type KYCChannelResponse struct {
	Status     string     `json:"status"`
	JobID      string     `json:"job_id,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

type FaceChannelResponse struct {
	Status           string   `json:"status"`
	MatchScore       *float64 `json:"match_score,omitempty"`
	LivenessDetected *bool    `json:"liveness_detected,omitempty"`
	Error            string   `json:"error,omitempty"`
}

type DocumentChannelResponse struct {
	Status    string                          `json:"status"`
	Type      string                          `json:"type,omitempty"`
	Extracted *verification.ExtractedDocument `json:"extracted_data,omitempty"`
	Expired   *bool                           `json:"expired,omitempty"`
	Error     string                          `json:"error,omitempty"`
}

func fromView(view *status.View) StatusResponse {
	rec := view.Record
	return StatusResponse{
		IdentityVerified: view.Unified.IdentityVerified,
		SmileIDVerified:  view.Unified.SmileIDVerified,
		FaceVerified:     view.Unified.FaceVerified,
		DocumentVerified: view.Unified.DocumentVerified,
		KYC: KYCChannelResponse{
			Status:     rec.KYC.Status.String(),
			JobID:      rec.KYC.JobID.String(),
			VerifiedAt: rec.KYC.VerifiedAt,
		},
		Face: FaceChannelResponse{
			Status:           rec.Face.Status.String(),
			MatchScore:       rec.Face.MatchScore,
			LivenessDetected: rec.Face.LivenessDetected,
			Error:            rec.Face.Error,
		},
		Document: DocumentChannelResponse{
			Status:    rec.Document.Status.String(),
			Type:      string(rec.Document.DocumentType),
			Extracted: rec.Document.Extracted,
			Expired:   rec.Document.Expired,
			Error:     rec.Document.Error,
		},
	}
}
