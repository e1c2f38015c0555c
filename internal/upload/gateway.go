// Package upload moves verification evidence (selfies, document scans) into
// object storage before any vendor call is made. Flows treat an upload failure
// as a hard stop: no verification attempt, no status change.
package upload

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"montoit/internal/verification"
)

// Options constrain a single upload. AllowedTypes entries are MIME types;
// the actual type is sniffed from content, never trusted from the caller.
type Options struct {
	MaxSize      int64
	AllowedTypes []string
}

// Result describes a stored blob.
type Result struct {
	URL         string
	Key         string
	ContentType string
	Size        int64
}

// Gateway stores evidence blobs.
type Gateway interface {
	Upload(ctx context.Context, blob []byte, keyHint string, opts Options) (*Result, error)
}

// validate enforces the per-flow size and type constraints shared by every
// Gateway implementation. Returns the sniffed content type on success.
func validate(blob []byte, opts Options) (string, error) {
	if len(blob) == 0 {
		return "", verification.NewFlowError(verification.ErrUploadFailed, "empty file")
	}
	if opts.MaxSize > 0 && int64(len(blob)) > opts.MaxSize {
		return "", verification.NewFlowError(verification.ErrUploadFailed,
			fmt.Sprintf("file exceeds %d bytes", opts.MaxSize))
	}

	contentType := sniffContentType(blob)
	if len(opts.AllowedTypes) == 0 {
		return contentType, nil
	}
	for _, allowed := range opts.AllowedTypes {
		if contentType == allowed {
			return contentType, nil
		}
	}
	return "", verification.NewFlowError(verification.ErrUploadFailed,
		fmt.Sprintf("unsupported content type %s", contentType))
}

func sniffContentType(blob []byte) string {
	contentType := http.DetectContentType(blob)
	// DetectContentType appends charset parameters for text types.
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
