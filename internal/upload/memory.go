package upload

import (
	"context"
	"fmt"
	"sync"

	"montoit/internal/verification"
)

// InMemoryGateway is the test and development implementation of Gateway.
type InMemoryGateway struct {
	mu    sync.Mutex
	blobs map[string][]byte
	seq   int

	// FailNext forces the next upload to fail, for exercising the
	// upload-failure short circuit in flow tests.
	FailNext bool
}

var _ Gateway = (*InMemoryGateway)(nil)

func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{blobs: make(map[string][]byte)}
}

func (g *InMemoryGateway) Upload(_ context.Context, blob []byte, keyHint string, opts Options) (*Result, error) {
	contentType, err := validate(blob, opts)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailNext {
		g.FailNext = false
		return nil, verification.NewFlowError(verification.ErrUploadFailed, "store evidence")
	}

	g.seq++
	key := fmt.Sprintf("%s/%d", keyHint, g.seq)
	stored := make([]byte, len(blob))
	copy(stored, blob)
	g.blobs[key] = stored

	return &Result{
		URL:         "memory://" + key,
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(blob)),
	}, nil
}

// Stored returns the blob stored under key, for assertions.
func (g *InMemoryGateway) Stored(key string) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	blob, ok := g.blobs[key]
	return blob, ok
}
