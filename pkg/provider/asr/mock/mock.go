// Package mock provides a test double for the asr package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxalign/pkg/provider/asr"
)

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result *asr.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records the audioPath of every Transcribe invocation.
	Calls []string
}

// Transcribe records the call and returns Result, Err.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (*asr.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, audioPath)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Result, nil
}
