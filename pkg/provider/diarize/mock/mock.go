// Package mock provides a test double for the diarize package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxalign/pkg/align"
	"github.com/MrWong99/voxalign/pkg/provider/diarize"
)

// Ensure Provider implements diarize.Provider at compile time.
var _ diarize.Provider = (*Provider)(nil)

// Provider is a mock implementation of diarize.Provider.
type Provider struct {
	mu sync.Mutex

	// Turns is returned by Diarize when Err is nil.
	Turns []align.SpeakerTurn

	// Err, if non-nil, is returned as the error from Diarize.
	Err error

	// Calls records the audioPath of every Diarize invocation.
	Calls []string
}

// Diarize records the call and returns Turns, Err.
func (p *Provider) Diarize(ctx context.Context, audioPath string) ([]align.SpeakerTurn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, audioPath)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Turns, nil
}
