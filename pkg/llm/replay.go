package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ditloop/ditloop/internal/domain"
)

// ReplayProvider streams chunks from a JSONL transcript file, one
// domain.StreamChunk per line. It exists for pipeline testing and demos;
// it speaks no provider protocol.
type ReplayProvider struct {
	Path string
}

// NewReplayProvider creates a provider replaying the transcript at path.
func NewReplayProvider(path string) *ReplayProvider {
	return &ReplayProvider{Path: path}
}

func (p *ReplayProvider) Name() string { return "replay" }

func (p *ReplayProvider) SendMessage(ctx context.Context, opts *SendOptions) (<-chan domain.StreamChunk, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}

	ch := make(chan domain.StreamChunk)
	go func() {
		defer close(ch)
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var chunk domain.StreamChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				chunk = domain.StreamChunk{
					Type: domain.ChunkError,
					Err:  fmt.Errorf("bad transcript line: %w", err),
				}
				select {
				case ch <- chunk:
				case <-ctx.Done():
				}
				return
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (p *ReplayProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{{ID: "replay", Name: "Transcript replay"}}, nil
}

func (p *ReplayProvider) Capabilities() Capabilities {
	return Capabilities{Streaming: true, ToolUse: true}
}
