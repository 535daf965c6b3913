package client

import (
	"context"
	"fmt"
	"os"

	"github.com/helmcode/labellens/pkg/model"
	"github.com/helmcode/labellens/pkg/parser"
)

// ReplayService answers every request with a reply recorded on disk.
// It is used to run the pipeline without the analysis service.
type ReplayService struct {
	path string
}

func NewReplayService(path string) *ReplayService {
	return &ReplayService{path: path}
}

func (s *ReplayService) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Endpoint: s.path, Err: err}
	}
	body, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &TransportError{Endpoint: s.path, Err: fmt.Errorf("read recorded reply: %w", err)}
	}
	return parser.DecodeReply(body)
}
