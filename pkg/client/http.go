package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helmcode/labellens/pkg/model"
	"github.com/helmcode/labellens/pkg/parser"
	"github.com/helmcode/labellens/pkg/payload"
)

// maxErrorBody caps how much of a failed response is kept for logs.
const maxErrorBody = 2048

// HTTPService posts captures to the analysis endpoint as multipart forms.
type HTTPService struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPService creates a client for endpoint. A zero timeout means requests
// are never cut off by the client.
func NewHTTPService(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (s *HTTPService) Endpoint() string { return s.endpoint }

// Analyze sends one request and returns the undecoded analysis reply.
// Failures to get a 2xx response are *TransportError; a 2xx body that is not
// a JSON object is a *parser.NormalizationError.
func (s *HTTPService) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error) {
	p, err := payload.Build(req)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(p.Body))
	if err != nil {
		return nil, &TransportError{Endpoint: s.endpoint, Err: err}
	}
	reqID := uuid.NewString()
	httpReq.Header.Set("Content-Type", p.ContentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Endpoint: s.endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: s.endpoint, Err: fmt.Errorf("read body: %w", err)}
	}

	s.logger.Debug("Analysis service responded",
		zap.String("x_request_id", reqID),
		zap.String("lens", string(req.Lens)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &TransportError{
			Endpoint:   s.endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	return parser.DecodeReply(body)
}
