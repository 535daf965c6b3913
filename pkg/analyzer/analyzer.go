// Package analyzer runs analysis requests from capture to router.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/helmcode/labellens/pkg/model"
	"github.com/helmcode/labellens/pkg/parser"
	"github.com/helmcode/labellens/pkg/profile"
	"github.com/helmcode/labellens/pkg/router"
)

// MessageTransport is what the view shows when the service could not be reached.
const MessageTransport = "could not reach the analysis service"

// Service sends one analysis request and returns the service's raw reply.
type Service interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*model.RawServiceReply, error)
}

// Orchestrator turns captures into requests and settles router slots with
// their outcomes. Each request runs on its own goroutine; a newer request for
// the same lens never cancels an older one, the router drops the late reply.
type Orchestrator struct {
	service  Service
	router   *router.Router
	profiles profile.Store
	logger   *zap.Logger
	ctx      context.Context
	wg       sync.WaitGroup
}

type Option func(*Orchestrator)

// WithContext sets the context every request runs under. Defaults to
// context.Background().
func WithContext(ctx context.Context) Option {
	return func(o *Orchestrator) { o.ctx = ctx }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func New(service Service, r *router.Router, profiles profile.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		service:  service,
		router:   r,
		profiles: profiles,
		logger:   zap.NewNop(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit sends image for lens with a snapshot of the current profile.
func (o *Orchestrator) Submit(image []byte, lens model.Lens) (model.RequestID, error) {
	return o.SubmitNamed(image, "", lens)
}

// SubmitNamed is Submit with the upload filename set. An empty name uses the default.
func (o *Orchestrator) SubmitNamed(image []byte, filename string, lens model.Lens) (model.RequestID, error) {
	if err := validate(image, lens); err != nil {
		return 0, err
	}
	req := model.NewAnalysisRequest(image, filename, lens, o.profiles.CurrentProfile())
	return o.SubmitRequest(req)
}

// SubmitRequest arms the lens slot and starts the request. Invalid input
// returns an error and leaves every slot as it was.
func (o *Orchestrator) SubmitRequest(req model.AnalysisRequest) (model.RequestID, error) {
	if err := validate(req.Image, req.Lens); err != nil {
		return 0, err
	}

	id, err := o.router.Begin(req.Lens)
	if err != nil {
		return 0, fmt.Errorf("begin request: %w", err)
	}

	o.logger.Debug("Submitting analysis request",
		zap.Uint64("request_id", uint64(id)),
		zap.String("lens", string(req.Lens)),
		zap.String("filename", req.Filename),
		zap.Int("image_bytes", len(req.Image)))

	o.wg.Add(1)
	go o.run(id, req)
	return id, nil
}

// Wait blocks until every submitted request has settled.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(id model.RequestID, req model.AnalysisRequest) {
	defer o.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("Analysis request panicked",
				zap.Uint64("request_id", uint64(id)),
				zap.String("lens", string(req.Lens)),
				zap.Any("panic", p))
			o.settle(id, req.Lens, router.Err(MessageTransport))
		}
	}()

	o.settle(id, req.Lens, o.execute(id, req))
}

func (o *Orchestrator) execute(id model.RequestID, req model.AnalysisRequest) router.Outcome {
	log := o.logger.With(zap.Uint64("request_id", uint64(id)), zap.String("lens", string(req.Lens)))

	reply, err := o.service.Analyze(o.ctx, req)
	if err == nil && reply == nil {
		err = errors.New("empty reply")
	}
	if err != nil {
		var ne *parser.NormalizationError
		if errors.As(err, &ne) {
			log.Warn("Analysis reply unreadable", zap.Error(err))
			return router.Outcome{Message: parser.MessageUnreadable, Audio: ne.Audio}
		}
		log.Warn("Analysis service request failed", zap.Error(err))
		return router.Err(MessageTransport)
	}

	analysis, err := parser.Normalize(*reply, req.Lens)
	if err != nil {
		out := router.Err(parser.MessageUnreadable)
		var ne *parser.NormalizationError
		if errors.As(err, &ne) {
			log.Warn("Could not normalize analysis",
				zap.String("kind", string(ne.Kind)),
				zap.String("field", ne.Field),
				zap.Error(err))
			out.Audio = ne.Audio
		} else {
			log.Warn("Could not normalize analysis", zap.Error(err))
		}
		return out
	}

	log.Debug("Analysis normalized", zap.Int("score", analysis.Result.Score))
	return router.Ok(*analysis)
}

func (o *Orchestrator) settle(id model.RequestID, lens model.Lens, out router.Outcome) {
	if !o.router.Apply(id, lens, out) {
		o.logger.Debug("Reply superseded by a newer request",
			zap.Uint64("request_id", uint64(id)),
			zap.String("lens", string(lens)))
	}
}

func validate(image []byte, lens model.Lens) error {
	if len(image) == 0 {
		return errors.New("image is empty")
	}
	if !lens.Valid() {
		return fmt.Errorf("unknown lens %q", lens)
	}
	return nil
}
