package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/helmcode/labellens/pkg/analyzer"
	"github.com/helmcode/labellens/pkg/capture"
	"github.com/helmcode/labellens/pkg/client"
	"github.com/helmcode/labellens/pkg/formatter"
	"github.com/helmcode/labellens/pkg/model"
	"github.com/helmcode/labellens/pkg/router"
)

type watchOptions struct {
	lens    string
	output  string
	profile profileOptions
}

func NewWatchCmd() *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Score every photo dropped into a folder",
		Long: `Watch a camera drop folder. Every new image is sent for analysis as soon as it
has been written; a newer photo replaces the result of an older one that is
still in flight. Edits to the profile file are picked up between photos.

Examples:
  # Watch the phone sync folder with the focus lens
  labellens watch ~/Pictures/labels -l focus

  # Stream every transition as JSON
  labellens watch ./drop -l all -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.lens, "lens", "l", string(model.LensRealFood), "Lens to score with (focus, real_food, personal, all)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "human", "Output format (human, json, yaml)")
	opts.profile.register(cmd)

	return cmd
}

func runWatch(cmd *cobra.Command, opts *watchOptions, dir string) error {
	lenses, err := parseLenses(opts.lens)
	if err != nil {
		return err
	}
	if err := validateOutput(opts.output); err != nil {
		return err
	}

	store, err := opts.profile.open()
	if err != nil {
		return err
	}
	svc, err := client.NewFactory(logger).CreateService(cfg.Service)
	if err != nil {
		return err
	}
	source, err := capture.NewDirWatcher(dir, capture.WithWatcherLogger(logger))
	if err != nil {
		return err
	}
	defer source.Close()

	g, ctx := errgroup.WithContext(cmd.Context())

	rt := router.New(logger)
	orch := analyzer.New(svc, rt, store, analyzer.WithContext(ctx), analyzer.WithLogger(logger))

	render := newRenderer(cmd.OutOrStdout(), opts.output)
	defer rt.Subscribe(render.observe)()

	color.New(color.FgCyan, color.Bold).Fprintf(stderr, "👀 Watching %s for new labels (%s)\n", dir, describeLenses(lenses))

	g.Go(func() error {
		if err := store.Watch(ctx); err != nil {
			logger.Warn("Profile changes will not be picked up", zap.String("profile", store.Path()), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		return submitCaptures(ctx, source, orch, lenses)
	})

	err = g.Wait()
	orch.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// submitCaptures turns every capture into one request per lens until ctx ends.
func submitCaptures(ctx context.Context, source capture.Source, orch *analyzer.Orchestrator, lenses []model.Lens) error {
	for {
		shot, err := source.Acquire(ctx)
		if err != nil {
			if errors.Is(err, capture.ErrClosed) || ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("capture: %w", err)
		}
		logger.Info("New capture", zap.String("file", shot.Filename), zap.Int("bytes", len(shot.Data)))
		for _, l := range lenses {
			if _, err := orch.SubmitNamed(shot.Data, shot.Filename, l); err != nil {
				logger.Warn("Could not submit capture", zap.String("lens", string(l)), zap.Error(err))
			}
		}
	}
}

// renderer prints every slot transition as it happens. Transitions arrive
// serialized by the router.
type renderer struct {
	w      io.Writer
	format string
}

func newRenderer(w io.Writer, format string) *renderer {
	return &renderer{w: w, format: format}
}

func (r *renderer) observe(lens model.Lens, state model.PipelineState) {
	if r.format == "human" && state.Status == model.StatusLoading {
		color.New(color.FgHiBlack).Fprintf(r.w, "⏳ %s: analyzing %s\n", lens.Title(), requestLabel(state.RequestID))
		return
	}

	if err := formatter.DisplayState(r.w, lens, state, r.format); err != nil {
		logger.Warn("Could not render state", zap.String("lens", string(lens)), zap.Error(err))
	}
	if r.format == "human" {
		fmt.Fprintln(r.w)
	}
}

func requestLabel(id model.RequestID) string {
	return fmt.Sprintf("request #%d", id)
}
