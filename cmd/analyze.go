package cmd

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helmcode/labellens/pkg/analyzer"
	"github.com/helmcode/labellens/pkg/capture"
	"github.com/helmcode/labellens/pkg/client"
	"github.com/helmcode/labellens/pkg/config"
	"github.com/helmcode/labellens/pkg/formatter"
	"github.com/helmcode/labellens/pkg/model"
	"github.com/helmcode/labellens/pkg/router"
)

type analyzeOptions struct {
	lens     string
	output   string
	audioOut string
	profile  profileOptions
}

func NewAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze IMAGE",
		Short: "Score a food label photo",
		Long: `Send a photo of an ingredient label to the analysis service and show the
score, reasons and ingredient breakdown for one lens or all of them.

Examples:
  # Real food score for a label
  labellens analyze label.jpg

  # Every lens at once, as JSON
  labellens analyze label.jpg -l all -o json

  # Personal fit with a peanut allergy and a vegan diet
  labellens analyze label.jpg -l personal --allergen peanut --diet vegan

  # Save the spoken summary
  labellens analyze label.jpg --audio-out summary.wav`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.lens, "lens", "l", string(model.LensRealFood), "Lens to score with (focus, real_food, personal, all)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "human", "Output format (human, json, yaml)")
	cmd.Flags().StringVar(&opts.audioOut, "audio-out", "", "Write the spoken summary of the first lens to this file")
	opts.profile.register(cmd)

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions, path string) error {
	lenses, err := parseLenses(opts.lens)
	if err != nil {
		return err
	}
	if err := validateOutput(opts.output); err != nil {
		return err
	}

	ctx := cmd.Context()
	shot, err := capture.NewFileSource(path).Acquire(ctx)
	if err != nil {
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

	rt := router.New(logger)
	if err := rt.SetActiveLens(lenses[0]); err != nil {
		return err
	}
	orch := analyzer.New(svc, rt, store, analyzer.WithContext(ctx), analyzer.WithLogger(logger))

	human := opts.output == "human"
	if human {
		printHeader(cmd.OutOrStdout(), shot.Filename, lenses)
	}

	prog := newProgress(stderr, human)
	unsubscribe := rt.Subscribe(prog.observe)
	defer unsubscribe()

	for _, l := range lenses {
		if _, err := orch.SubmitNamed(shot.Data, shot.Filename, l); err != nil {
			prog.stop()
			return fmt.Errorf("failed to submit %s: %w", l, err)
		}
	}
	orch.Wait()
	prog.stop()

	states := make(map[model.Lens]model.PipelineState, len(lenses))
	for _, l := range lenses {
		states[l] = rt.State(l)
	}

	out := cmd.OutOrStdout()
	if len(lenses) == 1 {
		err = formatter.DisplayState(out, lenses[0], states[lenses[0]], opts.output)
	} else {
		err = formatter.DisplayAll(out, states, opts.output)
	}
	if err != nil {
		return err
	}

	if opts.audioOut != "" {
		if err := writeAudio(opts.audioOut, rt.State(rt.ActiveLens()).Audio); err != nil {
			return err
		}
		printSuccess(stderr, fmt.Sprintf("Audio summary saved to %s", opts.audioOut))
	}

	failed := 0
	for _, s := range states {
		if s.Status == model.StatusError {
			failed++
		}
	}
	if failed == len(states) {
		return fmt.Errorf("analysis failed for %s", describeLenses(lenses))
	}
	return nil
}

// progress drives the spinner from router transitions. observe runs under the
// router lock and only touches progress state.
type progress struct {
	w       io.Writer
	spinner *spinner.Spinner
	pending map[model.Lens]bool
}

func newProgress(w io.Writer, enabled bool) *progress {
	p := &progress{w: w, pending: make(map[model.Lens]bool)}
	if enabled {
		p.spinner = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(w))
	}
	return p
}

func (p *progress) observe(lens model.Lens, state model.PipelineState) {
	switch state.Status {
	case model.StatusLoading:
		p.pending[lens] = true
	case model.StatusReady, model.StatusError:
		delete(p.pending, lens)
	default:
		return
	}
	if p.spinner == nil {
		return
	}

	p.spinner.Stop()
	switch state.Status {
	case model.StatusReady:
		printSuccess(p.w, fmt.Sprintf("%s ready", lens.Title()))
	case model.StatusError:
		printError(p.w, fmt.Sprintf("%s: %s", lens.Title(), state.Message))
	}
	if len(p.pending) > 0 {
		p.spinner.Suffix = fmt.Sprintf(" Analyzing label (%d pending)...", len(p.pending))
		p.spinner.Start()
	}
}

func (p *progress) stop() {
	if p.spinner != nil {
		p.spinner.Stop()
	}
}

func writeAudio(path string, audio *model.Audio) error {
	if audio == nil || audio.Base64 == "" {
		return fmt.Errorf("no audio summary in the reply")
	}
	data, err := base64.StdEncoding.DecodeString(audio.Base64)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	logger.Debug("Wrote audio summary", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

func describeLenses(lenses []model.Lens) string {
	names := make([]string, len(lenses))
	for i, l := range lenses {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

func printHeader(w io.Writer, filename string, lenses []model.Lens) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(w)
	cyan.Fprintln(w, "🔍 LabelLens")
	fmt.Fprintf(w, "📷 Capture: %s\n", filename)
	fmt.Fprintf(w, "🎯 Lens: %s\n", describeLenses(lenses))
	fmt.Fprintf(w, "🌐 Service: %s\n", serviceDescription())
	fmt.Fprintln(w)
}

func serviceDescription() string {
	if cfg.Service.Provider == config.ProviderReplay {
		return "replay of " + cfg.Service.ReplayFile
	}
	return cfg.Service.Endpoint
}
