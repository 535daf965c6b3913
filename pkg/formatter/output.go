package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/labellens/pkg/model"
)

const barWidth = 40

// LensState is one lens slot as emitted by the json and yaml formats.
type LensState struct {
	Lens                model.Lens `json:"lens" yaml:"lens"`
	model.PipelineState `yaml:",inline"`
}

// DisplayState renders a single lens slot
func DisplayState(w io.Writer, lens model.Lens, state model.PipelineState, format string) error {
	switch format {
	case "json":
		return displayJSON(w, LensState{Lens: lens, PipelineState: state})
	case "yaml":
		return displayYAML(w, LensState{Lens: lens, PipelineState: state})
	case "human":
		fallthrough
	default:
		displayHuman(w, lens, state)
	}
	return nil
}

// DisplayAll renders every slot in lens order. Lenses missing from states are skipped.
func DisplayAll(w io.Writer, states map[model.Lens]model.PipelineState, format string) error {
	ordered := make([]LensState, 0, len(states))
	for _, l := range model.AllLenses() {
		if s, ok := states[l]; ok {
			ordered = append(ordered, LensState{Lens: l, PipelineState: s})
		}
	}

	switch format {
	case "json":
		return displayJSON(w, ordered)
	case "yaml":
		return displayYAML(w, ordered)
	case "human":
		fallthrough
	default:
		for i, ls := range ordered {
			if i > 0 {
				fmt.Fprintln(w)
			}
			displayHuman(w, ls.Lens, ls.PipelineState)
		}
		footer(w)
	}
	return nil
}

func displayJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(output))
	return nil
}

func displayYAML(w io.Writer, v any) error {
	output, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprint(w, string(output))
	return nil
}

func displayHuman(w io.Writer, lens model.Lens, state model.PipelineState) {
	title := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	switch state.Status {
	case model.StatusIdle:
		title.Fprintf(w, "%s\n", lens.Title())
		fmt.Fprintf(w, "   %s\n", color.HiBlackString("No capture yet"))
		return
	case model.StatusLoading:
		title.Fprintf(w, "%s\n", lens.Title())
		fmt.Fprintf(w, "   ⏳ %s\n", color.HiBlackString("Analyzing label..."))
		return
	case model.StatusError:
		title.Fprintf(w, "%s\n", lens.Title())
		red.Fprintf(w, "   ✗ %s\n", state.Message)
		displayAudio(w, state.Audio)
		return
	}

	if state.Result == nil {
		return
	}
	r := state.Result

	title.Fprintf(w, "%s  ", lens.Title())
	ScoreColor(r.Score).Fprintf(w, "%d/100 (%s)\n", r.Score, ScoreBand(r.Score))
	if r.Headline != "" {
		fmt.Fprintf(w, "   %s\n", r.Headline)
	}
	fmt.Fprintln(w)

	comp := r.Breakdown.Composition()
	if comp.Total > 0 {
		fmt.Fprintf(w, "   %s\n", compositionBar(comp, barWidth))
		fmt.Fprintf(w, "   %s %d  %s %d  %s %d  %s %d\n\n",
			color.GreenString("■ positive"), comp.Positive,
			color.RedString("■ negative"), comp.Negative,
			color.YellowString("■ mixed"), comp.Mixed,
			color.HiBlackString("■ neutral"), comp.Neutral)
	}

	if len(r.Reasons.Positives) > 0 {
		color.New(color.FgGreen, color.Bold).Fprintln(w, "✅ WHAT'S GOOD:")
		for _, p := range r.Reasons.Positives {
			fmt.Fprintf(w, "   + %s\n", p)
		}
		fmt.Fprintln(w)
	}
	if len(r.Reasons.Concerns) > 0 {
		color.New(color.FgYellow, color.Bold).Fprintln(w, "⚠️  WATCH OUT FOR:")
		for _, c := range r.Reasons.Concerns {
			fmt.Fprintf(w, "   - %s\n", c)
		}
		fmt.Fprintln(w)
	}

	if comp.Total > 0 {
		color.New(color.FgWhite, color.Bold).Fprintln(w, "🧾 INGREDIENTS:")
		breakdownLine(w, "positive", r.Breakdown.Positive, color.GreenString)
		breakdownLine(w, "negative", r.Breakdown.Negative, color.RedString)
		breakdownLine(w, "mixed", r.Breakdown.Mixed, color.YellowString)
		breakdownLine(w, "neutral", r.Breakdown.Neutral, color.HiBlackString)
		fmt.Fprintln(w)
	}

	if len(r.LabLabels) > 0 {
		color.New(color.FgMagenta, color.Bold).Fprintln(w, "🔬 LAB LABELS:")
		for i, l := range r.LabLabels {
			fmt.Fprintf(w, "   %d. %s\n", i+1, l.Ingredient)
			if l.PlainEnglish != "" {
				fmt.Fprintf(w, "      What it is: %s\n", l.PlainEnglish)
			}
			if why := labelRelevance(lens, l); why != "" {
				fmt.Fprintf(w, "      %s: %s\n", relevanceHeading(lens), why)
			}
			if len(l.CommonIn) > 0 {
				fmt.Fprintf(w, "      Common in: %s\n", strings.Join(l.CommonIn, ", "))
			}
		}
		fmt.Fprintln(w)
	}

	if len(r.Notes) > 0 {
		color.New(color.FgWhite, color.Bold).Fprintln(w, "📝 NOTES:")
		for _, n := range r.Notes {
			fmt.Fprintln(w, wrapText(n, 80, "   "))
		}
		fmt.Fprintln(w)
	}

	displayAudio(w, state.Audio)
}

func displayAudio(w io.Writer, audio *model.Audio) {
	if audio == nil {
		return
	}
	if audio.Base64 != "" {
		fmt.Fprintf(w, "   🔊 %s\n", color.HiBlackString("Audio summary available (use --audio-out to save it)"))
	}
	if audio.Narrative != "" {
		fmt.Fprintln(w, wrapText(audio.Narrative, 80, "   "))
	}
}

func footer(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("─", 80))
	fmt.Fprintf(w, "💡 %s\n", color.HiBlackString("Run with -o json or -o yaml for machine-readable output"))
}

func breakdownLine(w io.Writer, name string, items []string, paint func(string, ...interface{}) string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "   %s %s\n", paint("%-9s", name+":"), strings.Join(items, ", "))
}

// ScoreBand names the display band of a score: good from 80, fair from 50, poor below.
func ScoreBand(score int) string {
	switch {
	case score >= 80:
		return "good"
	case score >= 50:
		return "fair"
	default:
		return "poor"
	}
}

func ScoreColor(score int) *color.Color {
	switch ScoreBand(score) {
	case "good":
		return color.New(color.FgGreen, color.Bold)
	case "fair":
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

// segmentWidths splits width cells across the buckets in proportion to their
// counts. The widths always add up to width when the composition is non-empty.
func segmentWidths(c model.Composition, width int) [4]int {
	var out [4]int
	if c.Total == 0 {
		return out
	}
	counts := [4]int{c.Positive, c.Negative, c.Mixed, c.Neutral}
	cum, prev := 0, 0
	for i, n := range counts {
		cum += n
		pos := int(math.Round(float64(cum) / float64(c.Total) * float64(width)))
		out[i] = pos - prev
		prev = pos
	}
	return out
}

func compositionBar(c model.Composition, width int) string {
	seg := segmentWidths(c, width)
	paint := []func(string, ...interface{}) string{color.GreenString, color.RedString, color.YellowString, color.HiBlackString}
	var b strings.Builder
	for i, n := range seg {
		if n > 0 {
			b.WriteString(paint[i]("%s", strings.Repeat("█", n)))
		}
	}
	return b.String()
}

func labelRelevance(lens model.Lens, l model.LabLabel) string {
	switch lens {
	case model.LensPersonal:
		return l.PersonalRelevance
	case model.LensFocus:
		if l.FocusRelevance != "" {
			return l.FocusRelevance
		}
		return l.WhyAdded
	default:
		return l.WhyAdded
	}
}

func relevanceHeading(lens model.Lens) string {
	switch lens {
	case model.LensPersonal:
		return "For you"
	case model.LensFocus:
		return "Focus impact"
	default:
		return "Why it's added"
	}
}

func wrapText(text string, width int, indent string) string {
	var result strings.Builder
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}

		currentLine := indent
		for _, word := range words {
			if len(currentLine)+len(word)+1 > width {
				result.WriteString(currentLine + "\n")
				currentLine = indent + word
			} else if currentLine == indent {
				currentLine += word
			} else {
				currentLine += " " + word
			}
		}

		if currentLine != indent {
			result.WriteString(currentLine + "\n")
		}
	}

	return strings.TrimSuffix(result.String(), "\n")
}
