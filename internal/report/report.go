// Package report renders a terminal summary of an access tally run.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/accesstally/internal/tally"
)

// Summary is the data shown in the report.
type Summary struct {
	Job          string
	RunID        string
	Source       string
	DryRun       bool
	Availability tally.Availability[tally.Key, string]
	Skipped      []tally.Key
	Counts       map[string]int
	OutputPath   string
}

// Options controls rendering.
type Options struct {
	Color bool
	Top   int // orders listed in the top table; 0 hides it
	Width int // maximum width of an order id column
}

// DefaultOptions returns colored output with the ten most accessible orders.
func DefaultOptions() Options {
	return Options{Color: true, Top: 10, Width: 32}
}

// Renderer writes summaries to a terminal.
type Renderer struct {
	opts    Options
	title   color.Style
	good    color.Style
	warn    color.Style
	muted   color.Style
	heading color.Style
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 32
	}
	return &Renderer{
		opts:    opts,
		title:   color.New(color.FgCyan, color.OpBold),
		good:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		muted:   color.New(color.FgGray),
		heading: color.New(color.OpBold),
	}
}

func (r *Renderer) paint(s color.Style, text string) string {
	if !r.opts.Color {
		return text
	}
	return s.Sprint(text)
}

// Write renders s to w.
func (r *Renderer) Write(w io.Writer, s Summary) error {
	var b strings.Builder

	mode := "run"
	if s.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(&b, "%s %s\n", r.paint(r.title, "Access tally"), r.paint(r.muted, fmt.Sprintf("(%s, job=%s, source=%s, run=%s)", mode, s.Job, s.Source, s.RunID)))

	r.writeKeys(&b, s)
	r.writeHistogram(&b, s.Counts)
	r.writeTop(&b, s.Counts)

	if s.OutputPath != "" {
		fmt.Fprintf(&b, "\n%s %s\n", r.paint(r.heading, "Output:"), s.OutputPath)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) writeKeys(b *strings.Builder, s Summary) {
	keys := make([]tally.Key, 0, len(s.Availability))
	for k := range s.Availability {
		keys = append(keys, k)
	}
	sortKeys(keys)

	fmt.Fprintf(b, "\n%s\n", r.paint(r.heading, "Availability"))
	width := runewidth.StringWidth("Spacecraft")
	for _, k := range append(keys, s.Skipped...) {
		width = max(width, runewidth.StringWidth(k.Spacecraft))
	}

	fmt.Fprintf(b, "  %s  %4s  %s\n", runewidth.FillRight("Spacecraft", width), "Day", "Orders")
	for _, k := range keys {
		fmt.Fprintf(b, "  %s  %4d  %s\n", runewidth.FillRight(k.Spacecraft, width), k.Day, r.paint(r.good, fmt.Sprint(len(s.Availability[k]))))
	}
	for _, k := range s.Skipped {
		fmt.Fprintf(b, "  %s  %4d  %s\n", runewidth.FillRight(k.Spacecraft, width), k.Day, r.paint(r.warn, "skipped"))
	}
}

func (r *Renderer) writeHistogram(b *strings.Builder, counts map[string]int) {
	hist := tally.Histogram(counts)
	values := make([]int, 0, len(hist))
	for v := range hist {
		values = append(values, v)
	}
	sort.Ints(values)

	var total int
	for _, n := range counts {
		total += n
	}

	fmt.Fprintf(b, "\n%s %s\n", r.paint(r.heading, "Accesses"), r.paint(r.muted, fmt.Sprintf("(%d orders, %d accesses)", len(counts), total)))
	for _, v := range values {
		label := r.paint(r.good, fmt.Sprintf("%3d", v))
		if v == 0 {
			label = r.paint(r.warn, fmt.Sprintf("%3d", v))
		}
		fmt.Fprintf(b, "  %s  %d orders\n", label, hist[v])
	}
}

func (r *Renderer) writeTop(b *strings.Builder, counts map[string]int) {
	if r.opts.Top <= 0 || len(counts) == 0 {
		return
	}
	top := tally.Top(counts, r.opts.Top)

	width := runewidth.StringWidth("Order")
	for _, e := range top {
		width = max(width, runewidth.StringWidth(e.ID))
	}
	width = min(width, r.opts.Width)

	fmt.Fprintf(b, "\n%s\n", r.paint(r.heading, fmt.Sprintf("Top %d orders", len(top))))
	for _, e := range top {
		id := runewidth.FillRight(runewidth.Truncate(e.ID, width, "…"), width)
		fmt.Fprintf(b, "  %s  %d\n", id, e.Count)
	}
}

func sortKeys(keys []tally.Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Spacecraft != keys[j].Spacecraft {
			return keys[i].Spacecraft < keys[j].Spacecraft
		}
		return keys[i].Day < keys[j].Day
	})
}
