package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/budget-rollup/internal/cascade"
	"github.com/schollz/progressbar/v3"
)

// BulkProgress shows a progress bar while a bulk mode change runs. Its
// Observe method matches cascade.BulkToggler.OnOutcome.
type BulkProgress struct {
	bar    *progressbar.ProgressBar
	writer io.Writer
	failed int
}

// NewBulkProgress creates a progress bar for total nodes.
func NewBulkProgress(writer io.Writer, total int, description string) *BulkProgress {
	p := &BulkProgress{writer: writer}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Observe advances the bar by one node.
func (p *BulkProgress) Observe(_ int, outcome cascade.ToggleOutcome) {
	if !outcome.OK() {
		p.failed++
		slog.Debug("bulk toggle failed", "node", outcome.Ref.String(), "error", outcome.Err)
	}
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Failed is the number of failed nodes observed so far.
func (p *BulkProgress) Failed() int {
	return p.failed
}

// Finish completes the bar even when the run stopped early.
func (p *BulkProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}
