package utils

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Progress represents a progress bar using mpb. Its methods are safe for
// concurrent use; a disabled Progress does nothing.
type Progress struct {
	container *mpb.Progress
	bar       *mpb.Bar
	enabled   bool

	mu          sync.Mutex
	description string
}

var descLength = 24

// NewProgress creates a new progress bar with the given total count. The bar
// is only drawn when enabled is true and stderr is a terminal.
func NewProgress(total int, enabled bool) *Progress {
	p := &Progress{
		enabled: enabled && isTerminal(),
	}
	if !p.enabled {
		return p
	}

	// Add space before progress bar
	fmt.Fprintln(os.Stderr)

	p.container = mpb.New(
		mpb.WithOutput(os.Stderr),
		mpb.WithWidth(64),
		mpb.WithRefreshRate(100*time.Millisecond),
	)

	p.bar = p.container.New(int64(total),
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				desc := p.currentDescription()
				if len(desc) > descLength {
					return ".." + desc[len(desc)-descLength+2:]
				}
				return desc
			}, decor.WC{W: descLength, C: decor.DindentRight}),
			decor.Name("  "),
			decor.CountersNoUnit("%d/%d", decor.WC{C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
		),
	)

	return p
}

func (p *Progress) currentDescription() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.description
}

// Enabled reports whether the bar is being drawn
func (p *Progress) Enabled() bool {
	return p.enabled && p.bar != nil
}

// Update sets the bar to current and shows description
func (p *Progress) Update(current int, description string) {
	if !p.Enabled() {
		return
	}
	p.mu.Lock()
	p.description = description
	p.mu.Unlock()
	p.bar.SetCurrent(int64(current))
}

// Increment advances the bar by one and shows description
func (p *Progress) Increment(description string) {
	if !p.Enabled() {
		return
	}
	p.mu.Lock()
	p.description = description
	p.mu.Unlock()
	p.bar.Increment()
}

// Finish completes the progress bar and shuts down the container
func (p *Progress) Finish() {
	if !p.Enabled() {
		return
	}

	// Force completion so Wait cannot block on a bar that fell short
	p.bar.SetTotal(-1, true)
	p.container.Wait()

	// Add space after progress bar
	fmt.Fprintln(os.Stderr)
}

// isTerminal checks if stderr is a terminal (TTY)
func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
