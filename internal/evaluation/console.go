// internal/evaluation/console.go
package evaluation

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/fatih/color"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	dim      = color.New(color.Faint).SprintFunc()
)

// console writes operator-facing progress lines.
type console struct {
	out   io.Writer
	bar   progress.Model
	total int
}

func newConsole(out io.Writer, total int) *console {
	if out == nil {
		out = io.Discard
	}
	return &console{
		out:   out,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(24), progress.WithoutPercentage()),
		total: total,
	}
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) start(i int, id string) {
	c.printf("  %s [%d/%d] %-24s ", c.bar.ViewAs(float64(i)/float64(c.total)), i+1, c.total, id)
}

func (c *console) warn(format string, args ...any) {
	c.printf("  %s %s\n", warnMark("⚠"), fmt.Sprintf(format, args...))
}
