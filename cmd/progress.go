package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/pkgsync/pkg/events"
	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const (
	progressNameWidth = 28
	progressBarWidth  = 24
	progressRedraws   = 10 // per second
)

// progressEnabled reports whether a live progress line should be drawn:
// stderr must be a terminal and neither JSON logs nor --no-color requested.
func progressEnabled(cmd *cobra.Command) bool {
	if jsonLogs, _ := cmd.Flags().GetBool("json"); jsonLogs {
		return false
	}
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		return false
	}
	f, ok := cmd.ErrOrStderr().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// progressRenderer turns engine events into log lines and, on a terminal, a
// single rewritten progress line. It is driven from one goroutine.
type progressRenderer struct {
	out     io.Writer
	live    bool
	limiter *rate.Limiter
	drawn   int // width of the progress line currently on screen
}

func newProgressRenderer(out io.Writer, live bool) *progressRenderer {
	return &progressRenderer{
		out:     out,
		live:    live,
		limiter: rate.NewLimiter(rate.Every(time.Second/progressRedraws), 1),
	}
}

func (r *progressRenderer) Emit(ev events.Event) {
	if ev.Kind == events.Progress {
		r.progress(ev)
		return
	}
	r.clear()

	switch ev.Kind {
	case events.Log:
		logger.At(logger.ParseLevel(ev.Level), ev.Message, logger.String("package", ev.Name))
	case events.Started:
		logger.Debug(ev.Name + ": started")
	case events.Finished:
		logger.Info(ev.Name + ": done")
	case events.Aborted:
		logger.Warn(ev.Name + ": aborted")
	case events.Failed:
		// The cause is reported by the error log event that follows.
		logger.Debug(ev.Name+": failed", logger.String("error", ev.Message))
	}
}

func (r *progressRenderer) progress(ev events.Event) {
	if !r.live {
		return
	}
	complete := ev.Total > 0 && ev.Current >= ev.Total
	if !complete && !r.limiter.Allow() {
		return
	}
	line := progressLine(ev.Name, ev.Current, ev.Total)
	pad := ""
	if w := runewidth.StringWidth(line); w < r.drawn {
		pad = strings.Repeat(" ", r.drawn-w)
	}
	fmt.Fprintf(r.out, "\r%s%s", line, pad)
	r.drawn = runewidth.StringWidth(line)
}

// clear erases the progress line so log output starts on a clean row.
func (r *progressRenderer) clear() {
	if r.drawn == 0 {
		return
	}
	fmt.Fprintf(r.out, "\r%s\r", strings.Repeat(" ", r.drawn))
	r.drawn = 0
}

// progressLine renders "name  [#####.....]  42%  1.2 MiB / 3.0 MiB".
func progressLine(name string, current, total int64) string {
	if total <= 0 {
		total = 1
	}
	if current > total {
		current = total
	}
	frac := float64(current) / float64(total)
	filled := int(frac * progressBarWidth)

	label := runewidth.FillRight(runewidth.Truncate(name, progressNameWidth, "…"), progressNameWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled)
	return fmt.Sprintf("%s [%s] %3d%%  %s / %s",
		label, bar, int(frac*100), humanize.IBytes(uint64(current)), humanize.IBytes(uint64(total)))
}
