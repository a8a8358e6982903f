package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"
	"github.com/openmined/syftupload/internal/upload"
)

const redrawInterval = 100 * time.Millisecond

// progressPrinter redraws a single progress line. Upload callbacks are
// serialized, so it needs no locking.
type progressPrinter struct {
	out      io.Writer
	bar      progress.Model
	start    time.Time
	lastDraw time.Time
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{
		out:   out,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		start: time.Now(),
	}
}

func (p *progressPrinter) update(pr upload.Progress) {
	now := time.Now()
	done := pr.CompletedParts == pr.TotalParts
	if !done && now.Sub(p.lastDraw) < redrawInterval {
		return
	}
	p.lastDraw = now

	fmt.Fprintf(p.out, "\r%s %s / %s %s",
		p.bar.ViewAs(pr.Fraction),
		humanize.IBytes(uint64(pr.UploadedBytes)),
		humanize.IBytes(uint64(pr.TotalBytes)),
		gray.Render(fmt.Sprintf("(%d/%d parts, %s/s)", pr.CompletedParts, pr.TotalParts, humanize.IBytes(p.rate(pr.UploadedBytes)))),
	)
	if done {
		fmt.Fprintln(p.out)
	}
}

func (p *progressPrinter) rate(uploaded int64) uint64 {
	elapsed := time.Since(p.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return uint64(float64(uploaded) / elapsed)
}
