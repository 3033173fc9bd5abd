package ui

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// MPBProgressManager renders one bar per unit, stacked, all feeding the
// same mpb container so redraws never interleave.
type MPBProgressManager struct {
	p *mpb.Progress
}

func NewProgressManager() *MPBProgressManager {
	p := mpb.New(
		mpb.WithWidth(52),
		mpb.WithOutput(os.Stdout),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	return &MPBProgressManager{p: p}
}

// Close blocks until every registered bar has been marked done.
func (pm *MPBProgressManager) Close() {
	pm.p.Wait()
}

// Register adds a bar for one unit. The label is shown left of the bar.
func (pm *MPBProgressManager) Register(label string) *ProgressHandle {
	h := &ProgressHandle{began: time.Now()}
	h.bar = pm.p.New(
		0,
		mpb.BarStyle().Rbound("]"),

		mpb.PrependDecorators(
			decor.Name(label+"  "),
		),

		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.CountersNoUnit(" | %d/%d pages", decor.WCSyncWidth),
			decor.Any(h.sizeColumn),
			decor.Any(h.clockColumn),
		),
	)
	return h
}

// ProgressHandle drives a single unit's bar. Methods may be called from
// worker goroutines; everything after MarkDone is a no-op.
type ProgressHandle struct {
	bar   *mpb.Bar
	began time.Time

	total   atomic.Int64
	bytes   atomic.Int64
	elapsed atomic.Int64
	final   atomic.Bool
}

func (h *ProgressHandle) sizeColumn(_ decor.Statistics) string {
	return " | " + humanize.Bytes(uint64(h.bytes.Load()))
}

func (h *ProgressHandle) clockColumn(_ decor.Statistics) string {
	if h.final.Load() {
		return fmt.Sprintf(" | %ds", h.elapsed.Load())
	}
	return fmt.Sprintf(" | %ds", int(time.Since(h.began).Seconds()))
}

func (h *ProgressHandle) SetTotal(total int) {
	if h.final.Load() {
		return
	}
	h.total.Store(int64(total))
	h.bar.SetTotal(int64(total), false)
}

func (h *ProgressHandle) Update(done, total int, bytes int64) {
	if h.final.Load() {
		return
	}
	if total > 0 {
		h.total.Store(int64(total))
		h.bar.SetTotal(int64(total), false)
	}
	h.bytes.Store(bytes)
	h.bar.SetCurrent(int64(done))
}

// MarkDone freezes the clock and completes the bar even when some pages
// never arrived, so the container's Wait cannot stall on a failed unit.
func (h *ProgressHandle) MarkDone() {
	if h.final.Swap(true) {
		return
	}
	h.elapsed.Store(int64(time.Since(h.began).Seconds()))

	total := h.total.Load()
	h.bar.SetCurrent(total)
	h.bar.SetTotal(total, true)
}
