package downloader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brogergvhs/piccomad/internal/catalog"
	"github.com/brogergvhs/piccomad/internal/descramble"
	"github.com/brogergvhs/piccomad/internal/session"
)

const imageAccept = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"

// Progress receives live counts for one unit's download. The terminal
// progress bars implement it; tests plug in lighter fakes.
type Progress interface {
	SetTotal(total int)
	Update(done, total int, bytes int64)
	MarkDone()
}

// Options tunes an Orchestrator. The zero value gets sane defaults.
type Options struct {
	// Workers bounds how many pages of a unit are in flight at once.
	Workers int
	// Retry bounds the per-page retry loop.
	Retry BackoffPolicy
	// Timeout is the budget for a single page request.
	Timeout time.Duration
	// Progress, when set, hands out a progress sink per unit.
	Progress func(unit catalog.Unit) Progress
	// Logger, when set, receives debug traces.
	Logger interface{ Debugf(string, ...any) }
}

// Orchestrator drives page downloads through a bounded worker pool and
// hands finished pages to the caller strictly in reading order, however
// the fetches complete.
type Orchestrator struct {
	session  *session.Session
	workers  int
	retry    BackoffPolicy
	timeout  time.Duration
	progress func(catalog.Unit) Progress
	log      interface{ Debugf(string, ...any) }
}

// New builds an Orchestrator on top of an existing session.
func New(s *session.Session, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry.MaxAttempts = DefaultBackoff().MaxAttempts
	}
	if opts.Retry.BaseDelay <= 0 {
		opts.Retry.BaseDelay = DefaultBackoff().BaseDelay
	}
	if opts.Retry.MaxDelay <= 0 {
		opts.Retry.MaxDelay = DefaultBackoff().MaxDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &Orchestrator{
		session:  s,
		workers:  opts.Workers,
		retry:    opts.Retry,
		timeout:  opts.Timeout,
		progress: opts.Progress,
		log:      opts.Logger,
	}
}

// Page is one finished page, already descrambled, delivered in reading
// order.
type Page struct {
	Unit  catalog.Unit
	Index int
	Image image.Image
	Bytes int64
}

// PageFailure names one page that never reached the caller.
type PageFailure struct {
	Index    int
	Attempts int
	Err      error
}

// UnitReport is the terminal outcome of one unit. Done counts pages
// actually delivered; Remaining counts pages still undelivered when a
// cancellation cut the run short.
type UnitReport struct {
	Unit      catalog.Unit
	Err       error
	Done      int
	Failed    []PageFailure
	Remaining int
	Bytes     int64
}

// Complete reports a unit with every page delivered.
func (r UnitReport) Complete() bool {
	return r.Err == nil && len(r.Failed) == 0 && r.Remaining == 0
}

// Run drives every unit in input order and returns one report per unit.
// Failed units never stop their siblings; only cancellation ends the run
// early, and then the remaining units are reported untouched.
func (o *Orchestrator) Run(ctx context.Context, units []catalog.UnitResolution, emit func(Page)) ([]UnitReport, error) {
	reports := make([]UnitReport, 0, len(units))

	for i, res := range units {
		if err := ctx.Err(); err != nil {
			for _, rest := range units[i:] {
				reports = append(reports, UnitReport{Unit: rest.Unit, Err: rest.Err, Remaining: len(rest.Pages)})
			}
			return reports, err
		}

		reports = append(reports, o.RunUnit(ctx, res, emit))
	}

	return reports, nil
}

// RunUnit fetches every page of one unit and emits them in page order.
// emit is called from one goroutine at a time. The report is complete
// once RunUnit returns; it never returns early except through ctx.
func (o *Orchestrator) RunUnit(ctx context.Context, res catalog.UnitResolution, emit func(Page)) UnitReport {
	report := UnitReport{Unit: res.Unit}

	if res.Err != nil {
		report.Err = res.Err
		return report
	}

	// Pages the resolver could not shape are terminal before the run.
	for idx, err := range res.PageErrs {
		report.Failed = append(report.Failed, PageFailure{Index: idx, Err: err})
	}

	if len(res.Pages) == 0 {
		sortFailures(report.Failed)
		return report
	}

	run := &unitRun{
		orch:   o,
		unit:   res.Unit,
		emit:   emit,
		prog:   o.progressFor(res.Unit),
		tasks:  make([]fetchTask, len(res.Pages)),
		buffer: make(map[int]*Page, len(res.Pages)),
	}
	for i, page := range res.Pages {
		run.tasks[i] = fetchTask{page: page}
	}

	run.prog.SetTotal(len(run.tasks))
	o.debugf("%s: %d pages queued\n", res.Unit.Label(), len(run.tasks))

	workers := o.workers
	if workers > len(run.tasks) {
		workers = len(run.tasks)
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for pos := range run.tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			run.process(ctx, pos)
			return nil
		})
	}
	_ = g.Wait()

	run.prog.MarkDone()

	report.Done = run.emitted
	report.Failed = append(report.Failed, run.failed...)
	report.Bytes = run.bytes
	report.Remaining = len(run.tasks) - run.emitted - len(run.failed)
	sortFailures(report.Failed)

	return report
}

func (o *Orchestrator) progressFor(unit catalog.Unit) Progress {
	if o.progress != nil {
		if p := o.progress(unit); p != nil {
			return p
		}
	}

	return noopProgress{}
}

func (o *Orchestrator) debugf(format string, args ...any) {
	if o.log != nil {
		o.log.Debugf(format, args...)
	}
}

// unitRun owns the mutable state of one unit download. Tasks are indexed
// by position in the resolved page slice; the reorder buffer releases
// the in-order prefix as tasks settle.
type unitRun struct {
	orch *Orchestrator
	unit catalog.Unit
	emit func(Page)
	prog Progress

	tasks []fetchTask

	mu      sync.Mutex
	buffer  map[int]*Page
	next    int
	emitted int
	settled int
	failed  []PageFailure
	bytes   int64
}

// process drives one task to a terminal state, or abandons it when the
// run is cancelled. Cancellation leaves the task short of terminal so
// the report counts it as remaining, not failed.
func (r *unitRun) process(ctx context.Context, pos int) {
	task := &r.tasks[pos]

	for !task.state.Terminal() {
		if ctx.Err() != nil {
			return
		}

		task.state = StateFetching
		task.attempts++

		body, n, err := r.download(ctx, task.page)
		if err == nil {
			task.state = StateDescrambling

			var img image.Image
			img, err = restore(body, task.page)
			if err == nil {
				task.state = StateDone
				r.release(pos, &Page{Unit: r.unit, Index: task.page.Index, Image: img, Bytes: n})
				return
			}
		}

		if ctx.Err() != nil {
			return
		}

		if transient(err) && task.attempts < r.orch.retry.MaxAttempts {
			task.state = StatePending
			r.orch.debugf("%s page %d attempt %d: %v\n", r.unit.Label(), task.page.Index, task.attempts, err)

			if !r.pause(ctx, r.orch.retry.Delay(task.attempts, retryAfterHint(err))) {
				return
			}
			continue
		}

		task.state = StateFailed
		task.err = err
		r.fail(pos, task.attempts, err)
	}
}

// download pulls one image body into memory. Pages are small enough that
// buffering beats spooling to disk, and the descrambler needs the whole
// image anyway.
func (r *unitRun) download(ctx context.Context, page catalog.PageDescriptor) (*bytes.Buffer, int64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.orch.timeout)
	defer cancel()

	resp, err := r.orch.session.Get(reqCtx, "fetch page image", page.URL, imageAccept)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, _ := mime.ParseMediaType(ct); !strings.HasPrefix(mt, "image/") {
			return nil, 0, &descramble.DecodeError{Err: fmt.Errorf("unexpected MIME type %s", ct)}
		}
	}

	var last int64
	onProgress := func(done int64) {
		delta := done - last
		if delta <= 0 {
			return
		}
		last = done
		r.addBytes(delta)
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}

	n, err := copyWithProgress(&buf, resp.Body, onProgress)
	if err != nil {
		return nil, n, &session.NetworkError{Operation: "fetch page image", Err: err}
	}

	return &buf, n, nil
}

// restore decodes the body and unshuffles it when the page is scrambled.
func restore(body *bytes.Buffer, page catalog.PageDescriptor) (image.Image, error) {
	img, err := descramble.Decode(body)
	if err != nil {
		return nil, err
	}

	if !page.Scrambled() {
		return img, nil
	}

	return descramble.Descramble(img, page.ScrambleKey, page.Rows, page.Cols)
}

// release hands a finished page to the reorder buffer and emits the
// in-order prefix that is now complete.
func (r *unitRun) release(pos int, page *Page) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer[pos] = page
	r.settled++
	r.drainLocked()
	r.prog.Update(r.settled, len(r.tasks), r.bytes)
}

// fail settles a page without a result. The nil buffer entry keeps the
// failed page from blocking the release of everything behind it.
func (r *unitRun) fail(pos, attempts int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failed = append(r.failed, PageFailure{Index: r.tasks[pos].page.Index, Attempts: attempts, Err: err})
	r.buffer[pos] = nil
	r.settled++
	r.drainLocked()
	r.prog.Update(r.settled, len(r.tasks), r.bytes)

	r.orch.debugf("%s page %d %s after %d attempts: %v\n",
		r.unit.Label(), r.tasks[pos].page.Index, StateFailed, attempts, err)
}

func (r *unitRun) drainLocked() {
	for {
		page, ok := r.buffer[r.next]
		if !ok {
			return
		}

		delete(r.buffer, r.next)
		r.next++

		if page == nil {
			continue
		}

		r.emitted++
		if r.emit != nil {
			r.emit(*page)
		}
	}
}

func (r *unitRun) addBytes(delta int64) {
	r.mu.Lock()
	r.bytes += delta
	r.prog.Update(r.settled, len(r.tasks), r.bytes)
	r.mu.Unlock()
}

// pause sleeps through a backoff delay, cancellation permitting.
func (r *unitRun) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func sortFailures(failures []PageFailure) {
	sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })
}

type noopProgress struct{}

func (noopProgress) SetTotal(int)           {}
func (noopProgress) Update(int, int, int64) {}
func (noopProgress) MarkDone()              {}

func copyWithProgress(dst io.Writer, src io.Reader, progress func(done int64)) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		nr, er := src.Read(buf)

		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])

			if nw > 0 {
				total += int64(nw)
				if progress != nil {
					progress(total)
				}
			}

			if ew != nil {
				return total, ew
			}
			if nr != nw {
				return total, io.ErrShortWrite
			}
		}

		if er != nil {
			if er == io.EOF {
				break
			}
			return total, er
		}
	}

	return total, nil
}
