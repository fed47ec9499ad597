package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"attendance-sync-api/internal/gateway"
	"attendance-sync-api/internal/metrics"
	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/normalize"
	"attendance-sync-api/internal/queue"
	"attendance-sync-api/internal/repository"
	apperrors "attendance-sync-api/pkg/errors"
	"attendance-sync-api/pkg/validation"

	"github.com/rs/zerolog"
)

const (
	engineEmployees  = "employees"
	engineAttendance = "attendance"

	rawSnippetLen   = 1000
	errorSnippetLen = 500
)

// Fetcher reads device data from the gateway.
type Fetcher interface {
	Employees(ctx context.Context, dev model.DeviceDescriptor) (*gateway.Response, error)
	Attendance(ctx context.Context, dev model.DeviceDescriptor, from, to *time.Time) (*gateway.Response, error)
}

// DeviceResolver lists the devices of a pass.
type DeviceResolver interface {
	Resolve(ctx context.Context, machineNumber *int) ([]model.DeviceDescriptor, error)
}

// Invalidator drops cached reads after a pass changed stored data.
type Invalidator interface {
	Invalidate()
}

// Alerter is told about passes in which at least one device failed.
type Alerter interface {
	SyncFailed(ctx context.Context, report Report) error
}

// Deps are the collaborators shared by both engines. Queue, Metrics, Cache
// and Alerter are optional.
type Deps struct {
	Devices DeviceResolver
	Gateway Fetcher
	Queue   *queue.Queue
	Metrics *metrics.Metrics
	Cache   Invalidator
	Alerter Alerter
	Logger  zerolog.Logger
}

// Options tune one engine.
type Options struct {
	// BulkSize is the chunk size of buffered writes.
	BulkSize int
	// Delay paces device requests: it is the queue cooldown after each
	// request, or a sleep between devices when no queue is configured.
	Delay time.Duration
	// Debug logs payload shapes and raw snippets.
	Debug bool
	// TimeOffset is subtracted from punch times before they are keyed and
	// stored. Attendance only.
	TimeOffset time.Duration
}

// RunResult is what one call to Run produced.
type RunResult struct {
	// Skipped is set when another pass of the same engine was in progress.
	Skipped bool
	Stats   model.SyncStats
}

// Report summarises a pass with device failures.
type Report struct {
	Engine         string
	Trigger        model.Trigger
	DevicesQueried int
	DevicesFailed  int
	Failures       []DeviceFailure
	Took           time.Duration
}

// DeviceFailure names a device and why it failed.
type DeviceFailure struct {
	Device model.DeviceDescriptor
	Error  string
}

// engine holds what both sync engines share: the single-flight flag, the
// last pass results and the per-device plumbing.
type engine struct {
	name   string
	deps   Deps
	opts   Options
	logger zerolog.Logger

	running atomic.Bool

	mu    sync.RWMutex
	stats model.SyncStats
	raw   []model.RawResponse
}

func newEngine(name string, deps Deps, opts Options) engine {
	if opts.BulkSize < 1 {
		opts.BulkSize = 500
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	return engine{
		name:   name,
		deps:   deps,
		opts:   opts,
		logger: deps.Logger.With().Str("engine", name).Logger(),
	}
}

// Stats returns the stats of the last completed pass.
func (e *engine) Stats() model.SyncStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.stats
	if e.stats.Skipped != nil {
		s.Skipped = make(map[string]int, len(e.stats.Skipped))
		for k, v := range e.stats.Skipped {
			s.Skipped[k] = v
		}
	}
	return s
}

// LastRawResponses returns the payload diagnostics of the last pass.
func (e *engine) LastRawResponses() []model.RawResponse {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]model.RawResponse(nil), e.raw...)
}

// Running reports whether a pass is in progress.
func (e *engine) Running() bool {
	return e.running.Load()
}

func (e *engine) acquire(trigger model.Trigger) bool {
	if e.running.CompareAndSwap(false, true) {
		return true
	}
	e.logger.Warn().Str("trigger", string(trigger)).Msg("sync skipped, previous run still in progress")
	e.deps.Metrics.RecordSyncRun(e.name, string(trigger), 0, true, nil)
	return false
}

func (e *engine) release() {
	e.running.Store(false)
}

func checkMachineNumber(machineNumber *int) error {
	if machineNumber == nil {
		return nil
	}
	if err := validation.ValidateMachineNumber(*machineNumber); err != nil {
		return apperrors.BadRequestError(err.Error())
	}
	return nil
}

// propagates reports whether a pass error reaches the caller. Everything
// else is logged and the pass ends normally.
func propagates(err error) bool {
	return apperrors.IsCode(err, apperrors.ErrorCodeBadRequest) || apperrors.IsCode(err, apperrors.ErrorCodeNotFound)
}

// fetch runs call through the request queue when one is configured.
func (e *engine) fetch(ctx context.Context, dev model.DeviceDescriptor, call func(context.Context) (*gateway.Response, error)) (*gateway.Response, error) {
	if e.deps.Queue == nil {
		return call(ctx)
	}
	delay := e.opts.Delay
	return queue.Run(ctx, e.deps.Queue, queue.Options{
		Label: fmt.Sprintf("%s:%s", e.name, dev),
		Delay: &delay,
	}, call)
}

// pause sleeps between devices when requests are not paced by the queue.
func (e *engine) pause(ctx context.Context, attempted bool, index, total int) {
	if e.deps.Queue != nil || !attempted || index >= total-1 || e.opts.Delay <= 0 {
		return
	}
	e.logger.Info().Dur("delay", e.opts.Delay).Msg("waiting before next device request")

	t := time.NewTimer(e.opts.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (e *engine) deviceFailed(dev model.DeviceDescriptor, err error) DeviceFailure {
	ev := e.logger.Warn().Err(err).Str("device", dev.String())

	var se *gateway.StatusError
	if errors.As(err, &se) {
		ev = ev.Int("status", se.StatusCode).Str("body", normalize.Snippet(se.Body, errorSnippetLen))
	}
	ev.Msg("device sync failed")

	e.deps.Metrics.RecordDevice(e.name, err)
	return DeviceFailure{Device: dev, Error: err.Error()}
}

func (e *engine) decode(dev model.DeviceDescriptor, resp *gateway.Response) (interface{}, model.RawResponse) {
	decoded, err := normalize.Decode(resp.Body)
	if err != nil {
		// an undecodable body is kept as text, the way it arrived
		decoded = string(resp.Body)
		e.logger.Warn().Err(err).Str("device", dev.String()).
			Str("preview", normalize.Snippet(string(resp.Body), 200)).
			Msg("gateway payload is not JSON")
	}

	raw := rawResponse(dev, resp, decoded)
	if e.opts.Debug {
		e.logger.Debug().Str("device", dev.String()).Int("status", resp.Status).
			Str("shape", normalize.DescribeShape(decoded)).
			Str("raw_type", raw.RawType).Int("raw_length", raw.RawLength).
			Str("raw_snippet", raw.RawSnippet).
			Msg("gateway response")
	}
	return decoded, raw
}

func rawResponse(dev model.DeviceDescriptor, resp *gateway.Response, decoded interface{}) model.RawResponse {
	raw := model.RawResponse{
		MachineNumber: dev.MachineNumber,
		IP:            dev.IP,
		Port:          dev.Port,
		Status:        resp.Status,
	}

	switch v := decoded.(type) {
	case string:
		raw.RawType = "string"
		raw.RawSnippet = normalize.Snippet(v, rawSnippetLen)
		raw.RawLength = len([]rune(v))
	case []interface{}:
		raw.RawType = "array"
		raw.RawSnippet = normalize.Snippet(string(resp.Body), rawSnippetLen)
		raw.RawLength = len(v)
	default:
		raw.RawType = normalize.DescribeShape(decoded)
		if _, ok := decoded.(map[string]interface{}); ok {
			raw.RawType = "object"
		}
		raw.RawSnippet = normalize.Snippet(string(resp.Body), rawSnippetLen)
		raw.RawLength = len([]rune(raw.RawSnippet))
	}
	return raw
}

func (e *engine) record(stats model.SyncStats, raw []model.RawResponse) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = stats
	e.raw = raw
}

func (e *engine) alert(ctx context.Context, report Report) {
	if e.deps.Alerter == nil || report.DevicesFailed == 0 {
		return
	}
	if err := e.deps.Alerter.SyncFailed(ctx, report); err != nil {
		e.logger.Warn().Err(err).Msg("failed to send sync alert")
	}
}

// batcher buffers records and writes them in chunks of size.
type batcher[T any] struct {
	size  int
	buf   []T
	write func(ctx context.Context, chunk []T) (repository.BulkResult, error)
	total repository.BulkResult
	// onChunk is called after each successful write.
	onChunk func(size int, res repository.BulkResult, took time.Duration)
}

func (b *batcher[T]) add(ctx context.Context, item T) error {
	b.buf = append(b.buf, item)
	if len(b.buf) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher[T]) flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	chunk := b.buf
	b.buf = nil

	start := time.Now()
	res, err := b.write(ctx, chunk)
	b.total.Add(res)
	if err != nil {
		return err
	}
	if b.onChunk != nil {
		b.onChunk(len(chunk), res, time.Since(start))
	}
	return nil
}

func durationMs(d time.Duration) int64 {
	return d.Milliseconds()
}

func intPtr(n int) *int {
	return &n
}
