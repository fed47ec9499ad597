package sync

import (
	"context"
	"strings"
	"time"

	"attendance-sync-api/internal/gateway"
	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/normalize"
	"attendance-sync-api/internal/repository"
	apperrors "attendance-sync-api/pkg/errors"
	"attendance-sync-api/pkg/validation"
)

// AttendanceEngine copies device punches into the attendance store. Known
// punches are left untouched.
type AttendanceEngine struct {
	engine
	write func(ctx context.Context, chunk []model.Attendance) (repository.BulkResult, error)
	bulk  bool
}

// Window scopes an attendance pass.
type Window struct {
	MachineNumber *int
	From          *time.Time
	To            *time.Time
}

// NewAttendanceEngine creates the punch engine. Writers that also implement
// repository.BulkAttendanceWriter get chunked writes.
func NewAttendanceEngine(deps Deps, writer repository.AttendanceWriter, opts Options) *AttendanceEngine {
	e := &AttendanceEngine{engine: newEngine(engineAttendance, deps, opts)}

	if bw, ok := writer.(repository.BulkAttendanceWriter); ok {
		e.bulk = true
		e.write = bw.InsertManyIfNotExists
	} else {
		e.opts.BulkSize = 1
		e.write = func(ctx context.Context, chunk []model.Attendance) (repository.BulkResult, error) {
			var res repository.BulkResult
			for _, rec := range chunk {
				inserted, err := writer.InsertIfNotExists(ctx, rec)
				if err != nil {
					return res, err
				}
				if inserted {
					res.Inserted++
				} else {
					res.Matched++
				}
			}
			return res, nil
		}
	}
	return e
}

// ParseWindow validates the manual trigger parameters. from and to accept
// RFC3339 or YYYY-MM-DD; empty means unbounded. A bare date in to covers the
// whole day.
func ParseWindow(machineNumber *int, from, to string) (Window, error) {
	if err := checkMachineNumber(machineNumber); err != nil {
		return Window{}, err
	}

	w := Window{MachineNumber: machineNumber}
	if s := strings.TrimSpace(from); s != "" {
		t, err := validation.ParseDate(s)
		if err != nil {
			return Window{}, apperrors.BadRequestError("invalid from: " + err.Error())
		}
		w.From = &t
	}
	if s := strings.TrimSpace(to); s != "" {
		t, err := validation.ParseDate(s)
		if err != nil {
			return Window{}, apperrors.BadRequestError("invalid to: " + err.Error())
		}
		if len(s) == len("2006-01-02") {
			t = validation.EndOfDay(t)
		}
		w.To = &t
	}
	if w.From != nil && w.To != nil && w.From.After(*w.To) {
		return Window{}, apperrors.BadRequestError("from must not be after to")
	}
	return w, nil
}

// TriggerManual validates the window and runs a pass detached from ctx
// cancellation.
func (e *AttendanceEngine) TriggerManual(ctx context.Context, machineNumber *int, from, to string) (RunResult, error) {
	w, err := ParseWindow(machineNumber, from, to)
	if err != nil {
		return RunResult{}, err
	}
	return e.Run(context.WithoutCancel(ctx), model.TriggerManual, w)
}

// Run performs one pass over the window. It returns at once with Skipped set
// when a pass is already in progress. Only an out-of-range or unknown machine
// number is returned as an error.
func (e *AttendanceEngine) Run(ctx context.Context, trigger model.Trigger, w Window) (RunResult, error) {
	if !e.acquire(trigger) {
		return RunResult{Skipped: true}, nil
	}
	defer e.release()

	if err := checkMachineNumber(w.MachineNumber); err != nil {
		return RunResult{}, err
	}

	started := time.Now()
	p := &attendancePass{skipped: normalize.Tally{}}
	err := e.pass(ctx, w, p)
	took := time.Since(started)

	now := time.Now().UTC()
	stats := model.SyncStats{
		LastRunAt:      &now,
		LastTrigger:    trigger,
		Processed:      p.stored.Inserted + p.stored.Matched,
		DevicesQueried: p.devices,
		DevicesFailed:  len(p.failures),
		DurationMs:     durationMs(took),
		Inserted:       p.stored.Inserted,
		Matched:        p.stored.Matched,
		Skipped:        p.skipped.Counts(),
		From:           w.From,
		To:             w.To,
	}
	if w.MachineNumber != nil {
		stats.LastMachineNumber = intPtr(*w.MachineNumber)
	}
	e.record(stats, p.raw)

	e.deps.Metrics.RecordSyncRun(e.name, string(trigger), took, false, err)

	if err != nil {
		e.logger.Error().Err(err).Str("trigger", string(trigger)).Msg("attendance sync failed")
		if propagates(err) {
			return RunResult{Stats: stats}, err
		}
		return RunResult{Stats: stats}, nil
	}

	e.logger.Info().Str("trigger", string(trigger)).
		Int("devices", p.devices).
		Int("failed", len(p.failures)).
		Int("inserted", p.stored.Inserted).
		Int("matched", p.stored.Matched).
		Int("skipped", p.skipped.Total()).
		Dur("took", took).
		Msg("attendance sync finished")

	e.alert(ctx, Report{
		Engine:         e.name,
		Trigger:        trigger,
		DevicesQueried: p.devices,
		DevicesFailed:  len(p.failures),
		Failures:       p.failures,
		Took:           took,
	})

	return RunResult{Stats: stats}, nil
}

type attendancePass struct {
	devices  int
	stored   repository.BulkResult
	skipped  normalize.Tally
	raw      []model.RawResponse
	failures []DeviceFailure
}

func (e *AttendanceEngine) pass(ctx context.Context, w Window, p *attendancePass) error {
	devices, err := e.deps.Devices.Resolve(ctx, w.MachineNumber)
	if err != nil {
		return err
	}
	p.devices = len(devices)

	for i, dev := range devices {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempted, err := e.syncDevice(ctx, dev, w, p)
		if err != nil {
			p.failures = append(p.failures, e.deviceFailed(dev, err))
		} else {
			e.deps.Metrics.RecordDevice(e.name, nil)
		}
		e.pause(ctx, attempted, i, len(devices))
	}
	return nil
}

func (e *AttendanceEngine) syncDevice(ctx context.Context, dev model.DeviceDescriptor, w Window, p *attendancePass) (bool, error) {
	resp, err := e.fetch(ctx, dev, func(ctx context.Context) (*gateway.Response, error) {
		return e.deps.Gateway.Attendance(ctx, dev, w.From, w.To)
	})
	if err != nil {
		return true, err
	}

	decoded, raw := e.decode(dev, resp)
	p.raw = append(p.raw, raw)

	items := normalize.ExtractItems(decoded)
	if len(items) == 0 {
		e.logger.Warn().Str("device", dev.String()).Str("shape", normalize.DescribeShape(decoded)).Msg("gateway returned no attendance records")
		return true, nil
	}
	e.logger.Info().Str("device", dev.String()).Int("records", len(items)).Msg("gateway returned attendance records")

	rejected := normalize.Tally{}
	b := &batcher[model.Attendance]{
		size:  e.opts.BulkSize,
		write: e.write,
	}
	if e.bulk {
		b.onChunk = func(size int, res repository.BulkResult, took time.Duration) {
			e.logger.Info().Str("device", dev.String()).Int("size", size).
				Int("inserted", res.Inserted).Int("matched", res.Matched).Dur("took", took).
				Msg("chunk saved")
		}
	}

	started := time.Now()
	for _, item := range items {
		rec, reason := normalize.NormalizeAttendance(item)
		if reason != normalize.ReasonNone {
			rejected.Add(reason)
			continue
		}
		rec.AttendanceTime = rec.AttendanceTime.Add(-e.opts.TimeOffset)
		if err := b.add(ctx, rec); err != nil {
			p.stored.Add(b.total)
			return true, err
		}
	}
	err = b.flush(ctx)
	p.stored.Add(b.total)
	p.skipped.Merge(rejected)
	if err != nil {
		return true, err
	}

	e.deps.Metrics.AddRecords(e.name, "inserted", b.total.Inserted)
	e.deps.Metrics.AddRecords(e.name, "matched", b.total.Matched)
	e.deps.Metrics.AddRecords(e.name, "skipped", rejected.Total())

	if rejected.Total() > 0 {
		e.logger.Warn().Str("device", dev.String()).Str("skipped", rejected.String()).Msg("attendance records skipped")
	}
	e.logger.Info().Str("device", dev.String()).
		Int("inserted", b.total.Inserted).Int("matched", b.total.Matched).
		Dur("took", time.Since(started)).
		Msg("attendance saved")
	return true, nil
}
