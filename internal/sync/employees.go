package sync

import (
	"context"
	"time"

	"attendance-sync-api/internal/gateway"
	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/normalize"
	"attendance-sync-api/internal/repository"
)

// EmployeeEngine copies device rosters into the employee store.
type EmployeeEngine struct {
	engine
	write func(ctx context.Context, chunk []model.ExternalEmployee) (repository.BulkResult, error)
	bulk  bool

	lastEmployees []model.SyncedEmployee
}

// ManualEmployeeResult is the outcome of an on-demand roster pass.
type ManualEmployeeResult struct {
	Skipped      bool
	Stats        model.SyncStats
	Employees    []model.SyncedEmployee
	RawResponses []model.RawResponse
}

// NewEmployeeEngine creates the roster engine. Writers that also implement
// repository.BulkEmployeeWriter get chunked writes.
func NewEmployeeEngine(deps Deps, writer repository.EmployeeWriter, opts Options) *EmployeeEngine {
	e := &EmployeeEngine{engine: newEngine(engineEmployees, deps, opts)}

	if bw, ok := writer.(repository.BulkEmployeeWriter); ok {
		e.bulk = true
		e.write = bw.BulkUpsertExternal
	} else {
		e.opts.BulkSize = 1
		e.write = func(ctx context.Context, chunk []model.ExternalEmployee) (repository.BulkResult, error) {
			var res repository.BulkResult
			for _, rec := range chunk {
				inserted, err := writer.UpsertExternal(ctx, rec)
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

// LastEmployees returns the roster entries seen in the last pass.
func (e *EmployeeEngine) LastEmployees() []model.SyncedEmployee {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]model.SyncedEmployee(nil), e.lastEmployees...)
}

// TriggerManual runs a pass for one device or for all of them. The pass is
// detached from ctx cancellation so a dropped client does not abort it.
func (e *EmployeeEngine) TriggerManual(ctx context.Context, machineNumber *int) (ManualEmployeeResult, error) {
	trigger := model.TriggerManual
	if machineNumber != nil {
		trigger = model.TriggerManualDevice
	}

	res, err := e.Run(context.WithoutCancel(ctx), trigger, machineNumber)
	if err != nil {
		return ManualEmployeeResult{}, err
	}

	employees := e.LastEmployees()
	if machineNumber != nil {
		scoped := employees[:0]
		for _, emp := range employees {
			if emp.MachineNumber == *machineNumber {
				scoped = append(scoped, emp)
			}
		}
		employees = scoped
	}

	return ManualEmployeeResult{
		Skipped:      res.Skipped,
		Stats:        e.Stats(),
		Employees:    employees,
		RawResponses: e.LastRawResponses(),
	}, nil
}

// Run performs one pass. It returns at once with Skipped set when a pass is
// already in progress. Only an out-of-range or unknown machine number is
// returned as an error.
func (e *EmployeeEngine) Run(ctx context.Context, trigger model.Trigger, machineNumber *int) (RunResult, error) {
	if !e.acquire(trigger) {
		return RunResult{Skipped: true}, nil
	}
	defer e.release()

	if err := checkMachineNumber(machineNumber); err != nil {
		return RunResult{}, err
	}

	started := time.Now()
	p := &employeePass{}
	err := e.pass(ctx, machineNumber, p)
	took := time.Since(started)

	now := time.Now().UTC()
	stats := model.SyncStats{
		LastRunAt:      &now,
		LastTrigger:    trigger,
		Processed:      p.processed,
		DevicesQueried: p.devices,
		DevicesFailed:  len(p.failures),
		DurationMs:     durationMs(took),
	}
	if machineNumber != nil {
		stats.LastMachineNumber = intPtr(*machineNumber)
	}

	e.record(stats, p.raw)
	e.mu.Lock()
	e.lastEmployees = p.employees
	e.mu.Unlock()

	e.deps.Metrics.RecordSyncRun(e.name, string(trigger), took, false, err)

	if p.processed > 0 && e.deps.Cache != nil {
		e.deps.Cache.Invalidate()
	}

	if err != nil {
		e.logger.Error().Err(err).Str("trigger", string(trigger)).Msg("employee sync failed")
		if propagates(err) {
			return RunResult{Stats: stats}, err
		}
		return RunResult{Stats: stats}, nil
	}

	ev := e.logger.Info().Str("trigger", string(trigger)).
		Int("processed", p.processed).
		Int("devices", p.devices).
		Int("failed", len(p.failures)).
		Dur("took", took)
	if machineNumber != nil {
		ev = ev.Int("machine_number", *machineNumber)
	}
	ev.Msg("employee sync finished")

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

type employeePass struct {
	processed int
	devices   int
	employees []model.SyncedEmployee
	raw       []model.RawResponse
	failures  []DeviceFailure
}

func (e *EmployeeEngine) pass(ctx context.Context, machineNumber *int, p *employeePass) error {
	devices, err := e.deps.Devices.Resolve(ctx, machineNumber)
	if err != nil {
		return err
	}
	p.devices = len(devices)

	for i, dev := range devices {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempted, err := e.syncDevice(ctx, dev, p)
		if err != nil {
			p.failures = append(p.failures, e.deviceFailed(dev, err))
		} else {
			e.deps.Metrics.RecordDevice(e.name, nil)
		}
		e.pause(ctx, attempted, i, len(devices))
	}
	return nil
}

// syncDevice fetches and stores one roster. attempted reports whether a
// request was sent.
func (e *EmployeeEngine) syncDevice(ctx context.Context, dev model.DeviceDescriptor, p *employeePass) (bool, error) {
	if e.opts.Debug {
		e.logger.Debug().Str("device", dev.String()).Msg("requesting roster")
	}

	resp, err := e.fetch(ctx, dev, func(ctx context.Context) (*gateway.Response, error) {
		return e.deps.Gateway.Employees(ctx, dev)
	})
	if err != nil {
		return true, err
	}

	decoded, raw := e.decode(dev, resp)
	p.raw = append(p.raw, raw)

	items := normalize.ExtractItems(decoded)
	if len(items) == 0 {
		e.logger.Warn().Str("device", dev.String()).Str("shape", normalize.DescribeShape(decoded)).Msg("gateway returned no roster entries")
		return true, nil
	}

	rejected := normalize.Tally{}
	var seen []model.SyncedEmployee
	b := &batcher[model.ExternalEmployee]{
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

	for _, item := range items {
		rec, reason := normalize.NormalizeEmployee(item)
		if reason != normalize.ReasonNone {
			rejected.Add(reason)
			continue
		}
		if err := b.add(ctx, rec); err != nil {
			p.processed += b.total.Inserted + b.total.Matched
			return true, err
		}
		seen = append(seen, model.SyncedEmployee{
			ExternalID:    rec.ExternalID,
			Name:          rec.Name,
			IsActive:      rec.IsActive,
			MachineNumber: dev.MachineNumber,
		})
	}
	err = b.flush(ctx)
	p.processed += b.total.Inserted + b.total.Matched
	if err != nil {
		return true, err
	}

	p.employees = append(p.employees, seen...)
	e.deps.Metrics.AddRecords(e.name, "inserted", b.total.Inserted)
	e.deps.Metrics.AddRecords(e.name, "matched", b.total.Matched)
	e.deps.Metrics.AddRecords(e.name, "skipped", rejected.Total())

	if rejected.Total() > 0 {
		e.logger.Warn().Str("device", dev.String()).Str("skipped", rejected.String()).Msg("roster entries skipped")
	}
	e.logger.Info().Str("device", dev.String()).Int("received", len(items)).
		Int("inserted", b.total.Inserted).Int("matched", b.total.Matched).
		Msg("roster saved")
	return true, nil
}
