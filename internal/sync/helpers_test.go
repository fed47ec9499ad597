package sync

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"attendance-sync-api/internal/gateway"
	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	apperrors "attendance-sync-api/pkg/errors"

	"github.com/rs/zerolog"
)

var discard = zerolog.New(io.Discard)

type mockFetcher struct {
	EmployeesFunc  func(ctx context.Context, dev model.DeviceDescriptor) (*gateway.Response, error)
	AttendanceFunc func(ctx context.Context, dev model.DeviceDescriptor, from, to *time.Time) (*gateway.Response, error)

	mu    sync.Mutex
	calls []model.DeviceDescriptor
}

func (m *mockFetcher) Employees(ctx context.Context, dev model.DeviceDescriptor) (*gateway.Response, error) {
	m.track(dev)
	return m.EmployeesFunc(ctx, dev)
}

func (m *mockFetcher) Attendance(ctx context.Context, dev model.DeviceDescriptor, from, to *time.Time) (*gateway.Response, error) {
	m.track(dev)
	return m.AttendanceFunc(ctx, dev, from, to)
}

func (m *mockFetcher) track(dev model.DeviceDescriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, dev)
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// staticDevices resolves to a fixed device list; machine numbers not in the
// list are unknown.
type staticDevices []model.DeviceDescriptor

func (s staticDevices) Resolve(_ context.Context, machineNumber *int) ([]model.DeviceDescriptor, error) {
	if machineNumber == nil {
		return s, nil
	}
	for _, d := range s {
		if d.MachineNumber == *machineNumber {
			return []model.DeviceDescriptor{d}, nil
		}
	}
	return nil, apperrors.NotFoundError("device")
}

func device(n int) model.DeviceDescriptor {
	return model.DeviceDescriptor{IP: "192.168.1.111", Port: 4370, MachineNumber: n}
}

func jsonResponse(body string) *gateway.Response {
	return &gateway.Response{Status: 200, ContentType: "application/json", Body: []byte(body)}
}

type countingCache struct {
	mu    sync.Mutex
	count int
}

func (c *countingCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

type recordingAlerter struct {
	reports []Report
}

func (a *recordingAlerter) SyncFailed(_ context.Context, r Report) error {
	a.reports = append(a.reports, r)
	return nil
}

var errChunkWrite = errors.New("chunk write failed")

// bulkAttendanceStore wraps the memory store with a chunked write path and
// remembers the chunk sizes. failChunk, when set, is the 1-based chunk that
// fails without writing anything.
type bulkAttendanceStore struct {
	*repository.MemoryAttendanceStore
	chunks    []int
	failChunk int
}

func (s *bulkAttendanceStore) InsertManyIfNotExists(ctx context.Context, batch []model.Attendance) (repository.BulkResult, error) {
	s.chunks = append(s.chunks, len(batch))
	if len(s.chunks) == s.failChunk {
		return repository.BulkResult{}, errChunkWrite
	}
	var res repository.BulkResult
	for _, a := range batch {
		inserted, err := s.InsertIfNotExists(ctx, a)
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

type bulkEmployeeStore struct {
	*repository.MemoryEmployeeStore
	chunks    []int
	failChunk int
}

func (s *bulkEmployeeStore) BulkUpsertExternal(ctx context.Context, batch []model.ExternalEmployee) (repository.BulkResult, error) {
	s.chunks = append(s.chunks, len(batch))
	if len(s.chunks) == s.failChunk {
		return repository.BulkResult{}, errChunkWrite
	}
	var res repository.BulkResult
	for _, e := range batch {
		inserted, err := s.UpsertExternal(ctx, e)
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
