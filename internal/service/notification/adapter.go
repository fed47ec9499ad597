package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"attendance-sync-api/internal/notification"
	syncer "attendance-sync-api/internal/sync"
)

// ServiceAdapter adapts the notification client to the sync engines' Alerter interface
type ServiceAdapter struct {
	client notification.Notifier
}

var _ syncer.Alerter = (*ServiceAdapter)(nil)

// NewServiceAdapter creates a new notification service adapter
func NewServiceAdapter(client notification.Notifier) *ServiceAdapter {
	return &ServiceAdapter{
		client: client,
	}
}

// SyncFailed posts a summary of a pass in which devices failed.
func (a *ServiceAdapter) SyncFailed(ctx context.Context, report syncer.Report) error {
	names := make([]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		names = append(names, f.Device.String())
	}

	message := fmt.Sprintf("%s sync (%s): %d of %d devices failed",
		report.Engine, report.Trigger, report.DevicesFailed, report.DevicesQueried)
	if len(names) > 0 {
		message += ": " + strings.Join(names, ", ")
	}
	if len(message) > 1000 {
		message = message[:997] + "..."
	}

	metadata := map[string]string{
		"trigger":         string(report.Trigger),
		"devices_queried": strconv.Itoa(report.DevicesQueried),
		"devices_failed":  strconv.Itoa(report.DevicesFailed),
		"duration_ms":     strconv.FormatInt(report.Took.Milliseconds(), 10),
	}
	if len(report.Failures) > 0 {
		metadata["first_error"] = report.Failures[0].Error
	}

	return a.client.SendNotificationWithContext(ctx, notification.Notification{
		Level:    mapNotificationLevel(report),
		Engine:   report.Engine,
		Message:  message,
		Metadata: metadata,
	})
}

// mapNotificationLevel escalates to critical when no device answered
func mapNotificationLevel(report syncer.Report) notification.NotificationLevel {
	switch {
	case report.DevicesFailed == 0:
		return notification.LevelInfo
	case report.DevicesFailed >= report.DevicesQueried:
		return notification.LevelCritical
	default:
		return notification.LevelWarning
	}
}
