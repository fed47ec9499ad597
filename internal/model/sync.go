package model

import "time"

// Trigger names what started a sync run.
type Trigger string

const (
	TriggerStartup      Trigger = "startup"
	TriggerInterval     Trigger = "interval"
	TriggerCron         Trigger = "cron"
	TriggerManual       Trigger = "manual"
	TriggerManualDevice Trigger = "manual-device"
)

// SyncStats describes the most recent run of a sync engine. It lives in memory only.
type SyncStats struct {
	LastRunAt         *time.Time `json:"lastRunAt"`
	LastTrigger       Trigger    `json:"lastTrigger,omitempty"`
	Processed         int        `json:"processed"`
	DevicesQueried    int        `json:"devicesQueried"`
	DevicesFailed     int        `json:"devicesFailed"`
	DurationMs        int64      `json:"durationMs"`
	LastMachineNumber *int       `json:"lastMachineNumber,omitempty"`

	// Attendance runs only
	Inserted int            `json:"inserted,omitempty"`
	Matched  int            `json:"matched,omitempty"`
	Skipped  map[string]int `json:"skipped,omitempty"`
	From     *time.Time     `json:"from,omitempty"`
	To       *time.Time     `json:"to,omitempty"`
}

// RawResponse keeps a truncated copy of what a device returned, for diagnostics.
type RawResponse struct {
	MachineNumber int    `json:"machineNumber"`
	IP            string `json:"ip"`
	Port          int    `json:"port"`
	Status        int    `json:"status"`
	RawType       string `json:"rawType"`
	RawSnippet    string `json:"rawSnippet"`
	RawLength     int    `json:"rawLength"`
}

// SyncedEmployee is a roster entry seen during the last employee sync.
type SyncedEmployee struct {
	ExternalID    int64  `json:"externalId"`
	Name          string `json:"name"`
	IsActive      bool   `json:"isActive"`
	MachineNumber int    `json:"machineNumber"`
}
