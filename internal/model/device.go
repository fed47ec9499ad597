package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Device is a registered attendance terminal reachable through the gateway.
type Device struct {
	ID            uuid.UUID `json:"id"`
	IP            string    `json:"ip"`
	Port          int       `json:"port"`
	MachineNumber int       `json:"machineNumber"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DeviceDescriptor is the addressing triple a sync run needs for one device.
type DeviceDescriptor struct {
	IP            string
	Port          int
	MachineNumber int
}

// Descriptor returns the addressing triple of the device.
func (d Device) Descriptor() DeviceDescriptor {
	return DeviceDescriptor{IP: d.IP, Port: d.Port, MachineNumber: d.MachineNumber}
}

// Complete reports whether every addressing field is set.
func (d DeviceDescriptor) Complete() bool {
	return d.IP != "" && d.Port > 0 && d.MachineNumber > 0
}

func (d DeviceDescriptor) String() string {
	return fmt.Sprintf("%s:%d#%d", d.IP, d.Port, d.MachineNumber)
}

// DeviceFilter holds list filters for devices.
type DeviceFilter struct {
	IP            string
	Port          *int
	MachineNumber *int
}
