package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"attendance-sync-api/internal/model"

	"github.com/goccy/go-json"
)

// Reason explains why an item was not turned into a record.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonInvalidMachine Reason = "invalid_machine"
	ReasonInvalidUser    Reason = "invalid_user"
	ReasonInvalidTime    Reason = "invalid_time"
	ReasonInvalidID      Reason = "invalid_id"
	ReasonInvalidName    Reason = "invalid_name"
)

var allDigits = regexp.MustCompile(`^\d+$`)

// NormalizeAttendance maps a device item onto an attendance record. The
// checks run machine, user, then time; the first failure is the reason.
func NormalizeAttendance(item map[string]interface{}) (model.Attendance, Reason) {
	raw, _ := Pick(item, AttendanceMachineAliases)
	machine, ok := Integer(raw)
	if !ok {
		return model.Attendance{}, ReasonInvalidMachine
	}

	raw, _ = Pick(item, AttendanceUserAliases)
	user, ok := Integer(raw)
	if !ok {
		return model.Attendance{}, ReasonInvalidUser
	}

	raw, _ = Pick(item, AttendanceTimeAliases)
	at, ok := Timestamp(raw)
	if !ok {
		return model.Attendance{}, ReasonInvalidTime
	}

	mode, _ := Pick(item, AccessModeAliases)
	status, _ := Pick(item, AttendanceStatusAliases)

	return model.Attendance{
		MachineNumber:    int(machine),
		UserID:           user,
		AttendanceTime:   at.UTC(),
		AccessMode:       Text(mode),
		AttendanceStatus: Text(status),
	}, ReasonNone
}

// NormalizeEmployee maps a roster item onto an external employee. The id must
// be a whole number or a string of digits and the name a non-empty string.
// A missing department is left empty for the store to default.
func NormalizeEmployee(item map[string]interface{}) (model.ExternalEmployee, Reason) {
	raw, _ := Pick(item, EmployeeIDAliases)
	id, ok := employeeID(raw)
	if !ok {
		return model.ExternalEmployee{}, ReasonInvalidID
	}

	raw, _ = Pick(item, EmployeeNameAliases)
	name, ok := raw.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return model.ExternalEmployee{}, ReasonInvalidName
	}

	active, _ := Pick(item, EmployeeActiveAliases)
	dept, _ := Pick(item, EmployeeDepartmentAliases)
	department, _ := dept.(string)

	return model.ExternalEmployee{
		ExternalID: id,
		Name:       name,
		IsActive:   Truthy(active),
		Department: strings.TrimSpace(department),
	}, ReasonNone
}

func employeeID(v interface{}) (int64, bool) {
	switch id := v.(type) {
	case string:
		if !allDigits.MatchString(id) {
			return 0, false
		}
		n, err := strconv.ParseInt(id, 10, 64)
		return n, err == nil
	case json.Number, float64, int, int64:
		return Integer(id)
	}
	return 0, false
}

// Tally counts rejected items per reason.
type Tally map[Reason]int

// Add records one rejection.
func (t Tally) Add(r Reason) {
	if r != ReasonNone {
		t[r]++
	}
}

// Merge adds every count of o.
func (t Tally) Merge(o Tally) {
	for r, n := range o {
		t[r] += n
	}
}

// Total is the number of rejected items.
func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// Counts returns the tally keyed by reason name.
func (t Tally) Counts() map[string]int {
	out := make(map[string]int, len(t))
	for r, n := range t {
		out[string(r)] = n
	}
	return out
}

// String renders the tally in stable order, e.g. "invalid_time=2 invalid_user=1".
func (t Tally) String() string {
	parts := make([]string, 0, len(t))
	for r, n := range t {
		parts = append(parts, string(r)+"="+strconv.Itoa(n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
