// Package normalize maps heterogeneous device payloads onto canonical records.
//
// Field lookup is table driven: every canonical field has an ordered list of
// accepted spellings, and the first one present with a non-null value wins.
package normalize

// Attendance field aliases.
var (
	AttendanceMachineAliases = []string{
		"attendanceMachineID", "AttendanceMachineID", "attendance_machine_id",
		"machineNumber", "MachineNumber", "machine_number",
		"machineNo", "machine_no",
		"deviceId", "deviceID", "device_id",
	}

	AttendanceUserAliases = []string{
		"userId", "userID", "UserID", "UserId", "user_id",
		"uid", "pin", "PIN", "Pin",
		"employeeId", "employee_id",
		"enrollId", "enroll_id",
		"empId", "emp_id",
		"EnrollNumber", "enrollNumber", "enroll_number",
		"enrollNo", "enroll_no",
		"empCode", "emp_code",
		"employeeCode", "employee_code",
		"cardNo", "card_no",
		"cardNumber", "card_number",
	}

	AttendanceTimeAliases = []string{
		"attendanceTime", "AttendanceTime", "attendance_time",
		"timestamp", "time",
		"dateTime", "date_time", "datetime",
		"checkTime", "check_time",
		"attTime", "att_time",
		"punchTime", "punch_time",
	}

	AccessModeAliases = []string{
		"accessMode", "AccessMode", "access_mode",
		"mode",
		"verifyType", "verify_type",
		"ioMode", "io_mode",
	}

	AttendanceStatusAliases = []string{
		"attendanceStatus", "AttendanceStatus", "attendance_status",
		"status",
		"inOutMode", "in_out_mode",
		"io", "direction",
	}
)

// Employee field aliases.
var (
	EmployeeIDAliases         = []string{"id", "ID", "Id", "externalId", "external_id", "userId", "user_id"}
	EmployeeNameAliases       = []string{"name", "Name", "fullName", "full_name", "userName", "user_name"}
	EmployeeActiveAliases     = []string{"isActive", "IsActive", "is_active", "active", "enabled"}
	EmployeeDepartmentAliases = []string{"department", "Department", "dept"}
)

// listKeys are the object keys that may hold the record array, in order.
var listKeys = []string{"items", "records", "attendances", "rows", "result", "results"}

// Pick returns the value of the first alias present in item with a non-null value.
func Pick(item map[string]interface{}, aliases []string) (interface{}, bool) {
	for _, k := range aliases {
		if v, ok := item[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
