package enums

import "fmt"

// BackorderStatus tracks quantity waiting for replenishment.
type BackorderStatus string

const (
	BackorderStatusPending   BackorderStatus = "pending"
	BackorderStatusFulfilled BackorderStatus = "fulfilled"
	BackorderStatusCancelled BackorderStatus = "cancelled"
)

var validBackorderStatuses = []BackorderStatus{
	BackorderStatusPending,
	BackorderStatusFulfilled,
	BackorderStatusCancelled,
}

// String implements fmt.Stringer.
func (s BackorderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BackorderStatus.
func (s BackorderStatus) IsValid() bool {
	for _, candidate := range validBackorderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOpen reports whether backordered quantity still counts as outstanding.
func (s BackorderStatus) IsOpen() bool {
	return s == BackorderStatusPending
}

// ParseBackorderStatus converts raw input into a BackorderStatus.
func ParseBackorderStatus(value string) (BackorderStatus, error) {
	for _, candidate := range validBackorderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid backorder status %q", value)
}
