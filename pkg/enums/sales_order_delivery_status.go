package enums

import "fmt"

// SalesOrderDeliveryStatus is the order-level delivery rollup.
type SalesOrderDeliveryStatus string

const (
	SalesOrderDeliveryPending   SalesOrderDeliveryStatus = "pending"
	SalesOrderDeliveryPartial   SalesOrderDeliveryStatus = "partial"
	SalesOrderDeliveryCompleted SalesOrderDeliveryStatus = "completed"
)

var validSalesOrderDeliveryStatuses = []SalesOrderDeliveryStatus{
	SalesOrderDeliveryPending,
	SalesOrderDeliveryPartial,
	SalesOrderDeliveryCompleted,
}

// String implements fmt.Stringer.
func (s SalesOrderDeliveryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SalesOrderDeliveryStatus.
func (s SalesOrderDeliveryStatus) IsValid() bool {
	for _, candidate := range validSalesOrderDeliveryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further delivery can move the status.
func (s SalesOrderDeliveryStatus) IsTerminal() bool {
	return s == SalesOrderDeliveryCompleted
}

// ParseSalesOrderDeliveryStatus converts raw input into a SalesOrderDeliveryStatus.
func ParseSalesOrderDeliveryStatus(value string) (SalesOrderDeliveryStatus, error) {
	for _, candidate := range validSalesOrderDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sales order delivery status %q", value)
}
