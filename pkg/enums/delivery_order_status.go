package enums

import "fmt"

// DeliveryOrderStatus tracks a delivery order document.
type DeliveryOrderStatus string

const (
	DeliveryOrderStatusPending   DeliveryOrderStatus = "pending"
	DeliveryOrderStatusDelivered DeliveryOrderStatus = "delivered"
	DeliveryOrderStatusCancelled DeliveryOrderStatus = "cancelled"
)

var validDeliveryOrderStatuses = []DeliveryOrderStatus{
	DeliveryOrderStatusPending,
	DeliveryOrderStatusDelivered,
	DeliveryOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s DeliveryOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DeliveryOrderStatus.
func (s DeliveryOrderStatus) IsValid() bool {
	for _, candidate := range validDeliveryOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDeliveryOrderStatus converts raw input into a DeliveryOrderStatus.
func ParseDeliveryOrderStatus(value string) (DeliveryOrderStatus, error) {
	for _, candidate := range validDeliveryOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery order status %q", value)
}
