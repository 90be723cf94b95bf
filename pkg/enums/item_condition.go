package enums

import "fmt"

// ItemCondition records the physical condition of delivered goods.
type ItemCondition string

const (
	ItemConditionGood      ItemCondition = "good"
	ItemConditionDamaged   ItemCondition = "damaged"
	ItemConditionDefective ItemCondition = "defective"
)

var validItemConditions = []ItemCondition{
	ItemConditionGood,
	ItemConditionDamaged,
	ItemConditionDefective,
}

// String implements fmt.Stringer.
func (c ItemCondition) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ItemCondition.
func (c ItemCondition) IsValid() bool {
	for _, candidate := range validItemConditions {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseItemCondition converts raw input into an ItemCondition.
func ParseItemCondition(value string) (ItemCondition, error) {
	for _, candidate := range validItemConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item condition %q", value)
}
