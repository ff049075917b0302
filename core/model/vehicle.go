package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Unassigned is the sentinel lane holding jobs not yet given to a vehicle.
// It always has unlimited capacity.
const Unassigned = "unassigned"

// Capacity is the maximum number of jobs a lane may hold. Zero means
// unlimited.
type Capacity int

// Unlimited exempts a lane from the capacity check.
const Unlimited Capacity = 0

// IsUnlimited reports whether the lane has no job limit.
func (c Capacity) IsUnlimited() bool { return c <= 0 }

// Allows reports whether a lane currently holding n jobs can take one more.
func (c Capacity) Allows(n int) bool { return c.IsUnlimited() || n < int(c) }

func (c Capacity) String() string {
	if c.IsUnlimited() {
		return "unlimited"
	}
	return strconv.Itoa(int(c))
}

// MarshalJSON renders unlimited capacity as the string "unlimited".
func (c Capacity) MarshalJSON() ([]byte, error) {
	if c.IsUnlimited() {
		return []byte(`"unlimited"`), nil
	}
	return []byte(strconv.Itoa(int(c))), nil
}

// UnmarshalJSON accepts either an integer or "unlimited".
func (c *Capacity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "unlimited" || s == "" {
			*c = Unlimited
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid capacity %q", s)
		}
		*c = Capacity(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid capacity %s", string(b))
	}
	*c = Capacity(n)
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (c *Capacity) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid capacity at line %d", value.Line)
	}
	if value.Value == "unlimited" || value.Value == "" {
		*c = Unlimited
		return nil
	}
	n, err := strconv.Atoi(value.Value)
	if err != nil {
		return fmt.Errorf("invalid capacity %q at line %d", value.Value, value.Line)
	}
	*c = Capacity(n)
	return nil
}

// Vehicle describes one lane of the board.
type Vehicle struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name,omitempty" yaml:"name"`
	Capacity Capacity `json:"capacity" yaml:"capacity"`
}

// Validate checks that the vehicle can be turned into a lane.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id is required")
	}
	if v.ID == Unassigned {
		return fmt.Errorf("vehicle id %q is reserved", Unassigned)
	}
	if v.Capacity < 0 {
		return fmt.Errorf("vehicle %s: capacity must not be negative", v.ID)
	}
	return nil
}

// DayLayout is the canonical key format for a board day.
const DayLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey returns the canonical key of the day containing t.
func DayKey(t time.Time) string { return t.Format(DayLayout) }

// ParseDay parses a YYYY-MM-DD key.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return d, nil
}

// SameDay reports whether t falls on the calendar day of day, using t's own
// calendar fields.
func SameDay(t, day time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
