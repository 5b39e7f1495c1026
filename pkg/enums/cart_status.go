package enums

import (
	"database/sql/driver"
	"fmt"
)

// CartStatus tracks the lifecycle of a customer's cart row. A cart is
// pending until checkout consumes it; the row is deleted rather than moved
// to a terminal status.
type CartStatus string

const CartStatusPending CartStatus = "pending"

func (c CartStatus) String() string { return string(c) }

func (c CartStatus) IsValid() bool { return c == CartStatusPending }

// ParseCartStatus converts raw input into a CartStatus. Empty input means a
// freshly created cart.
func ParseCartStatus(value string) (CartStatus, error) {
	if value == "" {
		return CartStatusPending, nil
	}
	if status := CartStatus(value); status.IsValid() {
		return status, nil
	}
	return "", fmt.Errorf("invalid cart status %q", value)
}

// Value refuses to persist an unknown status.
func (c CartStatus) Value() (driver.Value, error) {
	status, err := ParseCartStatus(string(c))
	if err != nil {
		return nil, err
	}
	return string(status), nil
}

// Scan reads the status column.
func (c *CartStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
	default:
		return fmt.Errorf("cart status: unsupported type %T", src)
	}
	status, err := ParseCartStatus(raw)
	if err != nil {
		return err
	}
	*c = status
	return nil
}
