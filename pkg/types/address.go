package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// AddressSnapshot is the delivery address frozen onto an order.
type AddressSnapshot struct {
	AddressID string  `json:"address_id,omitempty"`
	Name      string  `json:"name"`
	House     string  `json:"house"`
	Street    string  `json:"street"`
	Landmark  *string `json:"landmark,omitempty"`
}

// Validate enforces the fields the address form requires.
func (a AddressSnapshot) Validate() error {
	switch {
	case strings.TrimSpace(a.Name) == "":
		return fmt.Errorf("address: missing name")
	case strings.TrimSpace(a.House) == "":
		return fmt.Errorf("address: missing house")
	case strings.TrimSpace(a.Street) == "":
		return fmt.Errorf("address: missing street")
	}
	return nil
}

// Value stores the snapshot as json.
func (a AddressSnapshot) Value() (driver.Value, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes the json column.
func (a *AddressSnapshot) Scan(value interface{}) error {
	if value == nil {
		*a = AddressSnapshot{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("address snapshot: unsupported type %T", value)
	}
	return json.Unmarshal(raw, a)
}
