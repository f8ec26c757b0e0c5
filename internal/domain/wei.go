package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// Wei is a 256-bit amount stored as a decimal string so no driver coerces it
// to a float.
type Wei uint256.Int

// NewWei copies v into a column value. nil maps to zero.
func NewWei(v *uint256.Int) Wei {
	if v == nil {
		return Wei{}
	}
	return Wei(*v)
}

// Uint256 returns a fresh copy of the amount.
func (w Wei) Uint256() *uint256.Int {
	v := uint256.Int(w)
	return &v
}

func (w Wei) String() string {
	return w.Uint256().Dec()
}

// Value implements driver.Valuer.
func (w Wei) Value() (driver.Value, error) {
	return w.String(), nil
}

// Scan implements sql.Scanner.
func (w *Wei) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case nil:
		*w = Wei{}
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("wei: negative value %d", v)
		}
		*w = NewWei(uint256.NewInt(uint64(v)))
		return nil
	default:
		return fmt.Errorf("wei: unsupported column type %T", src)
	}
	if s == "" {
		*w = Wei{}
		return nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return fmt.Errorf("wei: %q: %w", s, err)
	}
	*w = NewWei(v)
	return nil
}

// MarshalJSON writes the amount as a quoted decimal string.
func (w Wei) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

// UnmarshalJSON accepts a quoted decimal string.
func (w *Wei) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return w.Scan(s)
}
