package core

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID is a 128-bit identifier rendered in canonical UUID form.
type ID string

func (c ID) String() string {
	return string(c)
}

func (c ID) IsZero() bool {
	return c == ""
}

// Value implements driver.Valuer.
func (c ID) Value() (driver.Value, error) {
	if c.IsZero() {
		return nil, nil
	}
	return string(c), nil
}

// Scan implements sql.Scanner for TEXT and UUID columns.
func (c *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = ""
	case ID:
		*c = v
	case string:
		*c = ID(v)
	case []byte:
		if len(v) == 16 {
			u, err := uuid.FromBytes(v)
			if err != nil {
				return fmt.Errorf("scan id: %w", err)
			}
			*c = ID(u.String())
			return nil
		}
		*c = ID(string(v))
	case [16]byte:
		*c = ID(uuid.UUID(v).String())
	default:
		return fmt.Errorf("scan id: unsupported type %T", src)
	}
	return nil
}

// NewIDFrom draws a random (version 4) identifier from r.
func NewIDFrom(r Random) (ID, error) {
	u, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return ID(u.String()), nil
}

func NewID() (ID, error) {
	return NewIDFrom(CryptoRandom())
}

func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID accepts only canonical 36-character UUID text.
func ParseID(s string) (ID, error) {
	if len(s) != 36 {
		return "", fmt.Errorf("invalid id %q: expected canonical uuid", s)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(u.String()), nil
}
