package field

import (
	"fmt"
	"strings"
)

// Type is the expected content type of a region.
type Type string

const (
	Text     Type = "text"
	CPF      Type = "cpf"
	Number   Type = "number"
	Currency Type = "currency"
	Date     Type = "date"
)

// Types lists every supported type in a stable order.
func Types() []Type {
	return []Type{Text, CPF, Number, Currency, Date}
}

// ParseType converts a case-insensitive name into a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown field type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	switch t {
	case Text, CPF, Number, Currency, Date:
		return true
	}
	return false
}

// Numeric reports whether the type is made of digits and separators.
// Numeric regions get extra contrast during preprocessing and a character
// whitelist during recognition.
func (t Type) Numeric() bool {
	switch t {
	case CPF, Number, Currency, Date:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown field type %q", string(t))
	}
	return []byte(t), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown types.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
