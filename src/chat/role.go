package chat

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when a role name is not one of system, user or assistant.
var ErrUnknownRole = errors.New("unknown role")

// Role identifies the author of a turn. The zero value is not a valid role.
type Role uint8

const (
	RoleSystem Role = iota + 1
	RoleUser
	RoleAssistant
)

var roleNames = map[Role]string{
	RoleSystem:    "system",
	RoleUser:      "user",
	RoleAssistant: "assistant",
}

// ParseRole converts a wire name into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system":
		return RoleSystem, nil
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
