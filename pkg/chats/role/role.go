// Package role names who sent a message in a conversation.
package role

import "fmt"

// Role is the sender of a message. Its value is the wire name used by chat
// completion APIs.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
	Tool      Role = "tool"
)

// aliases maps wire names that some APIs use for an existing role.
var aliases = map[string]Role{
	"developer": System,
	"function":  Tool,
}

// Parse maps a wire role name to a Role. "developer" reads as System and the
// legacy "function" as Tool.
func Parse(s string) (Role, error) {
	if r := Role(s); r.Valid() {
		return r, nil
	}
	if r, ok := aliases[s]; ok {
		return r, nil
	}
	return "", fmt.Errorf("role: unknown role %q", s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case System, User, Assistant, Tool:
		return true
	}
	return false
}
