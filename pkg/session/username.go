package session

import (
	"fmt"
	"strings"
)

const (
	usernameMinLen = 2
	usernameMaxLen = 20
)

// reservedNames can never be claimed as usernames; several collide with
// command targets ("me", "all") or server identities.
var reservedNames = map[string]bool{
	"admin":  true,
	"system": true,
	"server": true,
	"guest":  true,
	"all":    true,
	"me":     true,
	"self":   true,
	"here":   true,
}

// ValidateUsername checks a proposed username: 2-20 characters, starting
// with a letter, containing only letters, digits and underscores, and not a
// reserved name. The returned error message is safe to show to the client.
func ValidateUsername(name string) error {
	if len(name) < usernameMinLen {
		return fmt.Errorf("username must be at least %d characters", usernameMinLen)
	}
	if len(name) > usernameMaxLen {
		return fmt.Errorf("username must be at most %d characters", usernameMaxLen)
	}
	first := name[0]
	if !isLetter(first) {
		return fmt.Errorf("username must start with a letter")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !isLetter(c) && !isDigit(c) && c != '_' {
			return fmt.Errorf("username may only contain letters, digits and underscores")
		}
	}
	if reservedNames[strings.ToLower(name)] {
		return fmt.Errorf("that name is reserved")
	}
	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
