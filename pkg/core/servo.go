// pkg/core/servo.go
package core

import (
	"fmt"
	"strings"
)

// ServoCommand is a manual actuator command token.
type ServoCommand string

const (
	ServoActivate   ServoCommand = "activate"
	ServoDeactivate ServoCommand = "deactivate"
)

// Valid reports whether c is a known command.
func (c ServoCommand) Valid() bool {
	return c == ServoActivate || c == ServoDeactivate
}

// ParseServoCommand accepts a command token in any case.
func ParseServoCommand(s string) (ServoCommand, error) {
	c := ServoCommand(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &ValidationError{Field: "servo", Reason: fmt.Sprintf("unknown command %q", s)}
	}
	return c, nil
}
