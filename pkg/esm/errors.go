package esm

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

// Sentinel errors. Every error returned by this package matches one of them
// with errors.Is.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrUnsupportedSyntax = errors.New("unsupported syntax")
	ErrInvariant         = errors.New("internal invariant violation")
)

// ConfigurationError reports invalid or missing options.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Msg)
}

// Unwrap makes ConfigurationError match ErrConfiguration.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// UnsupportedSyntaxError reports a module declaration shape that cannot be
// lowered.
type UnsupportedSyntaxError struct {
	Pos       jsast.Position
	Construct string
	Msg       string
}

func (e *UnsupportedSyntaxError) Error() string {
	msg := fmt.Sprintf("unsupported syntax at %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Construct)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}

	return msg
}

// Unwrap makes UnsupportedSyntaxError match ErrUnsupportedSyntax.
func (e *UnsupportedSyntaxError) Unwrap() error {
	return ErrUnsupportedSyntax
}

// InvariantError reports an export whose local binding is not declared by
// the rewritten module.
type InvariantError struct {
	Local    string
	Exported string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal invariant violation: export %q refers to undeclared binding %q", e.Exported, e.Local)
}

// Unwrap makes InvariantError match ErrInvariant.
func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}
