package types

import "fmt"

// ConfigurationError reports a missing, malformed or incomplete config file.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TunnelError reports an SSH tunnel that could not be established to one
// endpoint. Callers treat the endpoint as contributing no domains.
type TunnelError struct {
	Endpoint string
	Err      error
}

func (e *TunnelError) Error() string {
	return fmt.Sprintf("tunnel to %s: %v", e.Endpoint, e.Err)
}

func (e *TunnelError) Unwrap() error { return e.Err }

// QueryError reports a driver-level failure while querying a store.
type QueryError struct {
	Source string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Source, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// DateParseError reports an st or et argument not in DD/MM/YYYY form.
type DateParseError struct {
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("invalid date %q (want DD/MM/YYYY): %v", e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }
