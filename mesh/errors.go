package mesh

import "fmt"

// ConfigError reports an invalid mesh configuration, detected eagerly during
// construction. Every instance is fatal to the constructing rank; there is
// no partial recovery.
type ConfigError struct {
	Constraint string
}

func (e *ConfigError) Error() string {
	return "mesh configuration error: " + e.Constraint
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Constraint: fmt.Sprintf(format, args...)}
}

// RestartError reports a corrupt or inconsistent restart file.
type RestartError struct {
	Detail string
}

func (e *RestartError) Error() string {
	return "restart file error: " + e.Detail
}

func restartErrorf(format string, args ...interface{}) error {
	return &RestartError{Detail: fmt.Sprintf(format, args...)}
}
