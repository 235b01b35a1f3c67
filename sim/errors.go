package sim

import (
	"errors"
	"fmt"
)

// Port errors.
var (
	ErrSelfConnection    = errors.New("cannot connect a port to itself")
	ErrNullTarget        = errors.New("connection target is nil")
	ErrIncompatibleTypes = errors.New("incompatible port types")
	ErrAccessUnconnected = errors.New("access to unconnected port")
	ErrReadOnlyInput     = errors.New("cannot assign the value of an input port")
)

// Model errors.
var (
	ErrDuplicateName      = errors.New("duplicate name")
	ErrInvalidName        = errors.New("invalid name")
	ErrNilChild           = errors.New("child model is nil")
	ErrInvalidChild       = errors.New("group cannot contain itself")
	ErrFrequencyTooLow    = errors.New("update frequency below model minimum")
	ErrUnknownParameter   = errors.New("unknown parameter")
	ErrUnknownPort        = errors.New("unknown port")
	ErrParameterType      = errors.New("parameter type mismatch")
	ErrUnknownModelType   = errors.New("unknown model type")
	ErrUnsupportedPorting = errors.New("model does not support dynamic ports")
)

// Scheduling errors.
var (
	ErrUnevenFrequency  = errors.New("model frequency is not an integer multiple of the simulation frequency")
	ErrDependencyCycle  = errors.New("dependency cycle through strong inputs")
	ErrInvalidTimestep  = errors.New("timestep must be positive")
	ErrUnknownPlugin    = errors.New("unknown plugin")
	ErrConflictingRates = errors.New("both step and frequency are set")
)

// PortError reports a failed port operation.
type PortError struct {
	Err   error
	Port  Port
	Other Port
}

func (e *PortError) Error() string {
	if e.Other != nil {
		return fmt.Sprintf("%s -> %s: %v", portLabel(e.Port), portLabel(e.Other), e.Err)
	}
	return fmt.Sprintf("%s: %v", portLabel(e.Port), e.Err)
}

func (e *PortError) Unwrap() error { return e.Err }

// ModelError reports a failed operation on a model or group.
type ModelError struct {
	Err    error
	Model  string
	Detail string
}

func (e *ModelError) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.Model == "" {
		return msg
	}
	return fmt.Sprintf("model %q: %s", e.Model, msg)
}

func (e *ModelError) Unwrap() error { return e.Err }

// SchedulingError reports a model that cannot be placed on the simulation's
// update schedule.
type SchedulingError struct {
	Err       error
	Model     string
	Frequency int // model frequency
	Base      int // simulation base frequency
}

func (e *SchedulingError) Error() string {
	if e.Frequency != 0 || e.Base != 0 {
		return fmt.Sprintf("model %q: %v (model %d Hz, simulation %d Hz)", e.Model, e.Err, e.Frequency, e.Base)
	}
	return fmt.Sprintf("model %q: %v", e.Model, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

func modelErr(m Model, err error, format string, args ...any) *ModelError {
	name := ""
	if m != nil {
		name = m.Name()
	}
	return &ModelError{Err: err, Model: name, Detail: fmt.Sprintf(format, args...)}
}

// portLabel renders "model.port" when the port is registered, "<port>" otherwise.
func portLabel(p Port) string {
	if isNilPort(p) {
		return "<nil>"
	}
	owner := p.Owner()
	if owner == nil {
		return "<port>"
	}
	name, err := owner.base().PortName(p)
	if err != nil {
		return owner.Name() + ".<port>"
	}
	return owner.Name() + "." + name
}
