package sim

import (
	"fmt"
	"math"
	"strconv"
)

// ParamKind is the storage type of a Parameter.
type ParamKind int

const (
	ParamBool ParamKind = iota
	ParamInt
	ParamUint
	ParamFloat32
	ParamFloat64
	ParamString
)

func (k ParamKind) String() string {
	switch k {
	case ParamBool:
		return "bool"
	case ParamInt:
		return "int"
	case ParamUint:
		return "uint"
	case ParamFloat32:
		return "float"
	case ParamFloat64:
		return "double"
	case ParamString:
		return "string"
	}
	return fmt.Sprintf("ParamKind(%d)", int(k))
}

// Parameter is a named, typed attribute bound to a field of its model.
type Parameter struct {
	Name        string
	Unit        string
	Description string

	kind ParamKind
	ptr  any
}

func newParameter(ptr any, name, unit, desc string) (*Parameter, error) {
	p := &Parameter{Name: name, Unit: unit, Description: desc, ptr: ptr}
	switch ptr.(type) {
	case *bool:
		p.kind = ParamBool
	case *int:
		p.kind = ParamInt
	case *uint:
		p.kind = ParamUint
	case *float32:
		p.kind = ParamFloat32
	case *float64:
		p.kind = ParamFloat64
	case *string:
		p.kind = ParamString
	default:
		return nil, fmt.Errorf("%w: unsupported storage %T for %q", ErrParameterType, ptr, name)
	}
	return p, nil
}

func (p *Parameter) Kind() ParamKind { return p.kind }

func (p *Parameter) numeric() bool {
	return p.kind != ParamBool && p.kind != ParamString
}

// Text formats the current value.
func (p *Parameter) Text() string {
	switch v := p.ptr.(type) {
	case *bool:
		return strconv.FormatBool(*v)
	case *int:
		return strconv.Itoa(*v)
	case *uint:
		return strconv.FormatUint(uint64(*v), 10)
	case *float32:
		return strconv.FormatFloat(float64(*v), 'g', -1, 32)
	case *float64:
		return strconv.FormatFloat(*v, 'g', -1, 64)
	case *string:
		return *v
	}
	return ""
}

// SetText parses s into the parameter's storage type.
func (p *Parameter) SetText(s string) error {
	switch v := p.ptr.(type) {
	case *bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		*v = b
	case *string:
		*v = s
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		p.setNumber(f)
	}
	return nil
}

func (p *Parameter) setNumber(f float64) {
	switch v := p.ptr.(type) {
	case *bool:
		*v = f != 0
	case *int:
		*v = int(math.Round(f))
	case *uint:
		if f < 0 {
			f = 0
		}
		*v = uint(math.Round(f))
	case *float32:
		*v = float32(f)
	case *float64:
		*v = f
	}
}

func (p *Parameter) number() float64 {
	switch v := p.ptr.(type) {
	case *int:
		return float64(*v)
	case *uint:
		return float64(*v)
	case *float32:
		return float64(*v)
	case *float64:
		return *v
	}
	return 0
}

// convertUnit scales value from unit "from" into "to". Empty units pass through.
func convertUnit(value float64, from, to string) (float64, error) {
	if from == "" || to == "" || from == to {
		return value, nil
	}
	return DefaultConverter.Convert(value, from, to)
}

// RegisterParameter binds ptr to a parameter named name. ptr must be one of
// *bool, *int, *uint, *float32, *float64 or *string.
func (b *Base) RegisterParameter(ptr any, name, unit, desc string) error {
	if _, dup := b.paramIndex[name]; dup {
		return modelErr(b.self, ErrDuplicateName, "parameter %q", name)
	}
	p, err := newParameter(ptr, name, unit, desc)
	if err != nil {
		return &ModelError{Err: ErrParameterType, Model: b.name, Detail: err.Error()}
	}
	if b.paramIndex == nil {
		b.paramIndex = make(map[string]int)
	}
	b.paramIndex[name] = len(b.params)
	b.params = append(b.params, p)
	return nil
}

// MustRegisterParameter is RegisterParameter for constructors with a fixed
// parameter set. It panics on error.
func (b *Base) MustRegisterParameter(ptr any, name, unit, desc string) {
	if err := b.RegisterParameter(ptr, name, unit, desc); err != nil {
		panic(err)
	}
}

// Parameter looks a parameter up by name.
func (b *Base) Parameter(name string) (*Parameter, error) {
	i, ok := b.paramIndex[name]
	if !ok {
		return nil, modelErr(b.self, ErrUnknownParameter, "%q", name)
	}
	return b.params[i], nil
}

// Parameters returns the parameters in registration order.
func (b *Base) Parameters() []*Parameter { return b.params }

func (b *Base) typedParameter(name string, kinds ...ParamKind) (*Parameter, error) {
	p, err := b.Parameter(name)
	if err != nil {
		return nil, err
	}
	for _, k := range kinds {
		if p.kind == k {
			return p, nil
		}
	}
	return nil, modelErr(b.self, ErrParameterType, "%q is %s", name, p.kind)
}

func (b *Base) GetBool(name string) (bool, error) {
	p, err := b.typedParameter(name, ParamBool)
	if err != nil {
		return false, err
	}
	return *p.ptr.(*bool), nil
}

func (b *Base) GetString(name string) (string, error) {
	p, err := b.typedParameter(name, ParamString)
	if err != nil {
		return "", err
	}
	return *p.ptr.(*string), nil
}

// GetFloat64 returns a numeric parameter converted to unit. An empty unit
// returns the value in the parameter's own unit.
func (b *Base) GetFloat64(name, unit string) (float64, error) {
	p, err := b.typedParameter(name, ParamInt, ParamUint, ParamFloat32, ParamFloat64)
	if err != nil {
		return 0, err
	}
	v, err := convertUnit(p.number(), p.Unit, unit)
	if err != nil {
		return 0, modelErr(b.self, ErrParameterType, "%q: %v", name, err)
	}
	return v, nil
}

func (b *Base) GetInt(name, unit string) (int, error) {
	if _, err := b.typedParameter(name, ParamInt); err != nil {
		return 0, err
	}
	v, err := b.GetFloat64(name, unit)
	return int(math.Round(v)), err
}

func (b *Base) GetUint(name, unit string) (uint, error) {
	if _, err := b.typedParameter(name, ParamUint); err != nil {
		return 0, err
	}
	v, err := b.GetFloat64(name, unit)
	return uint(math.Round(v)), err
}

// SetParameter assigns a number given in unit, converting it into the
// parameter's unit.
func (b *Base) SetParameter(name string, value float64, unit string) error {
	p, err := b.Parameter(name)
	if err != nil {
		return err
	}
	if p.kind == ParamString {
		return modelErr(b.self, ErrParameterType, "%q is %s", name, p.kind)
	}
	if p.numeric() {
		if value, err = convertUnit(value, unit, p.Unit); err != nil {
			return modelErr(b.self, ErrParameterType, "%q: %v", name, err)
		}
	}
	p.setNumber(value)
	return nil
}

// SetParameterText parses text into the parameter. Numeric text is
// interpreted in unit.
func (b *Base) SetParameterText(name, text, unit string) error {
	p, err := b.Parameter(name)
	if err != nil {
		return err
	}
	if p.numeric() && unit != "" {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return modelErr(b.self, ErrParameterType, "%q: %v", name, err)
		}
		return b.SetParameter(name, f, unit)
	}
	if err := p.SetText(text); err != nil {
		return modelErr(b.self, ErrParameterType, "%v", err)
	}
	return nil
}
