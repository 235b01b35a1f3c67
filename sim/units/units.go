// Package units converts values between unit expressions such as "km/h",
// "m/s^2" or "radian/sec". An expression is a product of unit names, each
// with an optional prefix ("k", "m", "u", ...) and exponent ("^2", "2",
// "-1"). Everything after a "/" is in the denominator.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// ErrConversion is returned for unknown units and for conversions between
// different dimensions.
var ErrConversion = errors.New("unit conversion")

// dimension indexes
const (
	dimLength = iota
	dimMass
	dimTime
	dimCurrent
	dimTemperature
	dimAmount
	dimLuminosity
	dimAngle
	numDims
)

var dimNames = [numDims]string{"m", "kg", "s", "A", "K", "mol", "cd", "rad"}

// Quantity is a scale factor over SI base dimensions.
type Quantity struct {
	Factor float64
	Dims   [numDims]int
}

func (q Quantity) mul(o Quantity, power int) Quantity {
	r := Quantity{Factor: q.Factor * math.Pow(o.Factor, float64(power)), Dims: q.Dims}
	for i := range r.Dims {
		r.Dims[i] += o.Dims[i] * power
	}
	return r
}

// String renders the quantity in base units, e.g. "1000 m s^-1".
func (q Quantity) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatFloat(q.Factor, 'g', -1, 64))
	for i, d := range q.Dims {
		switch {
		case d == 0:
		case d == 1:
			fmt.Fprintf(&b, " %s", dimNames[i])
		default:
			fmt.Fprintf(&b, " %s^%d", dimNames[i], d)
		}
	}
	return b.String()
}

type unitDef struct {
	q         Quantity
	prefixing bool // accepts SI prefixes
}

var prefixes = []struct {
	name   string
	factor float64
}{
	// longest first so "da" wins over "d"
	{"da", 1e1},
	{"Y", 1e24}, {"Z", 1e21}, {"E", 1e18}, {"P", 1e15}, {"T", 1e12},
	{"G", 1e9}, {"M", 1e6}, {"k", 1e3}, {"h", 1e2},
	{"d", 1e-1}, {"c", 1e-2}, {"m", 1e-3}, {"u", 1e-6}, {"µ", 1e-6},
	{"n", 1e-9}, {"p", 1e-12}, {"f", 1e-15}, {"a", 1e-18},
}

// Converter holds a unit table. The zero value is not usable; use New.
type Converter struct {
	mu    sync.RWMutex
	defs  map[string]unitDef
	cache map[string]Quantity
}

// New returns a converter loaded with the standard table.
func New() *Converter {
	c := &Converter{defs: make(map[string]unitDef), cache: make(map[string]Quantity)}
	c.loadStandard()
	return c
}

func base(dim int) Quantity {
	q := Quantity{Factor: 1}
	q.Dims[dim] = 1
	return q
}

func (c *Converter) def(q Quantity, prefixing bool, names ...string) {
	for _, n := range names {
		c.defs[n] = unitDef{q: q, prefixing: prefixing}
	}
}

func (c *Converter) derive(expr string, factor float64, prefixing bool, names ...string) {
	q, err := c.parse(expr)
	if err != nil {
		panic(fmt.Sprintf("units: bad table entry %q: %v", expr, err))
	}
	q.Factor *= factor
	c.def(q, prefixing, names...)
}

func (c *Converter) loadStandard() {
	c.def(base(dimLength), true, "m", "meter", "meters", "metre", "metres")
	c.def(Quantity{Factor: 1e-3, Dims: base(dimMass).Dims}, true, "g", "gram", "grams")
	c.def(base(dimTime), true, "s", "sec", "second", "seconds")
	c.def(base(dimCurrent), true, "A", "ampere", "amperes", "amp")
	c.def(base(dimTemperature), true, "K", "kelvin")
	c.def(base(dimAmount), true, "mol", "mole", "moles")
	c.def(base(dimLuminosity), true, "cd", "candela")
	c.def(base(dimAngle), true, "rad", "radian", "radians")
	c.def(Quantity{Factor: 1}, false, "1", "unity", "")

	c.derive("s", 60, false, "min", "minute", "minutes")
	c.derive("min", 60, false, "h", "hr", "hour", "hours")
	c.derive("h", 24, false, "d", "day", "days")
	c.derive("1/s", 1, true, "Hz", "hertz")
	c.derive("rad", math.Pi/180, false, "deg", "degree", "degrees")
	c.derive("rad", 2*math.Pi, false, "rev", "revolution", "revolutions", "turn")
	c.derive("rev/min", 1, false, "rpm")
	c.derive("m", 0.0254, false, "in", "inch", "inches")
	c.derive("in", 12, false, "ft", "foot", "feet")
	c.derive("ft", 3, false, "yd", "yard", "yards")
	c.derive("ft", 5280, false, "mi", "mile", "miles")
	c.derive("m", 1852, false, "nmi", "nauticalmile")
	c.derive("nmi/h", 1, false, "kn", "knot", "knots")
	c.derive("km/h", 1, false, "kph", "kmh")
	c.derive("mi/h", 1, false, "mph")
	c.derive("kg", 0.45359237, false, "lb", "lbs", "pound", "pounds")
	c.derive("kg", 1000, false, "t", "tonne", "tonnes")
	c.derive("kg m/s^2", 1, true, "N", "newton", "newtons")
	c.derive("N m", 1, true, "J", "joule", "joules")
	c.derive("J/s", 1, true, "W", "watt", "watts")
	c.derive("N/m^2", 1, true, "Pa", "pascal")
	c.derive("Pa", 1e5, false, "bar")
	c.derive("Pa", 101325, false, "atm")
	c.derive("lb 9.80665 m/s^2", 1, false, "lbf")
	c.derive("lbf/in^2", 1, false, "psi")
	c.derive("A s", 1, true, "C", "coulomb")
	c.derive("W/A", 1, true, "V", "volt", "volts")
	c.derive("V/A", 1, true, "ohm", "ohms")
	c.derive("m/s^2", 9.80665, false, "gee", "gravity")
	c.derive("m^3", 1e-3, true, "L", "l", "liter", "liters", "litre")
	c.derive("1", 0.01, false, "percent", "%")
}

// Define adds name as factor times expr, for example Define("furlong", 201.168, "m").
func (c *Converter) Define(name string, factor float64, expr string) error {
	q, err := c.Parse(expr)
	if err != nil {
		return err
	}
	q.Factor *= factor
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[name] = unitDef{q: q}
	c.cache = make(map[string]Quantity)
	return nil
}

// Parse resolves a unit expression.
func (c *Converter) Parse(expr string) (Quantity, error) {
	c.mu.RLock()
	q, ok := c.cache[expr]
	c.mu.RUnlock()
	if ok {
		return q, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	q, err := c.parse(expr)
	if err != nil {
		return Quantity{}, err
	}
	c.cache[expr] = q
	return q, nil
}

// parse is called with c.mu held, or during construction.
func (c *Converter) parse(expr string) (Quantity, error) {
	q := Quantity{Factor: 1}
	power := 1
	fields := strings.FieldsFunc(strings.ReplaceAll(expr, "/", " / "), func(r rune) bool {
		return r == ' ' || r == '*' || r == '\t'
	})
	for _, f := range fields {
		if f == "/" {
			power = -1
			continue
		}
		name, exp, err := splitExponent(f)
		if err != nil {
			return Quantity{}, fmt.Errorf("%w: %q: %v", ErrConversion, expr, err)
		}
		if v, err := strconv.ParseFloat(name, 64); err == nil {
			q.Factor *= math.Pow(v, float64(exp*power))
			continue
		}
		u, ok := c.lookup(name)
		if !ok {
			return Quantity{}, fmt.Errorf("%w: unknown unit %q in %q", ErrConversion, name, expr)
		}
		q = q.mul(u, exp*power)
	}
	return q, nil
}

// splitExponent separates "m^2", "s2" or "s-1" into name and exponent.
func splitExponent(term string) (string, int, error) {
	if i := strings.IndexByte(term, '^'); i >= 0 {
		e, err := strconv.Atoi(term[i+1:])
		if err != nil {
			return "", 0, fmt.Errorf("bad exponent in %q", term)
		}
		return term[:i], e, nil
	}
	if _, err := strconv.ParseFloat(term, 64); err == nil {
		return term, 1, nil
	}
	j := len(term)
	for j > 0 && term[j-1] >= '0' && term[j-1] <= '9' {
		j--
	}
	if j > 0 && term[j-1] == '-' {
		j--
	}
	if j == 0 || j == len(term) {
		return term, 1, nil
	}
	e, err := strconv.Atoi(term[j:])
	if err != nil {
		return "", 0, fmt.Errorf("bad exponent in %q", term)
	}
	return term[:j], e, nil
}

func (c *Converter) lookup(name string) (Quantity, bool) {
	if d, ok := c.defs[name]; ok {
		return d.q, true
	}
	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(name, p.name)
		if !ok || rest == "" {
			continue
		}
		if d, ok := c.defs[rest]; ok && d.prefixing {
			q := d.q
			q.Factor *= p.factor
			return q, true
		}
	}
	return Quantity{}, false
}

// Convert expresses value, given in unit from, in unit to.
func (c *Converter) Convert(value float64, from, to string) (float64, error) {
	if from == to {
		return value, nil
	}
	qf, err := c.Parse(from)
	if err != nil {
		return 0, err
	}
	qt, err := c.Parse(to)
	if err != nil {
		return 0, err
	}
	if qf.Dims != qt.Dims {
		return 0, fmt.Errorf("%w: %q (%s) is not compatible with %q (%s)", ErrConversion, from, qf, to, qt)
	}
	return value * qf.Factor / qt.Factor, nil
}

// Compatible reports whether values in a can be converted to b.
func (c *Converter) Compatible(a, b string) bool {
	_, err := c.Convert(1, a, b)
	return err == nil
}

// Default is the converter installed into the sim package.
var Default = New()

// Convert uses Default.
func Convert(value float64, from, to string) (float64, error) {
	return Default.Convert(value, from, to)
}
