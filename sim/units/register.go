// register.go installs Default as sim.DefaultConverter. This init() runs when
// any package imports sim/units, so unit ports and parameters convert through
// the full table instead of the identity fallback in sim/port.go.
package units

import "github.com/simblox/simblox/sim"

func init() {
	sim.DefaultConverter = Default
}
