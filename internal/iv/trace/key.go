// Package trace reads a single I-V sweep from disk and derives its
// characteristic set.
package trace

import (
	"fmt"
	"strings"
)

// Unavailable is the value reported for a characteristic whose source
// channel is absent from the trace data.
const Unavailable = -1.0

// Key identifies one entry of a characteristic set.
type Key int

const (
	Time Key = iota
	Voc
	Isc
	Pmax
	FillFactor
	Temperature
	Irradiance1
	Irradiance2
	Irradiance3
	Irradiance4

	NumKeys
)

var keyLabels = [NumKeys]string{
	"Time (s)",
	"Open Circuit Voltage V_oc (V)",
	"Short Circuit Current I_sc (A)",
	"Maximum Power P_max (W)",
	"Fill Factor",
	"Average Temperature T_avg (C)",
	"Average Irradiance I_1_avg (W/m2)",
	"Average Irradiance I_2_avg (W/m2)",
	"Average Irradiance I_3_avg (W/m2)",
	"Average Irradiance I_4_avg (W/m2)",
}

var keyShort = [NumKeys]string{"time", "voc", "isc", "pmax", "ff", "tavg", "i1avg", "i2avg", "i3avg", "i4avg"}

// Label is the long human readable name of the key, with its unit.
func (k Key) Label() string {
	if k < 0 || k >= NumKeys {
		return fmt.Sprintf("Key(%d)", int(k))
	}
	return keyLabels[k]
}

// String returns the short lower-case identifier used on the command line.
func (k Key) String() string {
	if k < 0 || k >= NumKeys {
		return fmt.Sprintf("key%d", int(k))
	}
	return keyShort[k]
}

// ParseKey maps a short identifier such as "pmax" back to its Key.
func ParseKey(s string) (Key, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range keyShort {
		if name == s {
			return Key(k), nil
		}
	}
	return 0, fmt.Errorf("unknown characteristic %q", s)
}

// EfficiencyKeys are the characteristics compared against a reference.
var EfficiencyKeys = []Key{Voc, Isc, Pmax, FillFactor, Temperature, Irradiance1, Irradiance2, Irradiance3, Irradiance4}

// Measurement is a value with its uncertainty.
type Measurement struct {
	Value       float64
	Uncertainty float64
}

// Characteristics is a complete characteristic set indexed by Key. A zero
// Measurement for a fitted key means the fit was unavailable.
type Characteristics [NumKeys]Measurement

// Unrefined returns values with the fitted keys reset to the (0,0)
// sentinel. Time and channel averages are carried over.
func Unrefined(values Characteristics) Characteristics {
	out := values
	out[Voc] = Measurement{}
	out[Isc] = Measurement{}
	out[Pmax] = Measurement{}
	out[FillFactor] = Measurement{}
	return out
}
