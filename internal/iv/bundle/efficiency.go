package bundle

import (
	"github.com/banshee-data/ivcurve/internal/iv/trace"
)

// Reference is the state of the reference bundle that others are compared
// against.
type Reference struct {
	Path   string
	Values trace.Characteristics
	Fitted trace.Characteristics
	Absent trace.Channels
}

// AsReference captures the bundle's current aggregates for comparison.
func (b *Bundle) AsReference() *Reference {
	return &Reference{Path: b.Path, Values: b.values, Fitted: b.fitted, Absent: b.absent}
}

// UpdateReference recomputes both efficiency sets against ref. A nil ref
// clears the reference and resets every efficiency to zero.
func (b *Bundle) UpdateReference(ref *Reference) {
	b.reference = ref
	if ref == nil {
		b.efficiencies = trace.Characteristics{}
		b.fittedEfficiencies = trace.Characteristics{}
		return
	}
	if ref.Path == b.Path {
		// A bundle compared with itself is (0,0) in every slot, spread included.
		b.reference = b.AsReference()
		b.efficiencies = trace.Characteristics{}
		b.fittedEfficiencies = trace.Characteristics{}
		return
	}
	if ref.Values == (trace.Characteristics{}) && ref.Fitted == (trace.Characteristics{}) {
		// Restored from a snapshot without the reference's values; keep
		// the stored efficiencies until a caller supplies a full reference.
		return
	}
	absent := b.absent | ref.Absent
	b.efficiencies = Efficiencies(b.values, ref.Values, absent)
	b.fittedEfficiencies = Efficiencies(b.fitted, ref.Fitted, absent)
}

// ReferencePath returns the path of the current reference, or "" if none.
func (b *Bundle) ReferencePath() string {
	if b.reference == nil {
		return ""
	}
	return b.reference.Path
}

// Efficiencies returns the direct efficiency set.
func (b *Bundle) Efficiencies() trace.Characteristics { return b.efficiencies }

// FittedEfficiencies returns the fitted efficiency set.
func (b *Bundle) FittedEfficiencies() trace.Characteristics { return b.fittedEfficiencies }

// Efficiencies expresses self relative to ref in percent for every key in
// trace.EfficiencyKeys. A zero reference value or an absent channel yields
// the zero Measurement. Time is never compared.
func Efficiencies(self, ref trace.Characteristics, absent trace.Channels) trace.Characteristics {
	var out trace.Characteristics
	for _, k := range trace.EfficiencyKeys {
		if c, ok := trace.ChannelForKey(k); ok && absent.Has(c) {
			continue
		}
		r := ref[k].Value
		if r == 0 {
			continue
		}
		out[k] = trace.Measurement{
			Value:       100 * (self[k].Value - r) / r,
			Uncertainty: 100 * self[k].Uncertainty / r,
		}
	}
	return out
}
