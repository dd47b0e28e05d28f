package trace

// Channel is one of the environment readings recorded next to each sample.
type Channel int

const (
	ChannelTemperature Channel = iota
	ChannelIrradiance1
	ChannelIrradiance2
	ChannelIrradiance3
	ChannelIrradiance4

	NumChannels
)

// Key returns the characteristic that averages this channel.
func (c Channel) Key() Key {
	return Temperature + Key(c)
}

// ChannelForKey is the inverse of Channel.Key. ok is false for keys that
// are not channel averages.
func ChannelForKey(k Key) (c Channel, ok bool) {
	if k < Temperature || k > Irradiance4 {
		return 0, false
	}
	return Channel(k - Temperature), true
}

// Channels is a bit set of environment channels.
type Channels uint8

// AllChannels marks every environment channel.
const AllChannels Channels = 1<<NumChannels - 1

// Has reports whether c is in the set.
func (s Channels) Has(c Channel) bool { return s&(1<<c) != 0 }

// With returns the set with c added.
func (s Channels) With(c Channel) Channels { return s | 1<<c }

// Sample is one row of a sweep. Current is sign-normalised so that the
// power generating quadrant is positive.
type Sample struct {
	Time        float64 // seconds since the Unix epoch
	Voltage     float64
	Current     float64
	Power       float64
	Temperature float64
	Irradiance  [4]float64
}

// Channel returns the reading of environment channel c.
func (s Sample) Channel(c Channel) float64 {
	if c == ChannelTemperature {
		return s.Temperature
	}
	return s.Irradiance[c-ChannelIrradiance1]
}

// SetChannel stores v as the reading of environment channel c.
func (s *Sample) SetChannel(c Channel, v float64) {
	if c == ChannelTemperature {
		s.Temperature = v
		return
	}
	s.Irradiance[c-ChannelIrradiance1] = v
}

// Table is the uniform in-memory form of a sweep. Absent lists environment
// channels with no valid reading; their columns hold Unavailable.
type Table struct {
	Samples []Sample
	Absent  Channels
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Samples) }

// Column extracts one value per row.
func (t *Table) Column(f func(Sample) float64) []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = f(s)
	}
	return out
}

// Voltages returns the voltage column.
func (t *Table) Voltages() []float64 { return t.Column(func(s Sample) float64 { return s.Voltage }) }

// Currents returns the current column.
func (t *Table) Currents() []float64 { return t.Column(func(s Sample) float64 { return s.Current }) }

// Powers returns the power column.
func (t *Table) Powers() []float64 { return t.Column(func(s Sample) float64 { return s.Power }) }
