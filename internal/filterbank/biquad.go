// Package filterbank implements biquad-cascade IIR filters designed from
// analog Butterworth prototypes, the way a DSP library built on top of a
// biquad.Chain abstraction would: a Section holds one Direct-Form-II
// Transposed biquad, and a Chain cascades several of them in series.
package filterbank

// Section is one second-order (or, for a leading odd-order stage,
// first-order expressed as second-order with b2=a2=0) IIR section,
// evaluated with the Direct Form II Transposed structure so only two
// state registers are needed regardless of coefficient magnitude.
type Section struct {
	B0, B1, B2 float64
	A1, A2     float64 // a0 is always normalized to 1

	z1, z2 float64 // transposed delay registers
}

// Process filters one sample through this section.
func (s *Section) Process(x float64) float64 {
	y := s.B0*x + s.z1
	s.z1 = s.B1*x - s.A1*y + s.z2
	s.z2 = s.B2*x - s.A2*y
	return y
}

// Reset clears the section's delay registers, discarding filter history.
func (s *Section) Reset() {
	s.z1, s.z2 = 0, 0
}

// Chain cascades a series of second-order sections (SOS) to realize an
// arbitrary-order filter.
type Chain struct {
	Sections []Section
}

// NewChain builds a cascade from a slice of sections, copied so the caller
// can't mutate shared coefficients through a stale slice.
func NewChain(sections []Section) *Chain {
	cp := make([]Section, len(sections))
	copy(cp, sections)
	return &Chain{Sections: cp}
}

// ProcessSample pushes one sample through every section in series.
func (c *Chain) ProcessSample(x float64) float64 {
	for i := range c.Sections {
		x = c.Sections[i].Process(x)
	}
	return x
}

// ProcessBuffer filters a buffer in place.
func (c *Chain) ProcessBuffer(buf []float64) {
	for i, x := range buf {
		buf[i] = c.ProcessSample(x)
	}
}

// ProcessBufferF32 filters a float32 buffer in place, converting through
// float64 for numerical stability in the recursive sections.
func (c *Chain) ProcessBufferF32(buf []float32) {
	for i, x := range buf {
		buf[i] = float32(c.ProcessSample(float64(x)))
	}
}

// Reset clears every section's state. A hot-reload that changes filter
// order changes the cascade's state dimension, so the history must go.
func (c *Chain) Reset() {
	for i := range c.Sections {
		c.Sections[i].Reset()
	}
}

// SetCoefficients replaces the cascade's coefficients in place, preserving
// delay-register state, so a retune that only moves center frequency or
// bandwidth doesn't produce an audible click. The new section count must
// match the existing one; callers needing a different order must construct
// a new Chain and Reset instead.
func (c *Chain) SetCoefficients(sections []Section) bool {
	if len(sections) != len(c.Sections) {
		return false
	}
	for i := range sections {
		c.Sections[i].B0 = sections[i].B0
		c.Sections[i].B1 = sections[i].B1
		c.Sections[i].B2 = sections[i].B2
		c.Sections[i].A1 = sections[i].A1
		c.Sections[i].A2 = sections[i].A2
	}
	return true
}
