package filterbank

import (
	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/filterbank/design"
)

// Response selects which Butterworth shape a Filter realizes.
type Response int

const (
	LowPass Response = iota
	HighPass
	BandPass
)

func (r Response) designKind() design.Kind {
	switch r {
	case HighPass:
		return design.HighPass
	case BandPass:
		return design.BandPassKind
	default:
		return design.LowPass
	}
}

// Spec describes the filter geometry to build. For LowPass/HighPass, only
// CenterHz is used as the cutoff; for BandPass, CenterHz and BandwidthHz
// define the passband edges [center-bw/2, center+bw/2].
type Spec struct {
	Response   Response
	Order      int
	CenterHz   float64
	BandwidthHz float64
	SampleRate int
}

// Filter is a biquad-cascade Butterworth filter. Construction validates the
// geometry (InvalidFilterSpec on failure); once built, Apply never fails.
type Filter struct {
	spec  Spec
	chain *Chain
}

// New builds a Filter from spec, returning an InvalidFilterSpec-categorized
// error if the geometry is invalid (bad order, out-of-range cutoff, or an
// odd band-pass order).
func New(spec Spec) (*Filter, error) {
	sections, err := computeSections(spec)
	if err != nil {
		return nil, errors.New(err).
			Component("filterbank").
			Category(errors.CategoryFilter).
			Context("response", int(spec.Response)).
			Context("order", spec.Order).
			Build()
	}
	return &Filter{spec: spec, chain: NewChain(toChainSections(sections))}, nil
}

func computeSections(spec Spec) ([]design.Section, error) {
	switch spec.Response {
	case BandPass:
		low := spec.CenterHz - spec.BandwidthHz/2
		high := spec.CenterHz + spec.BandwidthHz/2
		return design.BandPass(spec.Order, low, high, spec.SampleRate)
	default:
		return design.LowHighPass(spec.Response.designKind(), spec.Order, spec.CenterHz, spec.SampleRate)
	}
}

func toChainSections(ds []design.Section) []Section {
	out := make([]Section, len(ds))
	for i, s := range ds {
		out[i] = Section{B0: s.B0, B1: s.B1, B2: s.B2, A1: s.A1, A2: s.A2}
	}
	return out
}

// Apply filters a buffer of samples in place. Never returns an error: any
// unreachable geometry problem was already rejected at construction time.
func (f *Filter) Apply(samples []float32) {
	f.chain.ProcessBufferF32(samples)
}

// Reset discards filter history (used on order-changing hot-reloads).
func (f *Filter) Reset() {
	f.chain.Reset()
}

// Retune rebuilds coefficients for a new center/bandwidth without
// disturbing delay-register state, used for hot-reloads that only change
// CenterHz/BandwidthHz. Returns false (and leaves the filter untouched) if
// the new spec would change the number of sections (i.e. a different
// order), signalling the caller to construct a new Filter and Reset
// instead.
func (f *Filter) Retune(spec Spec) (bool, error) {
	sections, err := computeSections(spec)
	if err != nil {
		return false, errors.New(err).
			Component("filterbank").
			Category(errors.CategoryFilter).
			Build()
	}
	if !f.chain.SetCoefficients(toChainSections(sections)) {
		return false, nil
	}
	f.spec = spec
	return true, nil
}

// Spec returns the filter's current design parameters.
func (f *Filter) Spec() Spec { return f.spec }

// NumSections reports the cascade length (order/2 for band-pass,
// ceil(order/2) for low/high-pass).
func (f *Filter) NumSections() int { return len(f.chain.Sections) }
