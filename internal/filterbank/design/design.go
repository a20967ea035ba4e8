// Package design computes biquad-cascade coefficients for Butterworth
// low-pass, high-pass and band-pass filters of arbitrary order, using the
// standard analog-prototype -> frequency-transform -> bilinear-transform
// pipeline (the same sequence scipy.signal.butter + sos conversion uses
// internally, though the final cascade may group sections in a different
// order than scipy's zpk2sos — the resulting transfer function, and so the
// frequency response, is the same).
package design

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Kind selects which Butterworth response to design.
type Kind int

const (
	LowPass Kind = iota
	HighPass
	BandPassKind
)

// Section holds one digital second-order section's coefficients, with a0
// implicitly normalized to 1.
type Section struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// analogPrototypePoles returns the `order` poles of a unit-cutoff analog
// Butterworth low-pass prototype, all with negative real part.
func analogPrototypePoles(order int) []complex128 {
	poles := make([]complex128, order)
	for k := 0; k < order; k++ {
		theta := math.Pi*(2*float64(k)+1)/(2*float64(order)) + math.Pi/2
		poles[k] = complex(math.Cos(theta), math.Sin(theta))
	}
	return poles
}

// poleGroup is either one real pole or a conjugate pair, grouped the way a
// Butterworth prototype's poles naturally split for order-preserving
// cascade design.
type poleGroup struct {
	poles []complex128
}

func groupPoles(poles []complex128) []poleGroup {
	const eps = 1e-9
	used := make([]bool, len(poles))
	groups := make([]poleGroup, 0, (len(poles)+1)/2)
	for i := range poles {
		if used[i] {
			continue
		}
		if math.Abs(imag(poles[i])) < eps {
			used[i] = true
			groups = append(groups, poleGroup{poles: []complex128{poles[i]}})
			continue
		}
		for j := i + 1; j < len(poles); j++ {
			if used[j] {
				continue
			}
			if cmplx.Abs(poles[j]-cmplx.Conj(poles[i])) < eps {
				used[i], used[j] = true, true
				groups = append(groups, poleGroup{poles: []complex128{poles[i], poles[j]}})
				break
			}
		}
	}
	return groups
}

// bilinearBiquad maps an analog 2nd-order section (b0 s^2+b1 s+b2)/(a0
// s^2+a1 s+a2) to a digital biquad via s = k(z-1)/(z+1), k=2*sampleRate.
// A first-order analog section (a0=0 and b0=0) maps to a first-order
// digital section with B2 = A2 = 0.
func bilinearBiquad(b0, b1, b2, a0, a1, a2, k float64) Section {
	if a0 == 0 && b0 == 0 {
		denomLead := a1*k + a2
		return Section{
			B0: (b1*k + b2) / denomLead,
			B1: (b2 - b1*k) / denomLead,
			A1: (a2 - a1*k) / denomLead,
		}
	}
	k2 := k * k
	denomLead := a0*k2 + a1*k + a2
	return Section{
		B0: (b0*k2 + b1*k + b2) / denomLead,
		B1: 2 * (b2 - b0*k2) / denomLead,
		B2: (b0*k2 - b1*k + b2) / denomLead,
		A1: 2 * (a2 - a0*k2) / denomLead,
		A2: (a0*k2 - a1*k + a2) / denomLead,
	}
}

func prewarp(cutoffHz float64, sampleRate int) float64 {
	fs := float64(sampleRate)
	return 2 * fs * math.Tan(math.Pi*cutoffHz/fs)
}

// LowHighPass designs a Butterworth low-pass or high-pass cascade of the
// given order. Returns ceil(order/2) sections, with a leading first-order
// section when order is odd.
func LowHighPass(kind Kind, order int, cutoffHz float64, sampleRate int) ([]Section, error) {
	if order < 1 {
		return nil, fmt.Errorf("order must be >= 1, got %d", order)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	nyquist := float64(sampleRate) / 2
	if cutoffHz <= 0 || cutoffHz >= nyquist {
		return nil, fmt.Errorf("cutoff %.3f Hz must be in (0, %.3f)", cutoffHz, nyquist)
	}

	wc := prewarp(cutoffHz, sampleRate)
	k := 2 * float64(sampleRate)

	groups := groupPoles(analogPrototypePoles(order))
	sections := make([]Section, 0, len(groups))
	for _, g := range groups {
		if len(g.poles) == 2 {
			re := real(g.poles[0])
			a0, a1, a2 := 1.0, -2*re*wc, wc*wc
			var b0, b1, b2 float64
			if kind == LowPass {
				b0, b1, b2 = 0, 0, wc*wc
			} else {
				b0, b1, b2 = 1, 0, 0
			}
			sections = append(sections, bilinearBiquad(b0, b1, b2, a0, a1, a2, k))
		} else {
			// Butterworth's lone real pole always sits at s = -1 on the
			// unit-cutoff prototype, so the analog section is always
			// 1/(s+1) (LP) regardless of order/parity.
			a0, a1, a2 := 0.0, 1.0, wc
			var b0, b1, b2 float64
			if kind == LowPass {
				b0, b1, b2 = 0, 0, wc
			} else {
				b0, b1, b2 = 0, 1, 0
			}
			sections = append([]Section{bilinearBiquad(b0, b1, b2, a0, a1, a2, k)}, sections...)
		}
	}
	return sections, nil
}

// BandPass designs a Butterworth band-pass cascade. order must be even; it
// produces order/2 sections by designing an order/2 low-pass prototype and
// applying the analog LP->BP transform s -> (s^2+w0^2)/(BW*s) pole-by-pole.
func BandPass(order int, lowHz, highHz float64, sampleRate int) ([]Section, error) {
	if order < 2 || order%2 != 0 {
		return nil, fmt.Errorf("band-pass order must be even and >= 2, got %d", order)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	nyquist := float64(sampleRate) / 2
	if lowHz <= 0 || highHz <= lowHz || highHz >= nyquist {
		return nil, fmt.Errorf("band edges [%.3f, %.3f] Hz invalid for nyquist %.3f", lowHz, highHz, nyquist)
	}

	w1 := prewarp(lowHz, sampleRate)
	w2 := prewarp(highHz, sampleRate)
	w0 := math.Sqrt(w1 * w2)
	bw := w2 - w1
	k := 2 * float64(sampleRate)

	protoOrder := order / 2
	groups := groupPoles(analogPrototypePoles(protoOrder))
	sections := make([]Section, 0, protoOrder)

	for _, g := range groups {
		if len(g.poles) == 2 {
			p := g.poles[0]
			bwp := complex(bw, 0) * p
			disc := cmplx.Sqrt(bwp*bwp - complex(4*w0*w0, 0))
			r1 := (bwp + disc) / 2
			r2 := (bwp - disc) / 2
			for _, r := range [2]complex128{r1, r2} {
				re := real(r)
				mag2 := real(r)*real(r) + imag(r)*imag(r)
				sections = append(sections, bilinearBiquad(0, bw, 0, 1, -2*re, mag2, k))
			}
		} else {
			p := real(g.poles[0])
			bwp := bw * p
			disc := bwp*bwp - 4*w0*w0
			if disc >= 0 {
				sq := math.Sqrt(disc)
				q1, q2 := (bwp+sq)/2, (bwp-sq)/2
				sections = append(sections, bilinearBiquad(0, bw, 0, 1, -(q1 + q2), q1*q2, k))
			} else {
				sq := math.Sqrt(-disc)
				re, im := bwp/2, sq/2
				mag2 := re*re + im*im
				sections = append(sections, bilinearBiquad(0, bw, 0, 1, -2*re, mag2, k))
			}
		}
	}
	return sections, nil
}
