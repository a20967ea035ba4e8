package filterbank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(freqHz float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freqHz * float64(i) / float64(sampleRate)))
	}
	return out
}

func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestLowPassPassesDCNearUnity(t *testing.T) {
	t.Parallel()

	f, err := New(Spec{Response: LowPass, Order: 4, CenterHz: 2000, SampleRate: 48000})
	require.NoError(t, err)

	samples := make([]float32, 4000)
	for i := range samples {
		samples[i] = 1.0
	}
	f.Apply(samples)
	assert.InDelta(t, 1.0, samples[len(samples)-1], 0.05)
}

func TestHighPassAttenuatesLowFrequency(t *testing.T) {
	t.Parallel()

	const sr = 48000
	f, err := New(Spec{Response: HighPass, Order: 4, CenterHz: 4000, SampleRate: sr})
	require.NoError(t, err)

	low := tone(100, sr, 8192)
	f.Apply(low)
	assert.Less(t, rms(low[2048:]), 0.1)
}

func TestBandPassSelectivityIncreasesWithOrder(t *testing.T) {
	t.Parallel()

	const sr = 48000
	outOfBand := tone(20000, sr, 8192)

	f2, err := New(Spec{Response: BandPass, Order: 2, CenterHz: 5000, BandwidthHz: 500, SampleRate: sr})
	require.NoError(t, err)
	f8, err := New(Spec{Response: BandPass, Order: 8, CenterHz: 5000, BandwidthHz: 500, SampleRate: sr})
	require.NoError(t, err)

	s2 := append([]float32(nil), outOfBand...)
	s8 := append([]float32(nil), outOfBand...)
	f2.Apply(s2)
	f8.Apply(s8)

	assert.LessOrEqual(t, rms(s8[2048:]), rms(s2[2048:])+1e-6)
}

func TestBandPassPassesCenterFrequency(t *testing.T) {
	t.Parallel()

	const sr = 48000
	center := tone(5000, sr, 8192)
	f, err := New(Spec{Response: BandPass, Order: 4, CenterHz: 5000, BandwidthHz: 1000, SampleRate: sr})
	require.NoError(t, err)

	f.Apply(center)
	assert.Greater(t, rms(center[2048:]), 0.3)
}

func TestResetThenReapplyIsIdempotent(t *testing.T) {
	t.Parallel()

	const sr = 48000
	f, err := New(Spec{Response: BandPass, Order: 4, CenterHz: 5000, BandwidthHz: 1000, SampleRate: sr})
	require.NoError(t, err)

	input := tone(5000, sr, 2048)

	a := append([]float32(nil), input...)
	f.Apply(a)

	f.Reset()
	b := append([]float32(nil), input...)
	f.Apply(b)

	for i := range a {
		assert.InDelta(t, a[i], b[i], 1e-9)
	}
}

func TestOddBandPassOrderIsInvalidFilterSpec(t *testing.T) {
	t.Parallel()

	_, err := New(Spec{Response: BandPass, Order: 3, CenterHz: 5000, BandwidthHz: 1000, SampleRate: 48000})
	require.Error(t, err)
}

func TestLowPassOddOrderHasLeadingFirstOrderSection(t *testing.T) {
	t.Parallel()

	f, err := New(Spec{Response: LowPass, Order: 5, CenterHz: 2000, SampleRate: 48000})
	require.NoError(t, err)
	assert.Equal(t, 3, f.NumSections()) // ceil(5/2)
}

func TestBandPassThreeToneSelectivity(t *testing.T) {
	t.Parallel()

	// Since the filter is linear, per-tone responses of the summed input
	// can be measured by filtering each tone separately.
	const sr = 48000
	spec := Spec{Response: BandPass, Order: 4, CenterHz: 2000, BandwidthHz: 200, SampleRate: sr}

	responses := make(map[float64]float64)
	for _, freq := range []float64{500, 2000, 8000} {
		f, err := New(spec)
		require.NoError(t, err)
		s := tone(freq, sr, 48000)
		f.Apply(s)
		responses[freq] = rms(s[8192:]) // skip the transient
	}

	for _, outOfBand := range []float64{500, 8000} {
		attenDB := 20 * math.Log10(responses[2000]/responses[outOfBand])
		assert.GreaterOrEqualf(t, attenDB, 24.0, "tone at %.0f Hz only attenuated %.1f dB", outOfBand, attenDB)
	}
}

func TestSteadyStateMatchesAfterReset(t *testing.T) {
	t.Parallel()

	const sr = 48000
	f, err := New(Spec{Response: BandPass, Order: 6, CenterHz: 2000, BandwidthHz: 400, SampleRate: sr})
	require.NoError(t, err)

	input := tone(2000, sr, 16384)

	a := append([]float32(nil), input...)
	f.Apply(a)
	f.Reset()
	b := append([]float32(nil), input...)
	f.Apply(b)

	// Steady-state tails must correlate essentially perfectly.
	tailA, tailB := a[8192:], b[8192:]
	var dot, na, nb float64
	for i := range tailA {
		dot += float64(tailA[i]) * float64(tailB[i])
		na += float64(tailA[i]) * float64(tailA[i])
		nb += float64(tailB[i]) * float64(tailB[i])
	}
	corr := dot / math.Sqrt(na*nb)
	assert.Greater(t, corr, 0.999)
}

func TestSelectivityNonDecreasingAcrossOrders(t *testing.T) {
	t.Parallel()

	const sr = 48000
	selectivity := func(order int) float64 {
		var resp [2]float64
		for i, freq := range []float64{2000, 8000} {
			f, err := New(Spec{Response: BandPass, Order: order, CenterHz: 2000, BandwidthHz: 200, SampleRate: sr})
			require.NoError(t, err)
			s := tone(freq, sr, 32768)
			f.Apply(s)
			resp[i] = rms(s[8192:])
		}
		return 20 * math.Log10(resp[0]/resp[1])
	}

	prev := math.Inf(-1)
	for _, order := range []int{2, 4, 6, 8, 10} {
		sel := selectivity(order)
		assert.GreaterOrEqualf(t, sel, prev-1.0, "selectivity regressed at order %d", order)
		prev = sel
	}
}

func TestRetunePreservesSectionCountAndUpdatesSpec(t *testing.T) {
	t.Parallel()

	const sr = 48000
	f, err := New(Spec{Response: BandPass, Order: 4, CenterHz: 5000, BandwidthHz: 1000, SampleRate: sr})
	require.NoError(t, err)

	ok, err := f.Retune(Spec{Response: BandPass, Order: 4, CenterHz: 6000, BandwidthHz: 1000, SampleRate: sr})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 6000, f.Spec().CenterHz, 1e-9)
}
