// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kernel

import (
	"math"
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"
)

func baseParams() VoronoiParams {
	return VoronoiParams{
		Scale:      5.0,
		Detail:     0.0,
		Roughness:  0.5,
		Lacunarity: 2.0,
		Smoothness: 1.0,
		Exponent:   2.5,
		Randomness: 1.0,
		Normalize:  false,
		Feature:    VoronoiF1,
		Metric:     MetricEuclidean,
	}
}

func sampleCoords3D(n int) []glm.Vec3 {
	coords := make([]glm.Vec3, 0, n)
	for i := 0; i < n; i++ {
		k := float32(i)
		coords = append(coords, glm.Vec3{
			HashFloat2ToFloat(k, 0.0)*20.0 - 10.0,
			HashFloat2ToFloat(k, 1.0)*20.0 - 10.0,
			HashFloat2ToFloat(k, 2.0)*20.0 - 10.0,
		})
	}
	return coords
}

func TestVoronoiDeterminism(t *testing.T) {
	p := baseParams()
	p.Detail = 3.5
	for _, c := range sampleCoords3D(50) {
		a := Evaluate3D(p, c)
		b := Evaluate3D(p, c)
		if a != b {
			t.Fatalf("evaluation at %v is not deterministic: %v != %v", c, a, b)
		}
	}
}

// TestVoronoiSearchBoundRanking verifies that the cheap in-search distance
// stand-in picks the same winning feature point as an exhaustive search with
// the exact metric, for every metric.
func TestVoronoiSearchBoundRanking(t *testing.T) {
	metrics := []DistanceMetric{MetricEuclidean, MetricManhattan, MetricChebyshev, MetricMinkowski}
	for _, metric := range metrics {
		p := baseParams()
		p.Metric = metric
		for _, c := range sampleCoords3D(200) {
			got := voronoiF1_3D(&p, c)

			cellPositionF := floorVec3(c)
			localPosition := c.Sub(cellPositionF)
			cx, cy, cz := int32(cellPositionF.X()), int32(cellPositionF.Y()), int32(cellPositionF.Z())
			want := float32(math.MaxFloat32)
			for k := int32(-1); k <= 1; k++ {
				for j := int32(-1); j <= 1; j++ {
					for i := int32(-1); i <= 1; i++ {
						d := voronoiDistance3D(cellPoint3D(&p, cx, cy, cz, i, j, k), localPosition, &p)
						want = minf(want, d)
					}
				}
			}
			if got.Distance != want {
				t.Fatalf("metric %d at %v: bound search found %f, exact search %f",
					metric, c, got.Distance, want)
			}
		}
	}
}

func TestVoronoiZeroDetailMatchesSingleOctave(t *testing.T) {
	p := baseParams()
	p.Scale = 1.0
	p.Detail = 0.0
	for _, c := range sampleCoords3D(50) {
		got := Evaluate3D(p, c)
		want := voronoiF1_3D(&p, c)
		if got.Distance != want.Distance || got.Color != want.Color || got.Position != want.Position {
			t.Fatalf("zero detail output %v differs from raw octave %v", got, want)
		}
	}
}

func TestVoronoiZeroRoughnessMatchesZeroDetail(t *testing.T) {
	a := baseParams()
	a.Detail = 7.3
	a.Roughness = 0.0
	b := baseParams()
	b.Detail = 0.0
	for _, c := range sampleCoords3D(50) {
		if Evaluate3D(a, c) != Evaluate3D(b, c) {
			t.Fatalf("zero roughness does not collapse to a single octave at %v", c)
		}
	}
}

func TestVoronoiFractionalDetailContinuity(t *testing.T) {
	lo := baseParams()
	lo.Detail = 2.999
	hi := baseParams()
	hi.Detail = 3.0
	for _, c := range sampleCoords3D(50) {
		a := Evaluate3D(lo, c)
		b := Evaluate3D(hi, c)
		if absf(a.Distance-b.Distance) > 0.01 {
			t.Fatalf("distance jumps across detail boundary at %v: %f vs %f",
				c, a.Distance, b.Distance)
		}
	}
}

func TestVoronoiZeroSmoothnessIsF1(t *testing.T) {
	smooth := baseParams()
	smooth.Feature = VoronoiSmoothF1
	smooth.Smoothness = 0.0
	plain := baseParams()
	plain.Feature = VoronoiF1
	for _, c := range sampleCoords3D(50) {
		if Evaluate3D(smooth, c) != Evaluate3D(plain, c) {
			t.Fatalf("zero smoothness does not degrade to the F1 search at %v", c)
		}
	}
}

func TestVoronoiZeroScaleIsFinite(t *testing.T) {
	p := baseParams()
	p.Scale = 0.0
	p.Normalize = true
	out := Evaluate3D(p, glm.Vec3{1.5, -2.5, 3.5})
	if math.IsNaN(float64(out.Distance)) || math.IsInf(float64(out.Distance), 0) {
		t.Errorf("distance is not finite at zero scale: %f", out.Distance)
	}
	if out.Position != (glm.Vec4{}) {
		t.Errorf("position should divide safely to zero at zero scale, got %v", out.Position)
	}
}

func TestVoronoiNormalizedDistanceRange(t *testing.T) {
	features := []VoronoiFeature{VoronoiF1, VoronoiF2, VoronoiSmoothF1, VoronoiDistanceToEdge}
	for _, feature := range features {
		p := baseParams()
		p.Feature = feature
		p.Detail = 2.0
		p.Normalize = true
		for _, c := range sampleCoords3D(200) {
			d := Evaluate3D(p, c).Distance
			if d < -0.2 || d > 1.25 {
				t.Fatalf("feature %d: normalized distance %f escapes the expected range at %v",
					feature, d, c)
			}
		}
	}
}

func TestVoronoiParamClamping(t *testing.T) {
	p := VoronoiParams{
		Detail:     99.0,
		Roughness:  2.0,
		Randomness: -3.0,
		Smoothness: 10.0,
	}
	n := p.normalized()
	if n.Detail != 15.0 {
		t.Errorf("detail clamped to %f, want 15", n.Detail)
	}
	if n.Roughness != 1.0 {
		t.Errorf("roughness clamped to %f, want 1", n.Roughness)
	}
	if n.Randomness != 0.0 {
		t.Errorf("randomness clamped to %f, want 0", n.Randomness)
	}
	if n.Smoothness != 0.5 {
		t.Errorf("smoothness clamped to %f, want 0.5", n.Smoothness)
	}
}

func TestVoronoiF2AtLeastF1(t *testing.T) {
	f1 := baseParams()
	f2 := baseParams()
	f2.Feature = VoronoiF2
	for _, c := range sampleCoords3D(200) {
		a := Evaluate3D(f1, c)
		b := Evaluate3D(f2, c)
		if b.Distance < a.Distance {
			t.Fatalf("F2 distance %f below F1 distance %f at %v", b.Distance, a.Distance, c)
		}
	}
}

func TestVoronoiDimensions(t *testing.T) {
	p := baseParams()
	p.Detail = 1.5
	p.Normalize = true

	out1 := Evaluate1D(p, 3.7)
	if out1.Distance < 0 {
		t.Errorf("1D distance negative: %f", out1.Distance)
	}
	out2 := Evaluate2D(p, glm.Vec2{1.2, -0.7})
	if out2.Distance < 0 {
		t.Errorf("2D distance negative: %f", out2.Distance)
	}
	out4 := Evaluate4D(p, glm.Vec4{1.2, -0.7, 0.3, 2.2})
	if out4.Distance < 0 {
		t.Errorf("4D distance negative: %f", out4.Distance)
	}
}

func TestVoronoiNSphereRadius(t *testing.T) {
	p := baseParams()
	p.Feature = VoronoiNSphereRadius
	for _, c := range sampleCoords3D(50) {
		out := Evaluate3D(p, c)
		if out.Radius < 0 {
			t.Fatalf("negative radius %f at %v", out.Radius, c)
		}
		if out.Distance != 0 || out.Color != (glm.Vec3{}) {
			t.Fatalf("n-sphere evaluation leaked non-radius outputs at %v: %v", c, out)
		}
	}
}

func BenchmarkEvaluate3DF1(b *testing.B) {
	p := baseParams()
	coords := sampleCoords3D(64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate3D(p, coords[i%len(coords)])
	}
}

func BenchmarkEvaluate3DFractal(b *testing.B) {
	p := baseParams()
	p.Detail = 4.0
	coords := sampleCoords3D(64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate3D(p, coords[i%len(coords)])
	}
}

func BenchmarkEvaluate3DSmoothF1(b *testing.B) {
	p := baseParams()
	p.Feature = VoronoiSmoothF1
	coords := sampleCoords3D(64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate3D(p, coords[i%len(coords)])
	}
}
