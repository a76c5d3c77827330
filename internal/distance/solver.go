// Package distance recovers a spacecraft position estimate from horizon
// points using spherical tangent-cone geometry.
package distance

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/UWCubeSat/found-integration-testing/internal/camera"
	"github.com/UWCubeSat/found-integration-testing/internal/edge"
)

// EarthRadiusM is the reference body radius used to convert distance
// from the body centre into altitude above the surface.
const EarthRadiusM = 6378137.0

// Position is a body-centred spacecraft position in meters.
type Position = r3.Vec

// ErrDegenerate is returned when the horizon points do not describe a
// usable circular arc (too few points, collinear, or a non-positive
// fitted radius).
var ErrDegenerate = errors.New("horizon points do not form a circular arc")

// IterativeSphericalSolver estimates the distance to a spherical body
// from the projection of its horizon. Each pass fits a circle to the
// horizon points by weighted least squares; residual-based reweighting
// runs Iterations times, then Refreshes passes prune outliers and refit
// on the survivors. The fitted circle radius gives the half-angle of the
// tangent cone, which fixes the distance from the body centre.
type IterativeSphericalSolver struct {
	Radius             float64 // reference body radius, meters
	Iterations         int     // reweighting passes per fit
	Refreshes          int     // prune-and-refit rounds
	DistanceTolerance  float64 // early stop when the distance moves less than this, meters
	DiscriminatorRatio float64 // residual multiple beyond which a point is an outlier
	PDFOrder           int     // exponent of the residual weighting falloff
	RadiusLossOrder    int     // exponent of the residual loss used for pruning
}

// NewIterativeSphericalSolver returns a solver with the stock tuning.
func NewIterativeSphericalSolver() *IterativeSphericalSolver {
	return &IterativeSphericalSolver{
		Radius:             EarthRadiusM,
		Iterations:         2,
		Refreshes:          1,
		DistanceTolerance:  10,
		DiscriminatorRatio: 1.1,
		PDFOrder:           2,
		RadiusLossOrder:    4,
	}
}

// Solve produces one position estimate from a non-empty point set. The
// caller is responsible for not invoking it with an empty set; fewer
// than three points cannot constrain a circle and return ErrDegenerate.
func (s *IterativeSphericalSolver) Solve(points edge.PointSet, cam camera.Model) (Position, error) {
	if len(points) < 3 {
		return Position{}, fmt.Errorf("%w: need at least 3 points, got %d", ErrDegenerate, len(points))
	}

	pts := make(edge.PointSet, len(points))
	copy(pts, points)

	var cx, cy, r float64
	var err error
	prev := math.Inf(1)

	for refresh := 0; refresh <= s.Refreshes; refresh++ {
		w := make([]float64, len(pts))
		for i := range w {
			w[i] = 1
		}

		for iter := 0; iter < s.Iterations; iter++ {
			cx, cy, r, err = fitCircle(pts, w)
			if err != nil {
				return Position{}, err
			}

			res := residuals(pts, cx, cy, r)
			scale := s.DiscriminatorRatio * medianAbs(res)
			if scale > 0 {
				for i, ri := range res {
					w[i] = 1 / (1 + math.Pow(math.Abs(ri)/scale, float64(s.PDFOrder)))
				}
			}

			d, derr := s.distanceFor(r, cam)
			if derr == nil && math.Abs(d-prev) < s.DistanceTolerance {
				prev = d
				break
			}
			if derr == nil {
				prev = d
			}
		}

		if refresh < s.Refreshes {
			pts = s.prune(pts, cx, cy, r)
		}
	}

	d, err := s.distanceFor(r, cam)
	if err != nil {
		return Position{}, err
	}

	// Back-project the circle centre to get the direction from the
	// camera to the body centre, then place the spacecraft at distance
	// d on the opposite ray.
	px, py := cam.PrincipalPoint()
	u := (cx - px) * cam.PixelSize
	v := (cy - py) * cam.PixelSize
	dir := r3.Unit(r3.Vec{X: u, Y: v, Z: cam.FocalLength})
	return r3.Scale(-d, dir), nil
}

// distanceFor converts a fitted horizon radius in pixels into a distance
// from the body centre. The horizon subtends the tangent cone half-angle
// alpha with sin(alpha) = R/d.
func (s *IterativeSphericalSolver) distanceFor(rPixels float64, cam camera.Model) (float64, error) {
	if rPixels <= 0 || math.IsNaN(rPixels) || math.IsInf(rPixels, 0) {
		return 0, fmt.Errorf("%w: fitted radius %g px", ErrDegenerate, rPixels)
	}
	alpha := math.Atan2(rPixels*cam.PixelSize, cam.FocalLength)
	sin := math.Sin(alpha)
	if sin <= 0 {
		return 0, fmt.Errorf("%w: tangent cone half-angle %g", ErrDegenerate, alpha)
	}
	return s.Radius / sin, nil
}

// prune drops points whose residual loss exceeds the discriminator
// multiple of the median loss. The pruned set is only adopted when it
// still constrains a circle.
func (s *IterativeSphericalSolver) prune(pts edge.PointSet, cx, cy, r float64) edge.PointSet {
	res := residuals(pts, cx, cy, r)
	loss := make([]float64, len(res))
	for i, ri := range res {
		loss[i] = math.Pow(math.Abs(ri), float64(s.RadiusLossOrder))
	}
	cut := s.DiscriminatorRatio * medianAbs(loss)
	if cut <= 0 {
		return pts
	}

	kept := make(edge.PointSet, 0, len(pts))
	for i, p := range pts {
		if loss[i] <= cut {
			kept = append(kept, p)
		}
	}
	if len(kept) < 3 {
		return pts
	}
	return kept
}

// fitCircle solves the weighted algebraic circle fit x²+y² = ax + by + c
// as a linear least-squares problem.
func fitCircle(pts edge.PointSet, w []float64) (cx, cy, r float64, err error) {
	n := len(pts)
	a := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i, p := range pts {
		sw := math.Sqrt(w[i])
		a.Set(i, 0, sw*p.X)
		a.Set(i, 1, sw*p.Y)
		a.Set(i, 2, sw)
		b.SetVec(i, sw*(p.X*p.X+p.Y*p.Y))
	}

	var qr mat.QR
	qr.Factorize(a)
	var beta mat.VecDense
	if serr := qr.SolveVecTo(&beta, false, b); serr != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrDegenerate, serr)
	}

	cx = beta.AtVec(0) / 2
	cy = beta.AtVec(1) / 2
	r2 := beta.AtVec(2) + cx*cx + cy*cy
	if r2 <= 0 || math.IsNaN(r2) {
		return 0, 0, 0, ErrDegenerate
	}
	return cx, cy, math.Sqrt(r2), nil
}

func residuals(pts edge.PointSet, cx, cy, r float64) []float64 {
	res := make([]float64, len(pts))
	for i, p := range pts {
		res[i] = math.Hypot(p.X-cx, p.Y-cy) - r
	}
	return res
}

func medianAbs(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	abs := make([]float64, len(vals))
	for i, v := range vals {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)
	mid := len(abs) / 2
	if len(abs)%2 == 1 {
		return abs[mid]
	}
	return (abs[mid-1] + abs[mid]) / 2
}
