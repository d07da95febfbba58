package gamemath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// WorldUp is +Y; forward is +Z.
var (
	WorldUp      = mgl64.Vec3{0, 1, 0}
	LocalForward = mgl64.Vec3{0, 0, 1}
)

const minLookLenSqr = 0.0001

// LookRotation returns the rotation that maps +Z onto forward with +Y kept as
// close to up as possible. A zero forward yields the identity.
func LookRotation(forward, up mgl64.Vec3) mgl64.Quat {
	if forward.LenSqr() < 1e-12 {
		return mgl64.QuatIdent()
	}
	f := forward.Normalize()

	r := up.Cross(f)
	if r.LenSqr() < 1e-12 {
		// forward is parallel to up; any perpendicular axis will do
		r = mgl64.Vec3{1, 0, 0}.Cross(f)
		if r.LenSqr() < 1e-12 {
			r = mgl64.Vec3{0, 0, 1}.Cross(f)
		}
	}
	r = r.Normalize()
	u := f.Cross(r)

	return mgl64.Mat4ToQuat(mgl64.Mat3FromCols(r, u, f).Mat4()).Normalize()
}

// SmoothLook turns current toward dir by a slerp fraction of dt*smoothing.
// Tiny directions leave the rotation unchanged.
func SmoothLook(current mgl64.Quat, dir mgl64.Vec3, smoothing, dt float64) mgl64.Quat {
	if dir.LenSqr() < minLookLenSqr {
		return current
	}
	target := LookRotation(dir, WorldUp)
	amount := mgl64.Clamp(dt*smoothing, 0, 1)
	return mgl64.QuatSlerp(current, target, amount)
}

// Forward is the world direction of local +Z under q.
func Forward(q mgl64.Quat) mgl64.Vec3 {
	return q.Rotate(LocalForward)
}

// Lerp blends a toward b by t.
func Lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// Sanitize replaces NaN and infinite components with zero.
func Sanitize(v mgl64.Vec3) mgl64.Vec3 {
	for i, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			v[i] = 0
		}
	}
	return v
}

// Finite reports whether every component is a real number.
func Finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
