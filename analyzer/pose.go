package analyzer

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/layer-3/presence/core"
)

// ErrPoseUnsolvable is returned when the 2D-3D correspondence cannot be
// solved for a frame.
var ErrPoseUnsolvable = errors.New("head pose estimation failed")

// modelPoints is the fixed anthropometric 3D reference: nose tip, chin,
// left/right eye corner, left/right mouth corner. Units are arbitrary model
// millimeters with the nose tip at the origin.
var modelPoints = [6][3]float64{
	{0.0, 0.0, 0.0},
	{0.0, -330.0, -65.0},
	{-225.0, 170.0, -135.0},
	{225.0, 170.0, -135.0},
	{-150.0, -150.0, -125.0},
	{150.0, -150.0, -125.0},
}

// HeadPose solves the 6-point 2D-3D perspective correspondence of a frame
// against the anthropometric model and returns yaw, pitch and roll in
// degrees. The camera is modeled as a pinhole with focal length equal to the
// frame width and the principal point at the frame center.
//
// The projection matrix is recovered by direct linear transform over the
// normalized image points, its rotation block orthonormalized by SVD, and
// Euler angles extracted from the resulting rotation.
func HeadPose(frame core.LandmarkFrame) (yaw, pitch, roll float64, err error) {
	if len(frame.PoseRef) < 6 || frame.Width <= 0 || frame.Height <= 0 {
		return 0, 0, 0, ErrPoseUnsolvable
	}

	focal := frame.Width
	cx := frame.Width / 2
	cy := frame.Height / 2

	// Two DLT rows per correspondence, in normalized camera coordinates.
	a := mat.NewDense(12, 12, nil)
	for i := 0; i < 6; i++ {
		u := (frame.PoseRef[i].X - cx) / focal
		v := (frame.PoseRef[i].Y - cy) / focal
		x, y, z := modelPoints[i][0], modelPoints[i][1], modelPoints[i][2]

		a.SetRow(2*i, []float64{x, y, z, 1, 0, 0, 0, 0, -u * x, -u * y, -u * z, -u})
		a.SetRow(2*i+1, []float64{0, 0, 0, 0, x, y, z, 1, -v * x, -v * y, -v * z, -v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return 0, 0, 0, ErrPoseUnsolvable
	}
	var v mat.Dense
	svd.VTo(&v)

	// Projection vector = right singular vector of the smallest singular value.
	p := mat.NewDense(3, 4, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			p.Set(r, c, v.At(4*r+c, 11))
		}
	}

	// Fix the overall sign so the model sits in front of the camera
	// (positive depth for the nose tip).
	if p.At(2, 3) < 0 {
		p.Scale(-1, p)
	}

	// Normalize scale by the third rotation row.
	scale := math.Hypot(p.At(2, 0), math.Hypot(p.At(2, 1), p.At(2, 2)))
	if scale == 0 {
		return 0, 0, 0, ErrPoseUnsolvable
	}
	p.Scale(1/scale, p)

	rot := mat.NewDense(3, 3, nil)
	rot.Copy(p.Slice(0, 3, 0, 3))

	// Orthonormalize the rotation block.
	var rsvd mat.SVD
	if !rsvd.Factorize(rot, mat.SVDFull) {
		return 0, 0, 0, ErrPoseUnsolvable
	}
	var u, vt mat.Dense
	rsvd.UTo(&u)
	rsvd.VTo(&vt)
	var r mat.Dense
	r.Mul(&u, vt.T())
	if mat.Det(&r) < 0 {
		// Flip the last column of U to stay in SO(3).
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, vt.T())
	}

	sy := math.Hypot(r.At(0, 0), r.At(1, 0))
	if sy > 1e-6 {
		pitch = math.Atan2(r.At(2, 1), r.At(2, 2))
		yaw = math.Atan2(-r.At(2, 0), sy)
		roll = math.Atan2(r.At(1, 0), r.At(0, 0))
	} else {
		pitch = math.Atan2(-r.At(1, 2), r.At(1, 1))
		yaw = math.Atan2(-r.At(2, 0), sy)
		roll = 0
	}

	const toDeg = 180 / math.Pi
	return yaw * toDeg, pitch * toDeg, roll * toDeg, nil
}

// HeadTurned reports whether the head pose deviates from frontal by more
// than the threshold in yaw or pitch, in degrees.
func HeadTurned(frame core.LandmarkFrame, thresholdDeg float64) bool {
	yaw, pitch, _, err := HeadPose(frame)
	if err != nil {
		return false
	}
	return math.Abs(yaw) > thresholdDeg || math.Abs(pitch) > thresholdDeg
}
