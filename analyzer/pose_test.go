package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/presence/core"
)

const (
	testWidth  = 640.0
	testHeight = 480.0
)

// projectModel renders the anthropometric model through a pinhole camera
// after rotating it about the Y axis by yawDeg and translating it depthwise.
func projectModel(yawDeg float64) []core.Point {
	theta := yawDeg * math.Pi / 180
	c, s := math.Cos(theta), math.Sin(theta)
	focal := testWidth
	cx, cy := testWidth/2, testHeight/2
	tz := 1000.0

	pts := make([]core.Point, 6)
	for i, m := range modelPoints {
		// R_y(theta) * m + t
		x := c*m[0] + s*m[2]
		y := m[1]
		z := -s*m[0] + c*m[2] + tz

		pts[i] = core.Point{
			X: focal*x/z + cx,
			Y: focal*y/z + cy,
		}
	}
	return pts
}

func poseFrame(yawDeg float64) core.LandmarkFrame {
	return core.LandmarkFrame{
		PoseRef: projectModel(yawDeg),
		Width:   testWidth,
		Height:  testHeight,
	}
}

func TestHeadPose_Frontal(t *testing.T) {
	yaw, pitch, roll, err := HeadPose(poseFrame(0))
	require.NoError(t, err)

	assert.InDelta(t, 0.0, yaw, 1.0)
	assert.InDelta(t, 0.0, pitch, 1.0)
	assert.InDelta(t, 0.0, roll, 1.0)
}

func TestHeadPose_YawRotation(t *testing.T) {
	yaw, _, _, err := HeadPose(poseFrame(25))
	require.NoError(t, err)

	assert.InDelta(t, 25.0, math.Abs(yaw), 3.0)
}

func TestHeadTurned(t *testing.T) {
	assert.False(t, HeadTurned(poseFrame(0), 15))
	assert.True(t, HeadTurned(poseFrame(30), 15))
}

func TestHeadPose_MissingLandmarks(t *testing.T) {
	_, _, _, err := HeadPose(core.LandmarkFrame{Width: testWidth, Height: testHeight})
	assert.ErrorIs(t, err, ErrPoseUnsolvable)
}
