package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-pipeline/math"
)

func TestParseColor(t *testing.T) {
	for _, s := range []string{"#7f7f7f", "7F7F7F", "0x7f7f7f"} {
		c, err := ParseColor(s)
		require.NoError(t, err, s)
		assert.Equal(t, ColorFromHex(0x7f7f7f), c)
		assert.Equal(t, uint32(0x7f7f7f), c.Hex())
	}

	_, err := ParseColor("#12345")
	assert.Error(t, err)
	_, err = ParseColor("#zzzzzz")
	assert.Error(t, err)
}

func TestColorFromHex(t *testing.T) {
	c := ColorFromHex(0xff8000)
	assert.InDelta(t, 1, c.R, 1e-6)
	assert.InDelta(t, 128.0/255.0, c.G, 1e-6)
	assert.InDelta(t, 0, c.B, 1e-6)
	assert.Equal(t, float32(1), c.A)
}

func TestTransformMatrix(t *testing.T) {
	tr := NewTransform()
	tr.Position = math.NewVec3(1, 2, 3)
	tr.Scale = math.NewVec3(2, 2, 2)
	tr.Rotation = math.QuaternionFromAxisAngle(math.Vec3Up, 1.5707964)

	// +X scaled to 2, rotated to -Z, then translated
	p := tr.GetMatrix().MulVec3(math.Vec3Right)
	assert.InDelta(t, 1, p.X, 1e-4)
	assert.InDelta(t, 2, p.Y, 1e-4)
	assert.InDelta(t, 1, p.Z, 1e-4)
}

func TestClockTick(t *testing.T) {
	now := time.Unix(100, 0)
	c := newClockWith(func() time.Time { return now })

	now = now.Add(16 * time.Millisecond)
	elapsed, delta, frame := c.Tick()
	assert.InDelta(t, 0.016, elapsed, 1e-9)
	assert.InDelta(t, 0.016, delta, 1e-9)
	assert.Equal(t, uint64(0), frame)

	now = now.Add(20 * time.Millisecond)
	elapsed, delta, frame = c.Tick()
	assert.InDelta(t, 0.036, elapsed, 1e-9)
	assert.InDelta(t, 0.020, delta, 1e-9)
	assert.Equal(t, uint64(1), frame)
}

func TestFixedClock(t *testing.T) {
	c := &FixedClock{Step: 0.5}
	var ticker Ticker = c
	ticker.Tick()
	elapsed, delta, frame := ticker.Tick()
	assert.Equal(t, 1.0, elapsed)
	assert.Equal(t, 0.5, delta)
	assert.Equal(t, uint64(1), frame)
}

func TestLoggerDefaultsToSilent(t *testing.T) {
	require.NotNil(t, Logger())
	SetLogger(nil)
	assert.NotNil(t, Logger())
	assert.False(t, Logger().Enabled(t.Context(), 0))
}
