package scene

import (
	"github.com/chewxy/math32"

	"render-pipeline/math"
)

// Camera is a perspective camera looking down its local -Z axis.
//
// The projection is derived from the lens fields by UpdateProjectionMatrix.
// SetProjectionMatrix replaces it until the next UpdateProjectionMatrix,
// which is how reflection cameras install an oblique near plane.
type Camera struct {
	Position    math.Vec3
	Rotation    math.Quaternion
	FOV         float32 // vertical, radians
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32

	projection math.Mat4
}

func NewCamera(fov, aspectRatio, nearPlane, farPlane float32) *Camera {
	c := &Camera{
		Rotation:    math.QuaternionIdentity(),
		FOV:         fov,
		AspectRatio: aspectRatio,
		NearPlane:   nearPlane,
		FarPlane:    farPlane,
	}
	c.UpdateProjectionMatrix()
	return c
}

// UpdateAspectRatio ignores a zero height, which minimised windows report.
func (c *Camera) UpdateAspectRatio(width, height float32) {
	if height <= 0 {
		return
	}
	c.AspectRatio = width / height
	c.UpdateProjectionMatrix()
}

func (c *Camera) UpdateProjectionMatrix() {
	c.projection = math.Mat4Perspective(c.FOV, c.AspectRatio, c.NearPlane, c.FarPlane)
}

func (c *Camera) SetProjectionMatrix(m math.Mat4) { c.projection = m }
func (c *Camera) GetProjectionMatrix() math.Mat4  { return c.projection }
func (c *Camera) SetPosition(pos math.Vec3)       { c.Position = pos }

// LookAt orients the camera so that its -Z axis points at target.
func (c *Camera) LookAt(target, up math.Vec3) {
	c.Rotation = math.QuaternionFromMat4(math.Mat4LookRotation(c.Position, target, up))
}

// GetWorldMatrix returns the camera-to-world transform. Position and
// Rotation are plain fields, so it is rebuilt on every call.
func (c *Camera) GetWorldMatrix() math.Mat4 {
	return c.Rotation.ToMat4().Mul(math.Mat4Translation(c.Position))
}

func (c *Camera) GetViewMatrix() math.Mat4 {
	return c.GetWorldMatrix().Inverse()
}

// GetViewProjectionMatrix returns view followed by projection.
func (c *Camera) GetViewProjectionMatrix() math.Mat4 {
	return c.GetViewMatrix().Mul(c.projection)
}

// GetForward returns the world-space view direction.
func (c *Camera) GetForward() math.Vec3 { return c.Rotation.RotateVector(math.Vec3Back) }
func (c *Camera) GetUp() math.Vec3      { return c.Rotation.RotateVector(math.Vec3Up) }

// OrbitCamera circles Target at Distance. Yaw 0 places it on +Z.
type OrbitCamera struct {
	Camera
	Target   math.Vec3
	Distance float32
	Yaw      float32
	Pitch    float32
}

const (
	maxOrbitPitch    = 1.5
	minOrbitDistance = 0.1
)

func NewOrbitCamera(target math.Vec3, distance, fov, aspectRatio float32) *OrbitCamera {
	c := &OrbitCamera{
		Camera:   *NewCamera(fov, aspectRatio, 0.1, 1000),
		Target:   target,
		Distance: distance,
		Pitch:    0.3,
	}
	c.UpdatePosition()
	return c
}

// UpdatePosition clamps pitch and distance and re-aims the camera.
func (c *OrbitCamera) UpdatePosition() {
	c.Pitch = min(max(c.Pitch, -maxOrbitPitch), maxOrbitPitch)
	c.Distance = max(c.Distance, minOrbitDistance)
	sp, cp := math32.Sincos(c.Pitch)
	sy, cy := math32.Sincos(c.Yaw)
	offset := math.Vec3{X: cp * sy, Y: sp, Z: cp * cy}.Mul(c.Distance)
	c.SetPosition(c.Target.Add(offset))
	c.LookAt(c.Target, math.Vec3Up)
}

func (c *OrbitCamera) Orbit(deltaYaw, deltaPitch float32) {
	c.Yaw += deltaYaw
	c.Pitch += deltaPitch
	c.UpdatePosition()
}

func (c *OrbitCamera) Zoom(delta float32) {
	c.Distance += delta
	c.UpdatePosition()
}
