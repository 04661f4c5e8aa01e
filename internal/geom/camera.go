package geom

import "math"

// Camera is an orthonormal orientation frame with a position.
// Vrt points right, Vup points up and Vpn points forward along the nose.
type Camera struct {
	Pos Vec3
	Vrt Vec3
	Vup Vec3
	Vpn Vec3
}

// NewCamera returns a camera at the origin looking down +z.
func NewCamera() Camera {
	return Camera{Vrt: V(1, 0, 0), Vup: V(0, 1, 0), Vpn: V(0, 0, 1)}
}

// MoveTo relocates the camera without changing orientation.
func (c *Camera) MoveTo(p Vec3) { c.Pos = p }

// Clone returns a copy of the camera.
func (c Camera) Clone() Camera { return c }

// Yaw rotates the frame about its up axis. Positive angles turn right.
func (c *Camera) Yaw(radians float64) {
	if radians == 0 {
		return
	}
	s, co := math.Sincos(radians)
	vpn := c.Vpn.Scale(co).Add(c.Vrt.Scale(s))
	vrt := c.Vrt.Scale(co).Sub(c.Vpn.Scale(s))
	c.Vpn, c.Vrt = vpn.Normalize(), vrt.Normalize()
}

// Pitch rotates the frame about its right axis. Positive angles raise the nose.
func (c *Camera) Pitch(radians float64) {
	if radians == 0 {
		return
	}
	s, co := math.Sincos(radians)
	vpn := c.Vpn.Scale(co).Add(c.Vup.Scale(s))
	vup := c.Vup.Scale(co).Sub(c.Vpn.Scale(s))
	c.Vpn, c.Vup = vpn.Normalize(), vup.Normalize()
}

// Roll rotates the frame about its forward axis. Positive angles roll right.
func (c *Camera) Roll(radians float64) {
	if radians == 0 {
		return
	}
	s, co := math.Sincos(radians)
	vup := c.Vup.Scale(co).Add(c.Vrt.Scale(s))
	vrt := c.Vrt.Scale(co).Sub(c.Vup.Scale(s))
	c.Vup, c.Vrt = vup.Normalize(), vrt.Normalize()
}

// Aim resets the orientation to the base frame then applies yaw, pitch and roll in order.
func (c *Camera) Aim(base Camera, yaw, pitch, roll float64) {
	c.Vrt, c.Vup, c.Vpn = base.Vrt, base.Vup, base.Vpn
	c.Yaw(yaw)
	c.Pitch(pitch)
	c.Roll(roll)
}

// LookAt orients the camera so that its forward axis points at target, keeping world up where possible.
func (c *Camera) LookAt(target Vec3) {
	forward := target.Sub(c.Pos).Normalize()
	if forward.IsZero() {
		return
	}
	up := V(0, 1, 0)
	if math.Abs(forward.Dot(up)) > 0.999 {
		up = V(0, 0, 1)
	}
	right := up.Cross(forward).Normalize()
	c.Vpn = forward
	c.Vrt = right
	c.Vup = forward.Cross(right).Normalize()
}

// Transform expresses a world-space point in the camera's local frame.
func (c Camera) Transform(p Vec3) Vec3 {
	d := p.Sub(c.Pos)
	return V(d.Dot(c.Vrt), d.Dot(c.Vup), d.Dot(c.Vpn))
}

// Rotate expresses a world-space direction in the camera's local frame.
func (c Camera) Rotate(d Vec3) Vec3 {
	return V(d.Dot(c.Vrt), d.Dot(c.Vup), d.Dot(c.Vpn))
}

// ToWorld maps a local-frame direction back into world space.
func (c Camera) ToWorld(local Vec3) Vec3 {
	return c.Vrt.Scale(local.X).Add(c.Vup.Scale(local.Y)).Add(c.Vpn.Scale(local.Z))
}
