package geom

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNormalizeZeroVector(t *testing.T) {
	//1.- Degenerate vectors normalize to zero instead of panicking.
	if got := (Vec3{}).Normalize(); !got.IsZero() {
		t.Fatalf("expected zero vector, got %+v", got)
	}
	unit, length := V(3, 4, 0).NormalizeLen()
	if !near(length, 5) || !near(unit.Length(), 1) {
		t.Fatalf("expected unit vector of length 5 source, got %+v (%v)", unit, length)
	}
}

func TestCrossFollowsLeftHandedAxes(t *testing.T) {
	if got := V(0, 1, 0).Cross(V(0, 0, 1)); !near(got.X, 1) || !near(got.Y, 0) || !near(got.Z, 0) {
		t.Fatalf("expected up x forward to be right, got %+v", got)
	}
}

func TestCameraYawTurnsRight(t *testing.T) {
	cam := NewCamera()
	cam.Yaw(math.Pi / 2)
	if !near(cam.Vpn.X, 1) || !near(cam.Vpn.Z, 0) {
		t.Fatalf("expected nose to swing to +x, got %+v", cam.Vpn)
	}
	if !near(cam.Vrt.Z, -1) {
		t.Fatalf("expected right axis to point to -z, got %+v", cam.Vrt)
	}
}

func TestCameraLookAtAndTransform(t *testing.T) {
	cam := NewCamera()
	cam.MoveTo(V(0, 0, 0))
	cam.LookAt(V(100, 0, 0))

	//1.- A point ahead of the camera maps onto the local +z axis.
	local := cam.Transform(V(200, 0, 0))
	if !near(local.Z, 200) || !near(local.X, 0) || !near(local.Y, 0) {
		t.Fatalf("expected point on the local forward axis, got %+v", local)
	}

	//2.- Directions survive a round trip through the local frame.
	dir := V(0.3, -0.2, 0.9)
	back := cam.ToWorld(cam.Rotate(dir))
	if !near(back.X, dir.X) || !near(back.Y, dir.Y) || !near(back.Z, dir.Z) {
		t.Fatalf("expected round trip direction %+v, got %+v", dir, back)
	}
}

func TestCameraLookAtStraightUp(t *testing.T) {
	cam := NewCamera()
	cam.LookAt(V(0, 50, 0))
	if !near(cam.Vpn.Y, 1) || !near(cam.Vrt.Length(), 1) || !near(cam.Vup.Length(), 1) {
		t.Fatalf("expected orthonormal frame looking up, got %+v", cam)
	}
}
