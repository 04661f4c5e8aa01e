package sim

import (
	"math"
	"testing"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
)

func missileDesign(ammo int) *WeaponDesign {
	return &WeaponDesign{
		Name: "Harpoon", Group: "Missiles", Damage: 50, Speed: 500, Life: 10,
		Charge: 10, Ammo: ammo, TargetType: ClassFighter,
		AzMax: math.Pi / 6, AzMin: -math.Pi / 6, ElMax: math.Pi / 6, ElMin: -math.Pi / 6,
	}
}

func armedShip(t *testing.T, s *Sim, wd *WeaponDesign) (*Ship, *Weapon) {
	t.Helper()
	design := fighterDesign()
	design.Weapons = []MountSpec{{Weapon: wd}}
	ship := s.CreateShip(design, "Viper", "Alpha", geom.Vec3{}, 1)
	if ship == nil || len(ship.Weapons()) != 1 {
		t.Fatalf("expected an armed ship")
	}
	return ship, ship.Weapons()[0].Weapon(0)
}

func TestWeaponWithoutAmmoDoesNotFire(t *testing.T) {
	s, r := newTestSim(t)
	_, w := armedShip(t, s, missileDesign(0))
	energy := w.Energy()

	//1.- An empty weapon refuses without touching its state.
	if w.Fire() != nil {
		t.Fatalf("expected no shot from an empty weapon")
	}
	if w.Energy() != energy || w.Refire() != 0 || w.ActiveBarrel() != 0 || len(r.Shots()) != 0 {
		t.Fatalf("expected refused fire to leave the weapon untouched")
	}
}

func TestWeaponSingleRoundFiresOnce(t *testing.T) {
	rec := &recordingTelemetry{}
	s, r := newTestSim(t, WithTelemetry(rec))
	ship, w := armedShip(t, s, missileDesign(1))
	if ship.SecondaryGroup() == nil || w.Energy() != 10 {
		t.Fatalf("expected a charged secondary weapon")
	}

	//1.- The one round leaves the rail and is counted.
	shot := w.Fire()
	if shot == nil {
		t.Fatalf("expected the first trigger pull to fire")
	}
	if len(r.Shots()) != 1 || w.Ammo() != 0 || w.Energy() != 0 {
		t.Fatalf("expected one shot with ammo and charge spent")
	}
	st, _ := s.StatsFor("Viper")
	if st.MissileShots != 1 || st.GunShots != 0 || rec.shots != 1 {
		t.Fatalf("expected one missile shot recorded, got %+v", st)
	}

	//2.- The next pull finds the rail empty.
	if w.Fire() != nil || len(r.Shots()) != 1 {
		t.Fatalf("expected no second shot")
	}
}

func TestWeaponRespectsFireInhibit(t *testing.T) {
	s, r := newTestSim(t)
	ship, w := armedShip(t, s, missileDesign(4))
	ship.SetFireInhibit(true)
	if w.Fire() != nil || len(r.Shots()) != 0 || w.Ammo() != 4 {
		t.Fatalf("expected an inhibited ship to hold fire")
	}
	ship.SetFireInhibit(false)
	w.SetEnabled(false)
	if w.Fire() != nil {
		t.Fatalf("expected a disabled weapon to hold fire")
	}
}

func TestWeaponGimbalClampsLockPoint(t *testing.T) {
	ship := NewShip(fighterDesign(), "Viper", 1)
	w := NewWeapon(missileDesign(1), geom.Vec3{})
	w.ship = ship
	w.ZeroAim()

	//1.- Straight ahead is inside the basket.
	az, el, ok := w.CanLockPoint(geom.V(0, 0, 1000))
	if !ok || az != 0 || el != 0 {
		t.Fatalf("expected a clean lock ahead, got az %v el %v ok %v", az, el, ok)
	}
	//2.- A point far off the beam is clamped to the azimuth limit.
	az, _, ok = w.CanLockPoint(geom.V(1000, 0, 100))
	if ok || az != math.Pi/6 {
		t.Fatalf("expected az clamped to the limit, got az %v ok %v", az, ok)
	}
	az, _, ok = w.CanLockPoint(geom.V(-1000, 0, 100))
	if ok || az != -math.Pi/6 {
		t.Fatalf("expected az clamped to the negative limit, got az %v ok %v", az, ok)
	}

	//3.- A guided drone only widens the lock inside its narrow cone.
	drone := missileDesign(1)
	drone.Drone, drone.Guided = true, GuidanceHoming
	dw := NewWeapon(drone, geom.Vec3{})
	dw.ship = ship
	dw.ZeroAim()
	for _, p := range []geom.Vec3{geom.V(-1000, 0, 100), geom.V(0, 0, -1000), geom.V(0, -1000, 100)} {
		if _, _, ok := dw.CanLockPoint(p); ok {
			t.Fatalf("expected no drone lock outside the cone at %v", p)
		}
	}

	//4.- A fixed drone rail still locks a point a few degrees off the nose.
	rail := missileDesign(1)
	rail.Drone, rail.Guided = true, GuidanceHoming
	rail.AzMax, rail.AzMin, rail.ElMax, rail.ElMin = 0, 0, 0, 0
	rw := NewWeapon(rail, geom.Vec3{})
	rw.ship = ship
	rw.ZeroAim()
	if _, _, ok := rw.CanLockPoint(geom.V(50, 0, 1000)); !ok {
		t.Fatalf("expected the drone cone to cover a point 3 degrees off the nose")
	}
	if _, _, ok := rw.CanLockPoint(geom.V(-500, 0, 1000)); ok {
		t.Fatalf("expected a point 27 degrees off the nose to stay outside the cone")
	}
}

func TestWeaponTargetFilter(t *testing.T) {
	ship := NewShip(fighterDesign(), "Viper", 1)
	w := NewWeapon(missileDesign(1), geom.Vec3{})
	w.ship = ship

	//1.- Self and out-of-class targets are refused.
	w.SetTarget(ship)
	if w.Target() != nil {
		t.Fatalf("expected self-targeting to be refused")
	}
	station := NewShip(&ShipDesign{Name: "Outpost", Class: ClassStation}, "Outpost", 2)
	w.SetTarget(station)
	if w.Target() != nil {
		t.Fatalf("expected a station to be outside the target mask")
	}

	//2.- A valid target is observed and dropped on destruction.
	bandit := NewShip(fighterDesign(), "Bandit", 2)
	w.SetTarget(bandit)
	if w.Target() != bandit {
		t.Fatalf("expected the fighter to be accepted")
	}
	bandit.notifyDestroyed()
	if w.Target() != nil {
		t.Fatalf("expected the destroyed target to be dropped")
	}
}

func gunDesign() *WeaponDesign {
	return &WeaponDesign{
		Name: "Cannon", Primary: true, Damage: 10, Speed: 1000, Life: 20, MaxRange: 10e3,
		Charge: 10, Capacity: 100, Ammo: -1, TargetType: ClassFighter,
		AzMax: math.Pi / 2, AzMin: -math.Pi / 2, ElMax: math.Pi / 2, ElMin: -math.Pi / 2,
	}
}

func hostileFighter(t *testing.T, s *Sim, loc geom.Vec3) *Ship {
	t.Helper()
	design := fighterDesign()
	design.Name = "Bandit"
	design.Weapons = []MountSpec{{Weapon: gunDesign()}}
	ship := s.CreateShip(design, "Bandit", "Alpha", loc, 2)
	if ship == nil {
		t.Fatalf("expected the bandit to spawn")
	}
	return ship
}

func TestWeaponAutoFireSpendsLastRound(t *testing.T) {
	rec := &recordingTelemetry{}
	s, r := newTestSim(t, WithTelemetry(rec))
	wd := missileDesign(1)
	wd.SelfAiming, wd.MaxRange = true, 10e3
	_, w := armedShip(t, s, wd)
	target := hostileFighter(t, s, geom.V(0, 0, 2000))

	//1.- A charged self-aiming weapon on auto fires at a centered target.
	if w.FiringOrders() != OrdersAuto || w.Energy() != wd.Charge {
		t.Fatalf("expected a charged weapon on auto, got %v %v", w.FiringOrders(), w.Energy())
	}
	w.SetTarget(target)
	w.ExecFrame(0.1)
	if len(r.Shots()) != 1 || w.Ammo() != 0 || rec.shots != 1 {
		t.Fatalf("expected exactly one shot, got %d shots ammo %d", len(r.Shots()), w.Ammo())
	}
	if !w.Locked() || !w.Centered() {
		t.Fatalf("expected the solution to stay locked and centered")
	}

	//2.- Nothing more comes out of an empty rail.
	w.ExecFrame(0.1)
	if w.Fire() != nil || len(r.Shots()) != 1 {
		t.Fatalf("expected no further shots, got %d", len(r.Shots()))
	}
}

func TestWeaponAimLeadsMovingTarget(t *testing.T) {
	s, _ := newTestSim(t)
	wd := gunDesign()
	wd.SelfAiming = true
	_, w := armedShip(t, s, wd)
	target := hostileFighter(t, s, geom.V(0, 0, 1000))
	target.SetVelocity(geom.V(100, 0, 0))
	w.SetTarget(target)

	//1.- The objective sits ahead of the target along its track.
	w.FindObjective()
	flight := 1000 / math.Hypot(1000, 100)
	if obj := w.Objective(); math.Abs(obj.X-100*flight) > 1e-6 || math.Abs(obj.Z-1000) > 1e-6 {
		t.Fatalf("expected a lead of %v m, got %v", 100*flight, obj)
	}

	//2.- Weapons the ship aims itself get no lead.
	_, fixed := armedShip(t, s, gunDesign())
	fixed.SetTarget(target)
	fixed.FindObjective()
	if fixed.Objective() != (geom.Vec3{}) {
		t.Fatalf("expected no objective for a fixed weapon, got %v", fixed.Objective())
	}
}

func TestWeaponTurretSlewRate(t *testing.T) {
	s, _ := newTestSim(t)
	wd := gunDesign()
	wd.SlewRate = 0.1
	_, w := armedShip(t, s, wd)

	//1.- The first aim settles where it is told.
	w.ZeroAim()
	w.AimTurret(0, 0)

	//2.- One second later the turret has only turned a tenth of a radian.
	s.gameTime = time.Second
	w.ZeroAim()
	w.AimTurret(1, -1)
	if math.Abs(w.oldAz-0.1) > 1e-9 || math.Abs(w.oldEl+0.1) > 1e-9 {
		t.Fatalf("expected the slew bound to hold az 0.1 el -0.1, got %v %v", w.oldAz, w.oldEl)
	}
	want := geom.NewCamera()
	want.Yaw(0.1)
	want.Pitch(-0.1)
	if w.AimCam().Vpn.Sub(want.Vpn).Length() > 1e-9 {
		t.Fatalf("expected the aim frame to follow the bounded angles, got %v", w.AimCam().Vpn)
	}

	//3.- Without a slew rate the turret snaps.
	_, snap := armedShip(t, s, gunDesign())
	snap.ZeroAim()
	snap.AimTurret(0, 0)
	snap.ZeroAim()
	snap.AimTurret(1, -1)
	if snap.oldAz != 1 || snap.oldEl != -1 {
		t.Fatalf("expected an unbounded turret to reach the demand, got %v %v", snap.oldAz, snap.oldEl)
	}
}

func TestWeaponCenteredCone(t *testing.T) {
	cases := []struct {
		name   string
		offset float64
		orders FiringOrders
		want   bool
	}{
		{name: "auto inside ten degrees", offset: 5, orders: OrdersAuto, want: true},
		{name: "auto outside ten degrees", offset: 20, orders: OrdersAuto, want: false},
		{name: "manual inside thirty degrees", offset: 20, orders: OrdersManual, want: true},
		{name: "manual outside thirty degrees", offset: 40, orders: OrdersManual, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			//1.- A turret that cannot move this instant stays on the nose.
			s, _ := newTestSim(t)
			wd := gunDesign()
			wd.SlewRate = 0.5
			_, w := armedShip(t, s, wd)
			a := tc.offset * Degrees
			target := hostileFighter(t, s, geom.V(1000*math.Sin(a), 0, 1000*math.Cos(a)))
			w.ZeroAim()
			w.AimTurret(0, 0)

			//2.- The cone for the orders decides whether the target counts as centered.
			w.SetFiringOrders(tc.orders)
			w.SetTarget(target)
			w.Aim()
			if !w.Locked() {
				t.Fatalf("expected the target inside the gimbals")
			}
			if w.Centered() != tc.want {
				t.Fatalf("expected centered=%v at %v degrees, got %v", tc.want, tc.offset, w.Centered())
			}
		})
	}
}

func TestPointDefensePrefersDronesUnlessShipIsMuchCloser(t *testing.T) {
	cases := []struct {
		name      string
		droneAt   float64
		shipAt    float64
		wantDrone bool
	}{
		{name: "drone wins against a ship at 40 percent", droneAt: 5000, shipAt: 2000, wantDrone: true},
		{name: "ship inside a fifth of the drone range", droneAt: 5000, shipAt: 800, wantDrone: false},
		{name: "ship alone", shipAt: 2000, wantDrone: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			//1.- A flak mount sees an inbound drone and an armed bandit.
			s, r := newTestSim(t)
			wd := gunDesign()
			wd.TargetType = ClassFighter | ClassDrone
			ship, w := armedShip(t, s, wd)
			w.SetFiringOrders(OrdersPointDefense)
			hostile := hostileFighter(t, s, geom.V(0, 0, tc.shipAt))
			ship.contacts = append(ship.contacts, NewContact(hostile, 1, 1, nil))

			var drone *Shot
			if tc.droneAt > 0 {
				dd := missileDesign(1)
				dd.Drone, dd.Guided = true, GuidanceHoming
				cam := geom.NewCamera()
				cam.MoveTo(geom.V(0, 0, tc.droneAt))
				drone = s.CreateShot(cam.Pos, cam, dd, hostile, r)
				drone.SeekTarget(ship)
				drone.seekDelay = 0
				ship.contacts = append(ship.contacts, NewContact(drone, 1, 1, nil))
			}

			//2.- Ships only win when much closer than the drone.
			w.SelectTarget()
			if tc.wantDrone && w.Target() != Object(drone) {
				t.Fatalf("expected the drone, got %v", w.Target())
			}
			if !tc.wantDrone && w.Target() != Object(hostile) {
				t.Fatalf("expected the bandit, got %v", w.Target())
			}
		})
	}
}

func TestWeaponRippleContinuesOverFrames(t *testing.T) {
	s, r := newTestSim(t)
	wd := missileDesign(6)
	wd.Ripple, wd.Capacity = 3, 100
	_, w := armedShip(t, s, wd)

	//1.- One trigger pull queues the rest of the ripple.
	if w.Fire() == nil {
		t.Fatalf("expected the first round to leave")
	}
	if w.ripple != 2 {
		t.Fatalf("expected two rounds queued, got %d", w.ripple)
	}

	//2.- Each frame releases one more until the ripple is spent.
	for i := 0; i < 4; i++ {
		w.ExecFrame(0.1)
	}
	if len(r.Shots()) != 3 || w.Ammo() != 3 || w.ripple != 0 {
		t.Fatalf("expected three shots and three rounds left, got %d shots ammo %d", len(r.Shots()), w.Ammo())
	}
}

func TestWeaponCyclesBarrels(t *testing.T) {
	s, r := newTestSim(t)
	wd := gunDesign()
	wd.NBarrels, wd.RefireDelay, wd.SalvoDelay = 3, 0.5, 2
	wd.Muzzles = []geom.Vec3{geom.V(-2, 0, 0), geom.V(0, 0, 0), geom.V(2, 0, 0)}
	_, w := armedShip(t, s, wd)

	//1.- Each pull fires the next barrel after the refire delay.
	for i, wantX := range []float64{-2, 0, 2} {
		if w.ActiveBarrel() != i {
			t.Fatalf("expected barrel %d active, got %d", i, w.ActiveBarrel())
		}
		shot := w.Fire()
		if shot == nil {
			t.Fatalf("expected barrel %d to fire", i)
		}
		if math.Abs(shot.Location().X-wantX) > 1e-9 {
			t.Fatalf("expected barrel %d to fire from x=%v, got %v", i, wantX, shot.Location())
		}
		if i < 2 {
			if w.Refire() != 0.5 || w.Fire() != nil {
				t.Fatalf("expected the refire delay to hold the next barrel")
			}
			w.ExecFrame(0.5)
		}
	}

	//2.- Wrapping around adds the salvo delay.
	if w.ActiveBarrel() != 0 || w.Refire() != 2.5 || len(r.Shots()) != 3 {
		t.Fatalf("expected a salvo pause of 2.5 s on barrel 0, got %v on %d", w.Refire(), w.ActiveBarrel())
	}
}

func TestWeaponSyncroFiresEveryBarrel(t *testing.T) {
	s, r := newTestSim(t)
	wd := missileDesign(4)
	wd.NBarrels, wd.Syncro, wd.Capacity = 2, true, 100
	wd.Muzzles = []geom.Vec3{geom.V(-3, 0, 0), geom.V(3, 0, 0)}
	_, w := armedShip(t, s, wd)

	//1.- Both rails release together and the barrel index stays parked.
	if w.ActiveBarrel() != -1 {
		t.Fatalf("expected a syncro weapon to report barrel -1, got %d", w.ActiveBarrel())
	}
	if w.Fire() == nil {
		t.Fatalf("expected the pair to fire")
	}
	if len(r.Shots()) != 2 || w.Ammo() != 2 || w.ActiveBarrel() != -1 {
		t.Fatalf("expected two shots and two rounds left, got %d shots ammo %d", len(r.Shots()), w.Ammo())
	}
	if w.Energy() != 80 {
		t.Fatalf("expected each barrel to draw a full charge, got %v", w.Energy())
	}
}

func TestFlakFuseSetFromTargetRange(t *testing.T) {
	cases := []struct {
		name     string
		rng      float64
		wantLife float64
	}{
		{name: "fused on a target in the envelope", rng: 3000, wantLife: 3},
		{name: "full life beyond max range", rng: 12e3, wantLife: 20},
		{name: "full life inside min range", rng: 300, wantLife: 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestSim(t)
			wd := gunDesign()
			wd.Flak, wd.MinRange = true, 500
			_, w := armedShip(t, s, wd)
			w.SetTarget(hostileFighter(t, s, geom.V(0, 0, tc.rng)))

			//1.- The burst is timed to reach the target range.
			shot := w.Fire()
			if shot == nil {
				t.Fatalf("expected the flak gun to fire")
			}
			if math.Abs(shot.Life()-tc.wantLife) > 1e-6 {
				t.Fatalf("expected a shot life of %v s, got %v", tc.wantLife, shot.Life())
			}
		})
	}
}
