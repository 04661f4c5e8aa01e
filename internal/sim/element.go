package sim

// Element is a named flight of ships sharing IFF, flight plan and objectives.
type Element struct {
	name       string
	iff        int
	ships      []*Ship
	flightPlan []*Instruction
	objectives []*Instruction
	commander  *Element
	assignment *Element
	holdTime   float64
	player     int
	squadron   bool
	launched   bool
	zoneLock   bool
}

// NewElement builds an empty element.
func NewElement(name string, iff int) *Element {
	return &Element{name: name, iff: iff}
}

// Name returns the call sign.
func (e *Element) Name() string { return e.name }

// IFF returns the side code.
func (e *Element) IFF() int { return e.iff }

// SetIFF changes the side of the element and every ship in it.
func (e *Element) SetIFF(iff int) {
	e.iff = iff
	for _, s := range e.ships {
		s.iff = iff
	}
}

// AddShip appends a ship to the element; element indices start at one.
func (e *Element) AddShip(s *Ship) {
	if s == nil || e.Contains(s) {
		return
	}
	e.ships = append(e.ships, s)
	s.element = e
	s.iff = e.iff
	e.launched = true
}

// DelShip removes a ship from the element.
func (e *Element) DelShip(s *Ship) {
	for i, existing := range e.ships {
		if existing == s {
			e.ships = append(e.ships[:i], e.ships[i+1:]...)
			return
		}
	}
}

// Ship returns the ship at a one-based index or nil.
func (e *Element) Ship(index int) *Ship {
	if e == nil || index < 1 || index > len(e.ships) {
		return nil
	}
	return e.ships[index-1]
}

// Ships returns the member list.
func (e *Element) Ships() []*Ship { return e.ships }

// IndexOf returns the one-based index of s, or zero.
func (e *Element) IndexOf(s *Ship) int {
	if e == nil {
		return 0
	}
	for i, existing := range e.ships {
		if existing == s {
			return i + 1
		}
	}
	return 0
}

// Contains reports element membership.
func (e *Element) Contains(s *Ship) bool { return e.IndexOf(s) > 0 }

// Commander returns the commanding element or nil.
func (e *Element) Commander() *Element { return e.commander }

// SetCommander links a commanding element.
func (e *Element) SetCommander(c *Element) { e.commander = c }

// Assignment returns the element this one is currently tasked against.
func (e *Element) Assignment() *Element { return e.assignment }

// SetAssignment records the element this one is tasked against.
func (e *Element) SetAssignment(a *Element) { e.assignment = a }

// HoldTime returns the remaining hold in seconds.
func (e *Element) HoldTime() float64 { return e.holdTime }

// SetHoldTime sets the remaining hold in seconds.
func (e *Element) SetHoldTime(t float64) { e.holdTime = t }

// Player returns the player slot, zero for AI elements.
func (e *Element) Player() int { return e.player }

// SetPlayer marks the element as player controlled.
func (e *Element) SetPlayer(p int) { e.player = p }

// IsSquadron reports whether the element is a carrier squadron pool rather than a flight.
func (e *Element) IsSquadron() bool { return e.squadron }

// SetSquadron toggles the squadron flag.
func (e *Element) SetSquadron(v bool) { e.squadron = v }

// ZoneLock reports whether the element may not leave its zone.
func (e *Element) ZoneLock() bool { return e.zoneLock }

// AddNavPoint appends an instruction to the flight plan.
func (e *Element) AddNavPoint(i *Instruction) {
	if i != nil {
		e.flightPlan = append(e.flightPlan, i)
	}
}

// ClearFlightPlan drops every navpoint.
func (e *Element) ClearFlightPlan() { e.flightPlan = nil }

// FlightPlan returns the navpoints in order.
func (e *Element) FlightPlan() []*Instruction { return e.flightPlan }

// NavIndex returns the one-based position of n in the flight plan, or zero.
func (e *Element) NavIndex(n *Instruction) int {
	for i, existing := range e.flightPlan {
		if existing == n {
			return i + 1
		}
	}
	return 0
}

// NextNavPoint returns the current navpoint: the first one still holding after completion,
// or the first one not yet finished. It is nil while the element holds.
func (e *Element) NextNavPoint() *Instruction {
	if e == nil || e.holdTime > 0 {
		return nil
	}
	for _, navpt := range e.flightPlan {
		if navpt.Status() == StatusComplete && navpt.HoldTime > 0 {
			return navpt
		}
		if navpt.Status() <= StatusActive {
			return navpt
		}
	}
	return nil
}

// AddObjective appends an objective instruction.
func (e *Element) AddObjective(i *Instruction) {
	if i != nil {
		e.objectives = append(e.objectives, i)
	}
}

// Objectives returns the objective list.
func (e *Element) Objectives() []*Instruction { return e.objectives }

// TargetObjective returns the first open objective that names a target.
func (e *Element) TargetObjective() *Instruction {
	for _, o := range e.objectives {
		if o.Status() > StatusActive {
			continue
		}
		switch o.Action() {
		case ActionIntercept, ActionStrike, ActionAssault, ActionSweep, ActionPatrol, ActionRecon, ActionEscort, ActionDefend:
			return o
		}
	}
	return nil
}

// IsHostileTo reports whether the element would engage ships of the given IFF.
func (e *Element) IsHostileTo(iff int) bool {
	if e.iff <= 0 || e.iff >= 100 || !e.launched || e.IsFinished() || e.squadron {
		return false
	}
	return iff > 0 && iff < 100 && iff != e.iff
}

// IsFinished reports that a launched element has no ship still flying.
func (e *Element) IsFinished() bool {
	if !e.launched {
		return false
	}
	for _, s := range e.ships {
		if s.Life() != 0 && !s.IsDying() {
			return false
		}
	}
	return true
}

// ExecFrame counts down the element hold and per-navpoint hold times.
func (e *Element) ExecFrame(seconds float64) {
	if e.holdTime > 0 {
		e.holdTime -= seconds
		return
	}
	for _, navpt := range e.flightPlan {
		if navpt.Status() == StatusComplete && navpt.HoldTime > 0 {
			navpt.HoldTime -= seconds
		}
	}
}
