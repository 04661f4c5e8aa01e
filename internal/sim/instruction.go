package sim

import "github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"

// Action is the navpoint or standing order verb.
type Action int

const (
	ActionNone Action = iota
	ActionVector
	ActionLaunch
	ActionDock
	ActionRTB
	ActionDefend
	ActionEscort
	ActionPatrol
	ActionSweep
	ActionIntercept
	ActionStrike
	ActionAssault
	ActionRecon
	ActionRecall
	ActionDeploy
)

var actionNames = [...]string{"none", "vector", "launch", "dock", "rtb", "defend", "escort", "patrol", "sweep", "intercept", "strike", "assault", "recon", "recall", "deploy"}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// Status is the lifecycle of one instruction.
type Status int

const (
	StatusNone Status = iota
	StatusPending
	StatusActive
	StatusSkipped
	StatusAborted
	StatusFailed
	StatusComplete
)

func (s Status) rank() int {
	switch s {
	case StatusNone:
		return 0
	case StatusPending:
		return 1
	case StatusActive:
		return 2
	default:
		return 3
	}
}

// Formation is the element flying arrangement.
type Formation int

const (
	FormationNone Formation = iota
	FormationDiamond
	FormationSpread
	FormationBox
	FormationTrail
)

// Instruction is a waypoint or order in a flight plan. Its status only moves forward.
type Instruction struct {
	action     Action
	status     Status
	Formation  Formation
	Speed      float64
	HoldTime   float64
	EMCON      int
	TargetName string
	RegionName string
	Location   geom.Vec3
	Farcast    bool
	Priority   int

	region *Region
	target Object
}

// NewInstruction builds a pending instruction for a region-local point.
func NewInstruction(action Action, regionName string, loc geom.Vec3) *Instruction {
	return &Instruction{action: action, status: StatusPending, RegionName: regionName, Location: loc}
}

// Action returns the instruction verb.
func (i *Instruction) Action() Action {
	if i == nil {
		return ActionNone
	}
	return i.action
}

// Status returns the current lifecycle value.
func (i *Instruction) Status() Status {
	if i == nil {
		return StatusNone
	}
	return i.status
}

// SetStatus advances the status. Backward moves and changes out of a terminal status are ignored.
func (i *Instruction) SetStatus(s Status) bool {
	if i == nil || s == i.status {
		return false
	}
	if s.rank() <= i.status.rank() {
		return false
	}
	i.status = s
	return true
}

// Region returns the resolved region or nil.
func (i *Instruction) Region() *Region {
	if i == nil {
		return nil
	}
	return i.region
}

// SetRegion records the resolved region.
func (i *Instruction) SetRegion(r *Region) {
	if i != nil {
		i.region = r
		if r != nil {
			i.RegionName = r.Name()
		}
	}
}

// Target returns the resolved target object or nil.
func (i *Instruction) Target() Object {
	if i == nil {
		return nil
	}
	return i.target
}

// SetTarget records the target and subscribes to its destruction.
func (i *Instruction) SetTarget(obj Object) {
	if i == nil || i.target == obj {
		return
	}
	if i.target != nil {
		i.target.Base().Ignore(i)
	}
	i.target = obj
	if obj != nil {
		i.TargetName = obj.Base().Name()
		obj.Base().Observe(i)
	}
}

// ObjectDestroyed clears the target when it is destroyed.
func (i *Instruction) ObjectDestroyed(obj Object) {
	if i.target == obj {
		i.target = nil
	}
}
