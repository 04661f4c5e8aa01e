package radio

// Action enumerates the radio message verbs understood by ships and flight leads.
type Action int

const (
	ActionNone Action = iota

	DockWith
	RTB
	QuantumTo
	FarcastTo

	Ack
	Nack

	Attack
	Escort
	Bracket
	Identify

	CoverMe
	WepFree
	WepHold
	FormUp
	SayPosition

	LaunchProbe
	GoEmcon1
	GoEmcon2
	GoEmcon3

	GoDiamond
	GoSpread
	GoBox
	GoTrail

	MovePatrol
	SkipNavpoint
	ResumeMission

	CallEngaging
	Fox1
	Fox2
	Fox3
	Splash1
	Splash2
	Splash3
	Splash4
	Splash5
	Splash6
	Splash7

	DistressCall
	BreakAndAttack
	Rescue
	CallInbound
	CallApproach
	CallClearance
	CallFinals
	CallWaveOff
	NavDesignation
)

var actionNames = map[Action]string{
	ActionNone:     "none",
	DockWith:       "dock with",
	RTB:            "return to base",
	QuantumTo:      "quantum jump",
	FarcastTo:      "farcast",
	Ack:            "acknowledge",
	Nack:           "unable",
	Attack:         "engage",
	Escort:         "escort",
	Bracket:        "bracket",
	Identify:       "identify",
	CoverMe:        "cover me",
	WepFree:        "weapons free",
	WepHold:        "hold fire",
	FormUp:         "form up",
	SayPosition:    "say your position",
	LaunchProbe:    "launch probe",
	GoEmcon1:       "go emcon 1",
	GoEmcon2:       "go emcon 2",
	GoEmcon3:       "go emcon 3",
	GoDiamond:      "goto diamond formation",
	GoSpread:       "goto spread formation",
	GoBox:          "goto box formation",
	GoTrail:        "goto trail formation",
	MovePatrol:     "move patrol",
	SkipNavpoint:   "skip navpoint",
	ResumeMission:  "resume mission",
	CallEngaging:   "engaging",
	Fox1:           "fox one",
	Fox2:           "fox two",
	Fox3:           "fox three",
	Splash1:        "splash one",
	Splash2:        "splash two",
	Splash3:        "splash three",
	Splash4:        "splash four",
	Splash5:        "splash five",
	Splash6:        "splash six",
	Splash7:        "splash seven",
	DistressCall:   "mayday",
	BreakAndAttack: "break and attack",
	Rescue:         "rescue",
	CallInbound:    "calling inbound",
	CallApproach:   "cleared for approach",
	CallClearance:  "you have clearance",
	CallFinals:     "on final approach",
	CallWaveOff:    "wave off",
	NavDesignation: "navpoint designation",
}

// String returns the spoken form of the action.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// IsOrder reports whether the action is an order a wingman should act on.
func (a Action) IsOrder() bool {
	return a > ActionNone && a < CallEngaging && a != Ack && a != Nack && a != SayPosition
}

// SplashCall returns the splash call-out for the n-th kill, cycling through seven calls.
func SplashCall(n int) Action {
	if n < 0 {
		n = -n
	}
	return Splash1 + Action(n%7)
}
