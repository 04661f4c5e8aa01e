package sim

import (
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
)

// RadioOrders is the standing order a ship received over the radio.
type RadioOrders struct {
	action     radio.Action
	sender     string
	target     Object
	targetName string
	location   geom.Vec3
	info       string
}

// Action returns the ordered verb, radio.ActionNone when there is no order.
func (o *RadioOrders) Action() radio.Action { return o.action }

// Sender returns the name of the ship that gave the order.
func (o *RadioOrders) Sender() string { return o.sender }

// Target returns the ordered target while it exists.
func (o *RadioOrders) Target() Object { return o.target }

// TargetName returns the ordered target name.
func (o *RadioOrders) TargetName() string { return o.targetName }

// Location returns the ordered point.
func (o *RadioOrders) Location() geom.Vec3 { return o.location }

// Info returns the free-form order detail, such as a quantum jump region name.
func (o *RadioOrders) Info() string { return o.info }

// RadioOrders returns the standing radio order.
func (s *Ship) RadioOrders() *RadioOrders { return &s.orders }

// ClearRadioOrders drops the standing radio order.
func (s *Ship) ClearRadioOrders() {
	if s.orders.target != nil {
		s.orders.target.Base().Ignore(s)
	}
	s.orders = RadioOrders{}
}

// SendRadio broadcasts a call to the ship's own element.
func (s *Ship) SendRadio(action radio.Action, target Object) {
	msg := s.newMessage(action, target)
	if s.element != nil {
		msg.Element = s.element.Name()
	}
	s.transmit(msg)
}

// SendRadioTo addresses a call to one ship.
func (s *Ship) SendRadioTo(action radio.Action, recipient *Ship, target Object) {
	if recipient == nil {
		return
	}
	msg := s.newMessage(action, target)
	msg.Recipient = recipient.Name()
	s.transmit(msg)
}

// OrderElement addresses a call to every ship in an element.
func (s *Ship) OrderElement(action radio.Action, element *Element, target Object, loc geom.Vec3) {
	if element == nil {
		return
	}
	msg := s.newMessage(action, target)
	msg.Element = element.Name()
	msg.Location = loc
	s.transmit(msg)
}

// OrderElementInfo addresses an order carrying detail text, such as a destination
// region, and a point within it to every ship in an element.
func (s *Ship) OrderElementInfo(action radio.Action, element *Element, info string, loc geom.Vec3) {
	if element == nil {
		return
	}
	msg := s.newMessage(action, nil)
	msg.Element = element.Name()
	msg.Info = info
	msg.Location = loc
	s.transmit(msg)
}

func (s *Ship) newMessage(action radio.Action, target Object) radio.Message {
	msg := radio.Message{Action: action, Sender: s.name, SenderIFF: s.iff, Location: s.loc}
	if target != nil {
		msg.Target = target.Base().Name()
		msg.Location = target.Base().Location()
	}
	return msg
}

func (s *Ship) transmit(msg radio.Message) {
	if s.sim == nil {
		return
	}
	s.sim.transmit(msg)
}

// HandleRadioMessage applies a received call. Orders replace the standing order and
// are acknowledged; emission and probe orders take effect immediately.
func (s *Ship) HandleRadioMessage(msg radio.Message) {
	if msg.Sender == s.name || s.IsDying() {
		return
	}
	switch msg.Action {
	case radio.GoEmcon1:
		s.SetEMCON(1)
	case radio.GoEmcon2:
		s.SetEMCON(2)
	case radio.GoEmcon3:
		s.SetEMCON(3)
	case radio.LaunchProbe:
		s.LaunchProbe()
	case radio.SkipNavpoint:
		if navpt := s.NextNavPoint(); navpt != nil {
			navpt.SetStatus(StatusSkipped)
		}
	case radio.ResumeMission:
		s.ClearRadioOrders()
	default:
		if !msg.Action.IsOrder() {
			return
		}
		s.ClearRadioOrders()
		s.orders = RadioOrders{action: msg.Action, sender: msg.Sender, targetName: msg.Target, location: msg.Location, info: msg.Info}
		if msg.Target != "" && s.sim != nil {
			if tgt := s.sim.FindShip(msg.Target); tgt != nil {
				s.orders.target = tgt
				tgt.Observe(s)
			}
		}
	}
	s.logger().Debug("radio order received",
		logging.String("ship", s.name),
		logging.String("from", msg.Sender),
		logging.String("action", msg.Action.String()))

	if s.director != nil && msg.Recipient == s.name && s.sim != nil {
		if sender := s.sim.FindShip(msg.Sender); sender != nil {
			s.SendRadioTo(radio.Ack, sender, nil)
		}
	}
}
