package replay

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

// EncodeFrame captures every ship of every region as a protobuf Struct:
// {"game_ms": n, "ships": [{"name", "class", "iff", "region", "pos", "vel", ...}]}.
func EncodeFrame(s *sim.Sim) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode frame: nil sim")
	}
	ships := []any{}
	for _, r := range s.Regions() {
		for _, ship := range r.Ships() {
			ships = append(ships, shipEntry(ship, r.Name()))
		}
	}
	st, err := structpb.NewStruct(map[string]any{
		"game_ms": float64(s.GameTime().Milliseconds()),
		"ships":   ships,
	})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return proto.Marshal(st)
}

func shipEntry(ship *sim.Ship, region string) map[string]any {
	loc, vel := ship.Location(), ship.Velocity()
	entry := map[string]any{
		"name":      ship.Name(),
		"class":     ship.Class().String(),
		"iff":       float64(ship.IFF()),
		"region":    region,
		"pos":       []any{loc.X, loc.Y, loc.Z},
		"vel":       []any{vel.X, vel.Y, vel.Z},
		"integrity": ship.Integrity(),
		"shield":    ship.ShieldLevel(),
	}
	if info := ship.DirectorInfo(); info != "" {
		entry["director"] = info
	}
	if tgt := ship.Target(); tgt != nil {
		entry["target"] = tgt.Base().Name()
	}
	return entry
}

// DecodeFrame restores the Struct written by EncodeFrame.
func DecodeFrame(payload []byte) (*structpb.Struct, error) {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(payload, st); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return st, nil
}

// FrameShips lists the ship names recorded in a decoded frame.
func FrameShips(st *structpb.Struct) []string {
	list := st.GetFields()["ships"].GetListValue()
	names := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		names = append(names, v.GetStructValue().GetFields()["name"].GetStringValue())
	}
	return names
}
