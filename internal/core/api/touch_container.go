package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/stashkeeper/internal/containers"
	"github.com/solatis/stashkeeper/internal/types"
	"github.com/solatis/stashkeeper/internal/world"
)

type stackDoc struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type stateDoc struct {
	PlayerLevel int                `json:"playerLevel"`
	ActorValues map[string]float64 `json:"actorValues"`
	QuestStages map[string]int     `json:"questStages"`
	Globals     map[string]float64 `json:"globals"`
}

type touchRequest struct {
	Reference string    `json:"reference"`
	Trigger   string    `json:"trigger"`
	State     *stateDoc `json:"state"`

	// Inventory replaces the reference inventory when present.
	Inventory *[]stackDoc `json:"inventory"`
}

type deltaDoc struct {
	Item   string `json:"item"`
	Count  int    `json:"count"`
	Reason string `json:"reason,omitempty"`
}

type appliedDoc struct {
	RuleID  string     `json:"ruleId"`
	Rule    string     `json:"rule"`
	Kind    string     `json:"kind"`
	Removed []stackDoc `json:"removed"`
	Added   []stackDoc `json:"added"`
}

type touchResponse struct {
	Reference string       `json:"reference"`
	Trigger   string       `json:"trigger"`
	Vendor    bool         `json:"vendor"`
	Unsafe    bool         `json:"unsafe"`
	Applied   []appliedDoc `json:"applied"`
	Deltas    []deltaDoc   `json:"deltas"`
	Inventory []stackDoc   `json:"inventory"`
}

// TouchContainer applies the host state carried by the request, runs the
// mutation engine against one container reference and returns the
// resulting inventory deltas in application order.
func (s *Service) TouchContainer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Bridge.RequestTimeout)
	defer cancel()

	data, err := structToJSON(req)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalidRequest, err))
	}
	var tr touchRequest
	if err := decodeStrict(data, &tr); err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalidRequest, err))
	}
	trigger, err := types.ParseTrigger(tr.Trigger)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalidRequest, err))
	}
	if tr.Inventory != nil && len(*tr.Inventory) > s.cfg.Bridge.MaxInventory {
		return nil, status.Errorf(codes.InvalidArgument,
			"inventory exceeds maximum of %d stacks", s.cfg.Bridge.MaxInventory)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.world
	if w == nil {
		return nil, toStatus(types.ErrNoWorld)
	}

	ref, err := s.prepare(w, &tr)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}

	res := s.manager.OnContainerTouched(ctx, ref, trigger)
	resp := buildTouchResponse(ref, trigger, res)
	s.audit.record(resp, s.logger)

	out, err := structFromJSON(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// prepare resolves the reference, state and inventory, then applies the
// state and replaces the inventory. Nothing is committed unless every
// identifier in the request resolves.
func (s *Service) prepare(w *world.World, tr *touchRequest) (*world.Ref, error) {
	if tr.Reference == "" {
		return nil, fmt.Errorf("%w: reference required", errInvalidRequest)
	}
	id, err := formID(w, tr.Reference)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknownReference, err)
	}
	ref, ok := w.Ref(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownReference, tr.Reference)
	}

	var state *world.State
	if tr.State != nil {
		st, err := decodeState(w, tr.State)
		if err != nil {
			return nil, err
		}
		state = &st
	}

	var inv []types.ItemStack
	if tr.Inventory != nil {
		inv = make([]types.ItemStack, 0, len(*tr.Inventory))
		for _, st := range *tr.Inventory {
			item, err := formID(w, st.Item)
			if err != nil {
				return nil, err
			}
			if st.Count < 1 {
				return nil, fmt.Errorf("%w: count for %s must be positive", errInvalidRequest, st.Item)
			}
			inv = append(inv, types.ItemStack{Item: item, Count: st.Count})
		}
	}

	// ApplyState checks every quest and global before writing any of them.
	if state != nil {
		if err := w.ApplyState(*state); err != nil {
			return nil, err
		}
	}
	if tr.Inventory == nil {
		ref.ClearDeltas()
		return ref, nil
	}
	if err := w.SetInventory(id, inv); err != nil {
		return nil, err
	}
	return ref, nil
}

func decodeState(w *world.World, d *stateDoc) (world.State, error) {
	state := world.State{
		PlayerLevel: d.PlayerLevel,
		ActorValues: d.ActorValues,
	}
	if len(d.QuestStages) > 0 {
		state.QuestStages = make(map[types.FormID]int, len(d.QuestStages))
		for k, v := range d.QuestStages {
			id, err := formID(w, k)
			if err != nil {
				return world.State{}, err
			}
			state.QuestStages[id] = v
		}
	}
	if len(d.Globals) > 0 {
		state.Globals = make(map[types.FormID]float64, len(d.Globals))
		for k, v := range d.Globals {
			id, err := formID(w, k)
			if err != nil {
				return world.State{}, err
			}
			state.Globals[id] = v
		}
	}
	return state, nil
}

func stackDocs(stacks []types.ItemStack) []stackDoc {
	out := make([]stackDoc, 0, len(stacks))
	for _, s := range stacks {
		out = append(out, stackDoc{Item: s.Item.String(), Count: s.Count})
	}
	return out
}

func buildTouchResponse(ref *world.Ref, trigger types.Trigger, res containers.Result) touchResponse {
	resp := touchResponse{
		Reference: ref.ID().String(),
		Trigger:   trigger.String(),
		Vendor:    res.Vendor,
		Unsafe:    res.Unsafe,
		Applied:   make([]appliedDoc, 0, len(res.Applied)),
		Deltas:    []deltaDoc{},
		Inventory: stackDocs(ref.Inventory()),
	}
	for _, app := range res.Applied {
		resp.Applied = append(resp.Applied, appliedDoc{
			RuleID:  string(app.RuleID),
			Rule:    app.RuleName,
			Kind:    app.Kind.String(),
			Removed: stackDocs(app.Removed),
			Added:   stackDocs(app.Added),
		})
	}
	for _, d := range ref.Deltas() {
		dd := deltaDoc{Item: d.Item.String(), Count: d.Count}
		if d.Count < 0 {
			dd.Reason = d.Reason.String()
		}
		resp.Deltas = append(resp.Deltas, dd)
	}
	return resp
}
