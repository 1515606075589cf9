package api

import (
	"bytes"
	"context"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/stashkeeper/internal/containers"
	"github.com/solatis/stashkeeper/internal/ingest"
	"github.com/solatis/stashkeeper/internal/world"
)

type ruleCounts struct {
	Add     int `json:"add"`
	Remove  int `json:"remove"`
	Replace int `json:"replace"`
}

type loadWorldResponse struct {
	Plugins        int        `json:"plugins"`
	Forms          int        `json:"forms"`
	Containers     int        `json:"containers"`
	Documents      int        `json:"documents"`
	DocumentErrors []string   `json:"documentErrors"`
	Rules          ruleCounts `json:"rules"`
}

// LoadWorld replaces the world snapshot, re-ingests every rule source and
// swaps the engine snapshot. The previous world stays active on failure.
func (s *Service) LoadWorld(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Bridge.RequestTimeout)
	defer cancel()

	data, err := structToJSON(req)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", errInvalidRequest, err))
	}

	w, err := world.Load(bytes.NewReader(data), s.cfg.Engine.Seed)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "load world: %v", err)
	}

	store, reports, err := ingest.BuildStore(ctx, w, s.sources, s.metrics, s.logger)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "load rules: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}

	snap := containers.BuildSnapshot(w, store, s.cfg.Engine.MaxLookupRadius, s.logger)

	s.mu.Lock()
	s.world = w
	s.manager.Reload(snap)
	s.mu.Unlock()

	resp := loadWorldResponse{
		Plugins:        len(w.Plugins()),
		Forms:          w.FormCount(),
		Containers:     len(w.ContainerRefs()),
		Documents:      len(reports),
		DocumentErrors: []string{},
		Rules: ruleCounts{
			Add:     len(store.AddRules()),
			Remove:  len(store.RemoveRules()),
			Replace: len(store.ReplaceRules()),
		},
	}
	for _, r := range reports {
		if r.HasErrors() {
			resp.DocumentErrors = append(resp.DocumentErrors, r.Name)
		}
	}

	s.logger.Info("world loaded",
		"plugins", resp.Plugins,
		"forms", resp.Forms,
		"containers", resp.Containers,
		"rules", store.Len(),
	)

	out, err := structFromJSON(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
