// Package api implements the host bridge gRPC service.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/stashkeeper/internal/containers"
	"github.com/solatis/stashkeeper/internal/core/config"
	"github.com/solatis/stashkeeper/internal/ingest"
	"github.com/solatis/stashkeeper/internal/observe"
	"github.com/solatis/stashkeeper/internal/types"
	"github.com/solatis/stashkeeper/internal/world"
)

// Service implements HostBridgeServer.
// Thin orchestration layer delegating to world, ingest and containers.
type Service struct {
	cfg     *config.Config
	manager *containers.Manager
	sources ingest.Sources
	metrics *observe.Metrics
	logger  *slog.Logger
	audit   *auditLog

	// mu guards world and serialises TouchContainer so a reference's
	// inventory, the engine pass and the recorded deltas stay consistent.
	mu    sync.Mutex
	world *world.World
}

// NewService creates service instance with dependencies.
// Auto-creates the audit directory when one is configured.
func NewService(cfg *config.Config, manager *containers.Manager, sources ingest.Sources, metrics *observe.Metrics, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if manager == nil {
		return nil, fmt.Errorf("manager cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	audit, err := newAuditLog(cfg.Bridge.AuditDir)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:     cfg,
		manager: manager,
		sources: sources,
		metrics: metrics,
		logger:  logger,
		audit:   audit,
	}, nil
}

// World returns the loaded world, or nil before the first LoadWorld.
func (s *Service) World() *world.World {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world
}

// formID resolves "0x"-prefixed form ids and editor ids.
func formID(w *world.World, s string) (types.FormID, error) {
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		return types.ParseFormID(s)
	}
	if id, ok := w.LookupEditorID(s); ok {
		return id, nil
	}
	if hint, ok := w.SuggestEditorID(s); ok {
		return 0, fmt.Errorf("%w: %q (did you mean %q?)", types.ErrFormNotFound, s, hint)
	}
	return 0, fmt.Errorf("%w: %q", types.ErrFormNotFound, s)
}

// structToJSON renders a request Struct as JSON for decoding into Go types.
func structToJSON(in *structpb.Struct) ([]byte, error) {
	if in == nil {
		return []byte("{}"), nil
	}
	return protojson.Marshal(in)
}

// decodeStrict decodes JSON into v, rejecting unknown fields.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// structFromJSON converts a JSON-tagged response value into a Struct.
func structFromJSON(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
