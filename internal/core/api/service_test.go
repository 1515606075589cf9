package api

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/solatis/stashkeeper/internal/containers"
	"github.com/solatis/stashkeeper/internal/core/auth"
	"github.com/solatis/stashkeeper/internal/core/config"
	"github.com/solatis/stashkeeper/internal/ingest"
)

const swordsToTorches = `{"rules": [{
  "friendlyName": "Swords to torches",
  "conditions": {"locations": ["WhiterunLocation"]},
  "changes": [{"remove": "IronSword", "add": ["Torch01"]}]
}]}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	client  *HostBridgeClient
	conn    *grpc.ClientConn
	service *Service
	cfg     *config.Config
}

func newHarness(t *testing.T, token string, mutate func(*config.Config)) *harness {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "swords.json"), []byte(swordsToTorches), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Engine.Seed = 7
	if mutate != nil {
		mutate(cfg)
	}

	logger := discardLogger()
	manager := containers.NewManager(nil, containers.Options{Seed: 7, Logger: logger})
	service, err := NewService(cfg, manager, ingest.Sources{Dir: dir}, nil, logger)
	if err != nil {
		t.Fatalf("NewService() error = %v, want nil", err)
	}

	authenticator, err := auth.NewAuthenticator(token)
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v, want nil", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(authenticator.UnaryInterceptor()))
	RegisterHostBridgeServer(srv, service)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v, want nil", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &harness{client: NewHostBridgeClient(conn), conn: conn, service: service, cfg: cfg}
}

// worldStruct converts the YAML fixture into the Struct a host would upload.
func worldStruct(t *testing.T) *structpb.Struct {
	t.Helper()
	data, err := os.ReadFile("../../world/testdata/whiterun.yaml")
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v, want nil", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct() error = %v, want nil", err)
	}
	return s
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct() error = %v, want nil", err)
	}
	return s
}

func (h *harness) load(t *testing.T) *structpb.Struct {
	t.Helper()
	resp, err := h.client.LoadWorld(context.Background(), worldStruct(t))
	if err != nil {
		t.Fatalf("LoadWorld() error = %v, want nil", err)
	}
	return resp
}

func TestTouchBeforeLoadWorld(t *testing.T) {
	h := newHarness(t, "", nil)

	_, err := h.client.TouchContainer(context.Background(), mustStruct(t, map[string]any{
		"reference": "0x00030002",
	}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("TouchContainer() code = %v, want FailedPrecondition", status.Code(err))
	}
}

func TestLoadWorld(t *testing.T) {
	h := newHarness(t, "", nil)

	resp := h.load(t).AsMap()

	if resp["containers"] != float64(5) {
		t.Errorf("containers = %v, want 5", resp["containers"])
	}
	if resp["plugins"] != float64(2) {
		t.Errorf("plugins = %v, want 2", resp["plugins"])
	}
	rules := resp["rules"].(map[string]any)
	if rules["replace"] != float64(1) || rules["add"] != float64(0) {
		t.Errorf("rules = %v, want one replace", rules)
	}
	if errs := resp["documentErrors"].([]any); len(errs) != 0 {
		t.Errorf("documentErrors = %v, want none", errs)
	}
	if h.service.World() == nil {
		t.Error("World() = nil after LoadWorld")
	}
}

func TestLoadWorldRejectsBadSnapshot(t *testing.T) {
	h := newHarness(t, "", nil)

	_, err := h.client.LoadWorld(context.Background(), mustStruct(t, map[string]any{
		"items": []any{map[string]any{"id": "0x0", "editor_id": "Nothing"}},
	}))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("LoadWorld() code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestTouchContainer(t *testing.T) {
	h := newHarness(t, "", nil)
	h.load(t)

	resp, err := h.client.TouchContainer(context.Background(), mustStruct(t, map[string]any{
		"reference": "WhiterunCityChest",
		"trigger":   "reset",
		"state": map[string]any{
			"playerLevel": 12,
			"questStages": map[string]any{"MQ101": 20},
		},
		"inventory": []any{
			map[string]any{"item": "0x00012EB7", "count": 3},
			map[string]any{"item": "Gold001", "count": 10},
		},
	}))
	if err != nil {
		t.Fatalf("TouchContainer() error = %v, want nil", err)
	}
	got := resp.AsMap()

	if got["reference"] != "0x00030002" || got["trigger"] != "reset" {
		t.Errorf("reference=%v trigger=%v", got["reference"], got["trigger"])
	}

	deltas := got["deltas"].([]any)
	if len(deltas) != 2 {
		t.Fatalf("deltas = %v, want removal then addition", deltas)
	}
	removal := deltas[0].(map[string]any)
	if removal["item"] != "0x00012EB7" || removal["count"] != float64(-3) || removal["reason"] != "replace" {
		t.Errorf("deltas[0] = %v", removal)
	}
	addition := deltas[1].(map[string]any)
	if addition["item"] != "0x0001D4EC" || addition["count"] != float64(3) {
		t.Errorf("deltas[1] = %v", addition)
	}

	applied := got["applied"].([]any)
	if len(applied) != 1 || applied[0].(map[string]any)["rule"] != "Swords to torches >> swords.json" {
		t.Errorf("applied = %v", applied)
	}

	w := h.service.World()
	if w.PlayerLevel() != 12 {
		t.Errorf("PlayerLevel() = %d, want 12", w.PlayerLevel())
	}
	if stage, _ := w.QuestStage(0x00050001); stage != 20 {
		t.Errorf("QuestStage(MQ101) = %d, want 20", stage)
	}
}

func TestTouchContainerKeepsInventoryWhenAbsent(t *testing.T) {
	h := newHarness(t, "", nil)
	h.load(t)

	req := mustStruct(t, map[string]any{"reference": "0x00030002"})
	first, err := h.client.TouchContainer(context.Background(), req)
	if err != nil {
		t.Fatalf("TouchContainer() error = %v, want nil", err)
	}
	if n := len(first.AsMap()["deltas"].([]any)); n != 2 {
		t.Fatalf("first deltas = %d, want 2", n)
	}

	// The fixture's swords are gone; a second touch has nothing to replace.
	second, err := h.client.TouchContainer(context.Background(), req)
	if err != nil {
		t.Fatalf("TouchContainer() error = %v, want nil", err)
	}
	if n := len(second.AsMap()["deltas"].([]any)); n != 0 {
		t.Errorf("second deltas = %d, want 0", n)
	}
}

func TestTouchContainerErrors(t *testing.T) {
	h := newHarness(t, "", func(c *config.Config) { c.Bridge.MaxInventory = 1 })
	h.load(t)

	tests := []struct {
		name string
		req  map[string]any
		want codes.Code
	}{
		{"missing reference", map[string]any{}, codes.InvalidArgument},
		{"unknown reference", map[string]any{"reference": "0x00099999"}, codes.NotFound},
		{"unknown trigger", map[string]any{"reference": "0x00030002", "trigger": "open"}, codes.InvalidArgument},
		{"unknown field", map[string]any{"reference": "0x00030002", "owner": "me"}, codes.InvalidArgument},
		{"unknown quest", map[string]any{
			"reference": "0x00030002",
			"state":     map[string]any{"questStages": map[string]any{"0x00012EB7": 1}},
		}, codes.InvalidArgument},
		{"inventory too large", map[string]any{
			"reference": "0x00030002",
			"inventory": []any{
				map[string]any{"item": "Torch01", "count": 1},
				map[string]any{"item": "Gold001", "count": 1},
			},
		}, codes.InvalidArgument},
		{"non-positive count", map[string]any{
			"reference": "0x00030002",
			"inventory": []any{map[string]any{"item": "Torch01", "count": 0}},
		}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.client.TouchContainer(context.Background(), mustStruct(t, tt.req))
			if status.Code(err) != tt.want {
				t.Errorf("TouchContainer() code = %v, want %v (err = %v)", status.Code(err), tt.want, err)
			}
		})
	}
}

func TestTouchContainerRejectedRequestLeavesWorldUnchanged(t *testing.T) {
	h := newHarness(t, "", nil)
	h.load(t)
	w := h.service.World()

	ref, ok := w.Ref(0x00030002)
	if !ok {
		t.Fatal("fixture reference 0x00030002 missing")
	}
	before := ref.Inventory()

	_, err := h.client.TouchContainer(context.Background(), mustStruct(t, map[string]any{
		"reference": "0x00030002",
		"state": map[string]any{
			"playerLevel": 40,
			"questStages": map[string]any{"MQ101": 99},
			"globals":     map[string]any{},
		},
		"inventory": []any{map[string]any{"item": "NoSuchItemAnywhere", "count": 1}},
	}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("TouchContainer() code = %v, want InvalidArgument (err = %v)", status.Code(err), err)
	}

	if got := w.PlayerLevel(); got != 5 {
		t.Errorf("PlayerLevel() = %d, want 5", got)
	}
	if got, _ := w.QuestStage(0x00050001); got != 10 {
		t.Errorf("QuestStage(MQ101) = %d, want 10", got)
	}
	if after := ref.Inventory(); !slices.Equal(after, before) {
		t.Errorf("Inventory() = %v, want %v", after, before)
	}
}

func TestBridgeAuthentication(t *testing.T) {
	const token = "0123456789abcdef0123"
	h := newHarness(t, token, nil)

	_, err := h.client.LoadWorld(context.Background(), worldStruct(t))
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("LoadWorld() without token code = %v, want Unauthenticated", status.Code(err))
	}

	ctx := metadata.AppendToOutgoingContext(context.Background(), auth.TokenMetadataKey, token)
	if _, err := h.client.LoadWorld(ctx, worldStruct(t)); err != nil {
		t.Errorf("LoadWorld() with token error = %v, want nil", err)
	}

	health := grpc_health_v1.NewHealthClient(h.conn)
	if _, err := health.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{}); err != nil {
		t.Errorf("Health.Check() error = %v, want nil without token", err)
	}
}

func TestAuditLog(t *testing.T) {
	auditDir := filepath.Join(t.TempDir(), "audit")
	h := newHarness(t, "", func(c *config.Config) { c.Bridge.AuditDir = auditDir })
	h.load(t)

	if _, err := h.client.TouchContainer(context.Background(), mustStruct(t, map[string]any{
		"reference": "0x00030002",
	})); err != nil {
		t.Fatalf("TouchContainer() error = %v, want nil", err)
	}

	files, err := filepath.Glob(filepath.Join(auditDir, "*.jsonl"))
	if err != nil || len(files) != 1 {
		t.Fatalf("audit files = %v, %v, want one", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		t.Errorf("audit file = %q, want one JSON line", data)
	}
}
