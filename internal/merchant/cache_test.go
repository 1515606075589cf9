package merchant

import (
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/solatis/stashkeeper/internal/types"
)

type fakeSource struct {
	factions map[types.FormID]struct {
		vendor bool
		chest  types.FormID
	}
	contents map[types.FormID][]types.ItemStack
}

func (s *fakeSource) Factions() []types.FormID {
	var out []types.FormID
	for id := range s.factions {
		out = append(out, id)
	}
	return out
}

func (s *fakeSource) FactionIsVendor(f types.FormID) bool { return s.factions[f].vendor }

func (s *fakeSource) MerchantContainer(f types.FormID) (types.FormID, bool) {
	c := s.factions[f].chest
	return c, !c.IsZero()
}

func (s *fakeSource) ContainerBases() []types.FormID {
	var out []types.FormID
	for id := range s.contents {
		out = append(out, id)
	}
	return out
}

func (s *fakeSource) ContainerContents(base types.FormID) []types.ItemStack {
	return s.contents[base]
}

func TestBuild(t *testing.T) {
	src := &fakeSource{
		factions: map[types.FormID]struct {
			vendor bool
			chest  types.FormID
		}{
			0x40001: {vendor: true, chest: 0x30005},
			0x40002: {vendor: false, chest: 0x30006},
			0x40003: {vendor: true},
		},
		contents: map[types.FormID][]types.ItemStack{
			0x34567: {{Item: 0xF, Count: 25}, {Item: 0x13982, Count: 1}, {Item: 0xF, Count: 3}, {Item: 0, Count: 1}},
			0x34568: nil,
		},
	}
	c := Build(src, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		ref  types.FormID
		want bool
	}{
		{0x30005, true},
		{0x30006, false},
		{0x30007, false},
	}
	for _, tt := range tests {
		if got := c.IsMerchantContainer(tt.ref); got != tt.want {
			t.Errorf("IsMerchantContainer(%s) = %v, want %v", tt.ref, got, tt.want)
		}
	}

	if got := c.ContainerItems(0x34567); !slices.Equal(got, []types.FormID{0xF, 0x13982}) {
		t.Errorf("ContainerItems() = %v, want distinct sorted items", got)
	}
	if got := c.ContainerItems(0x34568); len(got) != 0 {
		t.Errorf("ContainerItems(empty) = %v, want none", got)
	}
}
