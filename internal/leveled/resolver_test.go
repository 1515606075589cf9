package leveled

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/stashkeeper/internal/types"
	"github.com/solatis/stashkeeper/internal/world"
)

// fakeCalc draws every entry with its count multiplied by the requested count.
type fakeCalc struct {
	lists map[types.FormID][]types.ItemStack
	level int
}

func (c *fakeCalc) IsLeveledList(form types.FormID) bool {
	_, ok := c.lists[form]
	return ok
}

func (c *fakeCalc) CalculateLeveledList(list types.FormID, level, count int) []types.ItemStack {
	var out []types.ItemStack
	for _, e := range c.lists[list] {
		out = append(out, types.ItemStack{Item: e.Item, Count: e.Count * count})
	}
	return out
}

func (c *fakeCalc) PlayerLevel() int { return c.level }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	sword types.FormID = 0x12EB7
	axe   types.FormID = 0x13790
	gold  types.FormID = 0xF

	weapons types.FormID = 0xA001
	bundle  types.FormID = 0xA002
	loop    types.FormID = 0xA003
	loopB   types.FormID = 0xA004
)

func TestResolve(t *testing.T) {
	calc := &fakeCalc{level: 10, lists: map[types.FormID][]types.ItemStack{
		weapons: {{Item: sword, Count: 1}, {Item: axe, Count: 1}},
		bundle:  {{Item: weapons, Count: 2}, {Item: gold, Count: 5}, {Item: sword, Count: 1}},
		loop:    {{Item: loopB, Count: 1}, {Item: gold, Count: 1}},
		loopB:   {{Item: loop, Count: 1}, {Item: axe, Count: 1}},
	}}
	r := NewResolver(calc, discardLogger())

	tests := []struct {
		name    string
		list    types.FormID
		count   int
		want    []types.ItemStack
		wantErr error
	}{
		{
			name:  "flat list",
			list:  weapons,
			count: 1,
			want:  []types.ItemStack{{Item: sword, Count: 1}, {Item: axe, Count: 1}},
		},
		{
			name:  "nested sublists merge stacks in first-seen order",
			list:  bundle,
			count: 1,
			want:  []types.ItemStack{{Item: sword, Count: 3}, {Item: axe, Count: 2}, {Item: gold, Count: 5}},
		},
		{
			name:  "zero count treated as one",
			list:  weapons,
			count: 0,
			want:  []types.ItemStack{{Item: sword, Count: 1}, {Item: axe, Count: 1}},
		},
		{
			name:    "cycle cut at repeating entry",
			list:    loop,
			count:   1,
			want:    []types.ItemStack{{Item: axe, Count: 1}, {Item: gold, Count: 1}},
			wantErr: types.ErrLeveledCycle,
		},
		{
			name:    "not a leveled list",
			list:    sword,
			count:   1,
			wantErr: types.ErrNotLeveled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.list, tt.count)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveDepthBound(t *testing.T) {
	lists := make(map[types.FormID][]types.ItemStack)
	const depth = types.MaxLeveledDepth + 4
	for i := 0; i < depth; i++ {
		lists[types.FormID(0xB000+i)] = []types.ItemStack{
			{Item: types.FormID(0xB000 + i + 1), Count: 1},
			{Item: gold, Count: 1},
		}
	}
	r := NewResolver(&fakeCalc{level: 1, lists: lists}, discardLogger())

	got, err := r.Resolve(0xB000, 1)
	if !errors.Is(err, types.ErrLeveledTooDeep) {
		t.Errorf("Resolve() error = %v, want ErrLeveledTooDeep", err)
	}
	if len(got) != 1 || got[0].Item != gold || got[0].Count != types.MaxLeveledDepth {
		t.Errorf("Resolve() = %v, want gold x%d from the kept levels", got, types.MaxLeveledDepth)
	}
}

// Random list graphs, including self references, always resolve to
// positive concrete stacks.
func TestProperty_ResolveTerminates(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("resolution yields concrete positive stacks", prop.ForAll(
		func(edges []uint8) bool {
			const n = 6
			lists := make(map[types.FormID][]types.ItemStack, n)
			for i, e := range edges {
				from := types.FormID(0xC000 + i%n)
				var to types.FormID
				if e%2 == 0 {
					to = types.FormID(0xC000 + int(e/2)%n)
				} else {
					to = types.FormID(0x10 + int(e)%4)
				}
				lists[from] = append(lists[from], types.ItemStack{Item: to, Count: 1})
			}
			calc := &fakeCalc{level: 1, lists: lists}
			r := NewResolver(calc, discardLogger())

			for id := range lists {
				stacks, _ := r.Resolve(id, 1)
				for _, s := range stacks {
					if s.Count < 1 || calc.IsLeveledList(s.Item) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(12, gen.UInt8()),
	))

	properties.TestingRun(t)
}

func sortedStacks(stacks []types.ItemStack) []types.ItemStack {
	out := slices.Clone(stacks)
	slices.SortFunc(out, func(a, b types.ItemStack) int {
		if a.Item != b.Item {
			return int(a.Item) - int(b.Item)
		}
		return a.Count - b.Count
	})
	return out
}

// Two worlds built from the same seed resolve nested random lists to the
// same multiset of stacks.
func TestProperty_ResolveDeterministicForSeed(t *testing.T) {
	doc := &world.Document{
		LeveledLists: []world.LeveledDoc{
			{
				FormDoc:            world.FormDoc{ID: 0xB001},
				CalculateAllLevels: true,
				CalculateEachItem:  true,
				ChanceNone:         25,
				Entries: []world.LeveledEntryDoc{
					{Level: 1, Form: world.FormRef(sword), Count: 1},
					{Level: 1, Form: world.FormRef(axe), Count: 2},
					{Level: 1, Form: world.FormRef(gold), Count: 7},
				},
			},
			{
				FormDoc:           world.FormDoc{ID: 0xB002},
				CalculateEachItem: true,
				Entries: []world.LeveledEntryDoc{
					{Level: 1, Form: 0xB001, Count: 2},
					{Level: 1, Form: world.FormRef(gold), Count: 3},
				},
			},
		},
	}

	properties := gopter.NewProperties(nil)
	properties.Property("equal seeds resolve equal multisets", prop.ForAll(
		func(seed int64, count int) bool {
			a, errA := world.New(doc, seed)
			b, errB := world.New(doc, seed)
			if errA != nil || errB != nil {
				return false
			}
			ra := NewResolver(a, discardLogger())
			rb := NewResolver(b, discardLogger())
			for i := 0; i < 3; i++ {
				ga, errA := ra.Resolve(0xB002, count)
				gb, errB := rb.Resolve(0xB002, count)
				if (errA == nil) != (errB == nil) {
					return false
				}
				if !slices.Equal(sortedStacks(ga), sortedStacks(gb)) {
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}

func TestResolveFixtureBundleDeterministic(t *testing.T) {
	const path = "../world/testdata/whiterun.yaml"
	a, err := world.LoadFile(path, 11)
	if err != nil {
		t.Fatalf("LoadFile() error = %v, want nil", err)
	}
	b, err := world.LoadFile(path, 11)
	if err != nil {
		t.Fatalf("LoadFile() error = %v, want nil", err)
	}

	bundleID, ok := a.LookupEditorID("LItemWeaponBundle")
	if !ok {
		t.Fatal("fixture list LItemWeaponBundle missing")
	}
	ga, err := NewResolver(a, discardLogger()).Resolve(bundleID, 3)
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	gb, err := NewResolver(b, discardLogger()).Resolve(bundleID, 3)
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if !slices.Equal(sortedStacks(ga), sortedStacks(gb)) {
		t.Errorf("Resolve() = %v and %v, want equal for one seed", ga, gb)
	}
	if len(ga) == 0 {
		t.Error("Resolve(LItemWeaponBundle) = empty, want concrete items")
	}
}
