package artifact

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePreservesInsertionOrder(t *testing.T) {
	s := NewStore()
	s.Put("alu.v", "module alu; endmodule", RolePrimary)
	s.Put("shared_header.vh", "`define WIDTH 8", RoleCompanion)
	s.Put("alu_tb.v", "module alu_tb; endmodule", RoleCompanion)

	assert.Equal(t, []string{"alu.v", "shared_header.vh", "alu_tb.v"}, s.Names())

	// Replacing keeps the original position.
	s.Put("shared_header.vh", "`define WIDTH 16", RoleCompanion)
	assert.Equal(t, []string{"alu.v", "shared_header.vh", "alu_tb.v"}, s.Names())
	assert.Equal(t, "`define WIDTH 16", s.Content("shared_header.vh"))
	assert.Equal(t, 3, s.Len())
}

func TestStorePrimaryAndCompanions(t *testing.T) {
	s := NewStore()
	s.Put("counter.v", "module counter; endmodule", RolePrimary)
	s.Put("counter_tb.v", "module counter_tb; endmodule", RoleCompanion)

	primary, ok := s.Primary()
	require.True(t, ok)
	assert.Equal(t, "counter.v", primary.Name)

	companions := s.Companions()
	require.Len(t, companions, 1)
	assert.Equal(t, "counter_tb.v", companions[0].Name)

	empty := NewStore()
	_, ok = empty.Primary()
	assert.False(t, ok)
}

func TestStoreSetContent(t *testing.T) {
	s := NewStore()
	s.Put("alu.v", "before", RolePrimary)

	require.NoError(t, s.SetContent("alu.v", "after"))
	assert.Equal(t, "after", s.Content("alu.v"))

	assert.Error(t, s.SetContent("missing.v", "x"))
	assert.Equal(t, "", s.Content("missing.v"))
}

func TestStoreMerge(t *testing.T) {
	dst := NewStore()
	dst.Put("alu.v", "old", RolePrimary)

	src := NewStore()
	src.Put("alu.v", "new", RolePrimary)
	src.Put("alu_tb.v", "tb", RoleCompanion)

	dst.Merge(src)
	assert.Equal(t, []string{"alu.v", "alu_tb.v"}, dst.Names())
	assert.Equal(t, "new", dst.Content("alu.v"))

	dst.Merge(nil) // no-op
	assert.Equal(t, 2, dst.Len())
}

func TestStoreCloneIsDeep(t *testing.T) {
	s := NewStore()
	s.Put("alu.v", "original", RolePrimary)

	c := s.Clone()
	require.NoError(t, c.SetContent("alu.v", "mutated"))

	assert.Equal(t, "original", s.Content("alu.v"))
	assert.Equal(t, "mutated", c.Content("alu.v"))
}

func TestStoreSnapshot(t *testing.T) {
	s := NewStore()
	s.Put("b.v", "bb", RoleCompanion)
	s.Put("a.v", "aa", RolePrimary)

	want := map[string]string{"a.v": "aa", "b.v": "bb"}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"a.v", "b.v"}, s.SortedNames())
	assert.Equal(t, []string{"b.v", "a.v"}, s.Names())
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "primary", RolePrimary.String())
	assert.Equal(t, "companion", RoleCompanion.String())
	assert.Equal(t, "unknown", Role(42).String())
}
