package distribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJenkinsSpotChecks(t *testing.T) {
	assert.Equal(t, uint32(0), jenkinsOneAtATime32(""))
	assert.Equal(t, uint32(0xca2e9442), jenkinsOneAtATime32("a"))
}

func TestHashDispatch(t *testing.T) {
	assert.Equal(t, jenkins64("abc"), Hash(HashJenkins, "abc", nil))
	assert.Equal(t, md5Hash64("abc"), Hash(HashMD5, "abc", nil))

	called := false
	userFn := func(k string) uint64 { called = true; return 42 }
	assert.Equal(t, uint64(42), Hash(HashUserDef, "x", userFn))
	assert.True(t, called)
}

func TestFindCoveringNodeShardsOnly(t *testing.T) {
	tbl := &Table{
		HashFn: HashJenkins,
		Shards: []Shard{
			{Begin: 0, End: 0x7fffffffffffffff, Target: Target{App: "app1", Group: "g", Node: "n1"}},
			{Begin: 0x8000000000000000, End: math.MaxUint64, Target: Target{App: "app1", Group: "g", Node: "n2"}},
		},
	}
	assert.True(t, tbl.IsCovered())

	target, ok := tbl.FindCoveringNode("some-key")
	require.True(t, ok)
	assert.Contains(t, []string{"n1", "n2"}, target.Node)
}

func TestOverridesConsultedFirst(t *testing.T) {
	tbl := &Table{
		HashFn: HashJenkins,
		Overrides: []Override{
			{Pattern: "^special-.*", Target: Target{App: "app1", Group: "g", Node: "special-node"}},
		},
		Shards: []Shard{
			{Begin: 0, End: math.MaxUint64, Target: Target{App: "app1", Group: "g", Node: "default-node"}},
		},
	}

	target, ok := tbl.FindCoveringNode("special-thing")
	require.True(t, ok)
	assert.Equal(t, "special-node", target.Node)

	target, ok = tbl.FindCoveringNode("ordinary-thing")
	require.True(t, ok)
	assert.Equal(t, "default-node", target.Node)
}

func TestIsCoveredDetectsGap(t *testing.T) {
	tbl := &Table{
		Shards: []Shard{
			{Begin: 0, End: 100},
			{Begin: 200, End: math.MaxUint64},
		},
	}
	assert.False(t, tbl.IsCovered())
}

func TestNotCoveredReturnsFalse(t *testing.T) {
	tbl := &Table{HashFn: HashJenkins, Shards: []Shard{
		{Begin: 0, End: 10, Target: Target{App: "a", Group: "g", Node: "n"}},
	}}
	_, ok := tbl.FindCoveringNode("whatever-key-that-will-hash-outside-0-10")
	assert.False(t, ok)
}

func TestShardMarshalRoundTrip(t *testing.T) {
	shards := []Shard{
		{Begin: 0, End: 100, Target: Target{App: "app1", Group: "g", Node: "n1"}},
		{Begin: 101, End: math.MaxUint64, Target: Target{App: "app1", Group: "g", Node: "n2"}},
	}
	s := MarshalShards(shards)
	got, err := UnmarshalShards(s)
	require.NoError(t, err)
	assert.Equal(t, shards, got)
}

func TestOverrideMarshalRoundTrip(t *testing.T) {
	overrides := []Override{
		{Pattern: "^foo.*", Target: Target{App: "app1", Group: "g", Node: "n1"}},
	}
	s := MarshalOverrides(overrides)
	got, err := UnmarshalOverrides(s)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, overrides[0].Pattern, got[0].Pattern)
	assert.Equal(t, overrides[0].Target, got[0].Target)
}

func TestTargetKey(t *testing.T) {
	tgt := Target{App: "app1", Group: "g", Node: "n1"}
	assert.Equal(t, "/clusterlib/1.0/root/applications/app1/groups/g/nodes/n1", tgt.Key())

	distTarget := Target{App: "app1", Group: "g"}
	assert.Equal(t, "/clusterlib/1.0/root/applications/app1/groups/g", distTarget.Key())
}
