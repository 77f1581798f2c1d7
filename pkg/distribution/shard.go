package distribution

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/clusterlib/clusterlib/pkg/key"
)

// Target names the Notifyable a shard or override routes to: a Node
// when Node is non-empty, otherwise a forwarding DataDistribution
// reached by the same (App, Group) pair.
type Target struct {
	App   string
	Group string
	Node  string
}

// Key composes Target's full hierarchical key.
func (t Target) Key() string {
	groupKey := key.Application(t.App)
	if t.Group != "" {
		groupKey = key.Group(groupKey, t.Group)
	}
	if t.Node == "" {
		return groupKey
	}
	return key.Node(groupKey, t.Node)
}

// Shard is an inclusive hash range bound to a Target.
type Shard struct {
	Begin  uint64
	End    uint64
	Target Target
}

func (s Shard) covers(h uint64) bool {
	return h >= s.Begin && h <= s.End
}

// Override is a regex pattern consulted before hashing.
type Override struct {
	Pattern string
	Target  Target
	re      *regexp.Regexp
}

// compiled lazily compiles Pattern, caching the result on the value the
// caller holds. Malformed patterns never match.
func (o *Override) compiled() *regexp.Regexp {
	if o.re == nil {
		re, err := regexp.Compile(o.Pattern)
		if err != nil {
			o.re = regexp.MustCompile(`$.^`) // matches nothing
			return o.re
		}
		o.re = re
	}
	return o.re
}

// Table is one DataDistribution's shard/override state: ordered shards
// (insertion order, not sorted — lookup walks them in this order),
// override patterns checked first, and the hash function the shards
// were computed against.
type Table struct {
	Shards          []Shard
	Overrides       []Override
	HashFn          HashFunction
	UserFn          UserHashFunc
	ShardVersion    int64
	OverrideVersion int64
}

// FindCoveringNode resolves a routing key to a target: overrides first
// in table order, then hash dispatch and an insertion-order shard walk.
// ok is false when nothing matches ("not covered").
func (t *Table) FindCoveringNode(routingKey string) (target Target, ok bool) {
	for i := range t.Overrides {
		if t.Overrides[i].compiled().MatchString(routingKey) {
			return t.Overrides[i].Target, true
		}
	}

	h := Hash(t.HashFn, routingKey, t.UserFn)
	for _, s := range t.Shards {
		if s.covers(h) {
			return s.Target, true
		}
	}
	return Target{}, false
}

// IsCovered reports whether the union of shard ranges equals the full
// 64-bit hash space with no gaps. Overlapping ranges are tolerated; any
// gap makes the table not-covered.
func (t *Table) IsCovered() bool {
	if len(t.Shards) == 0 {
		return false
	}
	sorted := make([]Shard, len(t.Shards))
	copy(sorted, t.Shards)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Begin < sorted[j].Begin })

	if sorted[0].Begin != 0 {
		return false
	}
	frontier := sorted[0].End
	for _, s := range sorted[1:] {
		if s.Begin > frontier+1 {
			return false
		}
		if s.End > frontier {
			frontier = s.End
		}
	}
	return frontier == math.MaxUint64
}

// MarshalShards renders Shards as ';'-terminated
// "begin,end,app,group,node" tuples.
func MarshalShards(shards []Shard) string {
	var b strings.Builder
	for _, s := range shards {
		fmt.Fprintf(&b, "%d,%d,%s,%s,%s;", s.Begin, s.End, s.Target.App, s.Target.Group, s.Target.Node)
	}
	return b.String()
}

// UnmarshalShards parses the format MarshalShards produces.
func UnmarshalShards(s string) ([]Shard, error) {
	var out []Shard
	for _, tuple := range splitTerminated(s) {
		fields := strings.Split(tuple, ",")
		if len(fields) != 5 {
			return nil, fmt.Errorf("distribution: malformed shard tuple %q", tuple)
		}
		begin, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("distribution: malformed shard begin %q: %w", fields[0], err)
		}
		end, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("distribution: malformed shard end %q: %w", fields[1], err)
		}
		out = append(out, Shard{
			Begin:  begin,
			End:    end,
			Target: Target{App: fields[2], Group: fields[3], Node: fields[4]},
		})
	}
	return out, nil
}

// MarshalOverrides renders Overrides as ';'-terminated
// "pattern,app,group,node" tuples.
func MarshalOverrides(overrides []Override) string {
	var b strings.Builder
	for _, o := range overrides {
		fmt.Fprintf(&b, "%s,%s,%s,%s;", o.Pattern, o.Target.App, o.Target.Group, o.Target.Node)
	}
	return b.String()
}

// UnmarshalOverrides parses the format MarshalOverrides produces.
func UnmarshalOverrides(s string) ([]Override, error) {
	var out []Override
	for _, tuple := range splitTerminated(s) {
		fields := strings.Split(tuple, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("distribution: malformed override tuple %q", tuple)
		}
		out = append(out, Override{
			Pattern: fields[0],
			Target:  Target{App: fields[1], Group: fields[2], Node: fields[3]},
		})
	}
	return out, nil
}

func splitTerminated(s string) []string {
	s = strings.TrimSuffix(s, ";")
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}
