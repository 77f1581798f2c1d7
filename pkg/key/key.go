// Package key implements the pure, stateless functions that compose,
// parse, and validate clusterlib's hierarchical key strings — no
// Notifyable, no Repository, no state. Every Notifyable's identity is
// one of these keys; this package is the single place that understands
// their grammar.
package key

import "strings"

// Segment names the reserved path components that introduce each child
// collection under a Group or Node.
const (
	SegRoot          = "clusterlib"
	SegVersion       = "1.0"
	SegRootNode      = "root"
	SegApplications  = "applications"
	SegGroups        = "groups"
	SegNodes         = "nodes"
	SegDistributions = "distributions"
	SegPropertyLists = "propertyLists"
	SegQueues        = "queues"
	SegProcessSlots  = "processSlots"
)

// Root is the canonical key of the singleton Root Notifyable.
const Root = "/" + SegRoot + "/" + SegVersion + "/" + SegRootNode

// IsValidComponent reports whether name is usable as a single path
// component: non-empty and free of the '/' separator. The original
// validates this before ever composing a key; an invalid component
// would otherwise silently corrupt the resulting path.
func IsValidComponent(name string) bool {
	return name != "" && !strings.Contains(name, "/")
}

// join appends path components under parent, preconditioned on parent
// already being a valid absolute key.
func join(parent string, components ...string) string {
	var b strings.Builder
	b.WriteString(parent)
	for _, c := range components {
		b.WriteByte('/')
		b.WriteString(c)
	}
	return b.String()
}

// Applications returns the key of the applications collection under Root.
func Applications() string {
	return join(Root, SegApplications)
}

// Application composes the key of application name.
func Application(name string) string {
	return join(Applications(), name)
}

// Group composes the key of child group name under parentKey (an
// Application or Group key).
func Group(parentKey, name string) string {
	return join(parentKey, SegGroups, name)
}

// Node composes the key of child node name under parentKey (a Group key).
func Node(parentKey, name string) string {
	return join(parentKey, SegNodes, name)
}

// DataDistribution composes the key of child distribution name under
// parentKey (a Group key).
func DataDistribution(parentKey, name string) string {
	return join(parentKey, SegDistributions, name)
}

// PropertyList composes the key of child property list name under
// parentKey (a Group or Node key).
func PropertyList(parentKey, name string) string {
	return join(parentKey, SegPropertyLists, name)
}

// Queue composes the key of child queue name under parentKey (a Group key).
func Queue(parentKey, name string) string {
	return join(parentKey, SegQueues, name)
}

// ProcessSlot composes the key of child process slot name under
// parentKey (a Node key).
func ProcessSlot(parentKey, name string) string {
	return join(parentKey, SegProcessSlots, name)
}

// GroupsDir returns the key of the child-groups collection under
// parentKey (an Application or Group key).
func GroupsDir(parentKey string) string {
	return join(parentKey, SegGroups)
}

// NodesDir returns the key of the child-nodes collection under
// parentKey (a Group key).
func NodesDir(parentKey string) string {
	return join(parentKey, SegNodes)
}

// DistributionsDir returns the key of the child-distributions
// collection under parentKey (a Group key).
func DistributionsDir(parentKey string) string {
	return join(parentKey, SegDistributions)
}

// PropertyListsDir returns the key of the child-property-lists
// collection under parentKey (a Group or Node key).
func PropertyListsDir(parentKey string) string {
	return join(parentKey, SegPropertyLists)
}

// QueuesDir returns the key of the child-queues collection under
// parentKey (a Group key).
func QueuesDir(parentKey string) string {
	return join(parentKey, SegQueues)
}

// ProcessSlotsDir returns the key of the child-process-slots collection
// under parentKey (a Node key).
func ProcessSlotsDir(parentKey string) string {
	return join(parentKey, SegProcessSlots)
}

// Attribute composes the key of a reserved attribute leaf under
// notifyableKey (e.g. "shards", "manualOverrides", "clientState").
func Attribute(notifyableKey, attribute string) string {
	return join(notifyableKey, attribute)
}

// SplitKey splits an absolute key into its '/'-delimited components,
// dropping the empty leading component produced by the leading '/'.
func SplitKey(k string) []string {
	parts := strings.Split(k, "/")
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	return parts
}

// Name returns the last path component of k, i.e. the Notifyable's own
// name as opposed to its full key.
func Name(k string) string {
	parts := SplitKey(k)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// ParentKey returns the key of k's parent, or "" if k is Root or
// malformed. Because every Notifyable collection introduces two path
// components (the collection segment, e.g. "groups", and the child's
// own name), the parent of a typed Notifyable is two components up
// from its own key, not one: Parent(".../groups/g") strips "/groups/g".
func ParentKey(k string) string {
	if k == Root {
		return ""
	}
	parts := SplitKey(k)
	if len(parts) < 2 {
		return ""
	}
	trimmed := parts[:len(parts)-2]
	if len(trimmed) == 0 {
		return ""
	}
	return "/" + strings.Join(trimmed, "/")
}
