package clusterlib

import (
	"context"
	"errors"
	"sync"

	"github.com/clusterlib/clusterlib/pkg/distribution"
	"github.com/clusterlib/clusterlib/pkg/key"
	"github.com/clusterlib/clusterlib/pkg/repository"
)

// DataDistribution is the Notifyable wrapping a hash→shard→node map plus
// manual-override patterns, with independent version counters for
// shards and overrides.
type DataDistribution struct {
	*common

	mu    sync.Mutex
	table distribution.Table
}

func newDataDistribution(f *FactoryOps, k, name, parentKey string) *DataDistribution {
	return &DataDistribution{common: newCommon(f, k, name, parentKey), table: distribution.Table{HashFn: distribution.HashMD5}}
}

// SetHashFunction selects which hash function findCoveringNode uses.
// userFn is consulted only when fn == HashUserDef.
func (d *DataDistribution) SetHashFunction(fn distribution.HashFunction, userFn distribution.UserHashFunc) {
	d.mu.Lock()
	d.table.HashFn = fn
	d.table.UserFn = userFn
	d.mu.Unlock()
}

// SetShards replaces the in-memory shard list; Publish writes it back.
func (d *DataDistribution) SetShards(shards []distribution.Shard) {
	d.mu.Lock()
	d.table.Shards = append([]distribution.Shard(nil), shards...)
	d.mu.Unlock()
}

// SetOverrides replaces the in-memory override list; Publish writes it
// back.
func (d *DataDistribution) SetOverrides(overrides []distribution.Override) {
	d.mu.Lock()
	d.table.Overrides = append([]distribution.Override(nil), overrides...)
	d.mu.Unlock()
}

// FindCoveringNode resolves routingKey to a target: overrides first,
// then hash dispatch over the shard table.
func (d *DataDistribution) FindCoveringNode(routingKey string) (distribution.Target, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.table.FindCoveringNode(routingKey)
}

// IsCovered reports whether the current shard table covers the full
// 64-bit hash range with no gaps.
func (d *DataDistribution) IsCovered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.table.IsCovered()
}

// Publish writes the in-memory shards and overrides to their own
// backend attribute leaves under independent versioned CAS: a stale
// writer fails with ErrVersionMismatch and must re-load before
// retrying.
func (d *DataDistribution) Publish() error {
	if err := d.checkRemoved(); err != nil {
		return err
	}
	ctx := context.Background()

	d.mu.Lock()
	shardsStr := distribution.MarshalShards(d.table.Shards)
	overridesStr := distribution.MarshalOverrides(d.table.Overrides)
	shardVersion := d.table.ShardVersion
	overrideVersion := d.table.OverrideVersion
	d.mu.Unlock()

	shardKey := key.Attribute(d.key, attrShards)
	stat, err := d.publishAttribute(ctx, shardKey, shardsStr, shardVersion)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.table.ShardVersion = stat.Version
	d.mu.Unlock()

	overrideKey := key.Attribute(d.key, attrManualOverrides)
	stat, err = d.publishAttribute(ctx, overrideKey, overridesStr, overrideVersion)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.table.OverrideVersion = stat.Version
	d.mu.Unlock()
	return nil
}

func (d *DataDistribution) publishAttribute(ctx context.Context, attrKey, value string, version int64) (repository.Stat, error) {
	stat, err := d.factory.repo.SetNodeData(ctx, attrKey, []byte(value), version)
	if err != nil && errors.Is(err, repository.ErrNoNode) {
		if _, cerr := d.factory.repo.CreateNode(ctx, attrKey, []byte(value), repository.FlagNone); cerr != nil {
			return repository.Stat{}, cerr
		}
		return repository.Stat{Version: 0}, nil
	}
	return stat, err
}

// Remove deletes this DataDistribution (it has no children, so
// recursive is moot).
func (d *DataDistribution) Remove(recursive bool) error {
	return d.factory.removeNotifyable(d, d.common, true)
}
