package clusterlib

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/clusterlib/clusterlib/pkg/key"
	"github.com/clusterlib/clusterlib/pkg/repository"
)

// PropertyList is an ordered key-value map with one version counter,
// serialized on the wire as "k=v;k=v;" in ascending key order.
type PropertyList struct {
	*common

	mu      sync.Mutex
	values  map[string]string
	version int64
}

func newPropertyList(f *FactoryOps, k, name, parentKey string) *PropertyList {
	return &PropertyList{common: newCommon(f, k, name, parentKey), values: make(map[string]string)}
}

// Get returns the in-memory value for k.
func (p *PropertyList) Get(k string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[k]
	return v, ok
}

// Values returns a copy of the in-memory key-value map.
func (p *PropertyList) Values() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Set stores k=v in memory; Publish writes it back. Neither k nor v may
// contain ';' or '=' since the wire form has no escaping.
func (p *PropertyList) Set(k, v string) error {
	if err := p.checkRemoved(); err != nil {
		return err
	}
	if strings.ContainsAny(k, ";=") || strings.ContainsAny(v, ";=") {
		return fmt.Errorf("%w: property key/value may not contain ';' or '='", ErrInvalidArguments)
	}
	p.mu.Lock()
	p.values[k] = v
	p.mu.Unlock()
	return nil
}

// Erase removes k from the in-memory map; Publish writes it back.
func (p *PropertyList) Erase(k string) error {
	if err := p.checkRemoved(); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.values, k)
	p.mu.Unlock()
	return nil
}

// Publish writes the in-memory key-value map back with a versioned CAS:
// on conflict the caller must re-load and retry.
func (p *PropertyList) Publish() error {
	if err := p.checkRemoved(); err != nil {
		return err
	}
	p.mu.Lock()
	wire := marshalKeyVal(p.values)
	version := p.version
	p.mu.Unlock()

	attrKey := key.Attribute(p.key, attrKeyVal)
	ctx := context.Background()
	stat, err := p.factory.repo.SetNodeData(ctx, attrKey, []byte(wire), version)
	if err != nil {
		if errors.Is(err, repository.ErrNoNode) {
			if _, cerr := p.factory.repo.CreateNode(ctx, attrKey, []byte(wire), repository.FlagNone); cerr != nil {
				return cerr
			}
			p.mu.Lock()
			p.version = 0
			p.mu.Unlock()
			return nil
		}
		return err
	}
	p.mu.Lock()
	p.version = stat.Version
	p.mu.Unlock()
	return nil
}

// Remove deletes this PropertyList (it has no children, so recursive is
// moot).
func (p *PropertyList) Remove(recursive bool) error {
	return p.factory.removeNotifyable(p, p.common, true)
}
