package clusterlib

import (
	"context"
	"fmt"

	"github.com/clusterlib/clusterlib/pkg/key"
)

// Root is the singleton Notifyable owning the applications collection.
// It has no parent, and cannot be locked or removed.
type Root struct {
	*common
}

func newRoot(f *FactoryOps) *Root {
	return &Root{newCommon(f, key.Root, key.SegRootNode, "")}
}

// AcquireLock always fails: Root cannot be locked.
func (r *Root) AcquireLock(acquireChildren bool) error {
	return fmt.Errorf("%w: Root cannot be locked", ErrInvalidMethod)
}

// ReleaseLock always fails: Root cannot be locked.
func (r *Root) ReleaseLock(releaseChildren bool) error {
	return fmt.Errorf("%w: Root cannot be locked", ErrInvalidMethod)
}

// Remove always fails: Root cannot be removed.
func (r *Root) Remove(recursive bool) error {
	return fmt.Errorf("%w: Root cannot be removed", ErrInvalidMethod)
}

// Application composes/loads/creates the Application named name.
func (r *Root) Application(name string, create bool) (*Application, error) {
	if err := r.checkRemoved(); err != nil {
		return nil, err
	}
	if !key.IsValidComponent(name) {
		return nil, fmt.Errorf("%w: invalid application name %q", ErrInvalidArguments, name)
	}
	childKey := key.Application(name)
	n, err := r.factory.getOrCreateNotifyable(nil, childKey, create, r.factory.caches.applications, func() Notifyable {
		return newApplication(r.factory, childKey, name)
	})
	if err != nil || n == nil {
		return nil, err
	}
	return n.(*Application), nil
}

// Applications lists the names of every registered application.
func (r *Root) Applications() ([]string, error) {
	if err := r.checkRemoved(); err != nil {
		return nil, err
	}
	dir := key.Applications()
	return r.factory.repo.GetNodeChildren(context.Background(), dir,
		r.factory.watchFunc(dir, r.key, KindApplications))
}
