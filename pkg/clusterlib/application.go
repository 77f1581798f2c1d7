package clusterlib

import "github.com/clusterlib/clusterlib/pkg/key"

// Application is a Group whose parent is Root and which cannot itself
// belong to a group. It shares Group's full child-collection and
// leader-election behavior through the embedded groupCore, so
// Application and Group are interchangeable wherever that shared
// behavior is all that's needed.
type Application struct {
	*groupCore
}

func newApplication(f *FactoryOps, k, name string) *Application {
	return &Application{newGroupCore(f, k, name, key.Root)}
}
