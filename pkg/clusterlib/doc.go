/*
Package clusterlib turns a hierarchical coordination service (a
ZooKeeper-like store of small versioned nodes with ephemeral/sequential
flags and one-shot watches, abstracted as pkg/repository.Repository)
into a typed object model for building managed distributed
applications.

A process opens a FactoryOps bound to a Repository and reaches the
singleton Root from there:

	f := clusterlib.NewFactoryOps(repo, logger)
	app, err := f.Root().Application("myapp", true)
	node, err := app.Group("workers", true)  // Application embeds Group's API

Every object in the tree — Root, Application, Group, Node,
DataDistribution, PropertyList, Queue, ProcessSlot — is a Notifyable:
a long-lived handle with a hierarchical key, a lifecycle state, a
distributed lock, and a cache entry kept current by backend watches.
A Client subscribes to semantic events derived from those watches; a
Server layers a health-checker thread and leader election on top of a
Client bound to one Node.
*/
package clusterlib
