// Package pool provides generic object pooling used to recycle execution
// clones on the record path.
//
// Pool[T] wraps sync.Pool with a typed API, an optional reset hook applied
// on Put, and allocation statistics:
//
//	instances := pool.New(
//		func() *Instance { return build() },
//		func(i *Instance) { i.reset() },
//	)
//	inst := instances.Get()
//	defer instances.Put(inst)
package pool
