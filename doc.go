// Package shadercache maps shader variant descriptions and pipeline state
// descriptions to GPU-executable program objects, persists compiled binaries
// across process runs, and decides when recompilation versus lookup is
// required.
//
// The cache sits between a renderer and its graphics backend. Render state is
// reduced to a canonical [VariantKey]; the cache resolves the key to a
// compiled shader module, compiling through pluggable collaborators on a
// miss and appending the result to an on-disk store so the next run starts
// warm. Resolved modules feed a pipeline object cache keyed by the full
// pipeline configuration, which is in turn accelerated by a device-bound
// binary cache blob valid only for one exact device and driver identity.
//
// Out of scope, and consumed through interfaces: shader source generation,
// the compile and object-creation calls themselves, and command submission.
//
// A [Cache] is an explicitly owned context object:
//
//	modules, err := shadercache.NewHALModules(device)
//	if err != nil {
//	    // handle error
//	}
//	cc, err := shadercache.New(shadercache.Config{
//	    Dir:        "/var/cache/myapp/shaders",
//	    WorkloadID: title.ID(),
//	    Device:     deviceIdentity,
//	    Generator:  gen,
//	    Modules:    modules,
//	    Linker:     linker,
//	})
//	if err != nil {
//	    // handle error
//	}
//	defer cc.Close()
//
//	module := cc.Module(key)      // nil means "no shader to bind"
//	pipeline := cc.Pipeline(spec) // nil means "skip this draw"
//
// Every consumer-facing lookup returns a nillable handle, never an error:
// a failed compile or link is remembered for the session and surfaced as
// nil, which the renderer must treat as a skip.
package shadercache
