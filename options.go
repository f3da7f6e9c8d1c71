package shadercache

// Config describes a cache context. Zero values select documented defaults
// where a default exists; Dir, Generator, Modules, and Linker are required.
type Config struct {
	// Dir is the directory holding every persisted cache file. Created if
	// missing.
	Dir string

	// FilePrefix namespaces the shader store files inside Dir.
	// Defaults to "shaders".
	FilePrefix string

	// WorkloadID is the stable identity of the running workload (game,
	// scene, document). Specialized shader stores and usage rankings are
	// scoped to it. Defaults to "default".
	WorkloadID string

	// Device identifies the device/driver the device-bound binary cache is
	// validated against.
	Device DeviceIdentity

	// Host carries the rendering settings shader generation depends on.
	Host HostConfig

	// Generator produces shader source for a variant key. Required.
	Generator SourceGenerator

	// Compiler turns source into a persistable binary. Defaults to
	// NagaCompiler.
	Compiler Compiler

	// Modules creates and destroys backend shader modules. Required.
	Modules ModuleCreator

	// Linker links and destroys pipeline objects. Required.
	Linker PipelineLinker

	// BinaryCache is the runtime's device-bound binary cache object. When
	// nil the device-bound layer is disabled; pipelines still work, first
	// links are just slower.
	BinaryCache BinaryCacher

	// UberShaders enumerates the uber variant space for eager compilation.
	// When nil, PrecompileUberShaders does nothing.
	UberShaders UberEnumerator

	// Progress receives bulk precompilation progress. May be nil.
	Progress ProgressFunc

	// PrecompileOnStartup compiles the most-used known variants (and the
	// uber space, when enumerable) inside New, before the first lookup.
	PrecompileOnStartup bool

	// PrecompileLimit bounds how many ranked variants a precompile pass
	// compiles. Zero means no bound.
	PrecompileLimit int

	// UsageCountCap saturates per-variant usage counts. Zero selects the
	// profiler default.
	UsageCountCap uint32
}

// withDefaults returns cfg with defaults filled in.
func (cfg Config) withDefaults() Config {
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = "shaders"
	}
	if cfg.WorkloadID == "" {
		cfg.WorkloadID = "default"
	}
	if cfg.Compiler == nil {
		cfg.Compiler = NagaCompiler{}
	}
	if cfg.Host.SampleCount == 0 {
		cfg.Host.SampleCount = 1
	}
	if cfg.Host.Layers == 0 {
		cfg.Host.Layers = 1
	}
	return cfg
}

// validate reports the first missing required collaborator.
func (cfg Config) validate() error {
	switch {
	case cfg.Dir == "":
		return ErrNoDir
	case cfg.Generator == nil:
		return ErrNilGenerator
	case cfg.Modules == nil:
		return ErrNilModuleCreator
	case cfg.Linker == nil:
		return ErrNilLinker
	}
	return nil
}
