package shadercache

import "errors"

// Configuration and lifecycle errors.
var (
	// ErrNoDir is returned by New when no cache directory is configured.
	ErrNoDir = errors.New("shadercache: cache directory is empty")

	// ErrNilGenerator is returned by New when no source generator is configured.
	ErrNilGenerator = errors.New("shadercache: source generator is nil")

	// ErrNilModuleCreator is returned by New when no module creator is configured.
	ErrNilModuleCreator = errors.New("shadercache: module creator is nil")

	// ErrNilLinker is returned by New when no pipeline linker is configured.
	ErrNilLinker = errors.New("shadercache: pipeline linker is nil")

	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("shadercache: cache is closed")

	// ErrBinaryCache is returned by New when the device-bound binary cache
	// cannot be initialized, with or without seed data.
	ErrBinaryCache = errors.New("shadercache: binary cache initialization failed")
)
