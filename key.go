package shadercache

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// KeySchemaVersion identifies the VariantKey wire layout. Disk stores
// written under a different schema are discarded on open rather than
// misinterpreted.
const KeySchemaVersion uint32 = 1

// variantKeyWireSize is the canonical byte length of an encoded VariantKey.
// The cached hash is not part of the wire form.
const variantKeyWireSize = 12

// ErrBadKeyLength is returned when decoding a variant key of the wrong size.
var ErrBadKeyLength = errors.New("shadercache: bad variant key length")

// Stage discriminates which shader stage a variant key describes.
// Uber stages identify generic variants that cover many feature
// combinations through runtime branching.
type Stage uint8

// Shader stages.
const (
	StageVertex Stage = iota
	StageGeometry
	StagePixel
	StageUberVertex
	StageUberPixel

	numStages
)

var stageNames = [numStages]string{"vertex", "geometry", "pixel", "uber-vertex", "uber-pixel"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// uber reports whether the stage names a generic uber variant.
func (s Stage) uber() bool {
	return s == StageUberVertex || s == StageUberPixel
}

// Variant feature flag bits carried in VariantKey.Features.
const (
	FeatureAlphaTest uint8 = 1 << iota
	FeatureFog
	FeaturePerPixelLighting
)

// VariantKey is the canonical identity of one shader permutation: the shader
// stage plus the structural features the generated source must support.
//
// Two structurally equal keys hash identically. The Hash field is a cached
// value maintained by [VariantKey.Canonicalize]; it is excluded from the
// canonical wire form so a stale cached hash can never leak into identity.
type VariantKey struct {
	// Stage selects the shader stage (or uber variant) this key describes.
	Stage Stage

	// TexStages is the number of active texture stages.
	TexStages uint8

	// LightCount is the number of lighting terms folded into the shader.
	LightCount uint8

	// ColorChans is the number of vertex color channels consumed.
	ColorChans uint8

	// Features holds boolean feature bits (Feature* constants).
	Features uint8

	// BlendVariant selects among blend-dependent shader branches.
	BlendVariant uint8

	// Flags carries remaining behavior bits opaque to the cache; the source
	// generator owns their meaning.
	Flags uint32

	// Hash caches the canonical hash. Zero until Canonicalize runs.
	Hash uint64
}

// appendCanonical appends the canonical wire form, which never includes the
// cached hash.
func (k *VariantKey) appendCanonical(b []byte) []byte {
	var buf [variantKeyWireSize]byte
	buf[0] = byte(k.Stage)
	buf[1] = k.TexStages
	buf[2] = k.LightCount
	buf[3] = k.ColorChans
	buf[4] = k.Features
	buf[5] = k.BlendVariant
	// buf[6:8] reserved, zero
	binary.LittleEndian.PutUint32(buf[8:12], k.Flags)
	return append(b, buf[:]...)
}

// EncodeBinary returns the canonical wire form of the key, used both for
// hashing and as the record key in the persistent store.
func (k *VariantKey) EncodeBinary() []byte {
	return k.appendCanonical(make([]byte, 0, variantKeyWireSize))
}

// Canonicalize clears the cached hash and recomputes it from the canonical
// wire form. It is idempotent: canonicalizing twice yields the same key.
// Every cache entry point canonicalizes keys before use, so a caller-supplied
// stale Hash value is never trusted.
func (k *VariantKey) Canonicalize() {
	k.Hash = 0
	k.Hash = xxhash.Sum64(k.EncodeBinary())
}

// Canonical returns a canonicalized copy of the key.
func (k VariantKey) Canonical() VariantKey {
	k.Canonicalize()
	return k
}

// DecodeVariantKey parses a canonical wire form produced by EncodeBinary and
// returns the key with its hash recomputed.
func DecodeVariantKey(b []byte) (VariantKey, error) {
	if len(b) != variantKeyWireSize {
		return VariantKey{}, ErrBadKeyLength
	}
	k := VariantKey{
		Stage:        Stage(b[0]),
		TexStages:    b[1],
		LightCount:   b[2],
		ColorChans:   b[3],
		Features:     b[4],
		BlendVariant: b[5],
		Flags:        binary.LittleEndian.Uint32(b[8:12]),
	}
	if k.Stage >= numStages {
		return VariantKey{}, fmt.Errorf("shadercache: unknown stage %d in variant key", b[0])
	}
	k.Canonicalize()
	return k, nil
}
