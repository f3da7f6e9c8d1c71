package shadercache

import (
	"bytes"
	"testing"
)

func TestVariantKeyEqualKeysEqualHash(t *testing.T) {
	a := VariantKey{Stage: StagePixel, TexStages: 3, LightCount: 2, Features: FeatureFog, Flags: 0xBEEF}
	b := VariantKey{Stage: StagePixel, TexStages: 3, LightCount: 2, Features: FeatureFog, Flags: 0xBEEF}

	a.Canonicalize()
	b.Canonicalize()

	if a.Hash == 0 {
		t.Fatal("canonical hash is zero")
	}
	if a.Hash != b.Hash {
		t.Errorf("structurally equal keys hash differently: %#x vs %#x", a.Hash, b.Hash)
	}
	if a != b {
		t.Error("canonical keys compare unequal")
	}
}

func TestVariantKeyCanonicalizeIdempotent(t *testing.T) {
	k := VariantKey{Stage: StageVertex, TexStages: 1, Flags: 7}
	k.Canonicalize()
	first := k.Hash
	k.Canonicalize()
	if k.Hash != first {
		t.Errorf("second canonicalization changed hash: %#x vs %#x", k.Hash, first)
	}
}

func TestVariantKeyStaleHashIgnored(t *testing.T) {
	k := VariantKey{Stage: StageVertex, TexStages: 1}
	k.Canonicalize()
	want := k.Hash

	stale := k
	stale.Hash = 0xDEADBEEF
	stale.Canonicalize()
	if stale.Hash != want {
		t.Errorf("stale cached hash leaked into identity: %#x vs %#x", stale.Hash, want)
	}
}

func TestVariantKeyDistinctKeysDistinctHash(t *testing.T) {
	keys := []VariantKey{
		{Stage: StageVertex},
		{Stage: StagePixel},
		{Stage: StagePixel, TexStages: 1},
		{Stage: StagePixel, Features: FeatureAlphaTest},
		{Stage: StagePixel, Flags: 1},
		{Stage: StageUberPixel},
	}

	seen := make(map[uint64]VariantKey)
	for _, k := range keys {
		k.Canonicalize()
		if prev, ok := seen[k.Hash]; ok {
			t.Errorf("hash collision between %+v and %+v", prev, k)
		}
		seen[k.Hash] = k
	}
}

func TestVariantKeyEncodeDecodeRoundTrip(t *testing.T) {
	k := VariantKey{
		Stage:        StageUberVertex,
		TexStages:    4,
		LightCount:   2,
		ColorChans:   1,
		Features:     FeatureFog | FeaturePerPixelLighting,
		BlendVariant: 3,
		Flags:        0xCAFEF00D,
	}
	k.Canonicalize()

	wire := k.EncodeBinary()
	if len(wire) != variantKeyWireSize {
		t.Fatalf("wire size = %d, want %d", len(wire), variantKeyWireSize)
	}

	got, err := DecodeVariantKey(wire)
	if err != nil {
		t.Fatalf("DecodeVariantKey: %v", err)
	}
	if got != k {
		t.Errorf("round trip changed key: %+v vs %+v", got, k)
	}
	if !bytes.Equal(got.EncodeBinary(), wire) {
		t.Error("re-encoded wire form differs")
	}
}

func TestDecodeVariantKeyRejectsBadInput(t *testing.T) {
	if _, err := DecodeVariantKey([]byte{1, 2, 3}); err != ErrBadKeyLength {
		t.Errorf("short input: err = %v, want ErrBadKeyLength", err)
	}

	wire := make([]byte, variantKeyWireSize)
	wire[0] = byte(numStages) // out-of-range stage
	if _, err := DecodeVariantKey(wire); err == nil {
		t.Error("expected error for unknown stage")
	}
}

func TestStageString(t *testing.T) {
	if got := StageUberPixel.String(); got != "uber-pixel" {
		t.Errorf("String() = %q", got)
	}
	if got := Stage(250).String(); got != "Stage(250)" {
		t.Errorf("String() = %q", got)
	}
}
