package shadercache

import (
	"strings"
	"testing"
)

func TestUtilityShaderHeader(t *testing.T) {
	got := utilityShaderHeader(HostConfig{SampleCount: 4, SSAA: true, Layers: 2})
	for _, want := range []string{
		"const SAMPLE_COUNT: u32 = 4u;",
		"const LAYER_COUNT: u32 = 2u;",
		"const SSAA_ENABLED: bool = true;",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("header missing %q:\n%s", want, got)
		}
	}
}

func TestSharedShadersCompiledAtStartup(t *testing.T) {
	h := newHarness()
	c := mustNew(t, h.config(t.TempDir()))
	defer c.Close()

	quad := c.ScreenQuadVertexModule()
	pass := c.PassthroughVertexModule()
	if quad == nil || pass == nil {
		t.Fatal("shared shaders not available after New")
	}
	if quad == pass {
		t.Error("shared shaders alias the same module")
	}
	if quad.Stage() != StageVertex {
		t.Errorf("screen quad stage = %v", quad.Stage())
	}
	// Two utility shaders, nothing else compiled yet.
	if got := c.Stats().ModulesCreated; got != 2 {
		t.Errorf("ModulesCreated = %d, want 2", got)
	}
}

func TestSharedShadersSeeHostHeader(t *testing.T) {
	h := newHarness()
	var sources []string
	h.comp.fail = func(source string) bool {
		sources = append(sources, source)
		return false
	}
	cfg := h.config(t.TempDir())
	cfg.Host = HostConfig{SampleCount: 8, Layers: 2, SSAA: true}
	c := mustNew(t, cfg)
	defer c.Close()

	if len(sources) != 2 {
		t.Fatalf("compiled %d shared shaders, want 2", len(sources))
	}
	for i, src := range sources {
		if !strings.Contains(src, "const SAMPLE_COUNT: u32 = 8u;") {
			t.Errorf("shared shader %d missing host header", i)
		}
	}
}

func TestNewFailsWhenSharedShaderFails(t *testing.T) {
	h := newHarness()
	// Fail only the passthrough source so the screen quad compiles first
	// and must be released on the way out.
	h.comp.fail = func(source string) bool { return strings.Contains(source, "VSIn") }

	if _, err := New(h.config(t.TempDir())); err == nil {
		t.Fatal("New succeeded despite shared shader failure")
	}

	created, destroyed := h.mods.counts()
	if created != 1 || destroyed != 1 {
		t.Errorf("created/destroyed = %d/%d, want 1/1", created, destroyed)
	}
}

func TestRecompileSharedShaders(t *testing.T) {
	h := newHarness()
	c := mustNew(t, h.config(t.TempDir()))
	defer c.Close()

	before := c.ScreenQuadVertexModule()
	if err := c.RecompileSharedShaders(); err != nil {
		t.Fatalf("RecompileSharedShaders: %v", err)
	}
	after := c.ScreenQuadVertexModule()
	if after == nil || after == before {
		t.Error("shared shaders not rebuilt")
	}

	created, destroyed := h.mods.counts()
	if created != 4 || destroyed != 2 {
		t.Errorf("created/destroyed = %d/%d, want 4/2", created, destroyed)
	}
}
