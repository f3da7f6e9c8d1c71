package shadercache

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// Shared utility shaders: fixed source compiled once per session, used by
// blit/present style passes. They bypass the variant stores since their
// source never varies beyond the host configuration header.

// screenQuadVertexWGSL emits a fullscreen triangle-strip quad from the
// vertex index alone; no vertex buffer is bound.
//
// index  &1    &2   *2-1
// 0      0,0   0,0  -1,-1   TL
// 1      1,0   1,0   1,-1   TR
// 2      0,2   0,1  -1, 1   BL
// 3      1,2   1,1   1, 1   BR
const screenQuadVertexWGSL = `
struct VSOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) vi: u32) -> VSOut {
    let raw = vec2<f32>(f32(vi & 1u), clamp(f32(vi & 2u), 0.0, 1.0));
    var out: VSOut;
    out.pos = vec4<f32>(raw * 2.0 - 1.0, 0.0, 1.0);
    out.uv = raw;
    return out;
}
`

// passthroughVertexWGSL forwards position, color, and texture coordinates
// untouched.
const passthroughVertexWGSL = `
struct VSIn {
    @location(0) pos: vec4<f32>,
    @location(1) color: vec4<f32>,
    @location(2) uv: vec2<f32>,
}

struct VSOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) uv: vec2<f32>,
    @location(1) color: vec4<f32>,
}

@vertex
fn vs_main(in: VSIn) -> VSOut {
    var out: VSOut;
    out.pos = in.pos;
    out.uv = in.uv;
    out.color = in.color;
    return out;
}
`

// utilityShaderHeader renders the host configuration as WGSL constants
// prepended to every shared shader source.
func utilityShaderHeader(host HostConfig) string {
	ssaa := "false"
	if host.SSAA {
		ssaa = "true"
	}
	return fmt.Sprintf(
		"const SAMPLE_COUNT: u32 = %du;\nconst LAYER_COUNT: u32 = %du;\nconst SSAA_ENABLED: bool = %s;\n",
		host.SampleCount, host.Layers, ssaa)
}

// sharedShaders holds the compiled utility modules.
type sharedShaders struct {
	screenQuadVS  *Module
	passthroughVS *Module
}

// compileSharedShaders compiles the shared utility set. Unlike variant
// compiles, a failure here is an initialization error: nothing can render
// without the utility vertex stages.
func (c *Cache) compileSharedShaders() error {
	header := utilityShaderHeader(c.cfg.Host)

	compile := func(label, source string) (*Module, error) {
		binary, err := c.cfg.Compiler.Compile(StageVertex, header+source)
		var handle hal.ShaderModule
		if err == nil {
			handle, err = c.cfg.Modules.CreateModule(binary)
		}
		if err != nil {
			return nil, fmt.Errorf("shadercache: shared shader %s: %w", label, err)
		}
		c.stats.modulesCreated.Add(1)
		c.stats.modulesAlive.Add(1)
		return c.newModule(VariantKey{Stage: StageVertex}.Canonical(), handle), nil
	}

	quad, err := compile("screen-quad", screenQuadVertexWGSL)
	if err != nil {
		return err
	}
	pass, err := compile("passthrough", passthroughVertexWGSL)
	if err != nil {
		c.cfg.Modules.DestroyModule(quad.handle)
		c.stats.modulesAlive.Add(^uint64(0))
		return err
	}

	c.shared = sharedShaders{screenQuadVS: quad, passthroughVS: pass}
	return nil
}

// destroySharedShaders releases the shared utility modules.
func (c *Cache) destroySharedShaders() {
	for _, m := range []*Module{c.shared.screenQuadVS, c.shared.passthroughVS} {
		if m != nil {
			c.cfg.Modules.DestroyModule(m.handle)
			c.stats.modulesAlive.Add(^uint64(0))
		}
	}
	c.shared = sharedShaders{}
}

// RecompileSharedShaders destroys and recompiles the shared utility set,
// for example after the host configuration changed.
func (c *Cache) RecompileSharedShaders() error {
	c.destroySharedShaders()
	return c.compileSharedShaders()
}

// ScreenQuadVertexModule returns the fullscreen-quad utility vertex module.
func (c *Cache) ScreenQuadVertexModule() *Module { return c.shared.screenQuadVS }

// PassthroughVertexModule returns the passthrough utility vertex module.
func (c *Cache) PassthroughVertexModule() *Module { return c.shared.passthroughVS }
