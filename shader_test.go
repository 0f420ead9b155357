package diesel

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/diesel/driver"
)

// testModule is a minimal SPIR-V header followed by an OpCapability Shader.
var testModule = []uint32{SpirvMagic, 0x00010300, 0, 8, 0, 0x00020011, 1}

func encodeWords(words []uint32, order binary.ByteOrder) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		order.PutUint32(out[i*4:], w)
	}
	return out
}

func TestParseBytecodeByteOrders(t *testing.T) {
	native, err := ParseBytecode(encodeWords(testModule, binary.LittleEndian))
	require.NoError(t, err)
	assert.Equal(t, testModule, native)

	swapped, err := ParseBytecode(encodeWords(testModule, binary.BigEndian))
	require.NoError(t, err)
	assert.Equal(t, native, swapped)
}

func TestParseBytecodeRejects(t *testing.T) {
	cases := []struct {
		name   string
		code   []byte
		reason string
	}{
		{"empty", nil, "missing magic number"},
		{"three bytes", []byte{0x03, 0x02, 0x23}, "length not a multiple of 4"},
		{"odd tail", append(encodeWords(testModule, binary.LittleEndian), 0), "length not a multiple of 4"},
		{"zero magic", make([]byte, 20), "bad magic"},
		{"half swapped magic", encodeWords([]uint32{0x02030723, 0}, binary.LittleEndian), "bad magic"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			words, err := ParseBytecode(c.code)
			assert.Nil(t, words)
			var be *BytecodeError
			require.True(t, errors.As(err, &be), "got %v", err)
			assert.Equal(t, c.reason, be.Reason)
			assert.Equal(t, len(c.code), be.Len)
			assert.True(t, errors.Is(err, ErrInvalidBytecode))
		})
	}
}

func TestParseBytecodeNeverPanics(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		code := make([]byte, rng.Intn(64))
		rng.Read(code)
		assert.NotPanics(t, func() {
			words, err := ParseBytecode(code)
			if len(code)%4 != 0 {
				assert.Error(t, err)
			}
			if err == nil {
				assert.Equal(t, SpirvMagic, words[0])
			}
		})
	}
}

func TestDeviceCreateShaderModule(t *testing.T) {
	dev, drv := newTestDevice(t)

	m, err := dev.CreateShaderModule(encodeWords(testModule, binary.BigEndian))
	require.NoError(t, err)
	assert.True(t, drv.IsAlive(driver.Handle(m)))
	drv.DestroyShaderModule(m)

	_, err = dev.CreateShaderModule([]byte{1, 2, 3, 4, 5})
	assert.True(t, errors.Is(err, ErrInvalidBytecode), "got %v", err)

	// A bare magic number passes the byte-level checks but is not a module.
	_, err = dev.CreateShaderModule(encodeWords([]uint32{SpirvMagic}, binary.LittleEndian))
	assert.Error(t, err)
}

func descriptorYAML(depth, shape, cull string) []byte {
	code := base64.StdEncoding.EncodeToString(encodeWords(testModule, binary.LittleEndian))
	return []byte(fmt.Sprintf("name: sprite\nvertex: %s\nfragment: %s\ndepth: %s\nshape: %s\ncull: %s\n",
		code, code, depth, shape, cull))
}

func TestParseShaderDescriptor(t *testing.T) {
	desc, err := ParseShaderDescriptor(descriptorYAML("readwrite", "strip", "back"))
	require.NoError(t, err)
	assert.Equal(t, "sprite", desc.Name)
	assert.Equal(t, DepthReadWrite, desc.Depth)
	assert.Equal(t, ShapeStrip, desc.Shape)
	assert.Equal(t, CullBack, desc.Cull)
	assert.Equal(t, encodeWords(testModule, binary.LittleEndian), []byte(desc.Vertex))

	out, err := desc.Marshal()
	require.NoError(t, err)
	again, err := ParseShaderDescriptor(out)
	require.NoError(t, err)
	assert.Equal(t, desc, again)
}

func TestParseShaderDescriptorUnknownMode(t *testing.T) {
	cases := []struct {
		field string
		data  []byte
	}{
		{"depth", descriptorYAML("sideways", "triangles", "none")},
		{"shape", descriptorYAML("none", "hexagons", "none")},
		{"cull", descriptorYAML("none", "triangles", "both")},
	}
	for _, c := range cases {
		t.Run(c.field, func(t *testing.T) {
			_, err := ParseShaderDescriptor(c.data)
			var me *ModeError
			require.True(t, errors.As(err, &me), "got %v", err)
			assert.Equal(t, c.field, me.Field)
		})
	}
}

func TestParseShaderDescriptorRejects(t *testing.T) {
	_, err := ParseShaderDescriptor(append(descriptorYAML("none", "lines", "none"), "tessellation: true\n"...))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = ParseShaderDescriptor([]byte("vertex: '***'\n"))
	assert.Error(t, err)

	bad := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	_, err = ParseShaderDescriptor([]byte("vertex: " + bad + "\nfragment: " + bad + "\n"))
	assert.True(t, errors.Is(err, ErrInvalidBytecode), "got %v", err)
}

func testDescriptor(t *testing.T, depth string) *ShaderDescriptor {
	t.Helper()
	desc, err := ParseShaderDescriptor(descriptorYAML(depth, "triangles", "back"))
	require.NoError(t, err)
	return desc
}

func TestNewPipeline(t *testing.T) {
	dev, drv := newTestDevice(t)
	u := newTestUniforms(t, dev)
	layout := u.layout

	target, err := NewFramebuffer(dev, u, FramebufferDesc{Width: 4, Height: 4, Color: FormatRGBA8, Depth: true})
	require.NoError(t, err)
	defer target.Destroy()
	flat, err := NewFramebuffer(dev, u, FramebufferDesc{Width: 4, Height: 4, Color: FormatRGBA8})
	require.NoError(t, err)
	defer flat.Destroy()

	p, err := NewPipeline(dev, layout, testDescriptor(t, "readwrite"), target)
	require.NoError(t, err)
	assert.Equal(t, "sprite", p.Name())
	assert.Zero(t, drv.Leaks()["shader module"], "modules outlived the pipeline build")

	cmd := dev.Commands()
	p.Bind(cmd)
	assert.Equal(t, 1, cmd.Stats().ShaderBinds)

	_, err = NewPipeline(dev, layout, testDescriptor(t, "write"), flat)
	assert.Error(t, err, "depth mode without a depth attachment")
	plain, err := NewPipeline(dev, layout, testDescriptor(t, "none"), flat)
	require.NoError(t, err)
	plain.Destroy()

	h := driver.Handle(p.Handle())
	p.Destroy()
	assert.True(t, drv.IsAlive(h))
	dev.Submit(false)
	dev.AdvanceFrame()
	dev.Submit(false)
	dev.AdvanceFrame()
	assert.False(t, drv.IsAlive(h))
}

func TestNewPipelineBadBytecode(t *testing.T) {
	dev, drv := newTestDevice(t)
	u := newTestUniforms(t, dev)
	target, err := NewFramebuffer(dev, u, FramebufferDesc{Width: 2, Height: 2, Color: FormatRGBA8})
	require.NoError(t, err)
	defer target.Destroy()

	desc := testDescriptor(t, "none")
	desc.Fragment = Bytecode{0, 1}
	_, err = NewPipeline(dev, u.layout, desc, target)
	assert.True(t, errors.Is(err, ErrInvalidBytecode), "got %v", err)
	assert.Zero(t, drv.Leaks()["shader module"])
}
