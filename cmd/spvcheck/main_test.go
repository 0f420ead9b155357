package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/diesel"
)

func moduleBytes(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestModuleCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.spv", moduleBytes(diesel.SpirvMagic, 0x00010300, 0, 12, 0))
	bad := writeFile(t, dir, "bad.spv", []byte{1, 2, 3})

	out, err := run(t, "module", good)
	require.NoError(t, err)
	assert.Contains(t, out, "SPIR-V 1.3")
	assert.Contains(t, out, "id bound 12")

	out, err = run(t, "module", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files failed")
	assert.Contains(t, out, "FAIL "+bad)
}

func TestModuleCommandShortHeader(t *testing.T) {
	path := writeFile(t, t.TempDir(), "short.spv", moduleBytes(diesel.SpirvMagic, 0x00010000))
	out, err := run(t, "module", path)
	require.Error(t, err)
	assert.Contains(t, out, "header has 2 words")
}

func TestPackThenCheckDescriptor(t *testing.T) {
	dir := t.TempDir()
	code := moduleBytes(diesel.SpirvMagic, 0x00010000, 0, 4, 0)
	vert := writeFile(t, dir, "v.spv", code)
	frag := writeFile(t, dir, "f.spv", code)
	desc := filepath.Join(dir, "sprite.yaml")

	_, err := run(t, "pack", "-n", "sprite", "-v", vert, "-f", frag, "--cull", "none", "-o", desc)
	require.NoError(t, err)

	out, err := run(t, "desc", desc)
	require.NoError(t, err)
	assert.Contains(t, out, "sprite: depth readwrite, shape triangles, cull none")
}

func TestPackRejectsBadMode(t *testing.T) {
	dir := t.TempDir()
	code := moduleBytes(diesel.SpirvMagic, 0x00010000, 0, 4, 0)
	vert := writeFile(t, dir, "v.spv", code)

	_, err := run(t, "pack", "-n", "x", "-v", vert, "-f", vert, "--shape", "hexagons")
	var me *diesel.ModeError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "shape", me.Field)
}

func TestDescriptorCommandRejectsBadBytecode(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", []byte("name: broken\nvertex: AAAA\nfragment: AAAA\n"))
	out, err := run(t, "descriptor", path)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL")
}
