package diesel

import (
	"bytes"
	"encoding/base64"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/andewx/diesel/driver"
)

// DepthMode selects depth testing and writing.
type DepthMode int

const (
	DepthNone DepthMode = iota
	DepthRead
	DepthWrite
	DepthReadWrite
)

var depthNames = [...]string{"none", "read", "write", "readwrite"}

// ShapeMode is the primitive topology.
type ShapeMode int

const (
	ShapeTriangles ShapeMode = iota
	ShapeLines
	ShapePoints
	ShapeStrip
)

var shapeNames = [...]string{"triangles", "lines", "points", "strip"}

// CullMode selects the faces that are culled.
type CullMode int

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

var cullNames = [...]string{"none", "front", "back"}

func modeString(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return "invalid"
}

func modeIndex(field string, names []string, s string) (int, error) {
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, &ModeError{Field: field, Value: s}
}

func (m DepthMode) String() string { return modeString(depthNames[:], int(m)) }
func (m ShapeMode) String() string { return modeString(shapeNames[:], int(m)) }
func (m CullMode) String() string  { return modeString(cullNames[:], int(m)) }

// SetString sets the mode from its name. Unknown names return a *ModeError.
func (m *DepthMode) SetString(s string) error {
	i, err := modeIndex("depth", depthNames[:], s)
	*m = DepthMode(i)
	return err
}

// SetString sets the mode from its name. Unknown names return a *ModeError.
func (m *ShapeMode) SetString(s string) error {
	i, err := modeIndex("shape", shapeNames[:], s)
	*m = ShapeMode(i)
	return err
}

// SetString sets the mode from its name. Unknown names return a *ModeError.
func (m *CullMode) SetString(s string) error {
	i, err := modeIndex("cull", cullNames[:], s)
	*m = CullMode(i)
	return err
}

func (m DepthMode) MarshalYAML() (interface{}, error) { return m.String(), nil }
func (m ShapeMode) MarshalYAML() (interface{}, error) { return m.String(), nil }
func (m CullMode) MarshalYAML() (interface{}, error)  { return m.String(), nil }

func (m *DepthMode) UnmarshalYAML(value *yaml.Node) error { return m.SetString(value.Value) }
func (m *ShapeMode) UnmarshalYAML(value *yaml.Node) error { return m.SetString(value.Value) }
func (m *CullMode) UnmarshalYAML(value *yaml.Node) error  { return m.SetString(value.Value) }

func (m DepthMode) test() bool  { return m == DepthRead || m == DepthReadWrite }
func (m DepthMode) write() bool { return m == DepthWrite || m == DepthReadWrite }

// topology maps the shape to the driver topology. Every mode must be
// handled.
func (m ShapeMode) topology() driver.Topology {
	switch m {
	case ShapeTriangles:
		return driver.TopologyTriangleList
	case ShapeLines:
		return driver.TopologyLineList
	case ShapePoints:
		return driver.TopologyPointList
	case ShapeStrip:
		return driver.TopologyTriangleStrip
	}
	panic("diesel: unmapped shape mode " + m.String())
}

func (m CullMode) driverCull() driver.CullMode {
	switch m {
	case CullNone:
		return driver.CullNone
	case CullFront:
		return driver.CullFront
	case CullBack:
		return driver.CullBack
	}
	panic("diesel: unmapped cull mode " + m.String())
}

// Bytecode is SPIR-V bytecode, stored base64 encoded in descriptor files.
type Bytecode []byte

func (b Bytecode) MarshalYAML() (interface{}, error) {
	return base64.StdEncoding.EncodeToString(b), nil
}

func (b *Bytecode) UnmarshalYAML(value *yaml.Node) error {
	data, err := base64.StdEncoding.DecodeString(value.Value)
	if err != nil {
		return errors.Wrapf(err, "diesel: line %d: bytecode is not base64", value.Line)
	}
	*b = data
	return nil
}

// ShaderDescriptor is a shader program as stored in a descriptor file:
//
//	name: sprite
//	vertex: AwIjBwAAAQA...
//	fragment: AwIjBwAAAQA...
//	depth: readwrite
//	shape: triangles
//	cull: back
type ShaderDescriptor struct {
	Name     string    `yaml:"name"`
	Vertex   Bytecode  `yaml:"vertex"`
	Fragment Bytecode  `yaml:"fragment"`
	Depth    DepthMode `yaml:"depth"`
	Shape    ShapeMode `yaml:"shape"`
	Cull     CullMode  `yaml:"cull"`
	Blend    bool      `yaml:"blend,omitempty"`

	// Vertices is the vertex input layout. It is not part of the file
	// format; meshes set it in code.
	Vertices driver.VertexLayout `yaml:"-"`
}

// ParseShaderDescriptor decodes a YAML descriptor. Unknown keys are
// rejected, unknown mode strings return a *ModeError and both bytecode
// blobs are validated.
func ParseShaderDescriptor(data []byte) (*ShaderDescriptor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var desc ShaderDescriptor
	if err := dec.Decode(&desc); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &desc, nil
}

// LoadShaderDescriptor reads and parses the descriptor file at path.
func LoadShaderDescriptor(path string) (*ShaderDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "diesel: read shader descriptor")
	}
	desc, err := ParseShaderDescriptor(data)
	if err != nil {
		return nil, errors.Wrapf(err, "diesel: %s", path)
	}
	return desc, nil
}

// Validate checks both bytecode blobs.
func (s *ShaderDescriptor) Validate() error {
	if _, err := ParseBytecode(s.Vertex); err != nil {
		return errors.Wrap(err, "vertex")
	}
	if _, err := ParseBytecode(s.Fragment); err != nil {
		return errors.Wrap(err, "fragment")
	}
	return nil
}

// Marshal encodes the descriptor as YAML.
func (s *ShaderDescriptor) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
