package main

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/andewx/diesel"
)

// scene is what the viewer draws. Both parts are optional; an empty scene
// only clears.
type scene struct {
	image  image.Image
	shader *diesel.ShaderDescriptor
}

func loadScene(texturePath, shaderPath string) (scene, error) {
	var s scene
	if texturePath != "" {
		img, format, err := decodeImage(texturePath)
		if err != nil {
			return s, err
		}
		diesel.Logger().Info("viewer: texture decoded", "path", texturePath, "format", format, "size", img.Bounds().Size())
		s.image = img
	}
	if shaderPath != "" {
		desc, err := diesel.LoadShaderDescriptor(shaderPath)
		if err != nil {
			return s, err
		}
		s.shader = desc
	}
	return s, nil
}

// decodeImage decodes any format registered with package image.
func decodeImage(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", errors.Wrapf(err, "decode %s", path)
	}
	return img, format, nil
}
