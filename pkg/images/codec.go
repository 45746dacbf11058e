package images

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/mosaic/pkg/errors"
)

// Decode parses PNG, JPEG, GIF or WebP bytes, honoring EXIF orientation.
func Decode(data []byte) (*Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "decode image")
	}
	return FromImage(img), nil
}

// DecodeBase64 decodes a standard base64 string holding an encoded image.
func DecodeBase64(s string) (*Image, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "decode base64")
	}
	return Decode(data)
}

// DecodeSized decodes data and checks that it has exactly the given size.
func DecodeSized(data []byte, size Size) (*Image, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if got := img.Size(); got != size {
		return nil, errors.New(errors.ErrCodeInvalidSize, "image is %s, want %s", got, size)
	}
	return img, nil
}

// WritePNG encodes the image as PNG into w.
func (m *Image) WritePNG(w io.Writer) error {
	return imaging.Encode(w, m.px, imaging.PNG)
}

// PNG returns the PNG encoding of the image.
func (m *Image) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.WritePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
