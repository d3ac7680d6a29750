package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// normalizeImage decodes raw and re-encodes it as PNG. Gray images stay gray;
// everything else is flattened onto white as opaque RGB. ok is false when raw
// is not a format the decoders know, in which case the caller keeps raw as is.
func normalizeImage(raw []byte) (out []byte, ok bool) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, false
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, flatten(img)); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func flatten(img image.Image) image.Image {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// rawExtension maps a pdfcpu image file type to an entry extension.
func rawExtension(fileType string) string {
	ft := strings.ToLower(strings.TrimPrefix(fileType, "."))
	switch ft {
	case "":
		return "bin"
	case "jpeg":
		return "jpg"
	case "tiff":
		return "tif"
	}
	return ft
}

// ImageEntryName is the inner archive entry of image n on page p (both 1-based).
func ImageEntryName(page, n int, ext string) string {
	return fmt.Sprintf("Page %d - Image %d.%s", page, n, ext)
}

func readAllImage(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return io.ReadAll(r)
}
