// Package pdftest builds small, well-formed PDF fixtures for tests: text pages
// carrying a marker string and optional DCT image XObjects.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
)

// Image is a DCT-encoded image XObject placed on a page.
type Image struct {
	Data          []byte
	Width, Height int
}

// Page is one page of a generated PDF. Marker is drawn as text so page order
// survives merges and splits.
type Page struct {
	Marker string
	Images []Image
}

// Build creates a valid PDF with proper xref offsets. Object layout:
// 1 catalog, 2 page tree, 3 font, then per page its page object, its content
// stream and its image XObjects.
func Build(pages ...Page) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	next := 4
	var kids []string
	var layout []pageLayout
	for _, p := range pages {
		l := pageLayout{page: next, content: next + 1}
		next += 2
		for range p.Images {
			l.images = append(l.images, next)
			next++
		}
		layout = append(layout, l)
		kids = append(kids, fmt.Sprintf("%d 0 R", l.page))
	}
	objs := make([]string, next-1) // objs[i] is object i+1
	objs[0] = "<< /Type /Catalog /Pages 2 0 R >>"
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))
	objs[2] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"

	for i, p := range pages {
		l := layout[i]
		var xobjs, draws strings.Builder
		for j, nr := range l.images {
			fmt.Fprintf(&xobjs, " /Im%d %d 0 R", j+1, nr)
			fmt.Fprintf(&draws, "q 100 0 0 100 %d 500 cm /Im%d Do Q\n", 72+j*110, j+1)
		}
		res := "/Font << /F1 3 0 R >>"
		if len(l.images) > 0 {
			res += " /XObject <<" + xobjs.String() + " >>"
		}
		objs[l.page-1] = fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << %s >> >>", l.content, res)

		content := "BT\n/F1 12 Tf\n72 720 Td\n(" + p.Marker + ") Tj\nET\n" + draws.String()
		objs[l.content-1] = streamObj("", content)

		for j, img := range p.Images {
			dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode ",
				img.Width, img.Height)
			objs[l.images[j]-1] = streamObj(dict, string(img.Data))
		}
	}

	offsets := make([]int, len(objs)+1)
	for i, body := range objs {
		offsets[i+1] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objs); i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return []byte(b.String())
}

type pageLayout struct {
	page, content int
	images        []int
}

func streamObj(dict, data string) string {
	return fmt.Sprintf("<< %s/Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

// Text builds a document of n text pages with markers <prefix>-1..<prefix>-n.
func Text(prefix string, n int) []byte {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Marker: fmt.Sprintf("%s-%d", prefix, i+1)}
	}
	return Build(pages...)
}

// JPEG encodes a small solid-colour image.
func JPEG(tb testing.TB, w, h int, c color.RGBA) Image {
	tb.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		tb.Fatal(err)
	}
	return Image{Data: buf.Bytes(), Width: w, Height: h}
}

// FakeJPEG carries a JPEG signature and nothing decodable after it.
func FakeJPEG() Image {
	return Image{Data: []byte("\xff\xd8\xff\xe0"), Width: 1, Height: 1}
}
