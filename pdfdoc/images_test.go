package pdfdoc

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/hazyhaar/pagekit/internal/pdftest"
)

func TestExtractImages_NestedArchives(t *testing.T) {
	// WHAT: Two documents with images yield one outer zip holding one inner zip
	// per document, with PNG-normalized entries named by page and index.
	// WHY: This is the download layout clients unpack.
	eng, v, m := newTestEngine(t)
	red := pdftest.JPEG(t, 8, 8, color.RGBA{R: 200, A: 255})
	blue := pdftest.JPEG(t, 6, 4, color.RGBA{B: 200, A: 255})
	green := pdftest.JPEG(t, 4, 4, color.RGBA{G: 200, A: 255})

	a := mustValidate(t, v, "first.pdf", pdftest.Build(
		pdftest.Page{Marker: "a1", Images: []pdftest.Image{red, blue}},
		pdftest.Page{Marker: "a2"},
		pdftest.Page{Marker: "a3", Images: []pdftest.Image{green}},
	))
	b := mustValidate(t, v, "second.pdf", pdftest.Build(
		pdftest.Page{Marker: "b1", Images: []pdftest.Image{pdftest.JPEG(t, 5, 5, color.RGBA{R: 90, G: 90, A: 255})}},
	))

	out, release, err := eng.ExtractImages(context.Background(), []*Validated{a, b})
	if err != nil {
		t.Fatalf("extract images: %v", err)
	}

	outer := openZip(t, out)
	var names []string
	for _, f := range outer.File {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "first_images.zip,second_images.zip" {
		t.Fatalf("outer entries = %v", names)
	}

	inner := openZip(t, bytes.NewReader(readEntry(t, outer.File[0])))
	want := []string{"Page 1 - Image 1.png", "Page 1 - Image 2.png", "Page 3 - Image 1.png"}
	if len(inner.File) != len(want) {
		t.Fatalf("first.pdf entries = %d, want %d", len(inner.File), len(want))
	}
	for i, f := range inner.File {
		if f.Name != want[i] {
			t.Errorf("entry %d = %q, want %q", i, f.Name, want[i])
		}
		img, err := png.Decode(bytes.NewReader(readEntry(t, f)))
		if err != nil {
			t.Fatalf("%s is not a PNG: %v", f.Name, err)
		}
		if _, ok := img.(*image.RGBA); !ok {
			t.Errorf("%s decoded as %T, want opaque RGB", f.Name, img)
		}
	}

	release()
	release()
	assertNoLiveScratch(t, m)
}

func TestExtractImages_RepeatedImageCountsEachReference(t *testing.T) {
	// WHAT: A page placing the same image bytes twice yields two entries.
	// WHY: Identical image objects must not be folded into one.
	eng, v, m := newTestEngine(t)
	logo := pdftest.JPEG(t, 4, 4, color.RGBA{R: 30, G: 60, B: 90, A: 255})
	pages := make([]pdftest.Page, 3)
	for i := range pages {
		pages[i] = pdftest.Page{Marker: "p", Images: []pdftest.Image{logo, logo}}
	}
	doc := mustValidate(t, v, "tiles.pdf", pdftest.Build(pages...))

	out, release, err := eng.ExtractImages(context.Background(), []*Validated{doc})
	if err != nil {
		t.Fatalf("extract images: %v", err)
	}
	defer release()

	inner := openZip(t, bytes.NewReader(readEntry(t, openZip(t, out).File[0])))
	var names []string
	for _, f := range inner.File {
		names = append(names, f.Name)
	}
	want := "Page 1 - Image 1.png,Page 1 - Image 2.png,Page 2 - Image 1.png,Page 2 - Image 2.png,Page 3 - Image 1.png,Page 3 - Image 2.png"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("entries = %s", got)
	}

	release()
	assertNoLiveScratch(t, m)
}

func TestExtractImages_UndecodableKeepsRawBytes(t *testing.T) {
	// WHAT: Image bytes no decoder understands are stored as extracted.
	// WHY: A broken image must not fail the whole document.
	eng, v, m := newTestEngine(t)
	doc := mustValidate(t, v, "scan.pdf", pdftest.Build(pdftest.Page{Marker: "x", Images: []pdftest.Image{pdftest.FakeJPEG()}}))

	out, release, err := eng.ExtractImages(context.Background(), []*Validated{doc})
	if err != nil {
		t.Fatalf("extract images: %v", err)
	}
	defer release()

	outer := openZip(t, out)
	inner := openZip(t, bytes.NewReader(readEntry(t, outer.File[0])))
	if len(inner.File) != 1 {
		t.Fatalf("entries = %d, want 1", len(inner.File))
	}
	f := inner.File[0]
	if !strings.HasPrefix(f.Name, "Page 1 - Image 1.") || strings.HasSuffix(f.Name, ".png") {
		t.Errorf("entry = %q, want raw extension", f.Name)
	}
	if got := readEntry(t, f); !bytes.Equal(got, pdftest.FakeJPEG().Data) {
		t.Errorf("raw bytes = %x", got)
	}

	release()
	assertNoLiveScratch(t, m)
}

func TestExtractImages_NoImages(t *testing.T) {
	// WHAT: A document without images fails the batch with NoImagesFound naming it.
	// WHY: Partial archives are never returned, and scratch is released.
	eng, v, m := newTestEngine(t)
	withImg := mustValidate(t, v, "photos.pdf", pdftest.Build(pdftest.Page{Marker: "p", Images: []pdftest.Image{pdftest.JPEG(t, 4, 4, color.RGBA{R: 1, A: 255})}}))
	plain := mustValidate(t, v, "plain.pdf", pdftest.Text("t", 2))

	out, release, err := eng.ExtractImages(context.Background(), []*Validated{withImg, plain})
	if out != nil || release != nil {
		t.Fatal("expected no stream and no release callback on failure")
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindNoImagesFound || e.File != "plain.pdf" {
		t.Fatalf("err = %v, want no_images_found naming plain.pdf", err)
	}
	assertNoLiveScratch(t, m)
}

func TestExtractImages_Empty(t *testing.T) {
	eng, _, m := newTestEngine(t)
	if _, _, err := eng.ExtractImages(context.Background(), nil); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want invalid_request", err)
	}
	assertNoLiveScratch(t, m)
}

func TestExtractImages_DuplicateBaseNames(t *testing.T) {
	eng, v, m := newTestEngine(t)
	img := []pdftest.Image{pdftest.JPEG(t, 3, 3, color.RGBA{G: 10, A: 255})}
	a := mustValidate(t, v, "x/report.pdf", pdftest.Build(pdftest.Page{Marker: "1", Images: img}))
	b := mustValidate(t, v, "y/report.pdf", pdftest.Build(pdftest.Page{Marker: "2", Images: img}))

	out, release, err := eng.ExtractImages(context.Background(), []*Validated{a, b})
	if err != nil {
		t.Fatalf("extract images: %v", err)
	}
	outer := openZip(t, out)
	if len(outer.File) != 2 || outer.File[0].Name != "report_images.zip" || outer.File[1].Name != "report_images (2).zip" {
		t.Errorf("outer entries = %q, %q", outer.File[0].Name, outer.File[len(outer.File)-1].Name)
	}
	release()
	assertNoLiveScratch(t, m)
}

func TestNormalizeImage(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	var g bytes.Buffer
	png.Encode(&g, gray)
	out, ok := normalizeImage(g.Bytes())
	if !ok {
		t.Fatal("gray PNG not decoded")
	}
	img, _ := png.Decode(bytes.NewReader(out))
	if _, isGray := img.(*image.Gray); !isGray {
		t.Errorf("gray became %T", img)
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	nrgba.Set(0, 0, color.NRGBA{R: 255, A: 0})
	var a bytes.Buffer
	png.Encode(&a, nrgba)
	out, ok = normalizeImage(a.Bytes())
	if !ok {
		t.Fatal("alpha PNG not decoded")
	}
	img, _ = png.Decode(bytes.NewReader(out))
	r, gg, bb, al := img.At(0, 0).RGBA()
	if al != 0xffff || r != 0xffff || gg != 0xffff || bb != 0xffff {
		t.Errorf("transparent pixel flattened to %v,%v,%v,%v, want opaque white", r, gg, bb, al)
	}

	if _, ok := normalizeImage([]byte("\xff\xd8\xff\xe0")); ok {
		t.Error("truncated JPEG should not decode")
	}
}

func TestRawExtension(t *testing.T) {
	for in, want := range map[string]string{"jpg": "jpg", ".JPEG": "jpg", "tiff": "tif", "png": "png", "": "bin", "jpx": "jpx"} {
		if got := rawExtension(in); got != want {
			t.Errorf("rawExtension(%q) = %q, want %q", in, got, want)
		}
	}
}
