package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/hazyhaar/pagekit/scratch"
)

// ImagesArchiveName is the download name of an image extraction.
const ImagesArchiveName = "imagens_por_pdf.zip"

// DocumentImagesName is the outer archive entry holding the images of source.
func DocumentImagesName(source string) string {
	return BaseName(source) + "_images.zip"
}

// ExtractImages writes, for each document, a zip of its embedded images, and
// packs those zips into one outer zip. The batch is all-or-nothing: a
// document without images fails the whole call with NoImagesFound.
//
// On success the caller must call release once it is done with the stream;
// release frees every temp file and archive the call allocated and may be
// called more than once. On failure everything is already released.
func (e *Engine) ExtractImages(ctx context.Context, docs []*Validated) (io.ReadSeeker, func(), error) {
	if len(docs) == 0 {
		return nil, nil, InvalidRequest("image extraction needs at least one PDF")
	}

	bundle := e.scratch.Bundle()
	release := func() { _ = bundle.Release() }

	out := e.scratch.Spool()
	bundle.Add(out)
	outer := newArchive(out, e.cfg.CopyChunk)

	total := 0
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			release()
			return nil, nil, err
		}
		inner, n, err := e.documentImages(ctx, d, bundle)
		if err != nil {
			release()
			return nil, nil, err
		}
		name := outer.uniqueName(DocumentImagesName(d.Name))
		if _, err := outer.deflate(name, inner); err != nil {
			release()
			return nil, nil, newError(KindExtractionFailure, d.Name, "packing image archive", err)
		}
		if err := inner.Release(); err != nil {
			e.logger.Warn("pdfdoc: release inner archive", "file", d.Name, "error", err)
		}
		total += n
	}
	if err := outer.close(); err != nil {
		release()
		return nil, nil, newError(KindExtractionFailure, "", "finalizing archive", err)
	}
	if err := out.Rewind(); err != nil {
		release()
		return nil, nil, err
	}

	e.logger.Debug("images extracted", "documents", len(docs), "images", total)
	return out, release, nil
}

// documentImages builds the inner archive for one document. Every resource it
// allocates is added to bundle.
func (e *Engine) documentImages(ctx context.Context, doc *Validated, bundle *scratch.Bundle) (*scratch.Spool, int, error) {
	tmp, err := e.scratch.File("pagekit-*.pdf")
	if err != nil {
		return nil, 0, newError(KindExtractionFailure, doc.Name, "creating temp file", err)
	}
	bundle.Add(tmp)

	buf := make([]byte, e.cfg.CopyChunk)
	err = doc.Peek(func(r io.ReadSeeker) error {
		_, err := io.CopyBuffer(tmp, r, buf)
		return err
	})
	if err == nil {
		err = tmp.Sync()
	}
	if err == nil {
		err = tmp.Rewind()
	}
	if err != nil {
		return nil, 0, newError(KindExtractionFailure, doc.Name, "spooling document", err)
	}

	pdf, err := readContext(tmp)
	if err != nil {
		return nil, 0, newError(KindExtractionFailure, doc.Name, "unable to read PDF structure", err)
	}

	inner := e.scratch.Spool()
	bundle.Add(inner)
	zip := newArchive(inner, e.cfg.CopyChunk)

	count := 0
	for p := 1; p <= pdf.PageCount; p++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		n, err := e.pageImages(pdf, p, zip)
		if err != nil {
			return nil, 0, newError(KindExtractionFailure, doc.Name, fmt.Sprintf("page %d", p), err)
		}
		count += n
	}
	if count == 0 {
		return nil, 0, newError(KindNoImagesFound, doc.Name, "no images found in the PDF", nil)
	}
	if err := zip.close(); err != nil {
		return nil, 0, newError(KindExtractionFailure, doc.Name, "finalizing image archive", err)
	}
	if err := inner.Rewind(); err != nil {
		return nil, 0, newError(KindExtractionFailure, doc.Name, "rewinding image archive", err)
	}
	if err := tmp.Release(); err != nil {
		e.logger.Warn("pdfdoc: release temp file", "file", doc.Name, "error", err)
	}
	return inner, count, nil
}

func (e *Engine) pageImages(pdf *model.Context, pageNr int, zip *archive) (int, error) {
	refs, err := pageImageRefs(pdf, pageNr)
	if err != nil {
		return 0, err
	}
	for i, ref := range refs {
		raw, ext, err := extractImage(pdf, ref)
		if err != nil {
			return i, fmt.Errorf("image %s (obj %d): %w", ref.name, ref.objNr, err)
		}
		data := raw
		if norm, ok := normalizeImage(raw); ok {
			data, ext = norm, "png"
		} else {
			e.logger.Debug("pdfdoc: keeping raw image bytes", "page", pageNr, "obj", ref.objNr, "type", ext)
		}
		name := zip.uniqueName(ImageEntryName(pageNr, i+1, ext))
		if _, err := zip.store(name, bytes.NewReader(data)); err != nil {
			return i, err
		}
	}
	return len(refs), nil
}

// imageRef is one image XObject entry in a page's resources.
type imageRef struct {
	name  string
	objNr int
	sd    *types.StreamDict
}

// pageImageRefs lists every image XObject entry of a page, ordered by object
// number then resource name. Two entries pointing at byte-identical images
// are two refs; the context must not have been optimized, which would fold
// them into one object.
func pageImageRefs(pdf *model.Context, pageNr int) (refs []imageRef, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	page, _, inh, err := pdf.PageDict(pageNr, false)
	if err != nil {
		return nil, err
	}
	var res types.Dict
	if inh != nil {
		res = inh.Resources
	}
	if res == nil {
		if res, err = pdf.DereferenceDict(page["Resources"]); err != nil {
			return nil, err
		}
	}
	if res == nil {
		return nil, nil
	}
	xobjs, err := pdf.DereferenceDict(res["XObject"])
	if err != nil || xobjs == nil {
		return nil, err
	}

	for name, o := range xobjs {
		sd, _, err := pdf.DereferenceStreamDict(o)
		if err != nil {
			return nil, fmt.Errorf("xobject %s: %w", name, err)
		}
		if sd == nil {
			continue
		}
		if st := sd.Subtype(); st == nil || *st != "Image" {
			continue
		}
		ref := imageRef{name: name, sd: sd}
		if ir, ok := o.(types.IndirectRef); ok {
			ref.objNr = ir.ObjectNumber.Value()
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].objNr != refs[j].objNr {
			return refs[i].objNr < refs[j].objNr
		}
		return refs[i].name < refs[j].name
	})
	return refs, nil
}

// extractImage decodes ref's stream and returns its bytes in the format pdfcpu
// renders it to, with the matching entry extension.
func extractImage(pdf *model.Context, ref imageRef) (raw []byte, ext string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	img, err := pdfcpu.ExtractImage(pdf, ref.sd, false, ref.name, ref.objNr, false)
	if err != nil {
		return nil, "", err
	}
	if img == nil {
		return nil, "", fmt.Errorf("unsupported image stream")
	}
	raw, err = readAllImage(img.Reader)
	return raw, rawExtension(img.FileType), err
}
