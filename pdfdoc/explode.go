package pdfdoc

import (
	"context"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/pagekit/scratch"
)

// PageEntryName is the archive entry name of page i (1-based), e.g. page_0001.pdf.
func PageEntryName(i int) string {
	return fmt.Sprintf("page_%04d%s", i, Extension)
}

// PagesArchiveName is the download name of an exploded document.
func PagesArchiveName(source string) string {
	return BaseName(source) + "_pages.zip"
}

// ExplodeAll writes one single-page PDF per page of doc into a zip archive.
// Pages are spooled one at a time and each page spool is released right after
// it is copied into the archive. The returned spool is rewound and owned by
// the caller.
func (e *Engine) ExplodeAll(ctx context.Context, doc *Validated) (out *scratch.Spool, err error) {
	out = e.scratch.Spool()
	defer e.releaseOnError(&err, out)

	err = doc.Peek(func(rs io.ReadSeeker) error {
		pdf, err := openContext(rs)
		if err != nil {
			return newError(KindCorrupted, doc.Name, "unable to read PDF structure", err)
		}

		zip := newArchive(out, e.cfg.CopyChunk)
		for i := 1; i <= pdf.PageCount; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.explodePage(pdf, i, zip); err != nil {
				return newError(KindExtractionFailure, doc.Name, fmt.Sprintf("page %d", i), err)
			}
		}
		if err := zip.close(); err != nil {
			return newError(KindExtractionFailure, doc.Name, "finalizing archive", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := out.Rewind(); err != nil {
		return nil, err
	}

	e.logger.Debug("pdf exploded", "file", doc.Name, "pages", doc.Pages)
	return out, nil
}

func (e *Engine) explodePage(pdf *model.Context, pageNr int, zip *archive) error {
	page, err := pdfcpu.ExtractPages(pdf, []int{pageNr}, false)
	if err != nil {
		return err
	}

	sp := e.scratch.Spool()
	defer func() {
		if err := sp.Release(); err != nil {
			e.logger.Warn("pdfdoc: release page spool", "page", pageNr, "error", err)
		}
	}()

	if err := api.WriteContext(page, sp); err != nil {
		return err
	}
	if err := sp.Rewind(); err != nil {
		return err
	}
	_, err = zip.store(PageEntryName(pageNr), sp)
	return err
}
