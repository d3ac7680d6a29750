package pdfdoc

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/pagekit/scratch"
)

// Merge concatenates the pages of docs, in order, into one PDF. Every page of
// docs[i] precedes every page of docs[i+1]. The returned spool is rewound and
// owned by the caller. Every document is rewound on return, success or not.
func (e *Engine) Merge(ctx context.Context, docs []*Validated) (out *scratch.Spool, err error) {
	if len(docs) < MinMergeCount {
		return nil, InvalidRequest("merge needs at least %d PDFs, got %d", MinMergeCount, len(docs))
	}

	// Structural pass per document so a failure names its file.
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := d.Peek(func(r io.ReadSeeker) error {
			pdf, err := openContext(r)
			if err != nil {
				return err
			}
			if pdf.PageCount == 0 {
				return fmt.Errorf("no pages")
			}
			return nil
		})
		if err != nil {
			return nil, newError(KindJoinFailure, d.Name, "failed to read pages while joining", err)
		}
	}

	spool := e.scratch.Spool()
	defer e.releaseOnError(&err, spool)
	defer func() {
		if rerr := rewindAll(docs); rerr != nil && err == nil {
			out, err = nil, rerr
		}
	}()

	if err := rewindAll(docs); err != nil {
		return nil, err
	}
	if err := mergeInto(docs, spool); err != nil {
		return nil, err
	}
	if err := spool.Rewind(); err != nil {
		return nil, err
	}

	e.logger.Debug("pdfs merged", "documents", len(docs))
	return spool, nil
}

// rewindAll rewinds every document, failing on the first that cannot be.
func rewindAll(docs []*Validated) error {
	for _, d := range docs {
		if err := d.Rewind(); err != nil {
			return newError(KindJoinFailure, d.Name, "stream not rewindable", err)
		}
	}
	return nil
}

// mergeInto appends each document to the first and writes the result to w.
// Streams must be positioned at 0. Failures name the document being read or
// appended; only the final write is unattributed.
func mergeInto(docs []*Validated, w io.Writer) (err error) {
	cur := docs[0].Name
	defer func() {
		if r := recover(); r != nil {
			err = newError(KindJoinFailure, cur, "PDF join failure", fmt.Errorf("pdfcpu panic: %v", r))
		}
	}()

	conf := newConfiguration()
	conf.Cmd = model.MERGECREATE
	conf.CreateBookmarks = false

	dest, err := api.ReadAndValidate(docs[0].r, conf)
	if err != nil {
		return newError(KindJoinFailure, cur, "PDF join failure", err)
	}
	dest.EnsureVersionForWriting()

	for i, d := range docs[1:] {
		cur = d.Name
		src, err := api.ReadAndValidate(d.r, dest.Configuration)
		if err != nil {
			return newError(KindJoinFailure, cur, "PDF join failure", err)
		}
		if dest.XRefTable.Version() < model.V20 && src.XRefTable.Version() == model.V20 {
			return newError(KindJoinFailure, cur, "PDF join failure", pdfcpu.ErrUnsupportedVersion)
		}
		if err := pdfcpu.MergeXRefTables(strconv.Itoa(i), src, dest, false, false); err != nil {
			return newError(KindJoinFailure, cur, "PDF join failure", err)
		}
	}

	cur = ""
	if err := api.WriteContext(dest, w); err != nil {
		return newError(KindJoinFailure, "", "writing merged PDF", err)
	}
	return nil
}
