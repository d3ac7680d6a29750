package pdfdoc

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/hazyhaar/pagekit/scratch"
)

// PageRange is a 1-based inclusive page interval, 1 <= Start <= End.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r PageRange) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

// Len returns the number of pages in the range.
func (r PageRange) Len() int { return r.End - r.Start + 1 }

// Pages lists the page numbers in the range, in order.
func (r PageRange) Pages() []int {
	pages := make([]int, 0, r.Len())
	for p := r.Start; p <= r.End; p++ {
		pages = append(pages, p)
	}
	return pages
}

// FileName returns the download name of the extracted range, e.g. split_003-007.pdf.
func (r PageRange) FileName() string {
	return fmt.Sprintf("split_%03d-%03d%s", r.Start, r.End, Extension)
}

var rangeRe = regexp.MustCompile(`^\d+-\d+$`)

// ParseRange parses "<start>-<end>" after trimming surrounding whitespace.
func ParseRange(text string) (PageRange, error) {
	s := strings.TrimSpace(text)
	if !rangeRe.MatchString(s) {
		return PageRange{}, newError(KindRangeInvalid, "",
			fmt.Sprintf("invalid range %q: use the form 3-7", text), nil)
	}
	left, right, _ := strings.Cut(s, "-")
	start, err := strconv.Atoi(left)
	if err != nil {
		return PageRange{}, newError(KindRangeInvalid, "", fmt.Sprintf("invalid start page %q", left), err)
	}
	end, err := strconv.Atoi(right)
	if err != nil {
		return PageRange{}, newError(KindRangeInvalid, "", fmt.Sprintf("invalid end page %q", right), err)
	}
	if start <= 0 || end <= 0 {
		return PageRange{}, newError(KindRangeInvalid, "", "pages start at 1", nil)
	}
	if start > end {
		return PageRange{}, newError(KindRangeInvalid, "",
			fmt.Sprintf("start page %d is after end page %d", start, end), nil)
	}
	return PageRange{Start: start, End: end}, nil
}

// ExtractRange copies pages r of doc, in order, into a new PDF. The returned
// spool is rewound and owned by the caller.
func (e *Engine) ExtractRange(ctx context.Context, doc *Validated, r PageRange) (out *scratch.Spool, err error) {
	if r.Start < 1 || r.Start > r.End {
		return nil, newError(KindRangeInvalid, doc.Name, fmt.Sprintf("invalid range %s", r), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out = e.scratch.Spool()
	defer e.releaseOnError(&err, out)

	err = doc.Peek(func(rs io.ReadSeeker) error {
		pdf, err := openContext(rs)
		if err != nil {
			return newError(KindCorrupted, doc.Name, "unable to read PDF structure", err)
		}
		total := pdf.PageCount
		if r.End > total {
			return newError(KindRangeInvalid, doc.Name,
				fmt.Sprintf("range %s exceeds page count: document has %d pages", r, total), nil)
		}
		sub, err := pdfcpu.ExtractPages(pdf, r.Pages(), false)
		if err != nil {
			return newError(KindExtractionFailure, doc.Name, "page extraction failed", err)
		}
		if err := api.WriteContext(sub, out); err != nil {
			return newError(KindExtractionFailure, doc.Name, "writing extracted pages failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := out.Rewind(); err != nil {
		return nil, err
	}
	return out, nil
}
