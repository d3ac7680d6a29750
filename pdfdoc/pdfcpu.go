package pdfdoc

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu otherwise creates ~/.config/pdfcpu on first use.
	api.DisableConfigDir()
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// openContext parses, validates and optimizes a PDF. pdfcpu can panic on
// hostile input; the panic is turned into an error.
func openContext(rs io.ReadSeeker) (*model.Context, error) {
	return parse(rs, true)
}

// readContext is openContext without the optimize pass, which folds
// byte-identical objects together.
func readContext(rs io.ReadSeeker) (*model.Context, error) {
	return parse(rs, false)
}

func parse(rs io.ReadSeeker, optimize bool) (ctx *model.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx, err = nil, fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if optimize {
		ctx, err = api.ReadValidateAndOptimize(rs, newConfiguration())
	} else {
		ctx, err = api.ReadAndValidate(rs, newConfiguration())
	}
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx, nil
}

// isPasswordError reports whether pdfcpu refused the file for lack of a
// password. Other parse errors, even ones naming the Encrypt dictionary, are
// corruption.
func isPasswordError(err error) bool {
	return errors.Is(err, pdfcpu.ErrWrongPassword) || strings.Contains(strings.ToLower(err.Error()), "password")
}

// isEncrypted reports whether the parsed document carries an Encrypt dictionary.
func isEncrypted(ctx *model.Context) bool {
	return ctx.Encrypt != nil
}
