package pdfdoc

import (
	"bytes"
	"testing"

	"github.com/hazyhaar/pagekit/scratch"
)

func pdfInput(name string, raw []byte) Input {
	return NewInput(name, MediaType, bytes.NewReader(raw))
}

// newTestEngine returns an engine and validator sharing a counted scratch
// manager rooted in a per-test directory.
func newTestEngine(t *testing.T) (*Engine, *Validator, *scratch.Manager) {
	t.Helper()
	m := scratch.NewManager(scratch.Config{Dir: t.TempDir(), SpoolThreshold: 4096})
	return New(Config{Scratch: m}), NewValidator(ValidatorConfig{}), m
}

func mustValidate(t *testing.T, v *Validator, name string, raw []byte) *Validated {
	t.Helper()
	doc, err := v.Validate(pdfInput(name, raw))
	if err != nil {
		t.Fatalf("validate %s: %v", name, err)
	}
	return doc
}

func assertNoLiveScratch(t *testing.T, m *scratch.Manager) {
	t.Helper()
	if st := m.Stats(); st.Live() != 0 {
		t.Fatalf("live scratch resources = %d (opened %d, released %d)", st.Live(), st.Opened, st.Released)
	}
}
