package pdfsvc

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagekit/horosafe"
	"github.com/hazyhaar/pagekit/kit"
	"github.com/hazyhaar/pagekit/pdfdoc"
)

// RegisterMCP registers the pagekit tools on an MCP server. Paths given to the
// tools are resolved under root; an empty root accepts any path.
func (s *Service) RegisterMCP(srv *mcp.Server, root string) {
	t := &mcpTools{svc: s, root: root}
	t.registerValidate(srv)
	t.registerMerge(srv)
	t.registerSplitRange(srv)
	t.registerExplode(srv)
	t.registerImages(srv)
}

type mcpTools struct {
	svc  *Service
	root string
}

// register adds a tool whose calls are logged and run under a fresh request id.
func (t *mcpTools) register(srv *mcp.Server, tool *mcp.Tool, op string, endpoint kit.Endpoint,
	decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	wrapped := kit.Chain(kit.Logging(t.svc.logger, tool.Name))(endpoint)
	kit.RegisterMCPTool(srv, tool, wrapped, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		res, err := decode(req)
		if err != nil {
			return nil, err
		}
		res.EnrichCtx = func(ctx context.Context) context.Context {
			return RequestContext(ctx, kit.TransportMCP, op)
		}
		return res, nil
	})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var (
	pathProp   = map[string]any{"type": "string", "description": "Path of a PDF file"}
	pathsProp  = map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Paths of PDF files, in order"}
	outputProp = map[string]any{"type": "string", "description": "Output file or directory (default: next to the working directory)"}
)

func (t *mcpTools) resolve(path string) (string, error) {
	p, err := horosafe.SafePath(t.root, path)
	if err != nil {
		return "", pdfdoc.InvalidRequest("path %q: %v", path, err)
	}
	return p, nil
}

func (t *mcpTools) resolveAll(paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := t.resolve(p)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (t *mcpTools) run(ctx context.Context, op string, paths []string, rangeText, output string) (*LocalResult, error) {
	ins, err := t.resolveAll(paths)
	if err != nil {
		return nil, err
	}
	if output != "" {
		if output, err = t.resolve(output); err != nil {
			return nil, err
		}
	} else if t.root != "" {
		output = t.root
	}
	return t.svc.RunLocal(ctx, LocalJob{Operation: op, Inputs: ins, Range: rangeText, Output: output})
}

// --- validate ---

type validateReq struct {
	Path string `json:"path"`
}

func (t *mcpTools) registerValidate(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagekit_validate",
		Description: "Check that a file is a readable, unencrypted PDF and report its page count and size.",
		InputSchema: inputSchema(map[string]any{"path": pathProp}, []string{"path"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*validateReq)
		p, err := t.resolve(r.Path)
		if err != nil {
			return nil, err
		}
		return t.svc.CheckLocal(ctx, p)
	}
	t.register(srv, tool, OpUpload, endpoint, kit.DecodeArgs[validateReq])
}

// --- merge ---

type mergeReq struct {
	Paths  []string `json:"paths"`
	Output string   `json:"output"`
}

func (t *mcpTools) registerMerge(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagekit_merge",
		Description: fmt.Sprintf("Merge %d or more PDFs, in the given order, into %s.", pdfdoc.MinMergeCount, MergedName),
		InputSchema: inputSchema(map[string]any{"paths": pathsProp, "output": outputProp}, []string{"paths"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*mergeReq)
		return t.run(ctx, OpMerge, r.Paths, "", r.Output)
	}
	t.register(srv, tool, OpMerge, endpoint, kit.DecodeArgs[mergeReq])
}

// --- split_range ---

type splitRangeReq struct {
	Path   string `json:"path"`
	Range  string `json:"range"`
	Output string `json:"output"`
}

func (t *mcpTools) registerSplitRange(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagekit_split_range",
		Description: "Copy an inclusive 1-based page range (for example 3-7) of a PDF into a new PDF.",
		InputSchema: inputSchema(map[string]any{
			"path":   pathProp,
			"range":  map[string]any{"type": "string", "description": "Page range start-end, e.g. 3-7"},
			"output": outputProp,
		}, []string{"path", "range"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*splitRangeReq)
		return t.run(ctx, OpSplitRange, []string{r.Path}, r.Range, r.Output)
	}
	t.register(srv, tool, OpSplitRange, endpoint, kit.DecodeArgs[splitRangeReq])
}

// --- explode ---

type explodeReq struct {
	Path   string `json:"path"`
	Output string `json:"output"`
}

func (t *mcpTools) registerExplode(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagekit_explode",
		Description: "Split a PDF into one single-page PDF per page, packed in a zip archive.",
		InputSchema: inputSchema(map[string]any{"path": pathProp, "output": outputProp}, []string{"path"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*explodeReq)
		return t.run(ctx, OpExplode, []string{r.Path}, "", r.Output)
	}
	t.register(srv, tool, OpExplode, endpoint, kit.DecodeArgs[explodeReq])
}

// --- images ---

type imagesReq struct {
	Paths  []string `json:"paths"`
	Output string   `json:"output"`
}

func (t *mcpTools) registerImages(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagekit_images",
		Description: "Extract the embedded images of one or more PDFs into a zip holding one zip per document.",
		InputSchema: inputSchema(map[string]any{"paths": pathsProp, "output": outputProp}, []string{"paths"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*imagesReq)
		return t.run(ctx, OpImages, r.Paths, "", r.Output)
	}
	t.register(srv, tool, OpImages, endpoint, kit.DecodeArgs[imagesReq])
}
