package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported in the MCP implementation info. The CLI overrides it
// with the linker-provided build version.
var Version = "dev"

// NewServer creates an MCP server with the synthesis and generation tools
// registered.
func NewServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "testweave",
		Version: Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sanitize_fragment",
		Description: "Extract Go code from free-form generation output. Honors labeled sections, fenced blocks and CDATA, and reports the parse granularity of the result.",
	}, svc.SanitizeFragment)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_syntax",
		Description: "Check whether Go code parses as a file, a declaration list, statements, an expression or a brace block. Returns the first granularity that accepts it.",
	}, svc.ValidateSyntax)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_fragments",
		Description: "Sanitize raw fragments and merge their declarations into a testify suite. Imports are unioned; the first definition of a member wins.",
	}, svc.MergeFragments)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_suite",
		Description: "Generate, write and verify a test suite for one Go source file, repairing it when the tests fail. Returns the final phase and the suite location.",
	}, svc.GenerateSuite)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_runs",
		Description: "List recent generation runs from the run ledger with a count per outcome.",
	}, svc.ListRuns)

	return server
}

// RunStdio runs the server on stdio until stdin closes or ctx is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP tools over streamable HTTP on addr.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
