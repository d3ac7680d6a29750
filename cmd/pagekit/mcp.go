package main

import (
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var mcpRoot string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pagekit tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// stdout carries the protocol; logs go to stderr.
		a, err := setup(os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := mcp.NewServer(&mcp.Implementation{
			Name:    a.cfg.AppName,
			Version: version,
		}, nil)
		a.svc.RegisterMCP(srv, mcpRoot)
		a.logger.Info("mcp server starting", "transport", "stdio", "root", mcpRoot)
		return srv.Run(cmd.Context(), &mcp.StdioTransport{})
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpRoot, "root", "", "directory tool paths are confined to (default: unrestricted)")
	rootCmd.AddCommand(mcpCmd)
}
