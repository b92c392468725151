package main

import (
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/nathoo/simcore/mcp"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	server := mcp.NewServer(a.engine(a.pack, a.pack), a.pack, a.cfg.Simulation, a.constraints, version)
	a.log.Info("serving MCP over stdio", "pack", a.pack.Name)
	return server.Run(cmd.Context(), &sdk.StdioTransport{})
}
