// Command mcp-reconcile runs the MCP tool server for reconciliation job
// operations. Uses stdio transport for integration with AI assistants.
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.temporal.io/sdk/client"

	"github.com/invoiceops/reconcile-go/internal/config"
	"github.com/invoiceops/reconcile-go/internal/mcpserver"
	"github.com/invoiceops/reconcile-go/internal/temporal/querier"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("unable to create Temporal client: %v", err)
	}
	defer c.Close()

	q := querier.New(c)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "reconcile-go",
		Version: "v1.0.0",
	}, nil)
	mcpserver.RegisterTools(server, q)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
