package main

import (
	"github.com/spf13/cobra"

	"commercial-rag/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := newApp(ctx, cfg)
		defer a.Close()

		addr := cfg.Server.Addr
		if flagAddr != "" {
			addr = flagAddr
		}
		srv := server.New(a.engine(), a.retriever, cfg.RAG.DocumentsDir, version)
		return srv.Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
