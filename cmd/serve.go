package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codemarcinu/ageny/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server exposing chat, embeddings, tutor, provider, and
cost endpoints. The server runs until interrupted and shuts down gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "override the configured port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := buildStack(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	if portFlag != 0 {
		if portFlag < 1 || portFlag > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", portFlag)
		}
		st.cfg.Server.Port = portFlag
	}

	opts := []server.Option{server.WithLogger(st.logger)}
	if st.store != nil {
		opts = append(opts, server.WithRecordStore(st.store))
	}
	srv, err := server.New(st.cfg, st.client, st.machine, opts...)
	if err != nil {
		return err
	}
	return srv.Run(cmd.Context())
}
