package cmd

import (
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing the upload, schema, query, and ask
operations as a JSON API.

Examples:
  tabletalk serve
  tabletalk serve --port 9090`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := StartServer(dataDir, servePort); err != nil {
			HandleError(err, "Server failed")
		}
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}
