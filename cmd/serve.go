package cmd

import (
	"github.com/nguyentranbao-ct/storefront/internal/app"
	"github.com/nguyentranbao-ct/storefront/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the store controller behind the control API",
	Run: func(cmd *cobra.Command, args []string) {
		app.Invoke(
			conf,
			app.RunStore,
			server.StartServer,
		).Run()
	},
}
