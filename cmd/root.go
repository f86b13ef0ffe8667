package cmd

import (
	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/pkg/logger"
	"github.com/spf13/cobra"
)

var conf *config.Config

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "Browse a Haven store, fill a cart and check out",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if err := logger.SetLevel(c.Log.Level); err != nil {
			return err
		}
		conf = c
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, catalogCmd)
}

func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		logger.MustNamed("cmd").Fatal(err)
	}
}
