package cmd

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"car-price-estimator/inference"
	"car-price-estimator/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the estimate form, the JSON API and metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		est, err := inference.Load(cfg.PreprocessorPath, cfg.ModelPath)
		if err != nil {
			return err
		}
		logger.Info("Loaded model %s (%d features)", cfg.ModelPath, est.Width())

		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}
		addr := cfg.HTTPAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		return server.New(est, logger).Run(cmd.Context(), addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
}
