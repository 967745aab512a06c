package cmd

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"time26/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !log.IsLevelEnabled(log.DebugLevel) {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(server.Config{
				Addr:            cfg.Server.Addr,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				CronSecret:      cfg.Auth.CronSecret,
				JWTSecret:       cfg.Auth.JWTSecret,
			}, a.services, a.registry, a.db.Ping)

			log.WithField("environment", cfg.Environment).Info("TIME26 engine is running")
			return srv.Run(ctx)
		},
	}
}
