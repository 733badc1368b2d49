package main

import (
	"github.com/spf13/cobra"

	"github.com/nerrad567/prodev-core/internal/api"
)

func (c *cli) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the user API over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if host := c.v.GetString("host"); host != "" {
				c.cfg.API.Host = host
			}
			c.cfg.API.Port = c.intFlag("port", c.cfg.API.Port)

			return c.withApp(cmd, func(a *app) error {
				srv, err := api.New(api.Deps{
					Config:   c.cfg.API,
					Logger:   c.log.Component("api"),
					Users:    a.users,
					Metrics:  a.layer,
					PageSize: a.layer.PageSize(),
					Checks:   a.healthChecks(),
					Version:  version,
				})
				if err != nil {
					return err
				}
				if err := srv.Start(cmd.Context()); err != nil {
					return err
				}

				c.log.Info("prodev serving", "version", version, "commit", commit)
				<-cmd.Context().Done()
				c.log.Info("shutdown signal received")
				return srv.Close()
			})
		},
	}
	cmd.Flags().String("host", "", "listen address (default api.host)")
	cmd.Flags().Int("port", 0, "listen port (default api.port)")
	return cmd
}

// healthChecks returns a check per connected component.
func (a *app) healthChecks() map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{
		"database": a.db.HealthCheck,
	}
	if a.mqtt != nil {
		checks["mqtt"] = a.mqtt.HealthCheck
	}
	if a.influx != nil {
		checks["influxdb"] = a.influx.HealthCheck
	}
	return checks
}
