package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/searchktools/fast-express/app"
	"github.com/searchktools/fast-express/config"
)

func serveCmd() *cobra.Command {
	var (
		port      int
		transport string
		env       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo route tree",
		Long: `Serve the demo route tree until interrupted.

Flags override the matching environment variables (PORT, TRANSPORT, APP_ENV).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, port, transport, env)
			if err != nil {
				return err
			}
			a := app.New(cfg)
			registerDemo(a.Router())
			return a.Run(context.Background())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port")
	cmd.Flags().StringVarP(&transport, "transport", "t", "", "native, h2c or std")
	cmd.Flags().StringVarP(&env, "env", "e", "", "application environment")

	return cmd
}

// loadConfig reads the environment and applies flags the user set.
func loadConfig(cmd *cobra.Command, port int, transport, env string) (*config.Config, error) {
	cfg := &config.Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("transport") {
		cfg.Transport = transport
	}
	if cmd.Flags().Changed("env") {
		cfg.Env = env
	}
	return cfg, cfg.Validate()
}
