package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/searchktools/fast-express/app"
	"github.com/searchktools/fast-express/core/logger"
)

func routesCmd() *cobra.Command {
	var nativeOnly bool

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the demo route tree in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, 0, "", "")
			if err != nil {
				return err
			}
			a := app.New(cfg, app.WithLogger(logger.Nop()))
			registerDemo(a.Router())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATH\tKIND")
			for _, r := range a.Router().Routes() {
				kind := "generic"
				switch {
				case r.Mount:
					kind = "middleware"
				case r.Native:
					kind = "native"
				}
				if nativeOnly && !r.Native {
					continue
				}
				method := r.Method
				if method == "" {
					method = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", method, r.Path, kind)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&nativeOnly, "native", false, "only list routes served natively")
	return cmd
}
