package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newEvalCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "eval <code>",
		Short: "Load packages, then evaluate Lua in the shared session",
		Example: `  luashell eval '1 + 2'
  luashell eval 'x = 42'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := root.startApp(cmd, nil)
			if err != nil {
				return err
			}
			defer shutdown(application)

			v, err := application.Runtime().Eval(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if v != nil {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
}
