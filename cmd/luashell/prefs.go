package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPrefsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prefs",
		Short: "Load packages and list their preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, err := root.startApp(cmd, nil)
			if err != nil {
				return err
			}
			defer shutdown(application)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Preferences"))

			pkg := ""
			for _, p := range application.Preferences() {
				if p.Package != pkg {
					pkg = p.Package
					fmt.Fprintf(out, "\n%s\n", nameStyle.Render(pkg))
				}

				label := p.Label
				if label == "" {
					label = p.Key
				}
				value := "(unset)"
				if p.IsSet {
					value = fmt.Sprint(p.Value)
				}
				kind := p.Type
				if kind == "" {
					kind = "toggle"
				}
				fmt.Fprintf(out, "  %s %s %s = %s\n", infoIcon, label, pathStyle.Render("["+p.Key+", "+kind+"]"), value)

				if p.OptionsFunc == "" && len(p.Options) == 0 {
					continue
				}
				opts, err := application.PreferenceOptions(cmd.Context(), p.Key)
				if err != nil {
					fmt.Fprintf(out, "      %s\n", errorStyle.Render(err.Error()))
					continue
				}
				fmt.Fprintf(out, "      options: %s\n", strings.Join(opts, ", "))
			}
			return nil
		},
	}
}
