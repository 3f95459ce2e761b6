package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/luashell/internal/plugin"
)

func newListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered packages without loading them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := root.newApp(cmd, nil)
			if err != nil {
				return err
			}
			defer application.Runtime().Close()

			dirs, err := application.PackageDirs()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Discovered packages"))
			if len(dirs) == 0 {
				fmt.Fprintf(out, "%s no packages in %s\n", infoIcon,
					pathStyle.Render(strings.Join(application.Config().Packages.Dirs, ", ")))
				return nil
			}

			for _, dir := range dirs {
				m, err := plugin.ReadManifest(plugin.OSFS{}, dir)
				if err != nil {
					fmt.Fprintf(out, "%s %s %s\n", errorIcon, pathStyle.Render(dir), errorStyle.Render(err.Error()))
					continue
				}
				fmt.Fprintf(out, "%s %s %s %s\n", infoIcon, nameStyle.Render(m.Name),
					versionStyle.Render(m.Version), pathStyle.Render(dir))
				if len(m.Dependencies) > 0 {
					fmt.Fprintf(out, "    depends on %s\n", strings.Join(m.Dependencies, ", "))
				}
			}
			return nil
		},
	}
}
