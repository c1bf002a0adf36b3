package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/mythx-go/internal/mythx"
)

func newVersionCmd() *cobra.Command {
	var openAPI bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show client and service versions",
		Long: `Show the client version and the versions of the service components.
No login is needed. With --openapi, print the service's OpenAPI description
instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cc := mustCLIContext(ctx)

			transport, err := mythx.NewPublicTransport(mythx.Options{
				BaseURL:    cc.Cfg.APIURL,
				HTTPClient: newHTTPClient(cc.Cfg),
				Logger:     cc.Logger,
				UserAgent:  userAgent(cc),
			})
			if err != nil {
				return err
			}

			if openAPI {
				spec, err := mythx.ServiceAPISpec(ctx, transport)
				if err != nil {
					return err
				}

				_, err = cc.Out.Write(spec)

				return err
			}

			versions, err := mythx.ServiceVersion(ctx, transport)
			if err != nil {
				return err
			}

			versions["mythx-go"] = version

			if cc.Flags.JSON {
				return printJSON(cc.Out, versions)
			}

			names := make([]string, 0, len(versions))
			for name := range versions {
				names = append(names, name)
			}

			sort.Strings(names)

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, versions[name]})
			}

			printTable(cc.Out, []string{"COMPONENT", "VERSION"}, rows)

			return nil
		},
	}

	cmd.Flags().BoolVar(&openAPI, "openapi", false, "print the OpenAPI description")

	return cmd
}
