package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"radiochild/odatatable"
)

func newDiscoverCmd(g *globals) *cobra.Command {
	var baseAddress string
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find the metadata document of an OData resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			url, err := odatatable.DiscoverMetadata(cmd.Context(), odatatable.DiscoverOptions{
				BaseAddress: baseAddress,
				Fetcher:     a.fetcher,
				Client:      a.client,
				StaleTime:   a.cfg.Cache.DataTTL,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseAddress, "url", "", "OData resource address")
	return cmd
}
