package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"radiochild/odatatable"
)

type queryResult struct {
	QueryString      string                  `json:"queryString"`
	CountQueryString string                  `json:"countQueryString"`
	RequestURL       string                  `json:"requestUrl"`
	Options          odatatable.QueryOptions `json:"options"`
}

func newQueryCmd(g *globals) *cobra.Command {
	tf := &tableFlags{}
	var withCount, wire bool
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the OData query string for a table state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			source, err := a.load(cmd.Context(), tf)
			if err != nil {
				return err
			}
			opts := source.QueryOptionsFor(source.State())
			res := queryResult{
				QueryString:      opts.String(),
				CountQueryString: source.CountQueryString(),
				RequestURL:       odatatable.RequestURL(tf.baseAddress, opts),
				Options:          opts,
			}

			out := cmd.OutOrStdout()
			if a.cfg.Output.Format == "json" {
				return json.NewEncoder(out).Encode(res)
			}
			if wire {
				fmt.Fprintln(out, res.RequestURL)
			} else {
				fmt.Fprintln(out, res.QueryString)
			}
			if withCount {
				fmt.Fprintln(out, res.CountQueryString)
			}
			return nil
		},
	}
	tf.register(cmd)
	cmd.Flags().BoolVar(&withCount, "count", false, "also print the count query")
	cmd.Flags().BoolVar(&wire, "wire", false, "print the encoded request URL")
	return cmd
}
