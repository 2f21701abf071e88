package main

import (
	"encoding/json"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"radiochild/odatatable"
)

func newColumnsCmd(g *globals) *cobra.Command {
	tf := &tableFlags{}
	cmd := &cobra.Command{
		Use:   "columns",
		Short: "List the columns derived from the entity metadata",
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
			out := cmd.OutOrStdout()
			if a.cfg.Output.Format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(source.Columns())
			}

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"ID", "Header", "Type", "Collection", "Visible"})
			table.SetAutoFormatHeaders(false)
			table.SetAutoWrapText(false)
			shown := map[string]bool{}
			for _, id := range odatatable.ColumnIDs(source.VisibleColumns()) {
				shown[id] = true
			}
			for _, col := range source.Columns() {
				table.Append([]string{col.ID, col.Header, col.ODataType,
					fmt.Sprintf("%t", col.IsCollection), fmt.Sprintf("%t", shown[col.ID])})
			}
			table.SetCaption(true, fmt.Sprintf("%s (%s)", source.TypeRoot().Type, source.MetadataURL()))
			table.Render()
			return nil
		},
	}
	tf.register(cmd)
	return cmd
}
