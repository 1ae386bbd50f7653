package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"testrig/internal/catalog"
)

func newCatalogCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate circuit catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the circuits of the configured catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "catalog %s\n", cat.Version())
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDESCRIPTION\tDEVICE\tMAX ZS\tTESTS\tFAULT")
			for _, c := range cat.Circuits() {
				fault := string(c.Fault)
				if fault == "" {
					fault = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s%g\t%g\t%d\t%s\n",
					c.ID, c.Description, c.Device.Type, c.Device.RatingA, c.MaxZs, len(c.RequiredTests), fault)
			}
			return tw.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a catalog file against the schema and reference rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog %s valid: %d circuits, %d required tests\n",
				cat.Version(), cat.Len(), cat.TotalRequiredTests())
			return nil
		},
	})
	return cmd
}
