package main

import (
	"fmt"
	"tablestream/lib/component"
	"tablestream/lib/properties"
	"tablestream/stream"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	Command.AddCommand(&cobra.Command{
		Use:       "component <source|operator|sink>",
		Short:     "list source operator sink.",
		Long:      `list registered source operator sink types with their properties.`,
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"source", "operator", "sink"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var defs map[string]stream.PropertiesDef
			switch args[0] {
			case "source":
				defs = component.ListSourceDef()
			case "operator":
				defs = component.ListOperatorDef()
			case "sink":
				defs = component.ListSinkDef()
			default:
				return errors.Errorf("unknown component kind %s", args[0])
			}
			for _, name := range component.SortedNames(defs) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s:\n%s\n", name, args[0], properties.RenderDef(defs[name]))
			}
			return nil
		}})
}
