package main

import (
	"github.com/spf13/cobra"
)

var Command = &cobra.Command{
	Use:   "tablestream",
	Short: "harvest time partitioned tables into streams.",
	Long: `tablestream polls Azure table storage window by window,
emitting every row once through operators into sinks.`,
	SilenceUsage: true,
}
