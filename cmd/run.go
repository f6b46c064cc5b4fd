package main

import (
	_c "context"
	"path"
	"strings"
	"tablestream/lib/runtime"

	"github.com/spf13/cobra"
)

func init() {
	Command.AddCommand(&cobra.Command{
		Use:   "run <config>",
		Short: "run sources operators and sinks of a config file",
		Long:  `read the config file, open every component it declares and harvest until interrupted or a task fails`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configFilePath := args[0]
			ext := path.Ext(configFilePath)
			name := strings.TrimSuffix(path.Base(configFilePath), ext)
			r, err := runtime.New(_c.Background(), name, strings.TrimPrefix(ext, "."), path.Dir(configFilePath))
			if err != nil {
				return err
			}
			return r.Run()
		},
	})
}
