package main

import (
	"bufio"
	_c "context"
	"encoding/json"
	"fmt"
	"io"
	"tablestream/lib/component/operator/tengo"
	"tablestream/stream"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	Command.AddCommand(&cobra.Command{
		Use:   "condition <expression>",
		Short: "try a tengo-filter condition",
		Long: `evaluate a tengo-filter condition against rows read from stdin,
one JSON object per line, printing whether each row is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			condition, err := tengo.NewCondition(args[0])
			if err != nil {
				return err
			}
			return evaluate(cmd.Context(), condition, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	})
}

func evaluate(ctx _c.Context, condition *tengo.Condition, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		row := map[string]any{}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			return errors.WithMessagef(err, "line %d", line)
		}
		match, err := condition.Match(ctx, &stream.Event{Meta: map[string]any{}, Message: row, Time: time.Now()})
		if err != nil {
			fmt.Fprintf(out, "%d\terror\t%v\n", line, err)
			continue
		}
		result := "drop"
		if match {
			result = "keep"
		}
		fmt.Fprintf(out, "%d\t%s\t%s\n", line, result, scanner.Text())
	}
	return scanner.Err()
}
