package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewLoadCmd создаёт группу команд для управления загрузками.
func NewLoadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Manage GCS to BigQuery loads",
	}

	cmd.AddCommand(
		newLoadListCmd(clientFn, outputFn),
		newLoadSubmitCmd(clientFn, outputFn),
		newLoadShowCmd(clientFn, outputFn),
		newLoadResultCmd(clientFn, outputFn),
		newLoadRetryCmd(clientFn, outputFn),
	)

	return cmd
}

var loadHeaders = []string{"ID", "NAME", "STATUS", "ATTEMPT", "DESTINATION", "CREATED"}

func loadRow(l LoadResponse) []string {
	return []string{l.ID, l.Name, l.Status, strconv.Itoa(l.Attempt), l.Destination(), l.CreatedAt}
}

func newLoadListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loads",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			loads, err := client.ListLoads(ListLoadsOpts{Status: status, Limit: limit})
			if err != nil {
				return err
			}

			rows := make([][]string, len(loads))
			for i, l := range loads {
				rows[i] = loadRow(l)
			}

			out.Print(loadHeaders, rows, loads)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (QUEUED, RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newLoadSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var inputs []string
	var ds string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a load described in a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			lf, err := ReadLoadFile(file)
			if err != nil {
				return err
			}
			extra, err := ParseInputs(inputs)
			if err != nil {
				return err
			}
			lf.Apply(extra, ds)

			req, err := lf.Request()
			if err != nil {
				return err
			}

			load, err := client.CreateLoad(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Load queued: %s", load.ID))
			out.Print(loadHeaders, [][]string{loadRow(*load)}, load)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Load file (- for stdin, required)")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&ds, "ds", "", "Logical date (YYYY-MM-DD or RFC 3339)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newLoadShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show load details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			load, err := client.GetLoad(args[0])
			if err != nil {
				return err
			}

			out.Fields([][2]string{
				{"ID", load.ID},
				{"NAME", load.Name},
				{"STATUS", load.Status},
				{"ATTEMPT", strconv.Itoa(load.Attempt)},
				{"DESTINATION", load.Destination()},
				{"LOGICAL DATE", load.LogicalDate},
				{"STARTED", load.StartedAt},
				{"FINISHED", load.FinishedAt},
				{"RETURN VALUE", formatValue(load.ReturnValue)},
				{"ERROR", load.Error},
			}, load)
			return nil
		},
	}
}

func newLoadResultCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "result ID",
		Short: "Show the return value of a finished load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.GetLoadResult(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "STATUS", "RETURN_VALUE", "ERROR"},
				[][]string{{result.ID, result.Status, formatValue(result.ReturnValue), result.Error}},
				result,
			)
			return nil
		},
	}
}

func newLoadRetryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "retry ID",
		Short: "Requeue a failed load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			load, err := client.RetryLoad(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Load requeued: %s", load.ID))
			return nil
		},
	}
}
