package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/gcs2bq/internal/gcpauth"
	"github.com/shaiso/gcs2bq/internal/hooks"
	"github.com/shaiso/gcs2bq/internal/telemetry"
	"github.com/shaiso/gcs2bq/internal/warehouse"
	"github.com/shaiso/gcs2bq/internal/worker"
)

// ExecResult — итог локального выполнения загрузки.
type ExecResult struct {
	Name        string `json:"name,omitempty"`
	Status      string `json:"status"`
	ReturnValue any    `json:"return_value"`
	Duration    string `json:"duration"`
	Error       string `json:"error,omitempty"`
}

// NewExecCmd создаёт команду локального выполнения загрузки без API и воркера.
//
// Учётные данные берутся из файла подключений (--connections),
// без него используются Application Default Credentials.
func NewExecCmd(outputFn func() *Output) *cobra.Command {
	var file string
	var connections string
	var inputs []string
	var ds string

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a load locally with the current credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if err := warehouse.ValidateLoadConfig(lf.Config); err != nil {
				return err
			}

			task, err := lf.Task()
			if err != nil {
				return err
			}

			store := gcpauth.NewStaticStore()
			if connections != "" {
				if store, err = gcpauth.LoadStaticStore(connections); err != nil {
					return fmt.Errorf("load connections: %w", err)
				}
			}

			logger := telemetry.NewLogger(os.Stderr, os.Getenv("LOG_LEVEL"), "text")
			google := hooks.NewGoogle(gcpauth.NewResolver(store, logger), logger)
			executor := worker.NewLoadExecutor(google, logger)

			task.MarkRunning()
			value, err := executor.Execute(cmd.Context(), task)
			if err != nil {
				task.MarkFailed(err.Error())
			} else {
				task.MarkSucceeded(value)
			}

			result := ExecResult{
				Name:        task.Name,
				Status:      string(task.Status),
				ReturnValue: task.ReturnValue,
				Duration:    task.Duration().Round(time.Millisecond).String(),
				Error:       task.Error,
			}
			out.Print(
				[]string{"NAME", "STATUS", "RETURN_VALUE", "DURATION"},
				[][]string{{result.Name, result.Status, formatValue(result.ReturnValue), result.Duration}},
				result,
			)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Load file (- for stdin, required)")
	cmd.Flags().StringVar(&connections, "connections", "", "Connections file (YAML)")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&ds, "ds", "", "Logical date (YYYY-MM-DD or RFC 3339)")
	cmd.MarkFlagRequired("file")

	return cmd
}
