// gcs2bq — инструмент командной строки для загрузок GCS → BigQuery.
//
// Использование:
//
//	gcs2bq [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	load        Загрузки через API (submit, list, show, result, retry)
//	connection  Подключения Google Cloud
//	exec        Локальное выполнение файла загрузки
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/gcs2bq/internal/cli"
	"github.com/shaiso/gcs2bq/internal/config"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "gcs2bq",
		Short:         "gcs2bq CLI — load files from Cloud Storage into BigQuery",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", config.Load().APIURL, "API server URL (env GCS2BQ_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewLoadCmd(clientFn, outputFn),
		cli.NewConnectionCmd(clientFn, outputFn),
		cli.NewExecCmd(outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
