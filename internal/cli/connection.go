package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/gcs2bq/internal/domain"
)

// NewConnectionCmd создаёт группу команд для управления подключениями.
func NewConnectionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connection",
		Aliases: []string{"conn"},
		Short:   "Manage Google Cloud connections",
	}

	cmd.AddCommand(
		newConnectionListCmd(clientFn, outputFn),
		newConnectionShowCmd(clientFn, outputFn),
		newConnectionSetCmd(clientFn, outputFn),
		newConnectionDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

var connectionHeaders = []string{"ID", "PROJECT", "CREDENTIALS", "HMAC", "UPDATED"}

func connectionRow(c ConnectionResponse) []string {
	creds := "default"
	switch {
	case c.KeyfileJSON != "":
		creds = "keyfile_json"
	case c.KeyfilePath != "":
		creds = c.KeyfilePath
	}
	return []string{c.ID, c.Project, creds, strconv.FormatBool(c.UsesHMAC), c.UpdatedAt}
}

func newConnectionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			conns, err := client.ListConnections()
			if err != nil {
				return err
			}

			rows := make([][]string, len(conns))
			for i, c := range conns {
				rows[i] = connectionRow(c)
			}

			out.Print(connectionHeaders, rows, conns)
			return nil
		},
	}
}

func newConnectionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show connection details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			conn, err := client.GetConnection(args[0])
			if err != nil {
				return err
			}

			out.Print(connectionHeaders, [][]string{connectionRow(*conn)}, conn)
			return nil
		},
	}
}

func newConnectionSetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var conn domain.Connection
	var keyfile string

	cmd := &cobra.Command{
		Use:   "set ID",
		Short: "Create or replace a connection",
		Long: `Create or replace a connection.

Settings are read from --file (YAML) and overridden by flags.
--keyfile uploads the key contents, --keyfile-path stores only the path
that the worker will read.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := domain.Connection{}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(data, &req); err != nil {
					return fmt.Errorf("parse connection file: %w", err)
				}
			}
			mergeConnection(&req, conn)

			if keyfile != "" {
				data, err := os.ReadFile(keyfile)
				if err != nil {
					return err
				}
				req.KeyfileJSON = string(data)
			}

			saved, err := client.PutConnection(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Connection saved: %s", saved.ID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Connection file (YAML)")
	cmd.Flags().StringVar(&conn.Project, "project", "", "Default project")
	cmd.Flags().StringVar(&keyfile, "keyfile", "", "Service account key to upload")
	cmd.Flags().StringVar(&conn.KeyfilePath, "keyfile-path", "", "Service account key path on the worker")
	cmd.Flags().StringSliceVar(&conn.Scopes, "scopes", nil, "OAuth scopes")
	cmd.Flags().StringVar(&conn.HMACAccessKey, "hmac-access-key", "", "GCS HMAC access key")
	cmd.Flags().StringVar(&conn.HMACSecretKey, "hmac-secret-key", "", "GCS HMAC secret key")
	cmd.Flags().StringVar(&conn.Endpoint, "endpoint", "", "S3-compatible endpoint for HMAC access")

	return cmd
}

// mergeConnection переносит непустые поля из флагов.
func mergeConnection(dst *domain.Connection, flags domain.Connection) {
	if flags.Project != "" {
		dst.Project = flags.Project
	}
	if flags.KeyfilePath != "" {
		dst.KeyfilePath = flags.KeyfilePath
	}
	if len(flags.Scopes) > 0 {
		dst.Scopes = flags.Scopes
	}
	if flags.HMACAccessKey != "" {
		dst.HMACAccessKey = flags.HMACAccessKey
	}
	if flags.HMACSecretKey != "" {
		dst.HMACSecretKey = flags.HMACSecretKey
	}
	if flags.Endpoint != "" {
		dst.Endpoint = flags.Endpoint
	}
}

func newConnectionDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteConnection(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Connection deleted: %s", args[0]))
			return nil
		},
	}
}
