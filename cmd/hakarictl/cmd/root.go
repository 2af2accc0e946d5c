// Package cmd holds the hakarictl command tree.
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ashita-ai/hakari/sdk/go/hakari"
)

const (
	urlFlag     = "url"
	tokenFlag   = "token"
	projectFlag = "project"
	timeoutFlag = "timeout"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hakarictl",
		Short:        "hakarictl records and aggregates evaluation metrics on a Hakari server.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String(urlFlag, envOr("HAKARI_URL", "http://localhost:8080"), "Hakari server URL")
	cmd.PersistentFlags().String(tokenFlag, os.Getenv("HAKARI_TOKEN"), "bearer token")
	cmd.PersistentFlags().String(projectFlag, os.Getenv("HAKARI_PROJECT_ID"), "project the metrics belong to")
	cmd.PersistentFlags().Duration(timeoutFlag, 30*time.Second, "per-request timeout")

	cmd.AddCommand(
		aggregateCmd(),
		upsertCmd(),
		statsCmd(),
		tokenCmd(),
		keygenCmd(),
	)

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// clientFromFlags builds an SDK client from the persistent connection flags.
func clientFromFlags(cmd *cobra.Command) (*hakari.Client, error) {
	baseURL, _ := cmd.Flags().GetString(urlFlag)
	token, _ := cmd.Flags().GetString(tokenFlag)
	projectID, _ := cmd.Flags().GetString(projectFlag)
	timeout, _ := cmd.Flags().GetDuration(timeoutFlag)
	return hakari.NewClient(hakari.Config{
		BaseURL:   baseURL,
		Token:     token,
		ProjectID: projectID,
		Timeout:   timeout,
	})
}

// readJSONInput decodes path into dest. A path of "-" reads standard input.
func readJSONInput(cmd *cobra.Command, path string, dest any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path) //nolint:gosec // the operator names the file
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	dec := json.NewDecoder(r)
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
