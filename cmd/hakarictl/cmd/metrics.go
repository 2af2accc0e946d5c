package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/hakari/internal/model"
	"github.com/ashita-ai/hakari/internal/stats"
	"github.com/ashita-ai/hakari/sdk/go/hakari"
)

func aggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate FILE",
		Short: "Compute statistics over a JSON array of entity metrics",
		Long: `Compute statistics over entity metrics without storing them.

FILE holds a JSON array; "-" reads standard input:

	[{"entity_id": "s1", "data": {"accuracy": 0.9, "passed": true}}]

The computation runs locally unless --remote asks the server to do it.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, _ := cmd.Flags().GetBool("remote")
			if !remote {
				var entries []model.MetricEntry
				if err := readJSONInput(cmd, args[0], &entries); err != nil {
					return err
				}
				return printJSON(cmd, stats.ComputeRunMetrics(entries))
			}

			var entries []hakari.EntityData
			if err := readJSONInput(cmd, args[0], &entries); err != nil {
				return err
			}
			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			out, err := client.Aggregate(cmd.Context(), entries)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().Bool("remote", false, "aggregate on the server instead of locally")
	return cmd
}

func upsertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upsert FILE",
		Short: "Merge metric data into a run's stored records",
		Long: `Merge newly computed metric data into the stored records of a run.

Existing records keep the keys this call does not mention; missing records
are created. FILE holds a JSON array of {"entity_id", "data"} entries, or
with --run-level a single JSON object of run-level metrics. "-" reads
standard input.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run")
			runLevel, _ := cmd.Flags().GetBool("run-level")
			concurrency, _ := cmd.Flags().GetInt("lookup-concurrency")

			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			upserter := &hakari.Upserter{Store: client, LookupConcurrency: concurrency}

			var result *hakari.UpsertResult
			if runLevel {
				var data map[string]any
				if err := readJSONInput(cmd, args[0], &data); err != nil {
					return err
				}
				result, err = upserter.UpsertRunMetrics(cmd.Context(), runID, data)
			} else {
				var entries []hakari.EntityData
				if err := readJSONInput(cmd, args[0], &entries); err != nil {
					return err
				}
				result, err = upserter.UpsertScenarioMetrics(cmd.Context(), runID, entries)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d\n", len(result.Created), len(result.Updated))
			return err
		},
	}
	cmd.Flags().String("run", "", "run the metrics belong to")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().Bool("run-level", false, "FILE is a single run-level data object")
	cmd.Flags().Int("lookup-concurrency", 8, "parallel record lookups")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the aggregated scenario statistics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run")
			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			stats, err := client.RunStats(cmd.Context(), runID)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
	cmd.Flags().String("run", "", "run to aggregate")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}
