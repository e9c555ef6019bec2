package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zen-systems/stagetrack/pkg/params"
	"github.com/zen-systems/stagetrack/pkg/stage"
)

func (a *app) addCmd() *cobra.Command {
	var (
		sets       []string
		paramsJSON string
		after      []string
		opts       stage.Options
	)

	cmd := &cobra.Command{
		Use:   "add <Class>",
		Short: "Store parameters for a stage and register it with dvc",
		Long: `Overlays --params-json and then every --set on the defaults of the class,
	stores the parameter set and runs dvc run for the resolved stage id.

	Use --after Class:ID to depend on the outs of an existing stage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.registry.Get(args[0])
			if err != nil {
				return err
			}

			overrides := params.Params{}
			if paramsJSON != "" {
				var raw any
				if err := json.Unmarshal([]byte(paramsJSON), &raw); err != nil {
					return fmt.Errorf("invalid --params-json: %w", err)
				}
				if overrides, err = params.ToParams(raw); err != nil {
					return err
				}
			}
			setValues, err := parseSets(sets)
			if err != nil {
				return err
			}
			overrides = overrides.Merge(setValues)

			opts.After = opts.After[:0]
			for _, s := range after {
				ref, err := stage.ParseRef(s)
				if err != nil {
					return err
				}
				opts.After = append(opts.After, ref)
			}

			record, err := a.newWriter().Write(cmd.Context(), n, overrides, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", record.StageName, record.ID)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a parameter (key=value, value parsed as YAML)")
	cmd.Flags().StringVar(&paramsJSON, "params-json", "", "override parameters with a JSON object")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing stage")
	cmd.Flags().BoolVar(&opts.Exec, "exec", false, "run the stage now instead of passing --no-exec")
	cmd.Flags().BoolVar(&opts.AlwaysChanged, "always-changed", false, "mark the stage as always changed")
	cmd.Flags().BoolVar(&opts.Slurm, "slurm", false, "run the job through srun")
	cmd.Flags().StringArrayVar(&after, "after", nil, "depend on the outs of stage Class:ID")

	return cmd
}

func (a *app) execCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "exec <Class>",
		Short: "Run a stage from its stored parameters (called by dvc)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.registry.Get(args[0])
			if err != nil {
				return err
			}
			_, err = a.newExecutor().Execute(cmd.Context(), n, id)
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "stage id")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
