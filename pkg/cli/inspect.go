package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zen-systems/stagetrack/pkg/evidence"
	"github.com/zen-systems/stagetrack/pkg/files"
	"github.com/zen-systems/stagetrack/pkg/params"
	"github.com/zen-systems/stagetrack/pkg/pipeline"
)

func (a *app) paramsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Inspect the parameter store",
	}
	cmd.AddCommand(a.paramsShowCmd())
	cmd.AddCommand(a.paramsFindCmd())
	return cmd
}

func (a *app) paramsShowCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "show [Class]",
		Short: "Print stored parameter sets as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.store()
			if len(args) == 0 {
				if id != "" {
					return fmt.Errorf("--id requires a class")
				}
				doc, err := store.LoadAll()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			}

			class := args[0]
			if id != "" {
				p, err := store.Load(class, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			}

			entries, err := store.Entries(class)
			if err != nil {
				return err
			}
			doc := params.NewDocument()
			for _, entry := range entries {
				doc.Set(class, entry.ID, entry.Params)
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "only print this stage id")
	return cmd
}

func (a *app) paramsFindCmd() *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "find <Class>",
		Short: "Print the ids whose parameters match every --set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseSets(sets)
			if err != nil {
				return err
			}
			entries, err := a.store().Entries(args[0])
			if err != nil {
				return err
			}
			for _, id := range params.Find(entries, filter) {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "match a parameter (key=value, value parsed as YAML)")
	return cmd
}

func (a *app) pathsCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "paths <Class>",
		Short: "Show the files of a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.registry.Get(args[0])
			if err != nil {
				return err
			}
			f := files.New(a.cfg.Layout(), n.ClassName(), id, n.Schema())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FIELD\tROLE\tPATH")
			for _, field := range n.Schema() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", field.Name, field.Role, f.Path(field))
			}
			fmt.Fprintf(w, "-\tparams\t%s\n", f.ParamsRef())
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&id, "id", "0", "stage id")
	return cmd
}

func (a *app) stagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List registered stage classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CLASS\tMULTI USE\tFIELDS")
			for _, class := range a.registry.Classes() {
				n, err := a.registry.Get(class)
				if err != nil {
					return err
				}
				var fields []string
				for _, field := range n.Schema() {
					fields = append(fields, fmt.Sprintf("%s:%s", field.Role, field.Name))
				}
				multiUse := a.cfg.MultiUse(class, n.IsMultiUse())
				fmt.Fprintf(w, "%s\t%t\t%s\n", class, multiUse, strings.Join(fields, ", "))
			}
			return w.Flush()
		},
	}
}

func (a *app) depsCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "deps <Class>",
		Short: "Print the deps dvc.yaml records for a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := pipeline.LoadManifest(a.cfg.DVC.File)
			if err != nil {
				return err
			}
			st, ok := manifest.Lookup(args[0], id)
			if !ok {
				return fmt.Errorf("stage %s not found in %s", pipeline.StageName(args[0], id), a.cfg.DVC.File)
			}
			for _, dep := range st.Deps {
				fmt.Fprintln(cmd.OutOrStdout(), dep)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "stage id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <run-id>",
		Short: "Check that the outputs of an executed run are unchanged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Evidence.Dir == "" {
				return fmt.Errorf("evidence is disabled")
			}
			runDir := filepath.Join(a.cfg.Evidence.Dir, args[0])
			if err := evidence.VerifyRun(runDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s verified\n", args[0])
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
