package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/handcursor/internal/pose"
)

var posesCmd = &cobra.Command{
	Use:   "poses",
	Short: "Manage trained hand poses",
}

var posesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored poses",
	Example: `  handcursor poses list
  handcursor poses list --format json`,
	RunE: runPosesList,
}

var posesTrainCmd = &cobra.Command{
	Use:   "train ID",
	Short: "Train a pose template from its recorded samples",
	Long: `Average the recorded samples of a pose into its template. A running
handcursor picks the new template up after its next reload from the web UI.`,
	Args: cobra.ExactArgs(1),
	RunE: runPosesTrain,
}

var posesFormat string

func init() {
	rootCmd.AddCommand(posesCmd)
	posesCmd.AddCommand(posesListCmd, posesTrainCmd)
	posesListCmd.Flags().StringVarP(&posesFormat, "format", "f", "table", "output format (table, json)")
}

func runPosesList(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	poses, err := st.Poses().List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if posesFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(poses)
	}

	if len(poses) == 0 {
		fmt.Fprintln(out, "No poses stored")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tSAMPLES\tTRAINED\tENABLED")
	for _, p := range poses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			p.ID, p.Name, p.State, p.Samples, yesNo(p.Trained), yesNo(p.Enabled))
	}
	return w.Flush()
}

func runPosesTrain(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := pose.TrainStored(st, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Trained %s from %d samples\n", args[0], n)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
