package commands

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <incident-id>",
	Short: "Resume an investigation from its last checkpoint",
	Long: `Load the stored checkpoint for an incident and continue from the first
unfinished stage. Finished investigations are returned without re-running.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.service.Resume(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), result)
	},
}
