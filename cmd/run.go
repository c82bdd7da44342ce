package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tinysh/tinysh/core/engine"
)

// runCmd executes a single command line non-interactively and exits with
// the pipeline's status.
var runCmd = &cobra.Command{
	Use:   "run -- command [arg|'|'|>|>>]...",
	Short: "Run one pipeline and exit with its status",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		eng := engine.New(cfg)
		eng.Start()
		defer eng.Close()

		if err := eng.Eval(args, strings.Join(args, " ")); err != nil {
			cmd.PrintErrf("tinysh: %v\n", err)
		}
		os.Exit(eng.LastStatus())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
