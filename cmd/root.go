package cmd

import (
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tinysh/tinysh/core/config"
	"github.com/tinysh/tinysh/core/engine"
	"github.com/tinysh/tinysh/core/shell"
)

var cfgPath string

func loadConfig() (*config.Configuration, error) {
	return config.LoadOrDefault(afero.NewOsFs(), cfgPath)
}

// rootCmd represents the base command when called without any subcommands:
// the interactive shell itself.
var rootCmd = &cobra.Command{
	Use:   "tinysh",
	Short: "A tiny job-control shell",
	Long: `An interactive command interpreter with pipelines, output
redirection, and job control (fg, bg, jobs, &).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		eng := engine.New(cfg)
		eng.Start()
		defer eng.Close()

		repl, err := shell.NewREPL(eng, cfg.Prompt, os.Stdin, os.Stdout, os.Stderr)
		if err != nil {
			return err
		}
		os.Exit(repl.Run())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
}
