package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tinysh/tinysh/core/config"
)

// initCmd writes a default configuration file for editing.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, err := config.Write(afero.NewOsFs(), cfgPath)
		if err != nil {
			return err
		}
		cmd.Printf("wrote %s\n", dest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
