package commands

import (
	cfg "github.com/lendfork/lendfork/cmd/config"
	"github.com/spf13/cobra"
)

// NewInitFilesCmd returns the command writing a default config file under
// the home directory.
func NewInitFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the lendfork home directory",
		RunE:  initFiles,
	}
}

func initFiles(cmd *cobra.Command, args []string) error {
	path, created, err := cfg.EnsureRoot(rootConfig.RootDir)
	if err != nil {
		return err
	}
	if created {
		logger.Info("Generated config file", "path", path)
	} else {
		logger.Info("Found config file", "path", path)
	}
	return nil
}
