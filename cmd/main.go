package main

import (
	"path/filepath"

	"github.com/lendfork/lendfork/cmd/commands"
	"github.com/lendfork/lendfork/libs"
	"github.com/tendermint/tendermint/libs/cli"
)

func main() {
	commands.RootCmd.AddCommand(
		commands.NewInitFilesCmd(),
		commands.AprCmd,
		commands.NewMonPolCmd(),
		commands.NewOracleCmd(),
		commands.VersionCmd,
	)

	executor := cli.PrepareBaseCmd(commands.RootCmd, "LENDFORK", filepath.Join(libs.GetHome(), ".lendfork"))
	if err := executor.Execute(); err != nil {
		panic(err)
	}
}
