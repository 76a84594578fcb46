package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/certstudio/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

func (cli *commandLine) migrate(cmd *cobra.Command, args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return gooseRunFunc(cmd.Context(), cli.db, args[0], args[1:]...)
}
