package main

import (
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
)

var (
	isTerminal = term.IsTerminal // mockable

	errNoDatabase = errors.New("this command needs a database; the memory engine has none")
	errTerminal   = errors.New("refusing to write a PNG to a terminal; use --output or redirect stdout")
)

type commandLine struct {
	conf     *core.Config
	db       *sqlx.DB // nil with the memory engine
	designs  *certificate.Service
	exporter *certificate.Exporter
}

func newRootCommand(cli *commandLine) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "certstudio-admin",
		Short:         "Administration commands for the certificate designer",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(
		cli.newMigrateCommand(),
		cli.newTokenCommand(),
		cli.newDumpCommand(),
		cli.newImportCommand(),
		cli.newExportCommand(),
	)
	return rootCmd
}

func (cli *commandLine) newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run database migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version)",
		Example: `  certstudio-admin migrate up
  certstudio-admin migrate down-to 1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.migrate(cmd, args)
		},
	}
}

func (cli *commandLine) newTokenCommand() *cobra.Command {
	var p core.Person
	var roles []string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token",
		Example: `  certstudio-admin token --user 42 --role instructor`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.token(cmd.OutOrStdout(), p, roles)
		},
	}
	cmd.Flags().StringVar(&p.ID, "user", "", "id of the user the token is issued to (required)")
	cmd.Flags().StringVar(&p.Username, "username", "", "username claim")
	cmd.Flags().StringVar(&p.Email, "email", "", "email claim")
	cmd.Flags().StringSliceVar(&roles, "role", []string{"instructor"}, "roles claim")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (cli *commandLine) newDumpCommand() *cobra.Command {
	var owner, output string
	var filter certificate.QueryFilter
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the designs of an owner as YAML",
		Example: `  certstudio-admin dump --owner 42 --output designs.yaml`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter.OwnerID = owner
			return withOutput(cmd, output, func(w io.Writer) error {
				return cli.dump(cmd.Context(), w, filter)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner of the designs (required)")
	cmd.Flags().StringVar(&filter.Search, "search", "", "only designs whose title or recipient matches")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write to (default stdout)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func (cli *commandLine) newImportCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Render and save the designs of a YAML file",
		Example: `  certstudio-admin import designs.yaml --owner 42`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return cli.importDesigns(cmd.Context(), cmd.OutOrStdout(), f, owner)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner of the imported designs; defaults to the owner in the file")
	return cmd
}

func (cli *commandLine) newExportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export DESIGN_ID",
		Short: "Write the stored certificate of a design",
		Example: `  certstudio-admin export 2b7e1f0c-... -o certificate.png
  certstudio-admin export 2b7e1f0c-... > certificate.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" && stdoutIsTerminal(cmd.OutOrStdout()) {
				return errTerminal
			}
			return withOutput(cmd, output, func(w io.Writer) error {
				return cli.export(cmd.Context(), w, args[0])
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write to (default stdout)")
	return cmd
}

// withOutput runs write against the file `path`, or against the command output when path is empty.
func withOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
