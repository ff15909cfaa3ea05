package cmd

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/tokendesk/otc-desk/internal/config"
	"github.com/tokendesk/otc-desk/internal/postgres"
	"github.com/tokendesk/otc-desk/modules/otc"
	otcrepository "github.com/tokendesk/otc-desk/modules/otc/repository/postgres"
	"github.com/tokendesk/otc-desk/pkg/logger"
	"github.com/tokendesk/otc-desk/pkg/logger/slogx"
)

type exportCmdOptions struct {
	Since string
}

// NewExportCommand exports executed deals to the configured S3 archive as
// a one-shot batch job.
func NewExportCommand() *cobra.Command {
	opts := &exportCmdOptions{}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export executed deals to the S3 archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportHandler(opts, cmd)
		},
	}

	flags := exportCmd.Flags()
	flags.StringVar(&opts.Since, "since", "", "Only export deals executed at or after this RFC3339 time. Default is the beginning of time.")

	return exportCmd
}

func exportHandler(opts *exportCmdOptions, cmd *cobra.Command) error {
	conf := config.Load()
	ctx := cmd.Context()

	if conf.Modules.OTC.Archive.Disabled {
		return errors.New("archive is disabled in configuration")
	}

	var since time.Time
	if opts.Since != "" {
		parsed, err := time.Parse(time.RFC3339, opts.Since)
		if err != nil {
			return errors.Wrap(err, "failed to parse --since")
		}
		since = parsed
	}

	pg, err := postgres.NewPool(ctx, conf.Modules.OTC.Postgres)
	if err != nil {
		return errors.Wrap(err, "can't create postgres connection pool")
	}
	defer pg.Close()

	archiver, err := otc.NewArchiver(ctx, otcrepository.NewRepository(pg), conf.Modules.OTC.Archive)
	if err != nil {
		return errors.Wrap(err, "can't create archiver")
	}

	key, err := archiver.Export(ctx, since)
	if err != nil {
		return errors.Wrap(err, "failed to export deals")
	}
	if key == "" {
		logger.InfoContext(ctx, "No executed deals to export")
		return nil
	}
	logger.InfoContext(ctx, "Export complete", slogx.String("key", key))
	return nil
}
