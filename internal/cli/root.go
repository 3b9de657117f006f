// Package cli defines the cobra command tree for gacictl.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/gaci-appointment-queue/internal/appointment"
	"github.com/hackgods/gaci-appointment-queue/internal/bootstrap"
	"github.com/hackgods/gaci-appointment-queue/internal/config"
	"github.com/hackgods/gaci-appointment-queue/internal/logging"
)

var (
	flagFormat   string
	flagOperator string
	flagVerbose  bool
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gacictl",
		Short:         "Administer the identity-document appointment queue",
		Long:          "Administrative commands for the appointment queue. Uses the same STORE_BACKEND and TIMEZONE settings as the api-server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagOperator, "operator", "gacictl", "operator name recorded in the audit log")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log backend activity to stderr")

	root.AddCommand(
		newSweepCmd(),
		newLimitCmd(),
		newWaitlistCmd(),
		newCalendarCmd(),
		newAgendaCmd(),
		newVersionCmd(),
	)

	return root
}

// withService opens the configured backend, runs fn against the service and
// closes the backend again.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *appointment.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := zerolog.Nop()
	if flagVerbose {
		log = logging.NewWithWriter(cfg.Env, cmd.ErrOrStderr())
	}

	ctx := appointment.WithActor(cmd.Context(), flagOperator)

	backend, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("opening backend: %w", err)
	}
	defer backend.Close()

	return fn(ctx, backend.Service(cfg))
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
