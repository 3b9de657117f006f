package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/gaci-appointment-queue/internal/appointment"
)

// Version is set at build time.
var Version = "dev"

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Archive confirmed appointments from past days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *appointment.Service) error {
				n, err := svc.ArchivePastDue(ctx)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(out(cmd), map[string]int{"archived": n})
				}
				fmt.Fprintf(out(cmd), "Archived %d appointment(s).\n", n)
				return nil
			})
		},
	}
}

func newLimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limit",
		Short: "Show or change the daily confirmation limit",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show the current daily limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *appointment.Service) error {
				n, err := svc.DailyLimit(ctx)
				if err != nil {
					return err
				}
				return printLimit(cmd, n)
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <n>",
		Short: "Change the daily limit",
		Long:  "Change how many appointments may be confirmed per date. Existing bookings above the new limit are kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid limit %q: must be a non-negative integer", args[0])
			}
			return withService(cmd, func(ctx context.Context, svc *appointment.Service) error {
				if err := svc.SetDailyLimit(ctx, n); err != nil {
					return err
				}
				return printLimit(cmd, n)
			})
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func printLimit(cmd *cobra.Command, n int) error {
	if isJSON() {
		return printJSON(out(cmd), map[string]int{"daily_limit": n})
	}
	fmt.Fprintf(out(cmd), "Daily limit: %d\n", n)
	return nil
}

func newWaitlistCmd() *cobra.Command {
	var expiring bool

	cmd := &cobra.Command{
		Use:   "waitlist",
		Short: "Show the home-city waiting list in service order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *appointment.Service) error {
				var (
					entries []appointment.WaitingEntry
					err     error
				)
				if expiring {
					entries, err = svc.ExpiringSoon(ctx)
				} else {
					entries, err = svc.WaitingList(ctx)
				}
				if err != nil {
					return err
				}
				if isJSON() {
					if entries == nil {
						entries = []appointment.WaitingEntry{}
					}
					return printJSON(out(cmd), entries)
				}
				return printWaitingTable(out(cmd), entries)
			})
		},
	}

	cmd.Flags().BoolVar(&expiring, "expiring", false, "only show entries close to or past expiry")

	return cmd
}

func newCalendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendar <date>",
		Short: "Show slot availability for a date (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := time.Parse("2006-01-02", args[0]); err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", args[0])
			}
			return withService(cmd, func(ctx context.Context, svc *appointment.Service) error {
				av, err := svc.Availability(ctx, args[0])
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(out(cmd), av)
				}
				printAvailability(out(cmd), av)
				return nil
			})
		},
	}
}

func newAgendaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agenda",
		Short: "List confirmed appointments in schedule order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *appointment.Service) error {
				appts, err := svc.Agenda(ctx)
				if err != nil {
					return err
				}
				if isJSON() {
					if appts == nil {
						appts = []appointment.Appointment{}
					}
					return printJSON(out(cmd), appts)
				}
				return printAgendaTable(out(cmd), appts, svc.Location())
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out(cmd), "gacictl %s\n", Version)
		},
	}
}
