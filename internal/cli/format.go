package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hackgods/gaci-appointment-queue/internal/appointment"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printWaitingTable prints the sorted waiting list with expiry columns.
func printWaitingTable(out io.Writer, entries []appointment.WaitingEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No appointments waiting.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "#\tNAME\tCONTACT\tPRIORITY\tDAYS\tEXPIRES IN\tFLAG"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "-\t----\t-------\t--------\t----\t----------\t----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for i, e := range entries {
		priority := "-"
		if e.IsPriority {
			priority = "yes"
		}
		flag := "-"
		switch {
		case e.Expired:
			flag = "expired"
		case e.ExpiringSoon:
			flag = "expiring"
		}

		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			i+1, truncate(e.FullName, 32), e.PrimaryContact, priority,
			e.DaysWaiting, e.DaysUntilExpiry, flag); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Fprintf(out, "\nTotal: %d waiting\n", len(entries))
	return nil
}

// printAgendaTable prints confirmed appointments in schedule order.
func printAgendaTable(out io.Writer, appts []appointment.Appointment, loc *time.Location) error {
	if len(appts) == 0 {
		fmt.Fprintln(out, "No confirmed appointments.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "WHEN\tNAME\tCONTACT\tCITY"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "----\t----\t-------\t----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, a := range appts {
		when := "-"
		if a.ScheduledAt != nil {
			when = a.ScheduledAt.In(loc).Format("2006-01-02 15:04")
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			when, truncate(a.FullName, 32), a.PrimaryContact, a.City); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	return w.Flush()
}

// printAvailability prints one calendar day as a slot grid.
func printAvailability(out io.Writer, av *appointment.DayAvailability) {
	taken := make(map[string]bool, len(av.Occupied))
	for _, l := range av.Occupied {
		taken[l] = true
	}

	fmt.Fprintf(out, "Date:      %s\n", av.Date)
	fmt.Fprintf(out, "Booked:    %d / %d\n", av.OccupiedCount, av.DailyLimit)
	fmt.Fprintf(out, "Remaining: %d\n\n", av.Remaining)

	for _, l := range av.Slots {
		mark := "free"
		if taken[l] {
			mark = "taken"
		}
		fmt.Fprintf(out, "  %s  %s\n", l, mark)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n-3]) + "..."
}
