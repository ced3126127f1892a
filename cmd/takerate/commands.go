package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/MetricsFox/app/models"
	"github.com/ManuelReschke/MetricsFox/app/repository"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/constants"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/statistics"
	"github.com/ManuelReschke/MetricsFox/internal/pkg/takerate"
)

type deps struct {
	records func(ctx context.Context) ([]models.SubscriptionRecord, error)
	repo    func() (repository.TakeRateRepository, error)
}

type saveFlags struct {
	save        bool
	period      string
	periodStart string
	note        string
}

func (s *saveFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&s.save, "save", false, "Store the result in the take rate table")
	cmd.Flags().StringVar(&s.period, "period", "", "Display label of the month, e.g. \"July 2024\"")
	cmd.Flags().StringVar(&s.periodStart, "period-start", "", "First day of the month (YYYY-MM-DD)")
	cmd.Flags().StringVar(&s.note, "note", "", "Free text stored with the entry")
}

func (s *saveFlags) start() (time.Time, error) {
	if strings.TrimSpace(s.period) == "" || s.periodStart == "" {
		return time.Time{}, fmt.Errorf("--period and --period-start are required with --save")
	}
	start, err := time.Parse(statistics.DateLayout, s.periodStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --period-start: %w", err)
	}
	return start, nil
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "takerate",
		Short:         "Reconcile email lists and maintain take rate history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newComputeCmd(d),
		newBillingCmd(d),
		newRecordCmd(d),
		newListCmd(d),
		newDeleteCmd(d),
		newVersionCmd(),
	)
	return root
}

func newComputeCmd(d deps) *cobra.Command {
	var (
		signupsPath string
		cohortPath  string
		asJSON      bool
		sf          saveFlags
	)
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compare a signup list against a cohort list",
		Example: `  takerate compute --signups signups.txt --cohort new-members.txt
  takerate compute --signups signups.txt --cohort new-members.txt --save --period "July 2024" --period-start 2024-07-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			signups, err := readEmailFile(signupsPath)
			if err != nil {
				return err
			}
			cohort, err := readEmailFile(cohortPath)
			if err != nil {
				return err
			}
			res := takerate.Reconcile(signups, cohort)
			return finish(cmd, d, res, asJSON, &sf)
		},
	}
	cmd.Flags().StringVar(&signupsPath, "signups", "", "File with one signup email per line")
	cmd.Flags().StringVar(&cohortPath, "cohort", "", "File with one cohort email per line")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	_ = cmd.MarkFlagRequired("signups")
	_ = cmd.MarkFlagRequired("cohort")
	sf.register(cmd)
	return cmd
}

func newBillingCmd(d deps) *cobra.Command {
	var (
		cohortPath string
		productID  string
		startDate  string
		endDate    string
		asJSON     bool
		sf         saveFlags
	)
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Compare a cohort list against product signups from billing",
		Example: `  takerate billing --cohort new-members.txt --product prod_123 --start 2024-07-01 --end 2024-07-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := statistics.ParseDateRange(startDate, endDate)
			if err != nil {
				return err
			}
			cohort, err := readEmailFile(cohortPath)
			if err != nil {
				return err
			}
			records, err := d.records(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch subscriptions: %w", err)
			}
			signups := takerate.SignupEmails(records, productID, rng)
			res := takerate.Reconcile(signups, cohort)
			return finish(cmd, d, res, asJSON, &sf)
		},
	}
	cmd.Flags().StringVar(&cohortPath, "cohort", "", "File with one cohort email per line")
	cmd.Flags().StringVar(&productID, "product", "", "Billing product id whose customers count as signups")
	cmd.Flags().StringVar(&startDate, "start", "", "Only signups created on or after this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end", "", "Only signups created on or before this day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	_ = cmd.MarkFlagRequired("cohort")
	_ = cmd.MarkFlagRequired("product")
	sf.register(cmd)
	return cmd
}

func newRecordCmd(d deps) *cobra.Command {
	var (
		signups    int
		newMembers int
		sf         saveFlags
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Store a take rate entry from known counts",
		Example: `  takerate record --period "July 2024" --period-start 2024-07-01 --signups 34 --new-members 94`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if signups < 0 || newMembers < 0 {
				return fmt.Errorf("counts must not be negative")
			}
			if signups > newMembers {
				return fmt.Errorf("signups (%d) exceed new members (%d)", signups, newMembers)
			}
			start, err := sf.start()
			if err != nil {
				return err
			}
			entry := takerate.NewEntry(sf.period, start, signups, newMembers, sf.note)
			return save(cmd, d, &entry)
		},
	}
	cmd.Flags().IntVar(&signups, "signups", 0, "Number of cohort members that signed up")
	cmd.Flags().IntVar(&newMembers, "new-members", 0, "Cohort size")
	cmd.Flags().StringVar(&sf.period, "period", "", "Display label of the month, e.g. \"July 2024\"")
	cmd.Flags().StringVar(&sf.periodStart, "period-start", "", "First day of the month (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sf.note, "note", "", "Free text stored with the entry")
	_ = cmd.MarkFlagRequired("period")
	_ = cmd.MarkFlagRequired("period-start")
	_ = cmd.MarkFlagRequired("new-members")
	return cmd
}

func newListCmd(d deps) *cobra.Command {
	var asJSON, latest bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the stored take rate history",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := d.repo()
			if err != nil {
				return err
			}
			var entries []models.TakeRateEntry
			if latest {
				entry, err := repo.Latest(cmd.Context())
				if err != nil {
					return err
				}
				if entry != nil {
					entries = append(entries, *entry)
				}
			} else {
				entries, err = repo.List(cmd.Context())
				if err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No take rate entries recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPERIOD\tSTART\tSIGNUPS\tNEW MEMBERS\tRATE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%.1f%%\n",
					e.ID, e.Period, e.PeriodStart.Format(statistics.DateLayout), e.Signups, e.NewMembers, e.Rate)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	cmd.Flags().BoolVar(&latest, "latest", false, "Only show the most recent entry")
	return cmd
}

func newDeleteCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Short:   "Remove a take rate entry by id",
		Example: `  takerate delete 3`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid id %q", args[0])
			}
			repo, err := d.repo()
			if err != nil {
				return err
			}
			if err := repo.Delete(cmd.Context(), uint(id)); err != nil {
				return fmt.Errorf("delete take rate entry %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %d\n", id)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "takerate %s\n", constants.Version)
		},
	}
}

func finish(cmd *cobra.Command, d deps, res takerate.Result, asJSON bool, sf *saveFlags) error {
	out := cmd.OutOrStdout()
	if asJSON {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Cohort size: %d\n", res.CohortSize)
		fmt.Fprintf(out, "Signups:     %d\n", len(res.Matched))
		fmt.Fprintf(out, "Take rate:   %.1f%%\n", res.Rate)
	}
	if len(res.Invalid) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %d entries without @: %s\n", len(res.Invalid), strings.Join(res.Invalid, ", "))
	}
	if !sf.save {
		return nil
	}

	start, err := sf.start()
	if err != nil {
		return err
	}
	entry := res.Entry(sf.period, start, sf.note)
	return save(cmd, d, &entry)
}

func save(cmd *cobra.Command, d deps, entry *models.TakeRateEntry) error {
	repo, err := d.repo()
	if err != nil {
		return err
	}
	day := entry.PeriodStart.Format(statistics.DateLayout)
	existing, err := repo.GetByPeriodStart(cmd.Context(), day)
	if err != nil {
		return fmt.Errorf("look up take rate entry: %w", err)
	}
	if existing != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Replacing %s (%s) at %.1f%%\n", existing.Period, day, existing.Rate)
	}
	if err := repo.Upsert(cmd.Context(), entry); err != nil {
		return fmt.Errorf("save take rate entry: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%s) at %.1f%%\n", entry.Period, entry.PeriodStart.Format(statistics.DateLayout), entry.Rate)
	return nil
}

func readEmailFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return takerate.ReadEmails(f)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
