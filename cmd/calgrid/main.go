package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"calgrid/internal/config"
	"calgrid/internal/date"
	"calgrid/internal/events"
	"calgrid/internal/ics"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/web"
)

const version = "0.1.0"

// rootFlags holds the flags shared by every command.
type rootFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "calgrid",
		Short:         "Calendar grid layout and navigation service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "/etc/calgrid/config.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config if set)")

	root.AddCommand(
		newServeCmd(flags),
		newMonthCmd(flags),
		newWeekCmd(flags),
		newImportCmd(flags),
	)
	return root
}

// loadConfig loads the config file and applies the log level.
func loadConfig(flags *rootFlags) (*config.Config, *time.Location, error) {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return nil, nil, err
	}

	level := conf.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	loc := time.Local
	if conf.Timezone != "" {
		if loc, err = time.LoadLocation(conf.Timezone); err != nil {
			return nil, nil, fmt.Errorf("timezone %q: %w", conf.Timezone, err)
		}
	}
	return conf, loc, nil
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appLog.Info("calgrid starting", "version", version)

			conf, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				conf.Listen = listen
			}

			appLog.Info("effective config",
				"listen", conf.Listen,
				"locale", conf.Locale,
				"timezone", conf.Timezone,
				"first_week_day", conf.FirstWeekDay,
				"default_mode", conf.DefaultMode,
				"refresh", conf.RefreshCron,
				"source_count", len(conf.Sources),
			)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					appLog.Info("signal received, shutting down", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()

			store := events.NewStore()
			srv, err := web.NewServer(conf, store, nil)
			if err != nil {
				return err
			}
			if n, errs := srv.ReloadSources(ctx); len(errs) > 0 {
				appLog.Warn("initial import incomplete", "loaded", n, "failed", len(errs))
			}

			sched, err := web.NewScheduler(srv, conf.RefreshCron)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			if err := web.StartServer(ctx, srv); err != nil {
				appLog.Error("http server failed", err)
				return err
			}
			appLog.Info("calgrid exiting")
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func newMonthCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "month [YYYY-MM]",
		Short: "Print the month grid with the configured sources laid out",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, loc, err := loadConfig(flags)
			if err != nil {
				return err
			}

			t := time.Now().In(loc)
			if len(args) == 1 {
				if t, err = time.ParseInLocation("2006-01", args[0], loc); err != nil {
					return fmt.Errorf("%w: %q", date.ErrInvalidDate, args[0])
				}
			}
			m, err := date.NewMonth(t, conf.Locale)
			if err != nil {
				return err
			}

			cells := date.CalendarDaysOfMonth(m.Year, m.MonthIndex, conf.FirstWeekDay, loc)
			evs := loadEvents(cmd.Context(), conf, loc, cells)
			plan := layout.LayoutMonth(cells, evs)

			title := fmt.Sprintf("%s %d", m.Name, m.Year)
			return renderGrid(cmd.OutOrStdout(), title, date.WeekDayNames(conf.FirstWeekDay, conf.Locale), plan.Weeks, plan.Capacity)
		},
	}
}

func newWeekCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "week [YYYY-MM-DD]",
		Short: "Print the week containing a date with the configured sources laid out",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, loc, err := loadConfig(flags)
			if err != nil {
				return err
			}

			t := time.Now().In(loc)
			if len(args) == 1 {
				if t, err = date.ParseDate(args[0], loc); err != nil {
					return err
				}
			}
			w, err := date.NewWeek(t, conf.FirstWeekDay, conf.Locale)
			if err != nil {
				return err
			}

			cells := date.WeekCells(t, conf.FirstWeekDay)
			short, long := events.Split(loadEvents(cmd.Context(), conf, loc, cells))
			capacity := layout.Capacity(5)
			plan := layout.LayoutWeek(cells, short, long, capacity)

			return renderGrid(cmd.OutOrStdout(), w.DisplayedMonth, date.WeekDayNames(conf.FirstWeekDay, conf.Locale), []layout.WeekPlan{plan}, capacity)
		},
	}
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	var (
		asJSON   bool
		sourceID string
		color    string
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "import <file.ics>",
		Short: "Parse an ICS file and print the events it expands to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, loc, err := loadConfig(flags)
			if err != nil {
				return err
			}

			rangeStart, rangeEnd := ics.DefaultWindow(time.Now().In(loc))
			if from != "" {
				if rangeStart, err = date.ParseDate(from, loc); err != nil {
					return err
				}
			}
			if to != "" {
				if rangeEnd, err = date.ParseDate(to, loc); err != nil {
					return err
				}
				rangeEnd = date.EndOfDay(rangeEnd)
			}

			id := sourceID
			if id == "" {
				id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			res, err := ics.LoadOne(cmd.Context(), ics.Source{ID: id, Path: args[0], Color: color}, ics.ExpandConfig{
				DisplayLocation: loc,
				RangeStart:      rangeStart,
				RangeEnd:        rangeEnd,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Events)
			}
			return printEvents(out, res.Events)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print events as JSON")
	cmd.Flags().StringVar(&sourceID, "id", "", "Source id (defaults to the file name)")
	cmd.Flags().StringVar(&color, "color", "", "Color for events without a COLOR property")
	cmd.Flags().StringVar(&from, "from", "", "Expand recurrences from this date (default: one year ago)")
	cmd.Flags().StringVar(&to, "to", "", "Expand recurrences up to this date (default: two years ahead)")
	return cmd
}

// loadEvents imports the configured sources for the days in cells. Failing
// sources are logged and skipped.
func loadEvents(ctx context.Context, conf *config.Config, loc *time.Location, cells []date.Cell) []model.Event {
	if len(conf.Sources) == 0 || len(cells) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	results, errs := ics.LoadAll(ctx, ics.SourcesFromConfig(conf.Sources), ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      date.StartOfDay(cells[0].Date),
		RangeEnd:        date.EndOfDay(cells[len(cells)-1].Date),
	})
	if len(errs) > 0 {
		appLog.Warn("some sources failed to load", "failed", len(errs))
	}

	out := make([]model.Event, 0)
	for _, res := range results {
		out = append(out, res.Events...)
	}
	return out
}

func printEvents(w io.Writer, evs []model.Event) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTART\tEND\tTITLE")
	for _, ev := range evs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.ID, ev.Kind,
			ev.Start.Format("2006-01-02 15:04"),
			ev.End.Format("2006-01-02 15:04"),
			ev.Title,
		)
	}
	return tw.Flush()
}
