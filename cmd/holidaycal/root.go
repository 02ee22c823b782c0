package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"holidaycal/internal/config"
	"holidaycal/internal/ics"
	appLog "holidaycal/internal/log"
	"holidaycal/internal/model"
	"holidaycal/internal/planner"
	"holidaycal/internal/sources"
	"holidaycal/internal/state"
)

const version = "0.1.0"

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	envFile    string
	country    string
	year       int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	c := &cobra.Command{
		Use:           "holidaycal",
		Short:         "UK school and bank holiday planner",
		Long:          "holidaycal merges UK bank holidays, school term breaks and personal events into one calendar year.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := c.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "./holidaycal.yaml", "path to the YAML configuration file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "optional dotenv file with HOLIDAYCAL_* overrides")
	pf.StringVar(&flags.country, "country", "", "override the configured country (england-and-wales, scotland, northern-ireland)")
	pf.IntVar(&flags.year, "year", 0, "override the selected year")

	c.AddCommand(
		newServeCmd(flags),
		newLegendCmd(flags),
		newEventsCmd(flags),
		newClassifyCmd(flags),
		newImportCmd(flags),
		newExportCmd(flags),
	)
	return c
}

// loadConfig reads the YAML file, then .env, then the environment, then the
// command line flags, each overriding the previous.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	if err := config.LoadDotEnv(flags.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if flags.country != "" {
		country := model.Country(flags.country)
		if !country.Valid() {
			return nil, fmt.Errorf("--country: %w: %q", model.ErrUnknownCountry, flags.country)
		}
		cfg.Country = country
	}
	if flags.year > 0 {
		cfg.Year = flags.year
	}

	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	appLog.Info("effective config",
		"config_path", flags.configPath,
		"listen", cfg.Listen,
		"country", cfg.Country,
		"year", cfg.Year,
		"state_path", cfg.StatePath,
		"proxies", len(cfg.Proxies),
		"subscriptions", len(cfg.Subscriptions),
		"refresh", cfg.RefreshCron,
	)
	return cfg, nil
}

// session bundles a restored planner with what it was built from.
type session struct {
	cfg     *config.Config
	planner *planner.Planner
	fetcher *ics.Fetcher
}

// openSession builds the planner and restores it: from the state file when
// one exists, otherwise from the configured country (and postcode).
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	fetcher := ics.NewFetcher(cfg.CacheDir, ics.WithProxies(cfg.Proxies))
	public := sources.NewBankHolidays(cfg.BankHolidayURL, nil)

	p := planner.New(public, ics.NewImporter(fetcher), planner.Options{
		Year:        cfg.Year,
		Country:     cfg.Country,
		Postcode:    cfg.Postcode,
		YearsBefore: cfg.ImportWindow.YearsBefore,
		YearsAfter:  cfg.ImportWindow.YearsAfter,
	})
	s := &session{cfg: cfg, planner: p, fetcher: fetcher}

	patch, err := state.LoadFile(cfg.StatePath)
	switch {
	case err == nil && !patch.Empty():
		if cfg.Year > 0 {
			patch.Year = &cfg.Year
		}
		p.LoadState(ctx, patch)
		appLog.Info("session restored", "path", cfg.StatePath, "school", len(p.State().SchoolHolidays))
		return s, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		// A corrupt file is not fatal; start from defaults and keep the file.
		appLog.Error("state file unreadable; starting from defaults", err, "path", cfg.StatePath)
	}

	if err := p.LoadCountry(ctx, cfg.Country); err != nil {
		return nil, err
	}
	if cfg.Postcode != "" {
		if _, err := p.SearchPostcode(ctx, cfg.Postcode); err != nil {
			return nil, fmt.Errorf("postcode %q: %w", cfg.Postcode, err)
		}
	}
	return s, nil
}

// save persists the session to the configured state path.
func (s *session) save() error {
	if s.cfg.StatePath == "" {
		return nil
	}
	if err := state.SaveFile(s.cfg.StatePath, s.planner.State()); err != nil {
		return fmt.Errorf("save state %s: %w", s.cfg.StatePath, err)
	}
	return nil
}

// subscriptions converts configured calendars to fetch sources.
func subscriptions(cfg *config.Config) []ics.Source {
	out := make([]ics.Source, 0, len(cfg.Subscriptions))
	for _, sub := range cfg.Subscriptions {
		if sub.URL == "" {
			continue
		}
		out = append(out, ics.Source{ID: sub.ID, URL: sub.URL})
	}
	return out
}
