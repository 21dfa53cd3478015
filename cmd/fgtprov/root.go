package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/config"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/logging"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/report"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/service"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/storage"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/storage/sql"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rootOptions struct {
	configPath     string
	firewallConfig string
	debug          bool
	noThrottle     bool
	noEmail        bool
	noPrint        bool
	fileShim       string
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func fail(err error) error {
	return &exitError{code: service.ExitFailure, err: err}
}

// execute runs the CLI and returns the process exit code. Errors that are not
// exitErrors come from argument or flag parsing and exit with the usage code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	executed, err := cmd.ExecuteC()
	if err == nil {
		return service.ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "Error:", ee.err)
		}
		return ee.code
	}

	fmt.Fprintln(stderr, "Error:", err)
	fmt.Fprintln(stderr, executed.UsageString())
	return service.ExitUsage
}

func bindGlobalFlags(fs *pflag.FlagSet, o *rootOptions) {
	fs.StringVar(&o.configPath, "config", filepath.Join("configs", "config.json"), "general config file")
	fs.StringVar(&o.firewallConfig, "firewall-config", filepath.Join("configs", "firewalls.json"), "firewall inventory file (JSON or YAML)")
	fs.BoolVar(&o.debug, "debug", false, "Run in debug mode. Increases logging verbosity.")
}

func bindRunFlags(fs *pflag.FlagSet, o *rootOptions) {
	fs.BoolVar(&o.noThrottle, "no-throttle", false, "disable the pause between API calls")
	fs.BoolVar(&o.noEmail, "no-email", false, "do not send the report by email")
	fs.BoolVar(&o.noPrint, "no-print", false, "do not print the report to the console")
	fs.StringVar(&o.fileShim, "file-shim", "", "write to a JSON inventory file instead of the appliance")
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "fgtprov [flags] <firewall> <vdom> <csv> [email] [report-type]",
		Short: "Provision FortiGate address objects and groups from a CSV file.",
		Long: `Creates the address objects listed in the CSV, creates the groups they
reference and adds the objects to those groups. Existing objects and groups are
left alone; group membership is only ever extended.

The CSV header must name the columns name, type, value and groups. type is
subnet or fqdn; groups is a comma separated list.

report-type is "both" (always mail the report) or "error" (mail only when
errors were recorded) and is required when an email address is given.`,
		Args:          validateArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd, opts, args)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	bindGlobalFlags(cmd.PersistentFlags(), opts)
	bindRunFlags(cmd.Flags(), opts)

	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newExampleConfigCmd(opts))

	return cmd
}

func validateArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.RangeArgs(3, 5)(cmd, args); err != nil {
		return err
	}
	if len(args) == 4 {
		return fmt.Errorf("an email address requires a report type (%s or %s)", report.TypeBoth, report.TypeError)
	}
	if len(args) == 5 && !report.ValidType(args[4]) {
		return fmt.Errorf("report type must be %q or %q, got %q", report.TypeBoth, report.TypeError, args[4])
	}
	return nil
}

// loadConfig reads and validates the general config with flag overrides applied.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.fileShim != "" {
		if cfg.FileShim, err = config.ExpandPath(opts.fileShim); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openHistory opens the run store, or returns nil when history is disabled.
func openHistory(cfg *config.Config) (storage.RunStore, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	dsn := cfg.History.DSN
	if cfg.History.Driver == "sqlite3" {
		var err error
		if dsn, err = config.ExpandPath(dsn); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}
	return sql.New(cfg.History.Driver, dsn)
}

func runProvision(cmd *cobra.Command, opts *rootOptions, args []string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fail(err)
	}

	logger, closeLog, err := logging.Setup(cfg.Logging, opts.debug, time.Now())
	if err != nil {
		return fail(err)
	}
	defer closeLog()

	inventory, err := config.LoadInventory(opts.firewallConfig, cfg.Firewalls)
	if err != nil {
		return fail(err)
	}

	history, err := openHistory(cfg)
	if err != nil {
		logger.WithError(err).Warn("run history unavailable")
		history = nil
	}
	if history != nil {
		defer history.Close()
	}

	req := service.Request{
		Firewall:   args[0],
		VDOM:       args[1],
		CSVPath:    args[2],
		NoThrottle: opts.noThrottle,
		Output: report.Options{
			Print:   !opts.noPrint,
			NoEmail: opts.noEmail,
		},
	}
	if len(args) == 5 {
		req.Output.Recipient = args[3]
		req.Output.Type = args[4]
	}

	logger.WithFields(logrus.Fields{
		"firewall": req.Firewall,
		"vdom":     req.VDOM,
		"csv":      req.CSVPath,
		"shim":     cfg.UseFileShim(),
	}).Info("starting provisioning run")

	notifier := report.NewNotifier(cfg, logger).WithOutput(cmd.OutOrStdout())
	prov := service.NewProvisioner(cfg, inventory, service.NewClientFactory(cfg, logger), notifier, history, logger)

	res := prov.Run(context.Background(), req)
	if res.ExitCode != service.ExitOK {
		if len(res.Report.Errors) > 0 {
			return fail(errors.New(res.Report.Errors[0]))
		}
		return &exitError{code: res.ExitCode}
	}
	return nil
}
