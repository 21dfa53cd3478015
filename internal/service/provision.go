// Package service runs provisioning: existence checks, reconciliation,
// pacing and the run state machine.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/config"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/fortigate"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/report"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/storage"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/validation"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ClientFactory builds the appliance client for a firewall.
type ClientFactory func(fw *config.Firewall) fortigate.AddressClient

// NewClientFactory returns a factory for HTTP clients, or for the file shim
// when cfg selects it.
func NewClientFactory(cfg *config.Config, logger *logrus.Logger) ClientFactory {
	if cfg.UseFileShim() {
		shim := fortigate.NewFileShim(cfg.FileShim, logger)
		return func(*config.Firewall) fortigate.AddressClient { return shim }
	}
	return func(fw *config.Firewall) fortigate.AddressClient {
		return fortigate.NewClient(fortigate.ClientConfig{
			Host:   fw.IP,
			Token:  fw.APIToken,
			Logger: logger,
		})
	}
}

// Request is one provisioning run.
type Request struct {
	Firewall string
	VDOM     string
	CSVPath  string
	// NoThrottle disables pacing regardless of config.
	NoThrottle bool
	Output     report.Options
}

// Result is the outcome of a run. Err is set when the run aborted and wraps
// one of the domain sentinels.
type Result struct {
	ExitCode   int
	Err        error
	Report     *domain.Report
	RunID      string
	ReportPath string
}

// Provisioner drives a run from CSV to report.
type Provisioner struct {
	cfg       *config.Config
	inventory *config.Inventory
	newClient ClientFactory
	notifier  *report.Notifier
	history   storage.RunStore
	logger    *logrus.Logger
	now       func() time.Time
}

// NewProvisioner creates a provisioner. history may be nil.
func NewProvisioner(cfg *config.Config, inventory *config.Inventory, newClient ClientFactory, notifier *report.Notifier, history storage.RunStore, logger *logrus.Logger) *Provisioner {
	return &Provisioner{
		cfg:       cfg,
		inventory: inventory,
		newClient: newClient,
		notifier:  notifier,
		history:   history,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (p *Provisioner) WithClock(now func() time.Time) *Provisioner {
	p.now = now
	return p
}

// Run parses the CSV, checks the target and reconciles. The report is emitted
// on every path. Per-item remote errors do not change the exit code.
func (p *Provisioner) Run(ctx context.Context, req Request) Result {
	log := p.logger.WithFields(logrus.Fields{"firewall": req.Firewall, "vdom": req.VDOM})
	run := p.startRun(ctx, req)
	res := Result{RunID: run.ID, Report: domain.NewReport()}

	abort := func(msg string, err error) Result {
		log.WithError(err).Error(msg)
		res.Report.AddError(msg)
		res.ExitCode = ExitFailure
		res.Err = err
		p.finish(ctx, run, &res, domain.RunStatusAborted, req.Output)
		return res
	}

	batch, err := validation.ParseFile(req.CSVPath)
	if err != nil {
		msg := err.Error()
		if !errors.Is(err, domain.ErrInvalidInput) {
			err = fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		return abort(msg, err)
	}
	if batch.HasErrors() {
		for _, msg := range batch.Errors {
			log.Error(msg)
			res.Report.AddError(msg)
		}
		res.ExitCode = ExitFailure
		res.Err = fmt.Errorf("%w: %d csv rows rejected", domain.ErrInvalidInput, len(batch.Errors))
		p.finish(ctx, run, &res, domain.RunStatusAborted, req.Output)
		return res
	}
	log.WithFields(logrus.Fields{"objects": len(batch.Objects), "groups": len(batch.Groups)}).Info("csv validated")

	fw, err := p.inventory.Lookup(req.Firewall)
	if err != nil {
		return abort(fmt.Sprintf("Firewall %s not found in the configuration file", req.Firewall), err)
	}
	if !fw.AllowsVDOM(req.VDOM) {
		return abort(fmt.Sprintf("VDOM %s is not available on firewall %s", req.VDOM, req.Firewall),
			fmt.Errorf("%w: %s on %s", domain.ErrVDOMNotPermitted, req.VDOM, req.Firewall))
	}

	if path := p.cfg.Path(); path != "" {
		if err := config.TouchLastRun(path, p.now()); err != nil {
			log.WithError(err).Warn("failed to record last run time")
		}
	}

	client := p.newClient(fw)
	if err := client.ValidateDevice(ctx); err != nil {
		return abort(fmt.Sprintf("Failed to validate firewall %s: %s", fw.IP, fortigate.ErrorBody(err)),
			fmt.Errorf("%w: firewall %s: %w", domain.ErrUnreachable, fw.IP, err))
	}
	log.WithField("ip", fw.IP).Info("firewall validated")
	if err := client.ValidateVDOM(ctx, req.VDOM); err != nil {
		return abort(fmt.Sprintf("Failed to validate VDOM %s on firewall %s: %s", req.VDOM, fw.IP, fortigate.ErrorBody(err)),
			fmt.Errorf("%w: vdom %s on %s: %w", domain.ErrUnreachable, req.VDOM, fw.IP, err))
	}

	pacer := NewPacer(p.cfg.Throttle.Delay())
	if req.NoThrottle {
		pacer = NewPacer(0)
	}

	reconciler := NewReconciler(client, fw.Name, req.VDOM, pacer, p.logger)
	rep, err := reconciler.Reconcile(ctx, batch)
	res.Report.Merge(rep)

	status := domain.RunStatusSuccess
	switch {
	case err != nil:
		log.WithError(err).Error("run interrupted")
		status = domain.RunStatusFailed
	case res.Report.HasErrors():
		status = domain.RunStatusPartial
	}
	res.ExitCode = ExitOK
	p.finish(ctx, run, &res, status, req.Output)
	return res
}

func (p *Provisioner) startRun(ctx context.Context, req Request) *domain.RunRecord {
	run := &domain.RunRecord{
		ID:        uuid.New().String(),
		Firewall:  req.Firewall,
		VDOM:      req.VDOM,
		CSVPath:   req.CSVPath,
		Status:    domain.RunStatusPending,
		CreatedAt: p.now(),
	}
	if p.history == nil {
		return run
	}
	if err := p.history.CreateRun(ctx, run); err != nil {
		p.logger.WithError(err).Warn("failed to record run start")
	}
	return run
}

// finish emits the report and stores the final run status.
func (p *Provisioner) finish(ctx context.Context, run *domain.RunRecord, res *Result, status string, opts report.Options) {
	path, err := p.notifier.Emit(res.Report, opts)
	if err != nil {
		p.logger.WithError(err).Error("failed to emit report")
	}
	res.ReportPath = path

	if p.history == nil {
		return
	}
	body, err := report.Encode(res.Report)
	if err != nil {
		p.logger.WithError(err).Warn("failed to encode report for history")
	}
	finished := p.now()
	run.Status = status
	run.Report = string(body)
	run.ErrorCount = len(res.Report.Errors)
	run.FinishedAt = &finished
	// A cancelled run still gets its final record.
	if err := p.history.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		p.logger.WithError(err).Warn("failed to record run result")
	}
}
