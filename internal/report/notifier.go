// Package report delivers run reports to the console, a timestamped file and email.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/config"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
	jsoniter "github.com/json-iterator/go"
	"github.com/lestrrat-go/strftime"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FilePattern names report files; strftime verbs are expanded at write time.
const FilePattern = "report_%Y%m%d_%H%M%S.json"

// Report types accepted on the command line.
const (
	TypeBoth  = "both"
	TypeError = "error"
)

// ValidType reports whether t is a known report type.
func ValidType(t string) bool {
	return t == TypeBoth || t == TypeError
}

// ShouldEmail reports whether a report of the given type is mailed:
// always for "both", only when errors were recorded for "error".
func ShouldEmail(reportType string, r *domain.Report) bool {
	switch reportType {
	case TypeBoth:
		return true
	case TypeError:
		return r.HasErrors()
	}
	return false
}

// Mailer sends prepared messages. *gomail.Dialer satisfies it.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Options selects the outputs of one Emit call.
type Options struct {
	// Print writes the report to the console writer.
	Print bool
	// Recipient is the email address; empty disables email.
	Recipient string
	// Type is "both" or "error".
	Type string
	// NoEmail suppresses email even when a recipient is set.
	NoEmail bool
}

// Notifier emits reports.
type Notifier struct {
	out    io.Writer
	dir    string
	email  config.EmailConfig
	mailer Mailer
	logger *logrus.Logger
	now    func() time.Time
}

// NewNotifier creates a notifier that prints to stdout, writes files under
// cfg.Report.Directory and mails through the configured SMTP server.
func NewNotifier(cfg *config.Config, logger *logrus.Logger) *Notifier {
	var mailer Mailer
	if cfg.CanEmail() {
		mailer = gomail.NewDialer(cfg.Email.SMTPServer, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password)
	}
	return &Notifier{
		out:    os.Stdout,
		dir:    cfg.Report.Directory,
		email:  cfg.Email,
		mailer: mailer,
		logger: logger,
		now:    time.Now,
	}
}

// WithOutput replaces the console writer.
func (n *Notifier) WithOutput(w io.Writer) *Notifier {
	n.out = w
	return n
}

// WithMailer replaces the mail transport.
func (n *Notifier) WithMailer(m Mailer) *Notifier {
	n.mailer = m
	return n
}

// WithClock replaces the time source used for file names.
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	n.now = now
	return n
}

// Encode renders the report as JSON indented by four spaces.
func Encode(r *domain.Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "    ")
}

// Emit prints, saves and mails the report according to opts. It returns the
// path of the written file. Delivery failures are logged, never returned;
// only an unencodable report is an error.
func (n *Notifier) Emit(r *domain.Report, opts Options) (string, error) {
	body, err := Encode(r)
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	if opts.Print {
		fmt.Fprintln(n.out, string(body))
	}

	path, err := n.save(body)
	if err != nil {
		n.logger.WithError(err).Error("failed to save report")
	} else {
		n.logger.WithField("file", path).Info("report saved")
	}

	if opts.Recipient != "" && !opts.NoEmail && ShouldEmail(opts.Type, r) {
		n.send(opts.Recipient, body)
	}

	return path, nil
}

func (n *Notifier) save(body []byte) (string, error) {
	name, err := strftime.Format(FilePattern, n.now())
	if err != nil {
		return "", err
	}
	dir := n.dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, append(body, '\n'), 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

func (n *Notifier) send(to string, body []byte) {
	log := n.logger.WithField("recipient", to)
	if n.mailer == nil {
		log.Error("failed to send email report: smtp_server and sender_email are not configured")
		return
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.email.SenderEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", n.email.Subject)
	m.SetBody("text/plain", string(body))

	if err := n.mailer.DialAndSend(m); err != nil {
		log.WithError(err).Error("failed to send email report")
		fmt.Fprintf(n.out, "Failed to send email report to %s: %v\n", to, err)
		return
	}
	log.Info("email report sent")
	fmt.Fprintf(n.out, "Email report sent successfully to %s\n", to)
}
