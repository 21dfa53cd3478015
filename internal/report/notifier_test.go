package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/config"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/logging"
	"gopkg.in/gomail.v2"
)

type fakeMailer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func newTestNotifier(t *testing.T) (*Notifier, *bytes.Buffer, *fakeMailer, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Email:  config.EmailConfig{SMTPServer: "mail.local", SMTPPort: 25, SenderEmail: "fgt@example.com", Subject: "Report"},
		Report: config.ReportConfig{Directory: dir},
	}
	out := &bytes.Buffer{}
	mailer := &fakeMailer{}
	n := NewNotifier(cfg, logging.Discard()).
		WithOutput(out).
		WithMailer(mailer).
		WithClock(func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) })
	return n, out, mailer, dir
}

func TestShouldEmail(t *testing.T) {
	clean := domain.NewReport()
	failed := domain.NewReport()
	failed.AddError("boom")

	tests := []struct {
		reportType string
		report     *domain.Report
		want       bool
	}{
		{TypeBoth, clean, true},
		{TypeBoth, failed, true},
		{TypeError, clean, false},
		{TypeError, failed, true},
		{"", failed, false},
		{"all", failed, false},
	}
	for _, tt := range tests {
		if got := ShouldEmail(tt.reportType, tt.report); got != tt.want {
			t.Errorf("ShouldEmail(%q, errors=%d) = %v, want %v", tt.reportType, len(tt.report.Errors), got, tt.want)
		}
	}
}

func TestEncode_EmptySequences(t *testing.T) {
	body, err := Encode(domain.NewReport())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := "{\n    \"created_objects\": [],\n    \"created_groups\": [],\n    \"group_memberships\": [],\n    \"skipped\": [],\n    \"errors\": []\n}"
	if string(body) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", body, want)
	}
}

func TestEmit_PrintAndFile(t *testing.T) {
	n, out, mailer, dir := newTestNotifier(t)
	r := domain.NewReport()
	r.CreatedObjects = append(r.CreatedObjects, "web1")

	path, err := n.Emit(r, Options{Print: true})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	if path != filepath.Join(dir, "report_20260506_070809.json") {
		t.Errorf("unexpected report path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report file missing: %v", err)
	}
	if !strings.Contains(string(data), `"web1"`) {
		t.Errorf("report file content: %s", data)
	}
	if !strings.Contains(out.String(), `"created_objects": [`) {
		t.Errorf("console output: %s", out.String())
	}
	if len(mailer.sent) != 0 {
		t.Error("no recipient given, nothing should be mailed")
	}
}

func TestEmit_NoPrint(t *testing.T) {
	n, out, _, _ := newTestNotifier(t)

	if _, err := n.Emit(domain.NewReport(), Options{Print: false}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no console output, got %s", out.String())
	}
}

func TestEmit_Email(t *testing.T) {
	failed := domain.NewReport()
	failed.AddError("Error creating object x on fw: {}")

	tests := []struct {
		name     string
		report   *domain.Report
		opts     Options
		wantSent int
	}{
		{"both clean", domain.NewReport(), Options{Recipient: "ops@example.com", Type: TypeBoth}, 1},
		{"error clean", domain.NewReport(), Options{Recipient: "ops@example.com", Type: TypeError}, 0},
		{"error with errors", failed, Options{Recipient: "ops@example.com", Type: TypeError}, 1},
		{"no-email", failed, Options{Recipient: "ops@example.com", Type: TypeBoth, NoEmail: true}, 0},
		{"no recipient", failed, Options{Type: TypeBoth}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _, mailer, _ := newTestNotifier(t)
			if _, err := n.Emit(tt.report, tt.opts); err != nil {
				t.Fatalf("Emit failed: %v", err)
			}
			if len(mailer.sent) != tt.wantSent {
				t.Fatalf("sent %d messages, want %d", len(mailer.sent), tt.wantSent)
			}
			if tt.wantSent == 0 {
				return
			}
			m := mailer.sent[0]
			if got := m.GetHeader("To"); len(got) != 1 || got[0] != "ops@example.com" {
				t.Errorf("To = %v", got)
			}
			if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Report" {
				t.Errorf("Subject = %v", got)
			}
		})
	}
}

func TestEmit_EmailFailureIsNotFatal(t *testing.T) {
	n, out, mailer, _ := newTestNotifier(t)
	mailer.err = errors.New("connection refused")

	path, err := n.Emit(domain.NewReport(), Options{Recipient: "ops@example.com", Type: TypeBoth})
	if err != nil {
		t.Fatalf("Emit must not fail on send error: %v", err)
	}
	if path == "" {
		t.Error("report file should still be written")
	}
	if !strings.Contains(out.String(), "Failed to send email report to ops@example.com") {
		t.Errorf("expected failure notice, got %s", out.String())
	}
}
