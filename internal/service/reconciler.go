package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/fortigate"
	"github.com/sirupsen/logrus"
)

// Status is the result of one reconcile step.
type Status int

const (
	StatusCreated Status = iota + 1
	StatusSkipped
	StatusFailed
)

// Step names the report section an outcome belongs to.
type Step int

const (
	StepObject Step = iota + 1
	StepGroup
	StepMembership
)

// Outcome is what one reconcile step did. Message carries the skip or error
// text; Added carries the members written by a membership merge.
type Outcome struct {
	Step    Step
	Name    string
	Status  Status
	Message string
	Added   []string
}

// Report converts the outcome into a report fragment.
func (o Outcome) Report() *domain.Report {
	r := domain.NewReport()
	switch o.Status {
	case StatusSkipped:
		r.AddSkipped(o.Message)
	case StatusFailed:
		r.AddError(o.Message)
	case StatusCreated:
		switch o.Step {
		case StepObject:
			r.CreatedObjects = append(r.CreatedObjects, o.Name)
		case StepGroup:
			r.CreatedGroups = append(r.CreatedGroups, o.Name)
		case StepMembership:
			r.GroupMemberships = append(r.GroupMemberships, domain.Membership{Group: o.Name, MembersAdded: o.Added})
		}
	}
	return r
}

// Reconciler brings one VDOM of one firewall in line with a batch.
// It never deletes and never retries.
type Reconciler struct {
	client   fortigate.AddressClient
	firewall string
	vdom     string
	pacer    *Pacer
	logger   *logrus.Logger
}

// NewReconciler creates a reconciler. firewall is the display name used in
// report messages.
func NewReconciler(client fortigate.AddressClient, firewall, vdom string, pacer *Pacer, logger *logrus.Logger) *Reconciler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Reconciler{
		client:   client,
		firewall: firewall,
		vdom:     vdom,
		pacer:    pacer,
		logger:   logger,
	}
}

func (r *Reconciler) log() *logrus.Entry {
	return r.logger.WithFields(logrus.Fields{"firewall": r.firewall, "vdom": r.vdom})
}

// CreateObject creates obj unless an object with the same name exists.
// A failed lookup is logged and creation is attempted anyway.
func (r *Reconciler) CreateObject(ctx context.Context, obj domain.AddressObject) Outcome {
	out := Outcome{Step: StepObject, Name: obj.Name}
	log := r.log().WithField("object", obj.Name)

	exists, err := ObjectExists(ctx, r.client, r.vdom, obj.Name)
	if err != nil {
		log.WithError(err).Warn("existence check failed, attempting create")
	}
	if exists {
		out.Status = StatusSkipped
		out.Message = fmt.Sprintf("Object %s already exists", obj.Name)
		log.Info(out.Message)
		return out
	}

	if err := r.client.CreateAddress(ctx, r.vdom, obj); err != nil {
		out.Status = StatusFailed
		out.Message = fmt.Sprintf("Error creating object %s on %s: %s", obj.Name, r.firewall, fortigate.ErrorBody(err))
		log.Error(out.Message)
		return out
	}

	out.Status = StatusCreated
	log.WithFields(logrus.Fields{"type": obj.Kind.String(), "value": obj.Value}).Info("address object created")
	return out
}

// CreateGroup creates an empty group unless one with the same name exists.
func (r *Reconciler) CreateGroup(ctx context.Context, name string) Outcome {
	out := Outcome{Step: StepGroup, Name: name}
	log := r.log().WithField("group", name)

	exists, err := GroupExists(ctx, r.client, r.vdom, name)
	if err != nil {
		log.WithError(err).Warn("existence check failed, attempting create")
	}
	if exists {
		out.Status = StatusSkipped
		out.Message = fmt.Sprintf("Group %s already exists", name)
		log.Info(out.Message)
		return out
	}

	if err := r.client.CreateAddressGroup(ctx, r.vdom, name); err != nil {
		out.Status = StatusFailed
		out.Message = fmt.Sprintf("Error creating group %s on %s: %s", name, r.firewall, fortigate.ErrorBody(err))
		log.Error(out.Message)
		return out
	}

	out.Status = StatusCreated
	log.Info("address group created")
	return out
}

// MergeGroupMembership adds the members the group does not have yet. The
// written list is the current members followed by the new ones; nothing is
// ever removed.
func (r *Reconciler) MergeGroupMembership(ctx context.Context, name string, members []string) Outcome {
	out := Outcome{Step: StepMembership, Name: name}
	log := r.log().WithField("group", name)

	current, err := FetchGroupMembers(ctx, r.client, r.vdom, name)
	if err != nil {
		out.Status = StatusFailed
		out.Message = fmt.Sprintf("Error fetching group %s on %s: %s", name, r.firewall, fortigate.ErrorBody(err))
		log.Error(out.Message)
		return out
	}

	toAdd := missingMembers(current, members)
	if len(toAdd) == 0 {
		out.Status = StatusSkipped
		out.Message = fmt.Sprintf("All members of group %s already exist on %s", name, r.firewall)
		log.Info(out.Message)
		return out
	}

	merged := make([]string, 0, len(current)+len(toAdd))
	merged = append(merged, current...)
	merged = append(merged, toAdd...)

	if err := r.client.SetAddressGroupMembers(ctx, r.vdom, name, merged); err != nil {
		out.Status = StatusFailed
		out.Message = fmt.Sprintf("Error adding members to group %s on %s: %s", name, r.firewall, fortigate.ErrorBody(err))
		log.Error(out.Message)
		return out
	}

	out.Status = StatusCreated
	out.Added = toAdd
	log.WithField("added", toAdd).Info("group members added")
	return out
}

// missingMembers returns the trimmed, non-empty names in want that are not in
// current, de-duplicated in first-seen order.
func missingMembers(current, want []string) []string {
	seen := make(map[string]bool, len(current)+len(want))
	for _, m := range current {
		seen[m] = true
	}
	var out []string
	for _, m := range want {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Reconcile creates all objects, then all groups, then merges memberships.
// Per-item failures are recorded and the batch continues. Pacing stops early
// only when ctx is cancelled.
func (r *Reconciler) Reconcile(ctx context.Context, batch *domain.Batch) (*domain.Report, error) {
	report := domain.NewReport()

	for _, obj := range batch.Objects {
		report.Merge(r.CreateObject(ctx, obj).Report())
		if err := r.pacer.Wait(ctx); err != nil {
			return report, err
		}
	}

	for _, g := range batch.Groups {
		report.Merge(r.CreateGroup(ctx, g.Name).Report())
		if err := r.pacer.Wait(ctx); err != nil {
			return report, err
		}
	}

	for _, g := range batch.Groups {
		report.Merge(r.MergeGroupMembership(ctx, g.Name, g.Members).Report())
		if err := r.pacer.Wait(ctx); err != nil {
			return report, err
		}
	}

	return report, nil
}
