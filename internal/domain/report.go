package domain

// Membership records the members written into one group.
type Membership struct {
	Group        string   `json:"group"`
	MembersAdded []string `json:"members_added"`
}

// Report is the outcome of one provisioning run. Every sequence is
// append-only and keeps insertion order.
type Report struct {
	CreatedObjects   []string     `json:"created_objects"`
	CreatedGroups    []string     `json:"created_groups"`
	GroupMemberships []Membership `json:"group_memberships"`
	Skipped          []string     `json:"skipped"`
	Errors           []string     `json:"errors"`
}

// NewReport returns an empty report whose sequences encode as [] rather than null.
func NewReport() *Report {
	return &Report{
		CreatedObjects:   []string{},
		CreatedGroups:    []string{},
		GroupMemberships: []Membership{},
		Skipped:          []string{},
		Errors:           []string{},
	}
}

// HasErrors returns true if any error was recorded.
func (r *Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// AddError appends an error message.
func (r *Report) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddSkipped appends a skip message.
func (r *Report) AddSkipped(msg string) {
	r.Skipped = append(r.Skipped, msg)
}

// Merge appends everything recorded in other to r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.CreatedObjects = append(r.CreatedObjects, other.CreatedObjects...)
	r.CreatedGroups = append(r.CreatedGroups, other.CreatedGroups...)
	r.GroupMemberships = append(r.GroupMemberships, other.GroupMemberships...)
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.Errors = append(r.Errors, other.Errors...)
}
