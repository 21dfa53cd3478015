// Package fortigate provides clients for the FortiOS REST API address
// endpoints.
package fortigate

// AddressObject represents a FortiGate firewall address object.
type AddressObject struct {
	// Name is the object name
	Name string `json:"name"`
	// Type is the address type (subnet, fqdn, ipmask, iprange, ...)
	Type string `json:"type,omitempty"`
	// Subnet is the network for subnet objects (e.g., "10.0.0.0/24")
	Subnet string `json:"subnet,omitempty"`
	// FQDN is the domain name for fqdn objects
	FQDN string `json:"fqdn,omitempty"`
	// Comment is the object description
	Comment string `json:"comment,omitempty"`
}

// AddressGroup represents a FortiGate address group.
type AddressGroup struct {
	// Name is the group name
	Name string `json:"name"`
	// Members is the list of member objects
	Members []GroupMember `json:"member"`
	// Comment is the group description
	Comment string `json:"comment,omitempty"`
}

// MemberNames returns the names of the group's members in API order.
func (g *AddressGroup) MemberNames() []string {
	names := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		names = append(names, m.Name)
	}
	return names
}

// GroupMember represents a member of an address group.
type GroupMember struct {
	Name string `json:"name"`
}

// Members builds a member list from object names.
func Members(names []string) []GroupMember {
	members := make([]GroupMember, 0, len(names))
	for _, n := range names {
		members = append(members, GroupMember{Name: n})
	}
	return members
}

// Response is the envelope FortiOS wraps around CMDB results.
type Response[T any] struct {
	HTTPMethod string `json:"http_method"`
	Results    T      `json:"results"`
	VDOM       string `json:"vdom"`
	Path       string `json:"path"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	HTTPStatus int    `json:"http_status"`
	Serial     string `json:"serial,omitempty"`
	Version    string `json:"version,omitempty"`
	Build      int    `json:"build,omitempty"`
}

// ErrorResponse is the body FortiOS returns for failed CMDB writes.
type ErrorResponse struct {
	HTTPMethod string `json:"http_method"`
	Status     string `json:"status"`
	HTTPStatus int    `json:"http_status"`
	Error      int    `json:"error"`
	CLIError   string `json:"cli_error,omitempty"`
	VDOM       string `json:"vdom,omitempty"`
}
