package domain

import "fmt"

// AddressKind is the kind of value an address object carries.
type AddressKind int

const (
	// KindSubnet is an IP network in CIDR form.
	KindSubnet AddressKind = iota + 1
	// KindFqdn is a fully-qualified domain name.
	KindFqdn
)

// ParseAddressKind converts the CSV/API spelling of a kind.
// Matching is case-sensitive.
func ParseAddressKind(s string) (AddressKind, error) {
	switch s {
	case "subnet":
		return KindSubnet, nil
	case "fqdn":
		return KindFqdn, nil
	}
	return 0, fmt.Errorf("%w: unknown address type %q", ErrInvalidInput, s)
}

// String returns the wire value of the kind.
func (k AddressKind) String() string {
	switch k {
	case KindSubnet:
		return "subnet"
	case KindFqdn:
		return "fqdn"
	}
	return fmt.Sprintf("AddressKind(%d)", int(k))
}

// AddressObject is a named subnet or FQDN to be created on the appliance.
// Name is the unique key on the remote side.
type AddressObject struct {
	Name  string      `json:"name"`
	Kind  AddressKind `json:"-"`
	Value string      `json:"value"`
}

// Group is an address group and the names of the objects it should contain.
// Members keep first-seen order and never repeat.
type Group struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Batch is the validated content of one CSV file.
type Batch struct {
	Objects []AddressObject
	Groups  []Group
	Errors  []string
}

// HasErrors returns true if any row was rejected.
func (b *Batch) HasErrors() bool {
	return len(b.Errors) > 0
}

// AddMember appends an object name to the named group, creating the group on
// first reference. Repeated names collapse.
func (b *Batch) AddMember(group, member string) {
	for i := range b.Groups {
		if b.Groups[i].Name != group {
			continue
		}
		for _, m := range b.Groups[i].Members {
			if m == member {
				return
			}
		}
		b.Groups[i].Members = append(b.Groups[i].Members, member)
		return
	}
	b.Groups = append(b.Groups, Group{Name: group, Members: []string{member}})
}
