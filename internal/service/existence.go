package service

import (
	"context"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/fortigate"
)

// Existence checks list the whole collection and scan it by name. This is one
// full fetch per item; large VDOMs pay for it on every row.

// ObjectExists reports whether an address object with the name exists in vdom.
func ObjectExists(ctx context.Context, c fortigate.AddressClient, vdom, name string) (bool, error) {
	objects, err := c.ListAddresses(ctx, vdom)
	if err != nil {
		return false, err
	}
	for _, o := range objects {
		if o.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// GroupExists reports whether an address group with the name exists in vdom.
func GroupExists(ctx context.Context, c fortigate.AddressClient, vdom, name string) (bool, error) {
	groups, err := c.ListAddressGroups(ctx, vdom)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if g.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// FetchGroupMembers returns the current member names of a group.
func FetchGroupMembers(ctx context.Context, c fortigate.AddressClient, vdom, name string) ([]string, error) {
	g, err := c.GetAddressGroup(ctx, vdom, name)
	if err != nil {
		return nil, err
	}
	return g.MemberNames(), nil
}
