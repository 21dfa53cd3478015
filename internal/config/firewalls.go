package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
	"gopkg.in/yaml.v3"
)

// Firewall is one appliance the provisioner may target.
type Firewall struct {
	Name     string   `mapstructure:"name" yaml:"name"`
	IP       string   `mapstructure:"ip" yaml:"ip"`
	APIToken string   `mapstructure:"api_token" yaml:"api_token"`
	VDOMs    []string `mapstructure:"vdoms" yaml:"vdoms"`
}

func (f Firewall) validate() error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.IP == "" {
		return fmt.Errorf("firewall %s: ip is required", f.Name)
	}
	return nil
}

// AllowsVDOM reports whether vdom is in the firewall's permitted set.
func (f *Firewall) AllowsVDOM(vdom string) bool {
	for _, v := range f.VDOMs {
		if v == vdom {
			return true
		}
	}
	return false
}

// Inventory is the set of known firewalls.
type Inventory struct {
	Firewalls []Firewall `yaml:"firewalls"`
}

// LoadInventory reads the firewall inventory at path. The file may be JSON or
// YAML. When it does not exist, fallback (the firewalls section of the general
// config) is used instead.
func LoadInventory(path string, fallback []Firewall) (*Inventory, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Inventory{Firewalls: fallback}, nil
		}
		return nil, fmt.Errorf("reading firewall inventory: %w", err)
	}

	inv := &Inventory{}
	if err := yaml.Unmarshal(data, inv); err != nil {
		return nil, fmt.Errorf("parsing firewall inventory %s: %w", path, err)
	}
	for i, fw := range inv.Firewalls {
		if err := fw.validate(); err != nil {
			return nil, fmt.Errorf("firewall inventory entry %d: %w", i, err)
		}
	}
	return inv, nil
}

// Lookup returns the firewall with the given name.
func (inv *Inventory) Lookup(name string) (*Firewall, error) {
	for i := range inv.Firewalls {
		if inv.Firewalls[i].Name == name {
			return &inv.Firewalls[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, domain.ErrUnknownFirewall)
}
