package fortigate

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
	"github.com/sirupsen/logrus"
)

// FileShim is a dry-run implementation that keeps the address inventory in a
// JSON file instead of talking to an appliance.
type FileShim struct {
	filePath string
	logger   *logrus.Logger
	mu       sync.Mutex
}

// Ensure FileShim implements AddressClient.
var _ AddressClient = (*FileShim)(nil)

// shimInventory is the on-disk layout, keyed by VDOM.
type shimInventory struct {
	VDOMs map[string]*shimVDOM `json:"vdoms"`
}

type shimVDOM struct {
	Addresses []AddressObject `json:"addresses"`
	Groups    []AddressGroup  `json:"groups"`
}

// NewFileShim creates a new file-based shim.
func NewFileShim(filePath string, logger *logrus.Logger) *FileShim {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FileShim{filePath: filePath, logger: logger}
}

// load reads the inventory. A missing file is an empty inventory.
func (f *FileShim) load() (*shimInventory, error) {
	inv := &shimInventory{VDOMs: make(map[string]*shimVDOM)}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return inv, nil
		}
		return nil, fmt.Errorf("reading inventory file: %w", err)
	}
	if err := json.Unmarshal(data, inv); err != nil {
		return nil, fmt.Errorf("parsing inventory file: %w", err)
	}
	if inv.VDOMs == nil {
		inv.VDOMs = make(map[string]*shimVDOM)
	}
	return inv, nil
}

func (f *FileShim) save(inv *shimInventory) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling inventory: %w", err)
	}
	if err := os.WriteFile(f.filePath, data, 0644); err != nil {
		return fmt.Errorf("writing inventory file: %w", err)
	}
	return nil
}

// vdom returns the named VDOM, creating it when missing.
func (inv *shimInventory) vdom(name string) *shimVDOM {
	v, ok := inv.VDOMs[name]
	if !ok {
		v = &shimVDOM{}
		inv.VDOMs[name] = v
	}
	return v
}

// update runs fn against the inventory and writes it back.
func (f *FileShim) update(fn func(inv *shimInventory) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	inv, err := f.load()
	if err != nil {
		return err
	}
	if err := fn(inv); err != nil {
		return err
	}
	return f.save(inv)
}

// view runs fn against a read-only copy of the inventory.
func (f *FileShim) view(fn func(inv *shimInventory)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	inv, err := f.load()
	if err != nil {
		return err
	}
	fn(inv)
	return nil
}

// ValidateDevice always succeeds for the shim.
func (f *FileShim) ValidateDevice(ctx context.Context) error {
	f.logger.WithField("file", f.filePath).Info("[FileShim] device validated")
	return nil
}

// ValidateVDOM always succeeds for the shim; VDOMs are created on first write.
func (f *FileShim) ValidateVDOM(ctx context.Context, vdom string) error {
	return nil
}

// ListAddresses returns the address objects stored for the VDOM.
func (f *FileShim) ListAddresses(ctx context.Context, vdom string) ([]AddressObject, error) {
	var out []AddressObject
	err := f.view(func(inv *shimInventory) {
		if v, ok := inv.VDOMs[vdom]; ok {
			out = append(out, v.Addresses...)
		}
	})
	return out, err
}

// CreateAddress stores a new address object.
func (f *FileShim) CreateAddress(ctx context.Context, vdom string, obj domain.AddressObject) error {
	return f.update(func(inv *shimInventory) error {
		v := inv.vdom(vdom)
		for _, a := range v.Addresses {
			if a.Name == obj.Name {
				return &APIError{StatusCode: 500, Body: fmt.Sprintf("address %s already exists", obj.Name)}
			}
		}
		v.Addresses = append(v.Addresses, NewAddressObject(obj))
		return nil
	})
}

// ListAddressGroups returns the groups stored for the VDOM.
func (f *FileShim) ListAddressGroups(ctx context.Context, vdom string) ([]AddressGroup, error) {
	var out []AddressGroup
	err := f.view(func(inv *shimInventory) {
		if v, ok := inv.VDOMs[vdom]; ok {
			out = append(out, v.Groups...)
		}
	})
	return out, err
}

// CreateAddressGroup stores a new, empty group.
func (f *FileShim) CreateAddressGroup(ctx context.Context, vdom, name string) error {
	return f.update(func(inv *shimInventory) error {
		v := inv.vdom(vdom)
		for _, g := range v.Groups {
			if g.Name == name {
				return &APIError{StatusCode: 500, Body: fmt.Sprintf("group %s already exists", name)}
			}
		}
		v.Groups = append(v.Groups, AddressGroup{Name: name, Members: []GroupMember{}})
		return nil
	})
}

// GetAddressGroup returns one group or domain.ErrNotFound.
func (f *FileShim) GetAddressGroup(ctx context.Context, vdom, name string) (*AddressGroup, error) {
	var found *AddressGroup
	err := f.view(func(inv *shimInventory) {
		v, ok := inv.VDOMs[vdom]
		if !ok {
			return
		}
		for i := range v.Groups {
			if v.Groups[i].Name == name {
				g := v.Groups[i]
				found = &g
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("group %s: %w", name, domain.ErrNotFound)
	}
	return found, nil
}

// SetAddressGroupMembers replaces the member list of a stored group.
func (f *FileShim) SetAddressGroupMembers(ctx context.Context, vdom, name string, members []string) error {
	return f.update(func(inv *shimInventory) error {
		v := inv.vdom(vdom)
		for i := range v.Groups {
			if v.Groups[i].Name == name {
				v.Groups[i].Members = Members(members)
				f.logger.WithFields(logrus.Fields{"group": name, "members": len(members)}).Info("[FileShim] group members written")
				return nil
			}
		}
		return fmt.Errorf("group %s: %w", name, domain.ErrNotFound)
	})
}
