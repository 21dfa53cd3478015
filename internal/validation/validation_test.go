package validation

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
)

func TestNormalizeSubnet(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{"bare network gets host prefix", "10.0.0.0", "10.0.0.0/32", false},
		{"bare host gets host prefix", "192.168.1.10", "192.168.1.10/32", false},
		{"cidr", "10.0.0.0/24", "10.0.0.0/24", false},
		{"default route", "0.0.0.0/0", "0.0.0.0/0", false},
		{"dotted netmask", "10.0.0.0/255.255.255.0", "10.0.0.0/255.255.255.0", false},
		{"ipv6 network", "2001:db8::/32", "2001:db8::/32", false},
		{"host bits set", "10.0.0.1/24", "10.0.0.1/24", true},
		{"octet out of range", "999.1.1.1/24", "999.1.1.1/24", true},
		{"bare invalid address", "999.1.1.1", "999.1.1.1/32", true},
		{"prefix too long", "10.0.0.0/33", "10.0.0.0/33", true},
		{"negative prefix", "10.0.0.0/-1", "10.0.0.0/-1", true},
		{"non contiguous netmask", "10.0.0.0/255.0.255.0", "10.0.0.0/255.0.255.0", true},
		{"empty prefix", "10.0.0.0/", "10.0.0.0/", true},
		{"hostname", "example.com", "example.com/32", true},
		{"bare ipv6 host", "2001:db8::1", "2001:db8::1/32", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSubnet(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("NormalizeSubnet(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeSubnet(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestSplitGroups(t *testing.T) {
	tests := []struct {
		cell string
		want []string
	}{
		{"", nil},
		{"grpA", []string{"grpA"}},
		{"grpA, grpB", []string{"grpA", "grpB"}},
		{" grpA ,, ,grpB,", []string{"grpA", "grpB"}},
		{" , ", nil},
	}

	for _, tt := range tests {
		got := SplitGroups(tt.cell)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitGroups(%q) = %v, want %v", tt.cell, got, tt.want)
		}
	}
}

func TestParseRecords_ValidRows(t *testing.T) {
	batch, err := ParseRecords([][]string{
		{"name", "type", "value", "groups"},
		{"web1", "fqdn", "example.com", "grpA"},
		{"net1", "subnet", "10.0.0.0", "grpA, grpB"},
	})
	if err != nil {
		t.Fatalf("ParseRecords failed: %v", err)
	}
	if batch.HasErrors() {
		t.Fatalf("unexpected errors: %v", batch.Errors)
	}

	wantObjects := []domain.AddressObject{
		{Name: "web1", Kind: domain.KindFqdn, Value: "example.com"},
		{Name: "net1", Kind: domain.KindSubnet, Value: "10.0.0.0/32"},
	}
	if !reflect.DeepEqual(batch.Objects, wantObjects) {
		t.Errorf("objects = %+v, want %+v", batch.Objects, wantObjects)
	}

	wantGroups := []domain.Group{
		{Name: "grpA", Members: []string{"web1", "net1"}},
		{Name: "grpB", Members: []string{"net1"}},
	}
	if !reflect.DeepEqual(batch.Groups, wantGroups) {
		t.Errorf("groups = %+v, want %+v", batch.Groups, wantGroups)
	}
}

func TestParseRecords_RejectedRows(t *testing.T) {
	tests := []struct {
		name    string
		row     []string
		wantErr string
	}{
		{"missing name", []string{"", "fqdn", "example.com", ""}, "Missing required field at line 2"},
		{"missing type", []string{"web1", "", "example.com", ""}, "Missing required field at line 2"},
		{"missing value", []string{"web1", "fqdn", "", "grpA"}, "Missing required field at line 2"},
		{"short row", []string{"web1", "fqdn"}, "Missing required field at line 2"},
		{"unknown type", []string{"web1", "iprange", "10.0.0.1-10.0.0.5", ""}, "Invalid type 'iprange' at line 2"},
		{"type is case sensitive", []string{"web1", "FQDN", "example.com", ""}, "Invalid type 'FQDN' at line 2"},
		{"bad subnet", []string{"net1", "subnet", "999.1.1.1/24", ""}, "Invalid subnet '999.1.1.1/24' at line 2"},
		{"bad bare subnet", []string{"net1", "subnet", "not-an-ip", ""}, "Invalid subnet 'not-an-ip/32' at line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := ParseRecords([][]string{
				{"name", "type", "value", "groups"},
				tt.row,
			})
			if err != nil {
				t.Fatalf("ParseRecords failed: %v", err)
			}
			if len(batch.Objects) != 0 {
				t.Errorf("expected rejected row to be dropped, got %+v", batch.Objects)
			}
			if len(batch.Groups) != 0 {
				t.Errorf("expected rejected row to contribute no groups, got %+v", batch.Groups)
			}
			if len(batch.Errors) != 1 || batch.Errors[0] != tt.wantErr {
				t.Errorf("errors = %q, want [%q]", batch.Errors, tt.wantErr)
			}
		})
	}
}

func TestParseRecords_BatchTolerant(t *testing.T) {
	batch, err := ParseRecords([][]string{
		{"name", "type", "value", "groups"},
		{"web1", "fqdn", "example.com", ""},
		{"", "fqdn", "example.org", "grpA"},
		{"net1", "subnet", "10.0.0.1/8", ""},
		{"net2", "subnet", "172.16.0.0/12", "grpA"},
	})
	if err != nil {
		t.Fatalf("ParseRecords failed: %v", err)
	}

	wantErrs := []string{
		"Missing required field at line 3",
		"Invalid subnet '10.0.0.1/8' at line 4",
	}
	if !reflect.DeepEqual(batch.Errors, wantErrs) {
		t.Errorf("errors = %q, want %q", batch.Errors, wantErrs)
	}
	if len(batch.Objects) != 2 || batch.Objects[1].Name != "net2" {
		t.Errorf("expected rows after a bad row to be parsed, got %+v", batch.Objects)
	}
	if len(batch.Groups) != 1 || !reflect.DeepEqual(batch.Groups[0].Members, []string{"net2"}) {
		t.Errorf("groups = %+v", batch.Groups)
	}
}

func TestParseRecords_DuplicateNamesAccepted(t *testing.T) {
	batch, err := ParseRecords([][]string{
		{"name", "type", "value", "groups"},
		{"dup", "fqdn", "first.example.com", "grpA"},
		{"dup", "fqdn", "second.example.com", "grpA"},
	})
	if err != nil {
		t.Fatalf("ParseRecords failed: %v", err)
	}
	if batch.HasErrors() {
		t.Fatalf("duplicate names must not be rejected: %v", batch.Errors)
	}
	if len(batch.Objects) != 2 {
		t.Errorf("expected both rows kept, got %d", len(batch.Objects))
	}
	if !reflect.DeepEqual(batch.Groups[0].Members, []string{"dup"}) {
		t.Errorf("expected group members to collapse, got %v", batch.Groups[0].Members)
	}
}

func TestParseRecords_Header(t *testing.T) {
	t.Run("any column order with BOM", func(t *testing.T) {
		batch, err := ParseRecords([][]string{
			{"\ufeffgroups", " value ", "type", "name"},
			{"grpA", "example.com", "fqdn", "web1"},
		})
		if err != nil {
			t.Fatalf("ParseRecords failed: %v", err)
		}
		if len(batch.Objects) != 1 || batch.Objects[0].Value != "example.com" {
			t.Errorf("objects = %+v", batch.Objects)
		}
		if len(batch.Groups) != 1 || batch.Groups[0].Name != "grpA" {
			t.Errorf("groups = %+v", batch.Groups)
		}
	})

	t.Run("groups column optional", func(t *testing.T) {
		batch, err := ParseRecords([][]string{
			{"name", "type", "value"},
			{"web1", "fqdn", "example.com"},
		})
		if err != nil {
			t.Fatalf("ParseRecords failed: %v", err)
		}
		if len(batch.Objects) != 1 || len(batch.Groups) != 0 {
			t.Errorf("unexpected batch: %+v", batch)
		}
	})

	t.Run("missing required column", func(t *testing.T) {
		_, err := ParseRecords([][]string{{"name", "value", "groups"}})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ParseRecords(nil)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.csv")
	content := "name,type,value,groups\n" +
		"web1,fqdn,example.com,grpA\n" +
		"net1,subnet,10.0.0.0,grpA\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing csv: %v", err)
	}

	batch, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if batch.HasErrors() {
		t.Fatalf("unexpected errors: %v", batch.Errors)
	}
	if len(batch.Objects) != 2 || batch.Objects[1].Value != "10.0.0.0/32" {
		t.Errorf("objects = %+v", batch.Objects)
	}
}

func TestParseFile_MalformedRows(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantObjects []string
		wantErrors  []string
	}{
		{
			name: "short row",
			content: "name,type,value,groups\n" +
				"bad1,subnet\n" +
				"web1,fqdn,example.com\n" +
				"web2,fqdn,example.org,grpA\n",
			wantObjects: []string{"web1", "web2"},
			wantErrors:  []string{"Missing required field at line 2"},
		},
		{
			name: "hash is not a comment",
			content: "name,type,value,groups\n" +
				"#net,subnet,10.0.0.0/8,\n" +
				"bad,subnet,999.1.1.1/24,\n",
			wantObjects: []string{"#net"},
			wantErrors:  []string{"Invalid subnet '999.1.1.1/24' at line 3"},
		},
		{
			name: "bare quote",
			content: "name,type,value,groups\n" +
				"we\"b,fqdn,example.com,\n" +
				"net1,subnet,10.0.0.0/24,\n" +
				"bad,ipv9,x,\n",
			wantObjects: []string{"we\"b", "net1"},
			wantErrors:  []string{"Invalid type 'ipv9' at line 4"},
		},
		{
			name: "long row",
			content: "name,type,value,groups\n" +
				"web1,fqdn,example.com,grpA,extra\n",
			wantObjects: []string{"web1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "objects.csv")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("writing csv: %v", err)
			}

			batch, err := ParseFile(path)
			if err != nil {
				t.Fatalf("ParseFile failed: %v", err)
			}
			var names []string
			for _, obj := range batch.Objects {
				names = append(names, obj.Name)
			}
			if !reflect.DeepEqual(names, tt.wantObjects) {
				t.Errorf("objects = %v, want %v", names, tt.wantObjects)
			}
			if len(tt.wantErrors) == 0 && len(batch.Errors) == 0 {
				return
			}
			if !reflect.DeepEqual(batch.Errors, tt.wantErrors) {
				t.Errorf("errors = %v, want %v", batch.Errors, tt.wantErrors)
			}
		})
	}
}

func TestParseFile_Missing(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRowErrors(t *testing.T) {
	var errs RowErrors
	if errs.HasErrors() || errs.Error() != "" {
		t.Error("expected empty collection")
	}
	errs.Add(2, "Missing required field at line 2")
	errs.Add(5, "Invalid type 'x' at line 5")

	if errs.Error() != "Missing required field at line 2 (and 1 more errors)" {
		t.Errorf("unexpected message: %s", errs.Error())
	}
	if errs[1].Line != 5 {
		t.Errorf("unexpected row error: %+v", errs[1])
	}
}
