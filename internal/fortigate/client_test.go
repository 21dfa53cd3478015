package fortigate_test

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/fortigate"
	"github.com/bcnelson/fortigate-addr-provisioner/internal/fortigate/fortigatetest"
)

const testToken = "test-token-0123456789"

func newTestClient(t *testing.T, vdoms ...string) (*fortigate.Client, *fortigatetest.Server) {
	t.Helper()
	fake := fortigatetest.New(testToken, vdoms...)
	srv := fake.Start()
	t.Cleanup(srv.Close)

	client := fortigate.NewClient(fortigate.ClientConfig{
		Host:  strings.TrimPrefix(srv.URL, "https://"),
		Token: testToken,
	})
	return client, fake
}

func TestClient_ValidateDevice(t *testing.T) {
	client, _ := newTestClient(t)

	if err := client.ValidateDevice(context.Background()); err != nil {
		t.Fatalf("ValidateDevice failed: %v", err)
	}
}

func TestClient_ValidateDeviceBadToken(t *testing.T) {
	fake := fortigatetest.New(testToken)
	srv := fake.Start()
	defer srv.Close()

	client := fortigate.NewClient(fortigate.ClientConfig{Host: srv.URL, Token: "wrong-token-value"})
	err := client.ValidateDevice(context.Background())

	var apiErr *fortigate.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.StatusCode)
	}
}

func TestClient_ValidateVDOM(t *testing.T) {
	client, _ := newTestClient(t, "root", "dmz")
	ctx := context.Background()

	if err := client.ValidateVDOM(ctx, "dmz"); err != nil {
		t.Errorf("ValidateVDOM(dmz) failed: %v", err)
	}
	err := client.ValidateVDOM(ctx, "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown vdom, got %v", err)
	}
}

func TestClient_CreateAddress(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	objects := []domain.AddressObject{
		{Name: "web1", Kind: domain.KindFqdn, Value: "example.com"},
		{Name: "net1", Kind: domain.KindSubnet, Value: "10.0.0.0/32"},
	}
	for _, obj := range objects {
		if err := client.CreateAddress(ctx, "root", obj); err != nil {
			t.Fatalf("CreateAddress(%s) failed: %v", obj.Name, err)
		}
	}

	web1, ok := fake.Address("root", "web1")
	if !ok {
		t.Fatal("expected web1 to be created")
	}
	if web1.Type != "fqdn" || web1.FQDN != "example.com" || web1.Subnet != "" {
		t.Errorf("unexpected fqdn object: %+v", web1)
	}
	net1, _ := fake.Address("root", "net1")
	if net1.Type != "subnet" || net1.Subnet != "10.0.0.0/32" || net1.FQDN != "" {
		t.Errorf("unexpected subnet object: %+v", net1)
	}

	list, err := client.ListAddresses(ctx, "root")
	if err != nil {
		t.Fatalf("ListAddresses failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 addresses, got %d", len(list))
	}

	for _, c := range fake.Calls() {
		if c.Method == http.MethodPost && c.VDOM != "root" {
			t.Errorf("expected vdom query on %s, got %q", c.Path, c.VDOM)
		}
	}
}

func TestClient_CreateAddressDuplicate(t *testing.T) {
	client, fake := newTestClient(t)
	fake.AddAddress("root", fortigate.AddressObject{Name: "web1", Type: "fqdn", FQDN: "example.com"})

	err := client.CreateAddress(context.Background(), "root", domain.AddressObject{Name: "web1", Kind: domain.KindFqdn, Value: "other.example.com"})
	if err == nil {
		t.Fatal("expected duplicate create to fail")
	}
	body := fortigate.ErrorBody(err)
	if !strings.Contains(body, `"error":-5`) {
		t.Errorf("expected raw API body, got %s", body)
	}
}

func TestClient_Groups(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()
	fake.AddAddress("root", fortigate.AddressObject{Name: "a", Type: "fqdn", FQDN: "a.example.com"})
	fake.AddAddress("root", fortigate.AddressObject{Name: "b", Type: "fqdn", FQDN: "b.example.com"})

	if err := client.CreateAddressGroup(ctx, "root", "grp A"); err != nil {
		t.Fatalf("CreateAddressGroup failed: %v", err)
	}

	groups, err := client.ListAddressGroups(ctx, "root")
	if err != nil {
		t.Fatalf("ListAddressGroups failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "grp A" {
		t.Fatalf("unexpected groups: %+v", groups)
	}

	if err := client.SetAddressGroupMembers(ctx, "root", "grp A", []string{"a", "b"}); err != nil {
		t.Fatalf("SetAddressGroupMembers failed: %v", err)
	}

	g, err := client.GetAddressGroup(ctx, "root", "grp A")
	if err != nil {
		t.Fatalf("GetAddressGroup failed: %v", err)
	}
	if !reflect.DeepEqual(g.MemberNames(), []string{"a", "b"}) {
		t.Errorf("members = %v", g.MemberNames())
	}

	if err := client.SetAddressGroupMembers(ctx, "root", "grp A", []string{"a", "ghost"}); err == nil {
		t.Error("expected unknown member to be rejected")
	}
}

func TestClient_GetAddressGroupMissing(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetAddressGroup(context.Background(), "root", "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_StringMasksToken(t *testing.T) {
	client := fortigate.NewClient(fortigate.ClientConfig{Host: "10.1.1.1/", Token: "abcd-secret-wxyz"})

	if client.Host() != "https://10.1.1.1" {
		t.Errorf("unexpected host: %s", client.Host())
	}
	s := client.String()
	if strings.Contains(s, "secret") {
		t.Errorf("token leaked in %s", s)
	}
	if !strings.Contains(s, "abcd****wxyz") {
		t.Errorf("expected masked token in %s", s)
	}
}

func TestErrorBody(t *testing.T) {
	apiErr := &fortigate.APIError{StatusCode: 500, Body: `{"error":-5}`}
	if got := fortigate.ErrorBody(apiErr); got != `{"error":-5}` {
		t.Errorf("ErrorBody(api) = %s", got)
	}
	if got := fortigate.ErrorBody(errors.New("dial tcp: refused")); got != "dial tcp: refused" {
		t.Errorf("ErrorBody(transport) = %s", got)
	}
	if errors.Is(apiErr, domain.ErrNotFound) {
		t.Error("500 must not match ErrNotFound")
	}
	if !errors.Is(&fortigate.APIError{StatusCode: 404}, domain.ErrNotFound) {
		t.Error("404 must match ErrNotFound")
	}
}
