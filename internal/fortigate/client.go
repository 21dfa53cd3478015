package fortigate

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// API paths used by the provisioner.
const (
	pathSystemGlobal = "/api/v2/cmdb/system/global"
	pathSystemVDOM   = "/api/v2/cmdb/system/vdom/"
	pathAddress      = "/api/v2/cmdb/firewall/address"
	pathAddrGrp      = "/api/v2/cmdb/firewall/addrgrp"
)

// AddressClient defines the appliance operations needed to provision
// address objects and groups. Every method is a single API call.
type AddressClient interface {
	ValidateDevice(ctx context.Context) error
	ValidateVDOM(ctx context.Context, vdom string) error
	ListAddresses(ctx context.Context, vdom string) ([]AddressObject, error)
	CreateAddress(ctx context.Context, vdom string, obj domain.AddressObject) error
	ListAddressGroups(ctx context.Context, vdom string) ([]AddressGroup, error)
	CreateAddressGroup(ctx context.Context, vdom, name string) error
	GetAddressGroup(ctx context.Context, vdom, name string) (*AddressGroup, error)
	SetAddressGroupMembers(ctx context.Context, vdom, name string, members []string) error
}

// Client provides access to the FortiGate REST API.
type Client struct {
	host       string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

// Ensure Client implements AddressClient.
var _ AddressClient = (*Client)(nil)

// ClientConfig holds configuration for the FortiGate client.
type ClientConfig struct {
	// Host is the appliance address or API URL (e.g., "192.168.1.1" or "https://192.168.1.1")
	Host string
	// Token is the REST API token
	Token string
	// VerifySSL indicates whether to verify SSL certificates
	VerifySSL bool
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// Logger receives request debug output
	Logger *logrus.Logger
}

// maskToken returns a masked version of a token for safe logging.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}

// NewClient creates a new FortiGate API client. The bearer token is injected
// by an oauth2 transport wrapping a transport that skips certificate
// verification unless VerifySSL is set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	host := strings.TrimSuffix(cfg.Host, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}

	base := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !cfg.VerifySSL,
			},
		},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = cfg.Timeout

	return &Client{
		host:       host,
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// vdomQuery scopes a request to a VDOM.
func vdomQuery(vdom string) url.Values {
	if vdom == "" {
		return nil
	}
	return url.Values{"vdom": []string{vdom}}
}

// doRequest performs an HTTP request to the FortiGate API. Any status other
// than 200 is returned as an *APIError carrying the body.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	u := c.host + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.WithFields(logrus.Fields{"method": method, "url": u}).Debug("fortigate request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// ValidateDevice checks that the appliance is reachable and accepts the token.
func (c *Client) ValidateDevice(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, pathSystemGlobal, nil, nil)
	return err
}

// ValidateVDOM checks that the VDOM exists on the appliance.
func (c *Client) ValidateVDOM(ctx context.Context, vdom string) error {
	_, err := c.doRequest(ctx, http.MethodGet, pathSystemVDOM+url.PathEscape(vdom), nil, nil)
	return err
}

// ListAddresses retrieves all firewall address objects in a VDOM.
func (c *Client) ListAddresses(ctx context.Context, vdom string) ([]AddressObject, error) {
	body, err := c.doRequest(ctx, http.MethodGet, pathAddress, vdomQuery(vdom), nil)
	if err != nil {
		return nil, err
	}

	var response Response[[]AddressObject]
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.WithField("count", len(response.Results)).Debug("fetched address objects")
	return response.Results, nil
}

// CreateAddress creates an address object. The body carries the name and
// type plus either subnet or fqdn depending on the kind.
func (c *Client) CreateAddress(ctx context.Context, vdom string, obj domain.AddressObject) error {
	_, err := c.doRequest(ctx, http.MethodPost, pathAddress, vdomQuery(vdom), NewAddressObject(obj))
	return err
}

// NewAddressObject converts a validated object into its API form.
func NewAddressObject(obj domain.AddressObject) AddressObject {
	out := AddressObject{Name: obj.Name, Type: obj.Kind.String()}
	switch obj.Kind {
	case domain.KindSubnet:
		out.Subnet = obj.Value
	case domain.KindFqdn:
		out.FQDN = obj.Value
	}
	return out
}

// ListAddressGroups retrieves all firewall address groups in a VDOM.
func (c *Client) ListAddressGroups(ctx context.Context, vdom string) ([]AddressGroup, error) {
	body, err := c.doRequest(ctx, http.MethodGet, pathAddrGrp, vdomQuery(vdom), nil)
	if err != nil {
		return nil, err
	}

	var response Response[[]AddressGroup]
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.WithField("count", len(response.Results)).Debug("fetched address groups")
	return response.Results, nil
}

// CreateAddressGroup creates an empty address group.
func (c *Client) CreateAddressGroup(ctx context.Context, vdom, name string) error {
	_, err := c.doRequest(ctx, http.MethodPost, pathAddrGrp, vdomQuery(vdom), AddressGroup{Name: name})
	return err
}

// GetAddressGroup fetches a single group. A missing group yields an error
// matching domain.ErrNotFound.
func (c *Client) GetAddressGroup(ctx context.Context, vdom, name string) (*AddressGroup, error) {
	body, err := c.doRequest(ctx, http.MethodGet, pathAddrGrp+"/"+url.PathEscape(name), vdomQuery(vdom), nil)
	if err != nil {
		return nil, err
	}

	var response Response[[]AddressGroup]
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Results) == 0 {
		return nil, fmt.Errorf("group %s: %w", name, domain.ErrNotFound)
	}
	return &response.Results[0], nil
}

// SetAddressGroupMembers replaces the group's member list. The API has no
// incremental add, so members must be the complete desired list.
func (c *Client) SetAddressGroupMembers(ctx context.Context, vdom, name string, members []string) error {
	payload := struct {
		Member []GroupMember `json:"member"`
	}{Member: Members(members)}
	_, err := c.doRequest(ctx, http.MethodPut, pathAddrGrp+"/"+url.PathEscape(name), vdomQuery(vdom), payload)
	return err
}

// Host returns the FortiGate host URL.
func (c *Client) Host() string {
	return c.host
}

// String returns a string representation of the client for logging.
// The token is masked.
func (c *Client) String() string {
	return fmt.Sprintf("FortiGateClient{host: %s, token: %s}", c.host, maskToken(c.token))
}
