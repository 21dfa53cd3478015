// Package fortigatetest emulates the FortiOS address endpoints in memory.
// It backs the client tests and the fakegate development server.
package fortigatetest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/fortigate"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FortiOS CLI error codes returned on failed writes.
const (
	errEntryNotFound = -3
	errEntryExists   = -5
	errInvalidValue  = -651
)

// Call is one request received by the emulator.
type Call struct {
	Method string
	Path   string
	VDOM   string
}

// Failure is a canned error response for a write against a named entry.
type Failure struct {
	Status int
	Body   string
}

// Server is an in-memory FortiGate.
type Server struct {
	mu       sync.Mutex
	token    string
	vdoms    map[string]*vdomState
	calls    []Call
	failures map[string]Failure // key: METHOD name
}

type vdomState struct {
	addresses []fortigate.AddressObject
	groups    []fortigate.AddressGroup
}

// New creates an emulator that accepts token and hosts the given VDOMs.
// With no VDOMs, "root" is created.
func New(token string, vdoms ...string) *Server {
	if len(vdoms) == 0 {
		vdoms = []string{"root"}
	}
	s := &Server{
		token:    token,
		vdoms:    make(map[string]*vdomState),
		failures: make(map[string]Failure),
	}
	for _, v := range vdoms {
		s.vdoms[v] = &vdomState{}
	}
	return s
}

// Start serves the emulator over TLS with a self-signed certificate.
func (s *Server) Start() *httptest.Server {
	return httptest.NewTLSServer(s.Handler())
}

// Handler returns the emulator's HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.record)
	r.Use(s.auth)

	r.Route("/api/v2/cmdb", func(r chi.Router) {
		r.Get("/system/global", s.handleGlobal)
		r.Get("/system/vdom/{vdom}", s.handleVDOM)

		r.Get("/firewall/address", s.handleListAddresses)
		r.Post("/firewall/address", s.handleCreateAddress)

		r.Get("/firewall/addrgrp", s.handleListGroups)
		r.Post("/firewall/addrgrp", s.handleCreateGroup)
		r.Get("/firewall/addrgrp/{name}", s.handleGetGroup)
		r.Put("/firewall/addrgrp/{name}", s.handleSetGroup)
	})

	return r
}

// Fail makes every later method request against name return the failure.
func (s *Server) Fail(method, name string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+name] = f
}

// AddAddress seeds an address object.
func (s *Server) AddAddress(vdom string, obj fortigate.AddressObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vdom(vdom)
	v.addresses = append(v.addresses, obj)
}

// AddGroup seeds an address group.
func (s *Server) AddGroup(vdom string, g fortigate.AddressGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vdom(vdom)
	v.groups = append(v.groups, g)
}

// Address returns a stored address object.
func (s *Server) Address(vdom, name string) (fortigate.AddressObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.vdoms[vdom]; ok {
		if i := v.addressIndex(name); i >= 0 {
			return v.addresses[i], true
		}
	}
	return fortigate.AddressObject{}, false
}

// Group returns a stored address group.
func (s *Server) Group(vdom, name string) (fortigate.AddressGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.vdoms[vdom]; ok {
		if i := v.groupIndex(name); i >= 0 {
			return v.groups[i], true
		}
	}
	return fortigate.AddressGroup{}, false
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CountCalls returns how many requests used method and a path with prefix.
func (s *Server) CountCalls(method, prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// vdom returns the VDOM state, creating it when missing. Callers hold mu.
func (s *Server) vdom(name string) *vdomState {
	v, ok := s.vdoms[name]
	if !ok {
		v = &vdomState{}
		s.vdoms[name] = v
	}
	return v
}

func (v *vdomState) addressIndex(name string) int {
	for i, a := range v.addresses {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func (v *vdomState) groupIndex(name string) int {
	for i, g := range v.groups {
		if g.Name == name {
			return i
		}
	}
	return -1
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, VDOM: r.URL.Query().Get("vdom")})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"http_status": 401, "status": "error"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// vdomOf returns the request's VDOM. Unknown VDOMs answer 404.
func (s *Server) vdomOf(w http.ResponseWriter, r *http.Request) (*vdomState, string, bool) {
	name := r.URL.Query().Get("vdom")
	if name == "" {
		name = "root"
	}
	v, ok := s.vdoms[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"http_status": 404, "status": "error", "vdom": name})
		return nil, name, false
	}
	return v, name, true
}

// injected writes a configured failure for the request, if any.
func (s *Server) injected(w http.ResponseWriter, method, name string) bool {
	f, ok := s.failures[method+" "+name]
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.Status)
	w.Write([]byte(f.Body))
	return true
}

func (s *Server) handleGlobal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, fortigate.Response[map[string]string]{
		HTTPMethod: r.Method,
		Results:    map[string]string{"hostname": "fakegate"},
		Path:       "system",
		Name:       "global",
		Status:     "success",
		HTTPStatus: http.StatusOK,
	})
}

func (s *Server) handleVDOM(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "vdom")
	s.mu.Lock()
	_, ok := s.vdoms[name]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"http_status": 404, "status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, fortigate.Response[[]map[string]string]{
		HTTPMethod: r.Method,
		Results:    []map[string]string{{"name": name}},
		Path:       "system",
		Name:       "vdom",
		Status:     "success",
		HTTPStatus: http.StatusOK,
	})
}

func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, vdom, ok := s.vdomOf(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, listResponse(r, vdom, "address", append([]fortigate.AddressObject{}, v.addresses...)))
}

func (s *Server) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	var obj fortigate.AddressObject
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil || obj.Name == "" {
		writeError(w, r, http.StatusBadRequest, errInvalidValue)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v, _, ok := s.vdomOf(w, r)
	if !ok || s.injected(w, r.Method, obj.Name) {
		return
	}
	if v.addressIndex(obj.Name) >= 0 {
		writeError(w, r, http.StatusInternalServerError, errEntryExists)
		return
	}
	switch obj.Type {
	case "subnet", "ipmask":
		if obj.Subnet == "" {
			writeError(w, r, http.StatusInternalServerError, errInvalidValue)
			return
		}
	case "fqdn":
		if obj.FQDN == "" {
			writeError(w, r, http.StatusInternalServerError, errInvalidValue)
			return
		}
	default:
		writeError(w, r, http.StatusInternalServerError, errInvalidValue)
		return
	}
	v.addresses = append(v.addresses, obj)
	writeOK(w, r, obj.Name)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, vdom, ok := s.vdomOf(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, listResponse(r, vdom, "addrgrp", append([]fortigate.AddressGroup{}, v.groups...)))
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var g fortigate.AddressGroup
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil || g.Name == "" {
		writeError(w, r, http.StatusBadRequest, errInvalidValue)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v, _, ok := s.vdomOf(w, r)
	if !ok || s.injected(w, r.Method, g.Name) {
		return
	}
	if v.groupIndex(g.Name) >= 0 {
		writeError(w, r, http.StatusInternalServerError, errEntryExists)
		return
	}
	if g.Members == nil {
		g.Members = []fortigate.GroupMember{}
	}
	v.groups = append(v.groups, g)
	writeOK(w, r, g.Name)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	defer s.mu.Unlock()
	v, vdom, ok := s.vdomOf(w, r)
	if !ok || s.injected(w, r.Method, name) {
		return
	}
	i := v.groupIndex(name)
	if i < 0 {
		writeError(w, r, http.StatusNotFound, errEntryNotFound)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(r, vdom, "addrgrp", []fortigate.AddressGroup{v.groups[i]}))
}

func (s *Server) handleSetGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body struct {
		Member []fortigate.GroupMember `json:"member"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, errInvalidValue)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v, _, ok := s.vdomOf(w, r)
	if !ok || s.injected(w, r.Method, name) {
		return
	}
	i := v.groupIndex(name)
	if i < 0 {
		writeError(w, r, http.StatusNotFound, errEntryNotFound)
		return
	}
	// Members must reference existing objects or groups.
	for _, m := range body.Member {
		if v.addressIndex(m.Name) < 0 && v.groupIndex(m.Name) < 0 {
			writeError(w, r, http.StatusInternalServerError, errEntryNotFound)
			return
		}
	}
	v.groups[i].Members = body.Member
	writeOK(w, r, name)
}

func listResponse[T any](r *http.Request, vdom, name string, results T) fortigate.Response[T] {
	return fortigate.Response[T]{
		HTTPMethod: r.Method,
		Results:    results,
		VDOM:       vdom,
		Path:       "firewall",
		Name:       name,
		Status:     "success",
		HTTPStatus: http.StatusOK,
	}
}

func writeOK(w http.ResponseWriter, r *http.Request, mkey string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"http_method": r.Method,
		"status":      "success",
		"http_status": http.StatusOK,
		"mkey":        mkey,
		"vdom":        r.URL.Query().Get("vdom"),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status, code int) {
	writeJSON(w, status, fortigate.ErrorResponse{
		HTTPMethod: r.Method,
		Status:     "error",
		HTTPStatus: status,
		Error:      code,
		CLIError:   fmt.Sprintf("error code %d", code),
		VDOM:       r.URL.Query().Get("vdom"),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
