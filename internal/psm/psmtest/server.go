// Package psmtest provides an in-process fake PSM appliance for tests.
package psmtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bcnelson/psm-connector/internal/config"
	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/psm"
)

// Default credentials accepted by a new Server.
const (
	Username = "admin"
	Password = "Pensando0$"
	Tenant   = "default"
)

// Request records one call the appliance received.
type Request struct {
	Method string
	Path   string
	SID    string
	Body   []byte
}

// Server is a fake appliance. It issues sid cookies on login, rejects
// requests whose cookie it did not issue, and keeps security policies,
// mirror sessions and flow export policies in memory.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	sessionTTL  time.Duration
	sessions    map[string]time.Time
	rejectNext  int
	loginStatus int
	omitCookie  bool
	logins      int
	requests    []Request

	policyOrder []string
	policies    map[string]map[string]json.RawMessage
	mirrors     map[string]json.RawMessage
	flowExports map[string]json.RawMessage
	workloads   []any
	alerts      []any
}

// NewServer starts a fake appliance. Close it when done.
func NewServer() *Server {
	s := &Server{
		sessionTTL:  time.Hour,
		sessions:    make(map[string]time.Time),
		policies:    make(map[string]map[string]json.RawMessage),
		mirrors:     make(map[string]json.RawMessage),
		flowExports: make(map[string]json.RawMessage),
	}

	r := chi.NewRouter()
	r.Post(psm.LoginPath, s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get(psm.WorkloadsPath, s.handleList("WorkloadList", func() []any { return s.workloads }))
		r.Get(psm.DistributedServiceCardsPath, s.handleList("DistributedServiceCardList", nil))
		r.Get(psm.NetworksPath, s.handleList("NetworkList", nil))
		r.Get(psm.AlertsPath, s.handleList("AlertList", func() []any { return s.alerts }))

		r.Get(psm.SecurityPoliciesPath, s.handleListPolicies)
		r.Get("/configs/security/v1/tenant/{tenant}/networksecuritypolicies/{name}", s.handleGetPolicy)
		r.Put("/configs/security/v1/tenant/{tenant}/networksecuritypolicies/{name}", s.handlePutPolicy)

		r.Post("/configs/monitoring/v1/tenant/{tenant}/MirrorSession", s.handleCreate(s.mirrors))
		r.Delete("/configs/monitoring/v1/tenant/{tenant}/MirrorSession/{name}", s.handleDelete(s.mirrors))
		r.Post("/configs/monitoring/v1/tenant/{tenant}/flowExportPolicy", s.handleCreate(s.flowExports))
		r.Delete("/configs/monitoring/v1/tenant/{tenant}/flowExportPolicy/{name}", s.handleDelete(s.flowExports))
	})

	s.Server = httptest.NewServer(r)
	return s
}

// Config returns an appliance configuration pointing at the server.
func (s *Server) Config() config.ApplianceConfig {
	host, portStr, _ := net.SplitHostPort(s.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return config.ApplianceConfig{
		ServerAddress: host,
		Port:          port,
		Username:      Username,
		Password:      Password,
		Tenant:        Tenant,
		Protocol:      "http",
		VerifySSL:     true,
	}
}

// SetSessionTTL sets the lifetime of cookies issued from now on.
func (s *Server) SetSessionTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionTTL = ttl
}

// RejectNext answers the next n authenticated requests with 401.
func (s *Server) RejectNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectNext = n
}

// FailLogin makes every login answer with status. Zero restores normal logins.
func (s *Server) FailLogin(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginStatus = status
}

// OmitSessionCookie makes logins succeed without setting the sid cookie.
func (s *Server) OmitSessionCookie() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitCookie = true
}

// ExpireSessions invalidates every issued cookie on the appliance side.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sessions)
}

// Logins returns the number of login attempts received.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Requests returns the non-login requests received, in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests returns how many requests matched method and path.
func (s *Server) CountRequests(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// AddPolicy stores a policy. The raw form lets tests include fields the
// connector does not model.
func (s *Server) AddPolicy(raw []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	var meta domain.ObjectMeta
	if err := json.Unmarshal(obj["meta"], &meta); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[meta.Name]; !ok {
		s.policyOrder = append(s.policyOrder, meta.Name)
	}
	s.policies[meta.Name] = obj
	return nil
}

// SetPolicyRules stores a policy named name with the given rules.
func (s *Server) SetPolicyRules(name string, rules []domain.Rule) error {
	if rules == nil {
		rules = []domain.Rule{}
	}
	raw, err := json.Marshal(domain.NetworkSecurityPolicy{
		Kind:       "NetworkSecurityPolicy",
		APIVersion: "v1",
		Meta:       domain.ObjectMeta{Name: name, Tenant: Tenant},
		Spec:       domain.NetworkSecurityPolicySpec{AttachTenant: true, Rules: rules},
	})
	if err != nil {
		return err
	}
	return s.AddPolicy(raw)
}

// PolicyRules returns the stored rules of a policy.
func (s *Server) PolicyRules(name string) ([]domain.Rule, bool) {
	raw, ok := s.PolicyJSON(name)
	if !ok {
		return nil, false
	}
	var policy domain.NetworkSecurityPolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return nil, false
	}
	return policy.Spec.Rules, true
}

// PolicyJSON returns the stored policy as JSON.
func (s *Server) PolicyJSON(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.policies[name]
	if !ok {
		return nil, false
	}
	raw, err := json.Marshal(obj)
	return raw, err == nil
}

// MirrorSession returns the body a mirror session was created with.
func (s *Server) MirrorSession(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.mirrors[name]
	return raw, ok
}

// FlowExportPolicy returns the body a flow export policy was created with.
func (s *Server) FlowExportPolicy(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.flowExports[name]
	return raw, ok
}

// SetWorkloads sets the items served by the workloads endpoint.
func (s *Server) SetWorkloads(items ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workloads = items
}

// SetAlerts sets the items served by the alerts endpoint.
func (s *Server) SetAlerts(items ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = items
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Tenant   string `json:"tenant"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++

	if s.loginStatus != 0 {
		respondError(w, s.loginStatus, "login rejected")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid login body")
		return
	}
	if req.Username != Username || req.Password != Password || req.Tenant != Tenant {
		respondError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	if !s.omitCookie {
		sid := uuid.New().String()
		expires := time.Now().Add(s.sessionTTL)
		s.sessions[sid] = expires
		http.SetCookie(w, &http.Cookie{
			Name:     psm.SessionCookieName,
			Value:    sid,
			Path:     "/",
			Expires:  expires,
			HttpOnly: true,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"kind": "User", "meta": map[string]string{"name": req.Username, "tenant": req.Tenant}})
}

// requireSession records the request and rejects unknown or expired cookies.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sid string
		if c, err := r.Cookie(psm.SessionCookieName); err == nil {
			sid = c.Value
		}
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, SID: sid, Body: body})
		expires, known := s.sessions[sid]
		reject := s.rejectNext > 0
		if reject {
			s.rejectNext--
		}
		s.mu.Unlock()

		if reject || !known || time.Now().After(expires) {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(kind string, items func() []any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		out := []any{}
		if items != nil && items() != nil {
			out = items()
		}
		s.mu.Unlock()
		respondJSON(w, http.StatusOK, map[string]any{"kind": kind, "items": out})
	}
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := make([]map[string]json.RawMessage, 0, len(s.policyOrder))
	for _, name := range s.policyOrder {
		items = append(items, s.policies[name])
	}
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]any{"kind": "NetworkSecurityPolicyList", "items": items})
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	obj, ok := s.policies[name]
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "policy not found")
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

// handlePutPolicy replaces the spec of an existing policy and keeps its meta.
func (s *Server) handlePutPolicy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid policy body")
		return
	}
	spec, ok := body["spec"]
	if !ok {
		respondError(w, http.StatusBadRequest, "policy spec is required")
		return
	}

	s.mu.Lock()
	obj, ok := s.policies[name]
	if ok {
		obj["spec"] = spec
	}
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "policy not found")
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

func (s *Server) handleCreate(into map[string]json.RawMessage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			respondError(w, http.StatusBadRequest, "reading body")
			return
		}
		var obj struct {
			Meta domain.ObjectMeta `json:"meta"`
		}
		if err := json.Unmarshal(body, &obj); err != nil || obj.Meta.Name == "" {
			respondError(w, http.StatusBadRequest, "meta.name is required")
			return
		}

		s.mu.Lock()
		_, exists := into[obj.Meta.Name]
		if !exists {
			into[obj.Meta.Name] = body
		}
		s.mu.Unlock()
		if exists {
			respondError(w, http.StatusConflict, "object already exists")
			return
		}
		respondJSON(w, http.StatusOK, json.RawMessage(body))
	}
}

func (s *Server) handleDelete(from map[string]json.RawMessage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		s.mu.Lock()
		body, ok := from[name]
		delete(from, name)
		s.mu.Unlock()
		if !ok {
			respondError(w, http.StatusNotFound, "object not found")
			return
		}
		respondJSON(w, http.StatusOK, json.RawMessage(body))
	}
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes an error body shaped like the appliance's.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"kind":    "Status",
		"result":  map[string]string{"Str": message},
		"message": []string{message},
		"code":    status,
	})
}
