// Package server exposes the management and SDK HTTP APIs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matt-riley/switchboard/internal/core"
	"github.com/matt-riley/switchboard/internal/middleware"
	"github.com/matt-riley/switchboard/internal/repository"
	"github.com/matt-riley/switchboard/internal/service"
)

const (
	defaultMaxJSONBodyBytes = 1 << 20
	healthCheckTimeout      = 2 * time.Second
)

var errJSONBodyTooLarge = errors.New("json request body too large")

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Option configures the HTTP handler.
type Option func(*HTTPServer)

// WithMaxJSONBodyBytes caps the accepted JSON request body size.
func WithMaxJSONBodyBytes(n int64) Option {
	return func(s *HTTPServer) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithAuthMiddleware sets the middleware guarding the management API.
func WithAuthMiddleware(mw Middleware) Option {
	return func(s *HTTPServer) { s.authMW = mw }
}

// WithSDKAuthMiddleware sets the middleware guarding the SDK API.
func WithSDKAuthMiddleware(mw Middleware) Option {
	return func(s *HTTPServer) { s.sdkMW = mw }
}

// WithMetricsHandler mounts a handler at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *HTTPServer) { s.metricsHandler = h }
}

// WithHealthCheck sets the probe run by GET /healthz (e.g. a database ping).
func WithHealthCheck(fn func(ctx context.Context) error) Option {
	return func(s *HTTPServer) { s.healthCheck = fn }
}

type HTTPServer struct {
	service        Service
	tokens         TokenIssuer
	maxBodyBytes   int64
	authMW         Middleware
	sdkMW          Middleware
	metricsHandler http.Handler
	healthCheck    func(ctx context.Context) error
}

// NewHTTPHandler builds the full route table: public auth endpoints, the
// bearer-token management API, the SDK-key evaluate endpoint, and the
// operational endpoints.
func NewHTTPHandler(svc Service, tokens TokenIssuer, opts ...Option) http.Handler {
	if svc == nil {
		panic("service is nil")
	}
	if tokens == nil {
		panic("token issuer is nil")
	}

	server := &HTTPServer{
		service:      svc,
		tokens:       tokens,
		maxBodyBytes: defaultMaxJSONBodyBytes,
	}
	for _, o := range opts {
		o(server)
	}
	if server.authMW == nil {
		server.authMW = func(next http.Handler) http.Handler { return next }
	}
	if server.sdkMW == nil {
		server.sdkMW = func(next http.Handler) http.Handler { return next }
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/register", server.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", server.handleLogin)

	management := http.NewServeMux()
	management.HandleFunc("POST /v1/projects", server.handleCreateProject)
	management.HandleFunc("GET /v1/projects", server.handleListProjects)
	management.HandleFunc("GET /v1/projects/{projectID}", server.handleGetProject)
	management.HandleFunc("PUT /v1/projects/{projectID}", server.handleUpdateProject)
	management.HandleFunc("DELETE /v1/projects/{projectID}", server.handleDeleteProject)
	management.HandleFunc("POST /v1/projects/{projectID}/regenerate-key", server.handleRegenerateSDKKey)

	management.HandleFunc("POST /v1/projects/{projectID}/environments", server.handleCreateEnvironment)
	management.HandleFunc("GET /v1/projects/{projectID}/environments", server.handleListEnvironments)
	management.HandleFunc("GET /v1/projects/{projectID}/environments/{environmentID}", server.handleGetEnvironment)
	management.HandleFunc("PUT /v1/projects/{projectID}/environments/{environmentID}", server.handleUpdateEnvironment)
	management.HandleFunc("DELETE /v1/projects/{projectID}/environments/{environmentID}", server.handleDeleteEnvironment)

	management.HandleFunc("POST /v1/projects/{projectID}/environments/{environmentID}/flags", server.handleCreateFlag)
	management.HandleFunc("GET /v1/projects/{projectID}/environments/{environmentID}/flags", server.handleListFlags)
	management.HandleFunc("GET /v1/projects/{projectID}/environments/{environmentID}/flags/{flagID}", server.handleGetFlag)
	management.HandleFunc("PUT /v1/projects/{projectID}/environments/{environmentID}/flags/{flagID}", server.handleUpdateFlag)
	management.HandleFunc("DELETE /v1/projects/{projectID}/environments/{environmentID}/flags/{flagID}", server.handleDeleteFlag)

	management.HandleFunc("POST /v1/projects/{projectID}/environments/{environmentID}/flags/{flagID}/rules", server.handleCreateRule)
	management.HandleFunc("GET /v1/projects/{projectID}/environments/{environmentID}/flags/{flagID}/rules", server.handleListRules)
	management.HandleFunc("GET /v1/projects/{projectID}/environments/{environmentID}/flags/{flagID}/rules/{ruleID}", server.handleGetRule)
	management.HandleFunc("PUT /v1/projects/{projectID}/environments/{environmentID}/flags/{flagID}/rules/{ruleID}", server.handleUpdateRule)
	management.HandleFunc("DELETE /v1/projects/{projectID}/environments/{environmentID}/flags/{flagID}/rules/{ruleID}", server.handleDeleteRule)

	guarded := server.authMW(management)
	mux.Handle("/v1/projects", guarded)
	mux.Handle("/v1/projects/", guarded)

	sdk := http.NewServeMux()
	sdk.HandleFunc("POST /v1/sdk/evaluate", server.handleEvaluate)
	mux.Handle("/v1/sdk/", server.sdkMW(sdk))

	mux.HandleFunc("GET /healthz", server.handleHealthz)
	if server.metricsHandler != nil {
		mux.Handle("GET /metrics", server.metricsHandler)
	}

	return mux
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type environmentRequest struct {
	Name        string `json:"name"`
	Key         string `json:"key,omitempty"`
	Description string `json:"description,omitempty"`
}

type flagRequest struct {
	Name              string `json:"name"`
	Key               string `json:"key,omitempty"`
	Description       string `json:"description,omitempty"`
	Enabled           bool   `json:"enabled"`
	RolloutPercentage int    `json:"rollout_percentage"`
}

type ruleRequest struct {
	RuleType  string `json:"rule_type,omitempty"`
	RuleValue string `json:"rule_value"`
	Enabled   bool   `json:"enabled"`
	Priority  int    `json:"priority"`
}

type evaluateJSONRequest struct {
	Environment string           `json:"environment"`
	Context     core.UserContext `json:"context"`
}

type evaluateJSONResponse struct {
	Flags map[string]core.Evaluation `json:"flags"`
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var request credentialsRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	user, err := s.service.Register(r.Context(), request.Email, request.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var request credentialsRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	user, err := s.service.Authenticate(r.Context(), request.Email, request.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// userID pulls the authenticated user out of the request context. The auth
// middleware guarantees it for mounted routes; a miss means the handler was
// mounted without it.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok || id == "" {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return id, true
}

func (s *HTTPServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var request projectRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	project, err := s.service.CreateProject(r.Context(), uid, request.Name, request.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

func (s *HTTPServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	projects, err := s.service.ListProjects(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, projects)
}

func (s *HTTPServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	project, err := s.service.GetProject(r.Context(), uid, r.PathValue("projectID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (s *HTTPServer) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var request projectRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	project, err := s.service.UpdateProject(r.Context(), uid, r.PathValue("projectID"), request.Name, request.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (s *HTTPServer) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := s.service.DeleteProject(r.Context(), uid, r.PathValue("projectID")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleRegenerateSDKKey(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	project, err := s.service.RegenerateSDKKey(r.Context(), uid, r.PathValue("projectID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (s *HTTPServer) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var request environmentRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	env, err := s.service.CreateEnvironment(r.Context(), uid, r.PathValue("projectID"), repository.Environment{
		Name:        request.Name,
		Key:         request.Key,
		Description: request.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, env)
}

func (s *HTTPServer) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	environments, err := s.service.ListEnvironments(r.Context(), uid, r.PathValue("projectID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, environments)
}

func (s *HTTPServer) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	env, err := s.service.GetEnvironment(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, env)
}

func (s *HTTPServer) handleUpdateEnvironment(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var request environmentRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	env, err := s.service.UpdateEnvironment(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"), request.Name, request.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, env)
}

func (s *HTTPServer) handleDeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := s.service.DeleteEnvironment(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCreateFlag(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var request flagRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	flag, err := s.service.CreateFlag(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"), repository.Flag{
		Name:              request.Name,
		Key:               request.Key,
		Description:       request.Description,
		Enabled:           request.Enabled,
		RolloutPercentage: request.RolloutPercentage,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, flag)
}

func (s *HTTPServer) handleListFlags(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	flags, err := s.service.ListFlags(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, flags)
}

func (s *HTTPServer) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	flag, err := s.service.GetFlag(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"), r.PathValue("flagID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, flag)
}

func (s *HTTPServer) handleUpdateFlag(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var request flagRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	// The flag key is fixed at creation; any key in the body is ignored.
	flag, err := s.service.UpdateFlag(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"), repository.Flag{
		ID:                r.PathValue("flagID"),
		Name:              request.Name,
		Description:       request.Description,
		Enabled:           request.Enabled,
		RolloutPercentage: request.RolloutPercentage,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, flag)
}

func (s *HTTPServer) handleDeleteFlag(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := s.service.DeleteFlag(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"), r.PathValue("flagID")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var request ruleRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	rule, err := s.service.CreateRule(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"), r.PathValue("flagID"), repository.Rule{
		RuleType:  request.RuleType,
		RuleValue: request.RuleValue,
		Enabled:   request.Enabled,
		Priority:  request.Priority,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

func (s *HTTPServer) handleListRules(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	rules, err := s.service.ListRules(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"), r.PathValue("flagID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rules)
}

func (s *HTTPServer) handleGetRule(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	rule, err := s.service.GetRule(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"), r.PathValue("flagID"), r.PathValue("ruleID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

func (s *HTTPServer) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var request ruleRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	rule, err := s.service.UpdateRule(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"), r.PathValue("flagID"), repository.Rule{
		ID:        r.PathValue("ruleID"),
		RuleValue: request.RuleValue,
		Enabled:   request.Enabled,
		Priority:  request.Priority,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

func (s *HTTPServer) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := s.service.DeleteRule(r.Context(), uid, r.PathValue("projectID"), r.PathValue("environmentID"), r.PathValue("flagID"), r.PathValue("ruleID")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := middleware.ProjectIDFromContext(r.Context())
	if !ok || projectID == "" {
		writeJSONError(w, http.StatusUnauthorized, "SDK key required")
		return
	}

	var request evaluateJSONRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	if strings.TrimSpace(request.Environment) == "" {
		writeJSONError(w, http.StatusBadRequest, "environment is required")
		return
	}

	results, err := s.service.Evaluate(r.Context(), projectID, request.Environment, request.Context)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, evaluateJSONResponse{Flags: results})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.healthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.healthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrInvalidKey),
		errors.Is(err, service.ErrInvalidRollout),
		errors.Is(err, service.ErrInvalidRuleType),
		errors.Is(err, service.ErrInvalidRuleValue):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		writeJSONError(w, http.StatusConflict, service.ErrEmailTaken.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, context.Canceled):
		writeJSONError(w, http.StatusRequestTimeout, "request canceled")
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSONDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errJSONBodyTooLarge) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *HTTPServer) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return io.EOF
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return normalizeJSONDecodeError(err)
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("request body must contain a single JSON object")
		}
		return normalizeJSONDecodeError(err)
	}

	return nil
}

func normalizeJSONDecodeError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return errJSONBodyTooLarge
	}
	return err
}
