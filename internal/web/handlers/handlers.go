// Package handlers exposes the scheduling backend over HTTP. Tenant
// state (month navigation, the merged schedule, live subscriptions) is
// materialized lazily per company and shared by every session of that
// company.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/escaladev/escala/internal/audit"
	"github.com/escaladev/escala/internal/auth"
	"github.com/escaladev/escala/internal/database"
	"github.com/escaladev/escala/internal/directory"
	"github.com/escaladev/escala/internal/invites"
	"github.com/escaladev/escala/internal/migration"
	"github.com/escaladev/escala/internal/requests"
	"github.com/escaladev/escala/internal/roles"
	"github.com/escaladev/escala/internal/schedule"
	"github.com/escaladev/escala/internal/token"
	"github.com/escaladev/escala/pkg/models"
)

// Handler holds the process-wide dependencies for HTTP handlers.
type Handler struct {
	db         *database.DB
	resolver   *auth.Resolver
	tokens     *token.Service
	sessionTTL time.Duration
	loginLimit *rateLimiter

	mu      sync.Mutex
	tenants map[string]*tenantSession
}

// tenantSession is the per-company service graph. It lives for the
// process lifetime once constructed; ctx outlives any single request
// so live subscriptions survive between calls.
type tenantSession struct {
	tenant    *database.Tenant
	ctx       context.Context
	cancel    context.CancelFunc
	audit     *audit.Recorder
	schedule  *schedule.Store
	requests  *requests.Service
	directory *directory.Service
	invites   *invites.Service
	migration *migration.Tool

	navMu sync.Mutex
	nav   *schedule.Navigator

	// Live views over the request and audit collections, installed on
	// first read and kept current by backend pushes until ctx ends.
	feedMu     sync.Mutex
	sentFeeds  map[string]*requestFeed
	inboxFeeds map[string]*requestFeed
	auditTrail *auditFeed
}

func (ts *tenantSession) sentFeed(uid string) *requestFeed {
	ts.feedMu.Lock()
	defer ts.feedMu.Unlock()
	if f, ok := ts.sentFeeds[uid]; ok {
		return f
	}
	f := newRequestFeed(func(fn func([]models.Request)) database.Subscription {
		return ts.tenant.SubscribeSent(ts.ctx, uid, fn)
	})
	ts.sentFeeds[uid] = f
	return f
}

func (ts *tenantSession) inboxFeed(uid string) *requestFeed {
	ts.feedMu.Lock()
	defer ts.feedMu.Unlock()
	if f, ok := ts.inboxFeeds[uid]; ok {
		return f
	}
	f := newRequestFeed(func(fn func([]models.Request)) database.Subscription {
		return ts.tenant.SubscribeInbox(ts.ctx, uid, fn)
	})
	ts.inboxFeeds[uid] = f
	return f
}

func (ts *tenantSession) auditFeed() *auditFeed {
	ts.feedMu.Lock()
	defer ts.feedMu.Unlock()
	if ts.auditTrail == nil {
		ts.auditTrail = newAuditFeed(func(fn func([]models.AuditLogEntry)) database.Subscription {
			return ts.tenant.SubscribeAudit(ts.ctx, defaultAuditLimit, fn)
		})
	}
	return ts.auditTrail
}

// New creates a Handler.
func New(db *database.DB, resolver *auth.Resolver, tokens *token.Service, sessionTTL time.Duration, loginRate float64, loginBurst int) *Handler {
	return &Handler{
		db:         db,
		resolver:   resolver,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		loginLimit: newRateLimiter(loginRate, loginBurst),
		tenants:    make(map[string]*tenantSession),
	}
}

// Routes mounts every endpoint on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Method(http.MethodPost, "/session", h.loginLimit.LimitByIP(http.HandlerFunc(h.CreateSession)))

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(h.tokens))

		r.Get("/roles", h.Roles)

		r.Get("/schedule", h.Schedule)
		r.Post("/schedule/month", h.ChangeMonth)

		r.Get("/requests/sent", h.SentRequests)
		r.Get("/requests/inbox", h.InboxRequests)
		r.Post("/requests", h.CreateRequest)
		r.Post("/requests/{id}/peer-approve", h.PeerApprove)
		r.Post("/requests/{id}/peer-reject", h.PeerReject)
		r.Delete("/requests/{id}", h.DeleteRequest)

		r.Group(func(r chi.Router) {
			r.Use(AdminMiddleware)

			r.Post("/schedule/save", h.SaveSchedule)
			r.Get("/requests/leader", h.LeaderRequests)
			r.Post("/requests/{id}/approve", h.ManagerApprove)
			r.Post("/requests/{id}/reject", h.ManagerReject)
			r.Post("/admin/promote", h.Promote)
			r.Post("/admin/migrate", h.Migrate)
			r.Get("/admin/audit", h.AuditLog)
			r.Get("/admin/invite", h.ActiveInvite)
			r.Post("/admin/invite", h.CreateInvite)
			r.Post("/admin/invite/{code}/revoke", h.RevokeInvite)
		})
	})

	return r
}

// Close cancels every tenant's live subscriptions.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ts := range h.tenants {
		ts.schedule.Unwatch()
		ts.cancel()
	}
}

// session returns the tenant session for a company, building it on
// first use.
func (h *Handler) session(companyID string) (*tenantSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ts, ok := h.tenants[companyID]; ok {
		return ts, nil
	}

	tenant, err := h.db.Tenant(companyID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rec := audit.NewRecorder(tenant)
	ts := &tenantSession{
		tenant:     tenant,
		ctx:        ctx,
		cancel:     cancel,
		audit:      rec,
		schedule:   schedule.NewStore(tenant, rec),
		requests:   requests.NewService(tenant, rec, time.Now),
		directory:  directory.NewService(tenant, rec),
		invites:    invites.NewService(tenant, time.Now),
		migration:  migration.New(tenant, rec, time.Now),
		nav:        schedule.NewNavigator(time.Now()),
		sentFeeds:  make(map[string]*requestFeed),
		inboxFeeds: make(map[string]*requestFeed),
	}
	h.tenants[companyID] = ts
	return ts, nil
}

// sessionFor resolves the caller's tenant session from its claims.
func (h *Handler) sessionFor(w http.ResponseWriter, r *http.Request) (*tenantSession, *token.Claims, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "AUTH", "missing session")
		return nil, nil, false
	}
	ts, err := h.session(claims.CompanyID)
	if err != nil {
		writeError(w, http.StatusForbidden, "NO_TENANT", "no tenant bound to session")
		return nil, nil, false
	}
	return ts, claims, true
}

type createSessionReq struct {
	IDToken string `json:"idToken"`
}

type createSessionResp struct {
	Token   string              `json:"token"`
	Profile *models.UserProfile `json:"profile"`
}

// CreateSession handles POST /session. It exchanges a Firebase ID
// token for a signed session token carrying the resolved tenant and
// role. Resolution runs once here; later requests ride on the token.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "idToken is required")
		return
	}

	sess, err := h.resolver.Resolve(r.Context(), req.IDToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "AUTH", "invalid credentials")
		case errors.Is(err, auth.ErrNoTenant):
			writeError(w, http.StatusForbidden, "NO_TENANT", "account is not linked to any company")
		case errors.Is(err, auth.ErrProfileMissing):
			writeError(w, http.StatusForbidden, "NO_PROFILE", "no profile in this company")
		default:
			log.Error().Err(err).Msg("session resolution failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "could not resolve session")
		}
		return
	}

	signed, err := h.tokens.Generate(token.Claims{
		UID:       sess.UID,
		CompanyID: sess.CompanyID,
		Email:     sess.Profile.Email,
		Name:      sess.Profile.Name,
		Role:      sess.Profile.Role,
		Level:     sess.Profile.Level,
	}, h.sessionTTL)
	if err != nil {
		log.Error().Err(err).Msg("token generation failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not create session")
		return
	}

	writeJSON(w, http.StatusOK, createSessionResp{Token: signed, Profile: sess.Profile})
}

type rolesResp struct {
	Roles        []roles.Entry `json:"roles"`
	Assignable   []roles.Entry `json:"assignable"`
	ManagerLevel int           `json:"managerLevel"`
}

// Roles handles GET /roles.
func (h *Handler) Roles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rolesResp{
		Roles:        roles.All(),
		Assignable:   roles.Assignable(),
		ManagerLevel: roles.ManagerLevel,
	})
}

type scheduleResp struct {
	Month   string                           `json:"month"`
	Days    int                              `json:"days"`
	Bounds  []string                         `json:"bounds"`
	Records map[string]models.ScheduleRecord `json:"records"`
}

// Schedule handles GET /schedule. The first call for a month loads it
// and installs the live subscription; later calls serve the cached
// merge, which the subscription keeps current.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	ts, _, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	ts.navMu.Lock()
	month := ts.nav.Selected()
	ts.navMu.Unlock()

	if ts.schedule.Month() != month {
		if err := ts.schedule.Load(r.Context(), month); err != nil {
			log.Error().Err(err).Str("month", month.ID()).Msg("schedule load failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "could not load schedule")
			return
		}
		ts.schedule.Watch(ts.ctx, month)
	}

	writeJSON(w, http.StatusOK, h.scheduleView(ts, month))
}

func (h *Handler) scheduleView(ts *tenantSession, month schedule.MonthRef) scheduleResp {
	ts.navMu.Lock()
	bounds := ts.nav.Bounds()
	ts.navMu.Unlock()

	ids := make([]string, len(bounds))
	for i, m := range bounds {
		ids[i] = m.ID()
	}
	return scheduleResp{
		Month:   month.ID(),
		Days:    month.Days(),
		Bounds:  ids,
		Records: ts.schedule.Records(),
	}
}

type changeMonthReq struct {
	Direction int    `json:"direction"`
	Month     string `json:"month"`
}

// ChangeMonth handles POST /schedule/month. Either a relative
// direction or an explicit month id; moves outside the navigable
// window clamp to the nearest bound. Changing months tears down the
// previous month's subscription before the new one is installed.
func (h *Handler) ChangeMonth(w http.ResponseWriter, r *http.Request) {
	ts, _, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	var req changeMonthReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid request body")
		return
	}

	ts.navMu.Lock()
	if req.Month != "" {
		m, err := parseMonth(req.Month)
		if err != nil {
			ts.navMu.Unlock()
			writeError(w, http.StatusBadRequest, "VALIDATION", "invalid month id")
			return
		}
		ts.nav.Select(m)
	} else {
		ts.nav.Move(req.Direction)
	}
	month := ts.nav.Selected()
	ts.navMu.Unlock()

	if err := ts.schedule.Load(r.Context(), month); err != nil {
		log.Error().Err(err).Str("month", month.ID()).Msg("schedule load failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not load schedule")
		return
	}
	ts.schedule.Watch(ts.ctx, month)

	writeJSON(w, http.StatusOK, h.scheduleView(ts, month))
}

type saveScheduleReq struct {
	UID      string              `json:"uid"`
	Name     string              `json:"name"`
	Schedule []models.StatusCode `json:"schedule"`
}

// SaveSchedule handles POST /schedule/save.
func (h *Handler) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	ts, claims, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	var req saveScheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "uid is required")
		return
	}

	ts.navMu.Lock()
	month := ts.nav.Selected()
	ts.navMu.Unlock()

	rec := models.ScheduleRecord{UID: req.UID, Name: req.Name, Schedule: req.Schedule}
	if err := ts.schedule.Save(r.Context(), month, claims.Email, rec); err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"month": month.ID(), "uid": req.UID})
}

type createRequestReq struct {
	MonthID      string `json:"monthId"`
	DayIndex     int    `json:"dayIndex"`
	Type         string `json:"type"`
	Target       string `json:"target"`
	TargetUID    string `json:"targetUid"`
	DesiredShift string `json:"desiredShift"`
	Reason       string `json:"reason"`
}

// CreateRequest handles POST /requests.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	ts, claims, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	var req createRequestReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid request body")
		return
	}

	created, err := ts.requests.Create(r.Context(), claims.Name, claims.UID, requests.CreateInput{
		MonthID:      req.MonthID,
		DayIndex:     req.DayIndex,
		Type:         req.Type,
		Target:       req.Target,
		TargetUID:    req.TargetUID,
		DesiredShift: req.DesiredShift,
		Reason:       req.Reason,
	})
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// SentRequests handles GET /requests/sent. The first call installs a
// live query for the caller; later calls serve the pushed cache.
func (h *Handler) SentRequests(w http.ResponseWriter, r *http.Request) {
	ts, claims, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	h.listRequests(w, r, func() ([]models.Request, error) {
		return ts.sentFeed(claims.UID).Wait(r.Context())
	})
}

// InboxRequests handles GET /requests/inbox. Only requests still
// waiting on the caller's word appear here; the list is held current
// by a live query like the sent view.
func (h *Handler) InboxRequests(w http.ResponseWriter, r *http.Request) {
	ts, claims, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	h.listRequests(w, r, func() ([]models.Request, error) {
		return ts.inboxFeed(claims.UID).Wait(r.Context())
	})
}

// LeaderRequests handles GET /requests/leader.
func (h *Handler) LeaderRequests(w http.ResponseWriter, r *http.Request) {
	ts, _, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	h.listRequests(w, r, func() ([]models.Request, error) {
		return ts.tenant.LeaderRequests(r.Context())
	})
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request, load func() ([]models.Request, error)) {
	reqs, err := load()
	if err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request listing failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not list requests")
		return
	}
	if reqs == nil {
		reqs = []models.Request{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// PeerApprove handles POST /requests/{id}/peer-approve.
func (h *Handler) PeerApprove(w http.ResponseWriter, r *http.Request) {
	h.peerAction(w, r, func(ts *tenantSession, uid, id string) error {
		return ts.requests.PeerApprove(r.Context(), uid, id)
	})
}

// PeerReject handles POST /requests/{id}/peer-reject.
func (h *Handler) PeerReject(w http.ResponseWriter, r *http.Request) {
	h.peerAction(w, r, func(ts *tenantSession, uid, id string) error {
		return ts.requests.PeerReject(r.Context(), uid, id)
	})
}

func (h *Handler) peerAction(w http.ResponseWriter, r *http.Request, act func(*tenantSession, string, string) error) {
	ts, claims, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := act(ts, claims.UID, id); err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// DeleteRequest handles DELETE /requests/{id}.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	ts, claims, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := ts.requests.Delete(r.Context(), claims.UID, id); err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// ManagerApprove handles POST /requests/{id}/approve. Approval applies
// the granted status to the roster before the request is finalized.
func (h *Handler) ManagerApprove(w http.ResponseWriter, r *http.Request) {
	h.managerAction(w, r, func(ts *tenantSession, email string, level int, id string) error {
		return ts.requests.ManagerApprove(r.Context(), email, level, id)
	})
}

// ManagerReject handles POST /requests/{id}/reject.
func (h *Handler) ManagerReject(w http.ResponseWriter, r *http.Request) {
	h.managerAction(w, r, func(ts *tenantSession, email string, level int, id string) error {
		return ts.requests.ManagerReject(r.Context(), email, level, id)
	})
}

func (h *Handler) managerAction(w http.ResponseWriter, r *http.Request, act func(*tenantSession, string, int, string) error) {
	ts, claims, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := act(ts, claims.Email, claims.Level, id); err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

type promoteReq struct {
	TargetUID string `json:"targetUid"`
	Role      string `json:"role"`
}

// Promote handles POST /admin/promote.
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	ts, claims, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	var req promoteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetUID == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "targetUid and role are required")
		return
	}

	if err := ts.directory.Promote(r.Context(), claims.UID, claims.Email, claims.Level, req.TargetUID, req.Role); err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"targetUid": req.TargetUID, "role": req.Role})
}

type migrateResp struct {
	Migrated int  `json:"migrated"`
	Reload   bool `json:"reload"`
}

// Migrate handles POST /admin/migrate. Reload tells the client to
// re-fetch everything once the legacy import lands.
func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	ts, claims, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	migrated, err := ts.migration.Run(r.Context(), claims.Email)
	if err != nil {
		log.Error().Err(err).Int("migrated", migrated).Msg("migration aborted")
		writeError(w, http.StatusInternalServerError, "MIGRATION", fmt.Sprintf("migration aborted after %d users", migrated))
		return
	}
	writeJSON(w, http.StatusOK, migrateResp{Migrated: migrated, Reload: true})
}

const defaultAuditLimit = 50

// AuditLog handles GET /admin/audit. The default view is served from a
// live query cache; an explicit limit bypasses it with a point-in-time
// read.
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	ts, _, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	var entries []models.AuditLogEntry
	var err error
	if v := r.URL.Query().Get("limit"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "VALIDATION", "limit must be between 1 and 500")
			return
		}
		entries, err = ts.tenant.AuditLog(r.Context(), n)
	} else {
		entries, err = ts.auditFeed().Wait(r.Context())
	}
	if err != nil {
		log.Error().Err(err).Msg("audit log read failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not read audit log")
		return
	}
	if entries == nil {
		entries = []models.AuditLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ActiveInvite handles GET /admin/invite.
func (h *Handler) ActiveInvite(w http.ResponseWriter, r *http.Request) {
	ts, _, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	inv, err := ts.invites.Active(r.Context())
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// CreateInvite handles POST /admin/invite. Creating an invite retires
// any previously active one.
func (h *Handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	ts, claims, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	inv, err := ts.invites.Create(r.Context(), claims.Email)
	if err != nil {
		log.Error().Err(err).Msg("invite creation failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not create invite")
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// RevokeInvite handles POST /admin/invite/{code}/revoke.
func (h *Handler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	ts, _, ok := h.sessionFor(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")
	if err := ts.invites.Revoke(r.Context(), code); err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

// serviceError maps service-layer failures onto the response envelope.
func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, requests.ErrValidation), errors.Is(err, roles.ErrUnknownRole):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
	case errors.Is(err, requests.ErrForbidden), errors.Is(err, directory.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, requests.ErrBadTransition):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func parseMonth(id string) (schedule.MonthRef, error) {
	var m schedule.MonthRef
	if _, err := fmt.Sscanf(id, "%4d-%2d", &m.Year, &m.Month); err != nil {
		return schedule.MonthRef{}, fmt.Errorf("parse month %q: %w", id, err)
	}
	if m.Month < 1 || m.Month > 12 {
		return schedule.MonthRef{}, fmt.Errorf("parse month %q: month out of range", id)
	}
	return m, nil
}
