package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/domain"
)

const (
	claimsKey         = "claims"
	readHeaderTimeout = 10 * time.Second
)

// Server exposes the API under /v1.
type Server struct {
	api    *API
	hub    *Hub
	auth   *Authenticator
	engine *gin.Engine
	http   *http.Server
	logger *zap.Logger
}

// NewServer builds the router. Every route except /v1/version requires a
// bearer token; the event stream also accepts ?token= since browsers cannot
// set headers on websocket upgrades.
func NewServer(api *API, hub *Hub, auth *Authenticator, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog(logger))

	s := &Server{api: api, hub: hub, auth: auth, engine: engine, logger: logger}
	s.http = &http.Server{Handler: engine, ReadHeaderTimeout: readHeaderTimeout}

	v1 := engine.Group("/v1")
	v1.GET("/version", s.version)

	authed := v1.Group("", s.requireToken)
	s.initSystemRoutes(authed)
	s.initWindowRoutes(authed)
	s.initFeatureRoutes(authed)
	s.initProfileRoutes(authed)
	authed.GET("/events", s.events)

	return s
}

// Handler returns the HTTP handler (for httptest).
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve accepts connections until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("bridge listening", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes event subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) requireToken(ctx *gin.Context) {
	token, ok := bearerToken(ctx.GetHeader("Authorization"))
	if !ok {
		token = ctx.Query("token")
	}
	if token == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "authorization failed: missing bearer token"})
		return
	}
	claims, err := s.auth.Parse(token)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, newErrorBody("authorization", err))
		return
	}
	ctx.Set(claimsKey, claims)
	ctx.Next()
}

func (s *Server) initSystemRoutes(r *gin.RouterGroup) {
	r.GET("/system/status", s.systemStatus)
	r.GET("/system/info", s.systemInfo)
	r.GET("/system/firewall", s.firewallStatus)
	r.POST("/scripts/run", s.runScript)
	r.GET("/admin", s.isProcessAdmin)
	r.POST("/admin/relaunch", s.relaunchAsAdmin)
	r.POST("/updates/check", s.checkForUpdates)
	r.POST("/updates/install", s.quitAndInstall)
	r.GET("/state-cache", s.getStateCache)
	r.PUT("/state-cache", s.saveStateCache)
}

func (s *Server) initWindowRoutes(r *gin.RouterGroup) {
	r.GET("/window", s.windowState)
	r.POST("/window/minimize", s.minimize)
	r.POST("/window/toggle-maximize", s.toggleMaximize)
	r.POST("/window/close", s.closeWindow)
}

func (s *Server) initFeatureRoutes(r *gin.RouterGroup) {
	r.GET("/features", s.features)
	r.GET("/features/:feature/modules", s.modules)
	r.POST("/features/:feature/refresh", s.refreshFeature)
	r.POST("/features/:feature/modules/:id/toggle", s.toggleModule)
	r.GET("/features/:feature/actions", s.actions)
	r.POST("/features/:feature/actions/:action", s.runAction)
}

func (s *Server) initProfileRoutes(r *gin.RouterGroup) {
	r.GET("/profiles", s.listProfiles)
	r.POST("/profiles", s.saveProfile)
	r.POST("/profiles/import", s.importProfile)
	r.POST("/profiles/:id/apply", s.applyProfile)
	r.GET("/profiles/:id/export", s.exportProfile)
	r.DELETE("/profiles/:id", s.deleteProfile)
}

func (s *Server) fail(ctx *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("bridge operation failed", zap.String("op", op), zap.Error(err))
	}
	ctx.JSON(status, newErrorBody(op, err))
}

// bind decodes an optional JSON body; an empty body leaves v untouched.
func bind(ctx *gin.Context, v interface{}) error {
	if ctx.Request.ContentLength == 0 {
		return nil
	}
	if err := jsonCodec.NewDecoder(ctx.Request.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func (s *Server) version(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.api.Version())
}

func (s *Server) systemStatus(ctx *gin.Context) {
	status, err := s.api.GetSystemStatus(ctx.Request.Context())
	if err != nil {
		s.fail(ctx, "getSystemStatus", err)
		return
	}
	ctx.JSON(http.StatusOK, status)
}

func (s *Server) systemInfo(ctx *gin.Context) {
	res, err := s.api.GetSystemInfo(ctx.Request.Context())
	if err != nil {
		s.fail(ctx, "getSystemInfo", err)
		return
	}
	writeResult(ctx, res)
}

func (s *Server) firewallStatus(ctx *gin.Context) {
	res, err := s.api.GetFirewallStatus(ctx.Request.Context())
	if err != nil {
		s.fail(ctx, "getFirewallStatus", err)
		return
	}
	writeResult(ctx, res)
}

// RunScriptRequest is the body of POST /v1/scripts/run.
type RunScriptRequest struct {
	Name          string   `json:"name"`
	Args          []string `json:"args"`
	RequiresAdmin bool     `json:"requiresAdmin"`
}

func (s *Server) runScript(ctx *gin.Context) {
	var req RunScriptRequest
	if err := bind(ctx, &req); err != nil {
		s.fail(ctx, "runScript", err)
		return
	}
	res, err := s.api.RunScript(ctx.Request.Context(), req.Name, req.Args, req.RequiresAdmin)
	if err != nil {
		s.fail(ctx, "runScript", err)
		return
	}
	writeResult(ctx, res)
}

func (s *Server) isProcessAdmin(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"admin": s.api.IsProcessAdmin()})
}

func (s *Server) relaunchAsAdmin(ctx *gin.Context) {
	if err := s.api.RelaunchAsAdmin(ctx.Request.Context()); err != nil {
		s.fail(ctx, "relaunchAsAdmin", err)
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"relaunching": true})
}

func (s *Server) checkForUpdates(ctx *gin.Context) {
	check, err := s.api.CheckForUpdates(ctx.Request.Context())
	if err != nil {
		s.fail(ctx, "checkForUpdates", err)
		return
	}
	ctx.JSON(http.StatusOK, check)
}

func (s *Server) quitAndInstall(ctx *gin.Context) {
	if err := s.api.QuitAndInstall(ctx.Request.Context()); err != nil {
		s.fail(ctx, "quitAndInstall", err)
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"installing": true})
}

func (s *Server) getStateCache(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.api.GetStateCache())
}

func (s *Server) saveStateCache(ctx *gin.Context) {
	var snap domain.StateSnapshot
	if err := bind(ctx, &snap); err != nil {
		s.fail(ctx, "saveStateCache", err)
		return
	}
	s.api.SaveStateCache(snap)
	ctx.Status(http.StatusNoContent)
}

func (s *Server) windowState(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.api.Window().Snapshot())
}

func (s *Server) minimize(ctx *gin.Context) {
	s.api.Minimize()
	ctx.JSON(http.StatusOK, s.api.Window().Snapshot())
}

func (s *Server) toggleMaximize(ctx *gin.Context) {
	s.api.ToggleMaximize()
	ctx.JSON(http.StatusOK, s.api.Window().Snapshot())
}

func (s *Server) closeWindow(ctx *gin.Context) {
	ctx.JSON(http.StatusAccepted, gin.H{"closing": true})
	s.api.Close()
}

func (s *Server) features(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.api.Features())
}

func (s *Server) modules(ctx *gin.Context) {
	states, err := s.api.Modules(ctx.Param("feature"))
	if err != nil {
		s.fail(ctx, "listModules", err)
		return
	}
	ctx.JSON(http.StatusOK, states)
}

// refreshFeature answers with the module states even when some queries
// failed; the failures are listed alongside.
func (s *Server) refreshFeature(ctx *gin.Context) {
	states, err := s.api.RefreshFeature(ctx.Request.Context(), ctx.Param("feature"))
	if states == nil {
		s.fail(ctx, "refresh", err)
		return
	}
	body := gin.H{"modules": states}
	if err != nil {
		body["error"] = newErrorBody("refresh", err).Error
	}
	ctx.JSON(http.StatusOK, body)
}

// ToggleRequest is the body of the module toggle route.
type ToggleRequest struct {
	Enable bool `json:"enable"`
}

func (s *Server) toggleModule(ctx *gin.Context) {
	var req ToggleRequest
	if err := bind(ctx, &req); err != nil {
		s.fail(ctx, "toggleModule", err)
		return
	}
	st, err := s.api.ToggleModule(ctx.Request.Context(), ctx.Param("feature"), ctx.Param("id"), req.Enable)
	if err != nil {
		s.fail(ctx, "toggleModule", err)
		return
	}
	ctx.JSON(http.StatusOK, st)
}

func (s *Server) actions(ctx *gin.Context) {
	actions, err := s.api.Actions(ctx.Param("feature"))
	if err != nil {
		s.fail(ctx, "listActions", err)
		return
	}
	ctx.JSON(http.StatusOK, actions)
}

// ActionRequest is the body of the action route.
type ActionRequest struct {
	Params map[string]string `json:"params"`
}

func (s *Server) runAction(ctx *gin.Context) {
	var req ActionRequest
	if err := bind(ctx, &req); err != nil {
		s.fail(ctx, "runAction", err)
		return
	}
	res, err := s.api.RunAction(ctx.Request.Context(), ctx.Param("feature"), ctx.Param("action"), req.Params)
	if err != nil {
		s.fail(ctx, "runAction", err)
		return
	}
	writeResult(ctx, res)
}

func (s *Server) listProfiles(ctx *gin.Context) {
	list, err := s.api.ListProfiles()
	if err != nil {
		s.fail(ctx, "listProfiles", err)
		return
	}
	ctx.JSON(http.StatusOK, list)
}

// SaveProfileRequest is the body of POST /v1/profiles.
type SaveProfileRequest struct {
	Name string `json:"name"`
}

func (s *Server) saveProfile(ctx *gin.Context) {
	var req SaveProfileRequest
	if err := bind(ctx, &req); err != nil {
		s.fail(ctx, "saveProfile", err)
		return
	}
	p, err := s.api.SaveProfile(req.Name)
	if err != nil {
		s.fail(ctx, "saveProfile", err)
		return
	}
	ctx.JSON(http.StatusCreated, p)
}

func (s *Server) importProfile(ctx *gin.Context) {
	var doc domain.ProfileDocument
	if err := bind(ctx, &doc); err != nil {
		s.fail(ctx, "importProfile", err)
		return
	}
	p, err := s.api.ImportProfile(doc)
	if err != nil {
		s.fail(ctx, "importProfile", err)
		return
	}
	ctx.JSON(http.StatusCreated, p)
}

func (s *Server) applyProfile(ctx *gin.Context) {
	res, err := s.api.ApplyProfile(ctx.Request.Context(), ctx.Param("id"))
	if err != nil && res == nil {
		s.fail(ctx, "applyProfile", err)
		return
	}
	body := gin.H{"result": res}
	if err != nil {
		body["error"] = newErrorBody("applyProfile", err).Error
	}
	ctx.JSON(http.StatusOK, body)
}

func (s *Server) exportProfile(ctx *gin.Context) {
	doc, err := s.api.ExportProfile(ctx.Param("id"))
	if err != nil {
		s.fail(ctx, "exportProfile", err)
		return
	}
	ctx.JSON(http.StatusOK, doc)
}

func (s *Server) deleteProfile(ctx *gin.Context) {
	if err := s.api.DeleteProfile(ctx.Param("id")); err != nil {
		s.fail(ctx, "deleteProfile", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (s *Server) events(ctx *gin.Context) {
	s.hub.ServeWS(ctx.Writer, ctx.Request)
}

// writeResult sends the script payload as-is; the kind goes in a header so
// the body stays exactly what the script (or the acknowledgment) produced.
func writeResult(ctx *gin.Context, res domain.InvocationResult) {
	ctx.Header("X-Shield-Result", string(res.Kind))
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", res.Payload)
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		logger.Debug("request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
