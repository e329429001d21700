package httpx

import (
	"github.com/KOMKZ/go-yogan-cache/cache"
	"github.com/KOMKZ/go-yogan-cache/engine"
	"github.com/KOMKZ/go-yogan-cache/invalidation"
	"github.com/KOMKZ/go-yogan-cache/metrics"
	"github.com/KOMKZ/go-yogan-cache/scheduler"
	"github.com/KOMKZ/go-yogan-cache/warming"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultHotKeys = 10

// API exposes an engine over HTTP
type API struct {
	engine *engine.Engine
}

// NewAPI creates the handlers for e
func NewAPI(e *engine.Engine) *API {
	return &API{engine: e}
}

// Register mounts the routes on r
func (a *API) Register(r gin.IRouter) {
	r.GET("/healthz", a.healthz)
	if reg := a.engine.PrometheusRegistry(); reg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	g := r.Group("/cache")
	g.GET("/report", Wrap(a.report))
	g.GET("/stats", Wrap(a.stats))
	g.GET("/alerts", Wrap(a.alerts))
	g.POST("/alerts/:id/ack", Wrap(a.ackAlert))
	g.GET("/hot-keys", Wrap(a.hotKeys))
	g.POST("/invalidate", Wrap(a.invalidate))
	g.POST("/warm/critical", Wrap(a.warmCritical))
	g.POST("/warm/users/:id", Wrap(a.warmUser))
}

// ReportRequest GET /cache/report
type ReportRequest struct {
	// Refresh samples every layer and evaluates alerts before reporting
	Refresh bool `form:"refresh"`
}

func (a *API) report(c *gin.Context, req *ReportRequest) (*metrics.Report, error) {
	if req.Refresh {
		rep := a.engine.Report(c.Request.Context())
		return &rep, nil
	}
	rep := a.engine.Analyzer().GetComprehensiveReport()
	return &rep, nil
}

// StatsResponse GET /cache/stats
type StatsResponse struct {
	Layers       []cache.LayerStats  `json:"layers"`
	Coordinator  cache.Stats         `json:"coordinator"`
	Invalidation invalidation.Stats  `json:"invalidation"`
	Warming      warming.Stats       `json:"warming"`
	Jobs         []scheduler.JobInfo `json:"jobs"`
	Breaker      string              `json:"durable_breaker,omitempty"`
}

type emptyRequest struct{}

func (a *API) stats(_ *gin.Context, _ *emptyRequest) (*StatsResponse, error) {
	resp := &StatsResponse{
		Layers:       a.engine.LayerStats(),
		Coordinator:  a.engine.Coordinator().Stats(),
		Invalidation: a.engine.Invalidation().Stats(),
		Warming:      a.engine.Warming().Stats(),
		Jobs:         a.engine.Scheduler().Jobs(),
	}
	if d := a.engine.Durable(); d != nil {
		resp.Breaker = d.BreakerState()
	}
	return resp, nil
}

// AlertsResponse GET /cache/alerts
type AlertsResponse struct {
	Alerts []metrics.Alert `json:"alerts"`
}

func (a *API) alerts(_ *gin.Context, _ *emptyRequest) (*AlertsResponse, error) {
	return &AlertsResponse{Alerts: a.engine.Analyzer().ActiveAlerts()}, nil
}

// AckRequest POST /cache/alerts/:id/ack
type AckRequest struct {
	ID string `uri:"id"`
}

// AckResponse acknowledged alert id
type AckResponse struct {
	ID string `json:"id"`
}

func (a *API) ackAlert(_ *gin.Context, req *AckRequest) (*AckResponse, error) {
	if err := a.engine.Analyzer().Acknowledge(req.ID); err != nil {
		return nil, err
	}
	return &AckResponse{ID: req.ID}, nil
}

// HotKeysRequest GET /cache/hot-keys?n=
type HotKeysRequest struct {
	N int `form:"n" json:"n"`
}

// Validate n 为 0 时使用默认值
func (r HotKeysRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.N, validation.Min(0), validation.Max(1000)),
	)
}

// HotKeysResponse most accessed keys in the tracking window
type HotKeysResponse struct {
	Keys []warming.HotKey `json:"keys"`
}

func (a *API) hotKeys(_ *gin.Context, req *HotKeysRequest) (*HotKeysResponse, error) {
	n := req.N
	if n == 0 {
		n = defaultHotKeys
	}
	keys := a.engine.Warming().Tracker().GetHotKeys(n)
	if keys == nil {
		keys = []warming.HotKey{}
	}
	return &HotKeysResponse{Keys: keys}, nil
}

func (a *API) invalidate(c *gin.Context, req *invalidation.WriteEvent) (*invalidation.Result, error) {
	res, err := a.engine.Invalidation().HandleWriteEvent(c.Request.Context(), *req)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) warmCritical(c *gin.Context, _ *emptyRequest) (*warming.WarmResult, error) {
	res := a.engine.Warming().WarmCriticalData(c.Request.Context())
	return &res, nil
}

// WarmUserRequest POST /cache/warm/users/:id?force=
type WarmUserRequest struct {
	UserID string `uri:"id"`
	Force  bool   `form:"force"`
}

// WarmUserResponse Warmed is false when the user is still in cooldown
type WarmUserResponse struct {
	Warmed bool               `json:"warmed"`
	Result warming.WarmResult `json:"result"`
}

func (a *API) warmUser(c *gin.Context, req *WarmUserRequest) (*WarmUserResponse, error) {
	res, warmed := a.engine.Warming().WarmUserData(c.Request.Context(), req.UserID, req.Force)
	return &WarmUserResponse{Warmed: warmed, Result: res}, nil
}

// healthz 降级状态仍返回 200，但在响应体中标识
func (a *API) healthz(c *gin.Context) {
	resp := a.engine.Health().Check(c.Request.Context())
	c.JSON(resp.HTTPStatus(), resp)
}
