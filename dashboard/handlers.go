package dashboard

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/supplychain-copilot/copilot/copilot"
	"github.com/supplychain-copilot/copilot/dashboard/auth"
	"github.com/supplychain-copilot/copilot/planner"
	"github.com/supplychain-copilot/copilot/sim"
	"github.com/supplychain-copilot/copilot/sim/inventory"
	"github.com/supplychain-copilot/copilot/sim/route"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 1000
	histogramBins      = 10
	indexRunLimit      = 10
)

var templateFuncs = template.FuncMap{
	"pct": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "%" },
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, planner.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, planner.ErrInvalidRequest), errors.Is(err, copilot.ErrUnknownIntent), errors.Is(err, auth.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrUserExists):
		status = http.StatusConflict
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
	}
	if status == http.StatusInternalServerError {
		logrus.Errorf("dashboard: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, format string, args ...any) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(format, args...)})
}

// bindOptionalJSON decodes the body into v, treating an empty body as {}.
func bindOptionalJSON(c *gin.Context, v any) error {
	err := c.ShouldBindJSON(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// index renders the dashboard shell. With authentication on, datasets and
// runs stay off the page and the browser loads them through the API.
func (s *Server) index(c *gin.Context) {
	data := gin.H{
		"Defaults":    s.planner.Defaults(),
		"Operations":  copilot.Operations,
		"RequireAuth": s.cfg.RequireAuth,
	}
	if !s.cfg.RequireAuth {
		runs, err := s.planner.ListRuns()
		if err != nil {
			writeError(c, err)
			return
		}
		if len(runs) > indexRunLimit {
			runs = runs[:indexRunLimit]
		}
		data["Datasets"] = s.planner.Datasets()
		data["Runs"] = runs
	}
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listDatasets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"datasets": s.planner.Datasets()})
}

func (s *Server) uploadDataset(c *gin.Context) {
	limit := s.cfg.MaxUploadMB << 20
	if c.Request.ContentLength > limit {
		writeError(c, &http.MaxBytesError{Limit: limit})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(c, err)
			return
		}
		badRequest(c, "multipart field \"file\" is required: %v", err)
		return
	}
	defer file.Close()
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		badRequest(c, "expected a .csv file, got %q", header.Filename)
		return
	}
	info, err := s.planner.AddDataset(header.Filename, file)
	if err != nil {
		writeError(c, err)
		return
	}
	s.metrics.Uploads.Inc()
	c.JSON(http.StatusCreated, info)
}

func (s *Server) datasetSummary(c *gin.Context) {
	sum, err := s.planner.Summary(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) datasetForecast(c *gin.Context) {
	periods := 0
	if q := c.Query("periods"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			badRequest(c, "periods must be an integer, got %q", q)
			return
		}
		periods = n
	}
	points, err := s.planner.Forecast(c.Param("id"), periods)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dataset_id": c.Param("id"), "forecast": points})
}

// runView is a run without its record ledger.
type runView struct {
	planner.RunSummary
	Config    sim.Config         `json:"config"`
	Inventory inventory.Analysis `json:"inventory"`
	Charts    *charts            `json:"charts,omitempty"`
}

type charts struct {
	ProfitByDeliveryType map[sim.DeliveryType]sim.Quartiles `json:"profit_by_delivery_type"`
	StatusBreakdown      map[sim.OrderStatus]int            `json:"status_breakdown"`
	HoldingCost          []sim.Bin                          `json:"holding_cost_histogram"`
	SalesVolume          map[int64]int                      `json:"sales_volume"`
	DelayProfit          []sim.DelayProfitCell              `json:"delay_profit"`
	StockLevels          []sim.StockPoint                   `json:"stock_levels"`
}

func newRunView(r *planner.Run, withCharts bool) runView {
	v := runView{RunSummary: r.Summary(), Config: r.Config, Inventory: r.Inventory}
	if withCharts && r.Metrics != nil {
		m := r.Metrics
		v.Charts = &charts{
			ProfitByDeliveryType: m.ProfitByDeliveryType(),
			StatusBreakdown:      m.StatusBreakdown(),
			HoldingCost:          m.HoldingCostHistogram(histogramBins),
			SalesVolume:          m.SalesVolume(),
			DelayProfit:          m.DelayProfitGrid(),
			StockLevels:          m.StockSeries(),
		}
	}
	return v
}

func (s *Server) createSimulation(c *gin.Context) {
	var req planner.SimulationRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid simulation request: %v", err)
		return
	}
	run, err := s.planner.Simulate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	s.metrics.Simulations.Inc()
	s.metrics.Stockouts.Add(float64(run.KPIs.Stockouts))
	c.JSON(http.StatusCreated, newRunView(run, true))
}

func (s *Server) listSimulations(c *gin.Context) {
	runs, err := s.planner.ListRuns()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"simulations": runs})
}

func (s *Server) getSimulation(c *gin.Context) {
	run, err := s.planner.Run(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRunView(run, true))
}

func (s *Server) simulationRecords(c *gin.Context) {
	run, err := s.planner.Run(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		badRequest(c, "offset must be a non-negative integer")
		return
	}
	limit, err := queryInt(c, "limit", defaultRecordLimit)
	if err != nil || limit < 1 || limit > maxRecordLimit {
		badRequest(c, "limit must be an integer in [1, %d]", maxRecordLimit)
		return
	}
	records := run.Metrics.Records
	total := len(records)
	start := min(offset, total)
	end := min(start+limit, total)
	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"offset":  start,
		"records": records[start:end],
	})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	q := c.Query(key)
	if q == "" {
		return def, nil
	}
	return strconv.Atoi(q)
}

func (s *Server) simulationInventory(c *gin.Context) {
	policy, err := s.planner.Inventory(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

func (s *Server) optimizeRoute(c *gin.Context) {
	var problem route.Problem
	if err := c.ShouldBindJSON(&problem); err != nil {
		badRequest(c, "invalid route problem: %v", err)
		return
	}
	plan, err := s.planner.OptimizeRoute(problem)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

type askRequest struct {
	Query string `json:"query"`
}

func (s *Server) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		badRequest(c, "body must be {\"query\": \"...\"}")
		return
	}
	ans, err := s.copilot.Ask(c.Request.Context(), req.Query)
	if err != nil {
		s.metrics.CopilotQueries.WithLabelValues("error").Inc()
		writeError(c, err)
		return
	}
	s.metrics.CopilotQueries.WithLabelValues(string(ans.Intent.Operation)).Inc()
	c.JSON(http.StatusOK, ans)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) register(c *gin.Context) {
	var cr credentials
	if err := c.ShouldBindJSON(&cr); err != nil {
		badRequest(c, "body must carry username and password")
		return
	}
	u, err := s.auth.Register(cr.Username, cr.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": u.ID, "username": u.Username})
}

func (s *Server) login(c *gin.Context) {
	var cr credentials
	if err := c.ShouldBindJSON(&cr); err != nil {
		badRequest(c, "body must carry username and password")
		return
	}
	sess, err := s.auth.Login(cr.Username, cr.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": sess.Token, "expires_at": sess.ExpiresAt})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.auth.Logout(bearerToken(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}
