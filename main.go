package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jiangshenghai57/glassbox/config"
	"github.com/jiangshenghai57/glassbox/engine"
	"github.com/jiangshenghai57/glassbox/logger"
	"github.com/jiangshenghai57/glassbox/refmap"
	"github.com/jiangshenghai57/glassbox/store"
)

var (
	runs   = map[string]*engine.Engine{}
	runsMu sync.RWMutex

	history  *store.PostgresHistory
	archiver *store.S3Archiver
)

type runRequest struct {
	Inputs       refmap.Document            `json:"inputs"`
	Calculations engine.CalculationDocument `json:"calculations"`
}

type overrideRequest struct {
	Ref   string  `json:"ref"`
	Value float64 `json:"value"`
}

func getServiceInfo(c *gin.Context) {
	info := gin.H{
		"service":     "glassbox",
		"description": "Time-series financial formula-engine and module-solver service",
		"version":     "1.0.0",
		"endpoints": gin.H{
			"GET /info":                  "Get service information and capabilities",
			"POST /runs":                 "Submit an inputs+calculations document pair and run the engine",
			"GET /runs/:id/results":      "Retrieve every calculation result for a run",
			"GET /runs/:id/results/:ref": "Retrieve a single calculation result by ref or name",
			"POST /runs/:id/override":    "Apply an input override (not yet re-run)",
		},
		"capabilities": []string{
			"Monthly timeline and reference-map construction",
			"Recursive-descent formula parsing and array evaluation",
			"Dependency scheduling with soft-cycle cluster evaluation",
			"Iterative debt sizing and reserve-facility module solvers",
		},
	}
	c.IndentedJSON(http.StatusOK, info)
}

func postRun(runLog *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req runRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
			return
		}

		e := engine.New(req.Inputs, req.Calculations, runLog)
		e.Run()

		runID := store.NewRunID()
		runsMu.Lock()
		runs[runID] = e
		runsMu.Unlock()

		archiveRun(c.Request.Context(), runID, e, runLog)

		c.JSON(http.StatusAccepted, gin.H{
			"runId":  runID,
			"errors": e.Errors(),
		})
	}
}

// archiveRun persists run history and, when configured, archives the full
// result set to S3. Both are best-effort: a run is usable even when neither
// is configured or reachable, so failures are logged rather than returned
// to the caller.
func archiveRun(ctx context.Context, runID string, e *engine.Engine, runLog *logger.Logger) {
	if history != nil {
		rec := store.RunRecord{
			ID:          runID,
			SubmittedAt: time.Now(),
			Periods:     e.Periods(),
			NodeCount:   e.NodeCount(),
			ErrorCount:  len(e.Errors()),
			Overrides:   e.OverriddenRefs(),
		}
		if err := history.RecordRun(ctx, rec); err != nil {
			runLog.Error("failed to record run history", "runId", runID, "error", err)
		}
	}
	if archiver != nil {
		if err := archiver.Archive(ctx, runID, e.Results()); err != nil {
			runLog.Error("failed to archive run results", "runId", runID, "error", err)
		}
	}
}

func getRunResults(c *gin.Context) {
	e, ok := lookupRun(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, e.ExportResults())
}

func getRunResult(c *gin.Context) {
	e, ok := lookupRun(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	ref := c.Param("ref")
	values, ok := e.GetResult(ref)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such result: " + ref})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ref": ref, "values": values})
}

func postOverride(c *gin.Context) {
	e, ok := lookupRun(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	var req overrideRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}

	e.OverrideInput(req.Ref, req.Value)
	c.JSON(http.StatusAccepted, gin.H{"message": "override staged; this run's results are not recomputed"})
}

func lookupRun(id string) (*engine.Engine, bool) {
	runsMu.RLock()
	defer runsMu.RUnlock()
	e, ok := runs[id]
	return e, ok
}

func multiLog() (*gin.Engine, *logger.Logger) {
	cfg, _ := config.ReadConfig()

	logPath, _ := cfg["LOG_PATH"].(string)
	logFile, _ := cfg["LOG_FILE"].(string)

	f, _ := os.Create(logPath + logFile)
	mw := io.MultiWriter(f, os.Stdout)

	gin.DefaultWriter = mw
	gin.DefaultErrorWriter = mw

	runLog, err := logger.NewLogger(logPath)
	if err != nil {
		runLog, _ = logger.NewLogger("./logs")
	}

	initStore(cfg, runLog)

	router := gin.Default()
	return router, runLog
}

// initStore wires up run-history persistence and S3 archival when config.json
// names a run-history database; both stay nil (disabled) otherwise, since
// neither is required to run the engine itself.
func initStore(cfg map[string]interface{}, runLog *logger.Logger) {
	endpoint := cfgString(cfg, "DB_ENDPOINT")
	if endpoint == "" {
		return
	}

	dbCfg := store.DBConfig{
		Profile:  cfgString(cfg, "AWS_PROFILE"),
		Region:   cfgString(cfg, "AWS_REGION"),
		Endpoint: endpoint,
		Port:     cfgInt(cfg, "DB_PORT", 5432),
		User:     cfgString(cfg, "DB_USER"),
		Name:     cfgString(cfg, "DB_NAME"),
		AuthMode: cfgString(cfg, "DB_AUTH_MODE"),
		Password: cfgString(cfg, "DB_PASSWORD"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if h, err := store.NewPostgresHistory(ctx, dbCfg); err != nil {
		runLog.Warn("run history database unavailable, continuing without it", "error", err)
	} else if err := h.EnsureSchema(ctx); err != nil {
		runLog.Warn("failed to ensure run-history schema, continuing without it", "error", err)
	} else {
		history = h
	}

	if bucket := cfgString(cfg, "ARCHIVE_BUCKET"); bucket != "" {
		a, err := store.NewS3Archiver(ctx, dbCfg, bucket)
		if err != nil {
			runLog.Warn("s3 archiver unavailable, continuing without it", "error", err)
		} else {
			archiver = a
		}
	}
}

func cfgString(cfg map[string]interface{}, key string) string {
	s, _ := cfg[key].(string)
	return s
}

func cfgInt(cfg map[string]interface{}, key string, def int) int {
	if f, ok := cfg[key].(float64); ok {
		return int(f)
	}
	return def
}

func main() {
	router, runLog := multiLog()

	router.GET("/info", getServiceInfo)
	router.POST("/runs", postRun(runLog))
	router.GET("/runs/:id/results", getRunResults)
	router.GET("/runs/:id/results/:ref", getRunResult)
	router.POST("/runs/:id/override", postOverride)

	router.Run("localhost:8080")
}
