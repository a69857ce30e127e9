// Scan-request server: queues scan sessions onto a worker pool. Execution is
// deliberately not exposed; scripts only ever run through the local, gated
// apply path.
package server

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/Jeffail/tunny"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vulnix/vulnix/utils"
)

const DefaultScanConcurrency = 2

// Runner executes one scan session; run-once supplies it so this package
// stays decoupled from the pipeline wiring.
type Runner func(cfg utils.Config) error

type scanRequest struct {
	Target   string `json:"target" binding:"required"`
	ScanMode string `json:"scan_mode"`
}

type Server struct {
	config utils.Config
	pool   *tunny.Pool
}

func RunHTTPServer(config utils.Config, run Runner) error {
	if config.Port == "" {
		return fmt.Errorf("http-server mode requires port to be set")
	}

	concurrency, err := strconv.Atoi(os.Getenv("VULNIX_SCAN_CONCURRENCY"))
	if err != nil {
		concurrency = DefaultScanConcurrency
	}

	s := &Server{config: config}
	s.pool = tunny.NewFunc(concurrency, func(payload interface{}) interface{} {
		jobCfg, ok := payload.(utils.Config)
		if !ok {
			log.Error().Msg("error processing input config")
			return false
		}
		if err := run(jobCfg); err != nil {
			log.Error().Err(err).Str("session_id", jobCfg.SessionID).Msg("scan session failed")
			return false
		}
		return true
	})
	defer s.pool.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/scan", s.scanHandler)

	log.Info().Str("port", config.Port).Msg("starting scan server")
	return router.Run(fmt.Sprintf(":%s", config.Port))
}

func (s *Server) scanHandler(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to decode scan request"})
		return
	}
	scanMode := req.ScanMode
	if scanMode == "" {
		scanMode = utils.ScanModeCustom
	}
	switch scanMode {
	case utils.ScanModeFull, utils.ScanModeLight, utils.ScanModeCustom:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan_mode"})
		return
	}

	jobCfg := s.config
	jobCfg.SessionID = uuid.New().String()
	jobCfg.Target = req.Target
	jobCfg.ScanMode = scanMode
	jobCfg.Quiet = true
	// server sessions stop at artifact generation
	jobCfg.GenerateOnly = true
	jobCfg.ConfirmPolicy = ""

	go s.pool.Process(jobCfg)

	log.Info().Str("session_id", jobCfg.SessionID).Str("target", req.Target).Msg("scan queued")
	c.JSON(http.StatusAccepted, gin.H{"session_id": jobCfg.SessionID})
}
