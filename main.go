package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vulnix/vulnix/console"
	"github.com/vulnix/vulnix/output"
	"github.com/vulnix/vulnix/server"
	"github.com/vulnix/vulnix/store"
	"github.com/vulnix/vulnix/utils"
)

const Version = "1.0.0"

var (
	mode          = flag.String("mode", utils.ModeScan, "scan | apply | history | http-server")
	scanModeFlag  = flag.String("scan-mode", "", "full | light | custom")
	target        = flag.String("path", "/", "target path for custom scans")
	confirmPolicy = flag.String("confirm", utils.ConfirmDryRun, "auto | dry-run | interactive")
	outputFormat  = flag.String("output", utils.TableOutput, "json | table")
	quiet         = flag.Bool("quiet", false, "suppress banner, spinners and tables")
	outputDir     = flag.String("output-dir", "", "directory for report and script artifacts")
	reportPath    = flag.String("report", "", "scan report artifact (apply mode)")
	scriptPath    = flag.String("script", "", "remediation script artifact (apply mode)")
	trivyBin      = flag.String("trivy-bin", "", "path to the trivy binary")
	scanTimeout   = flag.String("scan-timeout", "", "scan timeout, e.g. 20m")
	oracleModel   = flag.String("model", "", "oracle model name")
	generateOnly  = flag.Bool("generate-only", false, "stop after the script artifact is written")
	storePath     = flag.String("store", "", "path to the session history database")
	historyLimit  = flag.Int("history-limit", 20, "number of sessions to list in history mode")
	failOnCount   = flag.Int("fail-on-count", 0, "exit with failure if vulnerability count reaches this limit (0 disables)")
	port          = flag.String("port", "8007", "http-server mode listen port")
	configPath    = flag.String("config", "", "optional yaml config file")
)

func init() {
	customFormatter := new(log.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	log.SetFormatter(customFormatter)
	customFormatter.FullTimestamp = true
}

func main() {
	flag.Parse()

	config := utils.Config{
		Mode:          *mode,
		Port:          *port,
		Output:        *outputFormat,
		Quiet:         *quiet,
		ScanMode:      *scanModeFlag,
		Target:        *target,
		ConfirmPolicy: *confirmPolicy,
		OutputDir:     *outputDir,
		ReportPath:    *reportPath,
		ScriptPath:    *scriptPath,
		SessionID:     uuid.New().String(),
		HostName:      utils.GetHostname(),
		TrivyBinPath:  *trivyBin,
		ScanTimeout:   *scanTimeout,
		OracleModel:   *oracleModel,
		OracleAPIKey:  os.Getenv("GEMINI_API_KEY"),
		StorePath:     *storePath,
		GenerateOnly:  *generateOnly,
		HistoryLimit:  *historyLimit,
		FailOnCount:   *failOnCount,
	}
	if *configPath != "" {
		if err := utils.LoadConfigFile(&config, *configPath); err != nil {
			log.Fatalf("error loading config file: %s", err)
		}
	}
	if config.StorePath == "" {
		config.StorePath = store.DefaultPath()
	}
	if config.Mode == utils.ModeScan || config.Mode == utils.ModeApply {
		switch config.ConfirmPolicy {
		case utils.ConfirmAuto, utils.ConfirmDryRun, utils.ConfirmInteractive:
		default:
			log.Fatalf("unknown confirm policy %q, use auto, dry-run or interactive", config.ConfirmPolicy)
		}
	}

	switch config.Mode {
	case utils.ModeScan:
		cons := console.New(config.Quiet || config.Output == utils.JsonOutput)
		cons.Banner(Version)
		if config.ScanMode == "" {
			if err := promptSession(cons, &config); err != nil {
				log.Fatalf("error reading session options: %s", err)
			}
			if config.ScanMode == "" {
				return
			}
		}
		rep := RunOnce(config)
		persistSession(config, rep)
		output.Render(rep, config.Output)
		output.FailOn(&config, rep.Severity)
		os.Exit(exitCode(rep.Status))
	case utils.ModeApply:
		rep := RunApply(config)
		persistSession(config, rep)
		output.Render(rep, config.Output)
		os.Exit(exitCode(rep.Status))
	case utils.ModeHistory:
		if err := RunHistory(config); err != nil {
			log.Fatalf("error listing session history: %s", err)
		}
	case utils.ModeHttpServer:
		err := server.RunHTTPServer(config, func(jobCfg utils.Config) error {
			rep := RunOnce(jobCfg)
			persistSession(jobCfg, rep)
			if rep.FailedStage != "" {
				return fmt.Errorf("stage %s failed: %s", rep.FailedStage, rep.FailureReason)
			}
			return nil
		})
		if err != nil {
			log.Fatalf("error running http server: %s", err)
		}
	default:
		log.Fatalf("unsupported mode %s", config.Mode)
	}
}

// promptSession fills scan mode and confirmation policy interactively when
// no -scan-mode flag was given.
func promptSession(cons *console.Console, config *utils.Config) error {
	scanMode, targetPath, err := cons.SelectScanMode()
	if err != nil || scanMode == "" {
		return err
	}
	config.ScanMode = scanMode
	config.Target = targetPath
	policy, err := cons.SelectConfirmPolicy()
	if err != nil {
		return err
	}
	config.ConfirmPolicy = policy
	return nil
}

func persistSession(config utils.Config, rep *output.SessionReport) {
	st, err := store.Open(config.StorePath)
	if err != nil {
		log.Warnf("session history unavailable: %s", err)
		return
	}
	defer st.Close()
	if err := st.SaveSession(rep); err != nil {
		log.Warnf("could not record session: %s", err)
	}
}

func exitCode(status string) int {
	switch status {
	case utils.StatusClean, utils.StatusRemediated, utils.StatusPartial:
		return 0
	default:
		return 1
	}
}
