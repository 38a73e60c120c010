package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "embed"

	"go.uber.org/fx"

	"github.com/garrichello/climatecore/pkg/core/config"
	"github.com/garrichello/climatecore/pkg/core/engine"
	"github.com/garrichello/climatecore/pkg/core/mddb"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
	"github.com/garrichello/climatecore/pkg/core/task"
)

// embeddedConfig holds the application's YAML configuration document.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// startTaskExecution is an Fx Hook helper that runs the task document once the
// application is up and requests shutdown when the run finishes.
func startTaskExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	eng *engine.Engine,
	cfg *config.Config,
	appCtx context.Context,
	taskPath string,
	resultPath string,
) {
	lc.Append(fx.Hook{
		OnStart: onStartTaskExecution(eng, shutdowner, appCtx, taskPath, resultPath),
		OnStop:  onStopApplication(),
	})
}

// onStartTaskExecution runs the task in a goroutine so startup never blocks,
// then shuts the application down with an exit code reflecting the outcome.
func onStartTaskExecution(
	eng *engine.Engine,
	shutdowner fx.Shutdowner,
	appCtx context.Context,
	taskPath string,
	resultPath string,
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		go func() {
			exitCode := 0
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic recovered in task execution: %v", r)
					exitCode = 1
				}
				logger.Infof("Requesting application shutdown after task completion.")
				if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()

			taskBytes, err := readTaskDocument(taskPath)
			if err != nil {
				logger.Errorf("Failed to read task document '%s': %v", taskPath, err)
				exitCode = 1
				return
			}

			start := time.Now()
			result, err := eng.RunIsolated(appCtx, taskBytes, "")
			elapsed := time.Since(start)
			if err != nil {
				logger.Errorf("Task run failed after %v: %v", elapsed, err)
				exitCode = 1
				return
			}

			target := resultPath
			if target == "" {
				target = "run-" + result.RunID + ".zip"
			}
			if err := os.WriteFile(target, result.Archive, 0o644); err != nil {
				logger.Errorf("Failed to write result archive '%s': %v", target, err)
				exitCode = 1
				return
			}
			logger.Infof("Run %s completed in %v. Results written to %s (%d bytes).",
				result.RunID, elapsed, target, len(result.Archive))
		}()
		return nil
	}
}

// onStopApplication logs application shutdown.
func onStopApplication() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Infof("Application is shutting down.")
		return nil
	}
}

// readTaskDocument loads the task bytes from the given path, or from standard
// input when the path is "-".
func readTaskDocument(taskPath string) ([]byte, error) {
	if taskPath == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(taskPath)
}

func usage() {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s <task.xml|-> [result.zip]\n", name)
	fmt.Fprintf(os.Stderr, "       %s migrate <task.xml|->\n", name)
	fmt.Fprintln(os.Stderr, "  Runs the task document (\"-\" reads it from stdin) and writes the")
	fmt.Fprintln(os.Stderr, "  produced files as a zip archive. The migrate form only provisions")
	fmt.Fprintln(os.Stderr, "  the schema of the metadata store the task document names.")
}

// runMigrate provisions the metadata-store schema of the connection named in
// the task document, without running any processing step.
func runMigrate(taskPath string) int {
	taskBytes, err := readTaskDocument(taskPath)
	if err != nil {
		logger.Errorf("Failed to read task document '%s': %v", taskPath, err)
		return 1
	}
	t, err := task.Parse(taskBytes)
	if err != nil {
		logger.Errorf("Failed to parse task document '%s': %v", taskPath, err)
		return 1
	}
	if err := mddb.Migrate(t.Metadb); err != nil {
		logger.Errorf("Metadata-store migration failed: %v", err)
		return 1
	}
	logger.Infof("Metadata store of task '%s' is ready.", t.UID)
	return 0
}

// main is the application entry point.
func main() {
	if len(os.Args) == 3 && os.Args[1] == "migrate" {
		os.Exit(runMigrate(os.Args[2]))
	}
	if len(os.Args) < 2 || len(os.Args) > 3 {
		usage()
		os.Exit(2)
	}
	taskPath := os.Args[1]
	resultPath := ""
	if len(os.Args) == 3 {
		resultPath = os.Args[2]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the run...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	fxApp := fx.New(GetApplicationOptions(ctx, envFilePath, embeddedConfig, taskPath, resultPath)...)
	fxApp.Run()
	if fxApp.Err() != nil {
		logger.Fatalf("Application run failed: %v", fxApp.Err())
	}
}
