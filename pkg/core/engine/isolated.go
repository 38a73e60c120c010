package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
	"github.com/garrichello/climatecore/pkg/core/support/util/logger"
)

// RunResult is the outcome of one isolated run.
type RunResult struct {
	// RunID identifies the run; generated when the caller passes none.
	RunID string
	// Archive is the zip of every file the run produced. Nil on failure.
	Archive []byte
}

// RunIsolated executes a task document inside a private working directory:
// all relative output paths land there and nothing a run writes can collide
// with another run. On success every produced file is packed into an
// in-memory zip archive; on failure the original task document is archived to
// the configured error store for later diagnosis. The working directory is
// removed in every outcome unless configured otherwise.
func (e *Engine) RunIsolated(ctx context.Context, taskBytes []byte, runID string) (result *RunResult, err error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	baseDir := e.cfg.Core.Run.BaseDir
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	workDir := filepath.Join(baseDir, "core-run-"+runID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, exception.NewCoreError(moduleName,
			"failed to create working directory '"+workDir+"'", err)
	}
	logger.Infof("Run %s: working directory %s", runID, workDir)

	defer func() {
		if e.cfg.Core.Run.KeepWorkdir {
			logger.Warnf("Run %s: keeping working directory %s", runID, workDir)
			return
		}
		if cleanupErr := os.RemoveAll(workDir); cleanupErr != nil {
			err = multierror.Append(err, exception.NewCoreError(moduleName,
				"failed to remove working directory '"+workDir+"'", cleanupErr)).ErrorOrNil()
		}
	}()

	t, err := e.LoadTaskBytes(taskBytes)
	if err != nil {
		e.archiveFailedTask(ctx, taskBytes, runID)
		return nil, err
	}

	if err := e.RunTask(ctx, t, workDir); err != nil {
		e.archiveFailedTask(ctx, taskBytes, runID)
		return nil, err
	}

	archive, err := zipDirectory(workDir)
	if err != nil {
		return nil, err
	}
	return &RunResult{RunID: runID, Archive: archive}, nil
}

// archiveFailedTask stores the original task document in the configured error
// store. Archiving failures are logged, never escalated: the run's own error
// is the one that matters.
func (e *Engine) archiveFailedTask(ctx context.Context, taskBytes []byte, runID string) {
	archiveCfg := e.cfg.Core.ErrorArchive
	if archiveCfg.Storage == "" || e.storage == nil {
		return
	}
	conn, err := e.storage.GetConnection(archiveCfg.Storage)
	if err != nil {
		logger.Errorf("Run %s: cannot open error-archive storage: %v", runID, err)
		return
	}
	objectName := archiveCfg.Prefix + runID + "-" + time.Now().UTC().Format("20060102150405") + ".xml"
	if err := conn.Upload(ctx, archiveCfg.Bucket, objectName,
		bytes.NewReader(taskBytes), "application/xml"); err != nil {
		logger.Errorf("Run %s: failed to archive task document: %v", runID, err)
		return
	}
	logger.Infof("Run %s: archived failed task document as %s", runID, objectName)
}

// zipDirectory packs every regular file under dir into an in-memory zip,
// keyed by slash-separated paths relative to dir.
func zipDirectory(dir string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return nil, exception.NewCoreError(moduleName, "failed to pack run results", err)
	}
	if err := zw.Close(); err != nil {
		return nil, exception.NewCoreError(moduleName, "failed to finalize result archive", err)
	}
	return buf.Bytes(), nil
}
