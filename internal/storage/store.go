package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	apperrors "carecohort/internal/errors"
	"carecohort/internal/infrastructure"
)

// Outcome of a single file write.
type Outcome string

const (
	OutcomeWritten         Outcome = "written"
	OutcomeWrittenFallback Outcome = "written_fallback"
	OutcomeFailed          Outcome = "failed"
)

// WriteResult describes one artifact write.
type WriteResult struct {
	Artifact string  `json:"artifact"`
	Path     string  `json:"path"`
	Outcome  Outcome `json:"outcome"`
	SHA256   string  `json:"sha256,omitempty"`
	Err      error   `json:"-"`
}

// WriteReport collects the results of a multi-file save.
type WriteReport []WriteResult

// Err joins the errors of failed writes, or returns nil.
func (r WriteReport) Err() error {
	var errs []error
	for _, res := range r {
		if res.Outcome == OutcomeFailed {
			errs = append(errs, fmt.Errorf("%s: %w", res.Artifact, res.Err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return apperrors.NewStorageError("failed to write round artifacts", errors.Join(errs...))
}

// Fallbacks counts writes that bypassed the atomic rename.
func (r WriteReport) Fallbacks() int {
	n := 0
	for _, res := range r {
		if res.Outcome == OutcomeWrittenFallback {
			n++
		}
	}
	return n
}

// Options configures a Store.
type Options struct {
	Root     string
	Compress bool
	Logger   *slog.Logger
	Metrics  *infrastructure.BusinessMetrics
}

// Store is the project/round repository rooted at one directory.
type Store struct {
	root     string
	compress bool
	catalog  *Catalog
	logger   *slog.Logger
	metrics  *infrastructure.BusinessMetrics

	// rename is swapped in tests to exercise the fallback path.
	rename func(oldpath, newpath string) error
}

// Open creates the directory layout and opens the catalog.
func Open(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, apperrors.NewConfigError("storage root must be set", nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(opts.Root, "projects"), 0o755); err != nil {
		return nil, apperrors.NewStorageError("failed to create storage root", err)
	}

	catalog, err := OpenCatalog(filepath.Join(opts.Root, "catalog.db"))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open catalog", err)
	}

	return &Store{
		root:     opts.Root,
		compress: opts.Compress,
		catalog:  catalog,
		logger:   infrastructure.WithComponent(opts.Logger, "storage"),
		metrics:  opts.Metrics,
		rename:   os.Rename,
	}, nil
}

// Close releases the catalog.
func (s *Store) Close() error {
	return s.catalog.Close()
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// Catalog exposes the project/round index.
func (s *Store) Catalog() *Catalog {
	return s.catalog
}

// RoundPaths are the directories of one round.
type RoundPaths struct {
	Root    string
	Inputs  string
	Config  string
	Outputs string
}

func (s *Store) projectDir(projectID string) string {
	return filepath.Join(s.root, "projects", projectID)
}

// RoundPaths returns the directories of a round without creating them.
func (s *Store) RoundPaths(projectID, roundID string) RoundPaths {
	root := filepath.Join(s.projectDir(projectID), "rounds", roundID)
	return RoundPaths{
		Root:    root,
		Inputs:  filepath.Join(root, "inputs"),
		Config:  filepath.Join(root, "config"),
		Outputs: filepath.Join(root, "outputs"),
	}
}

func (p RoundPaths) ensure() error {
	for _, dir := range []string{p.Inputs, p.Config, p.Outputs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// CreateProject registers a project and creates its directory.
func (s *Store) CreateProject(ctx context.Context, in NewProject) (*Project, error) {
	p, err := s.catalog.CreateProject(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(s.projectDir(p.ID), "rounds"), 0o755); err != nil {
		return nil, apperrors.NewStorageError("failed to create project directory", err)
	}
	s.logger.InfoContext(ctx, "project created", slog.String("project_id", p.ID))
	return p, nil
}

// DeleteProject removes the project from the catalog and deletes its files.
// A failure to remove the files is logged; the catalog entry is gone either
// way.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.catalog.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.projectDir(projectID)); err != nil {
		s.logger.WarnContext(ctx, "failed to remove project directory",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()))
	}
	s.logger.InfoContext(ctx, "project deleted", slog.String("project_id", projectID))
	return nil
}

// CreateRound registers a round, creates its directories and copies the
// configuration of in.CopyFrom when set.
func (s *Store) CreateRound(ctx context.Context, projectID string, in NewRound) (*Round, WriteReport, error) {
	r, err := s.catalog.CreateRound(ctx, projectID, in)
	if err != nil {
		return nil, nil, err
	}
	paths := s.RoundPaths(projectID, r.ID)
	if err := paths.ensure(); err != nil {
		return nil, nil, apperrors.NewStorageError("failed to create round directories", err)
	}

	var report WriteReport
	if in.CopyFrom != "" {
		src := s.RoundPaths(projectID, in.CopyFrom)
		for _, name := range configFiles {
			data, err := os.ReadFile(filepath.Join(src.Config, name))
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				report = append(report, WriteResult{Artifact: name, Outcome: OutcomeFailed, Err: err})
				continue
			}
			report = append(report, s.writeFile(ctx, name, filepath.Join(paths.Config, name), data))
		}
	}
	return r, report, report.Err()
}

// EnsureRound returns an existing round or creates it under roundID.
func (s *Store) EnsureRound(ctx context.Context, projectID, roundID string) (*Round, error) {
	r, created, err := s.catalog.EnsureRound(ctx, projectID, roundID)
	if err != nil {
		return nil, err
	}
	if err := s.RoundPaths(projectID, roundID).ensure(); err != nil {
		return nil, apperrors.NewStorageError("failed to create round directories", err)
	}
	if created {
		s.logger.InfoContext(ctx, "round created on demand",
			slog.String("project_id", projectID),
			slog.String("round_id", roundID))
	}
	return r, nil
}

// writeFile writes data through a temporary file and an atomic rename. When
// the temporary route fails the file is written in place.
func (s *Store) writeFile(ctx context.Context, artifact, path string, data []byte) WriteResult {
	res := WriteResult{Artifact: artifact, Path: path}
	sum := sha256.Sum256(data)
	res.SHA256 = hex.EncodeToString(sum[:])

	defer func() {
		s.metrics.RecordStorageWrite(ctx, artifact, string(res.Outcome))
		if res.Outcome != OutcomeWritten {
			s.logger.WarnContext(ctx, "artifact write degraded",
				slog.String("artifact", artifact),
				slog.String("path", path),
				slog.String("outcome", string(res.Outcome)),
				slog.Any("error", res.Err))
		}
	}()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	tmpErr := writeSynced(tmp, data)
	if tmpErr == nil {
		tmpErr = s.rename(tmp, path)
	}
	if tmpErr == nil {
		res.Outcome = OutcomeWritten
		return res
	}
	_ = os.Remove(tmp)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		res.Outcome, res.Err = OutcomeFailed, errors.Join(tmpErr, err)
		return res
	}
	res.Outcome, res.Err = OutcomeWrittenFallback, tmpErr
	return res
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// snapshotName returns the file name of a snapshot under the current
// compression setting.
func (s *Store) snapshotName(base string) string {
	if s.compress {
		return base + ".json.sz"
	}
	return base + ".json"
}

func (s *Store) writeSnapshot(ctx context.Context, artifact, dir string, v any) WriteResult {
	path := filepath.Join(dir, s.snapshotName(artifact))
	data, err := json.Marshal(v)
	if err != nil {
		return WriteResult{Artifact: artifact, Path: path, Outcome: OutcomeFailed, Err: err}
	}
	if s.compress {
		data = snappy.Encode(nil, data)
	}
	res := s.writeFile(ctx, artifact, path, data)

	// Drop the snapshot written under the other compression setting so a
	// stale copy is never read back.
	if res.Outcome != OutcomeFailed {
		other := filepath.Join(dir, artifact+".json")
		if !s.compress {
			other += ".sz"
		}
		_ = os.Remove(other)
	}
	return res
}

// readSnapshot decodes a snapshot written with either compression setting.
// It returns os.ErrNotExist when neither file exists.
func readSnapshot(dir, artifact string, v any) error {
	if data, err := os.ReadFile(filepath.Join(dir, artifact+".json.sz")); err == nil {
		decoded, err := snappy.Decode(nil, data)
		if err != nil {
			return fmt.Errorf("failed to decompress %s: %w", artifact, err)
		}
		return json.Unmarshal(decoded, v)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	data, err := os.ReadFile(filepath.Join(dir, artifact+".json"))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Store) writeJSON(ctx context.Context, artifact, path string, v any) WriteResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return WriteResult{Artifact: artifact, Path: path, Outcome: OutcomeFailed, Err: err}
	}
	return s.writeFile(ctx, artifact, path, data)
}

// readJSON decodes a plain JSON file. A corrupt file is moved aside with a
// ".corrupted" suffix and reported as missing.
func (s *Store) readJSON(ctx context.Context, path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, v); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			_ = os.Rename(path, path+".corrupted")
			s.logger.WarnContext(ctx, "corrupted JSON file moved aside",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return false, nil
		}
		return false, err
	}
	return true, nil
}
