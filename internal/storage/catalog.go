package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	apperrors "carecohort/internal/errors"
)

// Project status values.
const (
	StatusDraft     = "Rascunho"
	StatusProcessed = "Processado"
)

// Project is one entry of the catalog.
type Project struct {
	ID          string    `json:"project_id"`
	Name        string    `json:"name"`
	Client      string    `json:"unimed"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Status      string    `json:"status"`
	Lives       int       `json:"lives"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProject holds the user supplied fields of a project.
type NewProject struct {
	Name        string
	Client      string
	Description string
	Tags        []string
}

// Round is one analysis run configuration inside a project.
type Round struct {
	ProjectID  string    `json:"project_id"`
	ID         string    `json:"round_id"`
	Name       string    `json:"name"`
	Competence string    `json:"competencia"`
	Notes      string    `json:"notes"`
	CopiedFrom string    `json:"copied_from,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewRound holds the user supplied fields of a round. CopyFrom names a
// round of the same project whose configuration is copied.
type NewRound struct {
	Name       string
	Competence string
	Notes      string
	CopyFrom   string
}

// Current is the project and round the user last worked on.
type Current struct {
	ProjectID string    `json:"project_id"`
	RoundID   string    `json:"round_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Catalog indexes projects and rounds in SQLite.
type Catalog struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenCatalog opens or creates the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// One connection keeps pragmas stable and serializes writers.
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db, path: path, now: time.Now}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return c, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Ping checks that the catalog database answers.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Catalog) initSchema() error {
	schema := `
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS projects (
		project_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		client TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		tags_json TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		lives INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_projects_created ON projects(created_at);

	CREATE TABLE IF NOT EXISTS rounds (
		project_id TEXT NOT NULL,
		round_id TEXT NOT NULL,
		name TEXT NOT NULL,
		competence TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		copied_from TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (project_id, round_id)
	);

	CREATE TABLE IF NOT EXISTS current_selection (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		project_id TEXT NOT NULL,
		round_id TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// CreateProject registers a project with status Rascunho. The ID is the
// creation timestamp plus a slug of the name; a short random suffix is
// added if that ID is taken.
func (c *Catalog) CreateProject(ctx context.Context, in NewProject) (*Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrInvalidProjectName)
	}

	now := c.now()
	id := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), Slug(name))
	if _, err := c.GetProject(ctx, id); err == nil {
		id = fmt.Sprintf("%s_%s", id, uuid.NewString()[:8])
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO projects (project_id, name, client, description, tags_json, status, lives, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, id, name, in.Client, in.Description, string(tagsJSON), StatusDraft, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	return &Project{
		ID:          id,
		Name:        name,
		Client:      in.Client,
		Description: in.Description,
		Tags:        tags,
		Status:      StatusDraft,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

const projectColumns = `project_id, name, client, description, tags_json, status, lives, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var (
		p                Project
		tagsJSON         string
		created, updated string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Client, &p.Description, &tagsJSON, &p.Status, &p.Lives, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil || p.Tags == nil {
		p.Tags = []string{}
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// GetProject returns one project or an error wrapping ErrProjectNotFound.
func (c *Catalog) GetProject(ctx context.Context, projectID string) (*Project, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE project_id = ?`, projectID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrProjectNotFound, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	return p, nil
}

// ListProjects returns every project, oldest first.
func (c *Catalog) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at, project_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project and its rounds from the catalog. The
// current selection is cleared when it points at the project.
func (c *Catalog) DeleteProject(ctx context.Context, projectID string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrProjectNotFound, projectID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rounds WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to delete rounds: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM current_selection WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to clear current selection: %w", err)
	}
	return tx.Commit()
}

// MarkProcessed flags a project as processed with its distinct lives count.
func (c *Catalog) MarkProcessed(ctx context.Context, projectID string, lives int) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE projects SET status = ?, lives = ?, updated_at = ? WHERE project_id = ?
	`, StatusProcessed, lives, formatTime(c.now()), projectID)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrProjectNotFound, projectID)
	}
	return nil
}

func (c *Catalog) touch(ctx context.Context, projectID, roundID string) error {
	now := formatTime(c.now())
	if _, err := c.db.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE project_id = ?`, now, projectID); err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
	}
	if roundID == "" {
		return nil
	}
	if _, err := c.db.ExecContext(ctx, `UPDATE rounds SET updated_at = ? WHERE project_id = ? AND round_id = ?`, now, projectID, roundID); err != nil {
		return fmt.Errorf("failed to touch round: %w", err)
	}
	return nil
}

// RoundID derives a round identifier from its name. Short alphanumeric
// names such as "R1" are used verbatim.
func RoundID(name string, now time.Time) string {
	name = strings.TrimSpace(name)
	if len(name) > 0 && len(name) < 5 && isAlnum(name) {
		return name
	}
	return fmt.Sprintf("%s_%s", now.Format("20060102_150405"), Slug(name))
}

// CreateRound registers a round. Creating a round whose ID already exists
// refreshes its name, competence, notes and source round.
func (c *Catalog) CreateRound(ctx context.Context, projectID string, in NewRound) (*Round, error) {
	if _, err := c.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if in.CopyFrom != "" {
		if _, err := c.GetRound(ctx, projectID, in.CopyFrom); err != nil {
			return nil, err
		}
	}

	now := c.now()
	id := RoundID(in.Name, now)
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO rounds (project_id, round_id, name, competence, notes, copied_from, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, round_id) DO UPDATE SET
			name = excluded.name,
			competence = excluded.competence,
			notes = excluded.notes,
			copied_from = excluded.copied_from,
			updated_at = excluded.updated_at
	`, projectID, id, strings.TrimSpace(in.Name), in.Competence, in.Notes, in.CopyFrom, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert round: %w", err)
	}
	if err := c.touch(ctx, projectID, ""); err != nil {
		return nil, err
	}
	return c.GetRound(ctx, projectID, id)
}

// EnsureRound returns the round, creating it with roundID as its name when
// it does not exist yet.
func (c *Catalog) EnsureRound(ctx context.Context, projectID, roundID string) (*Round, bool, error) {
	r, err := c.GetRound(ctx, projectID, roundID)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, apperrors.ErrRoundNotFound) {
		return nil, false, err
	}
	if _, err := c.GetProject(ctx, projectID); err != nil {
		return nil, false, err
	}

	now := formatTime(c.now())
	_, err = c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO rounds (project_id, round_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, projectID, roundID, roundID, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert round: %w", err)
	}
	r, err = c.GetRound(ctx, projectID, roundID)
	return r, err == nil, err
}

const roundColumns = `project_id, round_id, name, competence, notes, copied_from, created_at, updated_at`

func scanRound(row rowScanner) (*Round, error) {
	var (
		r                Round
		created, updated string
	)
	if err := row.Scan(&r.ProjectID, &r.ID, &r.Name, &r.Competence, &r.Notes, &r.CopiedFrom, &created, &updated); err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return &r, nil
}

// GetRound returns one round or an error wrapping ErrRoundNotFound.
func (c *Catalog) GetRound(ctx context.Context, projectID, roundID string) (*Round, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE project_id = ? AND round_id = ?`, projectID, roundID)
	r, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", apperrors.ErrRoundNotFound, projectID, roundID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read round: %w", err)
	}
	return r, nil
}

// ListRounds returns the rounds of a project ordered by ID.
func (c *Catalog) ListRounds(ctx context.Context, projectID string) ([]Round, error) {
	if _, err := c.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE project_id = ? ORDER BY round_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	rounds := []Round{}
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, *r)
	}
	return rounds, rows.Err()
}

// GetCurrent returns the current selection; an empty Current when unset.
func (c *Catalog) GetCurrent(ctx context.Context) (Current, error) {
	var (
		cur     Current
		updated string
	)
	err := c.db.QueryRowContext(ctx, `SELECT project_id, round_id, updated_at FROM current_selection WHERE id = 1`).
		Scan(&cur.ProjectID, &cur.RoundID, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Current{}, nil
	}
	if err != nil {
		return Current{}, fmt.Errorf("failed to read current selection: %w", err)
	}
	cur.UpdatedAt = parseTime(updated)
	return cur, nil
}

// SetCurrent points the current selection at an existing round.
func (c *Catalog) SetCurrent(ctx context.Context, projectID, roundID string) (Current, error) {
	if _, err := c.GetRound(ctx, projectID, roundID); err != nil {
		return Current{}, err
	}
	now := c.now()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO current_selection (id, project_id, round_id, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			round_id = excluded.round_id,
			updated_at = excluded.updated_at
	`, projectID, roundID, formatTime(now))
	if err != nil {
		return Current{}, fmt.Errorf("failed to save current selection: %w", err)
	}
	return Current{ProjectID: projectID, RoundID: roundID, UpdatedAt: now.UTC()}, nil
}

// Slug keeps letters and digits, joins the rest with single underscores
// and caps the result at 60 characters.
func Slug(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '_' })
	slug := strings.Join(parts, "_")
	if runes := []rune(slug); len(runes) > 60 {
		slug = string(runes[:60])
	}
	if slug == "" {
		return "item"
	}
	return slug
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
