package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/deployer/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// One connection: keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Registry Operations
// =============================================================================

// deployedUnitRow represents a deployed_units row in the database.
type deployedUnitRow struct {
	Identity     string  `db:"identity"`
	GroupID      string  `db:"group_id"`
	ArtifactID   string  `db:"artifact_id"`
	Version      string  `db:"version"`
	KBaseName    string  `db:"kbase_name"`
	KSessionName string  `db:"ksession_name"`
	Strategy     string  `db:"strategy"`
	MergeMode    string  `db:"merge_mode"`
	Descriptor   *string `db:"descriptor"`
	DeployedAt   string  `db:"deployed_at"`
}

func (s *SQLiteStore) GetDeployedUnit(ctx context.Context, identity string) (*domain.DeployedUnit, error) {
	return getDeployedUnit(ctx, s.db, identity)
}

func (s *SQLiteStore) ListDeployedIDs(ctx context.Context) ([]string, error) {
	return listDeployedIDs(ctx, s.db)
}

func (s *SQLiteStore) Deploy(ctx context.Context, unit domain.DeploymentUnit) error {
	return deployUnit(ctx, s.db, unit, time.Now())
}

func (s *SQLiteStore) Undeploy(ctx context.Context, identity string) error {
	return undeployUnit(ctx, s.db, identity)
}

// JobResults returns the job result cache backed by this database.
func (s *SQLiteStore) JobResults() JobResults {
	return &sqliteJobResults{store: s, exec: s.db}
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) GetDeployedUnit(ctx context.Context, identity string) (*domain.DeployedUnit, error) {
	return getDeployedUnit(ctx, s.tx, identity)
}

func (s *txSQLiteStore) ListDeployedIDs(ctx context.Context) ([]string, error) {
	return listDeployedIDs(ctx, s.tx)
}

func (s *txSQLiteStore) Deploy(ctx context.Context, unit domain.DeploymentUnit) error {
	return deployUnit(ctx, s.tx, unit, time.Now())
}

func (s *txSQLiteStore) Undeploy(ctx context.Context, identity string) error {
	return undeployUnit(ctx, s.tx, identity)
}

func (s *txSQLiteStore) JobResults() JobResults {
	return &sqliteJobResults{exec: s.tx}
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Job Results
// =============================================================================

// jobResultRow represents a job_results row in the database.
type jobResultRow struct {
	Identity       string       `db:"identity"`
	JobID          string       `db:"job_id"`
	JobType        string       `db:"job_type"`
	Unit           string       `db:"unit"`
	ExecutorHandle string       `db:"executor_handle"`
	Status         string       `db:"status"`
	Explanation    string       `db:"explanation"`
	Success        sql.NullBool `db:"success"`
	CreatedAt      string       `db:"created_at"`
	UpdatedAt      string       `db:"updated_at"`
}

// sqliteJobResults implements JobResults. store is nil inside a transaction.
type sqliteJobResults struct {
	store *SQLiteStore
	exec  executor
}

func (r *sqliteJobResults) Put(ctx context.Context, job domain.Job) error {
	return putJob(ctx, r.exec, job)
}

func (r *sqliteJobResults) MostRecent(ctx context.Context, identity string) (domain.Job, bool, error) {
	return getJobWhere(ctx, r.exec, "MostRecent", "identity", identity)
}

func (r *sqliteJobResults) Get(ctx context.Context, jobID string) (domain.Job, bool, error) {
	return getJobWhere(ctx, r.exec, "GetJob", "job_id", jobID)
}

func (r *sqliteJobResults) Identities(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.exec.SelectContext(ctx, &ids, `SELECT identity FROM job_results ORDER BY identity`); err != nil {
		return nil, NewStoreError("Identities", "job", "", err.Error(), err)
	}
	return ids, nil
}

func (r *sqliteJobResults) Update(ctx context.Context, jobID string, fn func(*domain.Job) error) (domain.Job, error) {
	if r.store == nil {
		return updateJob(ctx, r.exec, jobID, fn)
	}

	var updated domain.Job
	err := r.store.WithTx(ctx, func(tx Store) error {
		inner := tx.(*txSQLiteStore)
		job, err := updateJob(ctx, inner.tx, jobID, fn)
		updated = job
		return err
	})
	return updated, err
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func getDeployedUnit(ctx context.Context, exec executor, identity string) (*domain.DeployedUnit, error) {
	query := `SELECT * FROM deployed_units WHERE identity = ?`

	var row deployedUnitRow
	err := exec.GetContext(ctx, &row, query, identity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDeployedUnit", "deployed_unit", identity, "deployment unit not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDeployedUnit", "deployed_unit", identity, err.Error(), err)
	}

	return rowToDeployedUnit(&row)
}

func listDeployedIDs(ctx context.Context, exec executor) ([]string, error) {
	var ids []string
	if err := exec.SelectContext(ctx, &ids, `SELECT identity FROM deployed_units ORDER BY identity`); err != nil {
		return nil, NewStoreError("ListDeployedIDs", "deployed_unit", "", err.Error(), err)
	}
	return ids, nil
}

func deployUnit(ctx context.Context, exec executor, unit domain.DeploymentUnit, now time.Time) error {
	identity := unit.Identity.String()

	var descriptor *string
	if unit.Descriptor != nil {
		b, err := json.Marshal(unit.Descriptor)
		if err != nil {
			return NewStoreError("Deploy", "deployed_unit", identity, "failed to serialize descriptor", ErrInvalidData)
		}
		s := string(b)
		descriptor = &s
	}

	query := `
		INSERT INTO deployed_units (
			identity, group_id, artifact_id, version, kbase_name, ksession_name,
			strategy, merge_mode, descriptor, deployed_at
		) VALUES (
			:identity, :group_id, :artifact_id, :version, :kbase_name, :ksession_name,
			:strategy, :merge_mode, :descriptor, :deployed_at
		)`

	row := deployedUnitRow{
		Identity:     identity,
		GroupID:      unit.Identity.GroupID,
		ArtifactID:   unit.Identity.ArtifactID,
		Version:      unit.Identity.Version,
		KBaseName:    unit.Identity.KBaseName,
		KSessionName: unit.Identity.KSessionName,
		Strategy:     string(unit.Strategy),
		MergeMode:    string(unit.MergeMode),
		Descriptor:   descriptor,
		DeployedAt:   now.UTC().Format(time.RFC3339Nano),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deployed_units.identity") {
			return NewStoreError("Deploy", "deployed_unit", identity, "deployment unit already deployed", ErrAlreadyDeployed)
		}
		return NewStoreError("Deploy", "deployed_unit", identity, err.Error(), err)
	}

	return nil
}

func undeployUnit(ctx context.Context, exec executor, identity string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM deployed_units WHERE identity = ?`, identity)
	if err != nil {
		return NewStoreError("Undeploy", "deployed_unit", identity, err.Error(), err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewStoreError("Undeploy", "deployed_unit", identity, "deployment unit not found", ErrNotFound)
	}

	return nil
}

func putJob(ctx context.Context, exec executor, job domain.Job) error {
	row, err := jobToRow(&job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO job_results (
			identity, job_id, job_type, unit, executor_handle,
			status, explanation, success, created_at, updated_at
		) VALUES (
			:identity, :job_id, :job_type, :unit, :executor_handle,
			:status, :explanation, :success, :created_at, :updated_at
		)
		ON CONFLICT(identity) DO UPDATE SET
			job_id = excluded.job_id,
			job_type = excluded.job_type,
			unit = excluded.unit,
			executor_handle = excluded.executor_handle,
			status = excluded.status,
			explanation = excluded.explanation,
			success = excluded.success,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		return NewStoreError("PutJob", "job", job.ID, err.Error(), err)
	}
	return nil
}

func getJobWhere(ctx context.Context, exec executor, op, column, value string) (domain.Job, bool, error) {
	query := `SELECT * FROM job_results WHERE ` + column + ` = ?`

	var row jobResultRow
	if err := exec.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, NewStoreError(op, "job", value, err.Error(), err)
	}

	job, err := rowToJob(&row)
	if err != nil {
		return domain.Job{}, false, err
	}
	return *job, true, nil
}

func updateJob(ctx context.Context, exec executor, jobID string, fn func(*domain.Job) error) (domain.Job, error) {
	job, ok, err := getJobWhere(ctx, exec, "UpdateJob", "job_id", jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if !ok {
		return domain.Job{}, NewStoreError("UpdateJob", "job", jobID, "job not found", domain.ErrJobNotFound)
	}

	if err := fn(&job); err != nil {
		return domain.Job{}, err
	}

	row, err := jobToRow(&job)
	if err != nil {
		return domain.Job{}, err
	}

	query := `
		UPDATE job_results SET
			executor_handle = :executor_handle,
			status = :status,
			explanation = :explanation,
			success = :success,
			updated_at = :updated_at
		WHERE job_id = :job_id`

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		return domain.Job{}, NewStoreError("UpdateJob", "job", jobID, err.Error(), err)
	}
	return job, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

// rowToDeployedUnit converts a database row to a domain.DeployedUnit.
func rowToDeployedUnit(row *deployedUnitRow) (*domain.DeployedUnit, error) {
	deployedAt, _ := time.Parse(time.RFC3339Nano, row.DeployedAt)

	var descriptor *domain.DeploymentDescriptor
	if row.Descriptor != nil && *row.Descriptor != "" && *row.Descriptor != "null" {
		descriptor = &domain.DeploymentDescriptor{}
		if err := json.Unmarshal([]byte(*row.Descriptor), descriptor); err != nil {
			return nil, NewStoreError("rowToDeployedUnit", "deployed_unit", row.Identity, "failed to parse descriptor", ErrInvalidData)
		}
	}

	return &domain.DeployedUnit{
		Unit: domain.DeploymentUnit{
			Identity: domain.DeploymentIdentity{
				GroupID:      row.GroupID,
				ArtifactID:   row.ArtifactID,
				Version:      row.Version,
				KBaseName:    row.KBaseName,
				KSessionName: row.KSessionName,
			},
			Strategy:   domain.RuntimeStrategy(row.Strategy),
			MergeMode:  domain.MergeMode(row.MergeMode),
			Descriptor: descriptor,
		},
		DeployedAt: deployedAt,
	}, nil
}

// jobToRow converts a domain.Job to a database row.
func jobToRow(job *domain.Job) (*jobResultRow, error) {
	unitJSON, err := json.Marshal(job.Unit)
	if err != nil {
		return nil, NewStoreError("jobToRow", "job", job.ID, "failed to serialize unit", ErrInvalidData)
	}

	row := &jobResultRow{
		Identity:       job.Unit.Identity.String(),
		JobID:          job.ID,
		JobType:        string(job.Type),
		Unit:           string(unitJSON),
		ExecutorHandle: job.ExecutorHandle,
		Status:         string(job.Status),
		Explanation:    job.Explanation,
		CreatedAt:      job.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if job.Success != nil {
		row.Success = sql.NullBool{Bool: *job.Success, Valid: true}
	}
	return row, nil
}

// rowToJob converts a database row to a domain.Job.
func rowToJob(row *jobResultRow) (*domain.Job, error) {
	createdAt, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, row.UpdatedAt)

	var unit domain.DeploymentUnit
	if err := json.Unmarshal([]byte(row.Unit), &unit); err != nil {
		return nil, NewStoreError("rowToJob", "job", row.JobID, "failed to parse unit", ErrInvalidData)
	}

	job := &domain.Job{
		ID:             row.JobID,
		Type:           domain.JobType(row.JobType),
		Unit:           unit,
		ExecutorHandle: row.ExecutorHandle,
		Status:         domain.DeploymentStatus(row.Status),
		Explanation:    row.Explanation,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
	if row.Success.Valid {
		job.SetSuccess(row.Success.Bool)
	}
	return job, nil
}
