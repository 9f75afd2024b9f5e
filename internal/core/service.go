package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JonMunkholm/validata/internal/config"
	"github.com/JonMunkholm/validata/internal/logging"
)

// identifierPattern restricts table and column names to safe lower-case identifiers.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Service provides the core business logic for project management and ingestion.
type Service struct {
	store       Store
	rules       *RuleRegistry
	limiter     *UploadLimiter
	provisioner Provisioner
	policy      FailurePolicy

	allowedExt        []string
	maxFileSize       int64
	maxRows           int
	batchSize         int
	timeout           time.Duration
	validationTimeout time.Duration
	historyLimit      int
	previewRows       int

	now func() time.Time
}

// NewService creates a Service over store, resolving rules from rules.
func NewService(store Store, rules *RuleRegistry, cfg *config.Config) (*Service, error) {
	if store == nil {
		return nil, errors.New("core: nil store")
	}
	if rules == nil {
		rules = DefaultRules
	}

	policy, err := ParseFailurePolicy(cfg.Ingest.FailurePolicy)
	if err != nil {
		return nil, err
	}

	namespace := cfg.Database.DataSchema
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &Service{
		store:             store,
		rules:             rules,
		limiter:           NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		provisioner:       Provisioner{Namespace: namespace},
		policy:            policy,
		allowedExt:        cfg.Upload.AllowedExtensions,
		maxFileSize:       cfg.Upload.MaxFileSize,
		maxRows:           cfg.Upload.MaxRows,
		batchSize:         positiveOr(cfg.Upload.BatchSize, 1000),
		timeout:           cfg.Upload.Timeout,
		validationTimeout: cfg.Upload.ValidationTimeout,
		historyLimit:      positiveOr(cfg.Ingest.HistoryLimit, 50),
		previewRows:       positiveOr(cfg.Ingest.TablePreviewRows, 1000),
		now:               time.Now,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Policy returns the failure policy applied to aborted ingestions.
func (s *Service) Policy() FailurePolicy { return s.policy }

// Namespace returns the schema holding project tables.
func (s *Service) Namespace() string { return s.provisioner.Namespace }

// LimiterStatus reports ingestion slot usage.
func (s *Service) LimiterStatus() UploadLimiterStatus { return s.limiter.Status() }

// WaitForIngestions blocks until in-flight ingestions finish or ctx ends.
func (s *Service) WaitForIngestions(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// SyncRuleCatalog upserts every registered rule into the rule catalog.
func (s *Service) SyncRuleCatalog(ctx context.Context) error {
	defs := s.rules.Definitions()
	if err := s.store.UpsertRuleDefinitions(ctx, defs); err != nil {
		return fmt.Errorf("sync rule catalog: %w", err)
	}
	logging.FromContext(ctx).Info("rule catalog synced", "rules", len(defs))
	return nil
}

// ListRuleDefinitions returns the global rule catalog.
func (s *Service) ListRuleDefinitions(ctx context.Context) ([]RuleDefinition, error) {
	return s.store.ListRuleDefinitions(ctx)
}

// CreateProject validates def and stores it. Returns the new project id.
func (s *Service) CreateProject(ctx context.Context, def ProjectDefinition) (int64, error) {
	if err := s.normalizeDefinition(ctx, &def, true); err != nil {
		return 0, err
	}
	if def.ModifiedBy == "" {
		def.ModifiedBy = ActorFromContext(ctx)
	}

	id, err := s.store.CreateProject(ctx, def)
	if err != nil {
		return 0, fmt.Errorf("create project %q: %w", def.Name, err)
	}

	logging.WithFields(ctx, "project_id", id, "table", def.TableName).
		Info("project created", "columns", len(def.Columns), "bindings", len(def.Bindings))
	return id, nil
}

// UpdateProject replaces name, schema and bindings of a project. The table
// name cannot change.
func (s *Service) UpdateProject(ctx context.Context, id int64, def ProjectDefinition) error {
	current, err := s.store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	def.TableName = current.TableName

	if err := s.normalizeDefinition(ctx, &def, false); err != nil {
		return err
	}
	if def.ModifiedBy == "" {
		def.ModifiedBy = ActorFromContext(ctx)
	}

	if err := s.store.UpdateProject(ctx, id, def); err != nil {
		return fmt.Errorf("update project %d: %w", id, err)
	}

	logging.WithFields(ctx, "project_id", id).Info("project updated")
	return nil
}

// GetProject returns a project with the rows currently stored in its table.
func (s *Service) GetProject(ctx context.Context, id int64) (*ProjectDetail, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	ref := TableRef{Namespace: s.provisioner.Namespace, Name: p.TableName}
	data, err := s.store.ReadTable(ctx, ref, s.previewRows)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", ref, err)
	}
	return &ProjectDetail{Project: p, Table: data}, nil
}

// ListProjects returns every project with schema and bindings.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	return s.store.ListProjects(ctx)
}

// DeleteProjects deletes every id or none.
func (s *Service) DeleteProjects(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no project ids given", ErrInvalidProject)
	}
	if err := s.store.DeleteProjects(ctx, ids); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("projects deleted", "ids", ids)
	return nil
}

// IngestionHistory lists the most recent ingestion attempts of a project.
// History outlives the project, so an unknown id yields an empty list.
func (s *Service) IngestionHistory(ctx context.Context, projectID int64, limit int) ([]IngestionRecord, error) {
	if limit <= 0 || limit > s.historyLimit*10 {
		limit = s.historyLimit
	}
	return s.store.ListIngestions(ctx, projectID, limit)
}

// normalizeDefinition lower-cases identifiers, fills default messages and
// checks the definition against the identifier rules and the rule catalog.
func (s *Service) normalizeDefinition(ctx context.Context, def *ProjectDefinition, checkTable bool) error {
	var problems []string

	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		problems = append(problems, "name is required")
	}

	def.TableName = normalizeName(def.TableName)
	if checkTable && !identifierPattern.MatchString(def.TableName) {
		problems = append(problems, fmt.Sprintf("table name %q must match %s", def.TableName, identifierPattern))
	}

	if len(def.Columns) == 0 {
		problems = append(problems, "at least one column is required")
	}
	declared := make(map[string]struct{}, len(def.Columns))
	primaryKeys := 0
	for i := range def.Columns {
		c := &def.Columns[i]
		c.Name = normalizeName(c.Name)
		c.Type = LogicalType(normalizeName(string(c.Type)))
		if c.Type == "" {
			c.Type = TypeText
		}

		if !identifierPattern.MatchString(c.Name) {
			problems = append(problems, fmt.Sprintf("column name %q must match %s", c.Name, identifierPattern))
		}
		if c.PrimaryKey {
			primaryKeys++
		}
		if _, dup := declared[c.Name]; dup {
			problems = append(problems, fmt.Sprintf("column %q declared twice", c.Name))
		}
		declared[c.Name] = struct{}{}

		if c.MaxLength != nil && *c.MaxLength <= 0 {
			problems = append(problems, fmt.Sprintf("column %q: max length must be positive", c.Name))
		}
	}

	if primaryKeys > 1 {
		problems = append(problems, "at most one column can be the primary key")
	}

	catalog, err := s.catalogNames(ctx)
	if err != nil {
		return err
	}
	for i := range def.Bindings {
		b := &def.Bindings[i]
		b.Column = normalizeName(b.Column)
		b.Rule = s.canonicalRule(b.Rule)
		b.Message = strings.TrimSpace(b.Message)
		if b.Message == "" {
			b.Message = DefaultBindingMessage
		}

		if _, ok := declared[b.Column]; !ok {
			problems = append(problems, fmt.Sprintf("binding %d targets undeclared column %q", i+1, b.Column))
		}
		if _, ok := catalog[b.Rule]; !ok {
			problems = append(problems, fmt.Sprintf("binding %d: %v: %q", i+1, ErrRuleNotFound, b.Rule))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProject, strings.Join(problems, "; "))
	}
	return nil
}

// canonicalRule maps aliases to registered names and lower-cases the rest.
func (s *Service) canonicalRule(name string) string {
	if r, err := s.rules.Resolve(name); err == nil {
		return r.Name
	}
	return normalizeName(name)
}

func (s *Service) catalogNames(ctx context.Context) (map[string]struct{}, error) {
	defs, err := s.store.ListRuleDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rule catalog: %w", err)
	}
	names := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		names[normalizeName(d.Name)] = struct{}{}
	}
	return names, nil
}
