package core_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/validata/internal/core"
)

// fakeStore is an in-memory core.Store. Transactions work on a copy of the
// state and publish it on Commit; savepoints are snapshots of that copy.
type fakeStore struct {
	mu      sync.Mutex
	state   fakeState
	nextID  int64
	catalog []core.RuleDefinition
	history []core.IngestionRecord

	insertErr     error  // returned by InsertRows when set
	insertHook    func() // called at the start of every InsertRows
	panicOnInsert bool
	locked        []int64
	projectLocks  map[int64]*sync.Mutex
}

type fakeState struct {
	projects map[int64]core.Project
	tables   map[string]*fakeTable
}

type fakeTable struct {
	def  core.TableDef
	rows [][]any
}

func (s fakeState) clone() fakeState {
	c := fakeState{
		projects: make(map[int64]core.Project, len(s.projects)),
		tables:   make(map[string]*fakeTable, len(s.tables)),
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.tables {
		rows := make([][]any, len(v.rows))
		copy(rows, v.rows)
		c.tables[k] = &fakeTable{def: v.def, rows: rows}
	}
	return c
}

func newFakeStore(catalog ...string) *fakeStore {
	fs := &fakeStore{
		state: fakeState{
			projects: map[int64]core.Project{},
			tables:   map[string]*fakeTable{},
		},
	}
	for i, name := range catalog {
		fs.catalog = append(fs.catalog, core.RuleDefinition{ID: int64(i + 1), Name: name})
	}
	return fs
}

func (fs *fakeStore) Begin(ctx context.Context) (core.Tx, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return &fakeTx{store: fs, work: fs.state.clone(), savepoints: map[string]fakeState{}}, nil
}

func (fs *fakeStore) CreateProject(ctx context.Context, def core.ProjectDefinition) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, p := range fs.state.projects {
		if p.Name == def.Name || p.TableName == def.TableName {
			return 0, core.ErrDuplicateProject
		}
	}
	fs.nextID++
	fs.state.projects[fs.nextID] = projectFrom(fs.nextID, def)
	return fs.nextID, nil
}

func (fs *fakeStore) UpdateProject(ctx context.Context, id int64, def core.ProjectDefinition) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.state.projects[id]; !ok {
		return core.ErrProjectNotFound
	}
	for pid, p := range fs.state.projects {
		if pid != id && p.Name == def.Name {
			return core.ErrDuplicateProject
		}
	}
	fs.state.projects[id] = projectFrom(id, def)
	return nil
}

func (fs *fakeStore) GetProject(ctx context.Context, id int64) (core.Project, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p, ok := fs.state.projects[id]
	if !ok {
		return core.Project{}, fmt.Errorf("project %d: %w", id, core.ErrProjectNotFound)
	}
	return p, nil
}

func (fs *fakeStore) ListProjects(ctx context.Context) ([]core.Project, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []core.Project
	for _, p := range fs.state.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (fs *fakeStore) DeleteProjects(ctx context.Context, ids []int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, id := range ids {
		if _, ok := fs.state.projects[id]; !ok {
			return fmt.Errorf("project %d: %w", id, core.ErrProjectNotFound)
		}
	}
	// Explicit deletion drops the data table too.
	for _, id := range ids {
		p := fs.state.projects[id]
		for k, t := range fs.state.tables {
			if t.def.Name == p.TableName {
				delete(fs.state.tables, k)
			}
		}
		delete(fs.state.projects, id)
	}
	return nil
}

func (fs *fakeStore) ListRuleDefinitions(ctx context.Context) ([]core.RuleDefinition, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]core.RuleDefinition(nil), fs.catalog...), nil
}

func (fs *fakeStore) UpsertRuleDefinitions(ctx context.Context, defs []core.RuleDefinition) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, d := range defs {
		found := false
		for i := range fs.catalog {
			if fs.catalog[i].Name == d.Name {
				fs.catalog[i].Description = d.Description
				found = true
			}
		}
		if !found {
			d.ID = int64(len(fs.catalog) + 1)
			fs.catalog = append(fs.catalog, d)
		}
	}
	return nil
}

func (fs *fakeStore) ReadTable(ctx context.Context, ref core.TableRef, limit int) (*core.TableData, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	t, ok := fs.state.tables[ref.String()]
	if !ok {
		return nil, nil
	}
	data := &core.TableData{Name: ref.Name, Columns: t.def.ColumnNames()}
	if t.def.Surrogate {
		data.Columns = append([]string{core.IdentityColumn}, data.Columns...)
	}
	for i, row := range t.rows {
		if limit > 0 && i >= limit {
			break
		}
		m := map[string]any{}
		if t.def.Surrogate {
			m[core.IdentityColumn] = int64(i + 1)
		}
		for j, c := range t.def.Columns {
			m[c.Name] = row[j]
		}
		data.Rows = append(data.Rows, m)
	}
	return data, nil
}

func (fs *fakeStore) RecordIngestion(ctx context.Context, rec core.IngestionRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.history = append(fs.history, rec)
	return nil
}

func (fs *fakeStore) ListIngestions(ctx context.Context, projectID int64, limit int) ([]core.IngestionRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []core.IngestionRecord
	for i := len(fs.history) - 1; i >= 0 && len(out) < limit; i-- {
		if fs.history[i].ProjectID == projectID {
			out = append(out, fs.history[i])
		}
	}
	return out, nil
}

func (fs *fakeStore) PruneIngestions(ctx context.Context, cutoff time.Time) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	kept := fs.history[:0]
	var n int64
	for _, rec := range fs.history {
		if rec.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	fs.history = kept
	return n, nil
}

// table returns the committed rows of a table, nil if it does not exist.
func (fs *fakeStore) table(ns, name string) *fakeTable {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.state.tables[ns+"."+name]
}

func (fs *fakeStore) hasProject(id int64) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.state.projects[id]
	return ok
}

// seedTable creates a committed table for a project, as a prior ingestion would.
func (fs *fakeStore) seedTable(def core.TableDef, rows ...[]any) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.state.tables[def.TableRef.String()] = &fakeTable{def: def, rows: rows}
}

func projectFrom(id int64, def core.ProjectDefinition) core.Project {
	bindings := make([]core.RuleBinding, len(def.Bindings))
	for i, b := range def.Bindings {
		b.ID = int64(i + 1)
		bindings[i] = b
	}
	return core.Project{
		ID:         id,
		Name:       def.Name,
		TableName:  def.TableName,
		ModifiedBy: def.ModifiedBy,
		Columns:    def.Columns,
		Bindings:   bindings,
	}
}

type fakeTx struct {
	store      *fakeStore
	work       fakeState
	savepoints map[string]fakeState
	held       []*sync.Mutex
	closed     bool
}

var errTxClosed = errors.New("tx is closed")

// LockProject blocks while another transaction holds id, like
// pg_advisory_xact_lock. Once granted, the transaction reads the latest
// committed state, as a READ COMMITTED statement would.
func (tx *fakeTx) LockProject(ctx context.Context, id int64) error {
	fs := tx.store
	fs.mu.Lock()
	if fs.projectLocks == nil {
		fs.projectLocks = map[int64]*sync.Mutex{}
	}
	m, ok := fs.projectLocks[id]
	if !ok {
		m = &sync.Mutex{}
		fs.projectLocks[id] = m
	}
	fs.mu.Unlock()

	m.Lock()
	tx.held = append(tx.held, m)

	fs.mu.Lock()
	fs.locked = append(fs.locked, id)
	tx.work = fs.state.clone()
	fs.mu.Unlock()
	return nil
}

func (tx *fakeTx) release() {
	for _, m := range tx.held {
		m.Unlock()
	}
	tx.held = nil
}

func (tx *fakeTx) LoadProject(ctx context.Context, id int64) (core.Project, error) {
	p, ok := tx.work.projects[id]
	if !ok {
		return core.Project{}, fmt.Errorf("project %d: %w", id, core.ErrProjectNotFound)
	}
	return p, nil
}

func (tx *fakeTx) DeleteProject(ctx context.Context, id int64) error {
	delete(tx.work.projects, id)
	return nil
}

func (tx *fakeTx) TableExists(ctx context.Context, ref core.TableRef) (bool, error) {
	_, ok := tx.work.tables[ref.String()]
	return ok, nil
}

func (tx *fakeTx) CreateTable(ctx context.Context, def core.TableDef) error {
	if _, ok := tx.work.tables[def.TableRef.String()]; ok {
		return fmt.Errorf("relation %q already exists", def.Name)
	}
	tx.work.tables[def.TableRef.String()] = &fakeTable{def: def}
	return nil
}

func (tx *fakeTx) PurgeTable(ctx context.Context, ref core.TableRef) (int64, error) {
	t, ok := tx.work.tables[ref.String()]
	if !ok {
		return 0, fmt.Errorf("relation %q does not exist", ref.String())
	}
	n := int64(len(t.rows))
	t.rows = nil
	return n, nil
}

func (tx *fakeTx) InsertRows(ctx context.Context, def core.TableDef, rows [][]any) (int64, error) {
	if tx.store.insertHook != nil {
		tx.store.insertHook()
	}
	if tx.store.panicOnInsert {
		panic("insert exploded")
	}
	if tx.store.insertErr != nil {
		return 0, tx.store.insertErr
	}
	t, ok := tx.work.tables[def.TableRef.String()]
	if !ok {
		return 0, fmt.Errorf("relation %q does not exist", def.TableRef.String())
	}
	for _, r := range rows {
		t.rows = append(t.rows, append([]any(nil), r...))
	}
	return int64(len(rows)), nil
}

func (tx *fakeTx) Savepoint(ctx context.Context, name string) error {
	tx.savepoints[name] = tx.work.clone()
	return nil
}

func (tx *fakeTx) RollbackToSavepoint(ctx context.Context, name string) error {
	sp, ok := tx.savepoints[name]
	if !ok {
		return fmt.Errorf("savepoint %q does not exist", name)
	}
	tx.work = sp.clone()
	return nil
}

func (tx *fakeTx) ReleaseSavepoint(ctx context.Context, name string) error {
	delete(tx.savepoints, name)
	return nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	if tx.closed {
		return errTxClosed
	}
	tx.closed = true
	tx.store.mu.Lock()
	tx.store.state = tx.work
	tx.store.mu.Unlock()
	tx.release()
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if tx.closed {
		return errTxClosed
	}
	tx.closed = true
	tx.release()
	return nil
}
