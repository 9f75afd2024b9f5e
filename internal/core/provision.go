package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DefaultNamespace is the schema holding every project table.
const DefaultNamespace = "datos"

// IdentityColumn is the surrogate key added to every project table unless a
// declared column already has that name.
const IdentityColumn = "id"

// StorageType is a PostgreSQL column type.
type StorageType string

const (
	StorageInteger StorageType = "INTEGER"
	StorageVarchar StorageType = "VARCHAR(255)"
	StorageDate    StorageType = "DATE"
	StorageText    StorageType = "TEXT"
)

// StorageTypeFor maps a logical column type to its storage type. A declared
// max length is metadata only; varchar columns are always VARCHAR(255).
func StorageTypeFor(t LogicalType) StorageType {
	switch LogicalType(normalizeName(string(t))) {
	case TypeInteger:
		return StorageInteger
	case TypeVarchar:
		return StorageVarchar
	case TypeDate:
		return StorageDate
	default:
		return StorageText
	}
}

// TableRef names a table inside a namespace.
type TableRef struct {
	Namespace string
	Name      string
}

// Sanitize returns the quoted, schema-qualified identifier.
func (r TableRef) Sanitize() string {
	return pgx.Identifier{r.Namespace, r.Name}.Sanitize()
}

func (r TableRef) String() string { return r.Namespace + "." + r.Name }

// TableColumn is one provisioned column.
type TableColumn struct {
	Name       string
	Type       StorageType
	Logical    LogicalType
	PrimaryKey bool
	Unique     bool
}

// TableDef is the storage layout derived from a project schema.
type TableDef struct {
	TableRef
	Columns []TableColumn

	// Surrogate is set when the table gets a SERIAL IdentityColumn.
	Surrogate bool
}

// hasPrimaryKey reports whether a declared column is the primary key.
func (d TableDef) hasPrimaryKey() bool {
	for _, c := range d.Columns {
		if c.PrimaryKey {
			return true
		}
	}
	return false
}

// BuildTableDef derives the table layout for p in namespace. Names are lower-cased.
func BuildTableDef(namespace string, p Project) TableDef {
	def := TableDef{
		TableRef:  TableRef{Namespace: namespace, Name: normalizeName(p.TableName)},
		Columns:   make([]TableColumn, len(p.Columns)),
		Surrogate: true,
	}
	for i, c := range p.Columns {
		col := TableColumn{
			Name:       normalizeName(c.Name),
			Type:       StorageTypeFor(c.Type),
			Logical:    LogicalType(normalizeName(string(c.Type))),
			PrimaryKey: c.PrimaryKey,
			Unique:     c.Unique && !c.PrimaryKey,
		}
		if col.Name == IdentityColumn {
			def.Surrogate = false
		}
		def.Columns[i] = col
	}
	return def
}

// ColumnNames returns the provisioned column names, identity column excluded.
func (d TableDef) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// CreateStatement returns the CREATE TABLE statement for d.
func (d TableDef) CreateStatement() string {
	cols := make([]string, 0, len(d.Columns)+1)
	if d.Surrogate {
		// A declared primary key takes the constraint; the surrogate stays unique.
		if d.hasPrimaryKey() {
			cols = append(cols, pgx.Identifier{IdentityColumn}.Sanitize()+" SERIAL UNIQUE")
		} else {
			cols = append(cols, pgx.Identifier{IdentityColumn}.Sanitize()+" SERIAL PRIMARY KEY")
		}
	}
	for _, c := range d.Columns {
		col := pgx.Identifier{c.Name}.Sanitize() + " " + string(c.Type)
		switch {
		case c.PrimaryKey:
			col += " PRIMARY KEY"
		case c.Unique:
			col += " UNIQUE"
		}
		cols = append(cols, col)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.Sanitize(), strings.Join(cols, ", "))
}

// Provisioner creates or clears the storage table of a project.
type Provisioner struct {
	Namespace string
}

// Provision prepares the table for p. In create-new mode an existing table is
// a *Diagnostic of kind table_exists. In reuse-existing mode existence is not
// checked and every row is purged. It returns the number of purged rows.
func (pr Provisioner) Provision(ctx context.Context, tx Tx, p Project, mode IngestMode) (TableDef, int64, error) {
	def := BuildTableDef(pr.Namespace, p)
	if pr.Namespace == "" {
		def.Namespace = DefaultNamespace
	}

	if mode == ModeReuseExisting {
		n, err := tx.PurgeTable(ctx, def.TableRef)
		if err != nil {
			return def, 0, fmt.Errorf("purge %s: %w", def, err)
		}
		return def, n, nil
	}

	exists, err := tx.TableExists(ctx, def.TableRef)
	if err != nil {
		return def, 0, fmt.Errorf("check table %s: %w", def, err)
	}
	if exists {
		return def, 0, tableExists(def.Name)
	}
	if err := tx.CreateTable(ctx, def); err != nil {
		return def, 0, fmt.Errorf("create table %s: %w", def, err)
	}
	return def, 0, nil
}
