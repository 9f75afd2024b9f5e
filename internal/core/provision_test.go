package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageTypeFor(t *testing.T) {
	assert.Equal(t, StorageInteger, StorageTypeFor("INTEGER"))
	assert.Equal(t, StorageVarchar, StorageTypeFor(TypeVarchar))
	assert.Equal(t, StorageDate, StorageTypeFor(TypeDate))
	assert.Equal(t, StorageText, StorageTypeFor(TypeText))
	assert.Equal(t, StorageText, StorageTypeFor("decimal"), "unknown types fall back to text")
}

func TestTableDef_CreateStatement(t *testing.T) {
	n, wide := 10, 1000
	tests := []struct {
		name    string
		project Project
		want    string
	}{
		{
			name: "surrogate key",
			project: Project{TableName: "Ventas", Columns: []ColumnDefinition{
				{Name: "Nombre", Type: TypeVarchar},
				{Name: "fecha", Type: "DATE"},
			}},
			want: `CREATE TABLE "datos"."ventas" ("id" SERIAL PRIMARY KEY, "nombre" VARCHAR(255), "fecha" DATE)`,
		},
		{
			name: "declared id",
			project: Project{TableName: "clientes", Columns: []ColumnDefinition{
				{Name: "id", Type: TypeInteger},
				{Name: "nombre", Type: TypeVarchar, MaxLength: &n, Unique: true},
			}},
			want: `CREATE TABLE "datos"."clientes" ("id" INTEGER, "nombre" VARCHAR(255) UNIQUE)`,
		},
		{
			name: "declared primary key",
			project: Project{TableName: "paises", Columns: []ColumnDefinition{
				{Name: "codigo", Type: TypeVarchar, PrimaryKey: true, Unique: true},
				{Name: "poblacion", Type: TypeInteger},
			}},
			want: `CREATE TABLE "datos"."paises" ("id" SERIAL UNIQUE, "codigo" VARCHAR(255) PRIMARY KEY, "poblacion" INTEGER)`,
		},
		{
			name: "max length does not change the width",
			project: Project{TableName: "ventas", Columns: []ColumnDefinition{
				{Name: "codigo", Type: TypeVarchar, PrimaryKey: true},
				{Name: "nombre", Type: TypeVarchar, MaxLength: &n},
				{Name: "nota", Type: TypeVarchar, MaxLength: &wide},
			}},
			want: `CREATE TABLE "datos"."ventas" ("id" SERIAL UNIQUE, "codigo" VARCHAR(255) PRIMARY KEY, "nombre" VARCHAR(255), "nota" VARCHAR(255))`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := BuildTableDef("datos", tt.project)
			assert.Equal(t, tt.want, def.CreateStatement())
		})
	}
}

func TestTableRef_Sanitize(t *testing.T) {
	ref := TableRef{Namespace: "datos", Name: `x"; DROP TABLE y; --`}
	assert.Equal(t, `"datos"."x""; DROP TABLE y; --"`, ref.Sanitize())
	assert.Equal(t, "datos.ventas", TableRef{Namespace: "datos", Name: "ventas"}.String())
}

func TestFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("")
	assert.NoError(t, err)
	assert.Equal(t, PolicyDestructive, p)

	p, err = ParseFailurePolicy(" Retain ")
	assert.NoError(t, err)
	assert.Equal(t, PolicyRetain, p)

	_, err = ParseFailurePolicy("sometimes")
	assert.Error(t, err)

	tests := []struct {
		policy FailurePolicy
		kind   DiagnosticKind
		mode   IngestMode
		want   bool
	}{
		{PolicyDestructive, KindSchemaMismatch, ModeCreateNew, true},
		{PolicyDestructive, KindParse, ModeCreateNew, true},
		{PolicyDestructive, KindStorage, ModeCreateNew, true},
		{PolicyDestructive, KindTableExists, ModeCreateNew, true},
		{PolicyDestructive, KindRequest, ModeCreateNew, false},
		{PolicyDestructive, KindRowErrors, ModeReuseExisting, true},
		{PolicyDestructive, KindRuleConfiguration, ModeReuseExisting, true},
		{PolicyDestructive, KindParse, ModeReuseExisting, false},
		{PolicyDestructive, KindStorage, ModeReuseExisting, false},
		{PolicyRetain, KindSchemaMismatch, ModeCreateNew, false},
	}
	for _, tt := range tests {
		got := tt.policy.DeletesProject(tt.kind, tt.mode)
		assert.Equal(t, tt.want, got, "%s/%s/%s", tt.policy, tt.kind, tt.mode)
	}
}

func TestDiagnostic(t *testing.T) {
	d := schemaMismatch(MatchSchema([]string{"id", "nombre"}, []string{"id", "extra"}))
	assert.Equal(t, "schema_mismatch: uploaded columns do not match the project schema (missing: nombre; unexpected: extra)", d.Error())
	assert.True(t, d.IsClientError())

	var err error = storageError(PhaseInserting, assert.AnError)
	got, ok := AsDiagnostic(err)
	assert.True(t, ok)
	assert.False(t, got.IsClientError())
	assert.ErrorIs(t, err, assert.AnError)

	_, ok = AsDiagnostic(assert.AnError)
	assert.False(t, ok)
}
