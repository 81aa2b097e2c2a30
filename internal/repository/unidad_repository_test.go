package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigea-dev/almacen-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUnidadRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUnidadRepository(db)

	rows := sqlmock.NewRows([]string{"id", "nombre", "abreviatura", "activo", "fecha_creacion"}).
		AddRow("u1", "Caja", "cj", true, time.Now()).
		AddRow("u2", "Unidad", "und", true, time.Now())
	mock.ExpectQuery("SELECT id, nombre, abreviatura, activo, fecha_creacion FROM unidades").
		WillReturnRows(rows)

	unidades, err := repo.List(context.Background(), models.UnidadFilter{})
	require.NoError(t, err)
	assert.Len(t, unidades, 2)
	assert.Equal(t, "Caja", unidades[0].Nombre)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnidadRepositoryListFiltersActivo(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUnidadRepository(db)

	activo := true
	mock.ExpectQuery("FROM unidades WHERE activo").
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "nombre", "abreviatura", "activo", "fecha_creacion"}))

	unidades, err := repo.List(context.Background(), models.UnidadFilter{Activo: &activo})
	require.NoError(t, err)
	assert.Empty(t, unidades)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnidadRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUnidadRepository(db)

	mock.ExpectExec("INSERT INTO unidades").
		WithArgs(sqlmock.AnyArg(), "Docena", "doc", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	unidad := &models.Unidad{Nombre: "Docena", Abreviatura: "doc", Activo: true}
	require.NoError(t, repo.Create(context.Background(), unidad))
	assert.NotEmpty(t, unidad.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnidadRepositoryCountProductos(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUnidadRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountProductos(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
