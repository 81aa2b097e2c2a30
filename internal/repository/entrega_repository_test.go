package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigea-dev/almacen-api/internal/models"
)

var entregaMockColumns = []string{
	"id", "alumno_id", "util_id", "cantidad_entregada", "fecha_entrega", "fecha_modificacion", "observaciones",
	"util_nombre", "cantidad_requerida",
}

func TestEntregaRepositoryActualizarCantidadClampsToRequired(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntregaRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM entregas_utiles e").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(entregaMockColumns).
			AddRow("e1", "a1", "ut1", 2, nil, time.Now(), nil, "Cuaderno rayado", 5))
	mock.ExpectExec("UPDATE entregas_utiles SET cantidad_entregada").
		WithArgs("e1", 5, sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO historial_entregas").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entrega, err := repo.ActualizarCantidad(context.Background(), "e1", 99, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, entrega.CantidadEntregada)
	assert.True(t, entrega.Entregado())
	assert.NotNil(t, entrega.FechaEntrega)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntregaRepositoryActualizarCantidadFloorsAtZero(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntregaRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM entregas_utiles e").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(entregaMockColumns).
			AddRow("e1", "a1", "ut1", 3, nil, time.Now(), nil, "Cuaderno rayado", 5))
	mock.ExpectExec("UPDATE entregas_utiles SET cantidad_entregada").
		WithArgs("e1", 0, nil, sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO historial_entregas").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entrega, err := repo.ActualizarCantidad(context.Background(), "e1", -4, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, entrega.CantidadEntregada)
	assert.False(t, entrega.Entregado())
	assert.Nil(t, entrega.FechaEntrega)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntregaRepositoryActualizarCantidadKeepsStampAndNotes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntregaRepository(db)

	primeraEntrega := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM entregas_utiles e").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(entregaMockColumns).
			AddRow("e1", "a1", "ut1", 2, primeraEntrega, time.Now(), "media docena", "Cuaderno rayado", 5))
	// the original stamp and the stored notes survive a quantity-only update
	mock.ExpectExec("UPDATE entregas_utiles SET cantidad_entregada").
		WithArgs("e1", 3, primeraEntrega, sqlmock.AnyArg(), "media docena").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO historial_entregas").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entrega, err := repo.ActualizarCantidad(context.Background(), "e1", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, entrega.CantidadEntregada)
	require.NotNil(t, entrega.FechaEntrega)
	assert.True(t, primeraEntrega.Equal(*entrega.FechaEntrega))
	require.NotNil(t, entrega.Observaciones)
	assert.Equal(t, "media docena", *entrega.Observaciones)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntregaRepositoryActualizarCantidadSinCambioNoRegistraHistorial(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntregaRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM entregas_utiles e").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(entregaMockColumns).
			AddRow("e1", "a1", "ut1", 2, time.Now(), time.Now(), nil, "Cuaderno rayado", 5))
	mock.ExpectExec("UPDATE entregas_utiles SET cantidad_entregada").
		WithArgs("e1", 2, sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entrega, err := repo.ActualizarCantidad(context.Background(), "e1", 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, entrega.CantidadEntregada)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntregaRepositoryMarcarCompleta(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntregaRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM entregas_utiles e").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(entregaMockColumns).
			AddRow("e1", "a1", "ut1", 0, nil, time.Now(), nil, "Cuaderno rayado", 5).
			AddRow("e2", "a1", "ut2", 3, nil, time.Now(), nil, "Lapices", 3))
	// only the incomplete row changes
	mock.ExpectExec("UPDATE entregas_utiles SET cantidad_entregada").
		WithArgs("e1", 5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO historial_entregas").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE alumnos SET fecha_entrega").
		WithArgs("a1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarcarCompleta(context.Background(), "a1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntregaRepositoryCreateUtilBackfills(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntregaRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO utiles_salon").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id FROM alumnos WHERE salon_id").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a2"))
	mock.ExpectExec("INSERT INTO entregas_utiles").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO entregas_utiles").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	util := &models.UtilSalon{SalonID: "s1", Nombre: "Cuaderno rayado", CantidadRequerida: 5, Orden: 1}
	require.NoError(t, repo.CreateUtil(context.Background(), util))
	assert.NotEmpty(t, util.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
