package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigea-dev/almacen-api/internal/models"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
)

func TestProductoRepositoryCreateAssignsSequencedCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProductoRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO product_sequences").
		WithArgs("01").
		WillReturnRows(sqlmock.NewRows([]string{"ultimo_numero"}).AddRow(7))
	mock.ExpectExec("INSERT INTO productos").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO movimientos").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	producto := &models.Producto{
		Nombre:    "Papel bond A4",
		Ubicacion: models.UbicacionGeneral,
		Cantidad:  50,
		UnidadID:  "u1",
		Estado:    models.EstadoDisponible,
	}
	require.NoError(t, repo.Create(context.Background(), producto, nil))
	assert.Equal(t, "01-0007", producto.CodigoProducto)
	assert.Equal(t, "01", producto.CodigoAlmacen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductoRepositoryCreateImportadoAvanzaSecuencia(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProductoRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO productos").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// the counter is raised past the imported suffix so a later generated
	// code cannot collide with 01-0500
	mock.ExpectExec("INSERT INTO product_sequences").
		WithArgs("01", 500).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO movimientos").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	producto := &models.Producto{
		CodigoProducto: "01-0500",
		Nombre:         "Papel bond A4",
		Ubicacion:      models.UbicacionGeneral,
		Cantidad:       50,
		UnidadID:       "u1",
		Estado:         models.EstadoDisponible,
	}
	require.NoError(t, repo.CreateImportado(context.Background(), producto, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductoRepositoryRegistrarMovimientoSalida(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProductoRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT cantidad, estante, estado FROM productos").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"cantidad", "estante", "estado"}).
			AddRow(10, "A-1", models.EstadoDisponible))
	mock.ExpectExec("UPDATE productos SET cantidad").
		WithArgs("p1", 6, sqlmock.AnyArg(), models.EstadoDisponible, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO movimientos").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	movimiento, err := repo.RegistrarMovimiento(context.Background(), "p1", models.MovimientoSalida, 4, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, -4, movimiento.Cantidad)
	assert.Equal(t, 10, movimiento.CantidadAnterior)
	assert.Equal(t, 6, movimiento.CantidadNueva)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductoRepositoryRegistrarMovimientoAgotaStock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProductoRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT cantidad, estante, estado FROM productos").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"cantidad", "estante", "estado"}).
			AddRow(4, nil, models.EstadoDisponible))
	mock.ExpectExec("UPDATE productos SET cantidad").
		WithArgs("p1", 0, sqlmock.AnyArg(), models.EstadoAgotado, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO movimientos").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	movimiento, err := repo.RegistrarMovimiento(context.Background(), "p1", models.MovimientoSalida, 4, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, movimiento.CantidadNueva)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductoRepositoryRegistrarMovimientoInsufficientStock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProductoRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT cantidad, estante, estado FROM productos").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"cantidad", "estante", "estado"}).
			AddRow(3, nil, models.EstadoDisponible))
	mock.ExpectRollback()

	_, err := repo.RegistrarMovimiento(context.Background(), "p1", models.MovimientoPrestamo, 5, nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}
