package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigea-dev/almacen-api/internal/models"
)

func TestPedidoRepositorySeleccionarCotizacion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPedidoRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE cotizaciones SET estado").
		WithArgs("ped1", "cot1", models.CotizacionRechazada, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE cotizaciones SET estado").
		WithArgs("cot1", "ped1", models.CotizacionSeleccionada, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE pedidos SET estado").
		WithArgs("ped1", models.PedidoCompletado, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SeleccionarCotizacion(context.Background(), "ped1", "cot1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPedidoRepositorySeleccionarCotizacionUnknown(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPedidoRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE cotizaciones SET estado").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE cotizaciones SET estado").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SeleccionarCotizacion(context.Background(), "ped1", "missing")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPedidoRepositoryMarcarEntregadoRequiresCompletado(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPedidoRepository(db)

	mock.ExpectExec("UPDATE pedidos SET estado").
		WithArgs("ped1", models.PedidoEntregado, "acta.pdf", sqlmock.AnyArg(), models.PedidoCompletado).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarcarEntregado(context.Background(), "ped1", "acta.pdf")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPedidoRepositoryGetByIDWithSelected(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPedidoRepository(db)

	now := time.Now()
	pedidoRows := sqlmock.NewRows([]string{
		"id", "nombre", "descripcion", "archivo", "estado", "fecha_creacion", "fecha_modificacion",
		"documento_entrega", "fecha_entrega", "total_items", "total_cotizaciones", "total_general",
	}).AddRow("ped1", "Compra de papeleria", "", nil, models.PedidoCompletado, now, now, nil, nil, 3, 2, "245.50")
	mock.ExpectQuery("FROM pedidos p WHERE p.id").
		WithArgs("ped1").
		WillReturnRows(pedidoRows)

	cotizacionRows := sqlmock.NewRows([]string{
		"id", "pedido_id", "proveedor", "monto", "descripcion", "documento", "estado", "fecha_creacion", "fecha_modificacion",
	}).AddRow("cot1", "ped1", "Libreria Central", "245.50", "", "cotizacion.pdf", models.CotizacionSeleccionada, now, now)
	mock.ExpectQuery("FROM cotizaciones WHERE pedido_id").
		WithArgs("ped1", models.CotizacionSeleccionada).
		WillReturnRows(cotizacionRows)

	detalle, err := repo.GetByID(context.Background(), "ped1")
	require.NoError(t, err)
	assert.Equal(t, 3, detalle.TotalItems)
	assert.True(t, detalle.TotalGeneral.Equal(decimal.RequireFromString("245.50")))
	require.NotNil(t, detalle.CotizacionSeleccionada)
	assert.Equal(t, "Libreria Central", detalle.CotizacionSeleccionada.Proveedor)
	assert.NoError(t, mock.ExpectationsWereMet())
}
