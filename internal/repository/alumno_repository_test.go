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

func TestAlumnoRepositoryCreateBackfillsEntregas(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlumnoRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO alumnos").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT us.id FROM utiles_salon us").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ut1").AddRow("ut2").AddRow("ut3"))
	mock.ExpectExec("INSERT INTO entregas_utiles").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO entregas_utiles").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO entregas_utiles").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	alumno := &models.Alumno{SalonID: "s1", Nombre: "Perez Lopez, Maria", DNI: "71234567", Sexo: "F"}
	require.NoError(t, repo.Create(context.Background(), alumno))
	assert.NotEmpty(t, alumno.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlumnoRepositoryListConEstadoClassifies(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlumnoRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "salon_id", "nombre", "dni", "sexo", "email", "fecha_entrega", "fecha_registro",
		"total_requerido", "total_entregado", "total_items",
	}).
		AddRow("a1", "s1", "Sin lista", "70000001", "M", nil, nil, now, 0, 0, 0).
		AddRow("a2", "s1", "No entrego", "70000002", "F", nil, nil, now, 5, 0, 2).
		AddRow("a3", "s1", "Parcial", "70000003", "M", nil, nil, now, 5, 3, 2).
		AddRow("a4", "s1", "Completo", "70000004", "F", nil, nil, now, 5, 5, 2)
	mock.ExpectQuery("FROM alumnos a").
		WithArgs("s1").
		WillReturnRows(rows)

	alumnos, err := repo.ListConEstado(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, alumnos, 4)
	assert.Equal(t, models.EstadoSinLista, alumnos[0].Estado)
	assert.Equal(t, models.EstadoNoEntrego, alumnos[1].Estado)
	assert.Equal(t, models.EstadoParcial, alumnos[2].Estado)
	assert.Equal(t, "3/5", alumnos[2].Progreso)
	assert.Equal(t, models.EstadoCompleto, alumnos[3].Estado)
	assert.True(t, alumnos[3].EntregaCompleta)
	assert.NoError(t, mock.ExpectationsWereMet())
}
