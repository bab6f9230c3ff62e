package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() {
		mockDB.Close()
	})

	db := sqlx.NewDb(mockDB, "sqlmock")

	WithMaxOpenConns(7)(db)
	assert.Equal(t, 7, db.Stats().MaxOpenConnections)

	WithMaxOpenConns(0)(db)
	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
}

func TestPrepare(t *testing.T) {
	newMock := func(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
		mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create mock database: %v", err)
		}
		t.Cleanup(func() {
			mockDB.Close()
		})

		return sqlx.NewDb(mockDB, "sqlmock"), mock
	}

	t.Run("applies defaults and options", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectPing()

		err := prepare(context.Background(), db, WithMaxOpenConns(7))

		assert.NoError(t, err)
		assert.Equal(t, 7, db.Stats().MaxOpenConnections)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping failure", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		err := prepare(context.Background(), db)

		assert.ErrorContains(t, err, "failed to ping database")
		assert.Equal(t, defaultMaxOpenConns, db.Stats().MaxOpenConnections)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
