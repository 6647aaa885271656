package provider

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/accesstally/internal/tally"
)

const existsQuery = "SELECT COUNT\\(\\*\\) FROM information_schema.TABLES"

func newCatalogProvider(t *testing.T) (*CatalogProvider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p, err := NewCatalogProvider(db, "gis", "orders", "rev_{spacecraft}_d{day}",
		map[string]string{"WV01": "wv-01"}, testBuckets(t))
	require.NoError(t, err)
	return p, mock
}

func TestCatalogProvider_RevTable(t *testing.T) {
	p, _ := newCatalogProvider(t)
	assert.Equal(t, "rev_wv_01_d3", p.RevTable(tally.Key{Spacecraft: "WV01", Day: 3}))
	assert.Equal(t, "rev_GE01_d0", p.RevTable(tally.Key{Spacecraft: "GE01", Day: 0}))
}

func TestCatalogProvider_Availability(t *testing.T) {
	p, mock := newCatalogProvider(t)

	mock.ExpectQuery(existsQuery).
		WithArgs("gis", "rev_wv_01_d0").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows([]string{"id", "max_ona", "ona"}).
		AddRow(int64(1001), 12.0, 8.0).
		AddRow([]byte("B-2"), 15.0, 18.0).
		AddRow([]byte("B-3"), 22.0, 18.0).
		AddRow("C-1", 5.0, 2.0)
	mock.ExpectQuery("SELECT o.`id`, o.`max_ona`, s.`ona` FROM `orders` o JOIN `rev_wv_01_d0` s ON ST_Intersects").
		WillReturnRows(rows)

	set, ok, err := p.Availability(context.Background(), tally.Key{Spacecraft: "WV01", Day: 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tally.NewSet("1001", "B-3"), set)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogProvider_NullONASkipped(t *testing.T) {
	p, mock := newCatalogProvider(t)

	mock.ExpectQuery(existsQuery).
		WithArgs("gis", "rev_wv_01_d0").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows([]string{"id", "max_ona", "ona"}).
		AddRow("A-1", nil, 8.0).
		AddRow("A-2", 12.0, nil).
		AddRow("A-3", 12.0, 8.0)
	mock.ExpectQuery("SELECT o.`id`, o.`max_ona`, s.`ona` FROM `orders` o JOIN `rev_wv_01_d0` s ON ST_Intersects").
		WillReturnRows(rows)

	set, ok, err := p.Availability(context.Background(), tally.Key{Spacecraft: "WV01", Day: 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tally.NewSet("A-3"), set)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogProvider_MissingTable(t *testing.T) {
	p, mock := newCatalogProvider(t)

	mock.ExpectQuery(existsQuery).
		WithArgs("gis", "rev_wv_01_d4").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	set, ok, err := p.Availability(context.Background(), tally.Key{Spacecraft: "WV01", Day: 4})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, set)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogProvider_TableDroppedAfterCheck(t *testing.T) {
	p, mock := newCatalogProvider(t)

	mock.ExpectQuery(existsQuery).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT o.`id`").
		WillReturnError(&mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"})

	_, ok, err := p.Availability(context.Background(), tally.Key{Spacecraft: "WV01", Day: 0})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCatalogProvider_QueryError(t *testing.T) {
	p, mock := newCatalogProvider(t)

	mock.ExpectQuery(existsQuery).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT o.`id`").WillReturnError(sql.ErrConnDone)

	_, _, err := p.Availability(context.Background(), tally.Key{Spacecraft: "WV01", Day: 0})
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCatalogProvider_ExistsError(t *testing.T) {
	p, mock := newCatalogProvider(t)
	mock.ExpectQuery(existsQuery).WillReturnError(sql.ErrConnDone)

	_, _, err := p.Availability(context.Background(), tally.Key{Spacecraft: "WV01", Day: 0})
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestNewCatalogProvider_Invalid(t *testing.T) {
	_, err := NewCatalogProvider(nil, "gis", "orders", "rev_{spacecraft}_d{day}", nil, testBuckets(t))
	assert.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewCatalogProvider(db, "gis", "orders; DROP TABLE x", "rev_{spacecraft}_d{day}", nil, testBuckets(t))
	assert.Error(t, err)
}
