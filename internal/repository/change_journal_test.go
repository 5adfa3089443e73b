package repository

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"collectivewatch/internal/model"
	"collectivewatch/pkg/log"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newSqliteJournal(t *testing.T) ChangeJournalRepository {
	conf := viper.New()
	conf.Set("journal.enabled", true)
	conf.Set("journal.auto_migrate", true)
	conf.Set("env", "prod")
	conf.Set("data.db.driver", "sqlite")
	conf.Set("data.db.dsn", filepath.Join(t.TempDir(), "journal.db"))

	logger := log.NewWithZap(zaptest.NewLogger(t))
	db, cleanup, err := NewDB(conf, logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	repo := NewChangeJournalRepository(NewRepository(logger, db))
	require.NotNil(t, repo)
	return repo
}

func record(id int64, cycle uint64, t model.ResourceType, resourceID string, created time.Time) *model.ChangeRecord {
	return &model.ChangeRecord{
		Id:         id,
		Cycle:      cycle,
		Type:       string(t),
		ResourceID: resourceID,
		Topic:      string(model.ResourceTopic(t, resourceID)),
		Payload:    `{}`,
		CreateTime: created,
	}
}

func TestNewDB_Disabled(t *testing.T) {
	db, cleanup, err := NewDB(viper.New(), log.NewWithZap(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.Nil(t, db)
	cleanup()

	assert.Nil(t, NewChangeJournalRepository(NewRepository(nil, nil)))
}

func TestNewDB_UnknownDriver(t *testing.T) {
	conf := viper.New()
	conf.Set("journal.enabled", true)
	conf.Set("data.db.driver", "oracle")
	_, _, err := NewDB(conf, log.NewWithZap(zaptest.NewLogger(t)))
	assert.Error(t, err)
}

func TestChangeJournal_AppendList(t *testing.T) {
	repo := newSqliteJournal(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Append(ctx, []*model.ChangeRecord{
		record(1, 1, model.TypeServer, "", now),
		record(2, 2, model.TypeCluster, "C1", now),
		record(3, 2, model.TypeServer, "S1", now),
		record(4, 3, model.TypeCluster, "C1", now),
	}))
	require.NoError(t, repo.Append(ctx, nil))

	all, err := repo.List(ctx, JournalQuery{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, int64(1), all[0].Id)

	clusters, err := repo.List(ctx, JournalQuery{Type: "cluster", ResourceID: "C1", SinceCycle: 3})
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, int64(4), clusters[0].Id)
	assert.Equal(t, "cluster/C1", clusters[0].Topic)

	limited, err := repo.List(ctx, JournalQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestChangeJournal_DeleteBefore(t *testing.T) {
	repo := newSqliteJournal(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Append(ctx, []*model.ChangeRecord{
		record(1, 1, model.TypeServer, "", now.Add(-48*time.Hour)),
		record(2, 2, model.TypeServer, "", now),
	}))

	n, err := repo.DeleteBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := repo.List(ctx, JournalQuery{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, int64(2), left[0].Id)
}

func newMockJournal(t *testing.T) (ChangeJournalRepository, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return NewChangeJournalRepository(NewRepository(log.NewWithZap(zaptest.NewLogger(t)), db)), mock
}

func TestChangeJournal_AppendError(t *testing.T) {
	repo, mock := newMockJournal(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `change_record`")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Append(context.Background(), []*model.ChangeRecord{record(1, 1, model.TypeServer, "", time.Now())})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeJournal_DeleteBeforeMySQL(t *testing.T) {
	repo, mock := newMockJournal(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `change_record` WHERE gmt_create < ?")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := repo.DeleteBefore(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
