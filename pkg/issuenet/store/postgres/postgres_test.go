package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/store"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *pgStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, newStore(mock)
}

func TestTopIssues(t *testing.T) {
	mock, st := newMock(t)
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, keywords, total_count, created_at FROM issues ORDER BY total_count DESC, id ASC")).
		WillReturnRows(pgxmock.NewRows(issueColumns).
			AddRow(int64(2), "예산안 처리 공방", []string{"예산안", "국회"}, 12, created).
			AddRow(int64(1), "의대 증원 논란", []string{"의대"}, 9, created))

	issues, err := st.TopIssues(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "예산안 처리 공방", issues[0].Name)
	assert.Equal(t, []string{"예산안", "국회"}, issues[0].Keywords)
	assert.Equal(t, 12, issues[0].TotalCount)
	assert.True(t, issues[1].CreatedAt.Equal(created))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetIssueNotFound(t *testing.T) {
	mock, st := newMock(t)
	mock.ExpectQuery("FROM issues WHERE id = \\$1").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(issueColumns))

	_, err := st.GetIssue(context.Background(), 42)
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxCommits(t *testing.T) {
	mock, st := newMock(t)
	created := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO topics").
		WithArgs("정치").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))
	mock.ExpectCommit()

	var topic store.Topic
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		topic, err = tx.EnsureTopic(context.Background(), "정치")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), topic.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	mock, st := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO publishers").
		WithArgs("한겨레", "028").
		WillReturnRows(pgxmock.NewRows([]string{"id", "code"}).AddRow(int64(3), "028"))
	mock.ExpectRollback()

	err := st.InTx(context.Background(), func(tx store.Tx) error {
		if _, err := tx.EnsurePublisher(context.Background(), "한겨레", "028"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsurePublisherFallsBackWhenCodeTaken(t *testing.T) {
	mock, st := newMock(t)
	columns := []string{"id", "code"}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO publishers").
		WithArgs("한겨레21", "028").
		WillReturnRows(pgxmock.NewRows(columns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code FROM publishers WHERE name = $1")).
		WithArgs("한겨레21").
		WillReturnRows(pgxmock.NewRows(columns))
	mock.ExpectQuery("INSERT INTO publishers").
		WithArgs("한겨레21", "한겨레21").
		WillReturnRows(pgxmock.NewRows(columns).AddRow(int64(4), "한겨레21"))
	mock.ExpectCommit()

	var got store.Publisher
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		got, err = tx.EnsurePublisher(context.Background(), "한겨레21", "028")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.ID)
	assert.Equal(t, "한겨레21", got.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxBeginFailure(t *testing.T) {
	mock, st := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := st.InTx(context.Background(), func(tx store.Tx) error { return nil })
	assert.ErrorIs(t, err, internalerr.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertArticleSkipsExistingURL(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO articles").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	err := st.InTx(context.Background(), func(tx store.Tx) error {
		id, inserted, err := tx.InsertArticle(context.Background(), store.Article{
			TopicID: 1, PublisherID: 1, Title: "t", URL: "https://n.news/1", PublishedAt: time.Now(),
		})
		assert.Zero(t, id)
		assert.False(t, inserted)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertArticleWritesBody(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO articles").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec("INSERT INTO article_bodies").
		WithArgs(int64(11), "본문", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := st.InTx(context.Background(), func(tx store.Tx) error {
		id, inserted, err := tx.InsertArticle(context.Background(), store.Article{
			TopicID: 1, PublisherID: 1, Title: "t", URL: "https://n.news/2", PublishedAt: time.Now(), Body: "본문",
		})
		assert.Equal(t, int64(11), id)
		assert.True(t, inserted)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddKeywordRelationCanonicalizes(t *testing.T) {
	mock, st := newMock(t)
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO keyword_relations").
		WithArgs(day, int64(5), "국회", "탄핵", int64(2)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := st.InTx(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		if err := tx.AddKeywordRelation(ctx, store.KeywordRelation{Date: day.Add(15 * time.Hour), IssueID: 5, KeywordA: "탄핵", KeywordB: "국회", Frequency: 2}); err != nil {
			return err
		}
		// self pair, no statement expected
		return tx.AddKeywordRelation(ctx, store.KeywordRelation{Date: day, IssueID: 5, KeywordA: "국회", KeywordB: "국회", Frequency: 1})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetIssueTotalCountMissing(t *testing.T) {
	mock, st := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE issues SET total_count").
		WithArgs(3, int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.SetIssueTotalCount(context.Background(), 99, 3)
	})
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationsByIssuesEmpty(t *testing.T) {
	mock, st := newMock(t)
	rels, err := st.RelationsByIssues(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rels)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMentionSeries(t *testing.T) {
	mock, st := newMock(t)
	d1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT date, SUM\\(frequency\\) FROM keyword_relations").
		WithArgs("국회", "국회").
		WillReturnRows(pgxmock.NewRows([]string{"date", "sum"}).
			AddRow(d1, int64(5)).
			AddRow(d2, int64(4)))

	series, err := st.MentionSeries(context.Background(), "국회")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, int64(5), series[0].Frequency)
	assert.True(t, series[1].Date.Equal(d2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCounts(t *testing.T) {
	mock, st := newMock(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows([]string{"topics", "issues", "publishers", "articles", "relations"}).
			AddRow(1, 2, 3, 4, 5))

	c, err := st.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Topics: 1, Issues: 2, Publishers: 3, Articles: 4, Relations: 5}, c)
	require.NoError(t, mock.ExpectationsWereMet())
}
