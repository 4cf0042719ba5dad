package repositories_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mediatheque/internal/database"
	"mediatheque/internal/models"
	"mediatheque/internal/repositories"
	"mediatheque/internal/services"
)

// setupTestDB connects to TEST_DATABASE_URL and empties the tables. Tests skip when the
// variable is unset or the server cannot be reached.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := database.Open(context.Background(), dsn, database.PoolConfig{
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		ConnectWait:  2 * time.Second,
	})
	if err != nil {
		t.Skipf("PostgreSQL not reachable: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, database.Migrate(db))
	require.NoError(t, db.Exec("TRUNCATE subscribers, documents, loans").Error)
	return db
}

func newDocument(t *testing.T, repo repositories.DocumentRepository, title, author, docType string, at time.Time) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:        uuid.New(),
		Title:     title,
		Author:    author,
		Type:      docType,
		Available: true,
		CreatedAt: models.NewTimestamp(at),
	}
	require.NoError(t, repo.Create(context.Background(), nil, doc))
	return doc
}

func TestDocumentRepository_Postgres(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewDocumentRepository(db)
	ctx := context.Background()
	now := time.Now()

	dune := newDocument(t, repo, "Dune", "Frank Herbert", "book", now)
	newDocument(t, repo, "100% Alien", "Ridley Scott", "dvd", now.Add(time.Second))
	newDocument(t, repo, "Solaris", "Stanislaw Lem", "book", now.Add(2*time.Second))

	got, err := repo.GetByID(ctx, nil, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.WithinDuration(t, now, got.CreatedAt.Time, time.Millisecond)

	_, err = repo.GetByID(ctx, nil, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	found, err := repo.Search(ctx, nil, "HERB")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, dune.ID, found[0].ID)

	found, err = repo.Search(ctx, nil, "100%")
	require.NoError(t, err)
	assert.Len(t, found, 1, "LIKE wildcards in the search text are literal")

	n, err := repo.UpdateAvailability(ctx, nil, dune.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	loaned, err := repo.ListByAvailability(ctx, nil, false)
	require.NoError(t, err)
	require.Len(t, loaned, 1)

	byType, err := repo.CountByType(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"book": 2, "dvd": 1}, byType)

	types, err := repo.DistinctTypes(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"book", "dvd"}, types)

	title := "Dune Messiah"
	n, err = repo.Update(ctx, nil, dune.ID, models.DocumentPatch{Title: &title})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	got, err = repo.GetByID(ctx, nil, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", got.Title)
	assert.Equal(t, "Frank Herbert", got.Author)

	n, err = repo.Update(ctx, nil, uuid.New(), models.DocumentPatch{Title: &title})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.Delete(ctx, nil, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoanRepository_Postgres(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewLoanRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	sub := uuid.New()
	loan := func(at time.Time, status models.LoanStatus) models.Loan {
		l := models.Loan{
			ID:           uuid.New(),
			SubscriberID: sub,
			DocumentID:   uuid.New(),
			LoanedAt:     models.NewTimestamp(at),
			DueAt:        models.NewTimestamp(at.Add(services.DefaultLoanPeriod)),
			Status:       status,
		}
		require.NoError(t, repo.Create(ctx, nil, &l))
		return l
	}
	overdue := loan(now.Add(-20*24*time.Hour), models.LoanStatusActive)
	returned := loan(now.Add(-19*24*time.Hour), models.LoanStatusReturned)
	current := loan(now.Add(-time.Hour), models.LoanStatusActive)

	list, err := repo.ListOverdue(ctx, nil, now)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, overdue.ID, list[0].ID)

	n, err := repo.CountActive(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	refs, err := repo.RefsBySubscribers(ctx, nil, []uuid.UUID{sub})
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, []uuid.UUID{overdue.ID, returned.ID, current.ID}, []uuid.UUID{refs[0].ID, refs[1].ID, refs[2].ID})

	n, err = repo.MarkReturned(ctx, nil, current.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	mine, err := repo.ListBySubscriber(ctx, nil, sub)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, models.LoanStatusReturned, mine[2].Status)
	require.NotNil(t, mine[2].ReturnedAt)
	assert.Nil(t, mine[0].ReturnedAt)
}

func TestTransactor_RollsBack(t *testing.T) {
	db := setupTestDB(t)
	documents := repositories.NewDocumentRepository(db)
	tx := repositories.NewTransactor(db)
	ctx := context.Background()
	boom := errors.New("boom")

	err := tx.Transaction(ctx, func(tx *gorm.DB) error {
		newDocument(t, documents, "kept", "a", "book", time.Now())
		doc := &models.Document{ID: uuid.New(), Title: "rolled back", Author: "a", Type: "book", CreatedAt: models.NewTimestamp(time.Now())}
		if err := documents.Create(ctx, tx, doc); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	docs, err := documents.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "kept", docs[0].Title)
}

func TestCreateLoan_ConcurrentPostgres(t *testing.T) {
	db := setupTestDB(t)
	subscriberRepo := repositories.NewSubscriberRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	ledger := services.NewLoanLedger(repositories.NewTransactor(db), subscriberRepo, documentRepo, loanRepo)

	doc := newDocument(t, documentRepo, "Dune", "Frank Herbert", "book", time.Now())

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := ledger.CreateLoan(context.Background(), uuid.New(), doc.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, services.ErrNotLoanable):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)

	active, err := loanRepo.CountActive(context.Background(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)
}
