package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/ragops/harvester/internal/crawler"
)

func TestRecordPageInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPageStoreWithPool(mock, "pages")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	page := crawler.IndexedPage{
		CrawlID:     "crawl-1",
		URL:         "https://example.com/docs/intro",
		LocalPath:   "docs/intro",
		BlobURI:     "gs://bucket/crawls/crawl-1/docs/intro.md",
		ContentHash: "abc123",
		Bytes:       512,
		IndexedAt:   now,
	}

	mock.ExpectExec("INSERT INTO pages").
		WithArgs(
			page.CrawlID,
			page.URL,
			page.LocalPath,
			page.BlobURI,
			page.ContentHash,
			page.Bytes,
			page.IndexedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.RecordPage(context.Background(), page))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPageValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPageStoreWithPool(mock, "pages")
	require.NoError(t, err)

	require.Error(t, store.RecordPage(context.Background(), crawler.IndexedPage{URL: "https://example.com"}))
	require.Error(t, store.RecordPage(context.Background(), crawler.IndexedPage{CrawlID: "c-1"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPageStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewPageStoreWithPool(nil, "pages")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPageStoreWithPool(mock, "pages; DROP TABLE pages")
	require.Error(t, err)

	store, err := NewPageStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, "pages", store.table)
}
