package loader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/siherrmann/geoalert/core/pipeline"
	"github.com/siherrmann/geoalert/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedEmbedder(calls *int32) pipeline.EmbedFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		atomic.AddInt32(calls, 1)
		return []float32{float32(len([]rune(text))), 1, 0}, nil
	}
}

func newTestLoader(s *testStore, embed pipeline.EmbedFunc) *Loader {
	l := NewLoader(s.db, s.regions, s.governorates, s.alerts, embed, testEmbeddingDim, discardLogger())
	l.RetryInterval = time.Millisecond
	l.RetryDelay = 10 * time.Millisecond
	return l
}

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestEmbed(t *testing.T) {
	t.Run("Empty text is the zero vector", func(t *testing.T) {
		var calls int32
		l := &Loader{embed: fixedEmbedder(&calls), dimension: testEmbeddingDim, logger: discardLogger(), RetryInterval: time.Millisecond}
		v, err := l.Embed(context.Background(), "   ")
		require.NoError(t, err)
		assert.True(t, model.IsZeroVector(v))
		assert.Len(t, v, testEmbeddingDim)
		assert.Equal(t, int32(0), calls, "Expected no upstream call for empty text")
	})

	t.Run("Transient failures are retried", func(t *testing.T) {
		var calls int32
		embed := func(ctx context.Context, text string) ([]float32, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return nil, errors.New("rate limited")
			}
			return []float32{1, 2, 3}, nil
		}
		l := &Loader{embed: embed, dimension: testEmbeddingDim, logger: discardLogger(), RetryInterval: time.Millisecond}
		v, err := l.Embed(context.Background(), "Tabuk")
		require.NoError(t, err, "Expected third attempt to succeed")
		assert.Equal(t, []float32{1, 2, 3}, v)
		assert.Equal(t, int32(3), calls)
	})

	t.Run("Gives up after three attempts", func(t *testing.T) {
		var calls int32
		embed := func(ctx context.Context, text string) ([]float32, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.New("unavailable")
		}
		l := &Loader{embed: embed, dimension: testEmbeddingDim, logger: discardLogger(), RetryInterval: time.Millisecond}
		_, err := l.Embed(context.Background(), "Tabuk")
		assert.Error(t, err)
		assert.Equal(t, int32(3), calls)
	})

	t.Run("Wrong dimension is not retried", func(t *testing.T) {
		var calls int32
		embed := func(ctx context.Context, text string) ([]float32, error) {
			atomic.AddInt32(&calls, 1)
			return []float32{1}, nil
		}
		l := &Loader{embed: embed, dimension: testEmbeddingDim, logger: discardLogger(), RetryInterval: time.Millisecond}
		_, err := l.Embed(context.Background(), "Tabuk")
		assert.Error(t, err)
		assert.Equal(t, int32(1), calls)
	})
}

func TestDownload(t *testing.T) {
	s := initStore(t)

	t.Run("Valid feed", func(t *testing.T) {
		server := feedServer(t, http.StatusOK, sampleFeed)
		var calls int32
		fc, err := newTestLoader(s, fixedEmbedder(&calls)).Download(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Len(t, fc.Features, 3)
	})

	t.Run("Error status", func(t *testing.T) {
		server := feedServer(t, http.StatusNotFound, "not found")
		var calls int32
		_, err := newTestLoader(s, fixedEmbedder(&calls)).Download(context.Background(), server.URL)
		assert.Error(t, err)
	})

	t.Run("Invalid body", func(t *testing.T) {
		server := feedServer(t, http.StatusOK, "<html>")
		var calls int32
		_, err := newTestLoader(s, fixedEmbedder(&calls)).Download(context.Background(), server.URL)
		assert.Error(t, err)
	})
}

func TestLoadOnce(t *testing.T) {
	s := initStore(t)
	server := feedServer(t, http.StatusOK, sampleFeed)
	ctx := context.Background()

	var calls int32
	l := newTestLoader(s, fixedEmbedder(&calls))

	d, err := l.LoadOnce(ctx, server.URL)
	require.NoError(t, err, "Expected LoadOnce to not return an error")
	assert.Equal(t, int32(5), calls, "Expected one embedding per region, governorate and hazard")

	t.Run("Entities are stored", func(t *testing.T) {
		region, err := s.regions.SelectRegion(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "Tabuk Region", region.NameEn)

		governorate, err := s.governorates.SelectGovernorate(ctx, "10")
		require.NoError(t, err)
		require.NotNil(t, governorate.Latitude)
		assert.InDelta(t, 28.38, *governorate.Latitude, 0.0001)
	})

	t.Run("Alerts are linked", func(t *testing.T) {
		records, err := s.alerts.SelectAlertsByRegion(ctx, "1")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "501", records[0].ID)
		assert.ElementsMatch(t, []string{"Tabuk", "Duba"}, records[0].GovernorateNames.En)
		assert.ElementsMatch(t, []string{"Flash flooding", "Land slides"}, records[0].Hazards.En)
	})

	t.Run("Reload is idempotent and keeps positions", func(t *testing.T) {
		for _, g := range d.Governorates {
			g.Latitude = nil
			g.Longitude = nil
		}
		err := l.Store(ctx, d)
		require.NoError(t, err)

		governorate, err := s.governorates.SelectGovernorate(ctx, "10")
		require.NoError(t, err)
		require.NotNil(t, governorate.Latitude, "Expected missing position to keep the stored one")

		var count int
		require.NoError(t, s.db.Instance.QueryRow(`SELECT COUNT(*) FROM alert_governorates`).Scan(&count))
		assert.Equal(t, 2, count)
	})

	t.Run("Failed store rolls back", func(t *testing.T) {
		broken := &Dataset{
			Regions:           []*model.Region{{ID: "9", NameEn: "Rolled back"}},
			AlertGovernorates: []Link{{AlertID: "missing", OtherID: "10"}},
		}
		err := l.Store(ctx, broken)
		assert.Error(t, err, "Expected link to unknown alert to fail")

		_, err = s.regions.SelectRegion(ctx, "9")
		assert.Error(t, err, "Expected region of the failed transaction to be absent")
	})
}

func TestRun(t *testing.T) {
	s := initStore(t)

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	var calls int32
	l := newTestLoader(s, fixedEmbedder(&calls))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, server.URL, time.Hour)
	}()

	require.Eventually(t, func() bool {
		records, err := s.alerts.SelectAlertsByRegion(context.Background(), "1")
		return err == nil && len(records) == 1
	}, 2*time.Second, 20*time.Millisecond, "Expected the retry to load the feed")

	cancel()
	assert.NoError(t, <-done)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&requests), int32(2), "Expected a retry after the failed download")
}
