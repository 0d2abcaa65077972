package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pressroom-service/internal/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const regionsBody = `{
	"regions": [
		{"name": "Lombardia", "provinces": [{"code": "MI", "name": "Milano"}, {"code": "BG", "name": "Bergamo"}]},
		{"name": "Lazio", "provinces": [{"code": "RM", "name": "Roma"}]}
	]
}`

func newGeoService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewService(upstream.NewClient(srv.URL, 5*time.Second, zap.NewNop()), zap.NewNop())
}

func TestRegionsLoadsOnce(t *testing.T) {
	var hits int32
	svc := newGeoService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/static/geo/regions.json", r.URL.Path)
		w.Write([]byte(regionsBody))
	})

	ctx := context.Background()
	regions := svc.Regions(ctx)
	require.Len(t, regions, 2)
	assert.Equal(t, "Lombardia", regions[0].Name)

	svc.Regions(ctx)
	svc.ProvincesOf(ctx, "Lazio")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "dataset is fetched once per process")
}

func TestConcurrentFirstReadsShareOneFetch(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	svc := newGeoService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Write([]byte(regionsBody))
	})

	const readers = 10
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			svc.Regions(context.Background())
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFailedFetchDegradesToEmptyDataset(t *testing.T) {
	var hits int32
	svc := newGeoService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx := context.Background()
	regions := svc.Regions(ctx)
	assert.Empty(t, regions)

	// No refetch storm after the failure; the empty dataset is served.
	svc.Regions(ctx)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestResetRefetches(t *testing.T) {
	var hits int32
	svc := newGeoService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(regionsBody))
	})

	ctx := context.Background()
	svc.Regions(ctx)
	svc.Reset()
	svc.Regions(ctx)

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestProvincesOf(t *testing.T) {
	svc := newGeoService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(regionsBody))
	})

	ctx := context.Background()
	provinces := svc.ProvincesOf(ctx, "lombardia")
	require.Len(t, provinces, 2)
	assert.Equal(t, "MI", provinces[0].Code)

	assert.Empty(t, svc.ProvincesOf(ctx, "atlantide"))
}

func TestFindProvince(t *testing.T) {
	svc := newGeoService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(regionsBody))
	})

	ctx := context.Background()
	p, ok := svc.FindProvince(ctx, "rm")
	require.True(t, ok)
	assert.Equal(t, "Roma", p.Name)

	_, ok = svc.FindProvince(ctx, "XX")
	assert.False(t, ok)
}
