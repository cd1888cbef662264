package source

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ironsheep/footprint-mcp/internal/footprint"
	"github.com/ironsheep/footprint-mcp/internal/tile"
)

var testTile = tile.TileIndex{Zoom: 18, X: 232847, Y: 103226}

// encodeTestTile returns a PNG of a 256×256 tile filled with c.
func encodeTestTile(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test tile: %v", err)
	}
	return buf.Bytes()
}

type fetchRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *fetchRecorder) ObserveFetch(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *fetchRecorder) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.outcomes {
		if o == outcome {
			n++
		}
	}
	return n
}

func TestHTTPSource_Tile(t *testing.T) {
	body := encodeTestTile(t, color.RGBA{0xFF, 0xE6, 0xBE, 0xFF})
	var gotPath, gotUA string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	rec := &fetchRecorder{}
	s := NewHTTPSource(Config{Template: srv.URL + "/{z}/{x}/{y}.png", UserAgent: "test-agent"}, nil, nil, rec)

	img, err := s.Tile(context.Background(), testTile)
	if err != nil {
		t.Fatalf("Tile failed: %v", err)
	}
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 256 {
		t.Errorf("unexpected size %v", img.Bounds())
	}
	r, g, b, _ := img.At(10, 10).RGBA()
	if r>>8 != 0xFF || g>>8 != 0xE6 || b>>8 != 0xBE {
		t.Errorf("unexpected pixel %d,%d,%d", r>>8, g>>8, b>>8)
	}
	if gotPath != "/18/232847/103226.png" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotUA != "test-agent" {
		t.Errorf("user agent: got %q", gotUA)
	}
	if rec.count(FetchOK) != 1 {
		t.Errorf("expected one ok fetch, got %v", rec.outcomes)
	}
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
		outcome string
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "missing", http.StatusNotFound)
			},
			wantErr: footprint.ErrFetch,
			outcome: FetchHTTPError,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: footprint.ErrFetch,
			outcome: FetchHTTPError,
		},
		{
			name: "garbage bytes",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("definitely not a png"))
			},
			wantErr: footprint.ErrDecode,
			outcome: FetchBadImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			rec := &fetchRecorder{}
			s := NewHTTPSource(Config{Template: srv.URL + "/{z}/{x}/{y}.png"}, nil, nil, rec)

			_, err := s.Tile(context.Background(), testTile)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if rec.count(tt.outcome) != 1 {
				t.Errorf("expected outcome %s, got %v", tt.outcome, rec.outcomes)
			}
		})
	}
}

func TestHTTPSource_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewHTTPSource(Config{Template: url + "/{z}/{x}/{y}.png", Timeout: time.Second}, nil, nil, nil)
	if _, err := s.Tile(context.Background(), testTile); !errors.Is(err, footprint.ErrFetch) {
		t.Errorf("expected ErrFetch, got %v", err)
	}
}

func TestHTTPSource_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	s := NewHTTPSource(Config{Template: srv.URL + "/{z}/{x}/{y}.png"}, nil, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := s.Tile(ctx, testTile); !errors.Is(err, footprint.ErrFetch) {
		t.Errorf("expected ErrFetch, got %v", err)
	}
}

func TestHTTPSource_CacheHit(t *testing.T) {
	body := encodeTestTile(t, color.White)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cache := NewMemoryCache(0)
	rec := &fetchRecorder{}
	s := NewHTTPSource(Config{Template: srv.URL + "/{z}/{x}/{y}.png", CacheTTL: time.Hour}, cache, nil, rec)

	for i := 0; i < 3; i++ {
		if _, err := s.Tile(context.Background(), testTile); err != nil {
			t.Fatalf("Tile %d failed: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hits: got %d, want 1", n)
	}
	if rec.count(FetchCached) != 2 {
		t.Errorf("cached outcomes: got %v", rec.outcomes)
	}
	if cache.Len() != 1 {
		t.Errorf("cache entries: got %d", cache.Len())
	}
}

func TestHTTPSource_ConcurrentRequestsShareDownload(t *testing.T) {
	body := encodeTestTile(t, color.White)
	var hits int32
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	s := NewHTTPSource(Config{Template: srv.URL + "/{z}/{x}/{y}.png"}, NewMemoryCache(0), nil, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Tile(context.Background(), testTile)
			errs <- err
		}()
	}

	// Let the first request reach the server before releasing it.
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&hits) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Tile failed: %v", err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hits: got %d, want 1", n)
	}
}

// failingCache always errors.
type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}

func TestHTTPSource_CacheFailuresIgnored(t *testing.T) {
	body := encodeTestTile(t, color.White)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	s := NewHTTPSource(Config{Template: srv.URL + "/{z}/{x}/{y}.png"}, failingCache{}, nil, nil)
	if _, err := s.Tile(context.Background(), testTile); err != nil {
		t.Fatalf("cache errors should not fail the fetch: %v", err)
	}
}

func TestHTTPSource_AsDetectorSource(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, color.RGBA{0xF2, 0xEF, 0xE9, 0xFF})
		}
	}
	for y := 100; y < 110; y++ {
		for x := 100; x < 110; x++ {
			img.Set(x, y, color.RGBA{0xFF, 0xE6, 0xBE, 0xFF})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/18/232847/103226.png") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	s := NewHTTPSource(Config{Template: srv.URL + "/{z}/{x}/{y}.png"}, nil, nil, nil)
	d := footprint.NewDetector(s, footprint.DefaultOptions(), nil, nil)

	p := tile.TileToGeoF(testTile, 104.5, 104.5)
	res, err := d.Detect(context.Background(), p)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(res.Polygons) != 1 || res.Polygons[0].SourcePixelCount != 100 {
		t.Errorf("unexpected polygons: %+v", res.Polygons)
	}
}
