package crawl_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readnext/internal/domain/entity"
	"readnext/internal/infra/adapter/persistence/jsonfile"
	"readnext/internal/infra/perceptual"
	"readnext/internal/infra/registry"
	"readnext/internal/infra/scraper"
	"readnext/internal/usecase/crawl"
	"readnext/internal/usecase/screenshot"
)

const blogFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>A blog</title>
<link>%[1]s/</link>
<item>
  <title>Fresh post</title>
  <link>%[1]s/posts/fresh</link>
  <guid>%[1]s/posts/fresh</guid>
  <pubDate>Sat, 01 Feb 2025 09:00:00 GMT</pubDate>
  <description>&lt;p&gt;Something &lt;b&gt;new&lt;/b&gt;.&lt;/p&gt;</description>
</item>
<item>
  <title>Old post</title>
  <link>%[1]s/posts/old</link>
  <guid>%[1]s/posts/old</guid>
  <pubDate>Sun, 01 Dec 2024 09:00:00 GMT</pubDate>
</item>
</channel></rss>`

// fakePage renders a blank page with a single dark block.
type fakePage struct{ png []byte }

func newFakePage(t *testing.T) *fakePage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 320; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if y > 40 && y < 90 && x > 30 && x < 200 {
				c = color.RGBA{R: 20, G: 20, B: 20, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &fakePage{png: buf.Bytes()}
}

func (p *fakePage) Render(ctx context.Context, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.png, nil
}

func newBlogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><head><title>A</title>
<link rel="alternate" type="application/rss+xml" href="/feed.xml"></head><body>hi</body></html>`)
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, blogFeed, server.URL)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newStaticServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><head><title>B Studio</title></head><body><h1>Portfolio</h1></body></html>`)
	}))
	t.Cleanup(server.Close)
	return server
}

// newPipeline wires the real adapters the way the CLI does, one set per run.
func newPipeline(t *testing.T, dataDir, registryPath string, page screenshot.Renderer) *crawl.Service {
	t.Helper()
	client := scraper.NewHTTPClient(5*time.Second, nil)
	shots := screenshot.NewService(
		page,
		perceptual.NewPHashSigner(),
		jsonfile.NewScreenshotRepo(dataDir),
		nil,
		screenshot.Options{Tolerance: screenshot.DefaultTolerance, PruneReplaced: true},
	)
	return crawl.NewService(
		registry.NewFileRegistry(registryPath),
		jsonfile.NewStateRepo(filepath.Join(dataDir, "crawl_state.json")),
		jsonfile.NewReportRepo(filepath.Join(dataDir, "report.json")),
		scraper.NewRSSFetcher(client),
		scraper.NewDiscoverer(client),
		shots,
		crawl.Config{Workers: 2, SkipDomains: []string{"nitter.net"}},
	)
}

func TestScenario_TwoRuns(t *testing.T) {
	a := newBlogServer(t)
	b := newStaticServer(t)

	dataDir := t.TempDir()
	registryPath := filepath.Join(dataDir, "links.txt")
	require.NoError(t, os.WriteFile(registryPath, []byte(a.URL+"/\n"+b.URL+"/\n"), 0o644))

	idA := entity.DeriveSourceID(a.URL + "/")
	idB := entity.DeriveSourceID(b.URL + "/")
	page := newFakePage(t)
	opts := crawl.Options{Cutoff: cutoff, ScreenshotsEnabled: true}

	// First run: a has one entry after the cutoff, b has no feed and no baseline.
	first, err := newPipeline(t, dataDir, registryPath, page).Run(context.Background(), opts)
	require.NoError(t, err)

	repA := sourceReport(t, first, idA)
	assert.Equal(t, entity.StatusNewItems, repA.Status)
	require.Len(t, repA.NewEntries, 1)
	assert.Equal(t, "Fresh post", repA.NewEntries[0].Title)
	assert.Equal(t, "Something new.", repA.NewEntries[0].Summary)
	assert.Equal(t, entity.DiscoveryLinkTag, repA.DiscoveryMethod)

	repB := sourceReport(t, first, idB)
	assert.Equal(t, entity.StatusPossiblyChanged, repB.Status)
	assert.Equal(t, entity.PathScreenshot, repB.Path)
	require.NotEmpty(t, repB.ScreenshotPath)
	assert.FileExists(t, filepath.Join(dataDir, filepath.FromSlash(repB.ScreenshotPath)))

	state, err := jsonfile.NewStateRepo(filepath.Join(dataDir, "crawl_state.json")).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, state.Sources, 2)
	assert.Contains(t, state.Sources, idA)
	assert.Contains(t, state.Sources, idB)
	assert.FileExists(t, filepath.Join(dataDir, "report.json"))

	// Second run with no remote changes.
	second, err := newPipeline(t, dataDir, registryPath, page).Run(context.Background(), opts)
	require.NoError(t, err)

	repA = sourceReport(t, second, idA)
	assert.Equal(t, entity.StatusUnchanged, repA.Status)
	assert.Empty(t, repA.NewEntries)
	assert.Equal(t, entity.DiscoveryCached, repA.DiscoveryMethod)

	repB = sourceReport(t, second, idB)
	assert.Equal(t, entity.StatusUnchanged, repB.Status)
	assert.Zero(t, second.TotalNewEntries)
}

func TestScenario_FeedBreaksOnLaterRun(t *testing.T) {
	var broken atomic.Bool
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><head><link rel="alternate" type="application/rss+xml" href="/feed.xml"></head></html>`)
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() {
			fmt.Fprint(w, `<rss><channel><item><title>truncated`)
			return
		}
		fmt.Fprintf(w, blogFeed, server.URL)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	dataDir := t.TempDir()
	registryPath := filepath.Join(dataDir, "links.txt")
	require.NoError(t, os.WriteFile(registryPath, []byte(server.URL+"/\n"), 0o644))
	id := entity.DeriveSourceID(server.URL + "/")
	opts := crawl.Options{Cutoff: cutoff, ScreenshotsEnabled: true}

	_, err := newPipeline(t, dataDir, registryPath, newFakePage(t)).Run(context.Background(), opts)
	require.NoError(t, err)

	broken.Store(true)
	report, err := newPipeline(t, dataDir, registryPath, newFakePage(t)).Run(context.Background(), opts)
	require.NoError(t, err, "a broken feed never fails the run")

	rep := sourceReport(t, report, id)
	assert.Equal(t, entity.PathScreenshot, rep.Path)
	assert.True(t, rep.Degraded)
	assert.Equal(t, entity.StatusPossiblyChanged, rep.Status)

	state, err := jsonfile.NewStateRepo(filepath.Join(dataDir, "crawl_state.json")).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, state.Sources[id].FeedFailures)
	assert.NotEmpty(t, state.Sources[id].SeenEntryIDs, "feed tracking survives the fallback")
}
