package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibledownloader/internal/catalog"
	"bibledownloader/internal/domain"
	"bibledownloader/internal/fetch"
	"bibledownloader/internal/pipeline"
)

// pageFetcher answers every bible.com chapter URL with a two-verse page.
type pageFetcher struct{}

func (pageFetcher) Fetch(_ context.Context, url string) (*fetch.Response, error) {
	ref := url[strings.LastIndex(url, "/")+1:]
	code, chapter, ok := strings.Cut(ref, ".")
	if !ok {
		return nil, fmt.Errorf("unexpected url %s", url)
	}
	body := fmt.Sprintf(`<!DOCTYPE html><html><head><title>%[1]s %[2]s</title></head><body>`+
		`<span data-usfm="%[1]s.%[2]s.1"><span class="label">1</span><span class="content">Verse one of %[1]s %[2]s</span></span>`+
		`<span data-usfm="%[1]s.%[2]s.2"><span class="label">2</span><span class="content">Verse two</span></span>`+
		`</body></html>`, code, chapter)
	return &fetch.Response{StatusCode: 200, Body: []byte(body), Latency: time.Millisecond}, nil
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	a.newFetcher = func(time.Duration) fetch.Fetcher { return pageFetcher{} }
	a.runnerOpts = []pipeline.Option{pipeline.WithSleeper(func(context.Context, time.Duration) error { return nil })}
	a.progress = 10 * time.Millisecond

	var out bytes.Buffer
	root := newRootCmd(a)
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--dir", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestListFiltersByLanguage(t *testing.T) {
	out, err := run(t, t.TempDir(), "list", "--language", "nl")
	require.NoError(t, err)
	assert.Contains(t, out, "HB")
	assert.Contains(t, out, "SV1750")
	assert.NotContains(t, out, "KJV")

	out, err = run(t, t.TempDir(), "list", "--public-domain")
	require.NoError(t, err)
	assert.NotContains(t, out, "NASB")
	assert.Contains(t, out, "1189")
}

func TestDownloadHelpExamplesNameCatalogTranslations(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	cmd := newDownloadCmd(newApp())
	var checked int
	for _, line := range strings.Split(cmd.Long, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "bibledl" || fields[1] != "download" {
			continue
		}
		tr, err := cat.Lookup(fields[2])
		require.NoError(t, err, line)
		if strings.Contains(line, "--agree") {
			assert.False(t, tr.IsPublicDomain, line)
		}
		checked++
	}
	assert.Equal(t, 3, checked)
}

func TestDisclaimer(t *testing.T) {
	out, err := run(t, t.TempDir(), "disclaimer")
	require.NoError(t, err)
	assert.Contains(t, out, "IMPORTANT LEGAL NOTICE")
}

func TestDownloadRequiresAgreement(t *testing.T) {
	_, err := run(t, t.TempDir(), "download", "nasb")
	assert.ErrorIs(t, err, domain.ErrLegalAgreementRequired)

	_, err = run(t, t.TempDir(), "download", "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownTranslation)
}

func TestDownloadScanAndResume(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "download", "kjv", "--mode", "both", "--speed", "aggressive")
	require.NoError(t, err)
	assert.Contains(t, out, "Download completed successfully")

	text, err := os.ReadFile(filepath.Join(dir, "bible", "KJV.bible"))
	require.NoError(t, err)
	assert.Contains(t, string(text), "{01001001} {Verse one of GEN 1}")
	assert.Contains(t, string(text), "{66022002} {Verse two}")
	assert.FileExists(t, filepath.Join(dir, "json", "KJV", "index.json"))
	assert.FileExists(t, filepath.Join(dir, "json", "KJV", "REV.json"))

	out, err = run(t, dir, "scan", "KJV")
	require.NoError(t, err)
	assert.Contains(t, out, "valid:   1189")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw", "KJV", "GEN_001.html"), []byte("oops"), 0o644))
	out, err = run(t, dir, "scan", "KJV")
	require.NoError(t, err)
	assert.Contains(t, out, "valid:   1188")
	assert.Contains(t, out, "invalid: 1")
	assert.NoFileExists(t, filepath.Join(dir, "raw", "KJV", "GEN_001.html"))
}

func TestExportFromExistingPayloads(t *testing.T) {
	dir := t.TempDir()
	page, err := pageFetcher{}.Fetch(context.Background(), "https://www.bible.com/bible/1/GEN.1")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "raw", "KJV"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw", "KJV", "GEN_001.html"), page.Body, 0o644))

	out, err := run(t, dir, "export", "KJV", "--mode", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote json/KJV (1 books)")
	assert.Contains(t, out, "1188 chapters could not be extracted")
	assert.NoFileExists(t, filepath.Join(dir, "bible", "KJV.bible"))

	_, err = run(t, dir, "export", "KJV", "--mode", "download-only")
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}
