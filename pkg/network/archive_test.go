package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaveCompressedLogRoundTrips(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")

	lines := []string{"line one: SEUW=1.02", "line two: chi-square pass"}
	gzPath, err := SaveCompressedLog(path, lines)
	assert.NoError(err)
	assert.Equal(path+".gz", gzPath)

	_, err = os.Stat(path)
	assert.True(os.IsNotExist(err), "plain-text source should be removed after compression")

	_, err = os.Stat(gzPath)
	assert.NoError(err)
}

func TestLoadNetworkFileReadsPlainText(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "net.dat")
	assert.NoError(os.WriteFile(path, []byte(triangleNetwork), 0644))

	pn, err := LoadNetworkFile(path)
	assert.NoError(err)
	assert.Equal(3, pn.Stations.Len())
}

func TestLoadNetworkFileDecompressesGzInput(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "net.dat")
	assert.NoError(os.WriteFile(path, []byte(triangleNetwork), 0644))

	gzPath, err := SaveCompressedLog(path, splitLines(triangleNetwork))
	assert.NoError(err)

	pn, err := LoadNetworkFile(gzPath)
	assert.NoError(err)
	assert.Equal(3, pn.Stations.Len())

	tmpDecompressed := path // the temp file SaveCompressedLog/LoadNetworkFile reuse
	_, statErr := os.Stat(tmpDecompressed)
	assert.True(os.IsNotExist(statErr), "decompressed temp file should be removed after Close")
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
