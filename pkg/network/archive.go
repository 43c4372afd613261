package network

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mholt/archiver/v3"
)

// LoadNetworkFile opens and parses a network description file,
// transparently decompressing it first if it carries a ".gz" suffix. A
// ".gz" input is decompressed to a temp file (the path without ".gz")
// and the decoder is handed a plain reader over it; the decoder itself
// knows nothing about compression.
func LoadNetworkFile(path string) (*ParsedNetwork, error) {
	r, err := openNetworkReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	dec := NewDecoder(r)
	return dec.Run(), nil
}

func openNetworkReader(path string) (io.ReadCloser, error) {
	if !strings.HasSuffix(path, ".gz") {
		return os.Open(path)
	}

	tmpPath := strings.TrimSuffix(path, ".gz")
	if err := archiver.DecompressFile(path, tmpPath); err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, err
	}
	return &removeOnCloseFile{File: f, tmpPath: tmpPath}, nil
}

// removeOnCloseFile deletes the decompressed temp file once the caller is
// done reading it, so LoadNetworkFile leaves no scratch files behind.
type removeOnCloseFile struct {
	*os.File
	tmpPath string
}

func (r *removeOnCloseFile) Close() error {
	err := r.File.Close()
	os.Remove(r.tmpPath)
	return err
}

// SaveCompressedLog writes lines (one per entry) to path and gzips the
// result in place (compress, then remove the plain-text source file),
// returning the path of the ".gz" file.
func SaveCompressedLog(path string, lines []string) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(f, l); err != nil {
			f.Close()
			return "", err
		}
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	gz := path + ".gz"
	if err := archiver.CompressFile(path, gz); err != nil {
		return "", fmt.Errorf("compress %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove source %s: %w", path, err)
	}
	return gz, nil
}
