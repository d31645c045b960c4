package rulepack

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Source fetches the raw bytes of a rule pack. Implementations are chosen
// by URL scheme; everything downstream of Fetch is source-agnostic.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Describe() string
}

// NewSource resolves a rule-pack URL to a source.
//
//	file:///etc/keel/rulepack.yaml  (or a bare path)
//	s3://compass-config/rulepack.yaml
//	gs://compass-config/rulepack.yaml
func NewSource(ctx context.Context, rawURL string) (Source, error) {
	if !strings.Contains(rawURL, "://") {
		return &FileSource{Path: rawURL}, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("rulepack: bad source URL %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "file":
		return &FileSource{Path: u.Path}, nil
	case "s3":
		return NewS3Source(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	case "gs":
		return NewGCSSource(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	default:
		return nil, fmt.Errorf("rulepack: unsupported source scheme %q", u.Scheme)
	}
}

// FileSource reads a rule pack from the local filesystem.
type FileSource struct {
	Path string
}

func (f *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("rulepack: read %s: %w", f.Path, err)
	}
	return data, nil
}

func (f *FileSource) Describe() string { return "file:" + f.Path }
