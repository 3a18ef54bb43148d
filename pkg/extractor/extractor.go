// Package extractor turns files into plain text for ingestion.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/xhad/redagent/internal/logger"
	"github.com/xhad/redagent/internal/types"
	"github.com/xhad/redagent/pkg/scraper"
)

const pdfTool = "pdftotext"

var ErrPDFToolNotFound = fmt.Errorf("%w: %s not found in PATH (install poppler-utils)", types.ErrExtraction, pdfTool)

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// PDF extracts text with pdftotext, page by page in reading order.
type PDF struct {
	Path     string
	runner   CommandRunner
	lookPath func(string) (string, error)
}

func NewPDF(path string) *PDF {
	return &PDF{Path: path, runner: execRunner{}, lookPath: exec.LookPath}
}

// NewPDFWithRunner is NewPDF with a custom runner. The tool lookup is skipped.
func NewPDFWithRunner(path string, runner CommandRunner) *PDF {
	return &PDF{
		Path:     path,
		runner:   runner,
		lookPath: func(name string) (string, error) { return name, nil },
	}
}

func (p *PDF) ExtractText(ctx context.Context) (string, error) {
	if _, err := os.Stat(p.Path); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtraction, err)
	}
	tool, err := p.lookPath(pdfTool)
	if err != nil {
		return "", ErrPDFToolNotFound
	}

	out, err := p.runner.Run(ctx, tool, "-enc", "UTF-8", p.Path, "-")
	if err != nil {
		logger.Error("error extracting text from PDF %s: %v", p.Path, err)
		return "", fmt.Errorf("%w: %v", types.ErrExtraction, err)
	}
	// pdftotext separates pages with form feeds.
	text := strings.ReplaceAll(string(out), "\f", "")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s contains no extractable text", types.ErrExtraction, p.Path)
	}
	logger.Info("successfully extracted text from PDF %s", filepath.Base(p.Path))
	return text, nil
}

// TextFile reads a UTF-8 text or markdown file.
type TextFile struct {
	Path string
}

func (f TextFile) ExtractText(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtraction, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%w: %s is empty", types.ErrExtraction, f.Path)
	}
	return string(data), nil
}

// ForPath picks a source by URL scheme or file extension.
func ForPath(path string, scraperConfig scraper.ScraperConfig) (types.Source, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		scraperConfig.BaseURL = path
		s, err := scraper.NewWithConfig(scraperConfig)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return NewPDF(path), nil
	case ".txt", ".md", ".text":
		return TextFile{Path: path}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported document type %q", types.ErrExtraction, filepath.Ext(path))
	}
}
