// Package archive orders downloaded segment files, concatenates them, and
// hands the result to the external transcoder.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/famomatic/kickvod/internal/playlist"
)

// ErrNoSegments reports an empty segment directory; there is nothing to
// assemble.
var ErrNoSegments = errors.New("no segments to assemble")

// Logger is the subset of logging the assembler needs.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Assembler turns a segment directory or an already-concatenated file into
// the final audio artifact.
type Assembler struct {
	transcoder Transcoder
	logger     Logger
}

// New returns an Assembler. logger may be nil.
func New(transcoder Transcoder, logger Logger) *Assembler {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Assembler{transcoder: transcoder, logger: logger}
}

// AssembleDir concatenates dir's segment files in ordinal order into
// concatPath and transcodes the result to outputPath. On transcode failure
// the concatenated intermediate is retained for manual recovery.
func (a *Assembler) AssembleDir(ctx context.Context, dir, concatPath, outputPath string) (string, error) {
	names, err := sortedSegmentNames(dir)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNoSegments
	}

	out, err := os.Create(concatPath)
	if err != nil {
		return "", fmt.Errorf("concat create: %w", err)
	}
	for _, name := range names {
		if err := appendFile(out, filepath.Join(dir, name)); err != nil {
			// Unreadable segments lose a few seconds of audio, not the whole
			// archive.
			a.logger.Warnf("skipping unreadable segment %s: %v", name, err)
		}
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("concat close: %w", err)
	}
	a.logger.Debugf("concatenated %d segments into %s", len(names), concatPath)

	return a.Transcode(ctx, concatPath, outputPath)
}

// Transcode converts an existing concatenated file into the final audio
// file. The input file is kept on disk regardless of outcome.
func (a *Assembler) Transcode(ctx context.Context, concatPath, outputPath string) (string, error) {
	if err := a.transcoder.ExtractAudio(ctx, concatPath, outputPath); err != nil {
		return "", fmt.Errorf("transcode %s: %w", concatPath, err)
	}
	return outputPath, nil
}

// sortedSegmentNames lists dir's ".ts" files ordered by the numeric ordinal
// embedded in each name. Files without a parseable number sort after all
// numbered files, by filename.
func sortedSegmentNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("segment dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".ts") {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ni, oki := playlist.Ordinal(names[i])
		nj, okj := playlist.Ordinal(names[j])
		switch {
		case oki && okj && ni != nj:
			return ni < nj
		case oki != okj:
			return oki
		default:
			return names[i] < names[j]
		}
	})
	return names, nil
}

func appendFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}
