package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// TailOptions selects what Tail returns.
type TailOptions struct {
	// Offset < 0 means "the last Limit lines".
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path. A missing file yields no lines and offset 0.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var result TailResult
	if opts.Offset < 0 {
		result, err = lastLines(path, opts.Limit)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// rotated or truncated
			offset = info.Size()
		}
		result, err = readFrom(path, offset)
	}
	if err != nil {
		return result, err
	}
	if opts.Follow && opts.Wait > 0 && len(result.Lines) == 0 {
		return follow(ctx, path, result.Offset, opts.Wait)
	}
	return result, nil
}

func lastLines(path string, limit int) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var (
		ring  []string
		next  int
		total int
	)
	if limit > 0 {
		ring = make([]string, limit)
	}
	scanner := newScanner(file)
	for scanner.Scan() {
		if limit <= 0 {
			continue
		}
		ring[next] = scanner.Text()
		next = (next + 1) % limit
		total++
	}
	if err := scanner.Err(); err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}

	count := min(total, limit)
	lines := make([]string, 0, count)
	start := 0
	if total > limit {
		start = next
	}
	for i := range count {
		lines = append(lines, ring[(start+i)%limit])
	}
	return TailResult{Lines: lines, Offset: end}, nil
}

func readFrom(path string, offset int64) (TailResult, error) {
	result := TailResult{Offset: offset}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return result, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return result, fmt.Errorf("seek log file: %w", err)
	}
	scanner := newScanner(file)
	for scanner.Scan() {
		result.Lines = append(result.Lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return result, fmt.Errorf("determine log offset: %w", err)
	}
	result.Offset = end
	return result, nil
}

func follow(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-deadline.C:
			return result, nil
		case <-ticker.C:
		}
		next, err := readFrom(path, result.Offset)
		if err != nil {
			return result, err
		}
		result.Offset = next.Offset
		if len(next.Lines) > 0 {
			result.Lines = next.Lines
			return result, nil
		}
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}
