package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"
	"time"

	"glimpse/internal/services"
	"glimpse/internal/textutil"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps tesseract CLI interactions.
type Client struct {
	binary    string
	languages []string
	timeout   time.Duration
	exec      Executor
}

// New constructs a tesseract client.
func New(binary string, languages []string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("tesseract binary required")
	}
	client := &Client{
		binary:    binary,
		languages: append([]string(nil), languages...),
		timeout:   time.Duration(timeoutSeconds) * time.Second,
		exec:      commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ExtractText runs OCR over img and returns the recognized text with blank
// lines removed. An image with no text yields "" and no error.
func (c *Client) ExtractText(ctx context.Context, img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", services.Wrap(services.ErrValidation, "ocr", "extract", "empty image", nil)
	}
	var buf bytes.Buffer
	if err := (&png.Encoder{CompressionLevel: png.BestSpeed}).Encode(&buf, img); err != nil {
		return "", services.Wrap(services.ErrValidation, "ocr", "encode", "", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.exec.Run(runCtx, c.binary, c.args(), buf.Bytes())
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "ocr", c.binary, fmt.Sprintf("no result within %s", c.timeout), err)
		}
		return "", services.Wrap(services.ErrExternalTool, "ocr", c.binary, "", err)
	}
	return textutil.NormalizeLines(string(out)), nil
}

func (c *Client) args() []string {
	args := []string{"stdin", "stdout"}
	if len(c.languages) > 0 {
		args = append(args, "-l", strings.Join(c.languages, "+"))
	}
	return args
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
