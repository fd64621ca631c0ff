package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrOCRUnavailable means the tesseract binary could not be found.
var ErrOCRUnavailable = errors.New("tesseract is not installed or not on PATH")

// NoTextMessage is returned (as text, not an error) when OCR finds nothing.
const NoTextMessage = "OCR failed to extract clear text. The image might be blurry or handwritten."

const ocrOutputLimit = 1 << 20

// TesseractExtractor 通过 tesseract 命令行提取图片文字
// TesseractExtractor extracts image text by running the tesseract CLI
type TesseractExtractor struct {
	Binary    string
	Languages string
	Timeout   time.Duration
}

func NewTesseractExtractor(binary, languages string, timeoutMS int) *TesseractExtractor {
	if binary == "" {
		binary = "tesseract"
	}
	if languages == "" {
		languages = "ara+eng"
	}
	if timeoutMS <= 0 {
		timeoutMS = 60000
	}
	return &TesseractExtractor{
		Binary:    binary,
		Languages: languages,
		Timeout:   time.Duration(timeoutMS) * time.Millisecond,
	}
}

func (e *TesseractExtractor) Extract(ctx context.Context, path string) (string, error) {
	bin, err := exec.LookPath(e.Binary)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, path, "stdout", "-l", e.Languages)
	stdout := newCappedBuffer(ocrOutputLimit)
	stderr := newCappedBuffer(ocrOutputLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("tesseract timed out after %s", e.Timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("tesseract: %s", msg)
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return NoTextMessage, nil
	}
	return text, nil
}

type cappedBuffer struct {
	max       int
	buf       bytes.Buffer
	truncated bool
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.truncated || len(p) == 0 {
		return len(p), nil
	}
	remain := b.max - b.buf.Len()
	if len(p) > remain {
		_, _ = b.buf.Write(p[:remain])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
