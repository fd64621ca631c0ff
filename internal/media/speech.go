package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"companion/internal/provider"
)

// SpeechSynthesizer 合成 mp3 并可选地用播放器播放
// SpeechSynthesizer writes mp3 audio and optionally hands it to a player
type SpeechSynthesizer struct {
	gateway provider.SpeechGateway
	dir     string
	player  []string
}

func NewSpeechSynthesizer(gw provider.SpeechGateway, dir string, player []string) *SpeechSynthesizer {
	return &SpeechSynthesizer{gateway: gw, dir: dir, player: append([]string(nil), player...)}
}

// Synthesize 同一文本和语言复用同一个文件
// Synthesize reuses the file for identical text and language
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text, lang string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	sum := sha256.Sum256([]byte(lang + "\x00" + text))
	path := filepath.Join(s.dir, "turn_"+hex.EncodeToString(sum[:8])+".mp3")

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, s.play(ctx, path)
	}

	audio, err := s.gateway.Speak(ctx, text)
	if err != nil {
		return "", err
	}
	defer audio.Close()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(f, audio); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, s.play(ctx, path)
}

func (s *SpeechSynthesizer) play(ctx context.Context, path string) error {
	if len(s.player) == 0 {
		return nil
	}
	args := append(append([]string(nil), s.player[1:]...), path)
	cmd := exec.CommandContext(ctx, s.player[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("play %s: %v: %s", path, err, out)
	}
	return nil
}
