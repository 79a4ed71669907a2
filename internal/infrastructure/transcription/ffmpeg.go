package transcription

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"vidsum-ai-api/internal/config"
)

const defaultSampleRate = 16000

// FFmpegExtractor 调用 ffmpeg 提取单声道 16-bit PCM 音频
type FFmpegExtractor struct {
	binary     string
	sampleRate int
	outDir     string
}

// NewFFmpegExtractor 创建音频提取器；outDir 为空时音频写在视频旁边
func NewFFmpegExtractor(cfg *config.TranscriptionConfig, outDir string) *FFmpegExtractor {
	bin := strings.TrimSpace(cfg.FFmpegPath)
	if bin == "" {
		bin = "ffmpeg"
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = defaultSampleRate
	}
	return &FFmpegExtractor{binary: bin, sampleRate: rate, outDir: outDir}
}

// Extract 提取音频，返回 wav 文件路径
func (e *FFmpegExtractor) Extract(ctx context.Context, videoPath string) (string, error) {
	out := e.outputPath(videoPath)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, e.args(videoPath, out)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("ffmpeg failed: %w: %s", err, lastLines(stderr.String(), 3))
	}
	return out, nil
}

func (e *FFmpegExtractor) outputPath(videoPath string) string {
	name := filepath.Base(videoPath) + ".wav"
	if e.outDir == "" {
		return filepath.Join(filepath.Dir(videoPath), name)
	}
	return filepath.Join(e.outDir, name)
}

func (e *FFmpegExtractor) args(in, out string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(e.sampleRate),
		"-ac", "1",
		"-y", out,
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
