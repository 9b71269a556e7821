package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

// CommandClassifier implements domain.Classifier by piping the frame as PNG
// to an external scoring command. The command prints its score vector as a
// JSON array or as whitespace separated floats. Empty output means the
// model is still loading.
type CommandClassifier struct {
	argv   []string
	runner CommandRunner
	logger *zap.Logger
}

// NewCommandClassifier creates a classifier running argv.
// An empty argv yields a classifier that is never ready.
func NewCommandClassifier(argv []string, runner CommandRunner, logger *zap.Logger) *CommandClassifier {
	if runner == nil {
		runner = &ExecRunner{}
	}
	return &CommandClassifier{
		argv:   argv,
		runner: runner,
		logger: logger,
	}
}

// Classify scores frame.
func (c *CommandClassifier) Classify(ctx context.Context, frame *domain.Frame) ([]float32, error) {
	if len(c.argv) == 0 {
		return nil, nil
	}

	input, err := encodePNG(frame)
	if err != nil {
		return nil, err
	}

	out, err := c.runner.Output(ctx, input, c.argv[0], c.argv[1:]...)
	if err != nil {
		return nil, fmt.Errorf("classifier command %s: %w", c.argv[0], err)
	}

	scores, err := parseScores(out)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("classification output", zap.Float32s("scores", scores))
	return scores, nil
}

func encodePNG(frame *domain.Frame) ([]byte, error) {
	if frame == nil || len(frame.Pix) < frame.Width*frame.Height*4 {
		return nil, fmt.Errorf("%w: malformed frame", domain.ErrCaptureUnavailable)
	}
	img := &image.RGBA{
		Pix:    frame.Pix,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// parseScores accepts "[0.1, 0.9]" or "0.1 0.9".
func parseScores(out []byte) ([]float32, error) {
	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil, nil
	}

	if strings.HasPrefix(text, "[") {
		var scores []float32
		if err := json.Unmarshal([]byte(text), &scores); err != nil {
			return nil, fmt.Errorf("parse classifier output: %w", err)
		}
		return scores, nil
	}

	fields := strings.Fields(strings.ReplaceAll(text, ",", " "))
	scores := make([]float32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("parse classifier output %q: %w", f, err)
		}
		scores = append(scores, float32(v))
	}
	return scores, nil
}

// SigmoidClassifier wraps a classifier that emits raw logits and maps each
// score into [0,1].
type SigmoidClassifier struct {
	inner domain.Classifier
}

// NewSigmoidClassifier wraps inner.
func NewSigmoidClassifier(inner domain.Classifier) *SigmoidClassifier {
	return &SigmoidClassifier{inner: inner}
}

// Classify scores frame with inner and applies the logistic function.
func (s *SigmoidClassifier) Classify(ctx context.Context, frame *domain.Frame) ([]float32, error) {
	logits, err := s.inner.Classify(ctx, frame)
	if err != nil || len(logits) == 0 {
		return logits, err
	}
	scores := make([]float32, len(logits))
	for i, x := range logits {
		scores[i] = float32(1 / (1 + math.Exp(-float64(x))))
	}
	return scores, nil
}

// Ensure both classifiers implement domain.Classifier.
var (
	_ domain.Classifier = (*CommandClassifier)(nil)
	_ domain.Classifier = (*SigmoidClassifier)(nil)
)
