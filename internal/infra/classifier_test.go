package infra

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

func testFrame() *domain.Frame {
	return &domain.Frame{
		Width:  2,
		Height: 1,
		Pix:    []byte{255, 0, 0, 255, 0, 0, 255, 255},
	}
}

func TestParseScores(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    []float32
		wantErr bool
	}{
		{name: "json array", out: "[0.8, 0.2]\n", want: []float32{0.8, 0.2}},
		{name: "whitespace list", out: "0.8 0.2\n", want: []float32{0.8, 0.2}},
		{name: "comma list", out: "0.8,0.2", want: []float32{0.8, 0.2}},
		{name: "empty means not ready", out: "  \n", want: nil},
		{name: "garbage", out: "ready", wantErr: true},
		{name: "bad json", out: "[0.8,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScores([]byte(tt.out))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandClassifier_PipesPNG(t *testing.T) {
	runner := &mockRunner{output: []byte("[0.9]")}
	c := NewCommandClassifier([]string{"nsfw-score", "--model", "/opt/m.pt"}, runner, zap.NewNop())

	scores, err := c.Classify(context.Background(), testFrame())

	require.NoError(t, err)
	assert.Equal(t, []float32{0.9}, scores)
	assert.Equal(t, []string{"nsfw-score --model /opt/m.pt"}, runner.Calls())

	img, err := png.Decode(bytes.NewReader(runner.stdin))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestCommandClassifier_NoCommandNeverReady(t *testing.T) {
	runner := &mockRunner{}
	c := NewCommandClassifier(nil, runner, zap.NewNop())

	scores, err := c.Classify(context.Background(), testFrame())

	assert.NoError(t, err)
	assert.Empty(t, scores)
	assert.Empty(t, runner.Calls())
}

func TestCommandClassifier_CommandFailure(t *testing.T) {
	runner := &mockRunner{err: errors.New("exit status 1")}
	c := NewCommandClassifier([]string{"nsfw-score"}, runner, zap.NewNop())

	_, err := c.Classify(context.Background(), testFrame())

	assert.ErrorContains(t, err, "nsfw-score")
}

func TestCommandClassifier_MalformedFrame(t *testing.T) {
	c := NewCommandClassifier([]string{"nsfw-score"}, &mockRunner{}, zap.NewNop())

	_, err := c.Classify(context.Background(), &domain.Frame{Width: 10, Height: 10})

	assert.ErrorIs(t, err, domain.ErrCaptureUnavailable)
}

type fixedClassifier struct {
	scores []float32
	err    error
}

func (f *fixedClassifier) Classify(ctx context.Context, frame *domain.Frame) ([]float32, error) {
	return f.scores, f.err
}

func TestSigmoidClassifier(t *testing.T) {
	s := NewSigmoidClassifier(&fixedClassifier{scores: []float32{0, 2, -2}})

	scores, err := s.Classify(context.Background(), testFrame())

	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.InDelta(t, 0.5, scores[0], 1e-6)
	assert.InDelta(t, 0.8808, scores[1], 1e-4)
	assert.InDelta(t, 0.1192, scores[2], 1e-4)
}

func TestSigmoidClassifier_PassesThroughNotReadyAndErrors(t *testing.T) {
	scores, err := NewSigmoidClassifier(&fixedClassifier{}).Classify(context.Background(), testFrame())
	assert.NoError(t, err)
	assert.Empty(t, scores)

	boom := errors.New("boom")
	_, err = NewSigmoidClassifier(&fixedClassifier{err: boom}).Classify(context.Background(), testFrame())
	assert.ErrorIs(t, err, boom)
}
