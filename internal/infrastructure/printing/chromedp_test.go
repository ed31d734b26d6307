package printing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/erp/sourcing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewChromedpRenderer_Defaults(t *testing.T) {
	r, err := NewChromedpRenderer(nil)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, defaultChromeTimeout, r.config.DefaultTimeout)
	assert.Equal(t, defaultScale, r.config.Scale)
	assert.NotNil(t, r.logger)
	assert.NotNil(t, r.allocCtx)
}

func TestChromedpConfigFrom(t *testing.T) {
	cfg := ChromedpConfigFrom(&config.ChromeConfig{
		RemoteURL: "ws://chrome:9222",
		NoSandbox: true,
		Timeout:   5 * time.Second,
	}, zap.NewNop())

	assert.Equal(t, "ws://chrome:9222", cfg.RemoteURL)
	assert.True(t, cfg.NoSandbox)
	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout)
}

func TestChromedpRenderer_RenderValidation(t *testing.T) {
	r, err := NewChromedpRenderer(&ChromedpConfig{})
	require.NoError(t, err)
	defer r.Close()

	tests := []struct {
		name string
		req  *RenderRequest
		code string
	}{
		{"nil request", nil, ErrCodeInvalidHTML},
		{"empty HTML", &RenderRequest{HTML: "   "}, ErrCodeInvalidHTML},
		{"bad paper", &RenderRequest{HTML: "<p>x</p>", PaperSize: "B5"}, ErrCodeInvalidPaperSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(context.Background(), tt.req)
			var renderErr *RenderError
			require.True(t, errors.As(err, &renderErr))
			assert.Equal(t, tt.code, renderErr.Code)
		})
	}
}

func TestBuildPrintParams(t *testing.T) {
	r := &ChromedpRenderer{config: &ChromedpConfig{Scale: 1.0}}

	t.Run("A4 portrait", func(t *testing.T) {
		params := r.buildPrintParams(&RenderRequest{
			PaperSize: PaperSizeA4,
			Margins:   DefaultMargins(),
		})
		assert.InDelta(t, mmToInches(210), params.paperWidth, 0.01)
		assert.InDelta(t, mmToInches(297), params.paperHeight, 0.01)
		assert.InDelta(t, mmToInches(15), params.marginTop, 0.001)
		assert.InDelta(t, mmToInches(12), params.marginLeft, 0.001)
		assert.False(t, params.landscape)
		assert.False(t, params.displayFooter)
	})

	t.Run("letter landscape", func(t *testing.T) {
		params := r.buildPrintParams(&RenderRequest{
			PaperSize:   PaperSizeLetter,
			Orientation: OrientationLandscape,
		})
		assert.InDelta(t, 8.5, params.paperWidth, 0.01)
		assert.InDelta(t, 11.0, params.paperHeight, 0.01)
		assert.True(t, params.landscape)
	})

	t.Run("footer enforces minimum bottom margin", func(t *testing.T) {
		params := r.buildPrintParams(&RenderRequest{
			PaperSize:  PaperSizeA4,
			Margins:    Margins{Bottom: 2},
			FooterHTML: LetterFooter,
		})
		assert.True(t, params.displayFooter)
		assert.Equal(t, LetterFooter, params.footerTemplate)
		assert.InDelta(t, mmToInches(minFooterMarginMM), params.marginBottom, 0.001)
	})
}

func TestBuildCompleteHTML(t *testing.T) {
	full := "<!DOCTYPE html><html><body>x</body></html>"
	assert.Equal(t, full, buildCompleteHTML(&RenderRequest{HTML: full}))

	wrapped := buildCompleteHTML(&RenderRequest{HTML: "<p>x</p>", Title: "A & B"})
	assert.Contains(t, wrapped, "<!DOCTYPE html>")
	assert.Contains(t, wrapped, "<title>A &amp; B</title>")
	assert.Contains(t, wrapped, "<body><p>x</p></body>")
}

func TestEstimatePageCount(t *testing.T) {
	pdf := []byte("<< /Type /Pages /Count 2 >> << /Type /Page >> << /Type /Page >>")
	assert.Equal(t, 2, estimatePageCount(pdf))
	assert.Equal(t, 1, estimatePageCount([]byte("garbage")))
}

func TestPaperSize(t *testing.T) {
	assert.True(t, PaperSizeA3.IsValid())
	assert.False(t, PaperSize("A5").IsValid())

	w, h := PaperSize("unknown").Dimensions()
	assert.Equal(t, 210.0, w)
	assert.Equal(t, 297.0, h)
}

func TestChromedpRenderer_Close(t *testing.T) {
	r, err := NewChromedpRenderer(&ChromedpConfig{RemoteURL: "ws://127.0.0.1:9222"})
	require.NoError(t, err)
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestIsTimeout(t *testing.T) {
	timeout := NewRenderError(ErrCodeRenderTimeout, "PDF rendering timed out", context.DeadlineExceeded)

	assert.True(t, IsTimeout(timeout))
	assert.True(t, IsTimeout(fmt.Errorf("convert letter: %w", timeout)))
	assert.False(t, IsTimeout(NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", nil)))
	assert.False(t, IsTimeout(context.DeadlineExceeded))
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)
}
