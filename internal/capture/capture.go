// Package capture produces the two album images for a candidate.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/logging"
	"ChannelPublisher/internal/ports"
)

// ImagesPerPost is the album size.
const ImagesPerPost = 2

// Stage implements ports.Capturer. Exactly one of renderer or generator is
// normally set; with neither, every capture is the placeholder.
type Stage struct {
	renderer    ports.Renderer
	generator   ports.ImageGenerator
	prompt      string
	placeholder string
	timeout     time.Duration
	logger      *zap.Logger
}

var _ ports.Capturer = (*Stage)(nil)

// Options configure a Stage.
type Options struct {
	Renderer       ports.Renderer
	Generator      ports.ImageGenerator
	Prompt         string
	PlaceholderURL string
	Timeout        time.Duration
	Logger         *zap.Logger
}

// New builds a capture stage.
func New(opts Options) *Stage {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Stage{
		renderer:    opts.Renderer,
		generator:   opts.Generator,
		prompt:      opts.Prompt,
		placeholder: opts.PlaceholderURL,
		timeout:     opts.Timeout,
		logger:      logging.OrNop(opts.Logger),
	}
}

// Capture always returns two images. Any failure, including a panic inside
// the rendering driver, yields the placeholder twice.
func (s *Stage) Capture(ctx context.Context, url string, kind domain.LinkKind) []domain.Image {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	images, err := s.capture(ctx, url, kind)
	if err != nil {
		s.logger.Warn("capture failed, using placeholder",
			zap.String("url", url), zap.String("kind", string(kind)), zap.Error(domain.Timeout("capture", err)))
		return s.fallback()
	}
	return images
}

func (s *Stage) capture(ctx context.Context, url string, kind domain.LinkKind) (images []domain.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			images, err = nil, fmt.Errorf("capture panicked: %v", r)
		}
	}()

	switch {
	case s.renderer != nil:
		var shots [][]byte
		shots, err = s.renderer.Render(ctx, url, kind)
		if err != nil {
			return nil, err
		}
		images = make([]domain.Image, 0, len(shots))
		for _, shot := range shots {
			if len(shot) == 0 {
				continue
			}
			images = append(images, domain.Image{Data: shot, ContentType: http.DetectContentType(shot)})
		}
	case s.generator != nil:
		images, err = s.generator.Generate(ctx, s.prompt, ImagesPerPost)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("no capture strategy configured")
	}

	return pair(images)
}

// pair trims to two images, repeating a lone image.
func pair(images []domain.Image) ([]domain.Image, error) {
	switch len(images) {
	case 0:
		return nil, errors.New("capture produced no images")
	case 1:
		return []domain.Image{images[0], images[0]}, nil
	default:
		return images[:ImagesPerPost], nil
	}
}

func (s *Stage) fallback() []domain.Image {
	img := domain.Image{URL: s.placeholder, ContentType: "image/jpeg"}
	return []domain.Image{img, img}
}
