// Package imaging applies the fixed transform sequence to a single image.
//
// A Processor decodes one image, runs its ordered steps and encodes the
// result. It holds no per-image state, so one Processor may be shared by all
// transform workers.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	dimg "github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// edgeEnhanceMore is the 3x3 kernel of the classic EDGE_ENHANCE_MORE filter
var edgeEnhanceMore = [9]float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// Settings are the parameters of the transform sequence
type Settings struct {
	BlurRadius       float64
	SecondBlurRadius float64
	ContrastFactor   float64 // 1.0 leaves contrast unchanged
	UpscaleFactor    int
	Quality          int  // JPEG quality
	Optimize         bool // best PNG compression
}

// DefaultSettings returns the parameters of the production sequence
func DefaultSettings() Settings {
	return Settings{
		BlurRadius:       10,
		SecondBlurRadius: 5,
		ContrastFactor:   1.5,
		UpscaleFactor:    2,
		Quality:          95,
		Optimize:         true,
	}
}

// Step is one named operation of the sequence.
// orig is the bounds of the decoded image before any step ran.
type Step struct {
	Name  string
	Apply func(img image.Image, orig image.Rectangle) image.Image
}

// Processor runs the transform sequence
type Processor struct {
	settings Settings
	steps    []Step
}

// NewProcessor builds a processor for s
func NewProcessor(s Settings) *Processor {
	if s.UpscaleFactor < 1 {
		s.UpscaleFactor = 1
	}
	p := &Processor{settings: s}
	p.steps = p.buildSteps()
	return p
}

// Steps returns the ordered steps applied between decode and encode
func (p *Processor) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

func (p *Processor) buildSteps() []Step {
	s := p.settings
	return []Step{
		{Name: "normalize", Apply: func(img image.Image, _ image.Rectangle) image.Image {
			return normalize(img)
		}},
		{Name: "blur", Apply: func(img image.Image, _ image.Rectangle) image.Image {
			return dimg.Blur(img, s.BlurRadius)
		}},
		{Name: "contrast", Apply: func(img image.Image, _ image.Rectangle) image.Image {
			return dimg.AdjustContrast(img, contrastPercentage(s.ContrastFactor))
		}},
		{Name: "edge_enhance_more", Apply: func(img image.Image, _ image.Rectangle) image.Image {
			return dimg.Convolve3x3(img, edgeEnhanceMore, nil)
		}},
		{Name: "invert", Apply: func(img image.Image, _ image.Rectangle) image.Image {
			return dimg.Invert(img)
		}},
		{Name: "blur", Apply: func(img image.Image, _ image.Rectangle) image.Image {
			return dimg.Blur(img, s.SecondBlurRadius)
		}},
		{Name: "upscale", Apply: func(img image.Image, _ image.Rectangle) image.Image {
			b := img.Bounds()
			return dimg.Resize(img, b.Dx()*s.UpscaleFactor, b.Dy()*s.UpscaleFactor, dimg.Lanczos)
		}},
		{Name: "downscale", Apply: func(img image.Image, orig image.Rectangle) image.Image {
			return dimg.Resize(img, orig.Dx(), orig.Dy(), dimg.Lanczos)
		}},
	}
}

// Transform runs every step on img, checking ctx before each one
func (p *Processor) Transform(ctx context.Context, img image.Image) (image.Image, error) {
	orig := img.Bounds()
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("before %s: %w", step.Name, err)
		}
		img = step.Apply(img, orig)
	}
	return img, nil
}

// Process decodes r, transforms it and encodes the result to w in the
// format implied by outputName's extension
func (p *Processor) Process(ctx context.Context, r io.Reader, w io.Writer, outputName string) error {
	format, err := dimg.FormatFromFilename(outputName)
	if err != nil {
		return fmt.Errorf("output format: %w", err)
	}

	img, err := Decode(r)
	if err != nil {
		return err
	}

	out, err := p.Transform(ctx, img)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("before encode: %w", err)
	}
	if err := dimg.Encode(w, out, format, p.encodeOptions()...); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return nil
}

func (p *Processor) encodeOptions() []dimg.EncodeOption {
	opts := []dimg.EncodeOption{dimg.JPEGQuality(p.settings.Quality)}
	if p.settings.Optimize {
		opts = append(opts, dimg.PNGCompressionLevel(png.BestCompression))
	}
	return opts
}

// Decode reads a whole image from r after checking its content type
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if _, err := DetectType(data); err != nil {
		return nil, err
	}
	img, err := dimg.Decode(bytes.NewReader(data), dimg.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DetectType returns the MIME type of data, failing if it is not an image
func DetectType(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return mt.String(), fmt.Errorf("not an image: detected %s", mt.String())
	}
	return mt.String(), nil
}

// normalize converts img to opaque NRGBA, dropping the alpha channel
func normalize(img image.Image) image.Image {
	out := dimg.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

func contrastPercentage(factor float64) float64 {
	pct := (factor - 1) * 100
	switch {
	case pct > 100:
		return 100
	case pct < -100:
		return -100
	}
	return pct
}
