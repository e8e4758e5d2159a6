package tools

import (
	"image"

	"github.com/disintegration/imaging"
)

// EnhanceOptions tunes the scan cleanup applied before OCR.
type EnhanceOptions struct {
	// ThresholdSigma sizes the gaussian neighbourhood of the adaptive threshold.
	ThresholdSigma float64
	// ThresholdOffset is subtracted from the local mean before comparing.
	ThresholdOffset float64
	// DenoiseSigma blurs the binary page so isolated specks fall below the cut.
	DenoiseSigma float64
	// Contrast is passed to imaging.AdjustContrast, in percent.
	Contrast float64
}

// DefaultEnhanceOptions approximates an 11px gaussian block with offset 2.
func DefaultEnhanceOptions() EnhanceOptions {
	return EnhanceOptions{
		ThresholdSigma:  2.0,
		ThresholdOffset: 2,
		DenoiseSigma:    0.8,
		Contrast:        20,
	}
}

// EnhancePageFile loads a page image, enhances it and saves it to dst.
// The output format follows dst's extension.
func EnhancePageFile(src, dst string, opts EnhanceOptions) error {
	img, err := imaging.Open(src)
	if err != nil {
		return err
	}
	return imaging.Save(Enhance(img, opts), dst)
}

// Enhance runs grayscale, adaptive threshold, denoise and contrast in order.
func Enhance(img image.Image, opts EnhanceOptions) *image.NRGBA {
	gray := imaging.Grayscale(img)
	binary := adaptiveThreshold(gray, opts.ThresholdSigma, opts.ThresholdOffset)
	denoised := binarize(imaging.Blur(binary, opts.DenoiseSigma), 128)
	return imaging.AdjustContrast(denoised, opts.Contrast)
}

// adaptiveThreshold keeps a pixel white when it is brighter than its
// gaussian-weighted neighbourhood mean minus offset.
func adaptiveThreshold(gray *image.NRGBA, sigma, offset float64) *image.NRGBA {
	mean := imaging.Blur(gray, sigma)
	out := image.NewNRGBA(gray.Bounds())
	for i := 0; i+3 < len(gray.Pix); i += 4 {
		v := uint8(0)
		if float64(gray.Pix[i]) > float64(mean.Pix[i])-offset {
			v = 255
		}
		setGray(out.Pix[i:i+4], v)
	}
	return out
}

// binarize maps every pixel to black or white around cut.
func binarize(img *image.NRGBA, cut uint8) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	for i := 0; i+3 < len(img.Pix); i += 4 {
		v := uint8(0)
		if img.Pix[i] >= cut {
			v = 255
		}
		setGray(out.Pix[i:i+4], v)
	}
	return out
}

func setGray(px []uint8, v uint8) {
	px[0], px[1], px[2], px[3] = v, v, v, 255
}
