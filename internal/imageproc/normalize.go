// Package imageproc provides the normalization pipeline for source images:
// flattening to RGB, minimal-dimension upscale and JPEG re-encoding under a size budget.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // исходники приходят в том числе в webp
)

const (
	// MinDimension - минимальный размер короткой стороны результата в пикселях
	MinDimension = 1080
	// MaxSizeKB - бюджет размера результата
	MaxSizeKB = 200

	startQuality = 85
	minQuality   = 10
	qualityStep  = 5
)

// Normalize - детерминированная обработка одной картинки: декодировать,
// положить на белый фон, при необходимости увеличить до MinDimension по
// короткой стороне и пережать в JPEG так, чтобы результат влез в MaxSizeKB.
// Функция чистая и идемпотентная - безопасно гонять повторно при ределивери.
func Normalize(r io.Reader) (io.Reader, int64, error) {
	if r == nil {
		return nil, -1, errors.New("nil-reader baseIMG provided to Normalize")
	}

	img, err := imaging.Decode(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to DEcode baseIMG in Normalize: %w", err)
	}

	result := upscaleToMinDimension(flattenToWhite(img))

	// снижаем качество пока не впишемся в бюджет размера
	var buf bytes.Buffer
	quality := startQuality
	for {
		buf.Reset()
		if err := imaging.Encode(&buf, result, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, 0, fmt.Errorf("failed to ENcode resultIMG in Normalize: %w", err)
		}
		if buf.Len() <= MaxSizeKB*1024 || quality <= minQuality {
			break
		}
		quality -= qualityStep
	}

	return &buf, int64(buf.Len()), nil
}

// flattenToWhite - кладем картинку на белый фон, иначе прозрачные зоны
// станут черными после пережатия в JPEG
func flattenToWhite(img image.Image) image.Image {
	bounds := img.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}

func upscaleToMinDimension(img image.Image) image.Image {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w >= MinDimension && h >= MinDimension {
		return img
	}

	if w < h {
		return imaging.Resize(img, MinDimension, 0, imaging.Lanczos) // 0 - сохраняет ратио
	}
	return imaging.Resize(img, 0, MinDimension, imaging.Lanczos)
}
