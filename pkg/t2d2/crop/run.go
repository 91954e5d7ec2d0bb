package crop

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
)

// Source is the part of *t2d2.Client that Run reads from.
type Source interface {
	GetImages(ctx context.Context, ids []int64, params t2d2.Params) ([]t2d2.Record, error)
	GetAnnotations(ctx context.Context, imageID *int64, params t2d2.Params) ([]t2d2.Record, error)
	DownloadAssets(ctx context.Context, ids []int64, assetType t2d2.AssetType, dir string, originalFilename bool) (map[int64]string, error)
}

var _ Source = (*t2d2.Client)(nil)

// Summary reports what Run processed.
type Summary struct {
	TotalImages         int            `json:"total_images" yaml:"total_images"`
	SuccessfulDownloads int            `json:"successful_downloads" yaml:"successful_downloads"`
	FailedDownloads     int            `json:"failed_downloads" yaml:"failed_downloads"`
	CropsSaved          int            `json:"crops_saved" yaml:"crops_saved"`
	Images              []ImageSummary `json:"images" yaml:"images"`
}

// ImageSummary describes one processed image. Index is 1-based.
type ImageSummary struct {
	Index              int      `json:"index" yaml:"index"`
	ImageID            int64    `json:"image_id" yaml:"image_id"`
	Downloaded         bool     `json:"downloaded" yaml:"downloaded"`
	Width              int      `json:"width" yaml:"width"`
	Height             int      `json:"height" yaml:"height"`
	TotalAnnotations   int      `json:"total_annotations" yaml:"total_annotations"`
	VisibleAnnotations int      `json:"visible_annotations" yaml:"visible_annotations"`
	Files              []string `json:"files,omitempty" yaml:"files,omitempty"`
	Error              string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Run downloads the listed images of the active project, saves one JPEG per
// visible annotation into dir and, with WithSheets, a contact sheet per image.
// A failed download or decode is recorded in the summary and does not stop
// the run.
func (c *Cropper) Run(ctx context.Context, src Source, ids []int64, dir string) (Summary, error) {
	if len(ids) == 0 {
		return Summary{}, fmt.Errorf("%w: no image ids", t2d2.ErrInvalidArgument)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("crop: create output dir: %w", err)
	}
	records, err := src.GetImages(ctx, ids, nil)
	if err != nil {
		return Summary{}, err
	}
	tmp, err := os.MkdirTemp("", "t2d2-crop")
	if err != nil {
		return Summary{}, fmt.Errorf("crop: temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	sum := Summary{TotalImages: len(records), Images: make([]ImageSummary, 0, len(records))}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		is := ImageSummary{Index: i + 1, ImageID: rec.ID()}
		id := rec.ID()
		anns, err := src.GetAnnotations(ctx, &id, nil)
		if err != nil {
			return sum, err
		}
		is.TotalAnnotations = len(anns)
		is.VisibleAnnotations = len(VisibleAnnotations(anns))

		img, err := fetch(ctx, src, id, tmp)
		if err != nil {
			c.logger.Warn("image download failed", zap.Int64("image_id", id), zap.Error(err))
			is.Error = err.Error()
			sum.FailedDownloads++
			sum.Images = append(sum.Images, is)
			continue
		}
		is.Downloaded = true
		sum.SuccessfulDownloads++
		w, h := ImageSize(rec, img)
		is.Width, is.Height = w, h

		for _, cr := range c.Crops(img, w, h, anns) {
			name := fmt.Sprintf("img%d_crop_%d_%s.jpg", is.Index, cr.Annotation.ID, safeName(cr.Annotation.ClassName))
			target := filepath.Join(dir, name)
			if err := writeJPEG(target, cr.Image, c.quality); err != nil {
				return sum, err
			}
			is.Files = append(is.Files, target)
			sum.CropsSaved++
			c.logger.Debug("crop saved", zap.Int64("annotation_id", cr.Annotation.ID), zap.String("file", target))
		}
		if c.sheets {
			if sheet := c.Sheet(img, w, h, anns); sheet != nil {
				target := filepath.Join(dir, fmt.Sprintf("img%d_sheet.png", is.Index))
				if err := writePNG(target, sheet); err != nil {
					return sum, err
				}
				is.Files = append(is.Files, target)
			}
		}
		sum.Images = append(sum.Images, is)
	}
	c.logger.Info("crops saved",
		zap.Int("images", sum.TotalImages),
		zap.Int("failed_downloads", sum.FailedDownloads),
		zap.Int("crops", sum.CropsSaved),
	)
	return sum, nil
}

func fetch(ctx context.Context, src Source, id int64, dir string) (image.Image, error) {
	paths, err := src.DownloadAssets(ctx, []int64{id}, t2d2.AssetImage, dir, false)
	if err != nil {
		return nil, err
	}
	path, ok := paths[id]
	if !ok {
		return nil, fmt.Errorf("crop: image %d not downloaded", id)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("crop: open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("crop: decode image %d: %w", id, err)
	}
	return img, nil
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("crop: create %s: %w", path, err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return fmt.Errorf("crop: encode %s: %w", path, err)
	}
	return f.Close()
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("crop: create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("crop: encode %s: %w", path, err)
	}
	return f.Close()
}
