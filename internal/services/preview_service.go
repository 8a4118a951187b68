package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// PreviewSize is one thumbnail size configuration for theme screenshots
type PreviewSize struct {
	Name    string
	MaxDim  int // Maximum dimension (width or height)
	Quality int // JPEG quality (1-100)
}

var (
	// PreviewSmall is the 200px editor list thumbnail
	PreviewSmall = PreviewSize{Name: "small", MaxDim: 200, Quality: 80}
	// PreviewMedium is the 500px theme-picker card
	PreviewMedium = PreviewSize{Name: "medium", MaxDim: 500, Quality: 85}
	// PreviewLarge is the 1000px detail view
	PreviewLarge = PreviewSize{Name: "large", MaxDim: 1000, Quality: 85}
)

// PreviewResult contains the paths of the generated preview thumbnails
type PreviewResult struct {
	SmallPath  string
	MediumPath string
	LargePath  string
	Width      int
	Height     int
}

// PreviewService generates editor preview thumbnails from a theme's
// screenshot
type PreviewService struct {
	sizes []PreviewSize
}

// NewPreviewService creates a new PreviewService with the standard sizes
func NewPreviewService() *PreviewService {
	return &PreviewService{sizes: []PreviewSize{PreviewSmall, PreviewMedium, PreviewLarge}}
}

// GeneratePreviews writes resized JPEG thumbnails next to the screenshot
// (screenshot_small.jpg and friends) and returns their paths
func (s *PreviewService) GeneratePreviews(screenshotPath string) (*PreviewResult, error) {
	img, err := imaging.Open(screenshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}

	bounds := img.Bounds()
	result := &PreviewResult{Width: bounds.Dx(), Height: bounds.Dy()}

	dir := filepath.Dir(screenshotPath)
	base := strings.TrimSuffix(filepath.Base(screenshotPath), filepath.Ext(screenshotPath))

	for _, size := range s.sizes {
		thumb := imaging.Fit(img, size.MaxDim, size.MaxDim, imaging.Lanczos)
		thumbPath := filepath.Join(dir, fmt.Sprintf("%s_%s.jpg", base, size.Name))

		if err := imaging.Save(thumb, thumbPath, imaging.JPEGQuality(size.Quality)); err != nil {
			os.Remove(thumbPath)
			return nil, fmt.Errorf("failed to save %s preview: %w", size.Name, err)
		}

		switch size.Name {
		case PreviewSmall.Name:
			result.SmallPath = thumbPath
		case PreviewMedium.Name:
			result.MediumPath = thumbPath
		case PreviewLarge.Name:
			result.LargePath = thumbPath
		}
	}

	return result, nil
}
