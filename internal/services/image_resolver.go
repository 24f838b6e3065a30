package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	"github.com/rwcarlsen/goexif/exif"
)

// Image modes understood by NewImageResolver
const (
	ImageModeInline = "inline"
	ImageModeURL    = "url"
	ImageModeNone   = "none"
)

// ErrImageOutsideTheme is returned for background image paths that escape the theme directory
var ErrImageOutsideTheme = errors.New("image path escapes the theme directory")

// ImageResolver turns a theme-relative background image path into a URL a client can load
type ImageResolver interface {
	Resolve(ctx context.Context, themeName, imagePath string) (string, error)
}

// ImageResolverFunc adapts a function to ImageResolver
type ImageResolverFunc func(ctx context.Context, themeName, imagePath string) (string, error)

// Resolve calls f
func (f ImageResolverFunc) Resolve(ctx context.Context, themeName, imagePath string) (string, error) {
	return f(ctx, themeName, imagePath)
}

// ImageResolverConfig configures NewImageResolver
type ImageResolverConfig struct {
	Mode         string
	ThemesDir    string
	AssetBaseURL string
	MaxDimension int
	Quality      int
}

// NewImageResolver builds the resolver for a mode. ImageModeNone returns nil, which leaves
// relative background images untouched.
func NewImageResolver(cfg ImageResolverConfig) (ImageResolver, error) {
	switch cfg.Mode {
	case ImageModeInline:
		return NewFileImageResolver(cfg.ThemesDir, cfg.MaxDimension, cfg.Quality), nil
	case ImageModeURL:
		return &PrefixImageResolver{
			BaseURL: cfg.AssetBaseURL,
			files:   NewFileImageResolver(cfg.ThemesDir, 0, 0),
		}, nil
	case ImageModeNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown image mode %q", cfg.Mode)
	}
}

// FileImageResolver reads images from <root>/<theme>/<path> and inlines them as data URIs,
// scaled down to MaxDimension and rotated upright according to EXIF orientation
type FileImageResolver struct {
	root         string
	maxDimension int
	quality      int
}

// NewFileImageResolver creates a resolver rooted at the themes directory.
// maxDimension <= 0 keeps the original size; quality <= 0 uses 85.
func NewFileImageResolver(root string, maxDimension, quality int) *FileImageResolver {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &FileImageResolver{
		root:         root,
		maxDimension: maxDimension,
		quality:      quality,
	}
}

// Resolve implements ImageResolver
func (r *FileImageResolver) Resolve(ctx context.Context, themeName, imagePath string) (string, error) {
	fullPath, err := r.locate(themeName, imagePath)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := decodeImage(data, fullPath)
	if err != nil {
		return "", err
	}
	img = applyOrientation(img, readOrientation(data))
	if r.maxDimension > 0 {
		img = imaging.Fit(img, r.maxDimension, r.maxDimension, imaging.Lanczos)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	format, mime := imaging.JPEG, "image/jpeg"
	if f, err := imaging.FormatFromFilename(fullPath); err == nil && (f == imaging.PNG || f == imaging.GIF) {
		format, mime = imaging.PNG, "image/png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(r.quality)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Exists reports whether the image file is present inside the theme directory
func (r *FileImageResolver) Exists(themeName, imagePath string) error {
	fullPath, err := r.locate(themeName, imagePath)
	if err != nil {
		return err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", imagePath)
	}
	return nil
}

// locate maps a theme-relative path to a file under <root>/<theme>
func (r *FileImageResolver) locate(themeName, imagePath string) (string, error) {
	if themeName == "" || strings.ContainsAny(themeName, `/\`) || themeName == ".." {
		return "", ErrImageOutsideTheme
	}
	themeDir := filepath.Join(r.root, themeName)
	rel := filepath.FromSlash(strings.TrimPrefix(path.Clean("/"+imagePath), "/"))
	if rel == "" || rel == "." {
		return "", ErrImageOutsideTheme
	}
	fullPath := filepath.Join(themeDir, rel)
	within, err := filepath.Rel(themeDir, fullPath)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", ErrImageOutsideTheme
	}
	return fullPath, nil
}

// PrefixImageResolver maps image paths to URLs under BaseURL, served by the asset route.
// When backed by a themes directory it rejects images that do not exist.
type PrefixImageResolver struct {
	BaseURL string
	files   *FileImageResolver
}

// Resolve implements ImageResolver
func (r *PrefixImageResolver) Resolve(ctx context.Context, themeName, imagePath string) (string, error) {
	if r.files != nil {
		if err := r.files.Exists(themeName, imagePath); err != nil {
			return "", err
		}
	}
	clean := strings.TrimPrefix(path.Clean("/"+imagePath), "/")
	return strings.TrimSuffix(r.BaseURL, "/") + "/" + themeName + "/" + clean, nil
}

func decodeImage(data []byte, filename string) (image.Image, error) {
	if IsHEIC(filename) {
		img, err := goheif.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode HEIC image: %w", err)
		}
		return img, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// readOrientation returns the EXIF orientation (1-8), or 1 when the image carries none
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	if val, err := tag.Int(0); err == nil && val >= 1 && val <= 8 {
		return val
	}
	return 1
}

// applyOrientation rotates or flips img so that it displays upright
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Rotate270(imaging.FlipH(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Rotate90(imaging.FlipH(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// IsHEIC checks if the file is HEIC/HEIF format
func IsHEIC(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".heic" || ext == ".heif"
}

// IsSupportedImage checks if the file extension can be used as a background image
func IsSupportedImage(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".heic", ".heif":
		return true
	default:
		return false
	}
}
