package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	FormatJPEG = "JPEG"
	FormatPNG  = "PNG"
)

// Scales accepted by the enhancement service.
var AllowedScales = []int{2, 4, 8}

type EnhanceRequest struct {
	Image    []byte
	Filename string
	Scale    int
	Format   string
}

func (r EnhanceRequest) Validate() error {
	if len(r.Image) == 0 {
		return errors.New("image is required")
	}
	if !ValidScale(r.Scale) {
		return fmt.Errorf("unsupported scale: %d", r.Scale)
	}
	format := strings.ToUpper(strings.TrimSpace(r.Format))
	if format != FormatJPEG && format != FormatPNG {
		return fmt.Errorf("unsupported format: %s", r.Format)
	}
	return nil
}

func ValidScale(scale int) bool {
	for _, allowed := range AllowedScales {
		if scale == allowed {
			return true
		}
	}
	return false
}

// OutputFilename derives the download name for an enhanced image. The
// extension follows the requested output format, never the extension of the
// uploaded file.
func OutputFilename(originalName string, scale int, format string) string {
	base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	extension := "png"
	if strings.ToUpper(strings.TrimSpace(format)) == FormatJPEG {
		extension = "jpg"
	}
	return fmt.Sprintf("%dx_%s.%s", scale, base, extension)
}
