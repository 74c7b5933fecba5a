package projects

import (
	"errors"
	"math"
	"strings"

	"github.com/good-yellow-bee/clipforge/internal/models"
)

// MaxFPS bounds the frame rate a project or render override may ask for.
const MaxFPS = 240

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if len(name) > 100 {
		return errors.New("name must be 100 characters or less")
	}
	return nil
}

func ValidateFPS(fps float64) error {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
		return errors.New("fps must be a positive number")
	}
	if fps > MaxFPS {
		return errors.New("fps must be 240 or less")
	}
	return nil
}

func ValidateResolution(r models.Resolution) error {
	if r.Width <= 0 || r.Height <= 0 {
		return errors.New("resolution must be positive")
	}
	if r.Width > 7680 || r.Height > 4320 {
		return errors.New("resolution must be at most 7680x4320")
	}
	return nil
}
