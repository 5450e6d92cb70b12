package application

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
)

// Placeholder images returned when no illustration is available.
const (
	PlaceholderMapURL = "https://placehold.co/800x600/png?text=Generated+Walking+Course+Map"
	FailedMapURL      = "https://placehold.co/800x600/png?text=Map+Generation+Failed"
)

const unknownStation = "Unknown Location"

// CourseService draws walking-course maps.
type CourseService struct {
	images ports.ImageModel
	log    logger.Logger
}

// NewCourseService creates the service. images may be nil, in which case
// every request gets the placeholder.
func NewCourseService(images ports.ImageModel, log logger.Logger) *CourseService {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &CourseService{images: images, log: log}
}

// Illustrate returns a data URL of the generated map, or a placeholder URL
// when the model is missing, fails or answers without an image.
func (s *CourseService) Illustrate(ctx context.Context, station string, shopNames []string) (string, error) {
	names := make([]string, 0, len(shopNames))
	for _, n := range shopNames {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		v := domain.NewValidationError("course request")
		v.AddError("shops are required")
		return "", v
	}
	if strings.TrimSpace(station) == "" {
		station = unknownStation
	}
	if s.images == nil {
		return PlaceholderMapURL, nil
	}

	prompt, err := agents.IllustrationPrompt(station, names)
	if err != nil {
		return "", err
	}

	mime, data, err := s.images.GenerateImage(ctx, prompt)
	if err != nil {
		if isNoClient(err) {
			return PlaceholderMapURL, nil
		}
		s.log.Error("map generation failed", map[string]any{"station": station, "error": err.Error()})
		return FailedMapURL, nil
	}
	if len(data) == 0 {
		return PlaceholderMapURL, nil
	}
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
