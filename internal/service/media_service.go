package service

import (
	"skillcert_backend/internal/util"
)

// MediaService inspects uploaded screen recordings.
type MediaService struct {
	probe func(path string) (*util.VideoInfo, error)
}

func NewMediaService() *MediaService {
	return &MediaService{probe: util.GetVideoInfo}
}

// NewMediaServiceWithProbe is used where ffprobe is not installed.
func NewMediaServiceWithProbe(probe func(path string) (*util.VideoInfo, error)) *MediaService {
	return &MediaService{probe: probe}
}

func (s *MediaService) Probe(path string) (*util.VideoInfo, error) {
	return s.probe(path)
}
