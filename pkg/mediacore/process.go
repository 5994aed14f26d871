package mediacore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ProcessMedia classifies a batch of uploaded URLs and attaches them to the
// owning resource: PROCESSING while working, READY on success, FAILED when
// nothing usable survives classification or the final write cannot land.
// Every status write contends with the resource's own edit path and goes
// through the bounded conflict-retry loop.
func (s *service) ProcessMedia(ctx context.Context, resourceID uuid.UUID, urls []string) error {
	if s.resources == nil {
		return fmt.Errorf("mediacore: no resource store configured")
	}
	isConflict := func(err error) bool { return errors.Is(err, ErrConflict) }

	err := RetryOnConflict(ctx, s.retry, isConflict, func() error {
		res, err := s.resources.GetMediaResource(ctx, resourceID)
		if err != nil {
			return err
		}
		res.Status = MediaStatusProcessing
		return s.resources.UpdateMediaResource(ctx, res)
	})
	if err != nil {
		return fmt.Errorf("marking resource %s processing: %w", resourceID, err)
	}

	images, video := s.classifyMediaURLs(resourceID, urls)
	if len(images) == 0 && video == "" {
		s.failResource(ctx, resourceID)
		return fmt.Errorf("no usable media for resource %s", resourceID)
	}

	err = RetryOnConflict(ctx, s.retry, isConflict, func() error {
		res, err := s.resources.GetMediaResource(ctx, resourceID)
		if err != nil {
			return err
		}
		for _, u := range images {
			if !containsString(res.ImageURLs, u) {
				res.ImageURLs = append(res.ImageURLs, u)
			}
		}
		// First video wins. A resource that already carries a video keeps it.
		if res.VideoURL == "" && video != "" {
			res.VideoURL = video
		} else if video != "" && res.VideoURL != video {
			s.logger.Warn("resource already has a video, ignoring new one",
				"resource_id", resourceID, "ignored_url", video)
		}
		res.Status = MediaStatusReady
		return s.resources.UpdateMediaResource(ctx, res)
	})
	if err != nil {
		s.failResource(ctx, resourceID)
		return fmt.Errorf("attaching media to resource %s: %w", resourceID, err)
	}

	s.logger.Info("media processing complete",
		"resource_id", resourceID, "images", len(images), "has_video", video != "")
	return nil
}

// classifyMediaURLs splits uploaded URLs into images and at most one video,
// dropping anything suspicious or unclassifiable.
func (s *service) classifyMediaURLs(resourceID uuid.UUID, urls []string) (images []string, video string) {
	for _, u := range urls {
		if suspiciousMediaURL(u) {
			s.logger.Warn("dropping suspicious media url", "resource_id", resourceID, "url", sanitizeForLog(u))
			continue
		}
		ext := fileExtension(u)
		switch {
		case s.policy.IsVideoExtension(ext):
			if video == "" {
				video = u
			} else {
				s.logger.Warn("dropping extra video in batch", "resource_id", resourceID, "url", sanitizeForLog(u))
			}
		case s.policy.IsImageExtension(ext):
			images = append(images, u)
		default:
			s.logger.Warn("dropping unclassifiable media url", "resource_id", resourceID, "url", sanitizeForLog(u))
		}
	}
	return images, video
}

// failResource drives the resource to FAILED. If even that write cannot land
// the resource is left in PROCESSING and the failure is logged; operators
// can tell a stuck PROCESSING from a READY.
func (s *service) failResource(ctx context.Context, resourceID uuid.UUID) {
	err := RetryOnConflict(ctx, s.retry, func(err error) bool { return errors.Is(err, ErrConflict) }, func() error {
		res, err := s.resources.GetMediaResource(ctx, resourceID)
		if err != nil {
			return err
		}
		res.Status = MediaStatusFailed
		return s.resources.UpdateMediaResource(ctx, res)
	})
	if err != nil {
		s.logger.Error("could not mark resource failed, leaving it in processing",
			"resource_id", resourceID, "error", err)
	}
}

// suspiciousMediaURL flags traversal sequences and script extensions that
// have no business appearing in a stored media URL.
func suspiciousMediaURL(u string) bool {
	l := strings.ToLower(u)
	if strings.Contains(l, "..") || strings.Contains(l, "%2e%2e") {
		return true
	}
	for _, marker := range []string{".exe", ".sh", ".bat", ".php", ".jsp"} {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
