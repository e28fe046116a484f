package media

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"pubcash-backend/pkg/config"
	"pubcash-backend/pkg/errutil"
	"pubcash-backend/pkg/ffmpeg"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/minio/minio-go/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	cfg   *config.Config
	node  *snowflake.Node
	store *minio.Client
}

type ServiceParams struct {
	fx.In
	Config *config.Config
	Node   *snowflake.Node
	Store  *minio.Client
}

func NewService(p ServiceParams) *Service {
	return &Service{
		cfg:   p.Config,
		node:  p.Node,
		store: p.Store,
	}
}

type VideoUploadResult struct {
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	DurationSec  int    `json:"duration_sec"`
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".webm": true, ".mkv": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

// UploadVideo stores the uploaded video and an extracted thumbnail,
// returning the probed duration used to bind the promotion to a pack.
func (s *Service) UploadVideo(ctx context.Context, ownerID string, file *multipart.FileHeader) (*VideoUploadResult, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !videoExtensions[ext] {
		return nil, errutil.UnsupportedMediaType("unsupported video format", nil)
	}

	tmpDir, err := os.MkdirTemp("", "pubcash-upload-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	localPath := filepath.Join(tmpDir, "source"+ext)
	if err := saveMultipart(file, localPath); err != nil {
		return nil, err
	}

	durationSec, err := ffmpeg.ProbeDuration(localPath)
	if err != nil {
		zap.L().Warn("failed to probe video duration", zap.Error(err))
		return nil, errutil.UnprocessableEntity("could not read video duration", nil, errutil.WithErr(err))
	}

	thumbPath := filepath.Join(tmpDir, "thumb.jpg")
	if err := ffmpeg.ExtractThumbnail(localPath, thumbPath, durationSec/10); err != nil {
		zap.L().Warn("failed to extract thumbnail", zap.Error(err))
		thumbPath = ""
	}

	key := s.objectKey(ownerID, "videos", file.Filename, ext)
	videoURL, err := s.put(ctx, key, localPath, "video/"+strings.TrimPrefix(ext, "."))
	if err != nil {
		return nil, err
	}

	var thumbnailURL string
	if thumbPath != "" {
		thumbKey := strings.TrimSuffix(key, ext) + "-thumb.jpg"
		thumbnailURL, err = s.put(ctx, thumbKey, thumbPath, "image/jpeg")
		if err != nil {
			zap.L().Warn("failed to store thumbnail", zap.Error(err))
			thumbnailURL = ""
		}
	}

	return &VideoUploadResult{
		VideoURL:     videoURL,
		ThumbnailURL: thumbnailURL,
		DurationSec:  int(durationSec),
	}, nil
}

// UploadImage stores a profile or background image.
func (s *Service) UploadImage(ctx context.Context, ownerID, kind string, file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !imageExtensions[ext] {
		return "", errutil.UnsupportedMediaType("unsupported image format", nil)
	}

	tmpFile, err := os.CreateTemp("", "pubcash-image-*"+ext)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	if err := saveMultipart(file, tmpFile.Name()); err != nil {
		return "", err
	}

	contentType := "image/jpeg"
	if ext == ".png" {
		contentType = "image/png"
	} else if ext == ".webp" {
		contentType = "image/webp"
	}

	key := s.objectKey(ownerID, kind, file.Filename, ext)
	return s.put(ctx, key, tmpFile.Name(), contentType)
}

func (s *Service) objectKey(ownerID, prefix, filename, ext string) string {
	base := slug.Make(strings.TrimSuffix(filepath.Base(filename), ext))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s/%s/%s-%s%s", prefix, ownerID, base, s.node.Generate().String(), ext)
}

func (s *Service) put(ctx context.Context, key, localPath, contentType string) (string, error) {
	_, err := s.store.FPutObject(ctx, s.cfg.Minio.BucketName, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		zap.L().Error("failed to store object", zap.String("key", key), zap.Error(err))
		return "", errutil.Internal("failed to store file", err, errutil.WithErr(err))
	}

	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.cfg.Platform.BaseURL, "/"), s.cfg.Minio.BucketName, key), nil
}

func saveMultipart(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(src); err != nil {
		return err
	}
	return out.Sync()
}
