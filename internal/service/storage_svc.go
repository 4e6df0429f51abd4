package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"listing_wizard_v1/internal/form"
)

// defaultUploadConcurrency 批量上传时同时进行的单图上传数
const defaultUploadConcurrency = 4

// ==================== 接口定义 ====================

// StorageProvider 存储提供者接口
type StorageProvider interface {
	// Upload 上传文件到 folder 下，返回公开访问URL
	Upload(ctx context.Context, data []byte, folder, filename, contentType string) (url string, err error)

	// Delete 删除文件
	Delete(ctx context.Context, url string) error

	// PublicURL 存储相对路径对应的公开URL
	PublicURL(key string) string
}

// Uploader 批量上传与单张删除接口
type Uploader interface {
	UploadMany(ctx context.Context, files []UploadFile, bucket string) ([]string, error)
	Delete(ctx context.Context, url string) error
}

// UploadFile 待上传的图片
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ==================== 配置 ====================

type StorageConfig struct {
	Provider    string // "s3" | "local"
	Bucket      string
	Region      string
	AccessKey   string
	SecretKey   string
	Endpoint    string // 自定义端点 (S3 兼容存储，如 COS/MinIO)；本地存储时为访问前缀
	CDNDomain   string // CDN域名 (可选)
	BasePath    string // 基础路径前缀；本地存储时为磁盘目录
	Concurrency int    // 批量上传并发数
}

// ==================== 工厂方法 ====================

func NewStorageProvider(cfg StorageConfig) (StorageProvider, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3Storage(cfg)
	case "local", "":
		return NewLocalStorage(cfg)
	default:
		return nil, fmt.Errorf("不支持的存储提供者: %s", cfg.Provider)
	}
}

// ==================== StorageService ====================

// StorageService 图片上传与图片URL归一化
type StorageService struct {
	provider    StorageProvider
	concurrency int
	logger      *zap.Logger
}

// NewStorageService 创建存储服务
func NewStorageService(cfg StorageConfig, logger *zap.Logger) (*StorageService, error) {
	provider, err := NewStorageProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewStorageServiceWithProvider(provider, cfg.Concurrency, logger), nil
}

// NewStorageServiceWithProvider 使用已有的 Provider 创建存储服务
func NewStorageServiceWithProvider(provider StorageProvider, concurrency int, logger *zap.Logger) *StorageService {
	if concurrency <= 0 {
		concurrency = defaultUploadConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorageService{provider: provider, concurrency: concurrency, logger: logger}
}

// Delete 删除已上传的图片
func (s *StorageService) Delete(ctx context.Context, url string) error {
	if err := s.provider.Delete(ctx, url); err != nil {
		return fmt.Errorf("删除图片失败: %w", err)
	}
	return nil
}

// UploadMany 并发上传多张图片，返回成功的URL（保持输入顺序）
// 部分失败时同时返回已成功的URL和第一个错误
func (s *StorageService) UploadMany(ctx context.Context, files []UploadFile, bucket string) ([]string, error) {
	urls := make([]string, len(files))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, f := range files {
		g.Go(func() error {
			contentType := f.ContentType
			if contentType == "" {
				contentType = http.DetectContentType(f.Data)
			}
			if !strings.HasPrefix(contentType, "image/") {
				return fmt.Errorf("%s 不是图片: %s", f.Filename, contentType)
			}

			url, err := s.provider.Upload(ctx, f.Data, bucket, f.Filename, contentType)
			if err != nil {
				s.logger.Warn("图片上传失败", zap.String("filename", f.Filename), zap.Error(err))
				return fmt.Errorf("上传 %s 失败: %w", f.Filename, err)
			}
			urls[i] = url
			return nil
		})
	}
	err := g.Wait()

	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			out = append(out, u)
		}
	}
	return out, err
}

// NormalizePhotoURL 存储相对路径改写为公开URL；绝对URL与本地预览图原样返回
func (s *StorageService) NormalizePhotoURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case form.IsTransientPhoto(raw):
		return raw
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	}
	return s.provider.PublicURL(strings.TrimPrefix(raw, "/"))
}

// ==================== S3 实现 ====================

type S3Storage struct {
	client    *s3.Client
	bucket    string
	region    string
	endpoint  string
	cdnDomain string
	basePath  string
}

func NewS3Storage(cfg StorageConfig) (*S3Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("加载AWS配置失败: %v", err)
	}

	// S3 兼容存储走自定义端点 + path style
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
		cdnDomain: cfg.CDNDomain,
		basePath:  cfg.BasePath,
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, data []byte, folder, filename, contentType string) (string, error) {
	key := generateKey(s.basePath, folder, filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("上传S3失败: %v", err)
	}

	return s.PublicURL(key), nil
}

func (s *S3Storage) Delete(ctx context.Context, url string) error {
	key := s.extractKey(url)
	if key == "" {
		return fmt.Errorf("无法解析文件路径")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3Storage) PublicURL(key string) string {
	switch {
	case s.cdnDomain != "":
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	case s.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *S3Storage) extractKey(url string) string {
	if s.cdnDomain != "" && strings.Contains(url, s.cdnDomain) {
		return strings.TrimPrefix(url, fmt.Sprintf("https://%s/", s.cdnDomain))
	}
	if s.endpoint != "" && strings.HasPrefix(url, s.endpoint) {
		return strings.TrimPrefix(url, fmt.Sprintf("%s/%s/", s.endpoint, s.bucket))
	}
	prefix := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", s.bucket, s.region)
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

// ==================== 本地存储 (开发测试用) ====================

type LocalStorage struct {
	basePath string
	baseURL  string
}

func NewLocalStorage(cfg StorageConfig) (*LocalStorage, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "./uploads"
	}
	baseURL := strings.TrimSuffix(cfg.Endpoint, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080/uploads"
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("创建本地存储目录失败: %v", err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  baseURL,
	}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, data []byte, folder, filename, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := generateKey("", folder, filename)
	full := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("创建目录失败: %v", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("写入文件失败: %v", err)
	}
	return s.PublicURL(key), nil
}

func (s *LocalStorage) Delete(ctx context.Context, url string) error {
	key := strings.TrimPrefix(url, s.baseURL+"/")
	if key == url || key == "" {
		return fmt.Errorf("无法解析文件路径")
	}
	err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStorage) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, key)
}

// ==================== 工具函数 ====================

// generateKey 生成对象路径：[base/]folder/yyyy/mm/dd/uuid.ext
func generateKey(base, folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	newFilename := uuid.New().String() + ext
	datePath := time.Now().Format("2006/01/02")

	parts := make([]string, 0, 4)
	for _, p := range []string{base, folder} {
		if p = strings.Trim(p, "/"); p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, datePath, newFilename)
	return path.Join(parts...)
}
