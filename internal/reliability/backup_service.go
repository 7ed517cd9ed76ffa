// Package reliability provides data-directory backups to S3-compatible
// object storage.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"shisan/internal/config"
)

// BackupService archives the data directory and uploads it to a bucket
type BackupService struct {
	cfg     config.BackupConfig
	dataDir string
	client  *s3.Client
	log     zerolog.Logger
}

// NewBackupService creates a backup service from configuration.
// A custom endpoint supports R2, MinIO and other S3-compatible stores.
func NewBackupService(ctx context.Context, cfg config.BackupConfig, dataDir string, log zerolog.Logger) (*BackupService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &BackupService{
		cfg:     cfg,
		dataDir: dataDir,
		client:  client,
		log:     log.With().Str("service", "backup").Logger(),
	}, nil
}

// Backup creates a tar.gz of the data directory and uploads it
func (s *BackupService) Backup(ctx context.Context) error {
	s.log.Info().Msg("Starting backup")
	started := time.Now()

	stagingDir, err := os.MkdirTemp("", "shisan-backup-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	archiveName := fmt.Sprintf("shisan-%s.tar.gz", time.Now().UTC().Format("20060102-150405"))
	archivePath := filepath.Join(stagingDir, archiveName)

	if err := s.createArchive(archivePath); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	uploader := manager.NewUploader(s.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String("backups/" + archiveName),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Str("archive", archiveName).
		Int64("bytes", info.Size()).
		Dur("elapsed", time.Since(started)).
		Msg("Backup uploaded")

	return nil
}

// createArchive writes a tar.gz of every regular file in the data dir.
// WAL/SHM sidecars are skipped; sqlite checkpoints make the main file
// sufficient for a daily backup.
func (s *BackupService) createArchive(archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	return filepath.Walk(s.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, "-wal") || strings.HasSuffix(path, "-shm") {
			return nil
		}

		rel, err := filepath.Rel(s.dataDir, path)
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = rel

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(tw, file)
		return err
	})
}
