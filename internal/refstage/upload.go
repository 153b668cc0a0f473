package refstage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadIndexDir uploads every file under localDir to the S3 prefix named
// by remoteDir, the inverse of StageIndexDir, run once an index build
// task's local output directory needs to be shared with other workers.
// remoteDir must be an "s3://bucket/key" URI; localDir is a plain local
// path.
func (s *Stager) UploadIndexDir(ctx context.Context, localDir, remoteDir string) error {
	if !IsRemote(remoteDir) {
		return fmt.Errorf("refstage: upload target %q is not an s3:// uri", remoteDir)
	}

	bucket, prefix, err := splitURI(remoteDir)
	if err != nil {
		return err
	}

	return filepath.WalkDir(localDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		key := prefix + "/" + filepath.ToSlash(rel)

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		s.logger.Info("uploading index file", "bucket", bucket, "key", key, "src", path)

		_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: &bucket,
			Key:    &key,
			Body:   f,
		})
		if err != nil {
			return fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
		}
		return nil
	})
}
