package refstage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// StagedReference is a reference's three artifact kinds with every remote
// path resolved to a local one, ready for a mapper or index builder to
// read directly.
type StagedReference struct {
	SequencePath   string
	AnnotationPath string // "" when the reference carries no annotation
}

// StageSequenceAndAnnotation ensures seqPath and (if set) annPath are
// present on local scratch, downloading from S3 when either is remote.
// Local paths are returned unchanged.
func (s *Stager) StageSequenceAndAnnotation(ctx context.Context, seqPath, annPath string) (*StagedReference, error) {
	staged := &StagedReference{}

	localSeq, err := s.stageOne(ctx, seqPath)
	if err != nil {
		return nil, fmt.Errorf("refstage: stage sequence: %w", err)
	}
	staged.SequencePath = localSeq

	if annPath != "" {
		localAnn, err := s.stageOne(ctx, annPath)
		if err != nil {
			return nil, fmt.Errorf("refstage: stage annotation: %w", err)
		}
		staged.AnnotationPath = localAnn
	}

	return staged, nil
}

// stageOne downloads path into scratch if it names an S3 object, or
// returns it unchanged if it is already local.
func (s *Stager) stageOne(ctx context.Context, path string) (string, error) {
	if !IsRemote(path) {
		return path, nil
	}

	bucket, key, err := splitURI(path)
	if err != nil {
		return "", err
	}

	dest := s.localPathFor(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("create parent dir for %s: %w", dest, err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	defer f.Close()

	s.logger.Info("staging reference artifact", "bucket", bucket, "key", key, "dest", dest)

	if _, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}); err != nil {
		return "", fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}

	return dest, nil
}

// StageArgs rewrites every s3:// token in args to its locally-staged path,
// downloading each referenced object at most once. Used by a worker before
// running a DispatchTask's synthesised command: the planner's command
// synthesiser embeds reference file paths verbatim into the argv, so
// staging happens by scanning the already-built command rather than by
// re-deriving which artifact each argument is.
func (s *Stager) StageArgs(ctx context.Context, args []string) ([]string, error) {
	staged := make([]string, len(args))
	cache := make(map[string]string)

	for i, arg := range args {
		if !IsRemote(arg) {
			staged[i] = arg
			continue
		}
		if local, ok := cache[arg]; ok {
			staged[i] = local
			continue
		}
		local, err := s.stageOne(ctx, arg)
		if err != nil {
			return nil, fmt.Errorf("refstage: stage command argument %q: %w", arg, err)
		}
		cache[arg] = local
		staged[i] = local
	}
	return staged, nil
}

// StageIndexDir ensures a mapper index directory is present on local
// scratch, downloading every object under indexDir's key prefix when
// indexDir is remote. Returns the local directory path the mapper should
// read the index from.
func (s *Stager) StageIndexDir(ctx context.Context, indexDir string) (string, error) {
	if !IsRemote(indexDir) {
		return indexDir, nil
	}

	bucket, prefix, err := splitURI(indexDir)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	localDir := s.localPathFor(prefix)
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return "", fmt.Errorf("create index dir %s: %w", localDir, err)
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &bucket,
		Prefix: &prefix,
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := *obj.Key
			relKey := strings.TrimPrefix(key, prefix)
			if relKey == "" {
				continue
			}
			dest := filepath.Join(localDir, filepath.FromSlash(relKey))
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return "", fmt.Errorf("create parent dir for %s: %w", dest, err)
			}
			f, err := os.Create(dest)
			if err != nil {
				return "", fmt.Errorf("create %s: %w", dest, err)
			}
			_, downloadErr := s.downloader.Download(ctx, f, &s3.GetObjectInput{
				Bucket: &bucket,
				Key:    &key,
			})
			f.Close()
			if downloadErr != nil {
				return "", fmt.Errorf("download s3://%s/%s: %w", bucket, key, downloadErr)
			}
		}
	}

	s.logger.Info("staged index directory", "bucket", bucket, "prefix", prefix, "dest", localDir)
	return localDir, nil
}
