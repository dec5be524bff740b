package publish

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ffyyc/web/internal/errors"
	"github.com/ffyyc/web/internal/telemetry"
	"github.com/ffyyc/web/pkg/assets"
)

// ObjectPutter uploads one object. *s3.Client satisfies it.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

const (
	cacheNoCache   = "no-cache"
	cacheImmutable = "public, max-age=31536000, immutable"
	cacheDefault   = "public, max-age=3600"
)

// DefaultConcurrency is the number of parallel uploads.
const DefaultConcurrency = 4

// Options configures a Publisher.
type Options struct {
	// Bucket receives the objects. Required.
	Bucket string

	// Prefix is prepended to every key, joined with "/".
	Prefix string

	// Concurrency bounds parallel uploads (default DefaultConcurrency).
	Concurrency int

	// DryRun plans the upload without calling the putter.
	DryRun bool

	// Notifier announces a successful upload. Nil skips it.
	Notifier Notifier

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Object is one uploaded file.
type Object struct {
	Key          string
	Path         string
	Size         int64
	ContentType  string
	CacheControl string
}

// Report summarizes a publish.
type Report struct {
	Bucket   string
	Prefix   string
	Objects  []Object
	Bytes    int64
	Duration time.Duration
	DryRun   bool
}

// Publisher uploads a build output directory.
type Publisher struct {
	client ObjectPutter
	opts   Options
	logger *slog.Logger
}

// New creates a Publisher. client may be nil for dry runs.
func New(client ObjectPutter, opts Options) (*Publisher, error) {
	if opts.Bucket == "" {
		return nil, errors.New("E160").
			WithDetail("No bucket configured").
			WithSuggestion("Pass --bucket or set publish.bucket in the project file")
	}
	if client == nil && !opts.DryRun {
		return nil, errors.New("E160").WithDetail("No S3 client configured")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	opts.Prefix = strings.Trim(opts.Prefix, "/")
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{client: client, opts: opts, logger: logger}, nil
}

// Plan lists the objects a publish of dir would write, sorted by key.
func (p *Publisher) Plan(dir string) ([]Object, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.New("E160").
			WithDetail("Build output " + dir + " not found").
			WithSuggestion("Run ffyyc build first")
	}

	var objects []Object
	err = filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		objects = append(objects, Object{
			Key:          objectKey(p.opts.Prefix, rel),
			Path:         file,
			Size:         fi.Size(),
			ContentType:  ContentType(rel),
			CacheControl: CacheControl(rel),
		})
		return nil
	})
	if err != nil {
		return nil, errors.New("E160").Wrap(err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Publish uploads every file below dir and then notifies. The no-cache
// entry points (index.html and the manifest) go up only after every other
// object has, so they never reference files the bucket lacks. A failed
// upload cancels the rest; a failed notification is returned as E161
// alongside the report.
func (p *Publisher) Publish(ctx context.Context, dir string) (report *Report, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "publish",
		attribute.String("publish.bucket", p.opts.Bucket),
		attribute.String("publish.prefix", p.opts.Prefix),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	objects, err := p.Plan(dir)
	if err != nil {
		return nil, err
	}

	report = &Report{
		Bucket:  p.opts.Bucket,
		Prefix:  p.opts.Prefix,
		Objects: objects,
		DryRun:  p.opts.DryRun,
	}
	for _, o := range objects {
		report.Bytes += o.Size
	}

	if !p.opts.DryRun {
		if err := p.upload(ctx, objects); err != nil {
			return nil, err
		}
	}
	report.Duration = time.Since(start)

	p.logger.Info("published",
		slog.String("bucket", p.opts.Bucket),
		slog.String("prefix", p.opts.Prefix),
		slog.Int("objects", len(objects)),
		slog.Int64("bytes", report.Bytes),
		slog.Bool("dry_run", p.opts.DryRun),
	)

	if p.opts.Notifier != nil && !p.opts.DryRun {
		if err := p.opts.Notifier.NotifyPublished(ctx, report); err != nil {
			return report, errors.New("E161").Wrap(err)
		}
	}
	return report, nil
}

func (p *Publisher) upload(ctx context.Context, objects []Object) error {
	var files, entries []Object
	for _, o := range objects {
		if o.CacheControl == cacheNoCache {
			entries = append(entries, o)
		} else {
			files = append(files, o)
		}
	}
	if err := p.uploadGroup(ctx, files); err != nil {
		return err
	}
	return p.uploadGroup(ctx, entries)
}

// uploadGroup uploads objects in parallel, stopping at the first failure.
func (p *Publisher) uploadGroup(ctx context.Context, objects []Object) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	var mu sync.Mutex
	var failed string
	for _, o := range objects {
		g.Go(func() error {
			if err := p.put(ctx, o); err != nil {
				mu.Lock()
				if failed == "" {
					failed = o.Key
				}
				mu.Unlock()
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.New("E160").
			WithDetail("Uploading " + failed + " to s3://" + p.opts.Bucket + " failed").
			Wrap(err)
	}
	return nil
}

func (p *Publisher) put(ctx context.Context, o Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(o.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.opts.Bucket),
		Key:           aws.String(o.Key),
		Body:          f,
		ContentLength: aws.Int64(o.Size),
		ContentType:   aws.String(o.ContentType),
		CacheControl:  aws.String(o.CacheControl),
	})
	if err != nil {
		return err
	}
	p.opts.Metrics.FileUploaded(o.Size)
	p.logger.Debug("uploaded", slog.String("key", o.Key), slog.Int64("size", o.Size))
	return nil
}

func objectKey(prefix, rel string) string {
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".json":  "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",
}

// ContentType returns the content type for a file name.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := contentTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// CacheControl returns the Cache-Control value for a file name relative to
// the output root.
func CacheControl(rel string) string {
	switch {
	case rel == "index.html" || rel == assets.FileName:
		return cacheNoCache
	case assets.IsFingerprinted(rel):
		return cacheImmutable
	default:
		return cacheDefault
	}
}
