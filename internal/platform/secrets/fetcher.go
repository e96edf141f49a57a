package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const refPrefix = "secret://"

// ErrNotSecretRef is returned when the supplied value is not a secret:// reference.
var ErrNotSecretRef = errors.New("secrets: value is not a secret reference")

var clientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references via Google Secret Manager, caching
// each resolved version for the lifetime of the process.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger
	projectID  string

	mu    sync.RWMutex
	cache map[string]string
}

type fetcherConfig struct {
	logger    *zap.Logger
	projectID string
	client    secretManagerClient
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithDefaultProject configures the project used for short secret names.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.projectID = strings.TrimSpace(projectID)
	}
}

// WithClient injects a pre-built Secret Manager client, mainly for tests.
func WithClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// NewFetcher builds a Fetcher, dialling Secret Manager unless a client was injected.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &Fetcher{
		client:    cfg.client,
		logger:    cfg.logger,
		projectID: cfg.projectID,
		cache:     map[string]string{},
	}
	if f.client == nil {
		client, err := clientFactory(ctx)
		if err != nil {
			return nil, fmt.Errorf("secrets: dial secret manager: %w", err)
		}
		f.client = client
		f.ownsClient = true
	}
	return f, nil
}

// IsRef reports whether value looks like a secret:// reference.
func IsRef(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), refPrefix)
}

// Resolve returns the payload behind a secret:// reference. Values without
// the prefix are rejected with ErrNotSecretRef so callers can pass raw
// environment values straight through.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, refPrefix) {
		return "", ErrNotSecretRef
	}

	name, err := f.canonicalName(strings.TrimPrefix(ref, refPrefix))
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	cached, ok := f.cache[name]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	value := string(resp.GetPayload().GetData())

	f.mu.Lock()
	f.cache[name] = value
	f.mu.Unlock()

	f.logger.Info("secret resolved", zap.String("secret", name))
	return value, nil
}

// Close releases the underlying client when this fetcher created it.
func (f *Fetcher) Close() error {
	if !f.ownsClient || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// canonicalName expands a short secret name into the full resource path.
// Fully qualified "projects/..." paths pass through, gaining a version
// suffix when missing.
func (f *Fetcher) canonicalName(raw string) (string, error) {
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return "", errors.New("secrets: empty secret reference")
	}
	if strings.HasPrefix(raw, "projects/") {
		if strings.Contains(raw, "/versions/") {
			return raw, nil
		}
		return raw + "/versions/latest", nil
	}
	if f.projectID == "" {
		return "", fmt.Errorf("secrets: no default project for short reference %q", raw)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", f.projectID, raw), nil
}
