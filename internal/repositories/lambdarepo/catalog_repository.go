package lambdarepo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"go.uber.org/zap"

	domain "github.com/laminate-navigator/api/internal/domain"
	"github.com/laminate-navigator/api/internal/platform/requestctx"
	"github.com/laminate-navigator/api/internal/repositories"
)

const catalogAction = "getLaminates"

// Invoker abstracts the AWS Lambda invoke call for testing.
type Invoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Options parameterise the Lambda-backed catalog source.
type Options struct {
	FunctionName    string
	PageSize        int
	FetchTimeout    time.Duration
	ProductLinkBase string
}

// CatalogRepository fetches the laminate catalog by invoking the database
// function synchronously, the way the reference deployment exposes it.
type CatalogRepository struct {
	invoker Invoker
	opts    Options
}

// NewCatalogRepository constructs the repository around an initialised Lambda client.
func NewCatalogRepository(invoker Invoker, opts Options) (*CatalogRepository, error) {
	if invoker == nil {
		return nil, fmt.Errorf("lambda catalog: invoker is required")
	}
	if strings.TrimSpace(opts.FunctionName) == "" {
		return nil, fmt.Errorf("lambda catalog: function name is required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 300
	}
	return &CatalogRepository{invoker: invoker, opts: opts}, nil
}

type invokeRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

type invokeEnvelope struct {
	Body      string                     `json:"body"`
	Laminates []repositories.RawLaminate `json:"laminates"`
}

type envelopeBody struct {
	Laminates []repositories.RawLaminate `json:"laminates"`
}

// FetchCatalog implements repositories.CatalogRepository.
func (r *CatalogRepository) FetchCatalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	logger := requestctx.Logger(ctx)

	if r.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.FetchTimeout)
		defer cancel()
	}

	payload, err := json.Marshal(invokeRequest{
		Action: catalogAction,
		Params: map[string]any{
			"category":    nil,
			"subcategory": nil,
			"page":        1,
			"pageSize":    r.opts.PageSize,
			"itemType":    "Laminates",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", repositories.ErrCatalogUnavailable, err)
	}

	out, err := r.invoker.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(r.opts.FunctionName),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invoke %s: %v", repositories.ErrCatalogUnavailable, r.opts.FunctionName, err)
	}
	if out.FunctionError != nil {
		return nil, fmt.Errorf("%w: function error: %s", repositories.ErrCatalogUnavailable, aws.ToString(out.FunctionError))
	}

	items, err := decodeLaminates(out.Payload)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty catalog payload", repositories.ErrCatalogUnavailable)
	}

	logger.Debug("catalog fetched from lambda", zap.Int("laminates", len(items)))
	return repositories.MapRawLaminates(items, r.opts.ProductLinkBase), nil
}

// decodeLaminates handles the nested response envelope: the function returns
// either the laminates directly or an API-Gateway style wrapper whose body is
// itself a JSON document.
func decodeLaminates(payload []byte) ([]repositories.RawLaminate, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty response payload", repositories.ErrCatalogUnavailable)
	}

	var envelope invokeEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", repositories.ErrCatalogUnavailable, err)
	}

	if len(envelope.Laminates) > 0 {
		return envelope.Laminates, nil
	}
	if strings.TrimSpace(envelope.Body) == "" {
		return nil, nil
	}

	var body envelopeBody
	if err := json.Unmarshal([]byte(envelope.Body), &body); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", repositories.ErrCatalogUnavailable, err)
	}
	return body.Laminates, nil
}
