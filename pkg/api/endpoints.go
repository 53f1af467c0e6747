package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/termindex/pkg/codesys"
	"github.com/hazyhaar/termindex/pkg/kit"
	"github.com/hazyhaar/termindex/pkg/textnorm"
)

// MaxBatchTexts bounds a batch search.
const MaxBatchTexts = 100

// ErrInvalidRequest marks caller mistakes; transports map it to 400.
var ErrInvalidRequest = errors.New("invalid request")

// Shared request/response types used by both HTTP and MCP transports.

type normalizeReq struct {
	Text     string
	Mode     string
	Language string
}

type normalizeResponse struct {
	Text       string   `json:"text"`
	Mode       string   `json:"mode"`
	Normalized string   `json:"normalized"`
	Tokens     []string `json:"tokens"`
}

type searchReq struct {
	Text string
	Opts *codesys.SearchOptions
}

type searchBatchReq struct {
	Texts []string
	Opts  *codesys.SearchOptions
}

type batchResponse struct {
	Results []*codesys.SearchResult `json:"results"`
}

type lookupReq struct {
	CodeSystem string
	Code       string
}

type expandReq struct {
	CodeSystem string
	codesys.ExpandRequest
}

type codeSystemsResponse struct {
	CodeSystems []codesys.CodeSystemInfo `json:"code_systems"`
}

// endpoints holds every action, wrapped with request-id and logging middleware.
type endpoints struct {
	normalize   kit.Endpoint
	search      kit.Endpoint
	searchBatch kit.Endpoint
	lookup      kit.Endpoint
	expand      kit.Endpoint
	listSystems kit.Endpoint
}

func newEndpoints(reg *codesys.Registry, logger *slog.Logger) *endpoints {
	wrap := func(name string, ep kit.Endpoint) kit.Endpoint {
		return kit.Chain(kit.RequestID(), kit.Logging(logger, name))(ep)
	}
	return &endpoints{
		normalize:   wrap("normalize", normalizeEndpoint()),
		search:      wrap("search", searchEndpoint(reg)),
		searchBatch: wrap("search_batch", searchBatchEndpoint(reg)),
		lookup:      wrap("lookup", lookupEndpoint(reg)),
		expand:      wrap("expand", expandEndpoint(reg)),
		listSystems: wrap("list_codesystems", listCodeSystemsEndpoint(reg)),
	}
}

func normalizeEndpoint() kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*normalizeReq)
		if !textnorm.IsMode(req.Mode) {
			return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
		}
		mode := req.Mode
		if mode == "" {
			mode = textnorm.ModeSearchIndex
		}
		normalized := textnorm.GetNormalizerForLanguage(mode, req.Language)(req.Text)
		tokens := textnorm.Tokens(normalized)
		if tokens == nil {
			tokens = []string{}
		}
		return normalizeResponse{
			Text:       req.Text,
			Mode:       mode,
			Normalized: normalized,
			Tokens:     tokens,
		}, nil
	}
}

func searchEndpoint(reg *codesys.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*searchReq)
		return reg.Search(req.Text, req.Opts), nil
	}
}

func searchBatchEndpoint(reg *codesys.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*searchBatchReq)
		if len(req.Texts) == 0 {
			return nil, fmt.Errorf("%w: texts array is empty", ErrInvalidRequest)
		}
		if len(req.Texts) > MaxBatchTexts {
			return nil, fmt.Errorf("%w: too many texts (max %d, got %d)", ErrInvalidRequest, MaxBatchTexts, len(req.Texts))
		}
		results := make([]*codesys.SearchResult, len(req.Texts))
		for i, text := range req.Texts {
			results[i] = reg.Search(text, req.Opts)
		}
		return batchResponse{Results: results}, nil
	}
}

func lookupEndpoint(reg *codesys.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*lookupReq)
		if req.CodeSystem == "" || req.Code == "" {
			return nil, fmt.Errorf("%w: code_system and code are required", ErrInvalidRequest)
		}
		return reg.Lookup(req.CodeSystem, req.Code)
	}
}

func expandEndpoint(reg *codesys.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*expandReq)
		if req.CodeSystem == "" {
			return nil, fmt.Errorf("%w: code_system is required", ErrInvalidRequest)
		}
		if req.Offset < 0 || req.Count < 0 {
			return nil, fmt.Errorf("%w: offset and count must not be negative", ErrInvalidRequest)
		}
		return reg.Expand(req.CodeSystem, req.ExpandRequest)
	}
}

func listCodeSystemsEndpoint(reg *codesys.Registry) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return codeSystemsResponse{CodeSystems: reg.ListCodeSystems()}, nil
	}
}
