package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/doorman/internal/auth"
	"github.com/spec-kit/doorman/internal/observability"
)

// PrincipalHeader tells the upstream who the caller is. Any client-supplied
// value is removed before authentication.
const PrincipalHeader = "X-Auth-Principal"

// CacheHeader reports HIT or MISS for cacheable requests.
const CacheHeader = "X-Cache"

// FilterKind identifies what a filter does.
type FilterKind int

const (
	// Authenticate rejects requests without a valid bearer token.
	Authenticate FilterKind = iota + 1
	// CacheFetch answers matching GETs from the archive.
	CacheFetch
	// CacheUpdate archives successful upstream responses to matching GETs.
	CacheUpdate
)

func (k FilterKind) String() string {
	switch k {
	case Authenticate:
		return "authenticate"
	case CacheFetch:
		return "cache-fetch"
	case CacheUpdate:
		return "cache-update"
	default:
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
}

func (k FilterKind) postPhase() bool {
	return k == CacheUpdate
}

// Filter is one pipeline stage. Path is required for cache kinds and is
// matched exactly against the request path.
//
// Cache entries are keyed by path and query only, so one caller's response is
// served to every other caller. Set PerPrincipal when the upstream answer
// depends on X-Auth-Principal; the key then includes the authenticated
// principal, and an Authenticate filter must run first.
type Filter struct {
	Kind         FilterKind
	Order        int
	Path         string
	PerPrincipal bool
}

func (f Filter) matches(c *fiber.Ctx) bool {
	return c.Method() == fiber.MethodGet && c.Path() == f.Path
}

// DefaultFilters authenticates every request and caches the given paths with
// one shared entry per URL. Responses on these paths must not vary by caller.
func DefaultFilters(cachePaths []string) []Filter {
	return CachingFilters(cachePaths, nil)
}

// CachingFilters is DefaultFilters plus private paths cached per principal.
func CachingFilters(shared, private []string) []Filter {
	filters := []Filter{{Kind: Authenticate, Order: 1}}
	add := func(i int, path string, perPrincipal bool) {
		filters = append(filters,
			Filter{Kind: CacheFetch, Order: 2 + i, Path: path, PerPrincipal: perPrincipal},
			Filter{Kind: CacheUpdate, Order: 100 + i, Path: path, PerPrincipal: perPrincipal},
		)
	}
	for i, path := range shared {
		add(i, path, false)
	}
	for i, path := range private {
		add(len(shared)+i, path, true)
	}
	return filters
}

// PipelineDeps holds the collaborators filters need.
type PipelineDeps struct {
	Tokens  auth.TokenParser
	Archive Archive
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Pipeline runs filters around the next handler.
type Pipeline struct {
	pre     []Filter
	post    []Filter
	tokens  auth.TokenParser
	archive Archive
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewPipeline validates filters and orders them. Filters with equal Order keep
// their relative position.
func NewPipeline(filters []Filter, deps PipelineDeps) (*Pipeline, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sorted := make([]Filter, len(filters))
	copy(sorted, filters)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	p := &Pipeline{tokens: deps.Tokens, archive: deps.Archive, logger: logger, metrics: deps.Metrics}
	authenticated := false
	for _, f := range sorted {
		switch f.Kind {
		case Authenticate:
			if deps.Tokens == nil {
				return nil, errors.New("authenticate filter requires a token parser")
			}
			authenticated = true
		case CacheFetch, CacheUpdate:
			if f.PerPrincipal && !authenticated {
				return nil, fmt.Errorf("per-principal %s filter for %s must follow an authenticate filter", f.Kind, f.Path)
			}
			if !strings.HasPrefix(f.Path, "/") {
				return nil, fmt.Errorf("%s filter requires an absolute path, got %q", f.Kind, f.Path)
			}
			if deps.Archive == nil {
				return nil, fmt.Errorf("%s filter requires an archive", f.Kind)
			}
		default:
			return nil, fmt.Errorf("unknown filter kind %s", f.Kind)
		}

		if f.Kind.postPhase() {
			p.post = append(p.post, f)
		} else {
			p.pre = append(p.pre, f)
		}
	}
	return p, nil
}

// Handle is the fiber handler for the pipeline.
func (p *Pipeline) Handle(c *fiber.Ctx) error {
	c.Request().Header.Del(PrincipalHeader)
	// computed before the upstream runs; proxying rewrites the request URI
	key := requestKey(c)
	missed := false

	for _, f := range p.pre {
		switch f.Kind {
		case Authenticate:
			principal, err := auth.Authenticate(p.tokens, c.Get(fiber.HeaderAuthorization))
			if err != nil {
				p.metrics.RecordToken(observability.TokenRejected)
				return err
			}
			p.metrics.RecordToken(observability.TokenAccepted)
			auth.SetPrincipal(c, principal)
			c.Request().Header.Set(PrincipalHeader, principal)
		case CacheFetch:
			if !f.matches(c) {
				continue
			}
			if entry, ok := p.fetch(c, f, filterKey(c, f, key)); ok {
				c.Set(CacheHeader, "HIT")
				if entry.ContentType != "" {
					c.Set(fiber.HeaderContentType, entry.ContentType)
				}
				return c.Status(fiber.StatusOK).SendString(entry.Body)
			}
			missed = true
		}
	}

	if err := c.Next(); err != nil {
		return err
	}
	if missed {
		c.Set(CacheHeader, "MISS")
	}

	for _, f := range p.post {
		if f.Kind == CacheUpdate && f.matches(c) {
			p.update(c, f, filterKey(c, f, key))
		}
	}
	return nil
}

func (p *Pipeline) fetch(c *fiber.Ctx, f Filter, key string) (ArchiveEntry, bool) {
	entry, found, err := p.archive.Search(c.UserContext(), key)
	switch {
	case err != nil:
		p.metrics.RecordCache(f.Path, "error")
		p.logger.Warn("cache lookup failed", zap.String("path", f.Path), zap.Error(err))
		return ArchiveEntry{}, false
	case !found:
		p.metrics.RecordCache(f.Path, "miss")
		return ArchiveEntry{}, false
	}
	p.metrics.RecordCache(f.Path, "hit")
	return entry, true
}

func (p *Pipeline) update(c *fiber.Ctx, f Filter, key string) {
	status := c.Response().StatusCode()
	if status < 200 || status >= 300 {
		return
	}

	entry := ArchiveEntry{
		ContentType: string(c.Response().Header.ContentType()),
		Body:        string(c.Response().Body()),
	}
	if err := p.archive.Store(c.UserContext(), key, entry); err != nil {
		p.metrics.RecordCache(f.Path, "error")
		p.logger.Warn("cache store failed", zap.String("path", f.Path), zap.Error(err))
		return
	}
	p.metrics.RecordCache(f.Path, "store")
}

// filterKey scopes key to the caller for per-principal filters. Shared keys
// start with "/", so the "~" prefix cannot collide with them.
func filterKey(c *fiber.Ctx, f Filter, key string) string {
	if !f.PerPrincipal {
		return key
	}
	principal, _ := auth.PrincipalFromContext(c)
	return "~" + url.QueryEscape(principal) + key
}

func requestKey(c *fiber.Ctx) string {
	query := url.Values{}
	c.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
		query.Add(string(key), string(value))
	})
	return CacheKey(c.Path(), query)
}
