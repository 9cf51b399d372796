// Package assetorigin implements the conditional-request and cache-policy
// engine of a content-delivery origin: for every asset read it decides
// whether the client's cached copy is still valid, which Cache-Control
// directives to emit, and how private content is gated by access tokens.
package assetorigin

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/asset-origin/asset-origin/blob"
	"github.com/asset-origin/asset-origin/cdn"
	"github.com/asset-origin/asset-origin/pkg/clock"
	keyedlock "github.com/asset-origin/asset-origin/pkg/keyed-lock"
	"github.com/asset-origin/asset-origin/registry"
	"github.com/asset-origin/asset-origin/token"
)

const (
	defaultTokenTTL    = time.Hour
	defaultUploadLimit = 64 << 20
	defaultBlobRetries = 2
)

// Config wires an Origin instance.
type Config struct {
	// Repository persists asset, version and token metadata.
	Repository registry.Repository
	// Blobs stores content bytes.
	Blobs blob.Store
	// Purger receives invalidation signals after publishes. Optional.
	Purger cdn.Purger
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Clock used for timestamps and token expiry. Defaults to the system
	// clock.
	Clock clock.Clock
	// PublicBaseURL is the externally visible base URL, used in returned
	// version URLs and purge signals.
	PublicBaseURL string
	// DefaultTokenTTL applies when token issuance does not specify one.
	DefaultTokenTTL time.Duration
	// MaxUploadBytes caps upload request bodies. Zero means 64 MiB.
	MaxUploadBytes int64
	// AllowReplaceAfterPublish permits replacing latest-content assets
	// that already have published versions.
	AllowReplaceAfterPublish bool
	// BlobWriteRetries bounds transient blob write retries.
	BlobWriteRetries uint64
}

// Origin is the origin-side decision engine. It implements http.Handler.
type Origin struct {
	registry        *registry.Registry
	repo            registry.Repository
	blobs           *blob.Retrier
	tokens          *token.Store
	purger          cdn.Purger
	locks           *keyedlock.Table
	clock           clock.Clock
	log             zerolog.Logger
	router          chi.Router
	baseURL         string
	defaultTokenTTL time.Duration
	maxUploadBytes  int64
}

// CreateOrigin initializes the origin engine and its HTTP surface.
func CreateOrigin(config Config) *Origin {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.System()
	}

	retries := config.BlobWriteRetries
	if retries == 0 {
		retries = defaultBlobRetries
	}
	blobs := blob.NewRetrier(config.Blobs, retries)

	// one lock table for all mutating operations, so replace, delete and
	// publish on the same asset exclude each other
	locks := keyedlock.New()

	reg := registry.New(registry.Config{
		Repository:               config.Repository,
		Blobs:                    blobs,
		Locks:                    locks,
		Clock:                    clk,
		Logger:                   logger,
		AllowReplaceAfterPublish: config.AllowReplaceAfterPublish,
	})

	purger := config.Purger
	if purger == nil {
		purger = cdn.NopPurger{}
	}

	tokenTTL := config.DefaultTokenTTL
	if tokenTTL == 0 {
		tokenTTL = defaultTokenTTL
	}
	uploadLimit := config.MaxUploadBytes
	if uploadLimit == 0 {
		uploadLimit = defaultUploadLimit
	}

	o := &Origin{
		registry:        reg,
		repo:            config.Repository,
		blobs:           blobs,
		tokens:          token.NewStore(config.Repository, clk, logger),
		purger:          purger,
		locks:           locks,
		clock:           clk,
		log:             logger,
		baseURL:         config.PublicBaseURL,
		defaultTokenTTL: tokenTTL,
		maxUploadBytes:  uploadLimit,
	}
	o.router = o.routes()
	return o
}

// Registry exposes the asset registry, e.g. for administrative tooling.
func (o *Origin) Registry() *registry.Registry {
	return o.registry
}

// Tokens exposes the access token store.
func (o *Origin) Tokens() *token.Store {
	return o.tokens
}

// ServeHTTP implements the http.Handler interface.
func (o *Origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.router.ServeHTTP(w, r)
}
