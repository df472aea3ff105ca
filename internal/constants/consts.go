package constants

import "time"

// Environment variable constants
const (
	EnvHost              = "STORE_HOST"
	EnvPort              = "STORE_PORT"
	EnvMetricsPort       = "STORE_METRICS_PORT"
	EnvReadTimeout       = "STORE_READ_TIMEOUT"
	EnvWriteTimeout      = "STORE_WRITE_TIMEOUT"
	EnvIdleTimeout       = "STORE_IDLE_TIMEOUT"
	EnvMaxRequestSize    = "STORE_MAX_REQUEST_SIZE"
	EnvShutdownTimeout   = "STORE_SHUTDOWN_TIMEOUT"
	EnvLogLevel          = "STORE_LOG_LEVEL"
	EnvLogFormat         = "STORE_LOG_FORMAT"
	EnvTemplatesDir      = "STORE_TEMPLATES_DIR"
	EnvHotReload         = "STORE_HOT_RELOAD"
	EnvHotReloadDebounce = "STORE_HOT_RELOAD_DEBOUNCE"
	EnvTLSEnabled        = "STORE_TLS_ENABLED"
	EnvTLSCertFile       = "STORE_TLS_CERT_FILE"
	EnvTLSKeyFile        = "STORE_TLS_KEY_FILE"

	// Sparebank OAuth client settings
	EnvOAuthClientID     = "SPAREBANK_OAUTH_CLIENT_ID"
	EnvOAuthClientSecret = "SPAREBANK_OAUTH_CLIENT_SECRET"
	EnvOAuthRedirectURI  = "SPAREBANK_OAUTH_REDIRECT_URI"
	EnvOAuthTokenURI     = "SPAREBANK_OAUTH_TOKEN_URI"
	EnvOAuthAuthorizeURI = "SPAREBANK_OAUTH_AUTHORIZE_URI"
	EnvOAuthFinInst      = "SPAREBANK_OAUTH_FIN_INST"
	EnvAccountsURL       = "SPAREBANK_API_ACCOUNTS_URL"
)

// HTTP method constants
const (
	MethodGET     = "GET"
	MethodPOST    = "POST"
	MethodOPTIONS = "OPTIONS"
	MethodHEAD    = "HEAD"
)

// HTTP header constants
const (
	HeaderAuthorization  = "Authorization"
	HeaderContentType    = "Content-Type"
	HeaderAccept         = "Accept"
	HeaderCacheControl   = "Cache-Control"
	HeaderXRequestedWith = "X-Requested-With"
	HeaderXRequestID     = "X-Request-ID"
	HeaderOrigin         = "Origin"
	HeaderXForwardedFor  = "X-Forwarded-For"
	HeaderXRealIP        = "X-Real-IP"
)

// Content type constants
const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// CORS headers
const (
	HeaderAccessControlAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAccessControlAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAccessControlAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderAccessControlAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderAccessControlMaxAge           = "Access-Control-Max-Age"
)

// Authentication constants
const (
	BearerPrefix = "Bearer "
)

// Rate limiting strategy constants
const (
	RateLimitStrategyIP = "ip"
)

// Rate limiting headers
const (
	HeaderXRateLimitLimit     = "X-RateLimit-Limit"
	HeaderXRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderXRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter          = "Retry-After"
)

// Rate limiter internal constants
const (
	// RateLimitCleanupInterval is the interval for cleaning up rate limit cache
	RateLimitCleanupInterval = 5 * time.Minute
	// RateLimitMaxCacheSize is the maximum size of the rate limit cache
	RateLimitMaxCacheSize = 10000
)

// Server timeout defaults
const (
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 15 * time.Second
	ServerIdleTimeout     = 60 * time.Second
	ServerMaxRequestSize  = 1 * 1024 * 1024
	ServerShutdownTimeout = 30 * time.Second
)

// View names
const (
	ViewIndex = "index.html"
)

// Route paths
const (
	PathRoot     = "/"
	PathCallback = "/callback"
	PathHealth   = "/health"
	PathReady    = "/ready"
	PathMetrics  = "/metrics"
	PathAPIDoc   = "/openapi.json"
)

// Callback query parameters
const (
	QueryParamCode  = "code"
	QueryParamState = "state"
)

// Sparebank 1 API defaults
const (
	SparebankTokenURI     = "https://api.sparebank1.no/oauth/token"
	SparebankAuthorizeURI = "https://api.sparebank1.no/oauth/authorize"
	SparebankAccountsURL  = "https://api.sparebank1.no/personal/banking/accounts"
	SparebankAcceptHeader = "application/vnd.sparebank1.v1+json; charset=utf-8"
	SparebankTimeout      = 30 * time.Second
	DefaultRedirectURI    = "http://localhost:8080/callback"
)

// Error codes returned in JSON error bodies
const (
	ErrorCodeAuthenticationFailed = "authentication_failed"
	ErrorCodeBankingAPIFailed     = "banking_api_failed"
	ErrorCodeInternal             = "internal_server_error"
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
)

// ServiceName identifies this server in traces, logs and the health payload.
const (
	ServiceName    = "store"
	ServiceVersion = "1.0.0"
)
