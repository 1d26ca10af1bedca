package config

// Storage defaults.
const (
	DefaultStorageBackend     = "file"
	DefaultStorageDirectory   = ".covfold"
	DefaultStorageDSN         = "covfold.db"
	DefaultStorageCompression = "lz4"
)

// Path fixer defaults.
const (
	DefaultPathFixerIgnoreVendored = false
)

// Processing defaults.
const (
	DefaultMaxConcurrentUploads = 4
)

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)

// Observability defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultOTLPHeaders  = ""
	DefaultSampleRatio  = 0.0
	DefaultEnvironment  = ""
)
