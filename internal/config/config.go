package config

// ServerConfig holds configuration for the planner's REST API server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.mapplan/mapplan.db, ":memory:" for testing)
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// WorkerConfig holds configuration for the dispatch worker agent.
type WorkerConfig struct {
	ServerAddr   string // base URL of the planner server
	LogLevel     string
	LogFormat    string
	WorkDir      string // scratch directory for staged reference files and mapper output
	Concurrency  int    // not read by RunWorker; the worker runs one DispatchTask at a time
	S3Bucket     string // when set and no index upload prefix is given, built indices go to s3://<bucket>/index-cache; downloads take their bucket from each s3:// URI
	S3Region     string
	S3Endpoint   string // override for S3-compatible endpoints (empty uses AWS default resolution)
}

// DefaultWorkerConfig returns sensible defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		ServerAddr:  "http://localhost:8080",
		LogLevel:    "info",
		LogFormat:   "text",
		Concurrency: 4,
	}
}
