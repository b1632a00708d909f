package config // package config loads application configuration from environment variables

import (
	"log"  // log is used to report configuration errors and halt execution
	"os"   // os provides access to environment variables
	"time" // time expresses the engine's window and retry durations
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  The reservation engine's timing knobs
// (payment window, poll cadence, retry budget) are deliberately
// configuration inputs rather than constants: their exact values are
// tunables, not behavior.
type Config struct {
	Env               string        // application environment (e.g. "dev", "prod")
	Port              string        // HTTP port to listen on
	DBUser            string        // database username
	DBPass            string        // database password (optional)
	DBHost            string        // database host address
	DBPort            string        // database port number
	DBName            string        // database name
	PaymentWindow     time.Duration // how long a customer has to pay before the hold expires
	CleanupPoll       time.Duration // how often the poller looks for due expiry tasks
	CleanupRetryBase  time.Duration // first retry delay; doubles per attempt (2s, 4s, 8s)
	CleanupMaxRetries int           // attempts before a task is parked DEAD for review
	CleanupBatchSize  int           // max due tasks claimed per poll
	CleanupStaleAfter time.Duration // age after which a RUNNING task is reclaimed
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Engine tunables
// fall back to sensible defaults when unset.
func Load() Config {
	return Config{
		Env:               must("APP_ENV"),      // environment (dev/test/prod)
		Port:              must("APP_PORT"),     // port to bind the HTTP server
		DBUser:            must("DB_USER"),      // database user
		DBPass:            os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:            must("DB_HOST"),      // database host
		DBPort:            must("DB_PORT"),      // database port
		DBName:            must("DB_NAME"),      // database name
		PaymentWindow:     time.Duration(envInt("PAYMENT_WINDOW_MIN", 15)) * time.Minute,
		CleanupPoll:       envDur("CLEANUP_POLL_INTERVAL", 5*time.Second),
		CleanupRetryBase:  envDur("CLEANUP_RETRY_BASE", 2*time.Second),
		CleanupMaxRetries: envInt("CLEANUP_MAX_ATTEMPTS", 3),
		CleanupBatchSize:  envInt("CLEANUP_BATCH_SIZE", 50),
		CleanupStaleAfter: envDur("CLEANUP_STALE_AFTER", 5*time.Minute),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
