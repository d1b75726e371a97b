package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations.
type Config struct {
	Env           string // application environment (e.g. "dev", "prod")
	Port          string // HTTP port to listen on
	DBUser        string // database username
	DBPass        string // database password (optional)
	DBHost        string // database host address
	DBPort        string // database port number
	DBName        string // database name
	ClientID      string // Discord application client ID
	ClientSecret  string // Discord application client secret
	RedirectURI   string // OAuth redirect URI registered with Discord
	CookieSecret  string // secret used to sign the OAuth state cookie
	APISecret     string // secret used to verify bot-issued API bearer tokens
	PlatformName  string // platform_name sent with every metadata push
	StateTTLMin   int    // OAuth state cookie time-to-live in minutes
	DiscordAPIURL string // Discord API base URL, overridable for tests/staging
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),               // environment (dev/test/prod)
		Port:          must("APP_PORT"),              // port to bind the HTTP server
		DBUser:        must("DB_USER"),               // database user
		DBPass:        os.Getenv("DB_PASS"),          // database password (empty allowed)
		DBHost:        must("DB_HOST"),               // database host
		DBPort:        must("DB_PORT"),               // database port
		DBName:        must("DB_NAME"),               // database name
		ClientID:      must("DISCORD_CLIENT_ID"),     // OAuth client id
		ClientSecret:  must("DISCORD_CLIENT_SECRET"), // OAuth client secret
		RedirectURI:   must("DISCORD_REDIRECT_URI"),  // OAuth callback URL
		CookieSecret:  must("COOKIE_SECRET"),         // state cookie signing secret
		APISecret:     must("API_SECRET"),            // bot API auth secret
		PlatformName:  envStr("PLATFORM_NAME", "Minesa"),
		StateTTLMin:   envInt("STATE_TTL_MIN", 5), // OAuth state lifetime in minutes
		DiscordAPIURL: envStr("DISCORD_API_URL", "https://discord.com/api/v10"),
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
