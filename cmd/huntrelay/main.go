package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/huntworks/huntrelay/internal/api"
	"github.com/huntworks/huntrelay/internal/genai"
	"github.com/huntworks/huntrelay/internal/store"
	"github.com/huntworks/huntrelay/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for HuntRelay state data
	DefaultStateDir = "/var/lib/huntrelay"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "huntrelay.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping HuntRelay with configured modules")
	slog.Debug("Final configuration", "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "sms_backend", *flags.smsBackend)
	if err := api.Run(storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("HuntRelay failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("HuntRelay exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseDSN     string
	StateDir        string
	OpenAIKey       string
	OpenAIModel     string
	AssistantID     string
	APIAddr         string
	SendTextURL     string
	AdminLogURL     string
	NextClueURL     string
	AuthToken       string
	SMSBackend      string
	PollTimeoutSecs int
}

// Flags holds command line flag values
type Flags struct {
	dbDSN       *string
	openaiKey   *string
	openaiModel *string
	assistantID *string
	apiAddr     *string
	sendTextURL *string
	adminLogURL *string
	nextClueURL *string
	authToken   *string
	smsBackend  *string
	pollTimeout *int
}

// initializeLogger sets up structured logging. HUNTRELAY_DEBUG=true lowers the
// level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("HUNTRELAY_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseDSN: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("HUNTRELAY_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: os.Getenv("OPENAI_MODEL"),
		AssistantID: os.Getenv("OPENAI_ASSISTANT_ID"),
		APIAddr:     os.Getenv("API_ADDR"),
		SendTextURL: os.Getenv("SEND_TEXT_URL"),
		AdminLogURL: os.Getenv("ADMIN_LOG_URL"),
		NextClueURL: os.Getenv("GET_NEXT_CLUE_URL"),
		AuthToken:   os.Getenv("SERVICE_AUTH_TOKEN"),
		SMSBackend:  os.Getenv("SMS_BACKEND"),

		PollTimeoutSecs: util.ParseIntEnv("OPENAI_POLL_TIMEOUT_SECONDS", 0),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No HUNTRELAY_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Default to a local SQLite database under the state directory.
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL set, using SQLite default", "dsn", config.DatabaseDSN)
	}

	return config
}

// parseCommandLineFlags defines flags seeded from the environment config and parses them
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:       flag.String("db-dsn", config.DatabaseDSN, "Database DSN (Postgres URL or SQLite path)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key"),
		openaiModel: flag.String("openai-model", config.OpenAIModel, "OpenAI model for assistant runs"),
		assistantID: flag.String("assistant-id", config.AssistantID, "Pre-provisioned OpenAI assistant id"),
		apiAddr:     flag.String("addr", config.APIAddr, "API listen address"),
		sendTextURL: flag.String("send-text-url", config.SendTextURL, "send-text collaborator URL"),
		adminLogURL: flag.String("admin-log-url", config.AdminLogURL, "admin logging collaborator URL"),
		nextClueURL: flag.String("next-clue-url", config.NextClueURL, "next-clue collaborator URL"),
		authToken:   flag.String("auth-token", config.AuthToken, "bearer token for collaborator calls"),
		smsBackend:  flag.String("sms-backend", config.SMSBackend, "SMS backend: textbelt or twilio"),
		pollTimeout: flag.Int("poll-timeout", config.PollTimeoutSecs, "run polling deadline in seconds (0 = default)"),
	}
	flag.Parse()
	return flags
}

// buildStoreOptions builds store module options from flags
func buildStoreOptions(flags Flags) []store.Option {
	var opts []store.Option
	if *flags.dbDSN != "" {
		opts = append(opts, store.WithDSN(*flags.dbDSN))
	}
	return opts
}

// buildGenAIOptions builds responder module options from flags
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		opts = append(opts, genai.WithModel(*flags.openaiModel))
	}
	if *flags.assistantID != "" {
		opts = append(opts, genai.WithAssistantID(*flags.assistantID))
	}
	if *flags.pollTimeout > 0 {
		opts = append(opts, genai.WithPollTimeout(time.Duration(*flags.pollTimeout)*time.Second))
	}
	return opts
}

// buildAPIOptions builds API module options from flags
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.sendTextURL != "" {
		opts = append(opts, api.WithSendTextURL(*flags.sendTextURL))
	}
	if *flags.adminLogURL != "" {
		opts = append(opts, api.WithAdminLogURL(*flags.adminLogURL))
	}
	if *flags.nextClueURL != "" {
		opts = append(opts, api.WithNextClueURL(*flags.nextClueURL))
	}
	if *flags.authToken != "" {
		opts = append(opts, api.WithServiceAuthToken(*flags.authToken))
	}
	if *flags.smsBackend != "" {
		opts = append(opts, api.WithSMSBackend(*flags.smsBackend))
	}
	return opts
}
