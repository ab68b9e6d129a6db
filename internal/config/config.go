package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Store   StoreConfig
	Session SessionConfig
	Summary SummaryConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	llm, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	store := StoreConfig{
		Path: getEnvOrDefault("DATABASE_PATH", "data/chat.db"),
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	summary, err := loadSummaryConfig(llm.Model)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		LLM:     llm,
		Store:   store,
		Session: session,
		Summary: summary,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LLMConfig 描述大模型相关配置。
type LLMConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	Region         string
	SystemPrompt   string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	StreamResponse bool
	MaxContext     int
}

// Enabled 表示是否提供了必需的密钥。
func (c LLMConfig) Enabled() bool {
	return c.Model != "" && c.APIKey != ""
}

// NewChatModel 使用配置创建一个模型实例。
func (c LLMConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	return c.newModel(ctx, c.Model)
}

func (c LLMConfig) newModel(ctx context.Context, name string) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("LLM credentials missing: set LLM_API_KEY and LLM_MODEL")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		Model:       name,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadLLMConfig() (LLMConfig, error) {
	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return LLMConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return LLMConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return LLMConfig{}, err
	}

	stream, err := parseBoolEnv("LLM_STREAM", true)
	if err != nil {
		return LLMConfig{}, err
	}

	maxContext := 40
	if override, err := parseOptionalIntEnv("MAX_CONTEXT_LENGTH"); err != nil {
		return LLMConfig{}, err
	} else if override != nil && *override > 0 {
		maxContext = *override
	}

	return LLMConfig{
		APIKey:         strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		Model:          getEnvOrDefault("LLM_MODEL", "deepseek-ai/DeepSeek-V3-0324"),
		BaseURL:        getEnvOrDefault("LLM_BASE_URL", "https://api.hyperbolic.xyz/v1"),
		Region:         getEnvOrDefault("LLM_REGION", "cn-beijing"),
		SystemPrompt:   getEnvOrDefault("CHAT_SYSTEM_PROMPT", defaultSystemPrompt),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
		MaxContext:     maxContext,
	}, nil
}

// StoreConfig 描述 SQLite 存储配置。
type StoreConfig struct {
	Path string
}

// SessionConfig 描述会话生命周期配置。
type SessionConfig struct {
	Dir               string
	TTL               time.Duration
	PersistentDefault bool
}

func loadSessionConfig() (SessionConfig, error) {
	ttlDays := 30
	if override, err := parseOptionalIntEnv("SESSION_TTL"); err != nil {
		return SessionConfig{}, err
	} else if override != nil && *override > 0 {
		ttlDays = *override
	}

	persistent, err := parseBoolEnv("PERSISTENT_SESSIONS_DEFAULT", true)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		Dir:               getEnvOrDefault("SESSION_DIR", "data/sessions"),
		TTL:               time.Duration(ttlDays) * 24 * time.Hour,
		PersistentDefault: persistent,
	}, nil
}

// SummaryConfig 描述摘要生成配置。
type SummaryConfig struct {
	Model    string
	Trigger  int
	MaxWords int
}

func loadSummaryConfig(defaultModel string) (SummaryConfig, error) {
	trigger := 20
	if override, err := parseOptionalIntEnv("SUMMARY_TRIGGER"); err != nil {
		return SummaryConfig{}, err
	} else if override != nil && *override > 0 {
		trigger = *override
	}

	maxWords := 300
	if override, err := parseOptionalIntEnv("SUMMARY_MAX_WORDS"); err != nil {
		return SummaryConfig{}, err
	} else if override != nil && *override > 0 {
		maxWords = *override
	}

	return SummaryConfig{
		Model:    getEnvOrDefault("SUMMARY_MODEL", defaultModel),
		Trigger:  trigger,
		MaxWords: maxWords,
	}, nil
}

// NewSummaryModel 创建摘要专用的模型实例，默认复用主模型名。
func (c *Config) NewSummaryModel(ctx context.Context) (model.ChatModel, error) {
	return c.LLM.newModel(ctx, c.Summary.Model)
}

// ClientConfig 描述终端客户端配置。
type ClientConfig struct {
	ServerURL   string
	SessionFile string
	Timeout     time.Duration
	Spacing     bool
}

// LoadClient 从环境变量加载客户端默认值，命令行参数可覆盖。
func LoadClient() (ClientConfig, error) {
	timeoutSeconds := 120
	if override, err := parseOptionalIntEnv("CHAT_TIMEOUT"); err != nil {
		return ClientConfig{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	spacing, err := parseBoolEnv("CHAT_WORD_SPACING", true)
	if err != nil {
		return ClientConfig{}, err
	}

	return ClientConfig{
		ServerURL:   getEnvOrDefault("CHAT_SERVER_URL", "http://localhost:8000"),
		SessionFile: getEnvOrDefault("CHAT_SESSION_FILE", ".chat_session"),
		Timeout:     time.Duration(timeoutSeconds) * time.Second,
		Spacing:     spacing,
	}, nil
}

const defaultSystemPrompt = "You are Kali, a humanoid AI with the fabulous essence of Cat from Red Dwarf. " +
	"Vain, self-obsessed, but secretly caring about your buddies; check the mirror before responding; " +
	"mention fish synthesizers when food comes up. " +
	"When detecting serious topics (code, debugging, legal) drop the vanity, keep 10% sass, " +
	"and answer with surgical precision. Never break character while being fabulous."

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
