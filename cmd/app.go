package cmd

import (
	"errors"
	"fmt"

	"github.com/iksnae/assistant-session/internal"
	"github.com/iksnae/assistant-session/internal/config"
	"github.com/iksnae/assistant-session/internal/gateway"
	"github.com/iksnae/assistant-session/internal/provider"
)

// errNoProvider is returned when neither a gateway URL nor a provider is configured
var errNoProvider = errors.New("no chat provider configured: set ASSISTANT_GATEWAY_URL, OPENAI_API_KEY or WEBHOOK_URL")

// app bundles what most commands need: config, storage and the session store
type app struct {
	cfg     *config.Config
	paths   internal.DataPaths
	kv      internal.KV
	store   *internal.Store
	backend string
	closeKV func() error
}

// loadConfig resolves data paths and reads the configuration
func loadConfig() (*config.Config, internal.DataPaths, error) {
	paths, err := internal.DetectDataPaths()
	if err != nil {
		return nil, internal.DataPaths{}, fmt.Errorf("failed to detect data paths: %w", err)
	}

	cfg, err := config.Load(configPath, paths.ConfigFiles(), ".env", paths.EnvFile())
	if err != nil {
		return nil, internal.DataPaths{}, err
	}

	if storagePath != "" {
		paths = paths.WithDatabase(storagePath)
		cfg.Storage.Backend = config.BackendSQLite
		cfg.Storage.Path = storagePath
	} else if cfg.Storage.Path != "" {
		paths = paths.WithDatabase(cfg.Storage.Path)
	}
	if memoryStore {
		cfg.Storage.Backend = config.BackendMemory
	}
	return cfg, paths, nil
}

// openApp loads config and opens the session store
func openApp() (*app, error) {
	cfg, paths, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, paths: paths, backend: cfg.Storage.Backend, closeKV: func() error { return nil }}
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		a.kv = internal.NewMemoryKV()
	default:
		db, err := internal.OpenDatabase(paths.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		kv, err := internal.NewSQLiteKV(db, paths.DBPath)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.kv = kv
		a.closeKV = kv.Close
	}
	internal.LogDebug("Using %s storage at %s", a.backend, paths.DBPath)

	a.store = internal.NewStore(a.kv,
		internal.WithPersistDelay(cfg.Storage.PersistDelay.Duration),
		internal.WithGreeting(cfg.Chat.Greeting),
	)
	a.store.Load()
	return a, nil
}

// Close flushes pending writes and closes storage
func (a *app) Close() error {
	storeErr := a.store.Close()
	kvErr := a.closeKV()
	return errors.Join(storeErr, kvErr)
}

// chatGateway returns the gateway used by the chat command and a label for it
func (a *app) chatGateway() (internal.Gateway, string, error) {
	if a.cfg.Gateway.URL != "" {
		return gateway.NewClient(a.cfg.Gateway.URL, gateway.WithTimeout(a.cfg.Gateway.Timeout.Duration)), a.cfg.Gateway.URL, nil
	}
	p, err := buildProvider(a.cfg)
	if err != nil {
		return nil, "", err
	}
	return provider.NewGateway(p, a.cfg.Server.SystemPrompt), p.Name(), nil
}

// titler returns the title generator for new sessions, or nil when disabled
// or unavailable
func (a *app) titler() internal.Titler {
	if !a.cfg.Chat.GenerateTitle {
		return nil
	}
	if a.cfg.Gateway.TitleURL != "" {
		return gateway.NewTitleClient(a.cfg.Gateway.TitleURL, gateway.WithTimeout(a.cfg.Gateway.Timeout.Duration))
	}
	t := buildTitler(a.cfg)
	if t == nil {
		return nil
	}
	return provider.NewTitleGenerator(t)
}

// buildProvider chains the configured upstream providers
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	var chain []provider.Provider
	if cfg.OpenAI.APIKey != "" {
		chain = append(chain, provider.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model))
	}
	if cfg.Webhook.URL != "" {
		chain = append(chain, provider.NewWebhook(cfg.Webhook.URL, provider.WithTimeout(cfg.Webhook.Timeout.Duration)))
	}

	switch len(chain) {
	case 0:
		return nil, errNoProvider
	case 1:
		return chain[0], nil
	}
	return provider.NewFallback(chain...), nil
}

// buildTitler chains the configured title generators; nil when none is
func buildTitler(cfg *config.Config) provider.Titler {
	var chain []provider.Titler
	if cfg.Anthropic.APIKey != "" {
		chain = append(chain, provider.NewAnthropic(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, cfg.Anthropic.Model, cfg.Anthropic.Version))
	}
	if cfg.OpenAI.APIKey != "" {
		chain = append(chain, provider.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model))
	}
	if len(chain) == 0 {
		return nil
	}
	return provider.NewFallbackTitler(chain...)
}

// resolveSession turns an id or unique id prefix into a session id; an empty
// ref means the active session
func (a *app) resolveSession(ref string) (string, error) {
	if ref == "" {
		return a.store.ActiveID(), nil
	}
	id, ok := a.store.Resolve(ref)
	if !ok {
		return "", fmt.Errorf("session not found: %s (use 'assistant-session list' to see available sessions)", ref)
	}
	return id, nil
}
