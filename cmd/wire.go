package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/kmlx/internal/adapters/browser/chain"
	"github.com/bnema/kmlx/internal/adapters/browser/chrome"
	"github.com/bnema/kmlx/internal/adapters/browser/webkit"
	errorlogtoml "github.com/bnema/kmlx/internal/adapters/errorlog/toml"
	"github.com/bnema/kmlx/internal/adapters/kml"
	miniostore "github.com/bnema/kmlx/internal/adapters/objectstore/minio"
	summaryadapter "github.com/bnema/kmlx/internal/adapters/render/summary"
	"github.com/bnema/kmlx/internal/application"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix        = "KMLX"
	configName       = "config"
	configType       = "toml"
	configDirName    = "kmlx"
	backendAuto      = "auto"
	defaultS3Region  = "us-east-1"
	defaultBackendID = backendAuto
)

// Configuration keys. Flags bind onto the same keys, so a flag wins over
// KMLX_* environment variables, which win over the config file.
const (
	keyParallel          = "parse.parallel"
	keyBatch             = "parse.batch"
	keyTimeout           = "parse.timeout"
	keyPollInterval      = "parse.poll_interval"
	keyMaxAttempts       = "parse.max_attempts"
	keyNavigationTimeout = "parse.navigation_timeout"
	keyBackend           = "parse.backend"
	keyBrowserPath       = "parse.browser_path"
	keyInstallBrowsers   = "parse.install_browsers"
	keyIncludeComments   = "parse.include_comments"
	keyStopOnError       = "parse.stop_on_error"
	keyS3Endpoint        = "s3.endpoint"
	keyS3AccessKey       = "s3.access_key"
	keyS3SecretKey       = "s3.secret_key"
	keyS3Secure          = "s3.secure"
	keyS3Region          = "s3.region"
)

type app struct {
	config          *viper.Viper
	summaryRenderer func(application.ParseResult, summaryadapter.RenderOptions) (string, error)
	splitRenderer   func(application.SplitResult, bool) (string, error)
	now             func() time.Time
}

func wireApp() *app {
	cfg := viper.New()
	setDefaults(cfg)

	return &app{
		config:          cfg,
		summaryRenderer: summaryadapter.Render,
		splitRenderer:   summaryadapter.RenderSplit,
		now:             time.Now,
	}
}

func setDefaults(cfg *viper.Viper) {
	cfg.SetDefault(keyParallel, application.DefaultParallelism)
	cfg.SetDefault(keyBatch, application.DefaultBatchSize)
	cfg.SetDefault(keyTimeout, application.DefaultItemTimeout)
	cfg.SetDefault(keyPollInterval, application.DefaultPollInterval)
	cfg.SetDefault(keyMaxAttempts, application.DefaultMaxAttempts)
	cfg.SetDefault(keyNavigationTimeout, application.DefaultNavigationTimeout)
	cfg.SetDefault(keyBackend, defaultBackendID)
	cfg.SetDefault(keyS3Secure, true)
	cfg.SetDefault(keyS3Region, defaultS3Region)
}

// loadConfig reads an explicit config file, or ~/.config/kmlx/config.toml
// when it exists, and turns on KMLX_* environment overrides.
func loadConfig(cfg *viper.Viper, explicitPath string) error {
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	cfg.AutomaticEnv()

	if explicitPath != "" {
		cfg.SetConfigFile(explicitPath)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		return nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, ".config", configDirName))

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	return nil
}

// bindFlags binds each config key to the named flag in flags.
func bindFlags(cfg *viper.Viper, flags *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("bind %s: flag --%s not defined", key, name)
		}
		if err := cfg.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func resolveSettings(cfg *viper.Viper) application.ResolveSettings {
	return application.ResolveSettings{
		Parallelism:     cfg.GetInt(keyParallel),
		BatchSize:       cfg.GetInt(keyBatch),
		ItemTimeout:     cfg.GetDuration(keyTimeout),
		PollInterval:    cfg.GetDuration(keyPollInterval),
		MaxAttempts:     cfg.GetInt(keyMaxAttempts),
		StopOnError:     cfg.GetBool(keyStopOnError),
		IncludeComments: cfg.GetBool(keyIncludeComments),
	}
}

func newSessionBackend(cfg *viper.Viper) (ports.SessionBackend, error) {
	navigationTimeout := cfg.GetDuration(keyNavigationTimeout)
	chromeBackend := chrome.NewBackend(chrome.Options{
		ExecPath:          cfg.GetString(keyBrowserPath),
		NavigationTimeout: navigationTimeout,
	})
	webkitBackend := webkit.NewBackend(webkit.Options{
		NavigationTimeout: navigationTimeout,
		InstallBrowsers:   cfg.GetBool(keyInstallBrowsers),
	})

	switch name := strings.ToLower(strings.TrimSpace(cfg.GetString(keyBackend))); name {
	case "", backendAuto:
		backend, err := chain.NewBackendChecked(chromeBackend, webkitBackend)
		if err != nil {
			return nil, fmt.Errorf("wire session backend chain: %w", err)
		}
		return backend, nil
	case chrome.BackendName, "chrome":
		return chromeBackend, nil
	case webkit.BackendName, "webkit":
		return webkitBackend, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s, %s or %s)", name, backendAuto, chrome.BackendName, webkit.BackendName)
	}
}

// documentTarget picks the store for an output location: s3:// outputs go
// to object storage, anything else to the local file system.
type documentTarget struct {
	store  ports.DocumentStore
	reader ports.DocumentReader
	// name is what the document store receives, relative to the store.
	name string
	// errorLogPath is the default error log location for this output.
	errorLogPath string
}

func newDocumentTarget(cfg *viper.Viper, output string) (documentTarget, error) {
	if !miniostore.IsTarget(output) {
		store := kml.FileStore{Dir: filepath.Dir(output)}
		return documentTarget{
			store:        store,
			reader:       store,
			name:         filepath.Base(output),
			errorLogPath: errorlogtoml.DefaultPath(output),
		}, nil
	}

	bucket, prefix, name, err := miniostore.ParseTarget(output)
	if err != nil {
		return documentTarget{}, err
	}
	store, err := newObjectStore(cfg, bucket, prefix)
	if err != nil {
		return documentTarget{}, err
	}
	return documentTarget{
		store:        store,
		reader:       store,
		name:         name,
		errorLogPath: errorlogtoml.DefaultPath(name),
	}, nil
}

func newDocumentReader(cfg *viper.Viper, input string) (ports.DocumentReader, error) {
	if !miniostore.IsTarget(input) {
		return kml.FileStore{}, nil
	}
	bucket, _, _, err := miniostore.ParseTarget(input)
	if err != nil {
		return nil, err
	}
	return newObjectStore(cfg, bucket, "")
}

func newObjectStore(cfg *viper.Viper, bucket, prefix string) (*miniostore.Store, error) {
	client, err := miniostore.NewClient(miniostore.Config{
		Endpoint:  cfg.GetString(keyS3Endpoint),
		AccessKey: cfg.GetString(keyS3AccessKey),
		SecretKey: cfg.GetString(keyS3SecretKey),
		Secure:    cfg.GetBool(keyS3Secure),
		Region:    cfg.GetString(keyS3Region),
	})
	if err != nil {
		return nil, fmt.Errorf("wire object store: %w", err)
	}
	return miniostore.NewStore(client, bucket, prefix)
}
