package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config                  Config
	logger                  Logger
	loggerProvider          LoggerProvider
	metricsRecorder         MetricsRecorder
	errorFactory            ErrorFactory
	errorMapper             ErrorMapper
	secretProvider          SecretProvider
	persistenceClient       any
	repositoryFactory       any
	configProvider          ConfigProvider
	optionsResolver         OptionsResolver
	stateCodec              StateCodec
	nonceStore              NonceStore
	refreshBackoffScheduler RefreshBackoffScheduler
	registry                Registry
	credentialStore         CredentialStore
	tenantStore             TenantStore
	httpClient              *http.Client
	refreshFlight           refreshFlightGroup
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	SecretProvider    SecretProvider
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	StateCodec        StateCodec
	NonceStore        NonceStore
	RefreshScheduler  RefreshBackoffScheduler
	Registry          Registry
	CredentialStore   CredentialStore
	TenantStore       TenantStore
	HTTPClient        *http.Client
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("integrations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("integrations"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapperFunc
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}
	if builder.nonceStore == nil {
		builder.nonceStore = NewMemoryNonceStore()
	}
	if builder.refreshScheduler == nil {
		builder.refreshScheduler = ExponentialBackoffScheduler{
			Initial: defaultRefreshInitialBackoff,
			Max:     defaultRefreshMaxBackoff,
		}
	}
	if builder.httpClient == nil {
		builder.httpClient = http.DefaultClient
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.stateCodec == nil {
		codec, codecErr := buildStateCodec(finalConfig)
		if codecErr != nil {
			return nil, mapBuildError(builder.errorMapper, codecErr)
		}
		builder.stateCodec = codec
	}

	if (builder.credentialStore == nil || builder.tenantStore == nil) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.credentialStore == nil {
					builder.credentialStore = storeProvider.CredentialStore()
				}
				if builder.tenantStore == nil {
					builder.tenantStore = storeProvider.TenantStore()
				}
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			if builder.credentialStore == nil {
				builder.credentialStore = storeProvider.CredentialStore()
			}
			if builder.tenantStore == nil {
				builder.tenantStore = storeProvider.TenantStore()
			}
		}
	}

	return &Service{
		config:                  finalConfig,
		logger:                  logger,
		loggerProvider:          provider,
		metricsRecorder:         builder.metricsRecorder,
		errorFactory:            builder.errorFactory,
		errorMapper:             builder.errorMapper,
		secretProvider:          builder.secretProvider,
		persistenceClient:       builder.persistenceClient,
		repositoryFactory:       builder.repositoryFactory,
		configProvider:          builder.configProvider,
		optionsResolver:         builder.optionsResolver,
		stateCodec:              builder.stateCodec,
		nonceStore:              builder.nonceStore,
		refreshBackoffScheduler: builder.refreshScheduler,
		registry:                builder.registry,
		credentialStore:         builder.credentialStore,
		tenantStore:             builder.tenantStore,
		httpClient:              builder.httpClient,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func buildStateCodec(cfg Config) (StateCodec, error) {
	secret := strings.TrimSpace(cfg.Security.EncryptionKey)
	if secret == "" {
		secret = strings.TrimSpace(cfg.Security.FallbackSecret)
	}
	if secret == "" {
		secret = cfg.ServiceName + ".state"
	}
	return NewSignedStateCodec([]byte(secret), cfg.StateTTL)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Registry() Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		SecretProvider:    s.secretProvider,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		StateCodec:        s.stateCodec,
		NonceStore:        s.nonceStore,
		RefreshScheduler:  s.refreshBackoffScheduler,
		Registry:          s.registry,
		CredentialStore:   s.credentialStore,
		TenantStore:       s.tenantStore,
		HTTPClient:        s.httpClient,
	}
}

func (s *Service) resolveProvider(providerID string) (Provider, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: registry unavailable"))
	}
	providerID = strings.TrimSpace(providerID)
	provider, ok := s.registry.Get(providerID)
	if ok {
		return provider, nil
	}
	return nil, NewUnknownProviderError(providerID)
}

func (s *Service) providerTimeout() time.Duration {
	if s == nil || s.config.ProviderTimeout <= 0 {
		return DefaultConfig().ProviderTimeout
	}
	return s.config.ProviderTimeout
}

func (s *Service) refreshLeadWindow() time.Duration {
	if s == nil || s.config.Refresh.LeadWindow <= 0 {
		return DefaultConfig().Refresh.LeadWindow
	}
	return s.config.Refresh.LeadWindow
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
