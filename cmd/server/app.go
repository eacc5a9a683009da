package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bcgov/lcfs-portal/internal/cache"
	"github.com/bcgov/lcfs-portal/internal/config"
	"github.com/bcgov/lcfs-portal/internal/handlers"
	"github.com/bcgov/lcfs-portal/internal/invalidation"
	"github.com/bcgov/lcfs-portal/internal/middleware"
	"github.com/bcgov/lcfs-portal/internal/query"
	"github.com/bcgov/lcfs-portal/internal/reports"
	"github.com/bcgov/lcfs-portal/internal/resources"
	"github.com/bcgov/lcfs-portal/internal/transport"
	"github.com/bcgov/lcfs-portal/internal/usecases"
	"github.com/bcgov/lcfs-portal/pkg/logger"
)

const (
	// Проверка связи с API при старте.
	healthCheckRetries    = 5
	healthCheckRetryDelay = 2 * time.Second

	// Время на завершение текущих запросов.
	shutdownTimeout = 30 * time.Second
)

// App держит вместе все зависимости и управляет их жизненным циклом.
type App struct {
	configPath string
	config     *config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	api        *transport.Client
	cache      *cache.ShardedCache
	queries    *query.Client
	reports    *reports.Store
	usecase    *usecases.ReportUsecase
	server     *http.Server

	// Однократная инициализация.
	initOnce sync.Once
	initErr  error

	// Фоновые задачи отменяются через ctx при выключении.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	errCh  chan error

	shutdownOnce sync.Once
}

// NewApp создает заготовку приложения; настройка происходит в Initialize.
func NewApp(configPath string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		configPath: configPath,
		ctx:        ctx,
		cancel:     cancel,
		errCh:      make(chan error, 1),
	}
}

// Initialize настраивает все компоненты ровно один раз.
func (a *App) Initialize() error {
	a.initOnce.Do(func() {
		a.initErr = a.doInitialize()
	})
	return a.initErr
}

// doInitialize собирает приложение: конфиг, логгер, клиент API, кэши,
// бизнес-логику и HTTP сервер.
func (a *App) doInitialize() error {
	// 1. Конфигурация. Если файл не читается, работаем на defaults и ENV.
	fileErr := config.Load(a.configPath)
	if fileErr != nil {
		if a.configPath == "" {
			return fmt.Errorf("критическая ошибка конфигурации: %w", fileErr)
		}
		if err := config.Load(""); err != nil {
			return fmt.Errorf("критическая ошибка конфигурации: %w", err)
		}
	}
	a.config = config.Get()

	// 2. Логгер с уровнем из конфига.
	if err := logger.Init(a.config.Logging.Level, a.config.Logging.Development); err != nil {
		return fmt.Errorf("не удалось инициализировать логгер: %w", err)
	}
	a.logger = logger.Get()
	if fileErr != nil {
		a.logger.Warn("не удалось загрузить конфиг-файл, используем значения по умолчанию и ENV",
			zap.String("path", a.configPath),
			zap.Error(fileErr),
		)
	}
	a.logger.Info("конфигурация загружена",
		zap.String("server_host", a.config.Server.Host),
		zap.Int("server_port", a.config.Server.Port),
		zap.String("api_base_url", a.config.API.BaseURL),
	)

	// 3. Метрики.
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 4. Клиент LCFS API.
	if err := a.initializeAPI(); err != nil {
		return fmt.Errorf("ошибка инициализации клиента API: %w", err)
	}

	// 5. Кэш запросов и рабочий кэш отчетов.
	a.cache = cache.NewShardedCache(
		a.config.Cache.Shards,
		a.config.Cache.GCTime,
		cache.WithCleanupInterval(a.config.Cache.CleanupInterval),
	)
	a.cache.StartCleanupWorker()

	a.queries = query.NewClient(a.cache, a.logger,
		query.WithStaleTime(a.config.Cache.StaleTime),
		query.WithMetrics(query.NewMetrics(a.registry)),
	)

	store, err := reports.NewStore(a.config.Reports.MaxEntries, a.logger)
	if err != nil {
		return fmt.Errorf("ошибка создания кэша отчетов: %w", err)
	}
	a.reports = store

	// 6. Бизнес-логика.
	registry := resources.NewRegistry()
	policy := invalidation.NewPolicy(a.queries, a.reports, registry, a.logger)
	a.usecase = usecases.NewReportUsecase(
		a.api,
		a.queries,
		a.reports,
		policy,
		registry,
		a.logger,
		a.config.API.MaxConcurrent,
	)

	// 7. HTTP сервер.
	a.initializeServer()

	a.logger.Info("приложение готово к работе")
	return nil
}

// initializeAPI создает клиент и проверяет связь с API с повторными попытками.
// Недоступный API не мешает старту: /health вернет 503, а кэш отдаст что есть.
func (a *App) initializeAPI() error {
	api, err := transport.NewClient(a.config.API.BaseURL, a.logger,
		transport.WithTimeout(a.config.API.Timeout),
		transport.WithTokenSource(transport.StaticToken(a.config.API.Token)),
		transport.WithHealthPath(a.config.API.HealthPath),
	)
	if err != nil {
		return err
	}
	a.api = api

	for attempt := 0; attempt < healthCheckRetries; attempt++ {
		if attempt > 0 {
			a.logger.Info("повторная проверка связи с API",
				zap.Int("попытка", attempt+1),
				zap.Duration("пауза", healthCheckRetryDelay),
			)
			select {
			case <-time.After(healthCheckRetryDelay):
			case <-a.ctx.Done():
				return a.ctx.Err()
			}
		}

		ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
		err = api.CheckConnection(ctx)
		cancel()
		if err == nil {
			a.logger.Info("связь с API установлена", zap.Int("попыток_затрачено", attempt+1))
			return nil
		}
		a.logger.Warn("нет связи с API",
			zap.Int("попытка", attempt+1),
			zap.Error(err),
		)
	}

	a.logger.Warn("API недоступен, стартуем в деградированном режиме", zap.Error(err))
	return nil
}

// initializeServer настраивает роутинг и middleware.
func (a *App) initializeServer() {
	reportHandler := handlers.NewReportHandler(a.usecase, a.logger)
	rateLimiter := middleware.NewRateLimiter(a.config.RateLimit.Requests, a.config.RateLimit.Window)
	httpMetrics := middleware.NewHTTPMetrics(a.registry)

	r := chi.NewRouter()

	// Служебные маршруты без middleware.
	r.Get("/health", a.healthCheckHandler)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))

	// Порядок: request id, метрики, логирование, recovery, таймаут, rate limit.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestIDMiddleware)
		r.Use(httpMetrics.Middleware)
		r.Use(middleware.LoggingMiddleware(a.logger))
		r.Use(middleware.RecoveryMiddleware(a.logger))
		r.Use(middleware.TimeoutMiddleware(a.config.Server.RequestTimeout))
		r.Use(middleware.RateLimitMiddleware(rateLimiter, a.logger))

		reportHandler.Routes(r)
	})

	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:      r,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

// healthCheckHandler проверяет связь с API и показывает состояние кэшей.
func (a *App) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats := a.cache.GetStats()
	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"cache": map[string]int{
			"entries":        stats.TotalItems,
			"stale":          stats.StaleItems,
			"cached_reports": a.reports.Len(),
		},
	}

	status := http.StatusOK
	if err := a.api.CheckConnection(ctx); err != nil {
		status = http.StatusServiceUnavailable
		health["status"] = "unhealthy"
		health["error"] = err.Error()
	} else {
		health["api"] = "connected"
	}
	if id, ok := a.reports.CurrentReportID(); ok {
		health["current_report"] = id
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(health)
}

// StartBackgroundJobs запускает фоновые процессы.
func (a *App) StartBackgroundJobs() {
	a.wg.Add(1)
	go a.periodicHealthCheck()
}

// periodicHealthCheck пишет в лог изменения состояния связи с API.
func (a *App) periodicHealthCheck() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.API.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			a.logger.Info("фоновая проверка здоровья остановлена")
			return
		case <-ticker.C:
			wasHealthy := a.api.Health().IsHealthy

			ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
			err := a.api.CheckConnection(ctx)
			cancel()

			switch {
			case err != nil && wasHealthy:
				a.logger.Warn("фоновая проверка: API недоступен", zap.Error(err))
			case err == nil && !wasHealthy:
				a.logger.Info("фоновая проверка: связь с API восстановлена")
			default:
				a.logger.Debug("фоновая проверка выполнена", zap.Bool("healthy", err == nil))
			}
		}
	}
}

// Start инициализирует приложение и запускает сервер в отдельной горутине.
func (a *App) Start() error {
	if err := a.Initialize(); err != nil {
		return err
	}

	a.StartBackgroundJobs()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("запуск HTTP сервера", zap.String("адрес", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("сервер упал с ошибкой", zap.Error(err))
			a.errCh <- err
		}
	}()

	return nil
}

// Errors возвращает канал с фатальной ошибкой сервера.
func (a *App) Errors() <-chan error {
	return a.errCh
}

// Shutdown останавливает прием запросов, фоновые задачи и воркеры кэша.
func (a *App) Shutdown() error {
	var shutdownErr error

	a.shutdownOnce.Do(func() {
		if a.logger == nil {
			a.cancel()
			return
		}
		a.logger.Info("начинаем остановку приложения...")

		// 1. Сигнал фоновым задачам
		a.cancel()

		// 2. Останавливаем прием новых HTTP запросов
		if a.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := a.server.Shutdown(ctx); err != nil {
				a.logger.Error("ошибка при остановке сервера", zap.Error(err))
				shutdownErr = err
			}
			cancel()
		}

		// 3. Ждем фоновые прогревы
		if a.usecase != nil {
			a.usecase.Shutdown()
		}

		// 4. Останавливаем чистильщик кэша
		if a.cache != nil {
			a.cache.StopCleanupWorker()
		}

		// 5. Ждем остальные горутины
		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			a.logger.Info("все фоновые процессы завершены")
		case <-time.After(shutdownTimeout):
			a.logger.Warn("таймаут ожидания завершения процессов")
		}

		a.logger.Info("приложение остановлено")
		_ = logger.Sync()
	})

	return shutdownErr
}
