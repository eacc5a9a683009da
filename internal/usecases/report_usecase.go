package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bcgov/lcfs-portal/internal/columns"
	"github.com/bcgov/lcfs-portal/internal/domain"
	"github.com/bcgov/lcfs-portal/internal/export"
	"github.com/bcgov/lcfs-portal/internal/invalidation"
	"github.com/bcgov/lcfs-portal/internal/pagination"
	"github.com/bcgov/lcfs-portal/internal/query"
	"github.com/bcgov/lcfs-portal/internal/reports"
	"github.com/bcgov/lcfs-portal/internal/resources"
)

// ReportUsecase отвечает за работу с отчетами о соответствии.
// Связывает API, кэш запросов и рабочий кэш отчетов.
// Главные задачи:
// 1. Cache-Aside для отчетов (рабочий кэш -> кэш запросов -> API).
// 2. Инвалидация зависимых запросов после каждой мутации.
// 3. Фоновый прогрев расписаний открытого отчета.
type ReportUsecase struct {
	api      domain.HTTPClient
	queries  *query.Client
	reports  *reports.Store
	policy   *invalidation.Policy
	registry *resources.Registry
	logger   *zap.Logger

	// Управление конкурентностью
	wg          sync.WaitGroup
	rateLimiter *RateLimiter // Семафор для ограничения одновременных запросов к API
	baseCtx     context.Context
	cancel      context.CancelFunc

	// Мутации
	updateReport *query.Mutation[ReportUpdate, *domain.ComplianceReport]
	deleteReport *query.Mutation[int, struct{}]
	saveLineItem *query.Mutation[LineItemSave, map[string]any]
}

// ReportUpdate описывает изменение полей отчета.
type ReportUpdate struct {
	ReportID int
	Fields   map[string]any
}

// LineItemSave описывает сохранение строки расписания отчета.
type LineItemSave struct {
	Resource string
	ReportID int
	Item     map[string]any
}

// RateLimiter ограничивает нагрузку на API семафором.
// Не дает запустить больше N запросов к API одновременно.
type RateLimiter struct {
	semaphore     chan struct{}
	maxConcurrent int
}

// NewRateLimiter создает ограничитель с буфером на maxConcurrent запросов.
func NewRateLimiter(maxConcurrent int) *RateLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 10
	}
	return &RateLimiter{
		semaphore:     make(chan struct{}, maxConcurrent),
		maxConcurrent: maxConcurrent,
	}
}

// Acquire пытается получить разрешение на работу.
// Если контекст отменен, возвращает ошибку.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case rl.semaphore <- struct{}{}:
		return nil
	}
}

// Release освобождает место для следующих запросов.
func (rl *RateLimiter) Release() {
	select {
	case <-rl.semaphore:
	default:
	}
}

// NewReportUsecase создает usecase. Мутации сразу связываются с политикой инвалидации.
func NewReportUsecase(
	api domain.HTTPClient,
	queries *query.Client,
	store *reports.Store,
	policy *invalidation.Policy,
	registry *resources.Registry,
	logger *zap.Logger,
	maxConcurrentOps int,
) *ReportUsecase {
	if registry == nil {
		registry = resources.NewRegistry()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	u := &ReportUsecase{
		api:         api,
		queries:     queries,
		reports:     store,
		policy:      policy,
		registry:    registry,
		logger:      logger,
		rateLimiter: NewRateLimiter(maxConcurrentOps),
		baseCtx:     baseCtx,
		cancel:      cancel,
	}

	u.updateReport = query.NewMutation(queries, u.putReport,
		invalidation.OnSettled(policy, func(in ReportUpdate, _ *domain.ComplianceReport) invalidation.Event {
			return invalidation.Event{Resource: invalidation.ResourceReport, Action: invalidation.ActionUpdate, ReportID: in.ReportID}
		}),
	)
	u.deleteReport = query.NewMutation(queries, u.removeReport,
		invalidation.OnSettled(policy, func(id int, _ struct{}) invalidation.Event {
			return invalidation.Event{Resource: invalidation.ResourceReport, Action: invalidation.ActionDelete, ReportID: id}
		}),
	)
	u.saveLineItem = query.NewMutation(queries, u.postLineItem,
		invalidation.OnSettled(policy, u.lineItemEvent),
	)

	return u
}

// GetReport получает отчет по ID и делает его текущим.
// Реализует паттерн Cache-Aside:
// 1. Ищем в рабочем кэше. Нашли -> вернули.
// 2. Не нашли -> запрос через кэш запросов (один запрос на ключ).
// 3. Получили -> кладем в рабочий кэш, прогреваем расписания в фоне.
func (u *ReportUsecase) GetReport(ctx context.Context, id int) (*domain.ComplianceReport, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: report id must be positive", domain.ErrInvalidRequest)
	}

	// 1. Рабочий кэш (быстрый путь)
	if report, ok := u.reports.GetReportByIDOrCurrent(id); ok {
		u.logger.Debug("отчет найден в рабочем кэше", zap.Int("report_id", id))
		u.reports.SetCurrentReport(report)
		return report, nil
	}

	// Ограничение нагрузки перед походом в API
	if err := u.rateLimiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("превышен лимит запросов: %w", err)
	}
	defer u.rateLimiter.Release()

	// 2. Запрос в API (медленный путь)
	gen := u.reports.Generation(id)
	res := resources.ComplianceReport.Query(ctx, u.queries, u.api, id)
	if res.Err != nil {
		if domain.IsNotFound(res.Err) {
			return nil, fmt.Errorf("%w: %d", domain.ErrReportNotFound, id)
		}
		if !res.Stale {
			u.logger.Error("не удалось получить отчет",
				zap.Int("report_id", id),
				zap.Error(res.Err),
			)
			return nil, res.Err
		}
		u.logger.Warn("API недоступен, отдаем последнюю версию отчета",
			zap.Int("report_id", id),
			zap.Error(res.Err),
		)
	}

	report := res.Data
	// 3. Устаревший ответ или отчет сброшен мутацией во время запроса: не кэшируем
	if res.Stale || !u.reports.SetCurrentReportAt(&report, gen) {
		u.logger.Debug("отчет не сохранен в рабочий кэш",
			zap.Int("report_id", id),
			zap.Bool("stale", res.Stale),
		)
		return &report, nil
	}
	u.prefetchSchedulesAsync(id)

	return &report, nil
}

// CurrentReport возвращает текущий открытый отчет.
func (u *ReportUsecase) CurrentReport() (*domain.ComplianceReport, bool) {
	return u.reports.CurrentReport()
}

// CloseReport закрывает текущий отчет. Кэшированные отчеты остаются.
func (u *ReportUsecase) CloseReport() {
	u.reports.ClearCurrentReport()
}

// UpdateReport обновляет поля отчета.
// Принцип: API -> инвалидация зависимых запросов -> удаление из рабочего кэша.
func (u *ReportUsecase) UpdateReport(ctx context.Context, id int, fields map[string]any) (*domain.ComplianceReport, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: report id must be positive", domain.ErrInvalidRequest)
	}
	report, err := u.updateReport.Trigger(ctx, ReportUpdate{ReportID: id, Fields: fields})
	if err != nil {
		return nil, u.reportError(id, err)
	}

	u.logger.Info("отчет обновлен", zap.Int("report_id", id))
	return report, nil
}

// DeleteReport удаляет отчет.
func (u *ReportUsecase) DeleteReport(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: report id must be positive", domain.ErrInvalidRequest)
	}
	if _, err := u.deleteReport.Trigger(ctx, id); err != nil {
		return u.reportError(id, err)
	}

	u.logger.Info("отчет удален", zap.Int("report_id", id))
	return nil
}

// SaveLineItem создает, обновляет или удаляет строку расписания отчета.
func (u *ReportUsecase) SaveLineItem(ctx context.Context, resource string, reportID int, item map[string]any) (map[string]any, error) {
	if reportID <= 0 {
		return nil, fmt.Errorf("%w: report id must be positive", domain.ErrInvalidRequest)
	}
	def, err := u.registry.List(resource)
	if err != nil {
		return nil, err
	}
	if def.SaveTarget() == "" {
		return nil, fmt.Errorf("%w: %s is read-only", domain.ErrUnknownResource, resource)
	}

	saved, err := u.saveLineItem.Trigger(ctx, LineItemSave{Resource: resource, ReportID: reportID, Item: item})
	if err != nil {
		u.logger.Error("ошибка сохранения строки",
			zap.String("resource", resource),
			zap.Int("report_id", reportID),
			zap.Error(err),
		)
		return nil, err
	}
	return saved, nil
}

// List возвращает страницу любого списка из реестра.
func (u *ReportUsecase) List(ctx context.Context, resource string, p pagination.Partial, scope map[string]any) (query.Result, error) {
	def, err := u.registry.List(resource)
	if err != nil {
		return query.Result{}, err
	}
	return def.List(ctx, u.queries, u.api, p, resources.ScopeValues(def, scope)...), nil
}

// Lookup возвращает справочник из реестра.
func (u *ReportUsecase) Lookup(ctx context.Context, resource string, scope map[string]any) (query.Result, error) {
	def, err := u.registry.Lookup(resource)
	if err != nil {
		return query.Result{}, err
	}
	return def.Lookup(ctx, u.queries, u.api, resources.ScopeValues(def, scope)...), nil
}

// Summary возвращает сводку отчета.
func (u *ReportUsecase) Summary(ctx context.Context, reportID int) query.TypedResult[domain.ReportSummary] {
	return resources.ReportSummary.Query(ctx, u.queries, u.api, reportID)
}

// ExportReport скачивает выгрузку отчета.
func (u *ReportUsecase) ExportReport(ctx context.Context, id int) (*domain.Download, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: report id must be positive", domain.ErrInvalidRequest)
	}
	if err := u.rateLimiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("превышен лимит запросов: %w", err)
	}
	defer u.rateLimiter.Release()

	dl, err := u.api.Download(ctx, fmt.Sprintf("/reports/%d/export", id), nil)
	if err != nil {
		return nil, u.reportError(id, err)
	}
	return dl, nil
}

// ExportList выгружает страницу списка в xlsx. Страница берется через кэш
// запросов; устаревшая страница после неудачного обновления тоже выгружается.
func (u *ReportUsecase) ExportList(ctx context.Context, resource string, p pagination.Partial, scope map[string]any, defs []columns.ColumnDefinition) (*domain.Download, error) {
	res, err := u.List(ctx, resource, p, scope)
	if err != nil {
		return nil, err
	}
	if res.Disabled {
		return nil, domain.ErrScopeRequired
	}
	if res.Err != nil && !res.Stale {
		return nil, res.Err
	}

	rows, err := export.Rows(res.Data)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора страницы %s: %w", resource, err)
	}
	data, err := export.XLSX(resource, defs, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	u.logger.Debug("список выгружен",
		zap.String("resource", resource),
		zap.Int("rows", len(rows)),
		zap.Bool("stale", res.Stale),
	)
	return &domain.Download{
		Filename:    resource + ".xlsx",
		ContentType: export.ContentTypeXLSX,
		Data:        data,
	}, nil
}

func (u *ReportUsecase) putReport(ctx context.Context, in ReportUpdate) (*domain.ComplianceReport, error) {
	if err := u.rateLimiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("превышен лимит запросов: %w", err)
	}
	defer u.rateLimiter.Release()

	var report domain.ComplianceReport
	if err := u.api.Put(ctx, fmt.Sprintf("/reports/%d", in.ReportID), in.Fields, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (u *ReportUsecase) removeReport(ctx context.Context, id int) (struct{}, error) {
	if err := u.rateLimiter.Acquire(ctx); err != nil {
		return struct{}{}, fmt.Errorf("превышен лимит запросов: %w", err)
	}
	defer u.rateLimiter.Release()

	return struct{}{}, u.api.Delete(ctx, fmt.Sprintf("/reports/%d", id), nil)
}

func (u *ReportUsecase) postLineItem(ctx context.Context, in LineItemSave) (map[string]any, error) {
	def, err := u.registry.List(in.Resource)
	if err != nil {
		return nil, err
	}
	if err := u.rateLimiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("превышен лимит запросов: %w", err)
	}
	defer u.rateLimiter.Release()

	body := make(map[string]any, len(in.Item)+1)
	for k, v := range in.Item {
		body[k] = v
	}
	body[resources.ScopeReport] = in.ReportID

	var saved map[string]any
	if err := u.api.Post(ctx, def.SaveTarget(), body, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// lineItemEvent определяет тип мутации по телу строки
func (u *ReportUsecase) lineItemEvent(in LineItemSave, _ map[string]any) invalidation.Event {
	ev := invalidation.Event{Resource: in.Resource, Action: invalidation.ActionCreate, ReportID: in.ReportID}

	if deleted, _ := in.Item["deleted"].(bool); deleted {
		ev.Action = invalidation.ActionDelete
	}
	if def, err := u.registry.List(in.Resource); err == nil && def.IDName() != "" {
		if id, ok := asInt(in.Item[def.IDName()]); ok && id > 0 {
			ev.EntityID = id
			if ev.Action == invalidation.ActionCreate {
				ev.Action = invalidation.ActionUpdate
			}
		}
	}
	if report, ok := u.reports.GetReportByIDOrCurrent(in.ReportID); ok {
		ev.OrganizationID = report.OrganizationID
	}
	return ev
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	}
	return 0, false
}

// reportError переводит 404 API в ErrReportNotFound
func (u *ReportUsecase) reportError(id int, err error) error {
	if domain.IsNotFound(err) {
		return fmt.Errorf("%w: %d", domain.ErrReportNotFound, id)
	}
	return err
}

// prefetchSchedulesAsync прогревает первые страницы всех расписаний отчета в фоне.
// Ошибки не критичны: пользователь получит их при открытии расписания.
func (u *ReportUsecase) prefetchSchedulesAsync(reportID int) {
	defs := u.registry.ScopedBy(resources.ScopeReport)
	reqs := make([]query.PrefetchRequest, 0, len(defs))
	for _, def := range defs {
		reqs = append(reqs, def.Warm(u.api, reportID))
	}

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()

		ctx, cancel := context.WithTimeout(u.baseCtx, 30*time.Second)
		defer cancel()

		if err := u.queries.Prefetch(ctx, reqs...); err != nil && !errors.Is(err, context.Canceled) {
			u.logger.Warn("не удалось прогреть расписания",
				zap.Int("report_id", reportID),
				zap.Error(err),
			)
		}
	}()
}

// Shutdown корректно останавливает работу usecase'а.
func (u *ReportUsecase) Shutdown() {
	// Отменяем фоновые прогревы
	u.cancel()

	// Ждем, пока все фоновые задачи закончатся
	u.wg.Wait()

	u.logger.Info("бизнес-логика остановлена")
}
