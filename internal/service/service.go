package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"familypos/backend/internal/cache"
	"familypos/backend/internal/catalog"
	"familypos/backend/internal/domain"
	"familypos/backend/internal/events"
	"familypos/backend/internal/sheet"
	"familypos/backend/internal/store"
	"familypos/backend/internal/xid"
)

const publishTimeout = 5 * time.Second

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	ShopName  string
	Cache     cache.ReportCache
	ReportTTL time.Duration
	Publisher events.Publisher
	// Now is the clock used for report windows and the dashboard.
	Now func() time.Time
}

type Service struct {
	repo      store.Repository
	feed      *catalog.Feed
	cache     cache.ReportCache
	publisher events.Publisher
	shopName  string
	reportTTL time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func New(repo store.Repository, feed *catalog.Feed, opts Options) *Service {
	if feed == nil {
		feed = catalog.NewFeed(repo)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopReportCache{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.ReportTTL <= 0 {
		opts.ReportTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:      repo,
		feed:      feed,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		shopName:  opts.ShopName,
		reportTTL: opts.ReportTTL,
		now:       opts.Now,
		sessions:  make(map[string]*session),
	}
}

func (s *Service) Feed() *catalog.Feed {
	return s.feed
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductInput) (domain.Product, error) {
	if err := requirePrivilege(ctx); err != nil {
		return domain.Product{}, err
	}
	product, err := productFromInput(req)
	if err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.IndividualPrice, created.Stock))
	s.refreshCatalog(ctx)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductInput) (domain.Product, error) {
	if err := requirePrivilege(ctx); err != nil {
		return domain.Product{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", domain.ErrInvalidInput)
	}
	product, err := productFromInput(req)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = id

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_update", "product", updated.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", updated.Name, updated.IndividualPrice, updated.Stock))
	s.refreshCatalog(ctx)
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requirePrivilege(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "deleted")
	s.refreshCatalog(ctx)
	return nil
}

// ImportProducts creates one product per sheet row. Rows the store rejects are
// reported back and do not stop the import.
func (s *Service) ImportProducts(ctx context.Context, fileName string, r io.Reader) (domain.ImportResult, error) {
	if err := requirePrivilege(ctx); err != nil {
		return domain.ImportResult{}, err
	}
	rows, err := sheet.ParseProducts(fileName, r)
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	result := domain.ImportResult{Skipped: []string{}}
	for _, row := range rows {
		product, err := productFromInput(row.Product)
		if err == nil {
			_, err = s.repo.CreateProduct(ctx, product)
		}
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: %v", row.Row, err))
			continue
		}
		result.Created++
	}

	s.logAudit(ctx, "product_import", "product", fileName, fmt.Sprintf("created=%d,skipped=%d", result.Created, len(result.Skipped)))
	if result.Created > 0 {
		s.refreshCatalog(ctx)
	}
	return result, nil
}

// TopProducts returns up to limit products ordered by units sold.
func (s *Service) TopProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 8
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(products, func(a, b domain.Product) int {
		if a.SalesCount != b.SalesCount {
			return b.SalesCount - a.SalesCount
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.PartyInput) (domain.Customer, error) {
	if err := requirePrivilege(ctx); err != nil {
		return domain.Customer{}, err
	}
	if err := validateParty(req); err != nil {
		return domain.Customer{}, err
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:    strings.TrimSpace(req.Name),
		Contact: strings.TrimSpace(req.Contact),
		Address: strings.TrimSpace(req.Address),
		Credit:  req.Credit,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_create", "customer", created.ID, "name="+created.Name)
	s.refreshCatalog(ctx)
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.PartyInput) (domain.Customer, error) {
	if err := requirePrivilege(ctx); err != nil {
		return domain.Customer{}, err
	}
	if err := validateParty(req); err != nil {
		return domain.Customer{}, err
	}

	updated, err := s.repo.UpdateCustomer(ctx, domain.Customer{
		ID:      strings.TrimSpace(id),
		Name:    strings.TrimSpace(req.Name),
		Contact: strings.TrimSpace(req.Contact),
		Address: strings.TrimSpace(req.Address),
		Credit:  req.Credit,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_update", "customer", updated.ID, fmt.Sprintf("name=%s,credit=%d", updated.Name, updated.Credit))
	s.refreshCatalog(ctx)
	return *updated, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := requirePrivilege(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteCustomer(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_delete", "customer", id, "deleted")
	s.refreshCatalog(ctx)
	return nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.PartyInput) (domain.Supplier, error) {
	if err := requirePrivilege(ctx); err != nil {
		return domain.Supplier{}, err
	}
	if err := validateParty(req); err != nil {
		return domain.Supplier{}, err
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:    strings.TrimSpace(req.Name),
		Contact: strings.TrimSpace(req.Contact),
		Address: strings.TrimSpace(req.Address),
		Credit:  req.Credit,
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier_create", "supplier", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.PartyInput) (domain.Supplier, error) {
	if err := requirePrivilege(ctx); err != nil {
		return domain.Supplier{}, err
	}
	if err := validateParty(req); err != nil {
		return domain.Supplier{}, err
	}

	updated, err := s.repo.UpdateSupplier(ctx, domain.Supplier{
		ID:      strings.TrimSpace(id),
		Name:    strings.TrimSpace(req.Name),
		Contact: strings.TrimSpace(req.Contact),
		Address: strings.TrimSpace(req.Address),
		Credit:  req.Credit,
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier_update", "supplier", updated.ID, fmt.Sprintf("name=%s,credit=%d", updated.Name, updated.Credit))
	return *updated, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	if err := requirePrivilege(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteSupplier(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, "supplier_delete", "supplier", id, "deleted")
	return nil
}

// ListAuditLogs returns entries for the given day, or the last 24 hours when
// date is empty.
func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if err := requirePrivilege(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	var from, to time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrInvalidInput)
		}
		from = parsed.UTC()
		to = from.Add(24 * time.Hour)
	}

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func (s *Service) refreshCatalog(ctx context.Context) {
	if _, err := s.feed.Refresh(ctx); err != nil {
		log.Printf("[service] WARN: failed to refresh catalog: %v", err)
	}
}

// publish runs after the write has committed, so it must not inherit the
// request's cancellation; it gets its own bound instead.
func (s *Service) publish(ctx context.Context, eventType string, key string, payload any) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, eventType, key, payload); err != nil {
		log.Printf("[service] WARN: failed to publish %s key=%s: %v", eventType, key, err)
	}
}

func requirePrivilege(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || !actor.IsPrivileged() {
		return domain.ErrPrivilegeDenied
	}
	return nil
}

func productFromInput(req domain.ProductInput) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, fmt.Errorf("%w: product name is required", domain.ErrInvalidInput)
	}
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category == "" {
		category = "other"
	}
	if !slices.Contains(domain.ProductCategories, category) {
		return domain.Product{}, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, req.Category)
	}
	if req.PurchasePrice < 0 || req.BulkPrice < 0 || req.IndividualPrice < 0 {
		return domain.Product{}, fmt.Errorf("%w: prices must not be negative", domain.ErrInvalidInput)
	}
	if req.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock must not be negative", domain.ErrInvalidInput)
	}
	supplier := strings.TrimSpace(req.Supplier)
	if supplier == "" {
		supplier = domain.NoSupplier
	}

	return domain.Product{
		Name:     name,
		Category: category,
		Supplier: supplier,
		PriceTier: domain.PriceTier{
			PurchasePrice:   req.PurchasePrice,
			BulkPrice:       req.BulkPrice,
			IndividualPrice: req.IndividualPrice,
		},
		Stock: req.Stock,
	}, nil
}

func validateParty(req domain.PartyInput) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	return nil
}
