package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/auth"
	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
	"github.com/bulkmat/order-api/internal/lock"
	"github.com/bulkmat/order-api/internal/mapper"
	"github.com/bulkmat/order-api/internal/repository"
)

// DefaultLockTTL bounds how long an order edit may hold its lock
const DefaultLockTTL = 30 * time.Second

// OrderService handles business logic for orders: placement, editing,
// pricing and the fulfillment workflow
type OrderService struct {
	orderRepo    *repository.OrderRepository
	projectRepo  *repository.ProjectRepository
	productRepo  *repository.ProductRepository
	supplierRepo *repository.SupplierRepository
	offerRepo    *repository.SupplierOfferRepository
	activityRepo *repository.ActivityRepository
	editor       *fulfillment.Editor
	calculator   fulfillment.Calculator
	locker       lock.Locker
	lockTTL      time.Duration
	logger       *zap.Logger
}

// NewOrderService creates a new OrderService. The engine tunables are parsed
// from cfg; a nil locker falls back to an in-process lock.
func NewOrderService(
	orderRepo *repository.OrderRepository,
	projectRepo *repository.ProjectRepository,
	productRepo *repository.ProductRepository,
	supplierRepo *repository.SupplierRepository,
	offerRepo *repository.SupplierOfferRepository,
	activityRepo *repository.ActivityRepository,
	cfg *config.EngineConfig,
	locker lock.Locker,
	lockTTL time.Duration,
	logger *zap.Logger,
) (*OrderService, error) {
	epsilon, err := cfg.Epsilon()
	if err != nil {
		return nil, err
	}
	rate, err := cfg.Rate()
	if err != nil {
		return nil, err
	}
	alloc := fulfillment.NewAllocator(epsilon)
	if cfg.MaxLoads > 0 {
		alloc.MaxLoads = cfg.MaxLoads
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &OrderService{
		orderRepo:    orderRepo,
		projectRepo:  projectRepo,
		productRepo:  productRepo,
		supplierRepo: supplierRepo,
		offerRepo:    offerRepo,
		activityRepo: activityRepo,
		editor:       fulfillment.NewEditor(alloc),
		calculator:   fulfillment.NewCalculator(rate, cfg.MoneyPlaces),
		locker:       locker,
		lockTTL:      lockTTL,
		logger:       logger,
	}, nil
}

// Calculator returns the pricing calculator used for all breakdowns
func (s *OrderService) Calculator() fulfillment.Calculator {
	return s.calculator
}

// Get returns an order projected for the caller's role
func (s *OrderService) Get(ctx context.Context, id uint) (*domain.OrderDTO, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToOrderDTO(order, callerRole(ctx), s.calculator.Price(mapper.ToPricingInput(order)))
	return &dto, nil
}

// List returns a page of orders visible to the caller
func (s *OrderService) List(ctx context.Context, page, pageSize int, filters *domain.OrderFilters, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}

	orders, total, err := s.orderRepo.List(ctx, page, pageSize, filters, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	role := callerRole(ctx)
	dtos := make([]domain.OrderDTO, len(orders))
	for i := range orders {
		dtos[i] = mapper.ToOrderDTO(&orders[i], role, s.calculator.Price(mapper.ToPricingInput(&orders[i])))
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Pricing returns the pricing projection of an order for the caller's role
func (s *OrderService) Pricing(ctx context.Context, id uint) (*fulfillment.PricingView, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.calculator.Price(mapper.ToPricingInput(order)).ViewFor(callerRole(ctx))
	return &view, nil
}

// Create places a new order on one of the caller's projects. Item deliveries
// are expanded by load size, validated for allocation and every item is
// assigned the cheapest supplier offer when one exists.
func (s *OrderService) Create(ctx context.Context, req *domain.CreateOrderRequest) (*domain.OrderDTO, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}
	if !user.HasRole(domain.RoleClient, domain.RoleAdmin) {
		return nil, ErrPermissionDenied
	}

	status := req.Status
	if status == "" {
		status = domain.OrderStatusDraft
	}
	if status != domain.OrderStatusDraft && status != domain.OrderStatusConfirmed {
		return nil, fmt.Errorf("%w: new orders start as Draft or Confirmed", ErrInvalidInput)
	}

	project, err := s.projectRepo.GetByID(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	draft := fulfillment.OrderDraft{Items: make([]fulfillment.ItemDraft, 0, len(req.Items))}
	for i, it := range req.Items {
		draft.Items = append(draft.Items, fulfillment.ItemDraft{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			CustomBlendMix: it.CustomBlendMix,
			Slots:          mapper.ToSlotDrafts(it.Deliveries),
			Field:          fmt.Sprintf("items[%d]", i),
		})
	}
	payload, err := s.editor.BuildEditPayload(fulfillment.OrderState{Status: status}, draft, user.Actor())
	if err != nil {
		return nil, err
	}
	if err := s.ensureProducts(ctx, payload.ItemsAdd, "items"); err != nil {
		return nil, err
	}

	order := &domain.Order{
		PONumber:            strings.TrimSpace(req.PONumber),
		ProjectID:           project.ID,
		ClientID:            project.ClientID,
		OrderStatus:         status,
		PaymentStatus:       domain.PaymentStatusUnpaid,
		DeliveryAddress:     firstNonEmpty(req.DeliveryAddress, project.DeliveryAddress),
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		DeliveryMethod:      req.DeliveryMethod,
		ContactPersonName:   firstNonEmpty(req.ContactPersonName, project.SiteContactName),
		ContactPersonNumber: firstNonEmpty(req.ContactPersonNumber, project.SiteContactNumber),
		SiteInstructions:    firstNonEmpty(req.SiteInstructions, project.SiteInstructions),
	}
	if order.PONumber == "" {
		order.PONumber = generatePONumber()
	}
	if order.Latitude == nil && order.Longitude == nil {
		order.Latitude, order.Longitude = project.Latitude, project.Longitude
	}

	for _, add := range payload.ItemsAdd {
		item, err := repository.NewOrderItem(add)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		s.assignCheapestSupplier(ctx, &item)
		order.Items = append(order.Items, item)
	}
	order.DeliveryDate, order.DeliveryTime = earliestDelivery(order.Items)

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	created, err := s.reprice(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, order.ID, "Order placed",
		fmt.Sprintf("Order %s placed with %d item(s)", order.PONumber, len(order.Items)))
	s.logger.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.String("po_number", order.PONumber),
		zap.Uint("project_id", project.ID),
		zap.Int("items", len(order.Items)))

	dto := mapper.ToOrderDTO(created, user.Role, s.calculator.Price(mapper.ToPricingInput(created)))
	return &dto, nil
}

// RecalculateAll reprices every order and stores totals that drifted from
// their inputs. It returns how many orders changed and how many failed.
func (s *OrderService) RecalculateAll(ctx context.Context) (updated int, failed int, err error) {
	ids, err := s.orderRepo.ListIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return updated, failed, ctx.Err()
		}
		order, err := s.orderRepo.GetByID(ctx, id)
		if err != nil {
			failed++
			s.logger.Warn("failed to load order for recalculation", zap.Uint("order_id", id), zap.Error(err))
			continue
		}
		b := s.calculator.Price(mapper.ToPricingInput(order))
		if totalsMatch(order, b) {
			continue
		}
		if err := s.saveTotals(ctx, order, b); err != nil {
			failed++
			s.logger.Warn("failed to store recalculated totals", zap.Uint("order_id", id), zap.Error(err))
			continue
		}
		updated++
		s.logger.Info("order totals recalculated",
			zap.Uint("order_id", id),
			zap.String("previous_total", order.TotalPrice.String()),
			zap.String("total", b.TotalPrice.String()))
	}
	return updated, failed, nil
}

func (s *OrderService) load(ctx context.Context, id uint) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// reprice reloads an order, derives its totals and stores them
func (s *OrderService) reprice(ctx context.Context, id uint) (*domain.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	b := s.calculator.Price(mapper.ToPricingInput(order))
	if err := s.saveTotals(ctx, order, b); err != nil {
		return nil, err
	}
	applyTotals(order, b)
	return order, nil
}

func (s *OrderService) saveTotals(ctx context.Context, order *domain.Order, b fulfillment.Breakdown) error {
	itemCosts := make(map[uint]decimal.Decimal, len(b.Items))
	for _, ib := range b.Items {
		itemCosts[ib.ItemID] = ib.DeliveryCost
	}
	totals := repository.OrderTotals{
		CustomerItemCost:     b.CustomerItemCost,
		CustomerDeliveryCost: b.CustomerDeliveryCost,
		GSTTax:               b.GSTTax,
		Discount:             b.Discount,
		OtherCharges:         b.OtherCharges,
		TotalPrice:           b.TotalPrice,
	}
	if err := s.orderRepo.SaveTotals(ctx, order.ID, totals, itemCosts); err != nil {
		return fmt.Errorf("failed to store order totals: %w", err)
	}
	return nil
}

func applyTotals(order *domain.Order, b fulfillment.Breakdown) {
	order.CustomerItemCost = b.CustomerItemCost
	order.CustomerDeliveryCost = b.CustomerDeliveryCost
	order.GSTTax = b.GSTTax
	order.Discount = b.Discount
	order.OtherCharges = b.OtherCharges
	order.TotalPrice = b.TotalPrice
	costs := make(map[uint]decimal.Decimal, len(b.Items))
	for _, ib := range b.Items {
		costs[ib.ItemID] = ib.DeliveryCost
	}
	for i := range order.Items {
		order.Items[i].DeliveryCost = costs[order.Items[i].ID]
	}
}

func totalsMatch(order *domain.Order, b fulfillment.Breakdown) bool {
	return order.CustomerItemCost.Equal(b.CustomerItemCost) &&
		order.CustomerDeliveryCost.Equal(b.CustomerDeliveryCost) &&
		order.GSTTax.Equal(b.GSTTax) &&
		order.TotalPrice.Equal(b.TotalPrice)
}

// ensureProducts checks every added item references an active product
func (s *OrderService) ensureProducts(ctx context.Context, adds []domain.ItemAdd, prefix string) error {
	ids := make([]uint, 0, len(adds))
	for _, a := range adds {
		ids = append(ids, a.ProductID)
	}
	active, err := s.productRepo.ActiveIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to check products: %w", err)
	}
	verr := &fulfillment.ValidationError{}
	for i, a := range adds {
		if !active[a.ProductID] {
			verr.Add(fmt.Sprintf("%s[%d].product_id", prefix, i), fulfillment.CodeUnknownID,
				fmt.Sprintf("product %d is not available", a.ProductID))
		}
	}
	return verr.ErrOrNil()
}

// assignCheapestSupplier prices a new item from the lowest standing supplier
// offer. Items without an offer stay unassigned and unavailable.
func (s *OrderService) assignCheapestSupplier(ctx context.Context, item *domain.OrderItem) {
	if s.offerRepo == nil {
		return
	}
	offer, err := s.offerRepo.CheapestForProduct(ctx, item.ProductID)
	if err != nil {
		s.logger.Warn("failed to look up supplier offer", zap.Uint("product_id", item.ProductID), zap.Error(err))
		return
	}
	if offer == nil {
		return
	}
	supplierID, offerID := offer.SupplierID, offer.ID
	pending := false
	item.SupplierID = &supplierID
	item.SupplierOfferID = &offerID
	item.SupplierUnitCost = decimal.NewNullDecimal(offer.UnitCost)
	item.SupplierConfirms = &pending
}

// logActivity records an entry on the order timeline. Failures are logged, not returned.
func (s *OrderService) logActivity(ctx context.Context, orderID uint, title, body string) {
	activity := &domain.OrderActivity{
		OrderID:   orderID,
		ActorRole: domain.RoleAdmin,
		Title:     title,
		Body:      body,
	}
	if user, ok := auth.FromContext(ctx); ok {
		activity.ActorID = user.UserID
		activity.ActorRole = user.Role
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		s.logger.Warn("failed to log activity", zap.Uint("order_id", orderID), zap.Error(err))
	}
}

func callerRole(ctx context.Context) domain.Role {
	if user, ok := auth.FromContext(ctx); ok {
		return user.Role
	}
	return domain.RoleAdmin
}

func earliestDelivery(items []domain.OrderItem) (*time.Time, *string) {
	var date *time.Time
	var clock *string
	for _, it := range items {
		for _, d := range it.Deliveries {
			if date == nil || d.DeliveryDate.Before(*date) {
				dd := d.DeliveryDate
				date = &dd
				clock = d.DeliveryTime
			}
		}
	}
	return date, clock
}

func generatePONumber() string {
	return "PO-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
