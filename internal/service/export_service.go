package service

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/repository"
)

const (
	ordersSheet = "Orders"
	itemsSheet  = "Items"
)

var orderColumns = []interface{}{
	"Order ID", "PO Number", "Project", "Status", "Payment Status", "Delivery Date",
	"Item Cost", "Delivery Cost", "GST", "Discount", "Other Charges", "Total", "Archived", "Created",
}

var itemColumns = []interface{}{
	"Order ID", "PO Number", "Item ID", "Product", "Supplier", "Quantity",
	"Supplier Unit Cost", "Delivery Type", "Delivery Cost", "Deliveries", "Confirmed",
}

// ExportService renders order listings as spreadsheets
type ExportService struct {
	orderRepo *repository.OrderRepository
	logger    *zap.Logger
}

// NewExportService creates a new ExportService
func NewExportService(orderRepo *repository.OrderRepository, logger *zap.Logger) *ExportService {
	return &ExportService{orderRepo: orderRepo, logger: logger}
}

// ExportOrders writes every order matching filters as an XLSX workbook with
// an order sheet and an item sheet. Admin only, since it carries supplier costs.
func (s *ExportService) ExportOrders(ctx context.Context, filters *domain.OrderFilters, w io.Writer) (int, error) {
	if err := requireAdmin(ctx); err != nil {
		return 0, err
	}
	orders, err := s.orderRepo.ListAll(ctx, filters)
	if err != nil {
		return 0, fmt.Errorf("failed to list orders: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", ordersSheet); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return 0, fmt.Errorf("failed to add sheet: %w", err)
	}
	if err := writeHeader(f, ordersSheet, orderColumns); err != nil {
		return 0, err
	}
	if err := writeHeader(f, itemsSheet, itemColumns); err != nil {
		return 0, err
	}

	itemRow := 2
	for i := range orders {
		o := &orders[i]
		if err := setRow(f, ordersSheet, i+2, orderRow(o)); err != nil {
			return 0, err
		}
		for j := range o.Items {
			if err := setRow(f, itemsSheet, itemRow, itemRowValues(o, &o.Items[j])); err != nil {
				return 0, err
			}
			itemRow++
		}
	}

	if err := f.SetPanes(ordersSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		s.logger.Warn("failed to freeze header row", zap.Error(err))
	}

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	s.logger.Info("orders exported", zap.Int("orders", len(orders)), zap.Int("items", itemRow-2))
	return len(orders), nil
}

func writeHeader(f *excelize.File, sheet string, columns []interface{}) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := setRow(f, sheet, 1, columns); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func orderRow(o *domain.Order) []interface{} {
	project := ""
	if o.Project != nil {
		project = o.Project.Name
	}
	delivery := ""
	if o.DeliveryDate != nil {
		delivery = o.DeliveryDate.Format("2006-01-02")
	}
	return []interface{}{
		o.ID,
		o.PONumber,
		project,
		string(o.OrderStatus),
		string(o.PaymentStatus),
		delivery,
		o.CustomerItemCost.InexactFloat64(),
		o.CustomerDeliveryCost.InexactFloat64(),
		o.GSTTax.InexactFloat64(),
		o.Discount.InexactFloat64(),
		o.OtherCharges.InexactFloat64(),
		o.TotalPrice.InexactFloat64(),
		o.IsArchived,
		o.CreatedAt.Format("2006-01-02 15:04"),
	}
}

func itemRowValues(o *domain.Order, it *domain.OrderItem) []interface{} {
	product, supplier := "", ""
	if it.Product != nil {
		product = it.Product.Name
	}
	if it.Supplier != nil {
		supplier = it.Supplier.Name
	}
	var unitCost interface{} = ""
	if it.SupplierUnitCost.Valid {
		unitCost = it.SupplierUnitCost.Decimal.InexactFloat64()
	}
	confirmed := 0
	for _, d := range it.Deliveries {
		if d.SupplierConfirms {
			confirmed++
		}
	}
	return []interface{}{
		o.ID,
		o.PONumber,
		it.ID,
		product,
		supplier,
		it.Quantity.InexactFloat64(),
		unitCost,
		string(it.DeliveryType),
		it.DeliveryCost.InexactFloat64(),
		len(it.Deliveries),
		confirmed,
	}
}
