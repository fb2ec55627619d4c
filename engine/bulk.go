package engine

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/models"
	"bitbucket.org/mmdatafocus/grocery_backend/utils"
	"github.com/shopspring/decimal"
)

// bulkBuyingStatuses are the only statuses eligible for procurement aggregation.
// Unpaid orders are not committed yet and later statuses are already sourced.
var bulkBuyingStatuses = []models.OrderStatus{
	models.OrderStatusPaid,
	models.OrderStatusInSourcing,
}

// ShoppingListRow is one product line of the aggregated buying list.
type ShoppingListRow struct {
	ProductId    int             `json:"product_id"`
	ProductName  string          `json:"product_name"`
	TotalQty     decimal.Decimal `json:"total_qty"`
	OrderCount   int             `json:"order_count"`
	OrderNumbers []string        `json:"order_numbers"`
}

// GetOrdersForBulkBuying returns the orders in the given buying cycle that the
// procurement run should cover.
func (e *OrderEngine) GetOrdersForBulkBuying(ctx context.Context, cycleDate time.Time) ([]*models.Order, error) {
	day := utils.DateOnly(cycleDate, e.Calendar.Location)
	return e.Store.ForBuyingCycle(ctx, day, bulkBuyingStatuses)
}

// GetBulkShoppingList aggregates the cycle's eligible orders into one row per
// product: summed quantity, the count of distinct orders wanting it, and their
// order numbers. Rows come back sorted by product id.
func (e *OrderEngine) GetBulkShoppingList(ctx context.Context, cycleDate time.Time) ([]ShoppingListRow, error) {
	orders, err := e.GetOrdersForBulkBuying(ctx, cycleDate)
	if err != nil {
		return nil, err
	}

	rows := make(map[int]*ShoppingListRow)
	for _, order := range orders {
		// the same product may appear on several lines of one order; count the
		// order once per product
		seen := make(map[int]bool)
		for _, item := range order.Items {
			row, ok := rows[item.ProductId]
			if !ok {
				row = &ShoppingListRow{
					ProductId:   item.ProductId,
					ProductName: item.ProductName,
				}
				rows[item.ProductId] = row
			}
			row.TotalQty = row.TotalQty.Add(item.Qty)
			if !seen[item.ProductId] {
				seen[item.ProductId] = true
				row.OrderCount++
				row.OrderNumbers = append(row.OrderNumbers, order.OrderNumber)
			}
		}
	}

	results := make([]ShoppingListRow, 0, len(rows))
	for _, row := range rows {
		results = append(results, *row)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ProductId < results[j].ProductId
	})
	return results, nil
}
