package engine

import (
	"strings"

	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"go.uber.org/zap"
)

const GOAL_ORDER_VALUE string = "order_value"
const GOAL_PRODUCT_PURCHASED string = "product_purchased"
const GOAL_TAG_ADDED string = "tag_added"
const GOAL_LINK_CLICKED string = "link_clicked"
const GOAL_ORDER_ANY string = "order_any"

// checkGoal evaluates a goal node's predicate against activity since the
// enrollment entered the journey. The returned value is the conversion
// value when the goal carries one.
func (e *Engine) checkGoal(enrollment *model.Enrollment, cfg *model.GoalConfig) (bool, float64) {
	switch cfg.GoalType {
	case GOAL_TAG_ADDED:
		customer, err := e.directory.GetCustomer(enrollment.CustomerId)
		if err != nil || customer == nil {
			return false, 0
		}
		return customer.HasTag(cfg.Tag), 0
	case GOAL_LINK_CLICKED:
		records, err := e.storage.Activities().GetByEnrollment(enrollment.Id)
		if err != nil {
			return false, 0
		}
		for _, record := range records {
			if record.EventType != model.ACTIVITY_LINK_CLICKED {
				continue
			}
			trackingId, _ := record.Data["trackingId"].(string)
			if strings.EqualFold(trackingId, cfg.TrackingId) {
				return true, 0
			}
		}
		return false, 0
	}

	orders, err := e.directory.GetCustomerOrders(enrollment.CustomerId)
	if err != nil {
		logger.Error("error loading orders for goal check", zap.String("customerId", enrollment.CustomerId), zap.Error(err))
		return false, 0
	}
	var sinceEntry []struct {
		total float64
		items []string
	}
	var total float64
	for _, order := range orders {
		if !order.CreatedAt.After(enrollment.EnteredAt) {
			continue
		}
		var items []string
		for _, li := range order.LineItems {
			items = append(items, li.ProductId)
		}
		sinceEntry = append(sinceEntry, struct {
			total float64
			items []string
		}{order.TotalPrice, items})
		total += order.TotalPrice
	}

	switch cfg.GoalType {
	case GOAL_ORDER_VALUE:
		return total >= cfg.Threshold, total
	case GOAL_PRODUCT_PURCHASED:
		for _, order := range sinceEntry {
			for _, productId := range order.items {
				if productId == cfg.ProductId {
					return true, order.total
				}
			}
		}
		return false, 0
	default:
		// order_any: any order placed since entry
		if len(sinceEntry) > 0 {
			return true, total
		}
		return false, 0
	}
}
