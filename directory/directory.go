package directory

import (
	"strings"
	"time"
)

// Customer is the directory's view of one customer record. Tags come
// back as a single comma-separated string.
type Customer struct {
	Id             string            `json:"id"`
	Email          string            `json:"email,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	FirstName      string            `json:"firstName,omitempty"`
	LastName       string            `json:"lastName,omitempty"`
	Tags           string            `json:"tags,omitempty"`
	TotalSpent     float64           `json:"totalSpent,omitempty"`
	OrdersCount    int               `json:"ordersCount,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	DefaultAddress map[string]string `json:"defaultAddress,omitempty"`
}

func (c *Customer) TagList() []string {
	if len(c.Tags) == 0 {
		return nil
	}
	parts := strings.Split(c.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); len(t) > 0 {
			tags = append(tags, t)
		}
	}
	return tags
}

func (c *Customer) HasTag(tag string) bool {
	for _, t := range c.TagList() {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

type Order struct {
	Id         string     `json:"id"`
	TotalPrice float64    `json:"totalPrice"`
	CreatedAt  time.Time  `json:"createdAt"`
	LineItems  []LineItem `json:"lineItems,omitempty"`
}

type LineItem struct {
	ProductId   string  `json:"productId"`
	Title       string  `json:"title,omitempty"`
	ProductType string  `json:"productType,omitempty"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Service reads customer records and order history.
type Service interface {
	GetCustomer(id string) (*Customer, error)
	GetCustomerOrders(id string) ([]Order, error)
}

// Mutator applies tag and custom-field updates to a customer record.
type Mutator interface {
	AddTag(customerId string, tag string) error
	UpdateMetafield(customerId string, key string, value string) error
}
