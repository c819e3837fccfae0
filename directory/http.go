package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HttpClient is a thin adapter over the customer directory's REST API.
type HttpClient struct {
	baseUrl string
	client  *http.Client
}

var _ Service = new(HttpClient)
var _ Mutator = new(HttpClient)

func NewHttpClient(baseUrl string) *HttpClient {
	return &HttpClient{
		baseUrl: baseUrl,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HttpClient) GetCustomer(id string) (*Customer, error) {
	resp, err := c.client.Get(fmt.Sprintf("%s/customers/%s", c.baseUrl, id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status %d for customer %s", resp.StatusCode, id)
	}
	var customer Customer
	if err := json.NewDecoder(resp.Body).Decode(&customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (c *HttpClient) GetCustomerOrders(id string) ([]Order, error) {
	resp, err := c.client.Get(fmt.Sprintf("%s/customers/%s/orders", c.baseUrl, id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status %d for customer %s orders", resp.StatusCode, id)
	}
	var orders []Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *HttpClient) AddTag(customerId string, tag string) error {
	return c.post(fmt.Sprintf("%s/customers/%s/tags", c.baseUrl, customerId), map[string]string{"tag": tag})
}

func (c *HttpClient) UpdateMetafield(customerId string, key string, value string) error {
	return c.post(fmt.Sprintf("%s/customers/%s/metafields", c.baseUrl, customerId), map[string]string{"key": key, "value": value})
}

func (c *HttpClient) post(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("directory mutation returned status %d", resp.StatusCode)
	}
	return nil
}
