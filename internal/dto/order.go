package dto

import "github.com/Additional-Code/orderlens/internal/entity"

// CustomerResponse is the API view of a customer.
type CustomerResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OrderItemResponse is the API view of an order line.
type OrderItemResponse struct {
	ID          int64   `json:"id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// OrderResponse is the API view of an order.
type OrderResponse struct {
	ID         int64               `json:"id"`
	CustomerID int64               `json:"customer_id"`
	Total      float64             `json:"total"`
	Status     string              `json:"status"`
	Customer   *CustomerResponse   `json:"customer,omitempty"`
	Items      []OrderItemResponse `json:"items"`
}

// FromOrder maps an entity onto its API view.
func FromOrder(order *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Total:      order.Total,
		Status:     order.Status,
		Items:      make([]OrderItemResponse, 0, len(order.Items)),
	}
	if order.Customer != nil {
		resp.Customer = &CustomerResponse{
			ID:    order.Customer.ID,
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
		}
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:          item.ID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return resp
}
