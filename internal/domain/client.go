package domain

type Client struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// PlaceholderClient stands in for a client whose lookup failed.
func PlaceholderClient(id int64) *Client {
	return &Client{ID: id, Name: ClientUnavailable, Email: "N/A", Address: "N/A"}
}

// PlaceholderProduct stands in for a product whose lookup failed.
func PlaceholderProduct(id int64) *Product {
	return &Product{ID: id, Name: ProductUnavailable}
}
