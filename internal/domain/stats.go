package domain

// ClientRevenue is a client's summed invoice totals.
type ClientRevenue struct {
	ClientID   int64   `json:"client_id"`
	ClientName string  `json:"client_name"`
	Revenue    float64 `json:"revenue"`
}

// ProductSales is the quantity of a product sold across invoices.
type ProductSales struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
}
