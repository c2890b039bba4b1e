package domain

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Product struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	Quantity int64     `json:"quantity"`
	Category *Category `json:"category,omitempty"`
	Version  int64     `json:"version"`
}
