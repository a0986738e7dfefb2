package api

import (
	"net/http"

	"socialflow/internal/models"
	"socialflow/internal/store"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	products *store.ProductRepository
}

func NewProductHandler(products *store.ProductRepository) *ProductHandler {
	return &ProductHandler{products: products}
}

// ListProducts lists the newest products, or those whose name matches ?q=.
func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.products.Search(c.Request.Context(), tenantID(c), c.Query("q"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req struct {
		Name        string   `json:"name" validate:"required,max=255"`
		Description string   `json:"description"`
		Price       *float64 `json:"price" validate:"omitempty,gte=0"`
		Currency    string   `json:"currency" validate:"max=10"`
		ImageURL    string   `json:"image_url" validate:"omitempty,url"`
		SKU         string   `json:"sku" validate:"max=100"`
		InStock     *bool    `json:"in_stock"`
	}
	if !bind(c, &req) {
		return
	}

	product := &models.Product{
		TenantID:    tenantID(c),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		ImageURL:    req.ImageURL,
		SKU:         req.SKU,
		InStock:     req.InStock == nil || *req.InStock,
	}
	if err := h.products.Create(c.Request.Context(), product); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}
