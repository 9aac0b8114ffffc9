package handlers

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"products-api/faults"
	"products-api/models"
	"products-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	msgNotFound       = "Product not found"
	msgInternalError  = "Internal server error"
	msgInvalidID      = "Invalid product ID"
	msgInvalidBody    = "Invalid request body"
	msgProductDeleted = "Product deleted"
)

// ProductStore is the persistence the handler needs. Lookups by id return
// storage.ErrNotFound when no row matches.
type ProductStore interface {
	List(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id int64) (*models.Product, error)
	Create(ctx context.Context, in models.ProductInput) (*models.Product, error)
	Update(ctx context.Context, id int64, in models.ProductInput) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
}

// EventPublisher receives an event after every successful write.
type EventPublisher interface {
	PublishProductEvent(ctx context.Context, event models.ProductEvent) error
}

type ProductHandler struct {
	store  ProductStore
	faults faults.Injector
	events EventPublisher
}

// NewProductHandler wires the handler to its store. injector decides which
// create attempts fail on purpose; events may be nil to disable publishing.
func NewProductHandler(store ProductStore, injector faults.Injector, events EventPublisher) *ProductHandler {
	if injector == nil {
		injector = faults.Never{}
	}
	return &ProductHandler{
		store:  store,
		faults: injector,
		events: events,
	}
}

// RegisterRoutes mounts the product routes on r.
func (h *ProductHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/products", h.ListProducts)
	r.POST("/products", h.CreateProduct)
	r.GET("/products/:id", h.GetProduct)
	r.PUT("/products/:id", h.UpdateProduct)
	r.DELETE("/products/:id", h.DeleteProduct)
}

// ListProducts handles GET /products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.store.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "list products", err)
		return
	}

	c.JSON(http.StatusOK, products)
}

// GetProduct handles GET /products/{id}
func (h *ProductHandler) GetProduct(c *gin.Context) {
	productID, ok := parseProductID(c)
	if !ok {
		return
	}

	product, err := h.store.Get(c.Request.Context(), productID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: msgNotFound})
		return
	}
	if err != nil {
		h.internalError(c, "get product", err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// CreateProduct handles POST /products. Attempts selected by the fault
// injector fail with 500 before the body is read or anything is written.
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	if h.faults.ShouldFail() {
		log.Printf("[%s] Simulating failure for product creation", RequestIDFrom(c))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgInternalError})
		return
	}

	req, ok := bindProductInput(c)
	if !ok {
		return
	}

	product, err := h.store.Create(c.Request.Context(), req)
	if err != nil {
		h.internalError(c, "create product", err)
		return
	}

	log.Printf("[%s] Created product with ID: %d", RequestIDFrom(c), product.ID)
	h.publish(c, models.NewProductEvent(models.ProductCreated, product.ID, product))

	c.JSON(http.StatusCreated, product)
}

// UpdateProduct handles PUT /products/{id}. All six fields are replaced;
// fields missing from the body become null.
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	productID, ok := parseProductID(c)
	if !ok {
		return
	}

	req, ok := bindProductInput(c)
	if !ok {
		return
	}

	product, err := h.store.Update(c.Request.Context(), productID, req)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: msgNotFound})
		return
	}
	if err != nil {
		h.internalError(c, "update product", err)
		return
	}

	log.Printf("[%s] Updated product with ID: %d", RequestIDFrom(c), product.ID)
	h.publish(c, models.NewProductEvent(models.ProductUpdated, product.ID, product))

	c.JSON(http.StatusOK, product)
}

// DeleteProduct handles DELETE /products/{id}
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	productID, ok := parseProductID(c)
	if !ok {
		return
	}

	err := h.store.Delete(c.Request.Context(), productID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: msgNotFound})
		return
	}
	if err != nil {
		h.internalError(c, "delete product", err)
		return
	}

	log.Printf("[%s] Deleted product with ID: %d", RequestIDFrom(c), productID)
	h.publish(c, models.NewProductEvent(models.ProductDeleted, productID, nil))

	c.JSON(http.StatusOK, models.MessageResponse{Message: msgProductDeleted})
}

// parseProductID reads the :id path parameter. Anything but a positive
// base-10 integer is answered with 400 and never reaches the store.
func parseProductID(c *gin.Context) (int64, bool) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   msgInvalidID,
			Details: "Product ID must be a positive integer",
		})
		return 0, false
	}
	return productID, true
}

// bindProductInput decodes a JSON object body. Anything else, including a
// bare null, and decimals the store cannot hold are answered with 400.
func bindProductInput(c *gin.Context) (models.ProductInput, bool) {
	var req models.ProductInput

	body, err := c.GetRawData()
	if err == nil {
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			err = errors.New("request body must be a JSON object")
		}
	}
	if err == nil {
		err = binding.JSON.BindBody(body, &req)
	}
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   msgInvalidBody,
			Details: err.Error(),
		})
		return req, false
	}
	return req, true
}

func (h *ProductHandler) internalError(c *gin.Context, op string, err error) {
	log.Printf("[%s] Failed to %s: %v", RequestIDFrom(c), op, err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgInternalError})
}

// publish is best effort; a broker failure never changes the response.
func (h *ProductHandler) publish(c *gin.Context, event models.ProductEvent) {
	if h.events == nil {
		return
	}
	if err := h.events.PublishProductEvent(c.Request.Context(), event); err != nil {
		log.Printf("[%s] Failed to publish %s for product %d: %v", RequestIDFrom(c), event.Type, event.ProductID, err)
	}
}
