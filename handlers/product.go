package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Djalves424/ProjetoDSCommerce/cache"
	"github.com/Djalves424/ProjetoDSCommerce/circuitbreaker"
	"github.com/Djalves424/ProjetoDSCommerce/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

type ProductHandler struct {
	db             *sql.DB
	redisClient    *redis.Client
	logger         *zap.Logger
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewProductHandler(db *sql.DB, redisClient *redis.Client, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		db:             db,
		redisClient:    redisClient,
		logger:         logger,
		circuitBreaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
	}
}

// GetProducts returns a page of the catalog filtered by a case-insensitive
// substring match on name, ordered by name ascending. Page index is zero-based.
func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx, span := otel.Tracer("commerce-api").Start(c.Request.Context(), "GetProducts")
	defer span.End()

	name := c.Query("name")
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		writeError(c, http.StatusBadRequest, "Invalid page parameter")
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 || size > maxPageSize {
		writeError(c, http.StatusBadRequest, "Invalid size parameter")
		return
	}

	span.SetAttributes(
		attribute.String("filter.name", name),
		attribute.Int("page", page),
		attribute.Int("size", size),
	)

	filter := "%" + name + "%"

	var total int64
	err = h.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE name ILIKE $1", filter,
	).Scan(&total)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to count products", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, name, price, COALESCE(image_url, '') FROM products WHERE name ILIKE $1 ORDER BY name ASC LIMIT $2 OFFSET $3",
		filter, size, page*size,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch products", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer rows.Close()

	products := []models.ProductMin{}
	for rows.Next() {
		var p models.ProductMin
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan product", zap.Error(err))
			continue
		}
		products = append(products, p)
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, models.PageResponse{
		Content:       products,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
	})
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("commerce-api").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	// Try the cache first
	if h.redisClient != nil {
		if cachedData, err := cache.GetProduct(ctx, h.redisClient, id); err == nil {
			var product models.Product
			if err := json.Unmarshal(cachedData, &product); err == nil {
				span.SetAttributes(attribute.Bool("cache.hit", true))
				c.JSON(http.StatusOK, product)
				return
			}
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// Fall back to the database behind the circuit breaker
	var product models.Product
	dbErr := h.circuitBreaker.Execute(ctx, func() error {
		return h.fetchProduct(ctx, id, &product)
	})

	if dbErr != nil {
		if errors.Is(dbErr, circuitbreaker.ErrCircuitOpen) {
			span.SetAttributes(attribute.String("circuit.state", "open"))
			writeError(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		}
		if errors.Is(dbErr, sql.ErrNoRows) {
			writeError(c, http.StatusNotFound, "Product not found")
			return
		}
		span.RecordError(dbErr)
		h.logger.Error("Failed to fetch product", zap.Error(dbErr))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.redisClient != nil {
		if err := cache.SetProduct(ctx, h.redisClient, id, product); err != nil {
			h.logger.Warn("Failed to cache product", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("commerce-api").Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req models.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer tx.Rollback()

	var product models.Product
	err = tx.QueryRowContext(ctx,
		"INSERT INTO products (name, description, price, image_url) VALUES ($1, $2, $3, $4) RETURNING id, name, description, price, COALESCE(image_url, ''), created_at, updated_at",
		req.Name, req.Description, req.Price, req.ImageURL,
	).Scan(&product.ID, &product.Name, &product.Description, &product.Price, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create product", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if ok := h.linkCategories(c, ctx, tx, product.ID, req.CategoryIDs); !ok {
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit product", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	product.Categories, err = h.loadCategories(ctx, product.ID)
	if err != nil {
		h.logger.Warn("Failed to load categories", zap.Error(err))
	}

	span.SetAttributes(attribute.Int("product.id", product.ID))
	h.logger.Info("Product created", zap.Int("product_id", product.ID))
	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("commerce-api").Start(c.Request.Context(), "UpdateProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	var req models.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer tx.Rollback()

	var product models.Product
	err = tx.QueryRowContext(ctx,
		"UPDATE products SET name = $1, description = $2, price = $3, image_url = $4, updated_at = CURRENT_TIMESTAMP WHERE id = $5 RETURNING id, name, description, price, COALESCE(image_url, ''), created_at, updated_at",
		req.Name, req.Description, req.Price, req.ImageURL, id,
	).Scan(&product.ID, &product.Name, &product.Description, &product.Price, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(c, http.StatusNotFound, "Product not found")
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to update product", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM product_categories WHERE product_id = $1", product.ID); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to clear categories", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if ok := h.linkCategories(c, ctx, tx, product.ID, req.CategoryIDs); !ok {
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit product", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.redisClient != nil {
		cache.DeleteProduct(ctx, h.redisClient, id)
	}

	product.Categories, err = h.loadCategories(ctx, product.ID)
	if err != nil {
		h.logger.Warn("Failed to load categories", zap.Error(err))
	}

	h.logger.Info("Product updated", zap.String("product_id", id))
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx, span := otel.Tracer("commerce-api").Start(c.Request.Context(), "DeleteProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	// The relational layer no longer enforces this; the check is explicit.
	var refs int
	err := h.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM order_items WHERE product_id = $1", id,
	).Scan(&refs)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to check product references", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if refs > 0 {
		writeError(c, http.StatusBadRequest, "Cannot delete: product is referenced by existing order items")
		return
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM product_categories WHERE product_id = $1", id); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete product categories", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete product", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		writeError(c, http.StatusNotFound, "Product not found")
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit delete", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if h.redisClient != nil {
		cache.DeleteProduct(ctx, h.redisClient, id)
	}

	h.logger.Info("Product deleted", zap.String("product_id", id))
	c.Status(http.StatusNoContent)
}

func (h *ProductHandler) fetchProduct(ctx context.Context, id string, product *models.Product) error {
	err := h.db.QueryRowContext(ctx,
		"SELECT id, name, description, price, COALESCE(image_url, ''), created_at, updated_at FROM products WHERE id = $1",
		id,
	).Scan(&product.ID, &product.Name, &product.Description, &product.Price, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return err
	}

	product.Categories, err = h.loadCategories(ctx, product.ID)
	return err
}

func (h *ProductHandler) loadCategories(ctx context.Context, productID int) ([]models.Category, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT c.id, c.name FROM categories c JOIN product_categories pc ON pc.category_id = c.id WHERE pc.product_id = $1 ORDER BY c.name",
		productID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(&category.ID, &category.Name); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// linkCategories attaches the category set inside the surrounding
// transaction; an unknown category id is a validation failure.
func (h *ProductHandler) linkCategories(c *gin.Context, ctx context.Context, tx *sql.Tx, productID int, categoryIDs []int) bool {
	for _, categoryID := range categoryIDs {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO product_categories (product_id, category_id) SELECT $1, id FROM categories WHERE id = $2 ON CONFLICT DO NOTHING",
			productID, categoryID,
		)
		if err != nil {
			h.logger.Error("Failed to link category", zap.Error(err))
			writeError(c, http.StatusInternalServerError, "Internal server error")
			return false
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			writeError(c, http.StatusUnprocessableEntity, "Unknown category id")
			return false
		}
	}
	return true
}
