package handlers

import (
	"database/sql"
	"net/http"

	"github.com/Djalves424/ProjetoDSCommerce/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CategoryHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCategoryHandler(db *sql.DB, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		db:     db,
		logger: logger,
	}
}

func (h *CategoryHandler) GetCategories(c *gin.Context) {
	ctx := c.Request.Context()

	rows, err := h.db.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY name")
	if err != nil {
		h.logger.Error("Failed to fetch categories", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(&category.ID, &category.Name); err != nil {
			h.logger.Error("Failed to scan category", zap.Error(err))
			continue
		}
		categories = append(categories, category)
	}

	c.JSON(http.StatusOK, categories)
}
