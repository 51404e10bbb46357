package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"productapi/internal/middleware"
	"productapi/internal/models"
	"productapi/internal/services"
	"productapi/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

var nullBody = []byte("null")

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service   *services.ProductService
	validator *validation.ProductValidator
	logger    zerolog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, validator *validation.ProductValidator, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("handler", "product").Logger(),
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Get("/", h.HandleGetProducts)
	// static segments before /:id
	productRoutes.Get("/exists/:id", h.HandleExistsByID)
	productRoutes.Post("/bulk", h.HandleCreateProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Patch("/:id", h.HandlePartialUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return h.errorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := h.validator.ValidateRequest(req); err != nil {
		return h.errorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	created, err := h.service.CreateProduct(c.UserContext(), req.ToProduct())
	if err != nil {
		if models.IsValidationError(err) {
			return h.errorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
		}
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("error creating product")
		return h.errorResponse(c, fiber.StatusInternalServerError, "Could not create product", err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// HandleGetProducts lists every product, or those whose name contains the
// "name" query parameter.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	var (
		products []models.Product
		err      error
	)
	if name := c.Query("name"); name != "" {
		products, err = h.service.SearchProductsByName(c.UserContext(), name)
	} else {
		products, err = h.service.GetAllProducts(c.UserContext())
	}
	if err != nil {
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("error getting products")
		return h.errorResponse(c, fiber.StatusInternalServerError, "Could not retrieve products", err)
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID. Every failure,
// not only an absent product, is reported as 404.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return h.notFound(c, c.Params("id"))
	}

	product, err := h.service.GetProductByID(c.UserContext(), id)
	if err != nil {
		if !errors.Is(err, models.ErrProductNotFound) {
			h.logger.Error().Err(err).Int64("product_id", id).Str("request_id", middleware.GetRequestID(c)).Msg("error getting product")
		}
		return h.notFound(c, c.Params("id"))
	}
	return c.JSON(product)
}

// HandleExistsByID reports whether a product exists. An id that does not
// parse simply does not exist.
func (h *ProductHandler) HandleExistsByID(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(false)
	}

	exists, err := h.service.ExistsByID(c.UserContext(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("product_id", id).Str("request_id", middleware.GetRequestID(c)).Msg("error checking product existence")
		return h.errorResponse(c, fiber.StatusInternalServerError, "Could not check product", err)
	}
	return c.JSON(exists)
}

// HandleUpdateProduct replaces name and price of an existing product. The
// body is validated before the product is looked up.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return h.notFound(c, c.Params("id"))
	}

	req, err := h.parseRequest(c)
	if err != nil {
		return h.errorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := h.validator.ValidateRequest(req); err != nil {
		return h.errorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	updated, err := h.service.UpdateProduct(c.UserContext(), id, req)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			return h.notFound(c, c.Params("id"))
		}
		h.logger.Error().Err(err).Int64("product_id", id).Str("request_id", middleware.GetRequestID(c)).Msg("error updating product")
		return h.errorResponse(c, fiber.StatusInternalServerError, "Could not update product", err)
	}
	return c.JSON(updated)
}

// HandlePartialUpdateProduct applies the name and price entries of a JSON
// object to an existing product.
func (h *ProductHandler) HandlePartialUpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return h.notFound(c, c.Params("id"))
	}

	var updates map[string]interface{}
	if err := c.BodyParser(&updates); err != nil {
		return h.errorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if updates == nil {
		return h.errorResponse(c, fiber.StatusBadRequest, "Invalid request body", errors.New("request body must be a JSON object"))
	}

	exists, err := h.service.ExistsByID(c.UserContext(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("product_id", id).Str("request_id", middleware.GetRequestID(c)).Msg("error checking product before patch")
		return h.errorResponse(c, fiber.StatusBadRequest, "Could not update product", err)
	}
	if !exists {
		return h.notFound(c, c.Params("id"))
	}

	updated, err := h.service.PartialUpdateProduct(c.UserContext(), id, updates)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrProductNotFound):
			return h.notFound(c, c.Params("id"))
		case models.IsValidationError(err):
			return h.errorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
		default:
			h.logger.Error().Err(err).Int64("product_id", id).Str("request_id", middleware.GetRequestID(c)).Msg("error patching product")
			return h.errorResponse(c, fiber.StatusBadRequest, "Could not update product", err)
		}
	}
	return c.JSON(updated)
}

// HandleDeleteProduct permanently removes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return h.notFound(c, c.Params("id"))
	}

	if err := h.service.DeleteProduct(c.UserContext(), id); err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			return h.notFound(c, c.Params("id"))
		}
		h.logger.Error().Err(err).Int64("product_id", id).Str("request_id", middleware.GetRequestID(c)).Msg("error deleting product")
		return h.errorResponse(c, fiber.StatusInternalServerError, "Could not delete product", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleCreateProducts creates every product in the body or none of them.
func (h *ProductHandler) HandleCreateProducts(c *fiber.Ctx) error {
	var reqs []models.ProductRequest
	if err := c.BodyParser(&reqs); err != nil {
		return h.errorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if len(reqs) == 0 {
		return h.errorResponse(c, fiber.StatusBadRequest, "At least one product is required", nil)
	}

	if err := h.validator.ValidateBatch(reqs); err != nil {
		return h.errorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	products := make([]models.Product, len(reqs))
	for i, req := range reqs {
		products[i] = req.ToProduct()
	}

	created, err := h.service.CreateProducts(c.UserContext(), products)
	if err != nil {
		if !models.IsValidationError(err) {
			h.logger.Error().Err(err).Int("count", len(products)).Str("request_id", middleware.GetRequestID(c)).Msg("error creating products")
		}
		return h.errorResponse(c, fiber.StatusBadRequest, "Could not create products", err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// parseRequest decodes a create or full-update body. A literal null is
// rejected like any other malformed body.
func (h *ProductHandler) parseRequest(c *fiber.Ctx) (models.ProductRequest, error) {
	var req models.ProductRequest
	if bytes.Equal(bytes.TrimSpace(c.Body()), nullBody) {
		return req, errors.New("request body must be a JSON object")
	}
	if err := c.BodyParser(&req); err != nil {
		return req, err
	}
	return req, nil
}

func parseID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func (h *ProductHandler) notFound(c *fiber.Ctx, rawID string) error {
	return h.errorResponse(c, fiber.StatusNotFound, fmt.Sprintf("Product with ID %s not found", rawID), nil)
}

func (h *ProductHandler) errorResponse(c *fiber.Ctx, status int, message string, err error) error {
	body := fiber.Map{
		"message":    message,
		"request_id": middleware.GetRequestID(c),
	}
	if err != nil {
		body["error"] = err.Error()
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			body["errors"] = ve.FieldMessages()
		}
	}
	return c.Status(status).JSON(body)
}
