package main

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/coopmarket/internal/attribute"
	"github.com/MikeMC777/coopmarket/internal/auth"
	"github.com/MikeMC777/coopmarket/internal/cooperative"
	"github.com/MikeMC777/coopmarket/internal/httpx"
	"github.com/MikeMC777/coopmarket/internal/product"
)

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func validVariant(v attribute.CreateRequest) error {
	switch {
	case strings.TrimSpace(v.Name) == "":
		return httpx.Invalid("name", "is required")
	case v.Price.IsNegative():
		return httpx.Invalid("price", "must not be negative")
	case v.Stock < 0:
		return httpx.Invalid("stock", "must not be negative")
	}
	return nil
}

// listProductsHandler godoc
// @Summary  List products
// @Tags     products
// @Produce  json
// @Param    q              query string false "search in name and description"
// @Param    category_id    query string false "category filter"
// @Param    cooperative_id query string false "cooperative filter"
// @Param    limit          query int    false "page size"
// @Param    offset         query int    false "page offset"
// @Success  200 {object} httpx.Envelope
// @Router   /products [get]
func listProductsHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Paging(c)
		q := product.Query{
			Q:             strings.TrimSpace(c.Query("q")),
			CategoryID:    c.Query("category_id"),
			CooperativeID: c.Query("cooperative_id"),
			Limit:         limit,
			Offset:        offset,
		}
		if id, ok := httpx.IdentityFrom(c); ok && id.Is(auth.RoleAdmin) {
			q.IncludeInactive = boolQuery(c, "include_inactive")
		}
		items, err := repo.List(c.Request.Context(), q)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

func getProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, p)
	}
}

func createProductHandler(repo product.Repository, coops cooperative.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req product.CreateProductRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			httpx.Error(c, httpx.Invalid("name", "is required"))
			return
		}
		for _, v := range req.Variants {
			if err := validVariant(v); err != nil {
				httpx.Error(c, err)
				return
			}
		}
		coopID, err := ownCooperative(c.Request.Context(), coops, id, req.CooperativeID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		p := product.Product{
			CooperativeID: coopID,
			CategoryID:    optionalString(req.CategoryID),
			Name:          strings.TrimSpace(req.Name),
			Description:   req.Description,
			ImageURLs:     req.ImageURLs,
		}
		if err := repo.Create(c.Request.Context(), &p, req.Variants); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, p)
	}
}

func updateProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req product.UpdateProductRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		cur, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if err := mayEdit(id, cur.OwnerID); err != nil {
			httpx.Error(c, err)
			return
		}
		p := product.Product{
			ID:          cur.ID,
			CategoryID:  optionalString(req.CategoryID),
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			ImageURLs:   req.ImageURLs,
		}
		if err := repo.Update(c.Request.Context(), &p, req.IsActive); err != nil {
			httpx.Error(c, err)
			return
		}
		fresh, err := repo.GetByID(c.Request.Context(), cur.ID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, fresh)
	}
}

func deleteProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		cur, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if err := mayEdit(id, cur.OwnerID); err != nil {
			httpx.Error(c, err)
			return
		}
		ok, err = repo.Delete(c.Request.Context(), cur.ID)
		deleted(c, ok, err, product.ErrNotFound)
	}
}

// ===== attributes =====

func listAttributesHandler(repo attribute.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := repo.ListByProduct(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if items == nil {
			items = []attribute.Attribute{}
		}
		httpx.OK(c, items)
	}
}

func createAttributeHandler(repo attribute.Repository, products product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req attribute.CreateRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if err := validVariant(req); err != nil {
			httpx.Error(c, err)
			return
		}
		p, err := products.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if err := mayEdit(id, p.OwnerID); err != nil {
			httpx.Error(c, err)
			return
		}
		a := attribute.Attribute{
			ProductID: p.ID,
			Name:      strings.TrimSpace(req.Name),
			SKU:       req.SKU,
			Price:     req.Price,
			Stock:     req.Stock,
			OwnerID:   p.OwnerID,
		}
		if err := repo.Create(c.Request.Context(), &a); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, a)
	}
}

// ownedAttribute loads the attribute in the path and checks the caller may
// change it.
func ownedAttribute(c *gin.Context, repo attribute.Repository) (*attribute.Attribute, bool) {
	id, ok := caller(c)
	if !ok {
		return nil, false
	}
	a, err := repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return nil, false
	}
	if err := mayEdit(id, a.OwnerID); err != nil {
		httpx.Error(c, err)
		return nil, false
	}
	return a, true
}

func updateAttributeHandler(repo attribute.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req attribute.UpdateRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if req.Price != nil && req.Price.IsNegative() {
			httpx.Error(c, httpx.Invalid("price", "must not be negative"))
			return
		}
		if req.Stock != nil && *req.Stock < 0 {
			httpx.Error(c, httpx.Invalid("stock", "must not be negative"))
			return
		}
		cur, ok := ownedAttribute(c, repo)
		if !ok {
			return
		}
		a := attribute.Attribute{ID: cur.ID, Name: strings.TrimSpace(req.Name), SKU: req.SKU}
		if err := repo.Update(c.Request.Context(), &a, req.Price, req.Stock); err != nil {
			httpx.Error(c, err)
			return
		}
		fresh, err := repo.GetByID(c.Request.Context(), cur.ID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, fresh)
	}
}

func adjustStockHandler(repo attribute.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req attribute.StockDeltaRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if req.Delta == 0 {
			httpx.Error(c, httpx.Invalid("delta", "must not be zero"))
			return
		}
		cur, ok := ownedAttribute(c, repo)
		if !ok {
			return
		}
		a, err := repo.AdjustStock(c.Request.Context(), cur.ID, req.Delta)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, a)
	}
}

func deleteAttributeHandler(repo attribute.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cur, ok := ownedAttribute(c, repo)
		if !ok {
			return
		}
		ok, err := repo.Delete(c.Request.Context(), cur.ID)
		deleted(c, ok, err, attribute.ErrNotFound)
	}
}
