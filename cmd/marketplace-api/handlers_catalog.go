package main

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/coopmarket/internal/auth"
	"github.com/MikeMC777/coopmarket/internal/category"
	"github.com/MikeMC777/coopmarket/internal/cooperative"
	"github.com/MikeMC777/coopmarket/internal/httpx"
	"github.com/MikeMC777/coopmarket/internal/supplier"
	"github.com/MikeMC777/coopmarket/internal/supplierproduct"
)

// ===== cooperatives =====

func listCooperativesHandler(repo cooperative.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Paging(c)
		items, err := repo.List(c.Request.Context(), cooperative.Query{
			Q:      strings.TrimSpace(c.Query("q")),
			Region: c.Query("region"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

func getCooperativeHandler(repo cooperative.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		coop, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, coop)
	}
}

// createCooperativeHandler: admins name the owner, cooperative users always
// own what they create.
func createCooperativeHandler(repo cooperative.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req cooperative.CreateRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		coop := cooperative.Cooperative{
			OwnerID:     req.OwnerID,
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Region:      req.Region,
			Address:     req.Address,
			Phone:       req.Phone,
			Email:       req.Email,
			LogoURL:     req.LogoURL,
		}
		if !id.Is(auth.RoleAdmin) || coop.OwnerID == "" {
			coop.OwnerID = id.UserID
		}
		if coop.Name == "" {
			httpx.Error(c, httpx.Invalid("name", "is required"))
			return
		}
		if err := repo.Create(c.Request.Context(), &coop); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, coop)
	}
}

func updateCooperativeHandler(repo cooperative.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req cooperative.UpdateRequest
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
		coop := cooperative.Cooperative{
			ID:          cur.ID,
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Region:      req.Region,
			Address:     req.Address,
			Phone:       req.Phone,
			Email:       req.Email,
			LogoURL:     req.LogoURL,
		}
		if err := repo.Update(c.Request.Context(), &coop); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, coop)
	}
}

func deleteCooperativeHandler(repo cooperative.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		deleted(c, ok, err, cooperative.ErrNotFound)
	}
}

// ===== categories =====

func listCategoriesHandler(repo category.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := repo.List(c.Request.Context())
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if items == nil {
			items = []category.Category{}
		}
		httpx.OK(c, items)
	}
}

func getCategoryHandler(repo category.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, cat)
	}
}

func createCategoryHandler(repo category.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req category.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		cat := category.Category{Name: strings.TrimSpace(req.Name), Description: req.Description}
		if cat.Name == "" {
			httpx.Error(c, httpx.Invalid("name", "is required"))
			return
		}
		cat.Slug = category.Slugify(req.Slug)
		if cat.Slug == "" {
			cat.Slug = category.Slugify(cat.Name)
		}
		if cat.Slug == "" {
			httpx.Error(c, httpx.Invalid("slug", "must contain letters or digits"))
			return
		}
		if err := repo.Create(c.Request.Context(), &cat); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, cat)
	}
}

func updateCategoryHandler(repo category.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req category.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		cat := category.Category{
			ID:          c.Param("id"),
			Name:        strings.TrimSpace(req.Name),
			Slug:        category.Slugify(req.Slug),
			Description: req.Description,
		}
		if err := repo.Update(c.Request.Context(), &cat); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, cat)
	}
}

func deleteCategoryHandler(repo category.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		deleted(c, ok, err, category.ErrNotFound)
	}
}

// ===== suppliers =====

func listSuppliersHandler(repo supplier.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Paging(c)
		items, err := repo.List(c.Request.Context(), supplier.Query{
			Q:      strings.TrimSpace(c.Query("q")),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

func getSupplierHandler(repo supplier.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, s)
	}
}

func createSupplierHandler(repo supplier.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req supplier.CreateRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		s := supplier.Supplier{
			OwnerID:     req.OwnerID,
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Phone:       req.Phone,
			Email:       req.Email,
			Address:     req.Address,
		}
		if !id.Is(auth.RoleAdmin) || s.OwnerID == "" {
			s.OwnerID = id.UserID
		}
		if s.Name == "" {
			httpx.Error(c, httpx.Invalid("name", "is required"))
			return
		}
		if err := repo.Create(c.Request.Context(), &s); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, s)
	}
}

func updateSupplierHandler(repo supplier.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req supplier.UpdateRequest
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
		s := supplier.Supplier{
			ID:          cur.ID,
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Phone:       req.Phone,
			Email:       req.Email,
			Address:     req.Address,
		}
		if err := repo.Update(c.Request.Context(), &s); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, s)
	}
}

func deleteSupplierHandler(repo supplier.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		deleted(c, ok, err, supplier.ErrNotFound)
	}
}

// ===== supplier products =====

func listSupplierProductsHandler(repo supplierproduct.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Paging(c)
		items, err := repo.List(c.Request.Context(), supplierproduct.Query{
			Q:          strings.TrimSpace(c.Query("q")),
			SupplierID: c.Query("supplier_id"),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

func getSupplierProductHandler(repo supplierproduct.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, p)
	}
}

func createSupplierProductHandler(repo supplierproduct.Repository, suppliers supplier.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req supplierproduct.CreateRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		switch {
		case req.SupplierID == "":
			httpx.Error(c, httpx.Invalid("supplier_id", "is required"))
			return
		case strings.TrimSpace(req.Name) == "":
			httpx.Error(c, httpx.Invalid("name", "is required"))
			return
		case req.Price.IsNegative():
			httpx.Error(c, httpx.Invalid("price", "must not be negative"))
			return
		case req.MinOrderQty < 0:
			httpx.Error(c, httpx.Invalid("min_order_qty", "must not be negative"))
			return
		}
		s, err := suppliers.GetByID(c.Request.Context(), req.SupplierID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if err := mayEdit(id, s.OwnerID); err != nil {
			httpx.Error(c, err)
			return
		}
		p := supplierproduct.Product{
			SupplierID:  s.ID,
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Unit:        req.Unit,
			Price:       req.Price,
			MinOrderQty: max(req.MinOrderQty, 1),
			ImageURL:    req.ImageURL,
			OwnerID:     s.OwnerID,
		}
		if err := repo.Create(c.Request.Context(), &p); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, p)
	}
}

func updateSupplierProductHandler(repo supplierproduct.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req supplierproduct.UpdateRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if req.Price != nil && req.Price.IsNegative() {
			httpx.Error(c, httpx.Invalid("price", "must not be negative"))
			return
		}
		if req.MinOrderQty != nil && *req.MinOrderQty < 1 {
			httpx.Error(c, httpx.Invalid("min_order_qty", "must be at least 1"))
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
		p := supplierproduct.Product{
			ID:          cur.ID,
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Unit:        req.Unit,
			ImageURL:    req.ImageURL,
		}
		if err := repo.Update(c.Request.Context(), &p, req.Price, req.MinOrderQty); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, p)
	}
}

func deleteSupplierProductHandler(repo supplierproduct.Repository) gin.HandlerFunc {
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
		deleted(c, ok, err, supplierproduct.ErrNotFound)
	}
}
