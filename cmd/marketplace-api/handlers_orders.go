package main

import (
	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/coopmarket/internal/cart"
	"github.com/MikeMC777/coopmarket/internal/httpx"
	"github.com/MikeMC777/coopmarket/internal/order"
)

// ===== cart =====

func getCartHandler(repo cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		ct, err := repo.Get(c.Request.Context(), id.UserID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, ct)
	}
}

// addCartItemHandler adds to the quantity already in the cart for the variant.
func addCartItemHandler(repo cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req cart.AddRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if req.AttributeID == "" {
			httpx.Error(c, httpx.Invalid("attribute_id", "is required"))
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		if req.Quantity < 1 {
			httpx.Error(c, cart.ErrBadQuantity)
			return
		}
		it, err := repo.Add(c.Request.Context(), id.UserID, req.AttributeID, req.Quantity)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, it)
	}
}

func updateCartItemHandler(repo cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req cart.UpdateRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if req.Quantity < 1 {
			httpx.Error(c, cart.ErrBadQuantity)
			return
		}
		it, err := repo.SetQuantity(c.Request.Context(), id.UserID, c.Param("id"), req.Quantity)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, it)
	}
}

func removeCartItemHandler(repo cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		ok, err := repo.Remove(c.Request.Context(), id.UserID, c.Param("id"))
		deleted(c, ok, err, cart.ErrNotFound)
	}
}

func clearCartHandler(repo cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		if _, err := repo.Clear(c.Request.Context(), id.UserID); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.NoContent(c)
	}
}

// ===== orders =====

// placeOrderHandler godoc
// @Summary  Place an order
// @Description Validates stock for every line, then creates the order, its
// @Description items and the stock decrements in one transaction.
// @Tags     orders
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body order.PlaceRequest true "order"
// @Success  201 {object} httpx.Envelope{data=order.OrderResponse}
// @Failure  400 {object} httpx.Envelope
// @Failure  409 {object} httpx.Envelope
// @Router   /orders [post]
func placeOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req order.PlaceRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		resp, err := svc.Place(c.Request.Context(), id.UserID, req)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.CreatedMessage(c, resp, "order placed")
	}
}

func listOrdersHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		limit, offset := httpx.Paging(c)
		items, err := svc.List(c.Request.Context(), id, order.Status(c.Query("status")), limit, offset)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

func getOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		resp, err := svc.Get(c.Request.Context(), c.Param("id"), id)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, resp)
	}
}

func orderHistoryHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		h, err := svc.History(c.Request.Context(), c.Param("id"), id)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if h == nil {
			h = []order.History{}
		}
		httpx.OK(c, h)
	}
}

func updateOrderStatusHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req order.UpdateStatusRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		resp, err := svc.UpdateStatus(c.Request.Context(), c.Param("id"), id, req.Status, req.Note)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, resp)
	}
}

// cancelOrderHandler accepts an empty body.
func cancelOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req order.CancelRequest
		if err := httpx.BindOptionalJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		resp, err := svc.Cancel(c.Request.Context(), c.Param("id"), id, req.Reason)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OKMessage(c, resp, "order cancelled")
	}
}

func assignCourierHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.AssignCourierRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		resp, err := svc.AssignCourier(c.Request.Context(), c.Param("id"), req.CourierID, req.TrackingNumber)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, resp)
	}
}

func setPaymentHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.PaymentRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		resp, err := svc.SetPayment(c.Request.Context(), c.Param("id"), req.PaymentStatus)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, resp)
	}
}
