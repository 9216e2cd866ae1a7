package main

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/coopmarket/internal/article"
	"github.com/MikeMC777/coopmarket/internal/attribute"
	"github.com/MikeMC777/coopmarket/internal/auth"
	"github.com/MikeMC777/coopmarket/internal/cart"
	"github.com/MikeMC777/coopmarket/internal/category"
	"github.com/MikeMC777/coopmarket/internal/comment"
	"github.com/MikeMC777/coopmarket/internal/community"
	"github.com/MikeMC777/coopmarket/internal/contact"
	"github.com/MikeMC777/coopmarket/internal/cooperative"
	"github.com/MikeMC777/coopmarket/internal/courier"
	"github.com/MikeMC777/coopmarket/internal/event"
	"github.com/MikeMC777/coopmarket/internal/httpx"
	"github.com/MikeMC777/coopmarket/internal/notify"
	"github.com/MikeMC777/coopmarket/internal/order"
	"github.com/MikeMC777/coopmarket/internal/post"
	"github.com/MikeMC777/coopmarket/internal/product"
	"github.com/MikeMC777/coopmarket/internal/storage"
	"github.com/MikeMC777/coopmarket/internal/supplier"
	"github.com/MikeMC777/coopmarket/internal/supplierproduct"
	"github.com/MikeMC777/coopmarket/internal/user"
)

// accountService is the part of user.Service the handlers call.
type accountService interface {
	Register(ctx context.Context, req user.RegisterRequest) (*user.User, error)
	Login(ctx context.Context, email, password string) (*user.LoginResponse, error)
	VerifyEmail(ctx context.Context, token string) (*user.User, error)
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	Get(ctx context.Context, id string) (*user.User, error)
	List(ctx context.Context, q user.Query) ([]user.User, error)
	Update(ctx context.Context, id string, req user.UpdateRequest) (*user.User, error)
	SetStatus(ctx context.Context, id string, st user.Status) (*user.User, error)
	Delete(ctx context.Context, id string) error
}

// orderService is the part of order.Service the handlers call.
type orderService interface {
	Place(ctx context.Context, userID string, req order.PlaceRequest) (*order.OrderResponse, error)
	Get(ctx context.Context, id string, caller auth.Identity) (*order.OrderResponse, error)
	List(ctx context.Context, caller auth.Identity, status order.Status, limit, offset int) ([]order.Summary, error)
	History(ctx context.Context, id string, caller auth.Identity) ([]order.History, error)
	UpdateStatus(ctx context.Context, id string, caller auth.Identity, to order.Status, note string) (*order.OrderResponse, error)
	Cancel(ctx context.Context, id string, caller auth.Identity, reason string) (*order.OrderResponse, error)
	AssignCourier(ctx context.Context, id, courierID, tracking string) (*order.OrderResponse, error)
	SetPayment(ctx context.Context, id string, p order.PaymentStatus) (*order.OrderResponse, error)
}

type uploader interface {
	Upload(ctx context.Context, name string, body io.Reader) (*storage.File, error)
	MaxBytes() int64
}

type socketHub interface {
	Serve(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// deps is everything the routes need. Tests fill only what they exercise.
type deps struct {
	verifier auth.Verifier
	accounts accountService
	notifier notify.Publisher
	hub      socketHub
	uploads  uploader
	ready    func(ctx context.Context) error

	cooperatives     cooperative.Repository
	suppliers        supplier.Repository
	categories       category.Repository
	products         product.Repository
	attributes       attribute.Repository
	supplierProducts supplierproduct.Repository
	events           event.Repository
	articles         article.Repository
	couriers         courier.Repository
	contacts         contact.Repository
	communities      community.Repository
	posts            post.Repository
	comments         comment.Repository
	carts            cart.Repository
	orders           orderService
}

func registerRoutes(r *gin.Engine, d deps) {
	r.GET("/healthz", healthzHandler())
	r.GET("/readyz", readyzHandler(d.ready))

	authed := httpx.RequireAuth(d.verifier)
	optional := httpx.OptionalAuth(d.verifier)
	admin := httpx.RequireRole(auth.RoleAdmin)

	api := r.Group("/api/v1")

	a := api.Group("/auth")
	a.POST("/register", registerHandler(d.accounts, d.notifier))
	a.POST("/login", loginHandler(d.accounts))
	a.POST("/verify-email", verifyEmailHandler(d.accounts))
	a.POST("/resend-verification", resendVerificationHandler(d.accounts))
	a.POST("/forgot-password", forgotPasswordHandler(d.accounts))
	a.POST("/reset-password", resetPasswordHandler(d.accounts))
	a.GET("/me", authed, meHandler(d.accounts))

	u := api.Group("/users", authed)
	u.GET("", admin, listUsersHandler(d.accounts))
	u.PATCH("/me", updateMeHandler(d.accounts))
	u.DELETE("/me", deleteMeHandler(d.accounts))
	u.GET("/:id", admin, getUserHandler(d.accounts))
	u.PATCH("/:id/status", admin, setUserStatusHandler(d.accounts))
	u.DELETE("/:id", admin, deleteUserHandler(d.accounts))

	coopRoles := httpx.RequireRole(auth.RoleAdmin, auth.RoleCooperative)
	api.GET("/cooperatives", listCooperativesHandler(d.cooperatives))
	api.GET("/cooperatives/:id", getCooperativeHandler(d.cooperatives))
	api.POST("/cooperatives", authed, coopRoles, createCooperativeHandler(d.cooperatives))
	api.PATCH("/cooperatives/:id", authed, coopRoles, updateCooperativeHandler(d.cooperatives))
	api.DELETE("/cooperatives/:id", authed, admin, deleteCooperativeHandler(d.cooperatives))

	api.GET("/categories", listCategoriesHandler(d.categories))
	api.GET("/categories/:id", getCategoryHandler(d.categories))
	api.POST("/categories", authed, admin, createCategoryHandler(d.categories))
	api.PATCH("/categories/:id", authed, admin, updateCategoryHandler(d.categories))
	api.DELETE("/categories/:id", authed, admin, deleteCategoryHandler(d.categories))

	supplierRoles := httpx.RequireRole(auth.RoleAdmin, auth.RoleSupplier)
	api.GET("/suppliers", listSuppliersHandler(d.suppliers))
	api.GET("/suppliers/:id", getSupplierHandler(d.suppliers))
	api.POST("/suppliers", authed, supplierRoles, createSupplierHandler(d.suppliers))
	api.PATCH("/suppliers/:id", authed, supplierRoles, updateSupplierHandler(d.suppliers))
	api.DELETE("/suppliers/:id", authed, admin, deleteSupplierHandler(d.suppliers))

	api.GET("/supplier-products", listSupplierProductsHandler(d.supplierProducts))
	api.GET("/supplier-products/:id", getSupplierProductHandler(d.supplierProducts))
	api.POST("/supplier-products", authed, supplierRoles, createSupplierProductHandler(d.supplierProducts, d.suppliers))
	api.PATCH("/supplier-products/:id", authed, supplierRoles, updateSupplierProductHandler(d.supplierProducts))
	api.DELETE("/supplier-products/:id", authed, supplierRoles, deleteSupplierProductHandler(d.supplierProducts))

	api.GET("/products", optional, listProductsHandler(d.products))
	api.GET("/products/:id", getProductHandler(d.products))
	api.POST("/products", authed, coopRoles, createProductHandler(d.products, d.cooperatives))
	api.PATCH("/products/:id", authed, coopRoles, updateProductHandler(d.products))
	api.DELETE("/products/:id", authed, coopRoles, deleteProductHandler(d.products))

	api.GET("/products/:id/attributes", listAttributesHandler(d.attributes))
	api.POST("/products/:id/attributes", authed, coopRoles, createAttributeHandler(d.attributes, d.products))
	api.PATCH("/attributes/:id", authed, coopRoles, updateAttributeHandler(d.attributes))
	api.PATCH("/attributes/:id/stock", authed, coopRoles, adjustStockHandler(d.attributes))
	api.DELETE("/attributes/:id", authed, coopRoles, deleteAttributeHandler(d.attributes))

	api.GET("/events", listEventsHandler(d.events))
	api.GET("/events/:id", getEventHandler(d.events))
	api.POST("/events", authed, coopRoles, createEventHandler(d.events, d.cooperatives))
	api.PATCH("/events/:id", authed, coopRoles, updateEventHandler(d.events, d.cooperatives))
	api.DELETE("/events/:id", authed, coopRoles, deleteEventHandler(d.events, d.cooperatives))

	api.GET("/articles", optional, listArticlesHandler(d.articles))
	api.GET("/articles/:id", optional, getArticleHandler(d.articles))
	api.POST("/articles", authed, admin, createArticleHandler(d.articles))
	api.PATCH("/articles/:id", authed, admin, updateArticleHandler(d.articles))
	api.DELETE("/articles/:id", authed, admin, deleteArticleHandler(d.articles))

	api.GET("/couriers", authed, coopRoles, listCouriersHandler(d.couriers))
	api.GET("/couriers/:id", authed, coopRoles, getCourierHandler(d.couriers))
	api.POST("/couriers", authed, admin, createCourierHandler(d.couriers))
	api.PATCH("/couriers/:id", authed, admin, updateCourierHandler(d.couriers))
	api.DELETE("/couriers/:id", authed, admin, deleteCourierHandler(d.couriers))

	api.POST("/contacts", createContactHandler(d.contacts, d.notifier))
	api.GET("/contacts", authed, admin, listContactsHandler(d.contacts))
	api.PATCH("/contacts/:id/read", authed, admin, markContactReadHandler(d.contacts))
	api.DELETE("/contacts/:id", authed, admin, deleteContactHandler(d.contacts))

	api.GET("/communities", listCommunitiesHandler(d.communities))
	api.GET("/communities/tree", communityTreeHandler(d.communities))
	api.GET("/communities/:id", getCommunityHandler(d.communities))
	api.POST("/communities", authed, createCommunityHandler(d.communities))
	api.PATCH("/communities/:id", authed, updateCommunityHandler(d.communities))
	api.DELETE("/communities/:id", authed, deleteCommunityHandler(d.communities))

	api.GET("/communities/:id/posts", listPostsHandler(d.posts))
	api.GET("/posts/:id", getPostHandler(d.posts))
	api.POST("/posts", authed, createPostHandler(d.posts))
	api.PATCH("/posts/:id", authed, updatePostHandler(d.posts))
	api.DELETE("/posts/:id", authed, deletePostHandler(d.posts))

	api.GET("/posts/:id/comments", optional, listCommentsHandler(d.comments))
	api.POST("/posts/:id/comments", authed, createCommentHandler(d.comments))
	api.DELETE("/comments/:id", authed, deleteCommentHandler(d.comments))
	api.POST("/comments/:id/vote", authed, voteCommentHandler(d.comments))

	c := api.Group("/cart", authed)
	c.GET("", getCartHandler(d.carts))
	c.POST("/items", addCartItemHandler(d.carts))
	c.PATCH("/items/:id", updateCartItemHandler(d.carts))
	c.DELETE("/items/:id", removeCartItemHandler(d.carts))
	c.DELETE("", clearCartHandler(d.carts))

	o := api.Group("/orders", authed)
	o.POST("", placeOrderHandler(d.orders))
	o.GET("", listOrdersHandler(d.orders))
	o.GET("/:id", getOrderHandler(d.orders))
	o.GET("/:id/history", orderHistoryHandler(d.orders))
	o.PATCH("/:id/status", coopRoles, updateOrderStatusHandler(d.orders))
	o.POST("/:id/cancel", cancelOrderHandler(d.orders))
	o.PATCH("/:id/courier", admin, assignCourierHandler(d.orders))
	o.PATCH("/:id/payment", admin, setPaymentHandler(d.orders))

	api.POST("/uploads", authed, uploadHandler(d.uploads))
	api.POST("/uploads/batch", authed, uploadBatchHandler(d.uploads))

	api.GET("/admin/notifications/ws", notificationsSocketHandler(d.verifier, d.hub))
}

func healthzHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	}
}

func readyzHandler(ready func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			if err := ready(c.Request.Context()); err != nil {
				c.String(http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		c.String(http.StatusOK, "ready")
	}
}
