package core

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Repositories bundles the persistence interfaces the router wires into
// handlers. Tests substitute in-memory implementations.
type Repositories struct {
	Users     UserRepository
	Suppliers SupplierRepository
	Parts     PartRepository
	Orders    OrderRepository
}

// NewRouter constructs the Gin engine with routes wired.
// Pipeline: CORS -> authentication (token -> identity) -> access policy -> handler.
func NewRouter(cfg Config, codec *TokenCodec, authService AuthService, policy *AccessPolicy,
	repos Repositories, limiter *LoginLimiter, metrics *AuthMetrics,
	db *pgxpool.Pool, redisClient *redis.Client) *gin.Engine {

	startedAt := time.Now()
	r := gin.Default()

	r.Use(CORSMiddleware(cfg))
	r.Use(AuthenticationMiddleware(codec, repos.Users, policy))
	r.Use(policy.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/login", func(c *gin.Context) {
			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}

			ctx := c.Request.Context()
			if ok, err := limiter.Allow(ctx, req.Username); err != nil {
				log.Printf("login limiter error: %v", err)
			} else if !ok {
				respondError(c, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "too many login attempts, retry later")
				return
			}

			token, err := authService.Login(ctx, req.Username, req.Password)
			if err != nil {
				metrics.RecordLoginFailure(ctx)
				// One uniform rejection: unknown user and wrong password
				// are indistinguishable here.
				respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
				return
			}

			metrics.RecordLoginSuccess(ctx)
			c.JSON(http.StatusOK, gin.H{"token": token})
		})

		api.POST("/register", func(c *gin.Context) {
			var req RegisterRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid registration payload")
				return
			}

			ctx := c.Request.Context()
			token, err := authService.Register(ctx, req)
			if err != nil {
				switch {
				case errors.Is(err, ErrDuplicateUsername):
					respondError(c, http.StatusConflict, "DUPLICATE_USERNAME", "username already exists")
				case errors.Is(err, ErrDuplicateEmail):
					respondError(c, http.StatusConflict, "DUPLICATE_EMAIL", "email already exists")
				default:
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "registration failed")
				}
				return
			}

			metrics.RecordRegistration(ctx)
			c.JSON(http.StatusOK, gin.H{"token": token})
		})

		api.GET("/carPart", func(c *gin.Context) {
			parts, err := repos.Parts.List(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to list parts")
				return
			}
			c.JSON(http.StatusOK, gin.H{"parts": parts})
		})

		api.POST("/carPart/:supplierId", func(c *gin.Context) {
			supplierID, ok := pathID(c, "supplierId")
			if !ok {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid supplier id")
				return
			}
			var req struct {
				Name  string  `json:"name" binding:"required"`
				Price float64 `json:"price"`
				Stock int32   `json:"stock"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			id, err := repos.Parts.Create(c.Request.Context(), PartRecord{
				Name: req.Name, Price: req.Price, Stock: req.Stock, SupplierID: supplierID,
			})
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create part")
				return
			}
			c.JSON(http.StatusCreated, gin.H{"id": id})
		})

		api.PUT("/carPart/:id", func(c *gin.Context) {
			id, ok := pathID(c, "id")
			if !ok {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid part id")
				return
			}
			var req struct {
				Name  string  `json:"name" binding:"required"`
				Price float64 `json:"price"`
				Stock int32   `json:"stock"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			err := repos.Parts.Update(c.Request.Context(), PartRecord{
				ID: id, Name: req.Name, Price: req.Price, Stock: req.Stock,
			})
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "part not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update part")
				return
			}
			c.Status(http.StatusNoContent)
		})

		api.DELETE("/carPart/:id", func(c *gin.Context) {
			id, ok := pathID(c, "id")
			if !ok {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid part id")
				return
			}
			if err := repos.Parts.Delete(c.Request.Context(), id); err != nil {
				if errors.Is(err, ErrNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "part not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete part")
				return
			}
			c.Status(http.StatusNoContent)
		})

		api.GET("/suppliers", func(c *gin.Context) {
			suppliers, err := repos.Suppliers.List(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to list suppliers")
				return
			}
			c.JSON(http.StatusOK, gin.H{"suppliers": suppliers})
		})

		api.POST("/suppliers", func(c *gin.Context) {
			var req SupplierRecord
			if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid supplier payload")
				return
			}
			id, err := repos.Suppliers.Create(c.Request.Context(), req)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create supplier")
				return
			}
			c.JSON(http.StatusCreated, gin.H{"id": id})
		})

		api.PUT("/suppliers/:id", func(c *gin.Context) {
			id, ok := pathID(c, "id")
			if !ok {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid supplier id")
				return
			}
			var req SupplierRecord
			if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid supplier payload")
				return
			}
			req.ID = id
			if err := repos.Suppliers.Update(c.Request.Context(), req); err != nil {
				if errors.Is(err, ErrNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "supplier not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update supplier")
				return
			}
			c.Status(http.StatusNoContent)
		})

		api.DELETE("/suppliers/:id", func(c *gin.Context) {
			id, ok := pathID(c, "id")
			if !ok {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid supplier id")
				return
			}
			if err := repos.Suppliers.Delete(c.Request.Context(), id); err != nil {
				if errors.Is(err, ErrNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "supplier not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete supplier")
				return
			}
			c.Status(http.StatusNoContent)
		})

		api.GET("/user", func(c *gin.Context) {
			id := GetIdentity(c)
			u, err := repos.Users.FindByUsername(c.Request.Context(), id.Subject)
			if err != nil {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "user not found")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"username":   u.Username,
				"email":      u.Email,
				"firstName":  u.FirstName,
				"lastName":   u.LastName,
				"roles":      RoleNames(u.Roles),
				"created_at": u.CreatedAt,
			})
		})

		api.PUT("/user", func(c *gin.Context) {
			id := GetIdentity(c)
			var req struct {
				FirstName string `json:"firstName"`
				LastName  string `json:"lastName"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if err := repos.Users.UpdateProfile(c.Request.Context(), id.Subject, req.FirstName, req.LastName); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update profile")
				return
			}
			c.Status(http.StatusNoContent)
		})

		// Deleting the account also invalidates every outstanding token for
		// it: the authentication middleware re-checks the subject on each
		// request and a missing principal yields no identity.
		api.DELETE("/user", func(c *gin.Context) {
			id := GetIdentity(c)
			if err := repos.Users.DeleteByUsername(c.Request.Context(), id.Subject); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete account")
				return
			}
			c.Status(http.StatusNoContent)
		})

		api.GET("/user/all", func(c *gin.Context) {
			page, perPage := pageParams(c)
			users, total, err := repos.Users.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to list users")
				return
			}
			c.JSON(http.StatusOK, gin.H{"users": users, "total": total})
		})

		api.POST("/user", func(c *gin.Context) {
			var req struct {
				Username  string   `json:"username" binding:"required"`
				Password  string   `json:"password" binding:"required"`
				Email     string   `json:"email" binding:"required,email"`
				FirstName string   `json:"firstName"`
				LastName  string   `json:"lastName"`
				Roles     []string `json:"roles"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user payload")
				return
			}
			roles, err := ParseRoles(req.Roles)
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "unknown role")
				return
			}
			if len(roles) == 0 {
				roles = []Role{RoleUser}
			}

			ctx := c.Request.Context()
			if taken, err := repos.Users.ExistsByUsername(ctx, req.Username); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
				return
			} else if taken {
				respondError(c, http.StatusConflict, "DUPLICATE_USERNAME", "username already exists")
				return
			}
			if taken, err := repos.Users.ExistsByEmail(ctx, req.Email); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
				return
			} else if taken {
				respondError(c, http.StatusConflict, "DUPLICATE_EMAIL", "email already exists")
				return
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
				return
			}
			uid, err := repos.Users.Create(ctx, UserRecord{
				Username: req.Username, Email: req.Email, PasswordHash: string(hash),
				FirstName: req.FirstName, LastName: req.LastName, Roles: roles,
			})
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
				return
			}
			c.JSON(http.StatusCreated, gin.H{"id": uid})
		})

		api.POST("/orders", func(c *gin.Context) {
			id := GetIdentity(c)
			var req struct {
				Items []OrderItem `json:"items" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "order needs at least one item")
				return
			}
			order, err := repos.Orders.Create(c.Request.Context(), id.Subject, req.Items)
			if err != nil {
				respondError(c, http.StatusUnprocessableEntity, "ORDER_REJECTED", err.Error())
				return
			}
			c.JSON(http.StatusCreated, gin.H{"order": order})
		})

		api.GET("/orders", func(c *gin.Context) {
			id := GetIdentity(c)
			orders, err := repos.Orders.ListByUsername(c.Request.Context(), id.Subject)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to list orders")
				return
			}
			c.JSON(http.StatusOK, gin.H{"orders": orders})
		})

		api.GET("/orders/all", func(c *gin.Context) {
			orders, err := repos.Orders.ListAll(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to list orders")
				return
			}
			c.JSON(http.StatusOK, gin.H{"orders": orders})
		})

		api.GET("/admin/status", func(c *gin.Context) {
			st := CollectSystemStatus(c.Request.Context(), db, redisClient, metrics, startedAt)
			c.JSON(http.StatusOK, st)
		})
	}

	return r
}
