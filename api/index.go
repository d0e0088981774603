package handler

import (
	"net/http"
	"sync"
	"time"

	"neuracall-backend/pkg/cache"
	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/handlers"
	"neuracall-backend/pkg/identity"
	"neuracall-backend/pkg/logger"
	"neuracall-backend/pkg/metrics"
	customMiddleware "neuracall-backend/pkg/middleware"
	"neuracall-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// 进程级单例：Vercel会在同一实例上复用进程，日志器/指标/缓存只建一次
var (
	sharedOnce    sync.Once
	sharedLogger  *zap.Logger
	sharedMetrics *metrics.Metrics
	sharedCache   *cache.SessionCache
)

func sharedDeps(cfg *config.Config) (*zap.Logger, *metrics.Metrics, *cache.SessionCache) {
	sharedOnce.Do(func() {
		level := "info"
		if cfg.Debug {
			level = "debug"
		}
		sharedLogger = logger.New(cfg.Environment, level, "neuracall-api")
		sharedMetrics = metrics.New("neuracall")

		if cfg.RedisAddr != "" {
			c, err := cache.NewSessionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 15*time.Minute)
			if err != nil {
				// 缓存不可用时直接走数据库，不影响可用性
				sharedLogger.Warn("session cache unavailable, falling back to database lookups",
					zap.String("addr", cfg.RedisAddr), zap.Error(err))
			} else {
				sharedCache = c
			}
		}
	})
	return sharedLogger, sharedMetrics, sharedCache
}

// Handler 是Vercel函数的入口点
// 单体路由模式：所有API端点集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	// 加载配置
	cfg := config.GetCached()

	// 验证配置
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	log, m, sessionCache := sharedDeps(cfg)

	// 获取优化的数据库连接（自动适配Vercel环境）
	db := database.GetOptimizedDatabase(database.DatabaseConfig{
		PostgresDSN: cfg.PostgresDSN,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
		Debug:       cfg.Debug,
	})
	// 注意：连接由优化器管理，无需手动关闭

	// 创建Chi路由器
	router := chi.NewRouter()

	// 设置全局中间件
	setupMiddleware(router, cfg, log, m)

	// 设置路由
	setupRoutes(router, cfg, db, log, m, sessionCache)

	// 将请求传递给Chi路由器处理
	router.ServeHTTP(w, r)
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) {
	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.RequestLogger(log, m))
	router.Use(customMiddleware.Recovery(cfg, log))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second)) // 留5秒缓冲

	// 压缩中间件
	router.Use(middleware.Compress(5))

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface,
	log *zap.Logger, m *metrics.Metrics, sessionCache *cache.SessionCache) {

	provider := identity.NewSupabaseProvider(cfg.SupabaseURL, cfg.SupabaseAnonKey)

	// 创建处理器
	authHandler := handlers.NewAuthHandler(cfg, db, provider, sessionCache, log)
	tenantsHandler := handlers.NewTenantsHandler(cfg, db)
	clientsHandler := handlers.NewClientsHandler(cfg, db)
	opportunitiesHandler := handlers.NewOpportunitiesHandler(cfg, db, log, m)
	projectsHandler := handlers.NewProjectsHandler(cfg, db)
	invoicesHandler := handlers.NewInvoicesHandler(cfg, db)
	expensesHandler := handlers.NewExpensesHandler(cfg, db)
	calendarHandler := handlers.NewCalendarHandler(cfg, db)
	webhookHandler := handlers.NewWebhookHandler(cfg, db, log)

	// 健康检查端点
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccessResponse(w, map[string]string{
			"service": "neuracall-backend",
			"status":  "ok",
		})
	})

	// Prometheus指标端点
	router.Method(http.MethodGet, "/metrics", m.Handler())

	// 数据库连接池状态端点（调试用）
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			var stats map[string]interface{}

			if database.IsVercelEnvironment() {
				// Vercel环境显示优化器状态
				optimizer := database.GetVercelOptimizer()
				stats = optimizer.GetStats()
				stats["optimizer_type"] = "vercel"
			} else {
				// 非Vercel环境显示连接池状态
				stats = database.GetConnectionStats()
				stats["optimizer_type"] = "standard"
			}

			utils.WriteSuccessResponse(w, stats)
		})
	}

	// API路由组
	router.Route("/api", func(r chi.Router) {
		// 请求体校验
		r.Use(customMiddleware.ContentTypeJSON)
		r.Use(customMiddleware.MaxBodySize(1 << 20))

		// 公开路由（不需要认证）
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
		})

		// Webhook路由（不需要认证，但需要验证签名）
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/payment", webhookHandler.HandlePayment)
		})

		// 需要认证的路由
		r.Group(func(r chi.Router) {
			// 应用认证中间件
			r.Use(customMiddleware.AuthMiddleware(cfg, db))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			// 租户与成员管理
			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", tenantsHandler.ListMyTenants)
				r.Post("/", tenantsHandler.CreateTenant)
				r.Get("/{tenantID}", tenantsHandler.GetTenant)
				r.Get("/{tenantID}/members", tenantsHandler.ListMembers)
				r.Post("/{tenantID}/invitations", tenantsHandler.InviteMember)
			})

			// Invitations
			r.Route("/invitations", func(r chi.Router) {
				r.Get("/my", tenantsHandler.ListMyInvitations)
				r.Post("/accept", tenantsHandler.AcceptInvitation)
			})

			// 客户管理
			r.Route("/clients", func(r chi.Router) {
				r.Get("/", clientsHandler.ListClients)
				r.Post("/", clientsHandler.CreateClient)
				r.Get("/{clientID}", clientsHandler.GetClient)
				r.Put("/{clientID}", clientsHandler.UpdateClient)
				r.Delete("/{clientID}", clientsHandler.DeleteClient)
			})

			// 商机与看板
			r.Route("/opportunities", func(r chi.Router) {
				r.Get("/", opportunitiesHandler.ListOpportunities)
				r.Post("/", opportunitiesHandler.CreateOpportunity)
				r.Get("/board", opportunitiesHandler.GetBoard)
				r.Get("/{opportunityID}", opportunitiesHandler.GetOpportunity)
				r.Put("/{opportunityID}", opportunitiesHandler.UpdateOpportunity)
				r.Delete("/{opportunityID}", opportunitiesHandler.DeleteOpportunity)
				r.Post("/{opportunityID}/move", opportunitiesHandler.MoveOpportunity)
			})

			// 项目与工时
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectsHandler.ListProjects)
				r.Post("/", projectsHandler.CreateProject)
				r.Get("/{projectID}", projectsHandler.GetProject)
				r.Put("/{projectID}", projectsHandler.UpdateProject)
				r.Delete("/{projectID}", projectsHandler.DeleteProject)
				r.Get("/{projectID}/time-entries", projectsHandler.ListTimeEntries)
				r.Post("/{projectID}/time-entries", projectsHandler.CreateTimeEntry)
				r.Delete("/{projectID}/time-entries/{entryID}", projectsHandler.DeleteTimeEntry)
			})

			// 发票
			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", invoicesHandler.ListInvoices)
				r.Post("/", invoicesHandler.CreateInvoice)
				r.Get("/{invoiceID}", invoicesHandler.GetInvoice)
				r.Post("/{invoiceID}/status", invoicesHandler.TransitionStatus)
			})

			// 固定支出与分摊
			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", expensesHandler.ListExpenses)
				r.Post("/", expensesHandler.CreateExpense)
				r.Get("/{expenseID}", expensesHandler.GetExpense)
				r.Put("/{expenseID}", expensesHandler.UpdateExpense)
				r.Delete("/{expenseID}", expensesHandler.DeleteExpense)
			})

			// 日历
			r.Route("/calendar", func(r chi.Router) {
				r.Get("/events", calendarHandler.ListEvents)
				r.Post("/events", calendarHandler.CreateEvent)
				r.Delete("/events/{eventID}", calendarHandler.DeleteEvent)
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, "Route not found: "+r.Method+" "+r.URL.Path)
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Method "+r.Method+" not allowed for "+r.URL.Path, "")
	})
}
