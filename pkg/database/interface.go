package database

import (
	"fmt"
	"os"
	"time"

	"neuracall-backend/pkg/models"
)

// DatabaseInterface 定义数据库访问接口
type DatabaseInterface interface {
	// 用户管理
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateUser(user *models.User) error

	// Tenants & memberships
	CreateTenant(t *models.Tenant) error
	UpdateTenant(t *models.Tenant) error
	GetTenant(id string) (*models.Tenant, error)
	ListUserTenants(userID string) ([]models.Tenant, error)
	AddTenantMember(m *models.TenantMembership) error
	ListTenantMembers(tenantID string) ([]models.TenantMembership, error)
	// GetMembershipByUser returns the user's tenant membership. A user
	// without a membership row is a valid state: (nil, nil), not an error.
	GetMembershipByUser(userID string) (*models.TenantMembership, error)

	// Invitations
	CreateInvitation(inv *models.TenantInvitation) error
	GetInvitationByToken(token string) (*models.TenantInvitation, error)
	ListInvitationsByEmail(email string) ([]models.TenantInvitation, error)
	UpdateInvitation(inv *models.TenantInvitation) error

	// Clients
	CreateClient(c *models.Client) error
	UpdateClient(c *models.Client) error
	DeleteClient(id string) error
	GetClient(id string) (*models.Client, error)
	ListClientsByTenant(tenantID string) ([]models.Client, error)

	// Opportunities (pipeline board)
	CreateOpportunity(o *models.Opportunity) error
	UpdateOpportunity(o *models.Opportunity) error
	// UpdateOpportunityStage persists a stage transition only; other
	// fields are untouched so a concurrent edit cannot be clobbered.
	UpdateOpportunityStage(id string, stage models.Stage) error
	DeleteOpportunity(id string) error
	GetOpportunity(id string) (*models.Opportunity, error)
	ListOpportunitiesByTenant(tenantID string) ([]models.Opportunity, error)
	// ListAllOpportunities is the cofounder path: visibility without a
	// tenant filter.
	ListAllOpportunities() ([]models.Opportunity, error)

	// Projects & time tracking
	CreateProject(p *models.Project) error
	UpdateProject(p *models.Project) error
	DeleteProject(id string) error
	GetProject(id string) (*models.Project, error)
	ListProjectsByTenant(tenantID string) ([]models.Project, error)
	CreateTimeEntry(e *models.TimeEntry) error
	ListTimeEntriesByProject(projectID string) ([]models.TimeEntry, error)
	DeleteTimeEntry(id string) error

	// Invoices
	CreateInvoice(inv *models.Invoice) error
	UpdateInvoice(inv *models.Invoice) error
	GetInvoice(id string) (*models.Invoice, error)
	GetInvoiceByNumber(number string) (*models.Invoice, error)
	ListInvoicesByTenant(tenantID string) ([]models.Invoice, error)

	// Recurring expenses & allocations
	CreateExpense(e *models.RecurringExpense) error
	UpdateExpense(e *models.RecurringExpense) error
	DeleteExpense(id string) error
	GetExpense(id string) (*models.RecurringExpense, error)
	ListExpensesByTenant(tenantID string) ([]models.RecurringExpense, error)
	ReplaceExpenseAllocations(expenseID string, allocs []models.ExpenseAllocation) error
	ListExpenseAllocations(expenseID string) ([]models.ExpenseAllocation, error)

	// Calendar
	CreateEvent(ev *models.CalendarEvent) error
	DeleteEvent(id string) error
	ListEventsByTenant(tenantID string, from, to time.Time) ([]models.CalendarEvent, error)

	// 健康检查
	HealthCheck() error

	// 关闭连接
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	PostgresDSN string
	SupabaseURL string
	SupabaseKey string
	Debug       bool
}

// NewDatabase 根据环境与配置选择数据库实现
func NewDatabase(config DatabaseConfig) DatabaseInterface {
	// 是否在 Vercel 生产环境
	isVercelProduction := IsVercelEnvironment()

	if isVercelProduction {
		fmt.Printf("🧭 Detected Vercel production environment\n")

		// Vercel 优先使用 Supabase（避免 IPv6）
		if config.SupabaseURL != "" && config.SupabaseKey != "" {
			fmt.Printf("🚀  Using Supabase REST API (Vercel optimized)\n")
			return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey)
		}

		// 次选 PostgreSQL
		if config.PostgresDSN != "" {
			fmt.Printf("🌐  Using PostgreSQL in Vercel (may have IPv6 issues)\n")
			return NewPostgresDatabase(config.PostgresDSN)
		}

		// 未配置受支持的数据库，直接失败
		panic("No valid database configured for Vercel environment. Please set SUPABASE_URL+SUPABASE_SERVICE_KEY or POSTGRES_DSN")
	}

	// 非 Vercel 环境：PostgreSQL > Supabase
	if config.PostgresDSN != "" {
		fmt.Printf("🗄️  Using PostgreSQL database\n")
		return NewPostgresDatabase(config.PostgresDSN)
	}

	if config.SupabaseURL != "" && config.SupabaseKey != "" {
		fmt.Printf("🧰  Using Supabase REST API\n")
		return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey)
	}

	panic("No valid database configuration found. Please configure POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY")
}

// IsVercelEnvironment 检查 Vercel 环境
func IsVercelEnvironment() bool {
	vercelEnv := os.Getenv("VERCEL_ENV")
	vercelURL := os.Getenv("VERCEL_URL")
	awsLambda := os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
	return vercelEnv != "" || vercelURL != "" || awsLambda != ""
}
