package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"neuracall-backend/pkg/models"

	_ "github.com/lib/pq"
)

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string) DatabaseInterface {
	// 尝试多种连接策略来解决Vercel Lambda的IPv6问题
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "prefer_simple_protocol=true"),
		addConnectionParams(dsn, "prefer_simple_protocol=true&connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&prefer_simple_protocol=true"),
		dsn, // 最后尝试原始DSN
	}

	var db *sql.DB
	var err error

	for i, strategy := range strategies {
		fmt.Printf("🔄 Trying connection strategy %d...\n", i+1)

		db, err = sql.Open("postgres", strategy)
		if err != nil {
			fmt.Printf("❌ Strategy %d failed to open: %v\n", i+1, err)
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		// 测试连接
		if err = db.Ping(); err != nil {
			fmt.Printf("❌ Strategy %d failed to ping: %v\n", i+1, err)
			db.Close()
			continue
		}

		fmt.Printf("✅ PostgreSQL connection established successfully with strategy %d\n", i+1)
		return &PostgresDatabase{db: db}
	}

	// 所有策略都失败了
	panic(fmt.Sprintf("Failed to connect to PostgreSQL with all strategies. Last error: %v", err))
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}

	return dsn + separator + params
}

// ================= Users =================

// CreateUser 创建用户
func (db *PostgresDatabase) CreateUser(user *models.User) error {
	// id may come from the identity provider; otherwise the DB assigns one
	query := `
		INSERT INTO users (id, email, name, avatar, created_at, updated_at)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := db.db.QueryRow(query, user.ID, user.Email, user.Name, user.Avatar).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var name, avatar sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &name, &avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Name = name.String
	u.Avatar = avatar.String
	return &u, nil
}

// GetUserByEmail 根据邮箱获取用户
func (db *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	query := `SELECT id, email, name, avatar, created_at, updated_at FROM users WHERE email = $1`
	user, err := db.scanUser(db.db.QueryRow(query, email))
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return user, nil
}

// GetUserByID 根据ID获取用户
func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	query := `SELECT id, email, name, avatar, created_at, updated_at FROM users WHERE id = $1`
	user, err := db.scanUser(db.db.QueryRow(query, id))
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return user, nil
}

// UpdateUser 更新用户
func (db *PostgresDatabase) UpdateUser(user *models.User) error {
	query := `UPDATE users SET name = $2, avatar = $3, updated_at = NOW() WHERE id = $1`
	if _, err := db.db.Exec(query, user.ID, user.Name, user.Avatar); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ================= Tenants & Memberships =================

func (db *PostgresDatabase) CreateTenant(t *models.Tenant) error {
	query := `
		INSERT INTO tenants (name, owner_id, description, avatar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := db.db.QueryRow(query, t.Name, t.OwnerID, t.Description, t.Avatar).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	// owner membership
	return db.AddTenantMember(&models.TenantMembership{
		TenantID: t.ID,
		UserID:   t.OwnerID,
		Role:     models.RoleAdmin,
	})
}

func (db *PostgresDatabase) UpdateTenant(t *models.Tenant) error {
	query := `UPDATE tenants SET name = $2, description = $3, avatar = $4, updated_at = NOW() WHERE id = $1`
	if _, err := db.db.Exec(query, t.ID, t.Name, t.Description, t.Avatar); err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetTenant(id string) (*models.Tenant, error) {
	query := `SELECT id, name, owner_id, description, avatar, created_at, updated_at FROM tenants WHERE id = $1`
	var t models.Tenant
	var desc, avatar sql.NullString
	err := db.db.QueryRow(query, id).
		Scan(&t.ID, &t.Name, &t.OwnerID, &desc, &avatar, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("tenant not found: %w", err)
	}
	t.Description = desc.String
	t.Avatar = avatar.String
	return &t, nil
}

func (db *PostgresDatabase) ListUserTenants(userID string) ([]models.Tenant, error) {
	query := `
		SELECT t.id, t.name, t.owner_id, COALESCE(t.description, ''), COALESCE(t.avatar, ''), t.created_at, t.updated_at
		FROM tenants t
		JOIN tenant_memberships m ON m.tenant_id = t.id
		WHERE m.user_id = $1
		ORDER BY t.created_at`
	rows, err := db.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var out []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.OwnerID, &t.Description, &t.Avatar, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *PostgresDatabase) AddTenantMember(m *models.TenantMembership) error {
	query := `
		INSERT INTO tenant_memberships (tenant_id, user_id, role, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING id, created_at`
	err := db.db.QueryRow(query, m.TenantID, m.UserID, string(m.Role)).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) ListTenantMembers(tenantID string) ([]models.TenantMembership, error) {
	query := `SELECT id, tenant_id, user_id, role, created_at FROM tenant_memberships WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := db.db.Query(query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var out []models.TenantMembership
	for rows.Next() {
		var m models.TenantMembership
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (db *PostgresDatabase) GetMembershipByUser(userID string) (*models.TenantMembership, error) {
	query := `SELECT id, tenant_id, user_id, role, created_at FROM tenant_memberships WHERE user_id = $1 ORDER BY created_at LIMIT 1`
	var m models.TenantMembership
	err := db.db.QueryRow(query, userID).Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		// 没有成员关系不是错误（用户尚未加入任何租户）
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

// ================= Invitations =================

func (db *PostgresDatabase) CreateInvitation(inv *models.TenantInvitation) error {
	query := `
		INSERT INTO tenant_invitations (tenant_id, email, inviter_id, role, token, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := db.db.QueryRow(query, inv.TenantID, inv.Email, inv.InviterID, string(inv.Role), inv.Token, string(inv.Status), inv.ExpiresAt).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetInvitationByToken(token string) (*models.TenantInvitation, error) {
	query := `
		SELECT id, tenant_id, email, inviter_id, role, token, status, expires_at, accepted_by, created_at, updated_at
		FROM tenant_invitations WHERE token = $1`
	var inv models.TenantInvitation
	err := db.db.QueryRow(query, token).Scan(&inv.ID, &inv.TenantID, &inv.Email, &inv.InviterID,
		&inv.Role, &inv.Token, &inv.Status, &inv.ExpiresAt, &inv.AcceptedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invitation not found: %w", err)
	}
	return &inv, nil
}

func (db *PostgresDatabase) ListInvitationsByEmail(email string) ([]models.TenantInvitation, error) {
	query := `
		SELECT id, tenant_id, email, inviter_id, role, token, status, expires_at, accepted_by, created_at, updated_at
		FROM tenant_invitations WHERE email = $1 ORDER BY created_at DESC`
	rows, err := db.db.Query(query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var out []models.TenantInvitation
	for rows.Next() {
		var inv models.TenantInvitation
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.Email, &inv.InviterID, &inv.Role,
			&inv.Token, &inv.Status, &inv.ExpiresAt, &inv.AcceptedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (db *PostgresDatabase) UpdateInvitation(inv *models.TenantInvitation) error {
	query := `UPDATE tenant_invitations SET status = $2, accepted_by = $3, updated_at = NOW() WHERE id = $1`
	if _, err := db.db.Exec(query, inv.ID, string(inv.Status), inv.AcceptedBy); err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	return nil
}

// ================= Clients =================

func (db *PostgresDatabase) CreateClient(c *models.Client) error {
	query := `
		INSERT INTO clients (tenant_id, name, contact_name, email, phone, address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := db.db.QueryRow(query, c.TenantID, c.Name, c.ContactName, c.Email, c.Phone, c.Address, c.Notes).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) UpdateClient(c *models.Client) error {
	query := `
		UPDATE clients SET name = $2, contact_name = $3, email = $4, phone = $5, address = $6, notes = $7, updated_at = NOW()
		WHERE id = $1`
	if _, err := db.db.Exec(query, c.ID, c.Name, c.ContactName, c.Email, c.Phone, c.Address, c.Notes); err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteClient(id string) error {
	if _, err := db.db.Exec(`DELETE FROM clients WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetClient(id string) (*models.Client, error) {
	query := `
		SELECT id, tenant_id, name, COALESCE(contact_name,''), COALESCE(email,''), COALESCE(phone,''),
		       COALESCE(address,''), COALESCE(notes,''), created_at, updated_at
		FROM clients WHERE id = $1`
	var c models.Client
	err := db.db.QueryRow(query, id).Scan(&c.ID, &c.TenantID, &c.Name, &c.ContactName,
		&c.Email, &c.Phone, &c.Address, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("client not found: %w", err)
	}
	return &c, nil
}

func (db *PostgresDatabase) ListClientsByTenant(tenantID string) ([]models.Client, error) {
	query := `
		SELECT id, tenant_id, name, COALESCE(contact_name,''), COALESCE(email,''), COALESCE(phone,''),
		       COALESCE(address,''), COALESCE(notes,''), created_at, updated_at
		FROM clients WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := db.db.Query(query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var out []models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.ContactName, &c.Email,
			&c.Phone, &c.Address, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ================= Opportunities =================

const opportunityColumns = `id, tenant_id, COALESCE(client_id,''), COALESCE(owner_id,''), title, stage,
	value_cents, COALESCE(currency,'EUR'), COALESCE(notes,''), created_at, updated_at`

func scanOpportunity(scan func(dest ...interface{}) error) (*models.Opportunity, error) {
	var o models.Opportunity
	if err := scan(&o.ID, &o.TenantID, &o.ClientID, &o.OwnerID, &o.Title, &o.Stage,
		&o.ValueCents, &o.Currency, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (db *PostgresDatabase) CreateOpportunity(o *models.Opportunity) error {
	if o.Stage == "" {
		o.Stage = models.StageNew
	}
	query := `
		INSERT INTO opportunities (tenant_id, client_id, owner_id, title, stage, value_cents, currency, notes, created_at, updated_at)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := db.db.QueryRow(query, o.TenantID, o.ClientID, o.OwnerID, o.Title, string(o.Stage),
		o.ValueCents, o.Currency, o.Notes).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create opportunity: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) UpdateOpportunity(o *models.Opportunity) error {
	query := `
		UPDATE opportunities
		SET client_id = NULLIF($2,''), owner_id = NULLIF($3,''), title = $4, stage = $5,
		    value_cents = $6, currency = $7, notes = $8, updated_at = NOW()
		WHERE id = $1`
	if _, err := db.db.Exec(query, o.ID, o.ClientID, o.OwnerID, o.Title, string(o.Stage),
		o.ValueCents, o.Currency, o.Notes); err != nil {
		return fmt.Errorf("failed to update opportunity: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) UpdateOpportunityStage(id string, stage models.Stage) error {
	res, err := db.db.Exec(`UPDATE opportunities SET stage = $2, updated_at = NOW() WHERE id = $1`, id, string(stage))
	if err != nil {
		return fmt.Errorf("failed to update stage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("opportunity %s not found", id)
	}
	return nil
}

func (db *PostgresDatabase) DeleteOpportunity(id string) error {
	if _, err := db.db.Exec(`DELETE FROM opportunities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete opportunity: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetOpportunity(id string) (*models.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE id = $1`
	o, err := scanOpportunity(db.db.QueryRow(query, id).Scan)
	if err != nil {
		return nil, fmt.Errorf("opportunity not found: %w", err)
	}
	return o, nil
}

func (db *PostgresDatabase) listOpportunities(query string, args ...interface{}) ([]models.Opportunity, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (db *PostgresDatabase) ListOpportunitiesByTenant(tenantID string) ([]models.Opportunity, error) {
	return db.listOpportunities(
		`SELECT `+opportunityColumns+` FROM opportunities WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
}

func (db *PostgresDatabase) ListAllOpportunities() ([]models.Opportunity, error) {
	return db.listOpportunities(`SELECT ` + opportunityColumns + ` FROM opportunities ORDER BY created_at`)
}

// ================= Projects & Time entries =================

func (db *PostgresDatabase) CreateProject(p *models.Project) error {
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	query := `
		INSERT INTO projects (tenant_id, client_id, name, description, status, hourly_rate_cents, created_at, updated_at)
		VALUES ($1, NULLIF($2,''), $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := db.db.QueryRow(query, p.TenantID, p.ClientID, p.Name, p.Description, string(p.Status), p.HourlyRateCents).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) UpdateProject(p *models.Project) error {
	query := `
		UPDATE projects SET client_id = NULLIF($2,''), name = $3, description = $4, status = $5,
		       hourly_rate_cents = $6, updated_at = NOW()
		WHERE id = $1`
	if _, err := db.db.Exec(query, p.ID, p.ClientID, p.Name, p.Description, string(p.Status), p.HourlyRateCents); err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteProject(id string) error {
	if _, err := db.db.Exec(`DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetProject(id string) (*models.Project, error) {
	query := `
		SELECT id, tenant_id, COALESCE(client_id,''), name, COALESCE(description,''), status, hourly_rate_cents, created_at, updated_at
		FROM projects WHERE id = $1`
	var p models.Project
	err := db.db.QueryRow(query, id).Scan(&p.ID, &p.TenantID, &p.ClientID, &p.Name,
		&p.Description, &p.Status, &p.HourlyRateCents, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}
	return &p, nil
}

func (db *PostgresDatabase) ListProjectsByTenant(tenantID string) ([]models.Project, error) {
	query := `
		SELECT id, tenant_id, COALESCE(client_id,''), name, COALESCE(description,''), status, hourly_rate_cents, created_at, updated_at
		FROM projects WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := db.db.Query(query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.TenantID, &p.ClientID, &p.Name, &p.Description,
			&p.Status, &p.HourlyRateCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *PostgresDatabase) CreateTimeEntry(e *models.TimeEntry) error {
	query := `
		INSERT INTO time_entries (tenant_id, project_id, user_id, description, minutes, worked_on, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at`
	err := db.db.QueryRow(query, e.TenantID, e.ProjectID, e.UserID, e.Description, e.Minutes, e.WorkedOn).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create time entry: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) ListTimeEntriesByProject(projectID string) ([]models.TimeEntry, error) {
	query := `
		SELECT id, tenant_id, project_id, user_id, COALESCE(description,''), minutes, worked_on, created_at
		FROM time_entries WHERE project_id = $1 ORDER BY worked_on DESC`
	rows, err := db.db.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer rows.Close()

	var out []models.TimeEntry
	for rows.Next() {
		var e models.TimeEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ProjectID, &e.UserID, &e.Description,
			&e.Minutes, &e.WorkedOn, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (db *PostgresDatabase) DeleteTimeEntry(id string) error {
	if _, err := db.db.Exec(`DELETE FROM time_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete time entry: %w", err)
	}
	return nil
}

// ================= Invoices =================

const invoiceColumns = `id, tenant_id, client_id, COALESCE(project_id,''), number, amount_cents,
	COALESCE(currency,'EUR'), status, due_date, paid_at, created_at, updated_at`

func scanInvoice(scan func(dest ...interface{}) error) (*models.Invoice, error) {
	var inv models.Invoice
	if err := scan(&inv.ID, &inv.TenantID, &inv.ClientID, &inv.ProjectID, &inv.Number,
		&inv.AmountCents, &inv.Currency, &inv.Status, &inv.DueDate, &inv.PaidAt,
		&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (db *PostgresDatabase) CreateInvoice(inv *models.Invoice) error {
	if inv.Status == "" {
		inv.Status = models.InvoiceDraft
	}
	query := `
		INSERT INTO invoices (tenant_id, client_id, project_id, number, amount_cents, currency, status, due_date, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := db.db.QueryRow(query, inv.TenantID, inv.ClientID, inv.ProjectID, inv.Number,
		inv.AmountCents, inv.Currency, string(inv.Status), inv.DueDate).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) UpdateInvoice(inv *models.Invoice) error {
	query := `
		UPDATE invoices SET amount_cents = $2, currency = $3, status = $4, due_date = $5, paid_at = $6, updated_at = NOW()
		WHERE id = $1`
	if _, err := db.db.Exec(query, inv.ID, inv.AmountCents, inv.Currency, string(inv.Status), inv.DueDate, inv.PaidAt); err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetInvoice(id string) (*models.Invoice, error) {
	inv, err := scanInvoice(db.db.QueryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id).Scan)
	if err != nil {
		return nil, fmt.Errorf("invoice not found: %w", err)
	}
	return inv, nil
}

func (db *PostgresDatabase) GetInvoiceByNumber(number string) (*models.Invoice, error) {
	inv, err := scanInvoice(db.db.QueryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE number = $1`, number).Scan)
	if err != nil {
		return nil, fmt.Errorf("invoice not found: %w", err)
	}
	return inv, nil
}

func (db *PostgresDatabase) ListInvoicesByTenant(tenantID string) ([]models.Invoice, error) {
	rows, err := db.db.Query(`SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var out []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// ================= Recurring expenses =================

func (db *PostgresDatabase) CreateExpense(e *models.RecurringExpense) error {
	if e.Interval == "" {
		e.Interval = models.IntervalMonthly
	}
	query := `
		INSERT INTO recurring_expenses (tenant_id, name, vendor, amount_cents, currency, billing_interval, next_renewal_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := db.db.QueryRow(query, e.TenantID, e.Name, e.Vendor, e.AmountCents, e.Currency,
		string(e.Interval), e.NextRenewalAt).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) UpdateExpense(e *models.RecurringExpense) error {
	query := `
		UPDATE recurring_expenses SET name = $2, vendor = $3, amount_cents = $4, currency = $5,
		       billing_interval = $6, next_renewal_at = $7, updated_at = NOW()
		WHERE id = $1`
	if _, err := db.db.Exec(query, e.ID, e.Name, e.Vendor, e.AmountCents, e.Currency,
		string(e.Interval), e.NextRenewalAt); err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteExpense(id string) error {
	// 分摊记录随费用一并删除
	if _, err := db.db.Exec(`DELETE FROM expense_allocations WHERE expense_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete allocations: %w", err)
	}
	if _, err := db.db.Exec(`DELETE FROM recurring_expenses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetExpense(id string) (*models.RecurringExpense, error) {
	query := `
		SELECT id, tenant_id, name, COALESCE(vendor,''), amount_cents, COALESCE(currency,'EUR'),
		       billing_interval, next_renewal_at, created_at, updated_at
		FROM recurring_expenses WHERE id = $1`
	var e models.RecurringExpense
	err := db.db.QueryRow(query, id).Scan(&e.ID, &e.TenantID, &e.Name, &e.Vendor, &e.AmountCents,
		&e.Currency, &e.Interval, &e.NextRenewalAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("expense not found: %w", err)
	}
	return &e, nil
}

func (db *PostgresDatabase) ListExpensesByTenant(tenantID string) ([]models.RecurringExpense, error) {
	query := `
		SELECT id, tenant_id, name, COALESCE(vendor,''), amount_cents, COALESCE(currency,'EUR'),
		       billing_interval, next_renewal_at, created_at, updated_at
		FROM recurring_expenses WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := db.db.Query(query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var out []models.RecurringExpense
	for rows.Next() {
		var e models.RecurringExpense
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Name, &e.Vendor, &e.AmountCents, &e.Currency,
			&e.Interval, &e.NextRenewalAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (db *PostgresDatabase) ReplaceExpenseAllocations(expenseID string, allocs []models.ExpenseAllocation) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM expense_allocations WHERE expense_id = $1`, expenseID); err != nil {
		return fmt.Errorf("failed to clear allocations: %w", err)
	}
	for i := range allocs {
		allocs[i].ExpenseID = expenseID
		err := tx.QueryRow(`
			INSERT INTO expense_allocations (expense_id, cost_center, percent_bps, amount_cents)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			expenseID, allocs[i].CostCenter, allocs[i].PercentBps, allocs[i].AmountCents).Scan(&allocs[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert allocation: %w", err)
		}
	}
	return tx.Commit()
}

func (db *PostgresDatabase) ListExpenseAllocations(expenseID string) ([]models.ExpenseAllocation, error) {
	rows, err := db.db.Query(`
		SELECT id, expense_id, cost_center, percent_bps, amount_cents
		FROM expense_allocations WHERE expense_id = $1 ORDER BY percent_bps DESC`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var out []models.ExpenseAllocation
	for rows.Next() {
		var a models.ExpenseAllocation
		if err := rows.Scan(&a.ID, &a.ExpenseID, &a.CostCenter, &a.PercentBps, &a.AmountCents); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ================= Calendar =================

func (db *PostgresDatabase) CreateEvent(ev *models.CalendarEvent) error {
	query := `
		INSERT INTO calendar_events (tenant_id, title, location, notes, all_day, starts_at, ends_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := db.db.QueryRow(query, ev.TenantID, ev.Title, ev.Location, ev.Notes, ev.AllDay,
		ev.StartsAt, ev.EndsAt, ev.CreatedBy).Scan(&ev.ID, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteEvent(id string) error {
	if _, err := db.db.Exec(`DELETE FROM calendar_events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) ListEventsByTenant(tenantID string, from, to time.Time) ([]models.CalendarEvent, error) {
	query := `
		SELECT id, tenant_id, title, COALESCE(location,''), COALESCE(notes,''), all_day, starts_at, ends_at, created_by, created_at, updated_at
		FROM calendar_events
		WHERE tenant_id = $1 AND starts_at < $3 AND ends_at >= $2
		ORDER BY starts_at`
	rows, err := db.db.Query(query, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []models.CalendarEvent
	for rows.Next() {
		var ev models.CalendarEvent
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.Title, &ev.Location, &ev.Notes, &ev.AllDay,
			&ev.StartsAt, &ev.EndsAt, &ev.CreatedBy, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ================= Misc =================

// HealthCheck 健康检查
func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

// Close 关闭连接
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
