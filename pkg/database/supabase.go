package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"neuracall-backend/pkg/models"

	"github.com/google/uuid"
)

// SupabaseDatabase Supabase数据库实现（REST API）
type SupabaseDatabase struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseDatabase 创建Supabase数据库实例
func NewSupabaseDatabase(supabaseURL, key string) DatabaseInterface {
	// 确保URL格式正确
	if !strings.HasPrefix(supabaseURL, "http") {
		supabaseURL = "https://" + supabaseURL
	}

	return &SupabaseDatabase{
		baseURL: strings.TrimRight(supabaseURL, "/"),
		apiKey:  key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// makeRequest 发送HTTP请求到Supabase
func (db *SupabaseDatabase) makeRequest(method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	reqURL := db.baseURL + "/rest/v1" + endpoint
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// 设置请求头
	req.Header.Set("apikey", db.apiKey)
	req.Header.Set("Authorization", "Bearer "+db.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// insertRow 插入单行并回填到 out
func (db *SupabaseDatabase) insertRow(table string, row interface{}, out interface{}) error {
	respBody, err := db.makeRequest("POST", "/"+table, row)
	if err != nil {
		return err
	}
	return decodeSingle(respBody, out)
}

// patchRows PATCH 指定过滤条件的行
func (db *SupabaseDatabase) patchRows(table, filter string, patch interface{}) error {
	_, err := db.makeRequest("PATCH", "/"+table+"?"+filter, patch)
	return err
}

// deleteRows DELETE 指定过滤条件的行
func (db *SupabaseDatabase) deleteRows(table, filter string) error {
	_, err := db.makeRequest("DELETE", "/"+table+"?"+filter, nil)
	return err
}

// decodeSingle Supabase 返回的是数组，取第一个元素
func decodeSingle(respBody []byte, out interface{}) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("not found")
	}
	return json.Unmarshal(rows[0], out)
}

func eq(column, value string) string {
	return column + "=eq." + url.QueryEscape(value)
}

// ================= Users =================

func (db *SupabaseDatabase) CreateUser(user *models.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	if err := db.insertRow("users", user, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) getUserBy(filter string) (*models.User, error) {
	respBody, err := db.makeRequest("GET", "/users?"+filter+"&limit=1", nil)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := decodeSingle(respBody, &user); err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return &user, nil
}

func (db *SupabaseDatabase) GetUserByEmail(email string) (*models.User, error) {
	return db.getUserBy(eq("email", email))
}

func (db *SupabaseDatabase) GetUserByID(id string) (*models.User, error) {
	return db.getUserBy(eq("id", id))
}

func (db *SupabaseDatabase) UpdateUser(user *models.User) error {
	patch := map[string]interface{}{
		"name":       user.Name,
		"avatar":     user.Avatar,
		"updated_at": time.Now(),
	}
	if err := db.patchRows("users", eq("id", user.ID), patch); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ================= Tenants & Memberships =================

func (db *SupabaseDatabase) CreateTenant(t *models.Tenant) error {
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	if err := db.insertRow("tenants", t, t); err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return db.AddTenantMember(&models.TenantMembership{
		TenantID: t.ID,
		UserID:   t.OwnerID,
		Role:     models.RoleAdmin,
	})
}

func (db *SupabaseDatabase) UpdateTenant(t *models.Tenant) error {
	patch := map[string]interface{}{
		"name":        t.Name,
		"description": t.Description,
		"avatar":      t.Avatar,
		"updated_at":  time.Now(),
	}
	if err := db.patchRows("tenants", eq("id", t.ID), patch); err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) GetTenant(id string) (*models.Tenant, error) {
	respBody, err := db.makeRequest("GET", "/tenants?"+eq("id", id)+"&limit=1", nil)
	if err != nil {
		return nil, err
	}
	var t models.Tenant
	if err := decodeSingle(respBody, &t); err != nil {
		return nil, fmt.Errorf("tenant not found: %w", err)
	}
	return &t, nil
}

func (db *SupabaseDatabase) ListUserTenants(userID string) ([]models.Tenant, error) {
	// 先取成员关系，再按 tenant_id 批量取租户
	memberships, err := db.listMemberships(eq("user_id", userID))
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return []models.Tenant{}, nil
	}

	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.TenantID
	}
	filter := "id=in.(" + strings.Join(ids, ",") + ")&order=created_at"
	respBody, err := db.makeRequest("GET", "/tenants?"+filter, nil)
	if err != nil {
		return nil, err
	}
	var tenants []models.Tenant
	if err := json.Unmarshal(respBody, &tenants); err != nil {
		return nil, fmt.Errorf("failed to decode tenants: %w", err)
	}
	return tenants, nil
}

func (db *SupabaseDatabase) AddTenantMember(m *models.TenantMembership) error {
	m.ID = uuid.New().String()
	m.CreatedAt = time.Now()
	if err := db.insertRow("tenant_memberships", m, m); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) listMemberships(filter string) ([]models.TenantMembership, error) {
	respBody, err := db.makeRequest("GET", "/tenant_memberships?"+filter+"&order=created_at", nil)
	if err != nil {
		return nil, err
	}
	var out []models.TenantMembership
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode memberships: %w", err)
	}
	return out, nil
}

func (db *SupabaseDatabase) ListTenantMembers(tenantID string) ([]models.TenantMembership, error) {
	return db.listMemberships(eq("tenant_id", tenantID))
}

func (db *SupabaseDatabase) GetMembershipByUser(userID string) (*models.TenantMembership, error) {
	memberships, err := db.listMemberships(eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if len(memberships) == 0 {
		// 没有成员关系不是错误
		return nil, nil
	}
	return &memberships[0], nil
}

// ================= Invitations =================

func (db *SupabaseDatabase) CreateInvitation(inv *models.TenantInvitation) error {
	inv.ID = uuid.New().String()
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	if err := db.insertRow("tenant_invitations", inv, inv); err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) GetInvitationByToken(token string) (*models.TenantInvitation, error) {
	respBody, err := db.makeRequest("GET", "/tenant_invitations?"+eq("token", token)+"&limit=1", nil)
	if err != nil {
		return nil, err
	}
	var inv models.TenantInvitation
	if err := decodeSingle(respBody, &inv); err != nil {
		return nil, fmt.Errorf("invitation not found: %w", err)
	}
	return &inv, nil
}

func (db *SupabaseDatabase) ListInvitationsByEmail(email string) ([]models.TenantInvitation, error) {
	respBody, err := db.makeRequest("GET", "/tenant_invitations?"+eq("email", email)+"&order=created_at.desc", nil)
	if err != nil {
		return nil, err
	}
	var out []models.TenantInvitation
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode invitations: %w", err)
	}
	return out, nil
}

func (db *SupabaseDatabase) UpdateInvitation(inv *models.TenantInvitation) error {
	patch := map[string]interface{}{
		"status":      inv.Status,
		"accepted_by": inv.AcceptedBy,
		"updated_at":  time.Now(),
	}
	if err := db.patchRows("tenant_invitations", eq("id", inv.ID), patch); err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	return nil
}

// ================= Clients =================

func (db *SupabaseDatabase) CreateClient(c *models.Client) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if err := db.insertRow("clients", c, c); err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) UpdateClient(c *models.Client) error {
	patch := map[string]interface{}{
		"name":         c.Name,
		"contact_name": c.ContactName,
		"email":        c.Email,
		"phone":        c.Phone,
		"address":      c.Address,
		"notes":        c.Notes,
		"updated_at":   time.Now(),
	}
	if err := db.patchRows("clients", eq("id", c.ID), patch); err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) DeleteClient(id string) error {
	return db.deleteRows("clients", eq("id", id))
}

func (db *SupabaseDatabase) GetClient(id string) (*models.Client, error) {
	respBody, err := db.makeRequest("GET", "/clients?"+eq("id", id)+"&limit=1", nil)
	if err != nil {
		return nil, err
	}
	var c models.Client
	if err := decodeSingle(respBody, &c); err != nil {
		return nil, fmt.Errorf("client not found: %w", err)
	}
	return &c, nil
}

func (db *SupabaseDatabase) ListClientsByTenant(tenantID string) ([]models.Client, error) {
	respBody, err := db.makeRequest("GET", "/clients?"+eq("tenant_id", tenantID)+"&order=created_at.desc", nil)
	if err != nil {
		return nil, err
	}
	var out []models.Client
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	return out, nil
}

// ================= Opportunities =================

func (db *SupabaseDatabase) CreateOpportunity(o *models.Opportunity) error {
	o.ID = uuid.New().String()
	if o.Stage == "" {
		o.Stage = models.StageNew
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	if err := db.insertRow("opportunities", o, o); err != nil {
		return fmt.Errorf("failed to create opportunity: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) UpdateOpportunity(o *models.Opportunity) error {
	patch := map[string]interface{}{
		"client_id":   o.ClientID,
		"owner_id":    o.OwnerID,
		"title":       o.Title,
		"stage":       o.Stage,
		"value_cents": o.ValueCents,
		"currency":    o.Currency,
		"notes":       o.Notes,
		"updated_at":  time.Now(),
	}
	if err := db.patchRows("opportunities", eq("id", o.ID), patch); err != nil {
		return fmt.Errorf("failed to update opportunity: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) UpdateOpportunityStage(id string, stage models.Stage) error {
	patch := map[string]interface{}{
		"stage":      stage,
		"updated_at": time.Now(),
	}
	respBody, err := db.makeRequest("PATCH", "/opportunities?"+eq("id", id), patch)
	if err != nil {
		return fmt.Errorf("failed to update stage: %w", err)
	}
	// return=representation：空数组意味着没有匹配的行
	var rows []json.RawMessage
	if err := json.Unmarshal(respBody, &rows); err == nil && len(rows) == 0 {
		return fmt.Errorf("opportunity %s not found", id)
	}
	return nil
}

func (db *SupabaseDatabase) DeleteOpportunity(id string) error {
	return db.deleteRows("opportunities", eq("id", id))
}

func (db *SupabaseDatabase) GetOpportunity(id string) (*models.Opportunity, error) {
	respBody, err := db.makeRequest("GET", "/opportunities?"+eq("id", id)+"&limit=1", nil)
	if err != nil {
		return nil, err
	}
	var o models.Opportunity
	if err := decodeSingle(respBody, &o); err != nil {
		return nil, fmt.Errorf("opportunity not found: %w", err)
	}
	return &o, nil
}

func (db *SupabaseDatabase) listOpportunities(query string) ([]models.Opportunity, error) {
	respBody, err := db.makeRequest("GET", "/opportunities?"+query, nil)
	if err != nil {
		return nil, err
	}
	var out []models.Opportunity
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode opportunities: %w", err)
	}
	return out, nil
}

func (db *SupabaseDatabase) ListOpportunitiesByTenant(tenantID string) ([]models.Opportunity, error) {
	return db.listOpportunities(eq("tenant_id", tenantID) + "&order=created_at")
}

func (db *SupabaseDatabase) ListAllOpportunities() ([]models.Opportunity, error) {
	return db.listOpportunities("order=created_at")
}

// ================= Projects & Time entries =================

func (db *SupabaseDatabase) CreateProject(p *models.Project) error {
	p.ID = uuid.New().String()
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	if err := db.insertRow("projects", p, p); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) UpdateProject(p *models.Project) error {
	patch := map[string]interface{}{
		"client_id":         p.ClientID,
		"name":              p.Name,
		"description":       p.Description,
		"status":            p.Status,
		"hourly_rate_cents": p.HourlyRateCents,
		"updated_at":        time.Now(),
	}
	if err := db.patchRows("projects", eq("id", p.ID), patch); err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) DeleteProject(id string) error {
	return db.deleteRows("projects", eq("id", id))
}

func (db *SupabaseDatabase) GetProject(id string) (*models.Project, error) {
	respBody, err := db.makeRequest("GET", "/projects?"+eq("id", id)+"&limit=1", nil)
	if err != nil {
		return nil, err
	}
	var p models.Project
	if err := decodeSingle(respBody, &p); err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}
	return &p, nil
}

func (db *SupabaseDatabase) ListProjectsByTenant(tenantID string) ([]models.Project, error) {
	respBody, err := db.makeRequest("GET", "/projects?"+eq("tenant_id", tenantID)+"&order=created_at.desc", nil)
	if err != nil {
		return nil, err
	}
	var out []models.Project
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return out, nil
}

func (db *SupabaseDatabase) CreateTimeEntry(e *models.TimeEntry) error {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now()
	if err := db.insertRow("time_entries", e, e); err != nil {
		return fmt.Errorf("failed to create time entry: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) ListTimeEntriesByProject(projectID string) ([]models.TimeEntry, error) {
	respBody, err := db.makeRequest("GET", "/time_entries?"+eq("project_id", projectID)+"&order=worked_on.desc", nil)
	if err != nil {
		return nil, err
	}
	var out []models.TimeEntry
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode time entries: %w", err)
	}
	return out, nil
}

func (db *SupabaseDatabase) DeleteTimeEntry(id string) error {
	return db.deleteRows("time_entries", eq("id", id))
}

// ================= Invoices =================

func (db *SupabaseDatabase) CreateInvoice(inv *models.Invoice) error {
	inv.ID = uuid.New().String()
	if inv.Status == "" {
		inv.Status = models.InvoiceDraft
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	if err := db.insertRow("invoices", inv, inv); err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) UpdateInvoice(inv *models.Invoice) error {
	patch := map[string]interface{}{
		"amount_cents": inv.AmountCents,
		"currency":     inv.Currency,
		"status":       inv.Status,
		"due_date":     inv.DueDate,
		"paid_at":      inv.PaidAt,
		"updated_at":   time.Now(),
	}
	if err := db.patchRows("invoices", eq("id", inv.ID), patch); err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) getInvoiceBy(filter string) (*models.Invoice, error) {
	respBody, err := db.makeRequest("GET", "/invoices?"+filter+"&limit=1", nil)
	if err != nil {
		return nil, err
	}
	var inv models.Invoice
	if err := decodeSingle(respBody, &inv); err != nil {
		return nil, fmt.Errorf("invoice not found: %w", err)
	}
	return &inv, nil
}

func (db *SupabaseDatabase) GetInvoice(id string) (*models.Invoice, error) {
	return db.getInvoiceBy(eq("id", id))
}

func (db *SupabaseDatabase) GetInvoiceByNumber(number string) (*models.Invoice, error) {
	return db.getInvoiceBy(eq("number", number))
}

func (db *SupabaseDatabase) ListInvoicesByTenant(tenantID string) ([]models.Invoice, error) {
	respBody, err := db.makeRequest("GET", "/invoices?"+eq("tenant_id", tenantID)+"&order=created_at.desc", nil)
	if err != nil {
		return nil, err
	}
	var out []models.Invoice
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode invoices: %w", err)
	}
	return out, nil
}

// ================= Recurring expenses =================

func (db *SupabaseDatabase) CreateExpense(e *models.RecurringExpense) error {
	e.ID = uuid.New().String()
	if e.Interval == "" {
		e.Interval = models.IntervalMonthly
	}
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	if err := db.insertRow("recurring_expenses", e, e); err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) UpdateExpense(e *models.RecurringExpense) error {
	patch := map[string]interface{}{
		"name":             e.Name,
		"vendor":           e.Vendor,
		"amount_cents":     e.AmountCents,
		"currency":         e.Currency,
		"billing_interval": e.Interval,
		"next_renewal_at":  e.NextRenewalAt,
		"updated_at":       time.Now(),
	}
	if err := db.patchRows("recurring_expenses", eq("id", e.ID), patch); err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) DeleteExpense(id string) error {
	if err := db.deleteRows("expense_allocations", eq("expense_id", id)); err != nil {
		return err
	}
	return db.deleteRows("recurring_expenses", eq("id", id))
}

func (db *SupabaseDatabase) GetExpense(id string) (*models.RecurringExpense, error) {
	respBody, err := db.makeRequest("GET", "/recurring_expenses?"+eq("id", id)+"&limit=1", nil)
	if err != nil {
		return nil, err
	}
	var e models.RecurringExpense
	if err := decodeSingle(respBody, &e); err != nil {
		return nil, fmt.Errorf("expense not found: %w", err)
	}
	return &e, nil
}

func (db *SupabaseDatabase) ListExpensesByTenant(tenantID string) ([]models.RecurringExpense, error) {
	respBody, err := db.makeRequest("GET", "/recurring_expenses?"+eq("tenant_id", tenantID)+"&order=created_at.desc", nil)
	if err != nil {
		return nil, err
	}
	var out []models.RecurringExpense
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode expenses: %w", err)
	}
	return out, nil
}

func (db *SupabaseDatabase) ReplaceExpenseAllocations(expenseID string, allocs []models.ExpenseAllocation) error {
	// REST API 没有事务，先删后插
	if err := db.deleteRows("expense_allocations", eq("expense_id", expenseID)); err != nil {
		return fmt.Errorf("failed to clear allocations: %w", err)
	}
	for i := range allocs {
		allocs[i].ID = uuid.New().String()
		allocs[i].ExpenseID = expenseID
	}
	if len(allocs) == 0 {
		return nil
	}
	if _, err := db.makeRequest("POST", "/expense_allocations", allocs); err != nil {
		return fmt.Errorf("failed to insert allocations: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) ListExpenseAllocations(expenseID string) ([]models.ExpenseAllocation, error) {
	respBody, err := db.makeRequest("GET", "/expense_allocations?"+eq("expense_id", expenseID)+"&order=percent_bps.desc", nil)
	if err != nil {
		return nil, err
	}
	var out []models.ExpenseAllocation
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode allocations: %w", err)
	}
	return out, nil
}

// ================= Calendar =================

func (db *SupabaseDatabase) CreateEvent(ev *models.CalendarEvent) error {
	ev.ID = uuid.New().String()
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = ev.CreatedAt
	if err := db.insertRow("calendar_events", ev, ev); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (db *SupabaseDatabase) DeleteEvent(id string) error {
	return db.deleteRows("calendar_events", eq("id", id))
}

func (db *SupabaseDatabase) ListEventsByTenant(tenantID string, from, to time.Time) ([]models.CalendarEvent, error) {
	filter := eq("tenant_id", tenantID) +
		"&starts_at=lt." + url.QueryEscape(to.UTC().Format(time.RFC3339)) +
		"&ends_at=gte." + url.QueryEscape(from.UTC().Format(time.RFC3339)) +
		"&order=starts_at"
	respBody, err := db.makeRequest("GET", "/calendar_events?"+filter, nil)
	if err != nil {
		return nil, err
	}
	var out []models.CalendarEvent
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return out, nil
}

// ================= Misc =================

// HealthCheck 健康检查
func (db *SupabaseDatabase) HealthCheck() error {
	_, err := db.makeRequest("GET", "/users?limit=1", nil)
	return err
}

// Close 关闭连接（HTTP客户端无需显式关闭）
func (db *SupabaseDatabase) Close() error {
	return nil
}
