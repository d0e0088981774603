package database

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"neuracall-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase 内存数据库实现，用于本地开发和测试
type MemoryDatabase struct {
	mu sync.RWMutex

	users       map[string]*models.User
	tenants     map[string]*models.Tenant
	memberships map[string]*models.TenantMembership
	invitations map[string]*models.TenantInvitation
	clients     map[string]*models.Client
	opps        map[string]*models.Opportunity
	projects    map[string]*models.Project
	timeEntries map[string]*models.TimeEntry
	invoices    map[string]*models.Invoice
	expenses    map[string]*models.RecurringExpense
	allocations map[string][]models.ExpenseAllocation // expenseID -> allocations
	events      map[string]*models.CalendarEvent
}

// NewMemoryDatabase 创建内存数据库实例
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		users:       make(map[string]*models.User),
		tenants:     make(map[string]*models.Tenant),
		memberships: make(map[string]*models.TenantMembership),
		invitations: make(map[string]*models.TenantInvitation),
		clients:     make(map[string]*models.Client),
		opps:        make(map[string]*models.Opportunity),
		projects:    make(map[string]*models.Project),
		timeEntries: make(map[string]*models.TimeEntry),
		invoices:    make(map[string]*models.Invoice),
		expenses:    make(map[string]*models.RecurringExpense),
		allocations: make(map[string][]models.ExpenseAllocation),
		events:      make(map[string]*models.CalendarEvent),
	}
}

// ================= Users =================

func (db *MemoryDatabase) CreateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == user.Email {
			return fmt.Errorf("user with email %s already exists", user.Email)
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	cp := *user
	db.users[user.ID] = &cp
	return nil
}

func (db *MemoryDatabase) GetUserByEmail(email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, u := range db.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user not found: %s", email)
}

func (db *MemoryDatabase) GetUserByID(id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", id)
	}
	cp := *u
	return &cp, nil
}

func (db *MemoryDatabase) UpdateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.users[user.ID]
	if !ok {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	existing.Name = user.Name
	existing.Avatar = user.Avatar
	existing.UpdatedAt = time.Now()
	return nil
}

// ================= Tenants & Memberships =================

func (db *MemoryDatabase) CreateTenant(t *models.Tenant) error {
	db.mu.Lock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	db.tenants[t.ID] = &cp
	db.mu.Unlock()

	return db.AddTenantMember(&models.TenantMembership{
		TenantID: t.ID,
		UserID:   t.OwnerID,
		Role:     models.RoleAdmin,
	})
}

func (db *MemoryDatabase) UpdateTenant(t *models.Tenant) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.tenants[t.ID]
	if !ok {
		return fmt.Errorf("tenant not found: %s", t.ID)
	}
	existing.Name = t.Name
	existing.Description = t.Description
	existing.Avatar = t.Avatar
	existing.UpdatedAt = time.Now()
	return nil
}

func (db *MemoryDatabase) GetTenant(id string) (*models.Tenant, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant not found: %s", id)
	}
	cp := *t
	return &cp, nil
}

func (db *MemoryDatabase) ListUserTenants(userID string) ([]models.Tenant, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.Tenant{}
	for _, m := range db.memberships {
		if m.UserID != userID {
			continue
		}
		if t, ok := db.tenants[m.TenantID]; ok {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (db *MemoryDatabase) AddTenantMember(m *models.TenantMembership) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	// 同一租户下重复添加时更新角色
	for _, existing := range db.memberships {
		if existing.TenantID == m.TenantID && existing.UserID == m.UserID {
			existing.Role = m.Role
			*m = *existing
			return nil
		}
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now()
	cp := *m
	db.memberships[m.ID] = &cp
	return nil
}

func (db *MemoryDatabase) ListTenantMembers(tenantID string) ([]models.TenantMembership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.TenantMembership{}
	for _, m := range db.memberships {
		if m.TenantID == tenantID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (db *MemoryDatabase) GetMembershipByUser(userID string) (*models.TenantMembership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var found *models.TenantMembership
	for _, m := range db.memberships {
		if m.UserID != userID {
			continue
		}
		if found == nil || m.CreatedAt.Before(found.CreatedAt) {
			found = m
		}
	}
	if found == nil {
		// 用户尚未加入任何租户，不是错误
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

// ================= Invitations =================

func (db *MemoryDatabase) CreateInvitation(inv *models.TenantInvitation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	cp := *inv
	db.invitations[inv.ID] = &cp
	return nil
}

func (db *MemoryDatabase) GetInvitationByToken(token string) (*models.TenantInvitation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, inv := range db.invitations {
		if inv.Token == token {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("invitation not found")
}

func (db *MemoryDatabase) ListInvitationsByEmail(email string) ([]models.TenantInvitation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.TenantInvitation{}
	for _, inv := range db.invitations {
		if inv.Email == email {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (db *MemoryDatabase) UpdateInvitation(inv *models.TenantInvitation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.invitations[inv.ID]
	if !ok {
		return fmt.Errorf("invitation not found: %s", inv.ID)
	}
	existing.Status = inv.Status
	existing.AcceptedBy = inv.AcceptedBy
	existing.UpdatedAt = time.Now()
	return nil
}

// ================= Clients =================

func (db *MemoryDatabase) CreateClient(c *models.Client) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	db.clients[c.ID] = &cp
	return nil
}

func (db *MemoryDatabase) UpdateClient(c *models.Client) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.clients[c.ID]
	if !ok {
		return fmt.Errorf("client not found: %s", c.ID)
	}
	created := existing.CreatedAt
	*existing = *c
	existing.CreatedAt = created
	existing.UpdatedAt = time.Now()
	return nil
}

func (db *MemoryDatabase) DeleteClient(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.clients, id)
	return nil
}

func (db *MemoryDatabase) GetClient(id string) (*models.Client, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	c, ok := db.clients[id]
	if !ok {
		return nil, fmt.Errorf("client not found: %s", id)
	}
	cp := *c
	return &cp, nil
}

func (db *MemoryDatabase) ListClientsByTenant(tenantID string) ([]models.Client, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.Client{}
	for _, c := range db.clients {
		if c.TenantID == tenantID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ================= Opportunities =================

func (db *MemoryDatabase) CreateOpportunity(o *models.Opportunity) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Stage == "" {
		o.Stage = models.StageNew
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	db.opps[o.ID] = &cp
	return nil
}

func (db *MemoryDatabase) UpdateOpportunity(o *models.Opportunity) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.opps[o.ID]
	if !ok {
		return fmt.Errorf("opportunity not found: %s", o.ID)
	}
	created := existing.CreatedAt
	*existing = *o
	existing.CreatedAt = created
	existing.UpdatedAt = time.Now()
	return nil
}

func (db *MemoryDatabase) UpdateOpportunityStage(id string, stage models.Stage) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.opps[id]
	if !ok {
		return fmt.Errorf("opportunity %s not found", id)
	}
	existing.Stage = stage
	existing.UpdatedAt = time.Now()
	return nil
}

func (db *MemoryDatabase) DeleteOpportunity(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.opps, id)
	return nil
}

func (db *MemoryDatabase) GetOpportunity(id string) (*models.Opportunity, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	o, ok := db.opps[id]
	if !ok {
		return nil, fmt.Errorf("opportunity not found: %s", id)
	}
	cp := *o
	return &cp, nil
}

func (db *MemoryDatabase) ListOpportunitiesByTenant(tenantID string) ([]models.Opportunity, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.Opportunity{}
	for _, o := range db.opps {
		if o.TenantID == tenantID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (db *MemoryDatabase) ListAllOpportunities() ([]models.Opportunity, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.Opportunity{}
	for _, o := range db.opps {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ================= Projects & Time entries =================

func (db *MemoryDatabase) CreateProject(p *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	db.projects[p.ID] = &cp
	return nil
}

func (db *MemoryDatabase) UpdateProject(p *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.projects[p.ID]
	if !ok {
		return fmt.Errorf("project not found: %s", p.ID)
	}
	created := existing.CreatedAt
	*existing = *p
	existing.CreatedAt = created
	existing.UpdatedAt = time.Now()
	return nil
}

func (db *MemoryDatabase) DeleteProject(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.projects, id)
	return nil
}

func (db *MemoryDatabase) GetProject(id string) (*models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.projects[id]
	if !ok {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	cp := *p
	return &cp, nil
}

func (db *MemoryDatabase) ListProjectsByTenant(tenantID string) ([]models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.Project{}
	for _, p := range db.projects {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (db *MemoryDatabase) CreateTimeEntry(e *models.TimeEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now()
	cp := *e
	db.timeEntries[e.ID] = &cp
	return nil
}

func (db *MemoryDatabase) ListTimeEntriesByProject(projectID string) ([]models.TimeEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.TimeEntry{}
	for _, e := range db.timeEntries {
		if e.ProjectID == projectID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkedOn.After(out[j].WorkedOn) })
	return out, nil
}

func (db *MemoryDatabase) DeleteTimeEntry(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.timeEntries, id)
	return nil
}

// ================= Invoices =================

func (db *MemoryDatabase) CreateInvoice(inv *models.Invoice) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.invoices {
		if existing.Number == inv.Number {
			return fmt.Errorf("invoice number %s already exists", inv.Number)
		}
	}

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceDraft
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	cp := *inv
	db.invoices[inv.ID] = &cp
	return nil
}

func (db *MemoryDatabase) UpdateInvoice(inv *models.Invoice) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.invoices[inv.ID]
	if !ok {
		return fmt.Errorf("invoice not found: %s", inv.ID)
	}
	existing.AmountCents = inv.AmountCents
	existing.Currency = inv.Currency
	existing.Status = inv.Status
	existing.DueDate = inv.DueDate
	existing.PaidAt = inv.PaidAt
	existing.UpdatedAt = time.Now()
	return nil
}

func (db *MemoryDatabase) GetInvoice(id string) (*models.Invoice, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	inv, ok := db.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice not found: %s", id)
	}
	cp := *inv
	return &cp, nil
}

func (db *MemoryDatabase) GetInvoiceByNumber(number string) (*models.Invoice, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, inv := range db.invoices {
		if inv.Number == number {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("invoice not found: %s", number)
}

func (db *MemoryDatabase) ListInvoicesByTenant(tenantID string) ([]models.Invoice, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.Invoice{}
	for _, inv := range db.invoices {
		if inv.TenantID == tenantID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ================= Recurring expenses =================

func (db *MemoryDatabase) CreateExpense(e *models.RecurringExpense) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Interval == "" {
		e.Interval = models.IntervalMonthly
	}
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	cp.Allocations = nil
	db.expenses[e.ID] = &cp
	return nil
}

func (db *MemoryDatabase) UpdateExpense(e *models.RecurringExpense) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.expenses[e.ID]
	if !ok {
		return fmt.Errorf("expense not found: %s", e.ID)
	}
	existing.Name = e.Name
	existing.Vendor = e.Vendor
	existing.AmountCents = e.AmountCents
	existing.Currency = e.Currency
	existing.Interval = e.Interval
	existing.NextRenewalAt = e.NextRenewalAt
	existing.UpdatedAt = time.Now()
	return nil
}

func (db *MemoryDatabase) DeleteExpense(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.expenses, id)
	delete(db.allocations, id)
	return nil
}

func (db *MemoryDatabase) GetExpense(id string) (*models.RecurringExpense, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	e, ok := db.expenses[id]
	if !ok {
		return nil, fmt.Errorf("expense not found: %s", id)
	}
	cp := *e
	return &cp, nil
}

func (db *MemoryDatabase) ListExpensesByTenant(tenantID string) ([]models.RecurringExpense, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.RecurringExpense{}
	for _, e := range db.expenses {
		if e.TenantID == tenantID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (db *MemoryDatabase) ReplaceExpenseAllocations(expenseID string, allocs []models.ExpenseAllocation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.expenses[expenseID]; !ok {
		return fmt.Errorf("expense not found: %s", expenseID)
	}

	stored := make([]models.ExpenseAllocation, len(allocs))
	for i, a := range allocs {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.ExpenseID = expenseID
		stored[i] = a
		allocs[i] = a
	}
	db.allocations[expenseID] = stored
	return nil
}

func (db *MemoryDatabase) ListExpenseAllocations(expenseID string) ([]models.ExpenseAllocation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stored := db.allocations[expenseID]
	out := make([]models.ExpenseAllocation, len(stored))
	copy(out, stored)
	sort.Slice(out, func(i, j int) bool { return out[i].PercentBps > out[j].PercentBps })
	return out, nil
}

// ================= Calendar =================

func (db *MemoryDatabase) CreateEvent(ev *models.CalendarEvent) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = ev.CreatedAt
	cp := *ev
	db.events[ev.ID] = &cp
	return nil
}

func (db *MemoryDatabase) DeleteEvent(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.events, id)
	return nil
}

func (db *MemoryDatabase) ListEventsByTenant(tenantID string, from, to time.Time) ([]models.CalendarEvent, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.CalendarEvent{}
	for _, ev := range db.events {
		if ev.TenantID != tenantID {
			continue
		}
		if ev.StartsAt.Before(to) && !ev.EndsAt.Before(from) {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

// ================= Misc =================

func (db *MemoryDatabase) HealthCheck() error {
	return nil
}

func (db *MemoryDatabase) Close() error {
	return nil
}
