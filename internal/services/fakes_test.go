package services

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-matching-api/internal/config"
	"github.com/sjperalta/fintera-matching-api/internal/jobs"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"gorm.io/gorm"
)

// memStore is an in-memory database shared by the fake repositories.
// Row locks are emulated with one mutex per balance and per income record.
type memStore struct {
	mu            sync.Mutex
	nextID        uint
	users         map[uint]*models.User
	sales         map[uint]*models.Sale
	balances      map[uint]*models.LegBalance
	incomes       map[uint]*models.IncomeRecord
	notifications []models.Notification
	audits        []models.AuditLog
	rowLocks      map[string]*sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uint]*models.User),
		sales:    make(map[uint]*models.Sale),
		balances: make(map[uint]*models.LegBalance),
		incomes:  make(map[uint]*models.IncomeRecord),
		rowLocks: make(map[string]*sync.Mutex),
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) rowLock(kind string, id uint) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := kind + ":" + strconv.FormatUint(uint64(id), 10)
	l, ok := m.rowLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.rowLocks[key] = l
	}
	return l
}

// ---- users ----

type fakeUserRepo struct {
	repository.UserRepository
	store *memStore
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok || u.DiscardedAt != nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
		if user.ParentID != nil && u.ParentID != nil && *u.ParentID == *user.ParentID &&
			u.Position != nil && user.Position != nil && *u.Position == *user.Position {
			return repository.ErrPositionTaken
		}
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Status == "" {
		user.Status = models.StatusActive
	}
	user.ID = r.store.id()
	cp := *user
	r.store.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *user
	r.store.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindAdmins(ctx context.Context) ([]models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.User
	for _, u := range r.store.users {
		if u.IsAdmin() && u.IsActive() {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) FindChild(ctx context.Context, parentID uint, leg models.Leg) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.ParentID != nil && *u.ParentID == parentID && u.PlacementLeg() == leg {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindChildren(ctx context.Context, parentIDs []uint) ([]models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	want := make(map[uint]bool, len(parentIDs))
	for _, id := range parentIDs {
		want[id] = true
	}
	var out []models.User
	for _, u := range r.store.users {
		if u.ParentID != nil && want[*u.ParentID] {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) FindPlacementPath(ctx context.Context, memberID uint) ([]models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var path []models.User
	u, ok := r.store.users[memberID]
	for ok {
		path = append(path, *u)
		if u.ParentID == nil {
			break
		}
		u, ok = r.store.users[*u.ParentID]
	}
	return path, nil
}

func (r *fakeUserRepo) downline(memberID uint) []uint {
	var out []uint
	frontier := []uint{memberID}
	for len(frontier) > 0 {
		var next []uint
		for _, u := range r.store.users {
			if u.ParentID == nil {
				continue
			}
			for _, p := range frontier {
				if *u.ParentID == p {
					next = append(next, u.ID)
				}
			}
		}
		out = append(out, next...)
		frontier = next
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *fakeUserRepo) DownlineIDs(ctx context.Context, memberID uint) ([]uint, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.downline(memberID), nil
}

func (r *fakeUserRepo) CountDownline(ctx context.Context, memberID uint) (int64, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ids := r.downline(memberID)
	var active int64
	for _, id := range ids {
		if r.store.users[id].IsActive() {
			active++
		}
	}
	return int64(len(ids)), active, nil
}

func (r *fakeUserRepo) ListDownline(ctx context.Context, memberID uint, query *repository.ListQuery) ([]models.User, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ids := r.downline(memberID)
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.store.users[id])
	}
	return page(out, query), int64(len(out)), nil
}

func page[T any](items []T, query *repository.ListQuery) []T {
	if query == nil || query.PerPage <= 0 {
		return items
	}
	start := query.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + query.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// ---- ledger ----

type fakeLedgerRepo struct {
	repository.LedgerRepository
	store *memStore
}

type fakeLedgerTx struct {
	store   *memStore
	sales   []*models.Sale
	incomes []*models.IncomeRecord
}

func (t *fakeLedgerTx) CreateSale(sale *models.Sale) error {
	t.store.mu.Lock()
	sale.ID = t.store.id()
	t.store.mu.Unlock()
	t.sales = append(t.sales, sale)
	return nil
}

func (t *fakeLedgerTx) CreateIncome(record *models.IncomeRecord) error {
	t.store.mu.Lock()
	record.ID = t.store.id()
	t.store.mu.Unlock()
	t.incomes = append(t.incomes, record)
	return nil
}

func (t *fakeLedgerTx) commit() {
	for _, s := range t.sales {
		cp := *s
		t.store.sales[s.ID] = &cp
	}
	for _, r := range t.incomes {
		cp := *r
		t.store.incomes[r.ID] = &cp
	}
}

func (r *fakeLedgerRepo) WithLockedBalance(ctx context.Context, memberID uint, fn func(tx repository.LedgerTx, balance *models.LegBalance) error) error {
	lock := r.store.rowLock("balance", memberID)
	lock.Lock()
	defer lock.Unlock()

	r.store.mu.Lock()
	var balance models.LegBalance
	if b, ok := r.store.balances[memberID]; ok {
		balance = *b
	} else {
		balance = *models.NewLegBalance(memberID)
	}
	r.store.mu.Unlock()

	tx := &fakeLedgerTx{store: r.store}
	if err := fn(tx, &balance); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tx.commit()
	r.store.balances[memberID] = &balance
	return nil
}

func (r *fakeLedgerRepo) WithTransaction(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	tx := &fakeLedgerTx{store: r.store}
	if err := fn(tx); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tx.commit()
	return nil
}

func (r *fakeLedgerRepo) FindBalance(ctx context.Context, memberID uint) (*models.LegBalance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if b, ok := r.store.balances[memberID]; ok {
		cp := *b
		return &cp, nil
	}
	return models.NewLegBalance(memberID), nil
}

func (r *fakeLedgerRepo) FindMatchableMemberIDs(ctx context.Context, limit int) ([]uint, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var ids []uint
	for id, b := range r.store.balances {
		if b.LeftAvailable.IsPositive() && b.RightAvailable.IsPositive() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *fakeLedgerRepo) FindSaleByID(ctx context.Context, id uint) (*models.Sale, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.sales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeLedgerRepo) ListSales(ctx context.Context, query *repository.ListQuery) ([]models.Sale, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Sale
	for _, s := range r.store.sales {
		if uid := query.Filters["user_id"]; uid != "" {
			id, _ := strconv.Atoi(uid)
			if s.BuyerID != uint(id) && s.SellerID != uint(id) {
				continue
			}
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, query), int64(len(out)), nil
}

func (r *fakeLedgerRepo) FindLegSales(ctx context.Context, sellerID uint, leg models.Leg, limit int) ([]models.Sale, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Sale
	for _, s := range r.store.sales {
		if s.SellerID == sellerID && s.LegType == leg {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SaleDate.Equal(out[j].SaleDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].SaleDate.After(out[j].SaleDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- income ----

type fakeIncomeRepo struct {
	repository.IncomeRepository
	store *memStore
}

func (r *fakeIncomeRepo) FindByID(ctx context.Context, id uint) (*models.IncomeRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.incomes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeIncomeRepo) matches(rec *models.IncomeRecord, f *repository.IncomeFilter) bool {
	if len(f.UserIDs) > 0 && !containsID(f.UserIDs, rec.UserID) {
		return false
	}
	if f.IncomeType != "" && rec.IncomeType != f.IncomeType {
		return false
	}
	if f.LegType != "" && rec.LegType != f.LegType {
		return false
	}
	if f.Status != "" && rec.EffectiveStatus(f.Now) != f.Status {
		return false
	}
	if f.EligibleOnly && !rec.MayApprove(f.Now) {
		return false
	}
	if f.StartDate != nil && rec.SaleDate.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && rec.SaleDate.After(*f.EndDate) {
		return false
	}
	return true
}

func (r *fakeIncomeRepo) filtered(f *repository.IncomeFilter) []models.IncomeRecord {
	var out []models.IncomeRecord
	for _, rec := range r.store.incomes {
		if r.matches(rec, f) {
			cp := *rec
			if u, ok := r.store.users[rec.UserID]; ok {
				cp.User = *u
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *fakeIncomeRepo) List(ctx context.Context, f *repository.IncomeFilter) ([]models.IncomeRecord, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := r.filtered(f)
	return page(out, &f.ListQuery), int64(len(out)), nil
}

func (r *fakeIncomeRepo) ListAll(ctx context.Context, f *repository.IncomeFilter, limit int) ([]models.IncomeRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := r.filtered(f)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeIncomeRepo) Summarize(ctx context.Context, f *repository.IncomeFilter) (*repository.IncomeTotals, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t := &repository.IncomeTotals{}
	for _, rec := range r.filtered(f) {
		t.TotalRecords++
		amt := rec.IncomeAmount
		switch rec.EffectiveStatus(f.Now) {
		case models.IncomeStatusPending:
			t.Pending = t.Pending.Add(amt)
		case models.IncomeStatusEligible:
			t.Eligible = t.Eligible.Add(amt)
		case models.IncomeStatusApproved:
			t.Approved = t.Approved.Add(amt)
		case models.IncomeStatusCredited:
			t.Credited = t.Credited.Add(amt)
		case models.IncomeStatusPaid:
			t.Paid = t.Paid.Add(amt)
		case models.IncomeStatusRejected:
			t.Rejected = t.Rejected.Add(amt)
			continue
		}
		t.Total = t.Total.Add(amt)
		if rec.IncomeType == models.IncomeTypePersonalSale {
			t.Personal = t.Personal.Add(amt)
		} else {
			t.Matching = t.Matching.Add(amt)
		}
	}
	return t, nil
}

func (r *fakeIncomeRepo) Stats(ctx context.Context, now, monthStart time.Time) (*repository.IncomeStatsTotals, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s := &repository.IncomeStatsTotals{}
	users := map[uint]bool{}
	byStatus := map[models.IncomeStatus]*repository.StatusTotal{}
	for _, rec := range r.store.incomes {
		users[rec.UserID] = true
		s.OverallCount++
		s.OverallAmount = s.OverallAmount.Add(rec.IncomeAmount)
		if rec.MayApprove(now) {
			s.EligibleCount++
			s.EligibleAmount = s.EligibleAmount.Add(rec.IncomeAmount)
		}
		if !rec.CreatedAt.Before(monthStart) {
			s.MonthCount++
			s.MonthAmount = s.MonthAmount.Add(rec.IncomeAmount)
		}
		st := rec.EffectiveStatus(now)
		if byStatus[st] == nil {
			byStatus[st] = &repository.StatusTotal{Status: st}
		}
		byStatus[st].Count++
		byStatus[st].Amount = byStatus[st].Amount.Add(rec.IncomeAmount)
	}
	s.UniqueUsers = int64(len(users))
	for _, st := range byStatus {
		s.ByStatus = append(s.ByStatus, *st)
	}
	return s, nil
}

func (r *fakeIncomeRepo) WithLockedRecord(ctx context.Context, id uint, fn func(record *models.IncomeRecord) error) error {
	lock := r.store.rowLock("income", id)
	lock.Lock()
	defer lock.Unlock()

	r.store.mu.Lock()
	rec, ok := r.store.incomes[id]
	if !ok {
		r.store.mu.Unlock()
		return gorm.ErrRecordNotFound
	}
	cp := *rec
	r.store.mu.Unlock()

	if err := fn(&cp); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.incomes[id] = &cp
	return nil
}

func (r *fakeIncomeRepo) FindUnannouncedEligible(ctx context.Context, now time.Time, limit int) ([]models.IncomeRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.IncomeRecord
	for _, rec := range r.store.incomes {
		if rec.Status == models.IncomeStatusPending && !rec.EligibleForApprovalDate.After(now) && rec.EligibilityNotifiedAt == nil {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EligibleForApprovalDate.Equal(out[j].EligibleForApprovalDate) {
			return out[i].EligibleForApprovalDate.Before(out[j].EligibleForApprovalDate)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeIncomeRepo) MarkEligibilityNotified(ctx context.Context, ids []uint, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range ids {
		if rec, ok := r.store.incomes[id]; ok && rec.EligibilityNotifiedAt == nil {
			stamped := at
			rec.EligibilityNotifiedAt = &stamped
		}
	}
	return nil
}

// ---- notifications and audit ----

type fakeNotificationRepo struct {
	repository.NotificationRepository
	store *memStore
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n.ID = r.store.id()
	r.store.notifications = append(r.store.notifications, *n)
	return nil
}

func (r *fakeNotificationRepo) CreateBatch(ctx context.Context, ns []models.Notification) error {
	for i := range ns {
		if err := r.Create(ctx, &ns[i]); err != nil {
			return err
		}
	}
	return nil
}

type fakeAuditRepo struct {
	repository.AuditRepository
	store *memStore
}

func (r *fakeAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entry.ID = r.store.id()
	r.store.audits = append(r.store.audits, *entry)
	return nil
}

// inlineDispatcher runs side effects synchronously so tests can assert on them
type inlineDispatcher struct{}

func (inlineDispatcher) EnqueueAsync(job jobs.Job) {
	_ = job(context.Background())
}

// ---- environment ----

type testEnv struct {
	store     *memStore
	now       time.Time
	users     *fakeUserRepo
	ledger    *fakeLedgerRepo
	income    *fakeIncomeRepo
	calc      *CommissionCalculator
	engine    *MatchingEngine
	sales     *SaleService
	incomes   *IncomeService
	members   *MemberService
	balances  *LegBalanceService
	audit     *AuditService
	notifySvc *NotificationService
	exportSvc *ExportService
	cfg       *config.Config
}

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	cfg := &config.Config{
		CommissionPercentage: decimal.NewFromInt(5),
		EligibilityMonths:    3,
		JWTSecret:            "test-secret",
		JWTExpirationHours:   1,
		AppURL:               "https://app.example.com",
	}

	env := &testEnv{
		store:  store,
		now:    testNow,
		users:  &fakeUserRepo{store: store},
		ledger: &fakeLedgerRepo{store: store},
		income: &fakeIncomeRepo{store: store},
		cfg:    cfg,
	}
	clock := func() time.Time { return env.now }

	env.notifySvc = NewNotificationService(&fakeNotificationRepo{store: store}, env.users)
	env.audit = NewAuditService(&fakeAuditRepo{store: store})
	email := NewEmailService(cfg)
	cache := NewStatsCache(nil, time.Minute)

	env.calc = NewCommissionCalculator(cfg.CommissionPercentage)
	env.engine = NewMatchingEngine(env.calc, cfg.EligibilityMonths)
	env.engine.Now = clock

	env.sales = NewSaleService(env.ledger, env.users, env.calc, env.engine, cfg.EligibilityMonths, env.notifySvc, env.audit, cache, inlineDispatcher{})
	env.sales.Now = clock
	env.incomes = NewIncomeService(env.income, env.users, env.notifySvc, email, env.audit, cache, inlineDispatcher{})
	env.incomes.Now = clock
	env.members = NewMemberService(env.users, env.notifySvc, email, env.audit, inlineDispatcher{})
	env.balances = NewLegBalanceService(env.ledger, env.users, env.income)
	env.balances.Now = clock
	env.exportSvc = NewExportService(env.income)
	env.exportSvc.Now = clock
	return env
}

// addMember inserts a member directly under parent on leg, or a root when parent is zero
func (e *testEnv) addMember(t *testing.T, name string, parent uint, leg models.Leg) *models.User {
	t.Helper()
	u := &models.User{Email: strings.ToLower(name) + "@example.com", FullName: name}
	if parent != 0 {
		p := parent
		l := leg
		u.ParentID = &p
		u.SponsorID = &p
		u.Position = &l
	}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("add member %s: %v", name, err)
	}
	return u
}

func (e *testEnv) notificationsFor(userID uint) []models.Notification {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	var out []models.Notification
	for _, n := range e.store.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (e *testEnv) auditActions(entity string, id uint) []string {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	var out []string
	for _, a := range e.store.audits {
		if a.Entity == entity && a.EntityID == id {
			out = append(out, a.Action)
		}
	}
	return out
}

// seedIncome stores a pending record dated saleDate for userID
func (e *testEnv) seedIncome(t *testing.T, userID uint, amount string, saleDate time.Time) *models.IncomeRecord {
	t.Helper()
	sale := &models.Sale{BuyerID: userID, SellerID: userID, SaleAmount: d(amount), SaleDate: saleDate}
	income, err := e.calc.Personal(sale.SaleAmount)
	if err != nil {
		t.Fatal(err)
	}
	rec := models.NewPersonalSaleIncome(sale, e.calc.Percentage(), income, e.cfg.EligibilityMonths)
	rec.SaleID = nil
	rec.CreatedAt = e.now
	e.store.mu.Lock()
	rec.ID = e.store.id()
	cp := *rec
	e.store.incomes[rec.ID] = &cp
	e.store.mu.Unlock()
	return rec
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
