package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/genius-academy-api/internal/models"
)

// memDB is an in-memory stand-in for the accounts schema. fakeTx snapshots it so a failed
// transaction leaves no trace, which is what the postgres transaction gives us in production.
type memDB struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	accounts map[string]models.Account
	students map[string]models.Student
	parents  map[string]models.Parent
	teachers map[string]models.Teacher
	admins   map[string]models.AdminRole
	outbox   []models.Notification

	// fail injects an error into the named operation, e.g. "outbox.enqueue".
	fail map[string]error
	// onCreate runs before an account insert; tests use it to simulate a concurrent writer.
	onCreate func(account *models.Account)
	locks    int
}

func newMemDB() *memDB {
	return &memDB{
		accounts: map[string]models.Account{},
		students: map[string]models.Student{},
		parents:  map[string]models.Parent{},
		teachers: map[string]models.Teacher{},
		admins:   map[string]models.AdminRole{},
		fail:     map[string]error{},
	}
}

type memSnapshot struct {
	accounts map[string]models.Account
	students map[string]models.Student
	parents  map[string]models.Parent
	teachers map[string]models.Teacher
	admins   map[string]models.AdminRole
	outbox   []models.Notification
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return memSnapshot{
		accounts: cloneMap(db.accounts),
		students: cloneMap(db.students),
		parents:  cloneMap(db.parents),
		teachers: cloneMap(db.teachers),
		admins:   cloneMap(db.admins),
		outbox:   append([]models.Notification(nil), db.outbox...),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.accounts = s.accounts
	db.students = s.students
	db.parents = s.parents
	db.teachers = s.teachers
	db.admins = s.admins
	db.outbox = s.outbox
}

func (db *memDB) failure(op string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.fail[op]
}

func (db *memDB) accountCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.accounts)
}

func (db *memDB) notifications() []models.Notification {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]models.Notification(nil), db.outbox...)
}

// insertAccount stores an account directly, bypassing the service.
func (db *memDB) insertAccount(a models.Account) models.Account {
	db.mu.Lock()
	defer db.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	db.accounts[a.ID] = a
	return a
}

type fakeTx struct{ db *memDB }

func (t fakeTx) WithTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()
	snap := t.db.snapshot()
	if err := fn(nil); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

type fakeAccounts struct{ db *memDB }

func (f fakeAccounts) FindByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.Account, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (f fakeAccounts) FindByLogin(_ context.Context, login string) (*models.Account, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, a := range f.db.accounts {
		if a.Username == login || strings.EqualFold(a.Email, login) {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeAccounts) UsernameExists(_ context.Context, username string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, a := range f.db.accounts {
		if a.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeAccounts) EmailExists(_ context.Context, email, excludeID string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, a := range f.db.accounts {
		if a.ID != excludeID && strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeAccounts) LockUsername(_ context.Context, role models.RoleKind, username string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.locks++
	for _, a := range f.db.accounts {
		if a.Role == role && a.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeAccounts) List(_ context.Context, filter models.AccountFilter) ([]models.Account, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Account
	for _, a := range f.db.accounts {
		if filter.Role != nil && a.Role != *filter.Role {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, len(out), nil
}

func (f fakeAccounts) ListByRole(ctx context.Context, role models.RoleKind) ([]models.Account, error) {
	out, _, err := f.List(ctx, models.AccountFilter{Role: &role})
	return out, err
}

func (f fakeAccounts) Create(_ context.Context, _ sqlx.ExtContext, account *models.Account) error {
	if hook := f.db.onCreate; hook != nil {
		hook(account)
	}
	if err := f.db.failure("accounts.create"); err != nil {
		return err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, a := range f.db.accounts {
		if a.Username == account.Username {
			return &pq.Error{Code: "23505", Constraint: "accounts_username_key"}
		}
		if strings.EqualFold(a.Email, account.Email) {
			return &pq.Error{Code: "23505", Constraint: "accounts_email_lower_key"}
		}
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	f.db.accounts[account.ID] = *account
	return nil
}

func (f fakeAccounts) UpdateProfile(_ context.Context, _ sqlx.ExtContext, account *models.Account) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.accounts[account.ID]; !ok {
		return sql.ErrNoRows
	}
	f.db.accounts[account.ID] = *account
	return nil
}

func (f fakeAccounts) UpdatePassword(_ context.Context, _ sqlx.ExtContext, id, hash string, at time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.PasswordHash = hash
	a.UpdatedAt = at
	f.db.accounts[id] = a
	return nil
}

func (f fakeAccounts) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a := f.db.accounts[id]
	a.LastLogin = &ts
	f.db.accounts[id] = a
	return nil
}

func (f fakeAccounts) SetPicture(_ context.Context, id string, picture, thumb *string) (*string, *string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.accounts[id]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	prev, prevThumb := a.Picture, a.PictureThumb
	a.Picture, a.PictureThumb = picture, thumb
	f.db.accounts[id] = a
	return prev, prevThumb, nil
}

func (f fakeAccounts) Delete(_ context.Context, _ sqlx.ExtContext, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.deleteAccountLocked(id)
}

// deleteAccountLocked mirrors the ON DELETE CASCADE / SET NULL rules of the schema.
func (db *memDB) deleteAccountLocked(id string) error {
	if _, ok := db.accounts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(db.accounts, id)
	for pid, s := range db.students {
		if s.AccountID == id {
			delete(db.students, pid)
			for parentID, p := range db.parents {
				if p.StudentID != nil && *p.StudentID == pid {
					p.StudentID = nil
					db.parents[parentID] = p
				}
			}
		}
	}
	for pid, p := range db.parents {
		if p.AccountID == id {
			delete(db.parents, pid)
		}
	}
	for pid, t := range db.teachers {
		if t.AccountID == id {
			delete(db.teachers, pid)
		}
	}
	for pid, a := range db.admins {
		if a.AccountID == id {
			delete(db.admins, pid)
		}
	}
	return nil
}

func (f fakeAccounts) CountByRole(context.Context) (map[models.RoleKind]int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := map[models.RoleKind]int{}
	for _, a := range f.db.accounts {
		out[a.Role]++
	}
	return out, nil
}

func (f fakeAccounts) CountStudentsByGender(context.Context) (int, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var male, female int
	for _, a := range f.db.accounts {
		if a.Role != models.RoleStudent || a.Gender == nil {
			continue
		}
		switch *a.Gender {
		case models.GenderMale:
			male++
		case models.GenderFemale:
			female++
		}
	}
	return male, female, nil
}

type fakeStudents struct{ db *memDB }

func (f fakeStudents) Create(_ context.Context, _ sqlx.ExtContext, student *models.Student) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	student.ID = uuid.NewString()
	student.CreatedAt = time.Now().UTC()
	f.db.students[student.ID] = *student
	return nil
}

func (f fakeStudents) FindByAccountID(_ context.Context, accountID string) (*models.Student, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, s := range f.db.students {
		if s.AccountID == accountID {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeStudents) Exists(_ context.Context, _ sqlx.ExtContext, id string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	_, ok := f.db.students[id]
	return ok, nil
}

func (f fakeStudents) UpdateLevel(_ context.Context, _ sqlx.ExtContext, accountID string, level *models.EducationLevel) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, s := range f.db.students {
		if s.AccountID == accountID {
			s.Level = level
			f.db.students[id] = s
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeStudents) ListParents(_ context.Context, studentID string) ([]models.AccountSummary, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.AccountSummary
	for _, p := range f.db.parents {
		if p.StudentID == nil || *p.StudentID != studentID {
			continue
		}
		a := f.db.accounts[p.AccountID]
		out = append(out, models.AccountSummary{AccountID: a.ID, ProfileID: p.ID, Username: a.Username, FirstName: a.FirstName, LastName: a.LastName, Email: a.Email, Relation: (*string)(p.Relationship)})
	}
	return out, nil
}

func (f fakeStudents) ListAll(context.Context) ([]models.Student, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Student
	for _, s := range f.db.students {
		out = append(out, s)
	}
	return out, nil
}

func (f fakeStudents) DeleteWithAccount(_ context.Context, _ sqlx.ExtContext, id string) (string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.students[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	return s.AccountID, f.db.deleteAccountLocked(s.AccountID)
}

type fakeParents struct{ db *memDB }

func (f fakeParents) Create(_ context.Context, _ sqlx.ExtContext, parent *models.Parent) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	parent.ID = uuid.NewString()
	parent.CreatedAt = time.Now().UTC()
	f.db.parents[parent.ID] = *parent
	return nil
}

func (f fakeParents) FindByAccountID(_ context.Context, accountID string) (*models.Parent, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, p := range f.db.parents {
		if p.AccountID == accountID {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeParents) Update(_ context.Context, _ sqlx.ExtContext, accountID string, studentID *string, relationship *models.Relationship) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, p := range f.db.parents {
		if p.AccountID == accountID {
			p.StudentID = studentID
			p.Relationship = relationship
			f.db.parents[id] = p
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeParents) FindLinkedStudent(_ context.Context, studentID string) (*models.AccountSummary, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.students[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	a := f.db.accounts[s.AccountID]
	return &models.AccountSummary{AccountID: a.ID, ProfileID: s.ID, Username: a.Username, FirstName: a.FirstName, LastName: a.LastName, Email: a.Email}, nil
}

func (f fakeParents) ListAll(context.Context) ([]models.Parent, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Parent
	for _, p := range f.db.parents {
		out = append(out, p)
	}
	return out, nil
}

func (f fakeParents) DeleteWithAccount(_ context.Context, _ sqlx.ExtContext, id string) (string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.parents[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	delete(f.db.parents, id)
	return p.AccountID, f.db.deleteAccountLocked(p.AccountID)
}

type fakeTeachers struct{ db *memDB }

func (f fakeTeachers) Create(_ context.Context, _ sqlx.ExtContext, teacher *models.Teacher) error {
	if err := f.db.failure("teachers.create"); err != nil {
		return err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	teacher.ID = uuid.NewString()
	teacher.CreatedAt = time.Now().UTC()
	f.db.teachers[teacher.ID] = *teacher
	return nil
}

func (f fakeTeachers) FindByAccountID(_ context.Context, _ sqlx.ExtContext, accountID string) (*models.Teacher, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, t := range f.db.teachers {
		if t.AccountID == accountID {
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeTeachers) GetOrCreate(ctx context.Context, accountID string) (*models.Teacher, error) {
	if t, err := f.FindByAccountID(ctx, nil, accountID); err == nil {
		return t, nil
	}
	t := &models.Teacher{AccountID: accountID, Available: true, CredentialStatus: models.CredentialIssued}
	if err := f.Create(ctx, nil, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (f fakeTeachers) Update(_ context.Context, _ sqlx.ExtContext, teacher *models.Teacher) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.teachers[teacher.ID]; !ok {
		return sql.ErrNoRows
	}
	f.db.teachers[teacher.ID] = *teacher
	return nil
}

func (f fakeTeachers) ListAll(context.Context) ([]models.Teacher, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Teacher
	for _, t := range f.db.teachers {
		out = append(out, t)
	}
	return out, nil
}

func (f fakeTeachers) MarkIssued(_ context.Context, _ sqlx.ExtContext, accountID string, at time.Time) (bool, error) {
	return f.transition(accountID, models.CredentialPending, models.CredentialIssued, at)
}

func (f fakeTeachers) MarkPending(_ context.Context, _ sqlx.ExtContext, accountID string, at time.Time) (bool, error) {
	return f.transition(accountID, models.CredentialIssued, models.CredentialPending, at)
}

func (f fakeTeachers) transition(accountID string, from, to models.CredentialStatus, at time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, t := range f.db.teachers {
		if t.AccountID == accountID && t.CredentialStatus == from {
			t.CredentialStatus = to
			if to == models.CredentialIssued {
				t.CredentialIssuedAt = &at
			}
			f.db.teachers[id] = t
			return true, nil
		}
	}
	return false, nil
}

type fakeAdmins struct{ db *memDB }

func (f fakeAdmins) Create(_ context.Context, _ sqlx.ExtContext, admin *models.AdminRole) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	admin.ID = uuid.NewString()
	admin.CreatedAt = time.Now().UTC()
	f.db.admins[admin.ID] = *admin
	return nil
}

func (f fakeAdmins) FindByAccountID(_ context.Context, _ sqlx.ExtContext, accountID string) (*models.AdminRole, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, a := range f.db.admins {
		if a.AccountID == accountID {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeAdmins) Update(_ context.Context, _ sqlx.ExtContext, accountID string, role models.AdminRoleKind, description *string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, a := range f.db.admins {
		if a.AccountID == accountID {
			a.Role = role
			a.Description = description
			f.db.admins[id] = a
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeAdmins) ListAll(context.Context) ([]models.AdminRole, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.AdminRole
	for _, a := range f.db.admins {
		out = append(out, a)
	}
	return out, nil
}

func (f fakeAdmins) MarkIssued(_ context.Context, _ sqlx.ExtContext, accountID string, at time.Time) (bool, error) {
	return f.transition(accountID, models.CredentialPending, models.CredentialIssued, at)
}

func (f fakeAdmins) MarkPending(_ context.Context, _ sqlx.ExtContext, accountID string, at time.Time) (bool, error) {
	return f.transition(accountID, models.CredentialIssued, models.CredentialPending, at)
}

func (f fakeAdmins) transition(accountID string, from, to models.CredentialStatus, at time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, a := range f.db.admins {
		if a.AccountID == accountID && a.CredentialStatus == from {
			a.CredentialStatus = to
			if to == models.CredentialIssued {
				a.CredentialIssuedAt = &at
			}
			f.db.admins[id] = a
			return true, nil
		}
	}
	return false, nil
}

type fakeOutbox struct{ db *memDB }

func (f fakeOutbox) Enqueue(_ context.Context, _ sqlx.ExtContext, n *models.Notification) error {
	if err := f.db.failure("outbox.enqueue"); err != nil {
		return err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	n.ID = uuid.NewString()
	n.Status = models.NotificationPending
	n.CreatedAt = time.Now().UTC()
	n.NextAttemptAt = n.CreatedAt
	f.db.outbox = append(f.db.outbox, *n)
	return nil
}

type countingKicker struct {
	mu    sync.Mutex
	kicks int
}

func (k *countingKicker) Kick() {
	k.mu.Lock()
	k.kicks++
	k.mu.Unlock()
}

func (k *countingKicker) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.kicks
}
