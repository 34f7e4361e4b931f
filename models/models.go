// Package models defines the domain entities served by the repository
// layer: branches, members, loan accounts and their transactions, and the
// activity log. Every model embeds repository.Model for identity, audit
// stamps and the soft-delete flag, and validates itself with ozzo rules
// before a unit of work commits it.
package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/uptrace/bun"

	"github.com/Nkambwe/Mfi-Mananger-sub000/repository"
)

// Branch is a physical office members are registered under.
type Branch struct {
	bun.BaseModel `bun:"table:branches,alias:b"`
	repository.Model

	Code     string `bun:"code,notnull" json:"code"`
	Name     string `bun:"name,notnull" json:"name"`
	Address  string `bun:"address" json:"address"`
	Phone    string `bun:"phone" json:"phone"`
	IsActive bool   `bun:"is_active,notnull,default:true" json:"is_active"`
}

func (b *Branch) TableName() string { return "branches" }

func (b *Branch) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.Code, validation.Required, validation.Length(2, 16)),
		validation.Field(&b.Name, validation.Required, validation.Length(2, 120)),
		validation.Field(&b.Address, validation.Length(0, 250)),
		validation.Field(&b.Phone, validation.Length(0, 20)),
	)
}

// Member is a registered client of the institution.
type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`
	repository.Model

	BranchID   int64  `bun:"branch_id,notnull" json:"branch_id"`
	MemberNo   string `bun:"member_no,notnull" json:"member_no"`
	FirstName  string `bun:"first_name,notnull" json:"first_name"`
	LastName   string `bun:"last_name,notnull" json:"last_name"`
	Email      string `bun:"email" json:"email"`
	Phone      string `bun:"phone" json:"phone"`
	NationalID string `bun:"national_id" json:"national_id"`
	IsActive   bool   `bun:"is_active,notnull,default:true" json:"is_active"`
}

func (m *Member) TableName() string { return "members" }

func (m *Member) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.BranchID, validation.Required),
		validation.Field(&m.MemberNo, validation.Required, validation.Length(3, 32)),
		validation.Field(&m.FirstName, validation.Required, validation.Length(1, 60)),
		validation.Field(&m.LastName, validation.Required, validation.Length(1, 60)),
		validation.Field(&m.Email, is.EmailFormat),
		validation.Field(&m.Phone, validation.Length(0, 20)),
		validation.Field(&m.NationalID, validation.Length(0, 32)),
	)
}

// Loan account lifecycle states.
const (
	LoanPending    = "pending"
	LoanActive     = "active"
	LoanClosed     = "closed"
	LoanWrittenOff = "written_off"
)

// LoanAccount is a disbursed or pending loan held by a member.
type LoanAccount struct {
	bun.BaseModel `bun:"table:loan_accounts,alias:la"`
	repository.Model

	MemberID     int64   `bun:"member_id,notnull" json:"member_id"`
	BranchID     int64   `bun:"branch_id,notnull" json:"branch_id"`
	AccountNo    string  `bun:"account_no,notnull" json:"account_no"`
	Principal    float64 `bun:"principal,notnull" json:"principal"`
	Balance      float64 `bun:"balance,notnull" json:"balance"`
	InterestRate float64 `bun:"interest_rate,notnull" json:"interest_rate"`
	TermMonths   int     `bun:"term_months,notnull" json:"term_months"`
	Status       string  `bun:"status,notnull,default:'pending'" json:"status"`
}

func (a *LoanAccount) TableName() string { return "loan_accounts" }

func (a *LoanAccount) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.MemberID, validation.Required),
		validation.Field(&a.BranchID, validation.Required),
		validation.Field(&a.AccountNo, validation.Required, validation.Length(4, 32)),
		validation.Field(&a.Principal, validation.Required, validation.Min(0.0)),
		validation.Field(&a.Balance, validation.Min(0.0)),
		validation.Field(&a.InterestRate, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&a.TermMonths, validation.Required, validation.Min(1), validation.Max(360)),
		validation.Field(&a.Status, validation.Required,
			validation.In(LoanPending, LoanActive, LoanClosed, LoanWrittenOff)),
	)
}

// Transaction types recorded against a loan account.
const (
	TxnDisbursement = "disbursement"
	TxnRepayment    = "repayment"
	TxnFee          = "fee"
	TxnReversal     = "reversal"
)

// LoanTransaction is one money movement on a loan account. Transaction
// volume makes this the table most likely to qualify for approximate
// counting when paged.
type LoanTransaction struct {
	bun.BaseModel `bun:"table:loan_transactions,alias:lt"`
	repository.Model

	AccountID int64   `bun:"account_id,notnull" json:"account_id"`
	Type      string  `bun:"type,notnull" json:"type"`
	Amount    float64 `bun:"amount,notnull" json:"amount"`
	Reference string  `bun:"reference" json:"reference"`
	Narrative string  `bun:"narrative" json:"narrative"`
}

func (t *LoanTransaction) TableName() string { return "loan_transactions" }

func (t *LoanTransaction) Validate() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.AccountID, validation.Required),
		validation.Field(&t.Type, validation.Required,
			validation.In(TxnDisbursement, TxnRepayment, TxnFee, TxnReversal)),
		validation.Field(&t.Amount, validation.Required, validation.Min(0.0)),
		validation.Field(&t.Reference, validation.Length(0, 64)),
		validation.Field(&t.Narrative, validation.Length(0, 250)),
	)
}

// ActivityLog is an append-only audit trail entry.
type ActivityLog struct {
	bun.BaseModel `bun:"table:activity_logs,alias:al"`
	repository.Model

	Actor   string `bun:"actor,notnull" json:"actor"`
	Action  string `bun:"action,notnull" json:"action"`
	Target  string `bun:"target" json:"target"`
	Details string `bun:"details" json:"details"`
}

func (l *ActivityLog) TableName() string { return "activity_logs" }

func (l *ActivityLog) Validate() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.Actor, validation.Required, validation.Length(1, 60)),
		validation.Field(&l.Action, validation.Required, validation.Length(1, 60)),
		validation.Field(&l.Target, validation.Length(0, 120)),
		validation.Field(&l.Details, validation.Length(0, 500)),
	)
}
