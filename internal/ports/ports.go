// Package ports declares the storage capabilities the services depend on.
// Each repository is composed from small capability interfaces instead of a
// shared base type.
package ports

import (
	"context"
	"time"

	"webbudget/internal/core"
)

// Saver inserts an entity with a zero ID and updates it otherwise. On insert
// the generated ID is written back.
type Saver[T any] interface {
	Save(ctx context.Context, v *T) error
}

type Deleter interface {
	Delete(ctx context.Context, id int64) error
}

// Finder returns a StateConflictError of kind NotFound when id is unknown.
type Finder[T any] interface {
	FindByID(ctx context.Context, id int64) (T, error)
}

type Paginator[T any] interface {
	List(ctx context.Context, q core.PageQuery) (core.Page[T], error)
}

type CostCenterRepository interface {
	Saver[core.CostCenter]
	Deleter
	Finder[core.CostCenter]
	Paginator[core.CostCenter]
	FindByNameAndParent(ctx context.Context, name string, parentID *int64) (core.CostCenter, error)
}

type MovementClassRepository interface {
	Saver[core.MovementClass]
	Deleter
	Finder[core.MovementClass]
	Paginator[core.MovementClass]
	FindByCostCenter(ctx context.Context, costCenterID int64, t core.ClassType) ([]core.MovementClass, error)
	FindByNameAndType(ctx context.Context, name string, t core.ClassType, costCenterID int64) (core.MovementClass, error)
}

type MovementRepository interface {
	Saver[core.Movement]
	Deleter
	Finder[core.Movement]
	Paginator[core.Movement]
	FindByCode(ctx context.Context, code string) (core.Movement, error)
	ListByPeriod(ctx context.Context, periodID int64) ([]core.Movement, error)
	ListByCardInvoice(ctx context.Context, invoiceID int64) ([]core.Movement, error)
}

type ApportionmentRepository interface {
	Saver[core.Apportionment]
	Deleter
	ListByMovement(ctx context.Context, movementID int64) ([]core.Apportionment, error)
	ListByFixedMovement(ctx context.Context, fixedMovementID int64) ([]core.Apportionment, error)
	DeleteByMovement(ctx context.Context, movementID int64) error
	DeleteByFixedMovement(ctx context.Context, fixedMovementID int64) error
	CountByClass(ctx context.Context, classID int64) (int, error)
	// SumPaidByClass totals apportionments of PAID or CALCULATED movements.
	SumPaidByClass(ctx context.Context, classID, periodID int64) (core.Money, error)
}

type FixedMovementRepository interface {
	Saver[core.FixedMovement]
	Deleter
	Finder[core.FixedMovement]
	Paginator[core.FixedMovement]
	// ListAutoLaunch returns ACTIVE templates flagged for automatic launch.
	ListAutoLaunch(ctx context.Context) ([]core.FixedMovement, error)
}

type LaunchRepository interface {
	Saver[core.Launch]
	Deleter
	CountByFixedMovement(ctx context.Context, fixedMovementID int64) (int, error)
	// MaxQuote returns the highest quote launched for the template, 0 when none.
	MaxQuote(ctx context.Context, fixedMovementID int64) (int, error)
	ListByFixedMovement(ctx context.Context, fixedMovementID int64, q core.PageQuery) (core.Page[core.Launch], error)
	FindByMovement(ctx context.Context, movementID int64) (core.Launch, error)
	ExistsForPeriod(ctx context.Context, fixedMovementID, periodID int64) (bool, error)
}

type PaymentRepository interface {
	Saver[core.Payment]
	Deleter
	Finder[core.Payment]
}

type WalletRepository interface {
	Saver[core.Wallet]
	Finder[core.Wallet]
	Paginator[core.Wallet]
	// Lock re-reads the wallet and holds it for writing until the unit of
	// work ends.
	Lock(ctx context.Context, id int64) (core.Wallet, error)
	// UpdateBalance sets the balance only when the stored version still
	// equals version and returns the number of updated rows.
	UpdateBalance(ctx context.Context, id int64, balance core.Money, version int64) (int64, error)
}

// WalletBalanceRepository is append-only.
type WalletBalanceRepository interface {
	Append(ctx context.Context, b *core.WalletBalance) error
	ListByWallet(ctx context.Context, walletID int64) ([]core.WalletBalance, error)
}

type CardRepository interface {
	Saver[core.Card]
	Finder[core.Card]
	Paginator[core.Card]
}

type CardInvoiceRepository interface {
	Saver[core.CardInvoice]
	Deleter
	Finder[core.CardInvoice]
	FindByMovement(ctx context.Context, movementID int64) (core.CardInvoice, error)
}

type PeriodRepository interface {
	Saver[core.FinancialPeriod]
	Finder[core.FinancialPeriod]
	Paginator[core.FinancialPeriod]
	FindActive(ctx context.Context) (core.FinancialPeriod, error)
	FindByIdentification(ctx context.Context, identification string) (core.FinancialPeriod, error)
}

type OutboxRepository interface {
	Append(ctx context.Context, e *core.OutboxEvent) error
	// Pending returns unpublished events with fewer than maxAttempts attempts,
	// oldest first.
	Pending(ctx context.Context, limit, maxAttempts int) ([]core.OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Repos is the set of repositories bound to one unit of work.
type Repos struct {
	CostCenters    CostCenterRepository
	Classes        MovementClassRepository
	Movements      MovementRepository
	Apportionments ApportionmentRepository
	FixedMovements FixedMovementRepository
	Launches       LaunchRepository
	Payments       PaymentRepository
	Wallets        WalletRepository
	Balances       WalletBalanceRepository
	Cards          CardRepository
	CardInvoices   CardInvoiceRepository
	Periods        PeriodRepository
	Outbox         OutboxRepository
}

// UnitOfWork runs fn in one transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}
