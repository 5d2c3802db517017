// Package models contains GORM persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// of ORM concerns.
//
// - order.go: orders
// - treasury.go: treasury, businesses, treasury_operations
// - ledger.go: a_transactions, a_interactions, t_logs_* and t_logs_data_*
// - identity.go: places, a_profiles
//
// JSON columns use gorm.io/datatypes so the same models run on PostgreSQL
// (jsonb) and on SQLite in tests.
package models

// All returns every model with a fixed table name, in migration order.
func All() []any {
	return []any{
		&BusinessModel{},
		&TreasuryModel{},
		&TreasuryOperationModel{},
		&OrderModel{},
		&PlaceModel{},
		&ProfileModel{},
		&TransactionModel{},
		&InteractionModel{},
	}
}
