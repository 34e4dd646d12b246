// test/mocks/mocks.go

// Package mocks contains generated mocks for the application's interfaces.
// Regenerate with `go generate ./test/mocks`.
package mocks

//go:generate mockgen -source=../../internal/core/ports/store.go -destination=store_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/ledger_service.go -destination=ledger_service_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/auth.go -destination=auth_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/cache.go -destination=cache_repository_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/tasks.go -destination=tasks_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/storage.go -destination=storage_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/database.go -destination=database_mock.go -package=mocks
