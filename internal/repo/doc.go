// Package repo хранит загрузки и подключения в PostgreSQL.
//
// Запросы выполняются через pgxpool. Схема создаётся миграциями
// golang-migrate, встроенными в бинарник (migrations/*.sql).
package repo
