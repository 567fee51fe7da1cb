// Package pg implementa el repositorio de usuarios federados sobre PostgreSQL (pgx/v5).
//
// Todas las consultas van contra la tabla federated_users. El pool se abstrae detrás
// de DB para poder usar pgxmock en tests.
package pg
