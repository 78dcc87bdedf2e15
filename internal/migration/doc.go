// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package migration manages the SQL schema for the database store.

Migration files are embedded per dialect (sqlite, postgres, mysql) and
applied through golang-migrate. The schema matches what the store's
AutoMigrate produces, so deployments can choose either path: let the
store create the schema on open, or run the migrate CLI and disable
auto-migration.
*/
package migration
