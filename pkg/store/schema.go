package store

import (
	"context"

	"github.com/florakb/florakb/pkg/errors"
)

// DDL for the three managed tables. Column names follow the published WCVP
// column vocabulary so that downstream SQL stays recognizable to checklist
// users.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS taxon (
		plant_name_id          BIGINT PRIMARY KEY,
		ipni_id                VARCHAR,
		taxon_rank             VARCHAR,
		taxon_status           VARCHAR,
		family                 VARCHAR,
		genus_hybrid           VARCHAR,
		genus                  VARCHAR,
		species_hybrid         VARCHAR,
		species                VARCHAR,
		infraspecific_rank     VARCHAR,
		infraspecies           VARCHAR,
		parenthetical_author   VARCHAR,
		primary_author         VARCHAR,
		publication_author     VARCHAR,
		place_of_publication   VARCHAR,
		volume_and_page        VARCHAR,
		first_published        VARCHAR,
		nomenclatural_remarks  VARCHAR,
		geographic_area        VARCHAR,
		lifeform_description   VARCHAR,
		climate_description    VARCHAR,
		taxon_name             VARCHAR NOT NULL,
		taxon_authors          VARCHAR,
		accepted_plant_name_id BIGINT,
		basionym_plant_name_id BIGINT,
		replaced_synonym_author VARCHAR,
		homotypic_synonym      BOOLEAN,
		parent_plant_name_id   BIGINT,
		powo_id                VARCHAR,
		hybrid_formula         VARCHAR,
		reviewed               BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS distribution (
		plant_locality_id  BIGINT PRIMARY KEY,
		plant_name_id      BIGINT NOT NULL,
		continent_code_l1  INTEGER,
		continent          VARCHAR,
		region_code_l2     INTEGER,
		region             VARCHAR,
		area_code_l3       VARCHAR,
		area               VARCHAR,
		introduced         BOOLEAN NOT NULL,
		extinct            BOOLEAN NOT NULL,
		location_doubtful  BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS taxon_tree (
		position        INTEGER PRIMARY KEY,
		parent_position INTEGER,
		plant_name_id   BIGINT NOT NULL,
		depth           INTEGER NOT NULL,
		right_bound     INTEGER,
		is_leaf         BOOLEAN NOT NULL
	)`,
}

var dropStatements = []string{
	`DROP TABLE IF EXISTS taxon_tree`,
	`DROP TABLE IF EXISTS distribution`,
	`DROP TABLE IF EXISTS taxon`,
}

// CreateTables creates any missing tables.
func (s *Store) CreateTables(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(errors.ErrCodeStorage, err, "create tables")
		}
	}
	return nil
}

// Recreate drops and recreates all tables. Every import starts here: the
// checklist is always rebuilt from one snapshot, never patched in place.
func (s *Store) Recreate(ctx context.Context) error {
	for _, stmt := range dropStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(errors.ErrCodeStorage, err, "drop tables")
		}
	}
	return s.CreateTables(ctx)
}
