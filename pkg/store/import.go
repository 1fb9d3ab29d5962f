package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/florakb/florakb/pkg/checklist"
	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/tree"
)

// insertBatchSize is the number of rows per multi-row INSERT. DuckDB handles
// large statements well; the bound mainly keeps placeholder counts sane.
const insertBatchSize = 1000

// InsertNames bulk-loads taxon rows and returns the inserted count.
func (s *Store) InsertNames(ctx context.Context, names []checklist.Name) (int, error) {
	const cols = 31
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", cols), ",") + ")"

	err := s.batched(ctx, len(names), func(tx *sql.Tx, lo, hi int) error {
		var b strings.Builder
		b.WriteString(`INSERT INTO taxon VALUES `)
		args := make([]any, 0, (hi-lo)*cols)
		for i := lo; i < hi; i++ {
			if i > lo {
				b.WriteByte(',')
			}
			b.WriteString(placeholder)
			n := names[i]
			args = append(args,
				n.ID, nullStr(n.IpniID), nullStr(n.TaxonRank), nullStr(n.TaxonStatus),
				nullStr(n.Family), nullStr(n.GenusHybrid), nullStr(n.Genus),
				nullStr(n.SpeciesHybrid), nullStr(n.Species), nullStr(n.InfraspecificRank),
				nullStr(n.Infraspecies), nullStr(n.ParentheticalAuthor), nullStr(n.PrimaryAuthor),
				nullStr(n.PublicationAuthor), nullStr(n.PlaceOfPublication), nullStr(n.VolumeAndPage),
				nullStr(n.FirstPublished), nullStr(n.NomenclaturalRemarks), nullStr(n.GeographicArea),
				nullStr(n.Lifeform), nullStr(n.Climate), n.TaxonName, nullStr(n.TaxonAuthors),
				n.AcceptedID, n.BasionymID, nullStr(n.ReplacedSynonymAuth), n.HomotypicSynonym,
				n.ParentID, nullStr(n.PowoID), nullStr(n.HybridFormula), n.Reviewed,
			)
		}
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStorage, err, "insert taxon rows")
	}
	return len(names), nil
}

// InsertDistributions bulk-loads distribution rows and returns the count.
func (s *Store) InsertDistributions(ctx context.Context, dists []checklist.Distribution) (int, error) {
	const cols = 11
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", cols), ",") + ")"

	err := s.batched(ctx, len(dists), func(tx *sql.Tx, lo, hi int) error {
		var b strings.Builder
		b.WriteString(`INSERT INTO distribution VALUES `)
		args := make([]any, 0, (hi-lo)*cols)
		for i := lo; i < hi; i++ {
			if i > lo {
				b.WriteByte(',')
			}
			b.WriteString(placeholder)
			d := dists[i]
			args = append(args,
				d.ID, d.PlantID, d.ContinentCode, nullStr(d.Continent),
				d.RegionCode, nullStr(d.Region), nullStr(d.AreaCode), nullStr(d.Area),
				d.Introduced, d.Extinct, d.Doubtful,
			)
		}
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStorage, err, "insert distribution rows")
	}
	return len(dists), nil
}

// InsertTree persists one build of the nested-set table. When the resolved
// root is synthetic (no matching taxon row exists), a placeholder taxon named
// "Root" is inserted first so the tree table's ids always resolve.
func (s *Store) InsertTree(ctx context.Context, res *tree.Result) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM taxon WHERE plant_name_id = ?)`, int64(res.Root),
	).Scan(&exists)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "check root taxon")
	}
	if !exists {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO taxon (plant_name_id, taxon_name) VALUES (?, 'Root')`, int64(res.Root))
		if err != nil {
			return errors.Wrap(errors.ErrCodeStorage, err, "insert placeholder root taxon")
		}
	}

	const cols = 6
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", cols), ",") + ")"

	entries := res.Entries
	err = s.batched(ctx, len(entries), func(tx *sql.Tx, lo, hi int) error {
		var b strings.Builder
		b.WriteString(`INSERT INTO taxon_tree VALUES `)
		args := make([]any, 0, (hi-lo)*cols)
		for i := lo; i < hi; i++ {
			if i > lo {
				b.WriteByte(',')
			}
			b.WriteString(placeholder)
			e := entries[i]
			args = append(args,
				e.Position, e.ParentPosition, int64(e.NodeID), e.Depth, e.RightBound, e.IsLeaf,
			)
		}
		_, err := tx.ExecContext(ctx, b.String(), args...)
		return err
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "insert tree entries")
	}
	return nil
}

// batched runs fn over [0,n) in insertBatchSize windows inside a single
// transaction, so a failed import never leaves a half-loaded table.
func (s *Store) batched(ctx context.Context, n int, fn func(tx *sql.Tx, lo, hi int) error) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for lo := 0; lo < n; lo += insertBatchSize {
		hi := min(lo+insertBatchSize, n)
		if err := fn(tx, lo, hi); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// nullStr maps empty strings to SQL NULL.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
