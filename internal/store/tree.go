package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"checklist-cli/internal/model"
	"checklist-cli/internal/mutate"

	"go.uber.org/zap"
)

type row struct {
	id, parent, name, rank string
}

func (s *Store) rows(ctx context.Context, q queryer, query string, args ...any) ([]row, error) {
	rs, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []row
	for rs.Next() {
		var r row
		if err := rs.Scan(&r.id, &r.parent, &r.name, &r.rank); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

func sortRows(rs []row) {
	sibs := make([]sibling, len(rs))
	byID := make(map[string]row, len(rs))
	for i, r := range rs {
		sibs[i] = sibling{ID: r.id, Rank: r.rank}
		byID[r.id] = r
	}
	sortSiblings(sibs)
	for i, sb := range sibs {
		rs[i] = byID[sb.ID]
	}
}

// Tree loads the full machine -> assembly -> part hierarchy in display order.
func (s *Store) Tree(ctx context.Context) (model.Tree, error) {
	machines, err := s.rows(ctx, s.db, `SELECT id, '', name, rank FROM machines`)
	if err != nil {
		return model.Tree{}, err
	}
	assemblies, err := s.rows(ctx, s.db, `SELECT id, machine_id, name, rank FROM assemblies`)
	if err != nil {
		return model.Tree{}, err
	}
	parts, err := s.rows(ctx, s.db, `SELECT id, assembly_id, name, rank FROM parts`)
	if err != nil {
		return model.Tree{}, err
	}
	sortRows(machines)
	sortRows(assemblies)
	sortRows(parts)

	partsBy := map[string][]model.Part{}
	for _, p := range parts {
		partsBy[p.parent] = append(partsBy[p.parent], model.Part{ID: p.id, Name: p.name})
	}
	asmBy := map[string][]model.Assembly{}
	for _, a := range assemblies {
		ps := partsBy[a.id]
		if ps == nil {
			ps = []model.Part{}
		}
		asmBy[a.parent] = append(asmBy[a.parent], model.Assembly{ID: a.id, Name: a.name, Parts: ps})
	}
	t := model.Tree{Machines: make([]model.Machine, 0, len(machines))}
	for _, m := range machines {
		as := asmBy[m.id]
		if as == nil {
			as = []model.Assembly{}
		}
		t.Machines = append(t.Machines, model.Machine{ID: m.id, Name: m.name, Assemblies: as})
	}
	return t, nil
}

// siblingTable maps an intent type to the table and parent column of its
// sibling group, plus the kind and table of the parent.
func siblingTable(typ model.IntentType) (table, parentCol string, parentKind model.Kind, parentTable string, err error) {
	switch typ {
	case model.IntentMoveAssembly:
		return "assemblies", "machine_id", model.KindMachine, "machines", nil
	case model.IntentMovePart:
		return "parts", "assembly_id", model.KindAssembly, "assemblies", nil
	default:
		return "", "", "", "", fmt.Errorf("%w: unknown intent type %q", mutate.ErrInvalidIndex, typ)
	}
}

// Reorder moves one row within its sibling group. Indices are positions in
// display order; out-of-range indices fail with mutate.ErrInvalidIndex.
func (s *Store) Reorder(ctx context.Context, intent model.ReorderIntent) error {
	table, parentCol, parentKind, parentTable, err := siblingTable(intent.Type)
	if err != nil {
		return err
	}
	parentID := strings.TrimSpace(intent.ParentID)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.exists(ctx, tx, parentTable, parentID)
		if err != nil {
			return err
		}
		if !ok {
			return mutate.NotFoundError{Kind: parentKind, ID: parentID}
		}
		rs, err := s.rows(ctx, tx, `SELECT id, `+parentCol+`, name, rank FROM `+table+` WHERE `+parentCol+` = ?`, parentID)
		if err != nil {
			return err
		}
		sortRows(rs)
		n := len(rs)
		if intent.FromIndex < 0 || intent.FromIndex >= n || intent.ToIndex < 0 || intent.ToIndex >= n {
			return mutate.IndexError{ParentID: parentID, From: intent.FromIndex, To: intent.ToIndex, Len: n}
		}
		sibs := make([]sibling, n)
		for i, r := range rs {
			sibs[i] = sibling{ID: r.id, Rank: r.rank}
		}
		updates, err := planMove(sibs, intent.FromIndex, intent.ToIndex)
		if err != nil {
			return err
		}
		for id, rank := range updates {
			if _, err := s.exec(ctx, tx, `UPDATE `+table+` SET rank = ? WHERE id = ?`, rank, id); err != nil {
				return err
			}
		}
		s.log.Debug("reordered",
			zap.String("table", table),
			zap.String("parent", parentID),
			zap.Int("from", intent.FromIndex),
			zap.Int("to", intent.ToIndex),
			zap.Int("rows", len(updates)))
		return nil
	})
}

func kindTable(kind model.Kind) (string, error) {
	switch kind {
	case model.KindMachine:
		return "machines", nil
	case model.KindAssembly:
		return "assemblies", nil
	case model.KindPart:
		return "parts", nil
	default:
		return "", fmt.Errorf("invalid node kind: %q", kind)
	}
}

func (s *Store) Rename(ctx context.Context, kind model.Kind, id, name string) error {
	table, err := kindTable(kind)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return mutate.ErrInvalidName
	}
	res, err := s.exec(ctx, s.db, `UPDATE `+table+` SET name = ? WHERE id = ?`, name, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mutate.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// Delete removes a node and everything below it, including attachment
// content. Blob removal happens after the rows are gone; failures there are
// logged and leave orphaned content only.
func (s *Store) Delete(ctx context.Context, kind model.Kind, id string) error {
	id = strings.TrimSpace(id)
	table, err := kindTable(kind)
	if err != nil {
		return err
	}
	var blobKeys []string
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.exists(ctx, tx, table, id)
		if err != nil {
			return err
		}
		if !ok {
			return mutate.NotFoundError{Kind: kind, ID: id}
		}

		var assemblyIDs, partIDs []string
		switch kind {
		case model.KindMachine:
			if assemblyIDs, err = s.ids(ctx, tx, `SELECT id FROM assemblies WHERE machine_id = ?`, id); err != nil {
				return err
			}
		case model.KindAssembly:
			assemblyIDs = []string{id}
		case model.KindPart:
			partIDs = []string{id}
		}
		for _, aid := range assemblyIDs {
			ps, err := s.ids(ctx, tx, `SELECT id FROM parts WHERE assembly_id = ?`, aid)
			if err != nil {
				return err
			}
			partIDs = append(partIDs, ps...)
		}
		for _, pid := range partIDs {
			items, err := s.ids(ctx, tx, `SELECT id FROM items WHERE part_id = ?`, pid)
			if err != nil {
				return err
			}
			for _, iid := range items {
				keys, err := s.ids(ctx, tx, `SELECT blob_key FROM attachments WHERE item_id = ?`, iid)
				if err != nil {
					return err
				}
				blobKeys = append(blobKeys, keys...)
				if _, err := s.exec(ctx, tx, `DELETE FROM attachments WHERE item_id = ?`, iid); err != nil {
					return err
				}
			}
			if _, err := s.exec(ctx, tx, `DELETE FROM items WHERE part_id = ?`, pid); err != nil {
				return err
			}
			if _, err := s.exec(ctx, tx, `DELETE FROM parts WHERE id = ?`, pid); err != nil {
				return err
			}
		}
		for _, aid := range assemblyIDs {
			if _, err := s.exec(ctx, tx, `DELETE FROM assemblies WHERE id = ?`, aid); err != nil {
				return err
			}
		}
		if kind == model.KindMachine {
			if _, err := s.exec(ctx, tx, `DELETE FROM machines WHERE id = ?`, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.removeBlobs(ctx, blobKeys)
	return nil
}

func (s *Store) removeBlobs(ctx context.Context, keys []string) {
	for _, k := range keys {
		if _, err := s.blobs.Delete(ctx, k); err != nil {
			s.log.Warn("blob delete failed", zap.String("key", k), zap.Error(err))
		}
	}
}

func (s *Store) ids(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rs, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []string
	for rs.Next() {
		var id string
		if err := rs.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rs.Err()
}

// lastRank returns the highest rank in a sibling group, or "".
func (s *Store) lastRank(ctx context.Context, q queryer, table, parentCol, parentID string) (string, error) {
	query := `SELECT rank FROM ` + table
	var args []any
	if parentCol != "" {
		query += ` WHERE ` + parentCol + ` = ?`
		args = append(args, parentID)
	}
	ranks, err := s.ids(ctx, q, query, args...)
	if err != nil {
		return "", err
	}
	last := ""
	for _, r := range ranks {
		if r = normRank(r); r > last {
			last = r
		}
	}
	return last, nil
}

func nextRank(last string) (string, error) {
	if last == "" {
		return RankInitial()
	}
	return RankAfter(last)
}

func (s *Store) CreateMachine(ctx context.Context, name string) (model.Machine, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Machine{}, mutate.ErrInvalidName
	}
	id, err := newID(prefixMachine)
	if err != nil {
		return model.Machine{}, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		last, err := s.lastRank(ctx, tx, "machines", "", "")
		if err != nil {
			return err
		}
		r, err := nextRank(last)
		if err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, `INSERT INTO machines(id, name, rank) VALUES(?, ?, ?)`, id, name, r)
		return err
	})
	if err != nil {
		return model.Machine{}, err
	}
	return model.Machine{ID: id, Name: name, Assemblies: []model.Assembly{}}, nil
}

func (s *Store) CreateAssembly(ctx context.Context, machineID, name string) (model.Assembly, error) {
	id, err := s.createChild(ctx, "assemblies", "machine_id", "machines", model.KindMachine, prefixAssembly, machineID, name)
	if err != nil {
		return model.Assembly{}, err
	}
	return model.Assembly{ID: id, Name: strings.TrimSpace(name), Parts: []model.Part{}}, nil
}

func (s *Store) CreatePart(ctx context.Context, assemblyID, name string) (model.Part, error) {
	id, err := s.createChild(ctx, "parts", "assembly_id", "assemblies", model.KindAssembly, prefixPart, assemblyID, name)
	if err != nil {
		return model.Part{}, err
	}
	return model.Part{ID: id, Name: strings.TrimSpace(name)}, nil
}

func (s *Store) createChild(ctx context.Context, table, parentCol, parentTable string, parentKind model.Kind, prefix, parentID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", mutate.ErrInvalidName
	}
	parentID = strings.TrimSpace(parentID)
	id, err := newID(prefix)
	if err != nil {
		return "", err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.exists(ctx, tx, parentTable, parentID)
		if err != nil {
			return err
		}
		if !ok {
			return mutate.NotFoundError{Kind: parentKind, ID: parentID}
		}
		last, err := s.lastRank(ctx, tx, table, parentCol, parentID)
		if err != nil {
			return err
		}
		r, err := nextRank(last)
		if err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, `INSERT INTO `+table+`(id, `+parentCol+`, name, rank) VALUES(?, ?, ?, ?)`, id, parentID, name, r)
		return err
	})
	return id, err
}
